package machine

import (
	"fmt"

	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/rewrite"
	"github.com/lunalang/generics/internal/types"
)

// systemBuilder lowers declarations and requirements into rewrite rule
// pairs. One builder seeds a system at initialization time; later imports
// triggered by conditional requirements reuse the same lowering through a
// fresh builder whose pairs are appended to the live system.
type systemBuilder struct {
	ctx      *rewrite.Context
	registry *decl.Registry
	sys      *rewrite.System

	permanent    []rewrite.RulePair
	requirements []rewrite.RulePair

	errors []error
}

func newSystemBuilder(ctx *rewrite.Context, sys *rewrite.System) *systemBuilder {
	return &systemBuilder{ctx: ctx, registry: ctx.Registry(), sys: sys}
}

// termForTypeParameter converts a type parameter into a term, relative to a
// protocol's Self when proto is non-empty.
//
// In protocol context the root Param{0,0} is the protocol's Self. A member
// resolved directly on Self maps to an associated type symbol whose protocol
// is the requirement's own protocol, not the declaring one: a requirement a
// refining protocol places on an inherited associated type constrains its
// own logical override. An unresolved member on Self keeps the protocol
// symbol root.
func termForTypeParameter(ctx *rewrite.Context, t types.Type, proto string) (*rewrite.MutableTerm, error) {
	var symbols []*rewrite.Symbol
	innermostResolved := false

	for {
		m, ok := t.(types.Member)
		if !ok {
			break
		}
		t = m.Base
		_, baseIsRoot := t.(types.Param)

		if m.Protocol == "" {
			symbols = append(symbols, ctx.NameSymbol(m.Name))
			innermostResolved = false
			continue
		}
		if proto != "" && baseIsRoot {
			innermostResolved = true
			symbols = append(symbols, ctx.AssociatedTypeSymbol([]string{proto}, m.Name))
		} else {
			symbols = append(symbols, ctx.AssociatedTypeSymbol([]string{m.Protocol}, m.Name))
		}
	}

	param, ok := t.(types.Param)
	if !ok {
		return nil, fmt.Errorf("not a type parameter: %s", t)
	}
	if proto != "" {
		if !innermostResolved {
			symbols = append(symbols, ctx.ProtocolSymbol(proto))
		}
	} else {
		symbols = append(symbols, ctx.GenericParamSymbol(param.Depth, param.Index))
	}

	for i, j := 0, len(symbols)-1; i < j; i, j = i+1, j-1 {
		symbols[i], symbols[j] = symbols[j], symbols[i]
	}
	return rewrite.NewMutableTerm(symbols...), nil
}

// schemaForType replaces every maximal type parameter subterm of t with a
// placeholder, converting the extracted parameters in the given protocol
// context.
func schemaForType(ctx *rewrite.Context, t types.Type, proto string) (types.Type, []*rewrite.Term, error) {
	var subs []*rewrite.Term
	var convErr error
	schema := types.Transform(t, func(sub types.Type) (types.Type, bool) {
		if !types.IsTypeParameter(sub) {
			return nil, false
		}
		index := len(subs)
		term, err := termForTypeParameter(ctx, sub, proto)
		if err != nil {
			if convErr == nil {
				convErr = err
			}
			return sub, true
		}
		subs = append(subs, ctx.Term(term.Symbols()...))
		return types.Placeholder{Index: index}, true
	})
	if convErr != nil {
		return nil, nil, convErr
	}
	return schema, subs, nil
}

// addProtocols imports every named protocol and the protocols they
// transitively reference. Protocols already known to the system are skipped.
func (b *systemBuilder) addProtocols(protos []string) {
	worklist := append([]string(nil), protos...)
	for len(worklist) > 0 {
		proto := worklist[0]
		worklist = worklist[1:]
		if !b.sys.MarkKnownProtocol(proto) {
			continue
		}
		worklist = append(worklist, b.addProtocol(proto)...)
	}
}

// addProtocol lowers one protocol declaration: the identity conformance and
// associated type introduction rules are permanent; inheritance entries and
// the protocol's own requirements are requirement rules. Returns the
// protocols the declaration references.
func (b *systemBuilder) addProtocol(proto string) []string {
	p, ok := b.registry.Protocol(proto)
	if !ok {
		b.errors = append(b.errors, fmt.Errorf("unknown protocol %q", proto))
		return nil
	}

	protoSymbol := b.ctx.ProtocolSymbol(proto)
	selfTerm := rewrite.NewMutableTerm(protoSymbol)

	// [P].[P] => [P]
	identity := rewrite.NewMutableTerm(protoSymbol, protoSymbol)
	b.permanent = append(b.permanent, rewrite.RulePair{LHS: identity, RHS: selfTerm.Clone()})

	// [P].A => [P:A] for each associated type A.
	for _, assoc := range p.AssociatedTypes {
		lhs := rewrite.NewMutableTerm(protoSymbol, b.ctx.NameSymbol(assoc.Name))
		rhs := rewrite.NewMutableTerm(b.ctx.AssociatedTypeSymbol([]string{proto}, assoc.Name))
		b.permanent = append(b.permanent, rewrite.RulePair{LHS: lhs, RHS: rhs})
	}

	var referenced []string
	for _, inherited := range p.Inherits {
		referenced = append(referenced, inherited)
		b.addRequirement(decl.Requirement{
			Kind:     decl.ConformanceRequirement,
			Subject:  types.Param{Depth: 0, Index: 0},
			Protocol: inherited,
		}, proto)
	}

	desugared, errs := desugarRequirements(b.registry, p.Requirements)
	b.errors = append(b.errors, errs...)
	for _, req := range desugared {
		referenced = append(referenced, b.addRequirement(req, proto)...)
	}
	return referenced
}

// addRequirement lowers one desugared requirement into rule pairs, in the
// given protocol context ("" for a top-level signature). Returns the
// protocols the requirement references.
func (b *systemBuilder) addRequirement(req decl.Requirement, proto string) []string {
	subject, err := termForTypeParameter(b.ctx, req.Subject, proto)
	if err != nil {
		b.errors = append(b.errors, err)
		return nil
	}

	referenced := referencedProtocols(req.Subject)

	switch req.Kind {
	case decl.ConformanceRequirement:
		// T.[P] => T
		lhs := subject.Clone()
		lhs.Add(b.ctx.ProtocolSymbol(req.Protocol))
		b.requirements = append(b.requirements, rewrite.RulePair{LHS: lhs, RHS: subject})
		referenced = append(referenced, req.Protocol)

	case decl.LayoutRequirement:
		// T.[layout: L] => T
		lhs := subject.Clone()
		lhs.Add(b.ctx.LayoutSymbol(req.Layout))
		b.requirements = append(b.requirements, rewrite.RulePair{LHS: lhs, RHS: subject})

	case decl.SuperclassRequirement:
		// T.[superclass: C] => T, plus the implied T.[layout: AnyObject] => T.
		schema, subs, err := schemaForType(b.ctx, req.Constraint, proto)
		if err != nil {
			b.errors = append(b.errors, err)
			return referenced
		}
		referenced = append(referenced, referencedProtocols(req.Constraint)...)

		lhs := subject.Clone()
		lhs.Add(b.ctx.SuperclassSymbol(schema, subs))
		b.requirements = append(b.requirements, rewrite.RulePair{LHS: lhs, RHS: subject})

		layoutLHS := subject.Clone()
		layoutLHS.Add(b.ctx.LayoutSymbol(decl.Layout{Kind: decl.LayoutAnyObject}))
		b.requirements = append(b.requirements, rewrite.RulePair{LHS: layoutLHS, RHS: subject.Clone()})

	case decl.SameTypeRequirement:
		if types.IsTypeParameter(req.Constraint) {
			constraint, err := termForTypeParameter(b.ctx, req.Constraint, proto)
			if err != nil {
				b.errors = append(b.errors, err)
				return referenced
			}
			referenced = append(referenced, referencedProtocols(req.Constraint)...)
			b.requirements = append(b.requirements, rewrite.RulePair{LHS: subject, RHS: constraint})
			break
		}

		// T.[concrete: C] => T
		schema, subs, err := schemaForType(b.ctx, req.Constraint, proto)
		if err != nil {
			b.errors = append(b.errors, err)
			return referenced
		}
		referenced = append(referenced, referencedProtocols(req.Constraint)...)

		lhs := subject.Clone()
		lhs.Add(b.ctx.ConcreteTypeSymbol(schema, subs))
		b.requirements = append(b.requirements, rewrite.RulePair{LHS: lhs, RHS: subject})
	}

	return referenced
}

// referencedProtocols collects the protocols named by resolved members
// anywhere inside t.
func referencedProtocols(t types.Type) []string {
	var out []string
	types.Walk(t, func(sub types.Type) {
		if m, ok := sub.(types.Member); ok && m.Protocol != "" {
			out = append(out, m.Protocol)
		}
	})
	return out
}

// addTo appends the collected pairs to a live system; used when conditional
// requirement inference pulls in a protocol after initialization.
func (b *systemBuilder) addTo(sys *rewrite.System) {
	for _, pair := range b.permanent {
		sys.AddPermanentRule(pair.LHS, pair.RHS)
	}
	for _, pair := range b.requirements {
		sys.AddExplicitRule(pair.LHS, pair.RHS)
	}
}
