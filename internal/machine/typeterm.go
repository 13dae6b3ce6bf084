package machine

import (
	"fmt"
	"sort"

	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/rewrite"
	"github.com/lunalang/generics/internal/types"
)

// Term to type conversion runs only after completion: a canonical term's
// associated type symbols are mapped back to declarations through the
// property map, because the protocol stored in a symbol reflects the
// reduction order, not the canonical protocol the member resolves through.

// TermForType converts a type parameter into its canonical term, relative
// to a protocol's Self when proto is non-empty. Conversion alone does not
// produce a canonical term, so the result is simplified.
func (m *Machine) TermForType(t types.Type, proto string) (*rewrite.Term, error) {
	term, err := termForTypeParameter(m.ctx, t, proto)
	if err != nil {
		return nil, err
	}
	m.sys.Simplify(term, nil)
	return m.ctx.Term(term.Symbols()...), nil
}

// TypeForTerm converts a canonical term back into a type parameter.
func (m *Machine) TypeForTerm(term *rewrite.Term) (types.Type, error) {
	return m.typeForSymbols(term.Symbols())
}

func (m *Machine) typeForSymbols(symbols []*rewrite.Symbol) (types.Type, error) {
	var result types.Type

	for i, symbol := range symbols {
		if result == nil {
			switch symbol.Kind() {
			case rewrite.SymbolGenericParam:
				depth, index := symbol.GenericParam()
				result = types.Param{Depth: depth, Index: index}
				continue
			case rewrite.SymbolProtocol:
				// A protocol root is the protocol's Self.
				result = types.Param{Depth: 0, Index: 0}
				continue
			case rewrite.SymbolAssociatedType:
				// A member access on Self; the symbol itself is handled
				// below.
				result = types.Param{Depth: 0, Index: 0}
			default:
				return nil, fmt.Errorf("invalid root symbol in term %s", termString(symbols))
			}
		}

		switch symbol.Kind() {
		case rewrite.SymbolName:
			// Unresolved member; survives only in invalid signatures.
			result = types.Member{Base: result, Name: symbol.Name()}

		case rewrite.SymbolProtocol:
			// An unsimplified term can read X.[P].[P:A]; the protocol
			// symbol adds nothing over the prefix.

		case rewrite.SymbolAssociatedType:
			var candidates []string
			if i == 0 {
				candidates = symbol.Protocols()
			} else {
				bag := m.pmap.LookupProperties(symbols[:i])
				if bag == nil {
					return nil, fmt.Errorf("prefix of %s conforms to no protocols", termString(symbols))
				}
				candidates = bag.ConformsTo()
			}
			proto, ok := m.associatedTypeProtocol(candidates, symbol.Name())
			if !ok {
				return nil, fmt.Errorf("no protocol declares %s in term %s",
					symbol.Name(), termString(symbols))
			}
			result = types.Member{Base: result, Name: symbol.Name(), Protocol: proto}

		default:
			return nil, fmt.Errorf("invalid interior symbol in term %s", termString(symbols))
		}
	}

	if result == nil {
		return nil, fmt.Errorf("empty term")
	}
	return result, nil
}

// associatedTypeProtocol picks the canonical declaring protocol for an
// associated type named name: among the candidate protocols and everything
// they inherit, the least protocol in protocol order that declares the name.
func (m *Machine) associatedTypeProtocol(candidates []string, name string) (string, bool) {
	best := ""
	consider := func(proto string) {
		p, ok := m.registry.Protocol(proto)
		if !ok || !p.HasAssociatedType(name) {
			return
		}
		if best == "" || m.registry.CompareProtocols(proto, best) < 0 {
			best = proto
		}
	}
	for _, proto := range candidates {
		consider(proto)
		for _, inherited := range m.registry.InheritedProtocols(proto) {
			consider(inherited)
		}
	}
	return best, best != ""
}

// typeFromSchema reverses schema extraction: every placeholder expands to
// the type of its substitution term, simplified first so the property map
// lookup sees canonical prefixes.
func (m *Machine) typeFromSchema(schema types.Type, substitutions []*rewrite.Term) (types.Type, error) {
	var convErr error
	out := types.Transform(schema, func(sub types.Type) (types.Type, bool) {
		ph, ok := sub.(types.Placeholder)
		if !ok {
			return nil, false
		}
		term := substitutions[ph.Index].Mutable()
		m.sys.Simplify(term, nil)
		t, err := m.typeForSymbols(term.Symbols())
		if err != nil {
			if convErr == nil {
				convErr = err
			}
			return sub, true
		}
		return t, true
	})
	if convErr != nil {
		return nil, convErr
	}
	return out, nil
}

// requirementsFromRules converts minimal rules back into structured
// requirements, sorted by subject then kind for stable output.
func (m *Machine) requirementsFromRules(ruleIDs []int) ([]decl.Requirement, error) {
	var out []decl.Requirement

	for _, ruleID := range ruleIDs {
		rule := m.sys.Rule(ruleID)

		property := rule.PropertySymbol()
		if property == nil {
			// T => U reads as the same-type requirement U == T, with the
			// canonical side as the subject.
			subject, err := m.TypeForTerm(rule.RHS())
			if err != nil {
				return nil, err
			}
			constraint, err := m.TypeForTerm(rule.LHS())
			if err != nil {
				return nil, err
			}
			out = append(out, decl.Requirement{
				Kind:       decl.SameTypeRequirement,
				Subject:    subject,
				Constraint: constraint,
			})
			continue
		}

		subject, err := m.TypeForTerm(rule.RHS())
		if err != nil {
			return nil, err
		}

		switch property.Kind() {
		case rewrite.SymbolProtocol:
			out = append(out, decl.Requirement{
				Kind:     decl.ConformanceRequirement,
				Subject:  subject,
				Protocol: property.Protocol(),
			})

		case rewrite.SymbolLayout:
			out = append(out, decl.Requirement{
				Kind:    decl.LayoutRequirement,
				Subject: subject,
				Layout:  property.Layout(),
			})

		case rewrite.SymbolSuperclass:
			constraint, err := m.typeFromSchema(property.ConcreteType(), property.Substitutions())
			if err != nil {
				return nil, err
			}
			out = append(out, decl.Requirement{
				Kind:       decl.SuperclassRequirement,
				Subject:    subject,
				Constraint: constraint,
			})

		case rewrite.SymbolConcreteType:
			constraint, err := m.typeFromSchema(property.ConcreteType(), property.Substitutions())
			if err != nil {
				return nil, err
			}
			out = append(out, decl.Requirement{
				Kind:       decl.SameTypeRequirement,
				Subject:    subject,
				Constraint: constraint,
			})

		case rewrite.SymbolConcreteConformance:
			// Derived, never part of a written signature.
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Subject.String(), out[j].Subject.String()
		if si != sj {
			return si < sj
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

func termString(symbols []*rewrite.Symbol) string {
	var b []byte
	for i, s := range symbols {
		if i > 0 {
			b = append(b, '.')
		}
		b = append(b, s.String()...)
	}
	return string(b)
}
