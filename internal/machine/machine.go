package machine

import (
	"errors"
	"fmt"
	"io"

	"github.com/lunalang/generics/internal/config"
	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/rewrite"
	"github.com/lunalang/generics/internal/types"
)

// ErrCompletionLimit reports that completion hit a resource ceiling. The
// machine that produced it is unusable; callers discard it and surface the
// error.
var ErrCompletionLimit = errors.New("requirement machine exceeded completion limits")

// Machine minimizes one generic signature or one connected component of
// protocol requirement signatures. Build one with InitWithGenericSignature
// or InitWithProtocols, then call Minimize and read the results.
type Machine struct {
	ctx      *rewrite.Context
	registry *decl.Registry
	sys      *rewrite.System
	pmap     *rewrite.PropertyMap

	// Requirements rejected by desugaring; they surface through HadError.
	desugarErrors []error

	initialized bool
	minimized   bool
}

func NewMachine(ctx *rewrite.Context) *Machine {
	sys := rewrite.NewSystem(ctx)
	m := &Machine{
		ctx:      ctx,
		registry: ctx.Registry(),
		sys:      sys,
	}
	m.pmap = rewrite.NewPropertyMap(sys, m)
	return m
}

func (m *Machine) Context() *rewrite.Context         { return m.ctx }
func (m *Machine) System() *rewrite.System           { return m.sys }
func (m *Machine) PropertyMap() *rewrite.PropertyMap { return m.pmap }

// InitWithGenericSignature lowers a top-level signature's requirements,
// after desugaring and concrete contraction, and runs the system to its
// completion fixed point.
func (m *Machine) InitWithGenericSignature(reqs []decl.Requirement) error {
	if m.initialized {
		panic("machine already initialized")
	}
	m.initialized = true

	desugared, errs := desugarRequirements(m.registry, reqs)
	m.desugarErrors = errs

	desugared, _ = contractConcreteTypes(m.registry, desugared)

	b := newSystemBuilder(m.ctx, m.sys)
	var referenced []string
	for _, req := range desugared {
		referenced = append(referenced, b.addRequirement(req, "")...)
	}
	b.addProtocols(referenced)
	m.desugarErrors = append(m.desugarErrors, b.errors...)

	m.sys.Initialize(true, nil, b.permanent, b.requirements)
	return m.computeCompletion()
}

// InitWithProtocols lowers the requirement signatures of one protocol
// connected component and runs the system to its completion fixed point.
func (m *Machine) InitWithProtocols(protos []string) error {
	if m.initialized {
		panic("machine already initialized")
	}
	m.initialized = true

	b := newSystemBuilder(m.ctx, m.sys)
	b.addProtocols(protos)
	m.desugarErrors = b.errors

	m.sys.Initialize(true, protos, b.permanent, b.requirements)
	return m.computeCompletion()
}

// computeCompletion alternates Knuth-Bendix completion with property map
// construction until the map stops inducing rules. Unification and nested
// type concretization add rules the next completion round must absorb.
func (m *Machine) computeCompletion() error {
	for {
		if err := m.sys.ComputeConfluentCompletion(config.MaxRuleCount, config.MaxRuleDepth); err != nil {
			return fmt.Errorf("%w: %v", ErrCompletionLimit, err)
		}

		before := m.sys.RuleCount()
		m.sys.SimplifyLeftHandSideSubstitutions()
		m.pmap.Build()

		if m.sys.RuleCount() > config.MaxRuleCount {
			return fmt.Errorf("%w: %v", ErrCompletionLimit, rewrite.ErrTooManyRules)
		}
		if m.sys.RuleCount() == before {
			return nil
		}
	}
}

// Minimize runs the post-completion simplification passes and homotopy
// reduction. Call once, after initialization succeeded.
func (m *Machine) Minimize() {
	if !m.initialized {
		panic("machine not initialized")
	}
	if m.minimized {
		panic("machine already minimized")
	}
	m.minimized = true

	m.sys.SimplifyLeftHandSides()
	m.sys.SimplifyRightHandSides()
	m.sys.Minimize()
}

// HadError reports whether the input was invalid: a requirement rejected by
// desugaring, a conflict detected by unification, or an unresolved name
// surviving minimization.
func (m *Machine) HadError() bool {
	if len(m.desugarErrors) > 0 {
		return true
	}
	return m.sys.HadError()
}

// Errors returns the desugaring errors, for diagnostics.
func (m *Machine) Errors() []error { return m.desugarErrors }

// GenericSignatureRequirements converts the minimal generic signature rules
// back into structured requirements.
func (m *Machine) GenericSignatureRequirements() ([]decl.Requirement, error) {
	return m.requirementsFromRules(m.sys.MinimizedGenericSignatureRules())
}

// ProtocolRequirements converts each protocol's minimal rules back into its
// requirement signature, keyed by protocol name.
func (m *Machine) ProtocolRequirements() (map[string][]decl.Requirement, error) {
	out := map[string][]decl.Requirement{}
	for proto, ruleIDs := range m.sys.MinimizedProtocolRules() {
		reqs, err := m.requirementsFromRules(ruleIDs)
		if err != nil {
			return nil, err
		}
		out[proto] = reqs
	}
	return out, nil
}

// Dump writes the rewrite system and property map.
func (m *Machine) Dump(w io.Writer) {
	m.sys.Dump(w)
	m.pmap.Dump(w)
}

// AddRulesForProtocol imports a protocol first referenced by a conditional
// requirement into the live system. Implements rewrite.ConditionalLowering.
func (m *Machine) AddRulesForProtocol(sys *rewrite.System, proto string) {
	b := newSystemBuilder(m.ctx, sys)
	b.addProtocols([]string{proto})
	m.desugarErrors = append(m.desugarErrors, b.errors...)
	b.addTo(sys)
}

// LowerConditionalRequirement converts one conditional requirement of a
// concrete conformance into a rule pair. req is stated in the conformance's
// generic context; args maps that context into the concrete type's schema,
// and substitutions interpret the schema's placeholders. Implements
// rewrite.ConditionalLowering.
func (m *Machine) LowerConditionalRequirement(req decl.Requirement,
	args []types.Type, substitutions []*rewrite.Term) (rewrite.RulePair, bool) {

	subjectType := decl.Substitute(req.Subject, args)
	if !isSubstitutedTypeParameter(subjectType) {
		// The condition landed on a concrete type; the registry lookup
		// during concretization already vouched for it.
		return rewrite.RulePair{}, false
	}
	subject := m.ctx.RelativeTermForType(subjectType, substitutions)

	switch req.Kind {
	case decl.ConformanceRequirement:
		lhs := subject.Clone()
		lhs.Add(m.ctx.ProtocolSymbol(req.Protocol))
		return rewrite.RulePair{LHS: lhs, RHS: subject}, true

	case decl.LayoutRequirement:
		lhs := subject.Clone()
		lhs.Add(m.ctx.LayoutSymbol(req.Layout))
		return rewrite.RulePair{LHS: lhs, RHS: subject}, true

	case decl.SuperclassRequirement:
		constraint := decl.Substitute(req.Constraint, args)
		schema, subs := m.ctx.RelativeSchemaForType(constraint, substitutions)
		lhs := subject.Clone()
		lhs.Add(m.ctx.SuperclassSymbol(schema, subs))
		return rewrite.RulePair{LHS: lhs, RHS: subject}, true

	case decl.SameTypeRequirement:
		constraint := decl.Substitute(req.Constraint, args)
		if isSubstitutedTypeParameter(constraint) {
			rhs := m.ctx.RelativeTermForType(constraint, substitutions)
			return rewrite.RulePair{LHS: subject, RHS: rhs}, true
		}
		schema, subs := m.ctx.RelativeSchemaForType(constraint, substitutions)
		lhs := subject.Clone()
		lhs.Add(m.ctx.ConcreteTypeSymbol(schema, subs))
		return rewrite.RulePair{LHS: lhs, RHS: subject}, true
	}

	return rewrite.RulePair{}, false
}

// isSubstitutedTypeParameter reports whether t is a type parameter after
// substitution into a schema context: a placeholder, a generic parameter, or
// a member chain rooted at either.
func isSubstitutedTypeParameter(t types.Type) bool {
	for {
		switch tt := t.(type) {
		case types.Placeholder, types.Param:
			return true
		case types.Member:
			t = tt.Base
		default:
			return false
		}
	}
}
