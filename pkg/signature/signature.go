// Package signature is the public entry point of the minimization engine.
// Build a registry of declarations, open a session against it, and minimize
// requirement lists into canonical generic signatures.
package signature

import (
	"context"
	"fmt"
	"strings"

	"github.com/lunalang/generics/internal/cache"
	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/machine"
	"github.com/lunalang/generics/internal/rewrite"
	"github.com/lunalang/generics/internal/types"
)

// Aliases re-export the declaration and type model so callers outside the
// module can build inputs.
type (
	Type        = types.Type
	Requirement = decl.Requirement
	Registry    = decl.Registry
	Protocol    = decl.Protocol
	Class       = decl.Class
	Conformance = decl.Conformance
	Layout      = decl.Layout
)

func NewRegistry() *Registry { return decl.NewRegistry() }

// Type constructors.

func NominalType(name string, args ...Type) Type {
	return types.Nominal{Name: name, Args: args}
}

func TupleType(elements ...Type) Type {
	return types.Tuple{Elements: elements}
}

func FuncType(result Type, params ...Type) Type {
	return types.Func{Params: params, Result: result}
}

func GenericParam(depth, index int) Type {
	return types.Param{Depth: depth, Index: index}
}

// MemberType is an unresolved member access; the engine resolves it against
// the subject's conformances.
func MemberType(base Type, name string) Type {
	return types.Member{Base: base, Name: name}
}

// ResolvedMemberType is a member access through a known protocol's
// associated type.
func ResolvedMemberType(base Type, proto, name string) Type {
	return types.Member{Base: base, Name: name, Protocol: proto}
}

// Requirement constructors.

func ConformanceReq(subject Type, proto string) Requirement {
	return Requirement{Kind: decl.ConformanceRequirement, Subject: subject, Protocol: proto}
}

func SuperclassReq(subject Type, class Type) Requirement {
	return Requirement{Kind: decl.SuperclassRequirement, Subject: subject, Constraint: class}
}

func LayoutReq(subject Type, layout Layout) Requirement {
	return Requirement{Kind: decl.LayoutRequirement, Subject: subject, Layout: layout}
}

func SameTypeReq(subject, constraint Type) Requirement {
	return Requirement{Kind: decl.SameTypeRequirement, Subject: subject, Constraint: constraint}
}

// AnyObjectLayout is the class-reference layout constraint.
func AnyObjectLayout() Layout { return decl.Layout{Kind: decl.LayoutAnyObject} }

// Signature is a minimized generic signature.
type Signature struct {
	// Requirements is the canonical minimal requirement list, in subject
	// order.
	Requirements []Requirement

	// HadError reports invalid input: conflicting or unresolvable
	// requirements. The requirement list is still the best effort result.
	HadError bool
}

func (s *Signature) String() string {
	parts := make([]string, len(s.Requirements))
	for i, req := range s.Requirements {
		parts[i] = req.String()
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// Session minimizes signatures against one registry. Protocol requirement
// signatures are computed once per protocol and memoized; an optional
// persistent cache short-circuits repeated top-level queries.
type Session struct {
	registry *decl.Registry
	ctx      *rewrite.Context

	protocolSignatures map[string][]Requirement
	protocolErrors     map[string]bool

	store *cache.Store
}

// Option configures a session.
type Option func(*Session)

// WithCache attaches a persistent signature cache.
func WithCache(store *cache.Store) Option {
	return func(s *Session) { s.store = store }
}

func NewSession(registry *decl.Registry, opts ...Option) *Session {
	s := &Session{
		registry:           registry,
		ctx:                rewrite.NewContext(registry),
		protocolSignatures: map[string][]Requirement{},
		protocolErrors:     map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Minimize computes the canonical minimal signature for the given
// requirements.
func (s *Session) Minimize(reqs []Requirement) (*Signature, error) {
	var fingerprint string
	if s.store != nil {
		fingerprint = cache.Fingerprint(s.registry, reqs)
		if entry, ok, err := s.store.Get(context.Background(), fingerprint); err == nil && ok {
			return &Signature{Requirements: entry.Minimized, HadError: entry.HadError}, nil
		}
	}

	m := machine.NewMachine(s.ctx)
	if err := m.InitWithGenericSignature(reqs); err != nil {
		return nil, fmt.Errorf("minimizing generic signature: %w", err)
	}
	m.Minimize()

	minimized, err := m.GenericSignatureRequirements()
	if err != nil {
		return nil, fmt.Errorf("minimizing generic signature: %w", err)
	}
	sig := &Signature{Requirements: minimized, HadError: m.HadError()}

	if s.store != nil {
		if err := s.store.Put(context.Background(), fingerprint, sig.Requirements, sig.HadError); err != nil {
			return nil, err
		}
	}
	return sig, nil
}

// RequirementSignature computes the minimal requirement signature of a
// protocol, minimizing its whole connected component and memoizing every
// member.
func (s *Session) RequirementSignature(proto string) ([]Requirement, bool, error) {
	if sig, ok := s.protocolSignatures[proto]; ok {
		return sig, s.protocolErrors[proto], nil
	}

	component := s.registry.ProtocolComponent(proto)

	m := machine.NewMachine(s.ctx)
	if err := m.InitWithProtocols(component); err != nil {
		return nil, false, fmt.Errorf("minimizing requirement signature of %s: %w", proto, err)
	}
	m.Minimize()

	perProto, err := m.ProtocolRequirements()
	if err != nil {
		return nil, false, fmt.Errorf("minimizing requirement signature of %s: %w", proto, err)
	}
	hadError := m.HadError()

	for _, p := range component {
		s.protocolSignatures[p] = perProto[p]
		s.protocolErrors[p] = hadError
	}
	return s.protocolSignatures[proto], hadError, nil
}

