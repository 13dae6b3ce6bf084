package rewrite

import (
	"fmt"
	"strings"

	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

// SymbolKind identifies the variant of an interned symbol. The declaration
// order is the linear order used when comparing symbols of different kinds.
type SymbolKind int

const (
	SymbolAssociatedType SymbolKind = iota
	SymbolGenericParam
	SymbolName
	SymbolProtocol
	SymbolLayout
	SymbolSuperclass
	SymbolConcreteType
	SymbolConcreteConformance
)

// Symbol is an interned term element. Symbols are created through a Context
// and compared by pointer identity; two symbols with equal payloads are the
// same pointer.
type Symbol struct {
	kind SymbolKind

	// name holds the identifier for Name and AssociatedType symbols, the
	// protocol name for Protocol and ConcreteConformance symbols.
	name      string
	protocols []string
	depth     int
	index     int
	layout    decl.Layout

	// concrete is the schema type of a Superclass, ConcreteType or
	// ConcreteConformance symbol; its placeholders index substitutions.
	concrete      types.Type
	substitutions []*Term
}

func (s *Symbol) Kind() SymbolKind { return s.kind }

func (s *Symbol) Name() string {
	switch s.kind {
	case SymbolName, SymbolAssociatedType:
		return s.name
	}
	panic("symbol has no name")
}

// Protocol returns the protocol of a Protocol or ConcreteConformance symbol.
func (s *Symbol) Protocol() string {
	switch s.kind {
	case SymbolProtocol, SymbolConcreteConformance:
		return s.name
	}
	panic("symbol has no protocol")
}

// Protocols returns the protocol set of an AssociatedType symbol, or the
// single protocol of a Protocol symbol.
func (s *Symbol) Protocols() []string {
	switch s.kind {
	case SymbolAssociatedType:
		return s.protocols
	case SymbolProtocol:
		return []string{s.name}
	}
	panic("symbol has no protocol set")
}

func (s *Symbol) GenericParam() (depth, index int) {
	if s.kind != SymbolGenericParam {
		panic("not a generic parameter symbol")
	}
	return s.depth, s.index
}

func (s *Symbol) Layout() decl.Layout {
	if s.kind != SymbolLayout {
		panic("not a layout symbol")
	}
	return s.layout
}

// ConcreteType returns the schema type of a symbol with substitutions.
func (s *Symbol) ConcreteType() types.Type {
	if !s.HasSubstitutions() {
		panic("symbol has no concrete type")
	}
	return s.concrete
}

func (s *Symbol) Substitutions() []*Term {
	if !s.HasSubstitutions() {
		panic("symbol has no substitutions")
	}
	return s.substitutions
}

// HasSubstitutions reports whether the symbol carries a schema type with
// substitution terms.
func (s *Symbol) HasSubstitutions() bool {
	switch s.kind {
	case SymbolSuperclass, SymbolConcreteType, SymbolConcreteConformance:
		return true
	}
	return false
}

// IsProperty reports whether the symbol may terminate a property rule.
func (s *Symbol) IsProperty() bool {
	switch s.kind {
	case SymbolProtocol, SymbolLayout, SymbolSuperclass, SymbolConcreteType,
		SymbolConcreteConformance:
		return true
	}
	return false
}

func (s *Symbol) String() string {
	switch s.kind {
	case SymbolName:
		return s.name
	case SymbolGenericParam:
		return fmt.Sprintf("τ_%d_%d", s.depth, s.index)
	case SymbolProtocol:
		return "[" + s.name + "]"
	case SymbolAssociatedType:
		return "[" + strings.Join(s.protocols, "&") + ":" + s.name + "]"
	case SymbolLayout:
		return "[layout: " + s.layout.String() + "]"
	case SymbolSuperclass:
		return "[superclass: " + s.schemaString() + "]"
	case SymbolConcreteType:
		return "[concrete: " + s.schemaString() + "]"
	case SymbolConcreteConformance:
		return "[concrete: " + s.schemaString() + " : " + s.name + "]"
	}
	return "?"
}

func (s *Symbol) schemaString() string {
	if len(s.substitutions) == 0 {
		return s.concrete.String()
	}
	parts := make([]string, len(s.substitutions))
	for i, t := range s.substitutions {
		parts[i] = fmt.Sprintf("σ_%d := %s", i, t)
	}
	return s.concrete.String() + " with <" + strings.Join(parts, ", ") + ">"
}

// Compare gives the linear order on symbols. The second result is false when
// the symbols are distinct but incomparable, which happens only between
// superclass, concrete type and concrete conformance symbols.
//
// Within a kind:
//   - associated types order by protocol count (more protocols first), then
//     pairwise protocol order, then name;
//   - generic parameters by depth then index;
//   - names lexicographically;
//   - protocols and layouts by their respective linear orders.
func (s *Symbol) Compare(other *Symbol, ctx *Context) (int, bool) {
	if s == other {
		return 0, true
	}

	if s.kind != other.kind {
		if s.kind < other.kind {
			return -1, true
		}
		return 1, true
	}

	switch s.kind {
	case SymbolName:
		return strings.Compare(s.name, other.name), true

	case SymbolProtocol:
		return ctx.registry.CompareProtocols(s.name, other.name), true

	case SymbolAssociatedType:
		if len(s.protocols) != len(other.protocols) {
			if len(s.protocols) > len(other.protocols) {
				return -1, true
			}
			return 1, true
		}
		for i := range s.protocols {
			if r := ctx.registry.CompareProtocols(s.protocols[i], other.protocols[i]); r != 0 {
				return r, true
			}
		}
		return strings.Compare(s.name, other.name), true

	case SymbolGenericParam:
		if s.depth != other.depth {
			return s.depth - other.depth, true
		}
		return s.index - other.index, true

	case SymbolLayout:
		return s.layout.Compare(other.layout), true
	}

	return 0, false
}
