package rewrite

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

// Context interns symbols and terms for one construction session. It is
// append-only: entries are never mutated or removed once created, so any
// number of rewrite systems built from the same context can share them.
// Creation of new entries is serialized; the context must outlive every
// rewrite system built from it.
type Context struct {
	mu       sync.Mutex
	id       uuid.UUID
	registry *decl.Registry

	symbols map[string]*Symbol
	terms   map[string]*Term
}

func NewContext(registry *decl.Registry) *Context {
	return &Context{
		id:       uuid.New(),
		registry: registry,
		symbols:  map[string]*Symbol{},
		terms:    map[string]*Term{},
	}
}

// ID identifies the session, e.g. in debug dumps and cache rows.
func (c *Context) ID() uuid.UUID { return c.id }

func (c *Context) Registry() *decl.Registry { return c.registry }

func (c *Context) intern(s *Symbol) *Symbol {
	key := s.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.symbols[key]; ok {
		return existing
	}
	c.symbols[key] = s
	return s
}

func (c *Context) NameSymbol(name string) *Symbol {
	return c.intern(&Symbol{kind: SymbolName, name: name})
}

func (c *Context) GenericParamSymbol(depth, index int) *Symbol {
	return c.intern(&Symbol{kind: SymbolGenericParam, depth: depth, index: index})
}

func (c *Context) ProtocolSymbol(proto string) *Symbol {
	return c.intern(&Symbol{kind: SymbolProtocol, name: proto})
}

// AssociatedTypeSymbol interns [P1&...&Pn:name]. The protocol set is
// canonicalized: sorted in protocol order, with duplicates and protocols
// inherited by another member removed.
func (c *Context) AssociatedTypeSymbol(protocols []string, name string) *Symbol {
	sorted := append([]string(nil), protocols...)
	sort.Slice(sorted, func(i, j int) bool {
		return c.registry.CompareProtocols(sorted[i], sorted[j]) < 0
	})

	deduped := sorted[:0]
	for i, p := range sorted {
		if i == 0 || sorted[i-1] != p {
			deduped = append(deduped, p)
		}
	}

	// Drop protocols inherited by another member of the set.
	var minimal []string
	for _, p := range deduped {
		redundant := false
		for _, q := range deduped {
			if q != p && c.registry.Inherits(q, p) {
				redundant = true
				break
			}
		}
		if !redundant {
			minimal = append(minimal, p)
		}
	}

	return c.intern(&Symbol{kind: SymbolAssociatedType, protocols: minimal, name: name})
}

func (c *Context) LayoutSymbol(l decl.Layout) *Symbol {
	return c.intern(&Symbol{kind: SymbolLayout, layout: l})
}

func (c *Context) SuperclassSymbol(schema types.Type, substitutions []*Term) *Symbol {
	return c.intern(&Symbol{kind: SymbolSuperclass, concrete: schema, substitutions: substitutions})
}

func (c *Context) ConcreteTypeSymbol(schema types.Type, substitutions []*Term) *Symbol {
	return c.intern(&Symbol{kind: SymbolConcreteType, concrete: schema, substitutions: substitutions})
}

func (c *Context) ConcreteConformanceSymbol(schema types.Type, substitutions []*Term, proto string) *Symbol {
	return c.intern(&Symbol{
		kind:          SymbolConcreteConformance,
		name:          proto,
		concrete:      schema,
		substitutions: substitutions,
	})
}

// WithSubstitutions interns a copy of s carrying new substitution terms.
func (c *Context) WithSubstitutions(s *Symbol, substitutions []*Term) *Symbol {
	if !s.HasSubstitutions() {
		panic("symbol has no substitutions")
	}
	return c.intern(&Symbol{
		kind:          s.kind,
		name:          s.name,
		concrete:      s.concrete,
		substitutions: substitutions,
	})
}

// MergeAssociatedTypes builds the merged symbol for two associated type
// symbols with the same name:
//
//   - if lhs's protocol set subsumes rhs's, the result is lhs, and vice versa;
//   - otherwise the result is a new symbol over the union of the two sets.
func (c *Context) MergeAssociatedTypes(lhs, rhs *Symbol) *Symbol {
	if lhs.kind != SymbolAssociatedType || rhs.kind != SymbolAssociatedType {
		panic("can only merge associated type symbols")
	}
	if lhs.name != rhs.name {
		panic("can only merge associated types with the same name")
	}
	merged := append(append([]string(nil), lhs.protocols...), rhs.protocols...)
	return c.AssociatedTypeSymbol(merged, lhs.name)
}

// Term returns the interned term with the given symbols.
func (c *Context) Term(symbols ...*Symbol) *Term {
	if len(symbols) == 0 {
		panic("empty term")
	}

	var b strings.Builder
	for i, s := range symbols {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	key := b.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.terms[key]; ok {
		return existing
	}
	t := &Term{symbols: append([]*Symbol(nil), symbols...)}
	c.terms[key] = t
	return t
}
