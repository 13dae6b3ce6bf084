package decl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lunalang/generics/internal/types"
)

// Registry is the in-memory declaration model the engine resolves names
// against: protocols, classes and conformances.
type Registry struct {
	protocols    map[string]*Protocol
	classes      map[string]*Class
	conformances map[string]*Conformance
}

func NewRegistry() *Registry {
	return &Registry{
		protocols:    map[string]*Protocol{},
		classes:      map[string]*Class{},
		conformances: map[string]*Conformance{},
	}
}

func (r *Registry) AddProtocol(p *Protocol) error {
	if _, ok := r.protocols[p.Name]; ok {
		return fmt.Errorf("protocol %q already declared", p.Name)
	}
	r.protocols[p.Name] = p
	return nil
}

func (r *Registry) AddClass(c *Class) error {
	if _, ok := r.classes[c.Name]; ok {
		return fmt.Errorf("class %q already declared", c.Name)
	}
	r.classes[c.Name] = c
	return nil
}

func (r *Registry) AddConformance(c *Conformance) error {
	key := c.TypeName + ":" + c.Protocol
	if _, ok := r.conformances[key]; ok {
		return fmt.Errorf("conformance %s already declared", key)
	}
	r.conformances[key] = c
	return nil
}

func (r *Registry) Protocol(name string) (*Protocol, bool) {
	p, ok := r.protocols[name]
	return p, ok
}

func (r *Registry) Class(name string) (*Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// IsClass reports whether t is a nominal type naming a declared class.
func (r *Registry) IsClass(t types.Type) bool {
	n, ok := t.(types.Nominal)
	if !ok {
		return false
	}
	_, ok = r.classes[n.Name]
	return ok
}

// CompareProtocols is the linear order on protocols used by the symbol
// order. Protocols compare by name.
func (r *Registry) CompareProtocols(a, b string) int {
	return strings.Compare(a, b)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CanonicalDeclarations renders every declaration as one line, in a fixed
// order. Registries built from the same declarations render identically, so
// the lines can key caches: the same requirement list minimizes differently
// under different declarations.
func (r *Registry) CanonicalDeclarations() []string {
	var lines []string
	for _, name := range sortedKeys(r.protocols) {
		p := r.protocols[name]
		var b strings.Builder
		fmt.Fprintf(&b, "protocol %s", p.Name)
		if len(p.Inherits) > 0 {
			fmt.Fprintf(&b, " : %s", strings.Join(p.Inherits, ", "))
		}
		for _, at := range p.AssociatedTypes {
			fmt.Fprintf(&b, "; assoc %s", at.Name)
		}
		for _, req := range p.Requirements {
			fmt.Fprintf(&b, "; req %s", req)
		}
		lines = append(lines, b.String())
	}
	for _, name := range sortedKeys(r.classes) {
		c := r.classes[name]
		var b strings.Builder
		fmt.Fprintf(&b, "class %s<%d>", c.Name, c.NumParams)
		if c.Super != nil {
			fmt.Fprintf(&b, " : %s", c.Super)
		}
		lines = append(lines, b.String())
	}
	for _, key := range sortedKeys(r.conformances) {
		c := r.conformances[key]
		var b strings.Builder
		fmt.Fprintf(&b, "conformance %s : %s", c.TypeName, c.Protocol)
		for _, member := range sortedKeys(c.Witnesses) {
			fmt.Fprintf(&b, "; witness %s == %s", member, c.Witnesses[member])
		}
		for _, req := range c.Conditional {
			fmt.Fprintf(&b, "; where %s", req)
		}
		lines = append(lines, b.String())
	}
	return lines
}

// ProtocolComponent returns proto together with every protocol reachable
// from it through inheritance or requirement references, sorted in protocol
// order. Protocols in one component can be mutually recursive, so their
// requirement signatures must be minimized together.
func (r *Registry) ProtocolComponent(proto string) []string {
	seen := map[string]bool{}
	var visit func(string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		p, ok := r.protocols[name]
		if !ok {
			return
		}
		for _, inherited := range p.Inherits {
			visit(inherited)
		}
		for _, req := range p.Requirements {
			if req.Protocol != "" {
				visit(req.Protocol)
			}
			for _, t := range []types.Type{req.Subject, req.Constraint} {
				if t == nil {
					continue
				}
				types.Walk(t, func(sub types.Type) {
					if m, ok := sub.(types.Member); ok && m.Protocol != "" {
						visit(m.Protocol)
					}
				})
			}
		}
	}
	visit(proto)

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.CompareProtocols(out[i], out[j]) < 0
	})
	return out
}

// InheritedProtocols returns the transitive inheritance closure of name,
// excluding name itself, sorted in protocol order.
func (r *Registry) InheritedProtocols(name string) []string {
	seen := map[string]bool{}
	var visit func(string)
	visit = func(n string) {
		p, ok := r.protocols[n]
		if !ok {
			return
		}
		for _, parent := range p.Inherits {
			if !seen[parent] {
				seen[parent] = true
				visit(parent)
			}
		}
	}
	visit(name)
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Inherits reports whether protocol p transitively inherits q.
func (r *Registry) Inherits(p, q string) bool {
	for _, n := range r.InheritedProtocols(p) {
		if n == q {
			return true
		}
	}
	return false
}

// Substitute replaces the depth-0 parameters of t with args. Declarations
// state their members in their own generic context; substituting the
// context's arguments moves them into the caller's.
func Substitute(t types.Type, args []types.Type) types.Type {
	return apply(t, args)
}

// apply substitutes args for the depth-0 parameters of t.
func apply(t types.Type, args []types.Type) types.Type {
	return types.Transform(t, func(sub types.Type) (types.Type, bool) {
		if p, ok := sub.(types.Param); ok && p.Depth == 0 && p.Index < len(args) {
			return args[p.Index], true
		}
		return nil, false
	})
}

// Superclass returns the direct superclass of t with t's generic arguments
// substituted through.
func (r *Registry) Superclass(t types.Nominal) (types.Nominal, bool) {
	c, ok := r.classes[t.Name]
	if !ok || c.Super == nil {
		return types.Nominal{}, false
	}
	super := apply(*c.Super, t.Args)
	return super.(types.Nominal), true
}

// SuperclassToAncestor walks t's superclass chain until it reaches a class
// named ancestor, substituting generic arguments at each step. The second
// result is false when ancestor is not in the chain.
func (r *Registry) SuperclassToAncestor(t types.Nominal, ancestor string) (types.Nominal, bool) {
	for {
		if t.Name == ancestor {
			return t, true
		}
		super, ok := r.Superclass(t)
		if !ok {
			return types.Nominal{}, false
		}
		t = super
	}
}

// IsSuperclassOf reports whether general's class is an ancestor of derived's.
func (r *Registry) IsSuperclassOf(general, derived types.Nominal) bool {
	_, ok := r.SuperclassToAncestor(derived, general.Name)
	return ok
}

// LookupConformance finds the conformance of the nominal type t to proto,
// searching t's superclass chain. The returned substitution maps the
// conformance's generic context into t's arguments; callers substitute it
// into witnesses and conditional requirements.
func (r *Registry) LookupConformance(t types.Nominal, proto string) (*Conformance, []types.Type, bool) {
	for {
		if c, ok := r.conformances[t.Name+":"+proto]; ok {
			return c, t.Args, true
		}
		super, ok := r.Superclass(t)
		if !ok {
			return nil, nil, false
		}
		t = super
	}
}

// LookupWitness resolves the type witness for proto's associated type named
// member in the conforming type t, fully substituted.
func (r *Registry) LookupWitness(t types.Nominal, proto, member string) (types.Type, bool) {
	c, args, ok := r.LookupConformance(t, proto)
	if !ok {
		return nil, false
	}
	w, ok := c.Witnesses[member]
	if !ok {
		return nil, false
	}
	return apply(w, args), true
}

// LookupNestedType resolves t.name without knowing the protocol, searching
// every conformance of t (and of its superclass chain). Used by concrete
// contraction, where member references are still unresolved.
func (r *Registry) LookupNestedType(t types.Type, name string) (types.Type, bool) {
	n, ok := t.(types.Nominal)
	if !ok {
		return nil, false
	}
	for {
		// Deterministic order over the conformance map.
		for _, k := range sortedKeys(r.conformances) {
			c := r.conformances[k]
			if c.TypeName != n.Name {
				continue
			}
			if w, ok := c.Witnesses[name]; ok {
				return apply(w, n.Args), true
			}
		}
		super, ok := r.Superclass(n)
		if !ok {
			return nil, false
		}
		n = super
	}
}

// ProtocolSuperclassBound returns the superclass constraint proto places on
// Self, when it has one.
func (r *Registry) ProtocolSuperclassBound(proto string) (types.Nominal, bool) {
	p, ok := r.protocols[proto]
	if !ok {
		return types.Nominal{}, false
	}
	self := types.Param{Depth: 0, Index: 0}
	for _, req := range p.Requirements {
		if req.Kind == SuperclassRequirement && types.Equal(req.Subject, self) {
			if n, ok := req.Constraint.(types.Nominal); ok {
				return n, true
			}
		}
	}
	return types.Nominal{}, false
}
