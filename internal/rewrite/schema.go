package rewrite

import (
	"fmt"

	"github.com/lunalang/generics/internal/types"
)

// Conversions between types and terms. A type parameter corresponds to a
// term; a concrete type containing type parameters in structural position
// corresponds to a schema type whose placeholders index an array of
// substitution terms.

// TermForTypeParameter converts a type parameter into a term: a Param root
// becomes a generic parameter symbol and each member step appends an
// associated type symbol, or a name symbol while the member is unresolved.
func (c *Context) TermForTypeParameter(t types.Type) *MutableTerm {
	switch tt := t.(type) {
	case types.Param:
		return NewMutableTerm(c.GenericParamSymbol(tt.Depth, tt.Index))
	case types.Member:
		term := c.TermForTypeParameter(tt.Base)
		term.Add(c.memberSymbol(tt))
		return term
	}
	panic(fmt.Sprintf("not a type parameter: %s", t))
}

// RelativeTermForType converts a type parameter stated relative to a
// substitution array: a placeholder root expands to its substitution term.
func (c *Context) RelativeTermForType(t types.Type, substitutions []*Term) *MutableTerm {
	switch tt := t.(type) {
	case types.Placeholder:
		return substitutions[tt.Index].Mutable()
	case types.Param:
		return NewMutableTerm(c.GenericParamSymbol(tt.Depth, tt.Index))
	case types.Member:
		term := c.RelativeTermForType(tt.Base, substitutions)
		term.Add(c.memberSymbol(tt))
		return term
	}
	panic(fmt.Sprintf("not a type parameter: %s", t))
}

func (c *Context) memberSymbol(m types.Member) *Symbol {
	if m.Protocol == "" {
		return c.NameSymbol(m.Name)
	}
	return c.AssociatedTypeSymbol([]string{m.Protocol}, m.Name)
}

// SchemaForType replaces every maximal type parameter subterm of t with a
// numbered placeholder, returning the schema together with the substitution
// terms the placeholders index.
func (c *Context) SchemaForType(t types.Type) (types.Type, []*Term) {
	var subs []*Term
	schema := types.Transform(t, func(sub types.Type) (types.Type, bool) {
		if !types.IsTypeParameter(sub) {
			return nil, false
		}
		index := len(subs)
		term := c.TermForTypeParameter(sub)
		subs = append(subs, c.Term(term.symbols...))
		return types.Placeholder{Index: index}, true
	})
	return schema, subs
}

// RelativeSchemaForType renumbers a schema stated relative to a substitution
// array: every maximal placeholder-rooted subterm becomes a fresh
// placeholder over its expanded term.
func (c *Context) RelativeSchemaForType(t types.Type, substitutions []*Term) (types.Type, []*Term) {
	var subs []*Term
	schema := types.Transform(t, func(sub types.Type) (types.Type, bool) {
		if !isSchemaTypeParameter(sub) {
			return nil, false
		}
		index := len(subs)
		term := c.RelativeTermForType(sub, substitutions)
		subs = append(subs, c.Term(term.symbols...))
		return types.Placeholder{Index: index}, true
	})
	return schema, subs
}

// isSchemaTypeParameter reports whether t stands for a type parameter inside
// a schema: a placeholder, or a member chain rooted at one.
func isSchemaTypeParameter(t types.Type) bool {
	for {
		switch tt := t.(type) {
		case types.Placeholder:
			return true
		case types.Member:
			t = tt.Base
		default:
			return false
		}
	}
}
