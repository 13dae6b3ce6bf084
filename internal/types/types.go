package types

import (
	"fmt"
	"strings"
)

// Type is a schematic concrete type as it appears in requirements and in
// superclass/concrete-type symbols. Type parameters appear either as Param
// (a root generic parameter) or as Member chains rooted at a Param; inside
// symbol payloads they are replaced by numbered Placeholders that index into
// the symbol's substitution terms.
type Type interface {
	String() string
}

// Nominal is a named type, possibly applied to generic arguments.
// Whether it names a class, a struct or something else is the declaration
// registry's business, not the type's.
type Nominal struct {
	Name string
	Args []Type
}

// Tuple is a fixed-arity aggregate of element types.
type Tuple struct {
	Elements []Type
}

// Func is a function type.
type Func struct {
	Params []Type
	Result Type
}

// Param is a generic type parameter at a (depth, index) position.
type Param struct {
	Depth int
	Index int
}

// Member is a dependent member type Base.Name. Protocol names the protocol
// whose associated type resolves the member; it is empty while the member is
// still unresolved.
type Member struct {
	Base     Type
	Name     string
	Protocol string
}

// Placeholder stands for a substitution term inside a schema type.
type Placeholder struct {
	Index int
}

func (t Nominal) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

func (t Tuple) String() string {
	parts := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (t Func) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, ", ") + ") -> " + t.Result.String()
}

func (t Param) String() string {
	return fmt.Sprintf("τ_%d_%d", t.Depth, t.Index)
}

func (t Member) String() string {
	if t.Protocol != "" {
		return t.Base.String() + ".[" + t.Protocol + ":" + t.Name + "]"
	}
	return t.Base.String() + "." + t.Name
}

func (t Placeholder) String() string {
	return fmt.Sprintf("σ_%d", t.Index)
}

// Equal reports structural equality.
func Equal(a, b Type) bool {
	switch a := a.(type) {
	case Nominal:
		b, ok := b.(Nominal)
		if !ok || a.Name != b.Name || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !Equal(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	case Tuple:
		b, ok := b.(Tuple)
		if !ok || len(a.Elements) != len(b.Elements) {
			return false
		}
		for i := range a.Elements {
			if !Equal(a.Elements[i], b.Elements[i]) {
				return false
			}
		}
		return true
	case Func:
		b, ok := b.(Func)
		if !ok || len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if !Equal(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return Equal(a.Result, b.Result)
	case Param:
		b, ok := b.(Param)
		return ok && a == b
	case Member:
		b, ok := b.(Member)
		return ok && a.Name == b.Name && a.Protocol == b.Protocol && Equal(a.Base, b.Base)
	case Placeholder:
		b, ok := b.(Placeholder)
		return ok && a == b
	}
	return false
}

// IsTypeParameter reports whether t is a generic parameter or a member chain
// rooted at one.
func IsTypeParameter(t Type) bool {
	for {
		switch tt := t.(type) {
		case Param:
			return true
		case Member:
			t = tt.Base
		default:
			return false
		}
	}
}

// HasTypeParameter reports whether any subterm of t is a type parameter.
func HasTypeParameter(t Type) bool {
	found := false
	Walk(t, func(sub Type) {
		switch sub.(type) {
		case Param, Member:
			found = true
		}
	})
	return found
}

// HasPlaceholder reports whether any subterm of t is a schema placeholder.
func HasPlaceholder(t Type) bool {
	found := false
	Walk(t, func(sub Type) {
		if _, ok := sub.(Placeholder); ok {
			found = true
		}
	})
	return found
}

// NestingDepth is the structural depth of t, counting each level of generic
// argument, tuple element or function position.
func NestingDepth(t Type) int {
	max := 0
	children := func(ts []Type) {
		for _, c := range ts {
			if d := NestingDepth(c); d > max {
				max = d
			}
		}
	}
	switch tt := t.(type) {
	case Nominal:
		children(tt.Args)
	case Tuple:
		children(tt.Elements)
	case Func:
		children(tt.Params)
		children([]Type{tt.Result})
	case Member:
		children([]Type{tt.Base})
	}
	return max + 1
}
