package decl

import (
	"github.com/lunalang/generics/internal/types"
)

// RequirementKind tags the four requirement forms accepted as input.
type RequirementKind int

const (
	// ConformanceRequirement constrains the subject to conform to a protocol.
	ConformanceRequirement RequirementKind = iota
	// SuperclassRequirement constrains the subject to inherit from a class.
	SuperclassRequirement
	// LayoutRequirement constrains the subject's layout.
	LayoutRequirement
	// SameTypeRequirement equates the subject with another type parameter or
	// with a concrete type.
	SameTypeRequirement
)

// Requirement is an input requirement triple. Subject is always a type
// parameter (a Param or a Member chain). Depending on Kind exactly one of
// Protocol, Constraint or Layout carries the object.
type Requirement struct {
	Kind       RequirementKind
	Subject    types.Type
	Constraint types.Type
	Protocol   string
	Layout     Layout

	// Inferred marks requirements introduced by inference rather than
	// written by the user; they never anchor minimization.
	Inferred bool
}

func (r Requirement) String() string {
	switch r.Kind {
	case ConformanceRequirement:
		return r.Subject.String() + " : " + r.Protocol
	case SuperclassRequirement:
		return r.Subject.String() + " : " + r.Constraint.String()
	case LayoutRequirement:
		return r.Subject.String() + " : " + r.Layout.String()
	case SameTypeRequirement:
		return r.Subject.String() + " == " + r.Constraint.String()
	}
	return "?"
}

// AssociatedType is an associated type declared by a protocol.
type AssociatedType struct {
	Name string
}

// Protocol is a protocol declaration. Requirement subjects are rooted at
// Param{0,0}, the implicit Self.
type Protocol struct {
	Name            string
	Inherits        []string
	AssociatedTypes []AssociatedType
	Requirements    []Requirement
}

// HasAssociatedType reports whether the protocol itself declares name.
func (p *Protocol) HasAssociatedType(name string) bool {
	for _, at := range p.AssociatedTypes {
		if at.Name == name {
			return true
		}
	}
	return false
}

// Class is a class declaration. Super, when set, is expressed in the class's
// own generic context: Param{0,i} in Super refers to the class's i-th
// parameter.
type Class struct {
	Name      string
	NumParams int
	Super     *types.Nominal
}

// Conformance is a concrete type's conformance to a protocol. Type witnesses
// and conditional requirements are expressed in the conforming type's generic
// context, like Class.Super.
type Conformance struct {
	TypeName    string
	Protocol    string
	Witnesses   map[string]types.Type
	Conditional []Requirement
}
