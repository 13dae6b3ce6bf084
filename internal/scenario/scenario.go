// Package scenario loads declaration sets and requirement lists from YAML
// files. The gendump tool and the fixture tests share it.
package scenario

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

// Scenario is the YAML schema of one input file. Requirement strings read
// "subject : Protocol", "subject : Class", "subject : layout" or
// "subject == type"; see parse.go for the type grammar.
type Scenario struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`

	Protocols []ProtocolDecl    `yaml:"protocols"`
	Classes   []ClassDecl       `yaml:"classes"`
	Conforms  []ConformanceDecl `yaml:"conformances"`

	Requirements []string `yaml:"requirements"`

	// Protocol whose requirement signature to compute instead of a
	// top-level signature.
	Minimize string `yaml:"minimize_protocol"`
}

type ProtocolDecl struct {
	Name            string   `yaml:"name"`
	Inherits        []string `yaml:"inherits"`
	AssociatedTypes []string `yaml:"associated_types"`
	Requirements    []string `yaml:"requirements"`
}

type ClassDecl struct {
	Name   string `yaml:"name"`
	Params int    `yaml:"params"`
	Super  string `yaml:"super"`
}

type ConformanceDecl struct {
	Type        string            `yaml:"type"`
	Protocol    string            `yaml:"protocol"`
	Witnesses   map[string]string `yaml:"witnesses"`
	Conditional []string          `yaml:"conditional"`
}

// Load parses a scenario file.
func Load(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &s, nil
}

// signatureParams builds the parameter table of the scenario's top-level
// signature.
func (s *Scenario) signatureParams() map[string]int {
	params := map[string]int{}
	for i, name := range s.Params {
		params[name] = i
	}
	return params
}

// Build constructs the registry and the top-level requirement list.
// Declarations are registered first so requirement parsing can classify a
// bare right hand side as class or protocol.
func (s *Scenario) Build() (*decl.Registry, []decl.Requirement, error) {
	registry := decl.NewRegistry()

	// Declaration contexts address their parameters as @0, @1, ...; the
	// parser resolves those without a name table.
	declParams := map[string]int{}

	protos := make([]*decl.Protocol, len(s.Protocols))
	for i, pd := range s.Protocols {
		proto := &decl.Protocol{Name: pd.Name, Inherits: pd.Inherits}
		for _, name := range pd.AssociatedTypes {
			proto.AssociatedTypes = append(proto.AssociatedTypes, decl.AssociatedType{Name: name})
		}
		if err := registry.AddProtocol(proto); err != nil {
			return nil, nil, err
		}
		protos[i] = proto
	}

	for _, cd := range s.Classes {
		class := &decl.Class{Name: cd.Name, NumParams: cd.Params}
		if cd.Super != "" {
			super, err := ParseType(cd.Super, declParams)
			if err != nil {
				return nil, nil, fmt.Errorf("class %s: %w", cd.Name, err)
			}
			n, ok := super.(types.Nominal)
			if !ok {
				return nil, nil, fmt.Errorf("class %s: superclass %s is not nominal", cd.Name, super)
			}
			class.Super = &n
		}
		if err := registry.AddClass(class); err != nil {
			return nil, nil, err
		}
	}

	for i, pd := range s.Protocols {
		for _, line := range pd.Requirements {
			req, err := parseRequirement(registry, line, declParams)
			if err != nil {
				return nil, nil, fmt.Errorf("protocol %s: %w", pd.Name, err)
			}
			protos[i].Requirements = append(protos[i].Requirements, req)
		}
	}

	for _, cf := range s.Conforms {
		conformance := &decl.Conformance{
			TypeName:  cf.Type,
			Protocol:  cf.Protocol,
			Witnesses: map[string]types.Type{},
		}
		for name, expr := range cf.Witnesses {
			w, err := ParseType(expr, declParams)
			if err != nil {
				return nil, nil, fmt.Errorf("conformance %s: %s: %w", cf.Type, cf.Protocol, err)
			}
			conformance.Witnesses[name] = w
		}
		for _, line := range cf.Conditional {
			req, err := parseRequirement(registry, line, declParams)
			if err != nil {
				return nil, nil, fmt.Errorf("conformance %s: %s: %w", cf.Type, cf.Protocol, err)
			}
			conformance.Conditional = append(conformance.Conditional, req)
		}
		if err := registry.AddConformance(conformance); err != nil {
			return nil, nil, err
		}
	}

	sigParams := s.signatureParams()
	var reqs []decl.Requirement
	for _, line := range s.Requirements {
		req, err := parseRequirement(registry, line, sigParams)
		if err != nil {
			return nil, nil, err
		}
		reqs = append(reqs, req)
	}

	return registry, reqs, nil
}

// parseRequirement parses one requirement line.
func parseRequirement(registry *decl.Registry, line string, params map[string]int) (decl.Requirement, error) {
	if lhs, rhs, ok := splitOperator(line, "=="); ok {
		subject, err := ParseType(lhs, params)
		if err != nil {
			return decl.Requirement{}, err
		}
		constraint, err := ParseType(rhs, params)
		if err != nil {
			return decl.Requirement{}, err
		}
		return decl.Requirement{
			Kind:       decl.SameTypeRequirement,
			Subject:    subject,
			Constraint: constraint,
		}, nil
	}

	lhs, rhs, ok := splitOperator(line, ":")
	if !ok {
		return decl.Requirement{}, fmt.Errorf("requirement %q has neither ':' nor '=='", line)
	}
	subject, err := ParseType(lhs, params)
	if err != nil {
		return decl.Requirement{}, err
	}

	if layout, ok := parseLayout(rhs); ok {
		return decl.Requirement{
			Kind:    decl.LayoutRequirement,
			Subject: subject,
			Layout:  layout,
		}, nil
	}

	constraint, err := ParseType(rhs, params)
	if err != nil {
		return decl.Requirement{}, err
	}
	if n, isNominal := constraint.(types.Nominal); isNominal {
		if _, isClass := registry.Class(n.Name); !isClass && len(n.Args) == 0 {
			return decl.Requirement{
				Kind:     decl.ConformanceRequirement,
				Subject:  subject,
				Protocol: n.Name,
			}, nil
		}
	}
	return decl.Requirement{
		Kind:       decl.SuperclassRequirement,
		Subject:    subject,
		Constraint: constraint,
	}, nil
}

// splitOperator splits line at the first occurrence of op outside square
// brackets; resolved member syntax carries a ':' inside brackets.
func splitOperator(line, op string) (string, string, bool) {
	depth := 0
	for i := 0; i+len(op) <= len(line); i++ {
		switch line[i] {
		case '[':
			depth++
		case ']':
			depth--
		}
		if depth == 0 && line[i:i+len(op)] == op {
			return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+len(op):]), true
		}
	}
	return "", "", false
}

func parseLayout(s string) (decl.Layout, bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "AnyObject":
		return decl.Layout{Kind: decl.LayoutAnyObject}, true
	case "_NativeClass":
		return decl.Layout{Kind: decl.LayoutNativeClass}, true
	case "_Trivial":
		return decl.Layout{Kind: decl.LayoutTrivial}, true
	}
	if strings.HasPrefix(s, "_Trivial(") && strings.HasSuffix(s, ")") {
		inner := s[len("_Trivial(") : len(s)-1]
		parts := strings.Split(inner, ",")
		if len(parts) != 2 {
			return decl.Layout{}, false
		}
		size, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		align, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			return decl.Layout{}, false
		}
		return decl.Layout{Kind: decl.LayoutTrivialSized, Size: size, Alignment: align}, true
	}
	return decl.Layout{}, false
}
