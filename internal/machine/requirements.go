package machine

import (
	"fmt"

	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

// Desugaring normalizes input requirements into the form rule lowering
// expects: every subject is a type parameter, same-type requirements
// between two concrete types are resolved or rejected, and superclass
// constraints name a class declared in the registry.

// desugarRequirement normalizes one requirement into zero or more lowered
// requirements. A same-type requirement between two equal concrete types
// desugars to nothing; between two unequal concrete types it is an error.
func desugarRequirement(registry *decl.Registry, req decl.Requirement) ([]decl.Requirement, error) {
	switch req.Kind {
	case decl.ConformanceRequirement:
		if !types.IsTypeParameter(req.Subject) {
			// A concrete subject is checked directly against the registry;
			// the requirement itself vanishes.
			n, ok := req.Subject.(types.Nominal)
			if !ok {
				return nil, fmt.Errorf("conformance subject %s is not a type parameter", req.Subject)
			}
			if _, _, ok := registry.LookupConformance(n, req.Protocol); !ok {
				return nil, fmt.Errorf("concrete type %s does not conform to %s", n, req.Protocol)
			}
			return nil, nil
		}
		if _, ok := registry.Protocol(req.Protocol); !ok {
			return nil, fmt.Errorf("unknown protocol %q", req.Protocol)
		}
		return []decl.Requirement{req}, nil

	case decl.SuperclassRequirement:
		if !types.IsTypeParameter(req.Subject) {
			return nil, fmt.Errorf("superclass subject %s is not a type parameter", req.Subject)
		}
		n, ok := req.Constraint.(types.Nominal)
		if !ok {
			return nil, fmt.Errorf("superclass bound %s is not a nominal type", req.Constraint)
		}
		if _, ok := registry.Class(n.Name); !ok {
			return nil, fmt.Errorf("unknown class %q", n.Name)
		}
		return []decl.Requirement{req}, nil

	case decl.LayoutRequirement:
		if !types.IsTypeParameter(req.Subject) {
			return nil, fmt.Errorf("layout subject %s is not a type parameter", req.Subject)
		}
		return []decl.Requirement{req}, nil

	case decl.SameTypeRequirement:
		subjectIsParam := types.IsTypeParameter(req.Subject)
		constraintIsParam := types.IsTypeParameter(req.Constraint)

		switch {
		case subjectIsParam:
			return []decl.Requirement{req}, nil
		case constraintIsParam:
			// Normalize so the subject is the type parameter.
			return []decl.Requirement{{
				Kind:       decl.SameTypeRequirement,
				Subject:    req.Constraint,
				Constraint: req.Subject,
				Inferred:   req.Inferred,
			}}, nil
		case types.Equal(req.Subject, req.Constraint):
			return nil, nil
		default:
			// Two structurally distinct concrete types may still agree
			// positionally; split into piecewise requirements where the
			// shapes line up.
			split, ok := matchConcretePair(req.Subject, req.Constraint, req.Inferred)
			if !ok {
				return nil, fmt.Errorf("same-type requirement between distinct concrete types %s and %s",
					req.Subject, req.Constraint)
			}
			var out []decl.Requirement
			for _, sub := range split {
				desugared, err := desugarRequirement(registry, sub)
				if err != nil {
					return nil, err
				}
				out = append(out, desugared...)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("unknown requirement kind %d", req.Kind)
}

// matchConcretePair walks two concrete types in parallel and produces one
// same-type requirement per position where exactly one side is a type
// parameter. Reports false when the concrete structure disagrees.
func matchConcretePair(lhs, rhs types.Type, inferred bool) ([]decl.Requirement, bool) {
	if types.IsTypeParameter(lhs) || types.IsTypeParameter(rhs) {
		if !types.IsTypeParameter(lhs) {
			lhs, rhs = rhs, lhs
		}
		return []decl.Requirement{{
			Kind:       decl.SameTypeRequirement,
			Subject:    lhs,
			Constraint: rhs,
			Inferred:   inferred,
		}}, true
	}

	matchAll := func(as, bs []types.Type) ([]decl.Requirement, bool) {
		if len(as) != len(bs) {
			return nil, false
		}
		var out []decl.Requirement
		for i := range as {
			sub, ok := matchConcretePair(as[i], bs[i], inferred)
			if !ok {
				return nil, false
			}
			out = append(out, sub...)
		}
		return out, true
	}

	switch a := lhs.(type) {
	case types.Nominal:
		b, ok := rhs.(types.Nominal)
		if !ok || a.Name != b.Name {
			return nil, false
		}
		return matchAll(a.Args, b.Args)
	case types.Tuple:
		b, ok := rhs.(types.Tuple)
		if !ok {
			return nil, false
		}
		return matchAll(a.Elements, b.Elements)
	case types.Func:
		b, ok := rhs.(types.Func)
		if !ok {
			return nil, false
		}
		params, ok := matchAll(a.Params, b.Params)
		if !ok {
			return nil, false
		}
		result, ok := matchConcretePair(a.Result, b.Result, inferred)
		if !ok {
			return nil, false
		}
		return append(params, result...), true
	}

	if types.Equal(lhs, rhs) {
		return nil, true
	}
	return nil, false
}

// desugarRequirements normalizes a whole requirement list, collecting the
// errors rather than stopping at the first.
func desugarRequirements(registry *decl.Registry, reqs []decl.Requirement) ([]decl.Requirement, []error) {
	var out []decl.Requirement
	var errs []error
	for _, req := range reqs {
		desugared, err := desugarRequirement(registry, req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, desugared...)
	}
	return out, errs
}
