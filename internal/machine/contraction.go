package machine

import (
	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

// Concrete contraction is a pre-pass over desugared requirements. A generic
// parameter equated with a concrete type, or bounded by a superclass, can be
// substituted into the other requirements before rule building; conformance
// requirements whose subject becomes a conforming concrete type are dropped.
// The defining requirements themselves stay in the result.
//
// The pass is all-or-nothing: any member lookup the registry cannot resolve
// aborts it, and the requirements are used unchanged.

type contraction struct {
	registry *decl.Registry

	concreteTypes map[types.Param]types.Type
	superclasses  map[types.Param]types.Type
	conformances  map[types.Param][]string
}

// contractConcreteTypes substitutes concretely-bound generic parameters into
// the requirement list and re-desugars the result. The second result is
// false when nothing was contracted, including the abort case.
func contractConcreteTypes(registry *decl.Registry, reqs []decl.Requirement) ([]decl.Requirement, bool) {
	c := &contraction{
		registry:      registry,
		concreteTypes: map[types.Param]types.Type{},
		superclasses:  map[types.Param]types.Type{},
		conformances:  map[types.Param][]string{},
	}

	for _, req := range reqs {
		param, ok := req.Subject.(types.Param)
		if !ok {
			continue
		}
		switch req.Kind {
		case decl.SameTypeRequirement:
			if types.IsTypeParameter(req.Constraint) {
				continue
			}
			if _, seen := c.concreteTypes[param]; !seen {
				c.concreteTypes[param] = req.Constraint
			}
		case decl.SuperclassRequirement:
			if _, seen := c.superclasses[param]; !seen {
				c.superclasses[param] = req.Constraint
			}
		case decl.ConformanceRequirement:
			c.conformances[param] = append(c.conformances[param], req.Protocol)
		}
	}

	// A protocol whose own superclass bound equals the parameter's would
	// make the substitution circular: resolving members through the bound
	// re-derives the very requirement being contracted.
	for param, super := range c.superclasses {
		blocked := false
		for _, proto := range c.conformances[param] {
			if bound, ok := registry.ProtocolSuperclassBound(proto); ok {
				if types.Equal(bound, super) {
					blocked = true
					break
				}
			}
		}
		if blocked {
			delete(c.superclasses, param)
		}
	}

	if len(c.concreteTypes) == 0 && len(c.superclasses) == 0 {
		return reqs, false
	}

	var out []decl.Requirement
	anyChanged := false
	for _, req := range reqs {
		substituted, changed, ok := c.substituteRequirement(req)
		if !ok {
			return reqs, false
		}
		if changed {
			anyChanged = true
		}
		out = append(out, substituted...)
	}
	if !anyChanged {
		return reqs, false
	}

	desugared, errs := desugarRequirements(registry, out)
	if len(errs) > 0 {
		return reqs, false
	}
	return desugared, true
}

// substituteTypeParameter replaces the contracted root of a type parameter
// and resolves the remaining member chain against the registry. A superclass
// bound substitutes only when resolving a member base; a bare parameter is
// replaced only by a concrete type. The last result is false when a member
// lookup failed on a substituted base.
func (c *contraction) substituteTypeParameter(t types.Type, viaSuperclass bool) (types.Type, bool, bool) {
	switch tt := t.(type) {
	case types.Param:
		if concrete, ok := c.concreteTypes[tt]; ok {
			return concrete, true, true
		}
		if viaSuperclass {
			if super, ok := c.superclasses[tt]; ok {
				return super, true, true
			}
		}
		return t, false, true

	case types.Member:
		base, changed, ok := c.substituteTypeParameter(tt.Base, true)
		if !ok {
			return nil, false, false
		}
		if !changed {
			return t, false, true
		}
		if types.IsTypeParameter(base) {
			return types.Member{Base: base, Name: tt.Name, Protocol: tt.Protocol}, true, true
		}
		if tt.Protocol != "" {
			n, isNominal := base.(types.Nominal)
			if !isNominal {
				return nil, false, false
			}
			if w, ok := c.registry.LookupWitness(n, tt.Protocol, tt.Name); ok {
				return w, true, true
			}
			return nil, false, false
		}
		if w, ok := c.registry.LookupNestedType(base, tt.Name); ok {
			return w, true, true
		}
		return nil, false, false
	}
	return t, false, true
}

// substituteType substitutes every type parameter occurring in t, including
// those in structural position inside a concrete type.
func (c *contraction) substituteType(t types.Type) (types.Type, bool, bool) {
	if types.IsTypeParameter(t) {
		return c.substituteTypeParameter(t, false)
	}
	changed := false
	failed := false
	out := types.Transform(t, func(sub types.Type) (types.Type, bool) {
		if !types.IsTypeParameter(sub) {
			return nil, false
		}
		s, ch, ok := c.substituteTypeParameter(sub, false)
		if !ok {
			failed = true
			return sub, true
		}
		if ch {
			changed = true
			return s, true
		}
		return sub, true
	})
	if failed {
		return nil, false, false
	}
	return out, changed, true
}

// substituteRequirement rewrites one requirement through the contraction.
// An empty result with changed true means the requirement was discharged.
func (c *contraction) substituteRequirement(req decl.Requirement) ([]decl.Requirement, bool, bool) {
	keep := []decl.Requirement{req}

	switch req.Kind {
	case decl.ConformanceRequirement:
		if param, ok := req.Subject.(types.Param); ok {
			bound, ok := c.concreteTypes[param]
			if !ok {
				bound, ok = c.superclasses[param]
			}
			if !ok {
				return keep, false, true
			}
			n, isNominal := bound.(types.Nominal)
			if !isNominal {
				return keep, false, true
			}
			if _, _, conforms := c.registry.LookupConformance(n, req.Protocol); conforms {
				return nil, true, true
			}
			return keep, false, true
		}

		subject, changed, ok := c.substituteTypeParameter(req.Subject, false)
		if !ok {
			return nil, false, false
		}
		if !changed {
			return keep, false, true
		}
		if types.IsTypeParameter(subject) {
			req.Subject = subject
			return []decl.Requirement{req}, true, true
		}
		n, isNominal := subject.(types.Nominal)
		if !isNominal {
			return nil, false, false
		}
		if _, _, conforms := c.registry.LookupConformance(n, req.Protocol); conforms {
			return nil, true, true
		}
		return nil, false, false

	case decl.SuperclassRequirement, decl.LayoutRequirement:
		if _, ok := req.Subject.(types.Param); ok {
			// The defining bound of a contracted parameter stays.
			return keep, false, true
		}
		subject, changed, ok := c.substituteTypeParameter(req.Subject, false)
		if !ok {
			return nil, false, false
		}
		if !changed {
			return keep, false, true
		}
		if !types.IsTypeParameter(subject) {
			// A concrete subject discharges the bound; the conformance
			// lookups above already vouched for the substitution.
			return nil, true, true
		}
		req.Subject = subject
		return []decl.Requirement{req}, true, true

	case decl.SameTypeRequirement:
		changedAny := false

		if _, isParam := req.Subject.(types.Param); !isParam {
			subject, changed, ok := c.substituteTypeParameter(req.Subject, false)
			if !ok {
				return nil, false, false
			}
			if changed {
				req.Subject = subject
				changedAny = true
			}
		}

		constraint, changed, ok := c.substituteType(req.Constraint)
		if !ok {
			return nil, false, false
		}
		if changed {
			req.Constraint = constraint
			changedAny = true
		}

		return []decl.Requirement{req}, changedAny, true
	}

	return keep, false, true
}
