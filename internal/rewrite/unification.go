package rewrite

import (
	"fmt"

	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

// Merging of layout, superclass and concrete type properties on one key.
// Merging two bounds can imply new requirements on substitution terms; those
// are added back to the rewrite system as induced rules, and property map
// construction is iterated with completion until nothing new appears.

// recordPropertyRelation adds the rule key.[p2] => key induced by an
// existing rule whose property [p1] implies [p2]. The recorded path applies
// the existing rule in reverse, collapses [p1].[p2] to [p1] through a
// relation, and applies the rule forward again.
func (m *PropertyMap) recordPropertyRelation(key *Term, lhsRuleID int, rhsProperty *Symbol) {
	sys := m.sys
	lhsRule := sys.Rule(lhsRuleID)
	lhsProperty := lhsRule.lhs.Back()

	sys.debugf("%% recording relation: %s < %s\n", lhsRule.lhs, rhsProperty)

	relationID := sys.RecordRelation(
		sys.ctx.Term(lhsProperty, rhsProperty),
		sys.ctx.Term(lhsProperty))

	var path RewritePath
	path.Add(ruleStep(key.Len()-lhsRule.rhs.Len(), 1, lhsRuleID, true))
	path.Add(relationStep(key.Len(), 0, relationID, false))
	path.Add(ruleStep(key.Len()-lhsRule.rhs.Len(), 0, lhsRuleID, false))

	lhs := key.Mutable()
	lhs.Add(rhsProperty)
	sys.AddRule(lhs, key.Mutable(), &path)
}

// recordConflict marks the property rules of an unsatisfiable pair. Only
// rules anchored exactly at the key are marked; an inherited rule is marked
// at its own key, where the same conflict is detected again. A conflicting
// superclass keeps the existing rule, so the more derived bound survives for
// diagnostics.
func (m *PropertyMap) recordConflict(key *Term, existingRuleID, newRuleID int) {
	existing := m.sys.Rule(existingRuleID)
	newRule := m.sys.Rule(newRuleID)

	existingKind := existing.PropertySymbol().Kind()
	newKind := newRule.PropertySymbol().Kind()

	if existingKind != SymbolSuperclass && existingKind == newKind &&
		existing.rhs.Len() == key.Len() {
		existing.markConflicting()
	}
	if newRule.rhs.Len() == key.Len() {
		newRule.markConflicting()
	}
}

func (m *PropertyMap) addLayoutProperty(key *Term, property *Symbol, ruleID int) {
	bag := m.getOrCreateProperties(key)
	newLayout := property.Layout()

	if !bag.hasLayout {
		bag.layout = newLayout
		bag.hasLayout = true
		bag.layoutRule = ruleID
		return
	}

	merged, ok := bag.layout.Merge(newLayout)
	if !ok {
		m.recordConflict(key, bag.layoutRule, ruleID)
		return
	}

	switch merged {
	case bag.layout:
		// The new layout is implied by the existing one.
		if m.checkRulePairOnce(bag.layoutRule, ruleID) {
			m.recordPropertyRelation(key, bag.layoutRule, property)
		}
	case newLayout:
		// The existing layout is implied by the new one.
		if m.checkRulePairOnce(ruleID, bag.layoutRule) {
			oldProperty := m.sys.Rule(bag.layoutRule).lhs.Back()
			m.recordPropertyRelation(key, ruleID, oldProperty)
		}
		bag.layout = newLayout
		bag.layoutRule = ruleID
	default:
		panic(fmt.Sprintf("layout intersection %s is neither operand", merged))
	}
}

func (m *PropertyMap) addSuperclassProperty(key *Term, property *Symbol, ruleID int) {
	bag := m.getOrCreateProperties(key)

	// A superclass bound implies a class layout.
	if m.checkRuleOnce(ruleID) {
		layoutSymbol := m.ctx.LayoutSymbol(decl.Layout{Kind: decl.LayoutAnyObject})
		m.recordPropertyRelation(key, ruleID, layoutSymbol)
	}

	if bag.superclass == nil {
		bag.superclass = property
		bag.superclassRule = ruleID
		return
	}

	merged, conflict := m.unifySuperclasses(bag.superclass, property)
	bag.superclass = merged
	if conflict {
		m.recordConflict(key, bag.superclassRule, ruleID)
	}
}

// unifySuperclasses merges two superclass bounds on one key. The more
// derived class wins; its superclass at the level of the more general one is
// unified argument by argument, inducing requirements on the substitutions.
// conflict is true when the classes are unrelated or the arguments clash.
func (m *PropertyMap) unifySuperclasses(lhs, rhs *Symbol) (*Symbol, bool) {
	m.sys.debugf("%% unifying %s with %s\n", lhs, rhs)

	registry := m.ctx.registry
	lhsType, lhsOK := lhs.ConcreteType().(types.Nominal)
	rhsType, rhsOK := rhs.ConcreteType().(types.Nominal)
	if !lhsOK || !rhsOK {
		return lhs, true
	}

	// Establish that lhs names the more general class.
	switch {
	case lhsType.Name == rhsType.Name || registry.IsSuperclassOf(lhsType, rhsType):
	case registry.IsSuperclassOf(rhsType, lhsType):
		lhs, rhs = rhs, lhs
		lhsType, rhsType = rhsType, lhsType
	default:
		return lhs, true
	}

	rhsAtAncestor := rhsType
	if lhsType.Name != rhsType.Name {
		rhsAtAncestor, _ = registry.SuperclassToAncestor(rhsType, lhsType.Name)
	}

	if !m.unifyConcreteTypes(lhs.ConcreteType(), lhs.Substitutions(),
		rhsAtAncestor, rhs.Substitutions()) {
		return rhs, true
	}

	// The more derived class becomes the recorded bound.
	return rhs, false
}

// unifyConcreteTypes walks two schema types in parallel, adding an induced
// rule at every position where at least one side is a type parameter.
// Returns false on a structural mismatch between two concrete positions.
func (m *PropertyMap) unifyConcreteTypes(l types.Type, lhsSubs []*Term, r types.Type, rhsSubs []*Term) bool {
	lAbstract := isSchemaTypeParameter(l)
	rAbstract := isSchemaTypeParameter(r)

	switch {
	case lAbstract && rAbstract:
		lhsTerm := m.ctx.RelativeTermForType(l, lhsSubs)
		rhsTerm := m.ctx.RelativeTermForType(r, rhsSubs)
		if !lhsTerm.Equal(rhsTerm) {
			m.sys.debugf("%%%% induced rule %s == %s\n", lhsTerm, rhsTerm)
			m.sys.AddRule(lhsTerm, rhsTerm, nil)
		}
		return true

	case lAbstract:
		subject := m.ctx.RelativeTermForType(l, lhsSubs)
		schema, subs := m.ctx.RelativeSchemaForType(r, rhsSubs)
		constraint := subject.Clone()
		constraint.Add(m.ctx.ConcreteTypeSymbol(schema, subs))
		m.sys.debugf("%%%% induced rule %s == %s\n", constraint, subject)
		m.sys.AddRule(constraint, subject, nil)
		return true

	case rAbstract:
		subject := m.ctx.RelativeTermForType(r, rhsSubs)
		schema, subs := m.ctx.RelativeSchemaForType(l, lhsSubs)
		constraint := subject.Clone()
		constraint.Add(m.ctx.ConcreteTypeSymbol(schema, subs))
		m.sys.debugf("%%%% induced rule %s == %s\n", constraint, subject)
		m.sys.AddRule(constraint, subject, nil)
		return true
	}

	switch lt := l.(type) {
	case types.Nominal:
		rt, ok := r.(types.Nominal)
		if !ok || lt.Name != rt.Name || len(lt.Args) != len(rt.Args) {
			return false
		}
		for i := range lt.Args {
			if !m.unifyConcreteTypes(lt.Args[i], lhsSubs, rt.Args[i], rhsSubs) {
				return false
			}
		}
		return true

	case types.Tuple:
		rt, ok := r.(types.Tuple)
		if !ok || len(lt.Elements) != len(rt.Elements) {
			return false
		}
		for i := range lt.Elements {
			if !m.unifyConcreteTypes(lt.Elements[i], lhsSubs, rt.Elements[i], rhsSubs) {
				return false
			}
		}
		return true

	case types.Func:
		rt, ok := r.(types.Func)
		if !ok || len(lt.Params) != len(rt.Params) {
			return false
		}
		for i := range lt.Params {
			if !m.unifyConcreteTypes(lt.Params[i], lhsSubs, rt.Params[i], rhsSubs) {
				return false
			}
		}
		return m.unifyConcreteTypes(lt.Result, lhsSubs, rt.Result, rhsSubs)
	}

	return types.Equal(l, r)
}

// processTypeDifference adds the induced rules of one difference: a
// same-type rule for every equated substitution pair and a concrete type
// rule for every fixed substitution.
func (m *PropertyMap) processTypeDifference(d *TypeDifference) {
	m.sys.debugf("%% type difference %s\n", d)

	for _, pair := range d.SameTypes {
		lhsTerm := d.LHS.Substitutions()[pair[0]].Mutable()
		rhsTerm := d.RHS.Substitutions()[pair[1]].Mutable()
		m.sys.AddRule(lhsTerm, rhsTerm, nil)
	}
	for _, mismatch := range d.ConcreteTypes {
		rhsTerm := d.LHS.Substitutions()[mismatch.Index].Mutable()
		lhsTerm := rhsTerm.Clone()
		lhsTerm.Add(mismatch.Symbol)
		m.sys.AddRule(lhsTerm, rhsTerm, nil)
	}
}

func (m *PropertyMap) addConcreteTypeProperty(key *Term, property *Symbol, ruleID int) {
	bag := m.getOrCreateProperties(key)

	if bag.concreteType == nil {
		bag.concreteType = property
		bag.concreteTypeRule = ruleID
		return
	}

	m.sys.debugf("%% unifying %s with %s\n", bag.concreteType, property)

	lhsDiffID, rhsDiffID, conflict := m.sys.ComputeTypeDifference(bag.concreteType, property)
	if conflict {
		m.recordConflict(key, bag.concreteTypeRule, ruleID)
		return
	}

	switch {
	case lhsDiffID >= 0 && rhsDiffID >= 0:
		// The meet is distinct from both sides. Record the meet as a new
		// rule, then process both differences against it.
		lhsDiff := m.sys.TypeDifference(lhsDiffID)
		rhsDiff := m.sys.TypeDifference(rhsDiffID)
		meet := lhsDiff.RHS

		lhsTerm := key.Mutable()
		lhsTerm.Add(meet)
		if m.checkRulePairOnce(bag.concreteTypeRule, ruleID) {
			m.sys.AddRule(lhsTerm.Clone(), key.Mutable(), nil)
		}

		// Recover the rule holding the meet.
		var path RewritePath
		if !m.sys.Simplify(lhsTerm, &path) {
			panic("meet of two concrete types did not simplify")
		}
		if path.Size() != 1 || path.Steps()[0].Kind != StepRule {
			panic("unexpected simplification of concrete type meet")
		}
		meetRuleID := path.Steps()[0].Arg

		if m.checkRulePairOnce(bag.concreteTypeRule, meetRuleID) {
			m.processTypeDifference(lhsDiff)
		}
		if m.checkRulePairOnce(ruleID, meetRuleID) {
			m.processTypeDifference(rhsDiff)
		}

		bag.concreteType = meet
		bag.concreteTypeRule = ruleID

	case lhsDiffID >= 0:
		// The new property is the meet; the existing one maps onto it.
		if m.checkRulePairOnce(bag.concreteTypeRule, ruleID) {
			m.processTypeDifference(m.sys.TypeDifference(lhsDiffID))
		}
		bag.concreteType = property
		bag.concreteTypeRule = ruleID

	case rhsDiffID >= 0:
		// The existing property is the meet; the new one maps onto it.
		if m.checkRulePairOnce(bag.concreteTypeRule, ruleID) {
			m.processTypeDifference(m.sys.TypeDifference(rhsDiffID))
		}

	default:
		// Identical concrete types through two distinct rules: the existing
		// rule is anchored at a suffix, and the new rule repeats it with the
		// substitutions re-rooted. A loop relating the two via a prefixing
		// step makes the new rule redundant.
		if bag.concreteTypeRule == ruleID {
			return
		}
		if m.checkRulePairOnce(bag.concreteTypeRule, ruleID) {
			other := m.sys.Rule(bag.concreteTypeRule)
			adjustment := key.Len() - other.rhs.Len()
			if adjustment > 0 {
				var path RewritePath
				path.Add(ruleStep(adjustment, 0, bag.concreteTypeRule, true))
				path.Add(prefixSubstitutionsStep(adjustment, 0, false))
				path.Add(ruleStep(0, 0, ruleID, false))
				m.sys.recordRewriteLoop(key.Mutable(), path)
			}
		}
	}
}
