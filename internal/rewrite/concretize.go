package rewrite

import (
	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

// Nested type concretization. A key subject to both a conformance
// requirement and a concrete type or superclass bound gets a concrete
// conformance rule, and each associated type of the protocol gets a rule
// equating the nested type with the witness the conformance provides.

// ConditionalLowering converts conditional conformance requirements into
// rewrite rules. The machine layer implements it; the indirection keeps
// requirement lowering out of this package.
type ConditionalLowering interface {
	// AddRulesForProtocol introduces the permanent and requirement rules of
	// proto, first referenced by a conditional requirement.
	AddRulesForProtocol(sys *System, proto string)

	// LowerConditionalRequirement converts req, stated in the conformance's
	// generic context, into a rule pair. args substitutes the conformance
	// context into the concrete type's schema; substitutions interpret the
	// schema's placeholders.
	LowerConditionalRequirement(req decl.Requirement, args []types.Type, substitutions []*Term) (RulePair, bool)
}

// checkConcreteTypeRequirements relates a concrete type bound naming a class
// to the superclass and layout bounds it implies, and flags the conflict
// between a non-class concrete type and a class constraint on the same key.
func (m *PropertyMap) checkConcreteTypeRequirements() {
	for _, bag := range m.entries {
		if bag.concreteType == nil {
			continue
		}
		schema := bag.concreteType.ConcreteType()

		if m.ctx.registry.IsClass(schema) {
			if m.checkRuleOnce(bag.concreteTypeRule) {
				superclassSymbol := m.ctx.SuperclassSymbol(schema, bag.concreteType.Substitutions())
				m.recordPropertyRelation(bag.key, bag.concreteTypeRule, superclassSymbol)

				layoutSymbol := m.ctx.LayoutSymbol(decl.Layout{Kind: decl.LayoutAnyObject})
				m.recordPropertyRelation(bag.key, bag.concreteTypeRule, layoutSymbol)
			}
			continue
		}

		if bag.superclass != nil {
			m.recordConflict(bag.key, bag.concreteTypeRule, bag.superclassRule)
		}
		if bag.hasLayout && bag.layout.IsClass() {
			m.recordConflict(bag.key, bag.concreteTypeRule, bag.layoutRule)
		}
	}
}

func (m *PropertyMap) concretizeNestedTypesFromConcreteParents() {
	for _, bag := range m.entries {
		if len(bag.conformsTo) == 0 {
			continue
		}
		if bag.concreteType != nil {
			m.concretizeNestedTypesFromConcreteParent(bag,
				decl.SameTypeRequirement, bag.concreteTypeRule, bag.concreteType)
		}
		if bag.superclass != nil {
			m.concretizeNestedTypesFromConcreteParent(bag,
				decl.SuperclassRequirement, bag.superclassRule, bag.superclass)
		}
	}
}

func (m *PropertyMap) concretizeNestedTypesFromConcreteParent(
	bag *PropertyBag, kind decl.RequirementKind,
	concreteRuleID int, concreteSymbol *Symbol) {

	key := bag.key
	schema := concreteSymbol.ConcreteType()
	substitutions := concreteSymbol.Substitutions()

	for i, proto := range bag.conformsTo {
		conformanceRuleID := bag.conformsToRules[i]

		pair := [2]int{concreteRuleID, conformanceRuleID}
		if _, done := m.concreteConformances[pair]; done {
			continue
		}

		nominal, isNominal := schema.(types.Nominal)
		var conformance *decl.Conformance
		var args []types.Type
		found := false
		if isNominal {
			conformance, args, found = m.ctx.registry.LookupConformance(nominal, proto)
		}
		if !found {
			// A superclass bound unrelated to the protocol is satisfiable by
			// a conforming subclass; a concrete type missing a required
			// conformance is not.
			if kind == decl.SameTypeRequirement {
				if rule := m.sys.Rule(concreteRuleID); rule.rhs.Len() == key.Len() {
					rule.markConflicting()
				}
				if rule := m.sys.Rule(conformanceRuleID); rule.rhs.Len() == key.Len() {
					rule.markConflicting()
				}
				m.sys.debugf("^^ %s does not conform to %s\n", schema, proto)
			}
			continue
		}

		m.concreteConformances[pair] = conformance

		ccSymbol := m.ctx.ConcreteConformanceSymbol(schema, substitutions, proto)
		m.recordConcreteConformanceRule(concreteRuleID, conformanceRuleID, ccSymbol)

		protocol, ok := m.ctx.registry.Protocol(proto)
		if !ok {
			continue
		}
		for _, assoc := range protocol.AssociatedTypes {
			m.concretizeTypeWitness(key, kind, ccSymbol, conformance, args, assoc.Name)
		}

		// Conditional requirements are inferred in top-level signatures
		// only, never inside protocol requirement signatures.
		if _, rooted := key.RootProtocol(); !rooted && m.lowering != nil {
			m.inferConditionalRequirements(conformance, args, substitutions)
		}
	}
}

// recordConcreteConformanceRule adds the rule T.[concrete: C : P] => T tying
// a concrete type bound and a conformance requirement together, with a path
// deriving it from the two source rules so it never survives minimization.
func (m *PropertyMap) recordConcreteConformanceRule(
	concreteRuleID, conformanceRuleID int, ccSymbol *Symbol) {

	sys := m.sys
	concreteRule := sys.Rule(concreteRuleID)
	conformanceRule := sys.Rule(conformanceRuleID)

	// One key is a suffix of the other; anchor at the longer one.
	rhs := concreteRule.rhs
	if conformanceRule.rhs.Len() > rhs.Len() {
		rhs = conformanceRule.rhs
	}

	var path RewritePath

	// T'' => T''.[P]
	path.Add(ruleStep(rhs.Len()-conformanceRule.rhs.Len(), 0, conformanceRuleID, true))

	// T''.[P] => T''.[concrete: C].[P]
	path.Add(ruleStep(rhs.Len()-concreteRule.rhs.Len(), 1, concreteRuleID, true))

	// Re-root the concrete symbol when the concrete rule is anchored at a
	// proper suffix.
	concreteSymbol := concreteRule.PropertySymbol()
	adjustment := rhs.Len() - concreteRule.rhs.Len()
	if adjustment > 0 && len(ccSymbol.Substitutions()) > 0 {
		path.Add(prefixSubstitutionsStep(adjustment, 1, false))
		concreteSymbol = prependPrefix(m.ctx, concreteSymbol, rhs.Symbols()[:adjustment])
	}

	protocolSymbol := conformanceRule.PropertySymbol()

	// T''.[concrete: C].[P] => T''.[concrete: C : P]
	relationID := sys.RecordRelation(
		sys.ctx.Term(concreteSymbol, protocolSymbol),
		sys.ctx.Term(ccSymbol))
	path.Add(relationStep(rhs.Len(), 0, relationID, false))

	lhs := rhs.Mutable()
	lhs.Add(ccSymbol)

	// The path built above runs from rhs to lhs; the rule needs the other
	// direction.
	path.Invert()
	sys.AddRule(lhs, rhs.Mutable(), &path)
}

// concretizeTypeWitness adds the rule equating T.[concrete: C : P].[P:X]
// with the witness the conformance provides for X.
func (m *PropertyMap) concretizeTypeWitness(
	key *Term, kind decl.RequirementKind, ccSymbol *Symbol,
	conformance *decl.Conformance, args []types.Type, assocName string) {

	witness, ok := conformance.Witnesses[assocName]
	if !ok {
		m.sys.debugf("^^ no witness for %s:%s in %s\n",
			ccSymbol.Protocol(), assocName, ccSymbol.ConcreteType())
		return
	}
	witnessType := decl.Substitute(witness, args)

	m.sys.debugf("^^ witness for %s:%s on %s is %s\n",
		ccSymbol.Protocol(), assocName, ccSymbol.ConcreteType(), witnessType)

	subject := key.Mutable()
	subject.Add(ccSymbol)
	subject.Add(m.ctx.AssociatedTypeSymbol([]string{ccSymbol.Protocol()}, assocName))

	var path RewritePath
	constraint := m.constraintTermForTypeWitness(key, kind, ccSymbol, witnessType, subject, &path)
	if path.Empty() {
		panic("type witness path is empty")
	}
	m.sys.AddRule(constraint, subject, &path)
}

// constraintTermForTypeWitness returns the term a type witness equates the
// subject type with, recording the relation steps that justify the rule.
//
// An abstract witness names another type parameter, producing a same-type
// rule between the two. A fully concrete witness first tries to re-use the
// key of a prefix already fixed to the same concrete type, tying off
// recursive witnesses. Anything else produces a concrete type rule on the
// subject.
func (m *PropertyMap) constraintTermForTypeWitness(
	key *Term, kind decl.RequirementKind, ccSymbol *Symbol,
	witness types.Type, subject *MutableTerm, path *RewritePath) *MutableTerm {

	schema := ccSymbol.ConcreteType()
	substitutions := ccSymbol.Substitutions()
	subjectTerm := m.ctx.Term(subject.Symbols()...)

	if isSchemaTypeParameter(witness) {
		result := m.ctx.RelativeTermForType(witness, substitutions)
		relationID := m.sys.RecordRelation(m.ctx.Term(result.Symbols()...), subjectTerm)
		path.Add(relationStep(0, 0, relationID, false))
		return result
	}

	if !types.HasPlaceholder(witness) {
		for end := key.Len(); end > 0; end-- {
			bag := m.LookupProperties(key.Symbols()[:end])
			if bag == nil || bag.concreteType == nil {
				continue
			}
			if !types.Equal(bag.concreteType.ConcreteType(), witness) {
				continue
			}
			m.sys.debugf("^^ witness re-uses property bag of %s\n", bag.key)
			relationID := m.sys.RecordRelation(bag.key, subjectTerm)
			path.Add(relationStep(0, 0, relationID, false))
			return bag.key.Mutable()
		}
	}

	witnessSchema, witnessSubs := m.ctx.RelativeSchemaForType(witness, substitutions)
	witnessSymbol := m.ctx.ConcreteTypeSymbol(witnessSchema, witnessSubs)

	assocSymbol := subject.Back()

	// Record the relation on the unsimplified witness symbol.
	concreteRelationID := m.sys.RecordRelation(
		m.ctx.Term(ccSymbol, assocSymbol, witnessSymbol),
		m.ctx.Term(ccSymbol, assocSymbol))

	var substPath RewritePath
	simplified, _ := m.sys.SimplifySubstitutions(witnessSymbol, &substPath)
	substPath.Invert()

	// A witness equal to the parent's concrete type ties the nested type
	// back to the parent parameter.
	if kind == decl.SameTypeRequirement &&
		types.Equal(simplified.ConcreteType(), schema) &&
		sameTerms(simplified.Substitutions(), substitutions) {
		m.sys.debugf("^^ witness equals the parent concrete type\n")

		result := key.Mutable()
		result.Add(ccSymbol)

		sameRelationID := m.sys.RecordRelation(
			m.ctx.Term(ccSymbol, assocSymbol, m.ctx.ConcreteTypeSymbol(schema, substitutions)),
			m.ctx.Term(ccSymbol))

		path.Add(relationStep(key.Len(), 0, sameRelationID, true))
		path.AppendPath(substPath)
		path.Add(relationStep(key.Len(), 0, concreteRelationID, false))
		return result
	}

	constraint := subject.Clone()
	constraint.Add(simplified)

	path.AppendPath(substPath)
	path.Add(relationStep(key.Len(), 0, concreteRelationID, false))
	return constraint
}

func sameTerms(a, b []*Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// inferConditionalRequirements adds rules for the conditional requirements
// of a conformance used by a concrete type bound. A protocol first seen here
// also contributes its own requirement rules, so completion can reason about
// the new conformances.
func (m *PropertyMap) inferConditionalRequirements(
	conformance *decl.Conformance, args []types.Type, substitutions []*Term) {

	for _, req := range conformance.Conditional {
		if req.Kind == decl.ConformanceRequirement && !m.sys.IsKnownProtocol(req.Protocol) {
			m.sys.debugf("@@ unknown protocol %s from conditional requirement\n", req.Protocol)
			m.lowering.AddRulesForProtocol(m.sys, req.Protocol)
		}

		pair, ok := m.lowering.LowerConditionalRequirement(req, args, substitutions)
		if !ok {
			continue
		}
		m.sys.debugf("@@ induced rule %s => %s from conditional requirement\n",
			pair.LHS, pair.RHS)
		m.sys.AddRule(pair.LHS, pair.RHS, nil)
	}
}
