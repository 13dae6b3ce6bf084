package rewrite

import "sort"

// Minimal conformance computation. Appearing once in a loop in empty
// context is not a strong enough redundancy condition for conformance
// rules: a conformance can be rewritten in terms of other conformances that
// are themselves about to be deleted, so the loops are first projected down
// to conformance equations and a consistent set of non-minimal conformances
// is chosen from those.
//
// Each live loop in which a conformance rule appears exactly once in empty
// context yields an equation: that rule is derivable from the other
// conformance rules applied in the loop. A rule is declared non-minimal
// when it has an equation whose right hand side mentions only conformances
// still considered minimal; chasing equations this way cannot declare two
// rules redundant in terms of each other.
//
// Protocol refinement rules, which lower directly-stated inheritance
// clause entries, may only be derived from other refinement rules;
// otherwise they must stay in the protocol's requirement signature.

type conformanceEquation struct {
	ruleID int
	others []int
}

// computeMinimalConformances returns the set of conformance rules that are
// not minimal conformances; pass two of minimization deletes exactly these.
func (s *System) computeMinimalConformances() map[int]bool {
	isConformance := func(ruleID int) bool {
		rule := &s.rules[ruleID]
		if rule.permanent || rule.redundant || rule.IsIdentityConformance() {
			return false
		}
		_, ok := rule.AnyConformance()
		return ok
	}

	var equations []conformanceEquation
	for _, loop := range s.loops {
		if loop.isDeleted() {
			continue
		}
		for _, ruleID := range loop.RulesInEmptyContext(s) {
			if !isConformance(ruleID) {
				continue
			}

			// Project the loop down to its conformance applications,
			// leaving out the rule being defined.
			var others []int
			for _, step := range loop.Path.steps {
				if step.Kind != StepRule || step.Arg == ruleID {
					continue
				}
				if !isConformance(step.Arg) {
					continue
				}
				others = append(others, step.Arg)
			}
			equations = append(equations, conformanceEquation{ruleID: ruleID, others: others})
		}
	}

	// Candidate order: eliminate non-explicit rules ahead of explicit
	// ones, then less canonical rules ahead of more canonical ones.
	candidateOrder := map[int]int{}
	var candidates []int
	for _, eq := range equations {
		if _, seen := candidateOrder[eq.ruleID]; !seen {
			candidateOrder[eq.ruleID] = len(candidates)
			candidates = append(candidates, eq.ruleID)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := &s.rules[candidates[i]], &s.rules[candidates[j]]
		if a.explicit != b.explicit {
			return !a.explicit
		}
		cmp, ok := a.Compare(b, s.ctx)
		if !ok {
			return a.conflicting || a.substitutionSimplified
		}
		return cmp > 0
	})

	// Decisions are made in candidate order and are final. An equation is
	// usable only while every conformance on its right hand side is still
	// minimal, so no two rules can be deleted in terms of each other.
	redundant := map[int]bool{}
	for _, ruleID := range candidates {
		refinement := s.rules[ruleID].IsProtocolRefinement(s.ctx)

		for _, eq := range equations {
			if eq.ruleID != ruleID {
				continue
			}
			usable := true
			for _, other := range eq.others {
				if redundant[other] {
					usable = false
					break
				}
				if refinement && !s.rules[other].IsProtocolRefinement(s.ctx) {
					usable = false
					break
				}
			}
			if usable {
				redundant[ruleID] = true
				break
			}
		}
	}

	return redundant
}
