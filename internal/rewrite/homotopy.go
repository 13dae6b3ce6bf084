package rewrite

import (
	"fmt"
	"sort"

	"github.com/lunalang/generics/internal/config"
)

// propagateExplicitBits spreads the explicit flag across each loop that
// contains an explicit rule in empty context. A requirement written with
// unresolved member names lowers to a non-canonical rule; completion then
// derives the canonical form, and the loop relating the two lets the
// canonical rule inherit the explicit bit.
func (s *System) propagateExplicitBits() {
	for _, loop := range s.loops {
		rulesInEmptyContext := loop.RulesInEmptyContext(s)

		sawExplicit := false
		for _, ruleID := range rulesInEmptyContext {
			if s.rules[ruleID].explicit {
				sawExplicit = true
				break
			}
		}
		if !sawExplicit {
			continue
		}
		for _, ruleID := range rulesInEmptyContext {
			rule := &s.rules[ruleID]
			if !rule.permanent && !rule.explicit {
				rule.markExplicit()
			}
		}
	}
}

// findRuleToDelete looks through the loops for rules appearing once in
// empty context, filters them through isRedundant, and picks the worst one
// by the rule order. The replacement path obtained by splitting the
// witnessing loop is returned alongside the rule id.
//
// A pair of property rules T.[p1] => T and T.[p2] => T is incomparable when
// p1 and p2 are superclass, concrete type or concrete conformance symbols;
// that only arises when one of them was marked conflicting or was
// substitution-simplified, and then that rule is preferred for deletion.
func (s *System) findRuleToDelete(isRedundant func(int) bool) (int, RewritePath, bool) {
	type candidate struct {
		loopID int
		ruleID int
	}
	var candidates []candidate

	for loopID, loop := range s.loops {
		if loop.isDeleted() {
			continue
		}
		found := false
		for _, ruleID := range loop.RulesInEmptyContext(s) {
			candidates = append(candidates, candidate{loopID, ruleID})
			found = true
		}
		// A loop without any rule in empty context witnesses nothing
		// useful; drop it.
		if !found {
			loop.markDeleted()
		}
	}

	var best *candidate
	for i := range candidates {
		c := candidates[i]
		rule := &s.rules[c.ruleID]

		if rule.redundant {
			panic("redundant rule still appears in a loop")
		}
		if rule.permanent {
			continue
		}
		if !isRedundant(c.ruleID) {
			continue
		}
		if best == nil {
			best = &candidates[i]
			continue
		}

		bestRule := &s.rules[best.ruleID]
		comparison, ok := rule.Compare(bestRule, s.ctx)
		if !ok {
			if !rule.conflicting && !rule.substitutionSimplified {
				panic(fmt.Sprintf("incomparable rules in minimization: %s vs %s",
					rule, bestRule))
			}
			best = &candidates[i]
		} else if comparison > 0 {
			best = &candidates[i]
		}
	}

	if best == nil {
		return 0, RewritePath{}, false
	}

	loop := s.loops[best.loopID]
	replacement := loop.Path.SplitCycleAtRule(best.ruleID)
	loop.markDeleted()
	s.rules[best.ruleID].markRedundant()

	return best.ruleID, replacement, true
}

// deleteRule rewrites every remaining loop, replacing applications of the
// now-redundant rule with its replacement path.
func (s *System) deleteRule(ruleID int, replacement RewritePath) {
	s.debugf("* deleting rule #%d %s\n", ruleID, s.rules[ruleID].String())

	for _, loop := range s.loops {
		if loop.isDeleted() {
			continue
		}
		if loop.Path.ReplaceRuleWithPath(ruleID, replacement) {
			loop.markDirty()
		}
	}
}

func (s *System) performHomotopyReduction(isRedundant func(int) bool) {
	for {
		ruleID, replacement, ok := s.findRuleToDelete(isRedundant)
		if !ok {
			return
		}
		s.deleteRule(ruleID, replacement)
	}
}

// Minimize deletes redundant rules via Tietze transformations until the
// remaining set is minimal: large enough that completion regenerates the
// original system, small enough that nothing further can go.
//
// Three passes run in order. The first deletes simplified and unresolved
// rules. The second deletes conformance rules that are not minimal
// conformances. The third deletes all other redundant non-conformance
// rules. Conformance rules need the stronger minimality condition; a
// conformance appearing once in empty context in some loop may still be
// required, see minimalconformances.go.
func (s *System) Minimize() {
	if !s.complete {
		panic("cannot minimize before completion")
	}
	if s.minimized {
		panic("rewrite system already minimized")
	}
	s.minimized = true

	s.verifyLoops()

	s.propagateExplicitBits()

	s.performHomotopyReduction(func(ruleID int) bool {
		rule := &s.rules[ruleID]
		if rule.lhsSimplified {
			if _, isConformance := rule.AnyConformance(); !isConformance {
				return true
			}
		}
		if rule.rhsSimplified || rule.substitutionSimplified {
			return true
		}
		if rule.lhs.ContainsUnresolvedSymbols() {
			return true
		}
		return false
	})

	redundantConformances := s.computeMinimalConformances()

	s.performHomotopyReduction(func(ruleID int) bool {
		if _, isConformance := s.rules[ruleID].AnyConformance(); isConformance {
			return redundantConformances[ruleID]
		}
		return false
	})

	s.performHomotopyReduction(func(ruleID int) bool {
		_, isConformance := s.rules[ruleID].AnyConformance()
		return !isConformance
	})

	s.verifyLoops()
	s.verifyRedundantConformances(redundantConformances)
	s.verifyMinimizedRules(redundantConformances)
}

// HadError reports whether any non-permanent rule records a failure: a
// conflict, or unresolved symbols that survived minimization. In a valid
// system every rule mentioning an unresolved name is simplified away by
// another rule.
func (s *System) HadError() bool {
	if !s.complete || !s.minimized {
		panic("rewrite system is not minimized")
	}

	for i := range s.rules {
		rule := &s.rules[i]
		if rule.permanent {
			continue
		}
		if rule.conflicting {
			return true
		}
		if !rule.redundant && rule.ContainsUnresolvedSymbols() {
			return true
		}
	}
	return false
}

// MinimizedProtocolRules groups the minimal rules of a protocol component
// system by the protocol their left hand side is rooted in. These form the
// requirement signatures of the component's protocols.
func (s *System) MinimizedProtocolRules() map[string][]int {
	if !s.minimized || len(s.protos) == 0 {
		panic("system does not minimize a protocol component")
	}

	rules := map[string][]int{}
	for ruleID := range s.rules {
		rule := &s.rules[ruleID]
		if rule.permanent || rule.redundant || rule.conflicting ||
			rule.ContainsUnresolvedSymbols() {
			continue
		}
		if rule.IsIdentityConformance() {
			continue
		}

		proto, ok := rule.lhs.RootProtocol()
		if !ok {
			continue
		}
		if s.isInMinimizationDomain(proto, true) {
			rules[proto] = append(rules[proto], ruleID)
		}
	}
	return rules
}

// MinimizedGenericSignatureRules returns the minimal rules whose left hand
// side begins with a generic parameter symbol. These form the top-level
// generic signature of the system.
func (s *System) MinimizedGenericSignatureRules() []int {
	if !s.minimized || len(s.protos) != 0 {
		panic("system does not minimize a generic signature")
	}

	var rules []int
	for ruleID := range s.rules {
		rule := &s.rules[ruleID]
		if rule.permanent || rule.redundant || rule.conflicting ||
			rule.ContainsUnresolvedSymbols() {
			continue
		}
		if rule.lhs.At(0).kind != SymbolGenericParam {
			continue
		}
		rules = append(rules, ruleID)
	}
	sort.Ints(rules)
	return rules
}

// verifyLoops replays every live loop and checks it closes at its
// basepoint with nothing left on the evaluator stacks. Runs in test mode
// only.
func (s *System) verifyLoops() {
	if !config.IsTestMode {
		return
	}
	for _, loop := range s.loops {
		if loop.isDeleted() {
			continue
		}
		evaluator := newPathEvaluator(loop.Basepoint)
		for _, step := range loop.Path.steps {
			evaluator.apply(step, s)
		}
		if !evaluator.current().Equal(loop.Basepoint.Mutable()) {
			panic(fmt.Sprintf("not a loop: %s ended at %s", loop, evaluator.current()))
		}
		if evaluator.isInContext() {
			panic("leftover terms on evaluator stack")
		}
	}
}

func (s *System) verifyRedundantConformances(redundantConformances map[int]bool) {
	if !config.IsTestMode {
		return
	}
	for ruleID := range redundantConformances {
		rule := &s.rules[ruleID]
		if rule.permanent {
			panic("permanent rule cannot be redundant")
		}
		if rule.IsIdentityConformance() {
			panic("identity conformance cannot be redundant")
		}
		if _, ok := rule.AnyConformance(); !ok {
			panic("redundant conformance is not a conformance rule")
		}
		if !rule.redundant {
			panic(fmt.Sprintf("minimization did not eliminate redundant conformance #%d %s",
				ruleID, rule))
		}
	}
}

func (s *System) verifyMinimizedRules(redundantConformances map[int]bool) {
	if !config.IsTestMode {
		return
	}
	for ruleID := range s.rules {
		rule := &s.rules[ruleID]

		root, hasRoot := rule.lhs.RootProtocol()
		if !s.isInMinimizationDomain(root, hasRoot) {
			continue
		}

		if rule.permanent {
			if rule.redundant {
				panic(fmt.Sprintf("permanent rule is redundant: %s", rule))
			}
			continue
		}

		_, isProtocolConformance := rule.ProtocolConformance()
		if rule.lhsSimplified && !rule.redundant && !isProtocolConformance {
			panic(fmt.Sprintf("simplified rule is not redundant: %s", rule))
		}
		if (rule.rhsSimplified || rule.substitutionSimplified) && !rule.redundant {
			panic(fmt.Sprintf("simplified rule is not redundant: %s", rule))
		}

		_, isConformance := rule.AnyConformance()
		if rule.redundant && isConformance &&
			!rule.rhsSimplified && !rule.substitutionSimplified &&
			!rule.ContainsUnresolvedSymbols() &&
			!redundantConformances[ruleID] {
			panic(fmt.Sprintf("minimal conformance is redundant: %s", rule))
		}
	}
}
