package rewrite

import (
	"errors"

	"github.com/lunalang/generics/internal/config"
)

// Resource exhaustion during completion is fatal: a partial run leaves the
// system in a state whose invariants cannot be assumed, so callers must
// discard it.
var (
	ErrTooManyRules   = errors.New("rewrite system exceeded maximum rule count")
	ErrRuleTooDeep    = errors.New("rewrite rule exceeded maximum depth")
	ErrTooMuchNesting = errors.New("concrete type exceeded maximum nesting depth")
)

// computeCriticalPair resolves an overlap between two rules into the pair
// of terms obtained by rewriting the overlapped term each way, along with a
// derivation path from the first term to the second.
//
// For a containment overlap, lhs == T.U.V -> X and rhs == U -> Y; the
// overlapped term T.U.V yields the pair (X, T.Y.V).
//
// For a boundary overlap, lhs == T.U -> X and rhs == U.V -> Y; the
// overlapped term T.U.V yields the pair (X.V, T.Y).
func (s *System) computeCriticalPair(lhsID, rhsID int) (*MutableTerm, *MutableTerm, RewritePath, bool) {
	lhs := &s.rules[lhsID]
	rhs := &s.rules[rhsID]
	kind, t, v := lhs.lhs.Mutable().checkForOverlap(rhs.lhs.Mutable())

	switch kind {
	case OverlapNone:
		return nil, nil, RewritePath{}, false

	case OverlapContained:
		// First term: X. Second term: T.Y.V.
		first := lhs.rhs.Mutable()

		second := NewMutableTerm(t...)
		second.Append(rhs.rhs.symbols)
		second.Append(v)

		// X back to T.U.V, then the contained rule forward.
		var path RewritePath
		path.Add(ruleStep(0, 0, lhsID, true))
		path.Add(ruleStep(len(t), len(v), rhsID, false))
		return first, second, path, true

	case OverlapBoundary:
		// First term: X.V. Second term: T.Y.
		first := lhs.rhs.Mutable()
		first.Append(v)

		second := NewMutableTerm(t...)
		second.Append(rhs.rhs.symbols)

		// X.V back to T.U.V, then the suffix rule forward.
		var path RewritePath
		path.Add(ruleStep(0, len(v), lhsID, true))
		path.Add(ruleStep(len(t), 0, rhsID, false))
		return first, second, path, true
	}

	panic("bad overlap kind")
}

// ComputeConfluentCompletion runs Knuth-Bendix completion: it resolves
// every queued overlap by adding the corresponding critical pair as a new
// rule, until no unresolved overlaps remain or a resource limit is hit.
//
// The worklist is processed first-in-first-out so that overlaps among the
// initial rules are resolved before overlaps involving rules introduced by
// completion.
func (s *System) ComputeConfluentCompletion(maxRuleCount, maxRuleDepth int) error {
	for len(s.worklist) > 0 {
		next := s.worklist[0]
		s.worklist = s.worklist[1:]

		if s.checkedOverlaps[next] {
			continue
		}
		s.checkedOverlaps[next] = true

		first, second, path, ok := s.computeCriticalPair(next.first, next.second)
		if !ok {
			continue
		}

		s.debugf("$ overlap of (#%d) %s and (#%d) %s\n",
			next.first, s.rules[next.first].String(),
			next.second, s.rules[next.second].String())

		newRuleID := len(s.rules)
		if !s.AddRule(first, second, &path) {
			continue
		}

		if len(s.rules) > maxRuleCount {
			return ErrTooManyRules
		}
		newRule := &s.rules[newRuleID]
		if newRule.Depth() > maxRuleDepth {
			return ErrRuleTooDeep
		}
		if newRule.Nesting() > config.MaxConcreteNesting {
			return ErrTooMuchNesting
		}

		// Merged associated types must be processed incrementally; merging
		// is itself required to repair confluence violations.
		if err := s.processMergeCandidates(maxRuleCount, maxRuleDepth); err != nil {
			return err
		}
	}

	s.complete = true
	return nil
}
