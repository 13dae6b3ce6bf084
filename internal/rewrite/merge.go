package rewrite

// The merge heuristic repairs a class of non-terminating completions. Two
// protocols P1 and P2 that each declare an associated type T, constrained
// together on one subject, produce an infinite rule series of the form
//
//	X.[P1:T].[P1:T]...[P2] => X.[P1:T].[P1:T]...
//
// because an arbitrary chain of [P1:T] after X conforms to P2, while [P1:T]
// itself does not. Introducing the merged symbol [P1&P2:T], equating both
// originals to it, and lifting the originals' conformances onto it ties off
// the recursion: the lifted conformance rules have no root prefix, so they
// apply at any level.

// checkMergeCandidate records a new rule of the form X.[P1:T] => Y.[P2:T],
// where both sides end in associated type symbols with the same name, for
// later processing by processMergeCandidates.
func (s *System) checkMergeCandidate(lhs, rhs *Term) {
	if lhs.Len() != rhs.Len() {
		return
	}
	lhsBack, rhsBack := lhs.Back(), rhs.Back()
	if lhsBack.kind != SymbolAssociatedType || rhsBack.kind != SymbolAssociatedType {
		return
	}
	if lhsBack.name != rhsBack.name {
		return
	}
	if !symbolsEqual(lhs.symbols[:lhs.Len()-1], rhs.symbols[:rhs.Len()-1]) {
		return
	}
	s.mergeCandidates = append(s.mergeCandidates, mergeCandidate{lhs: lhs, rhs: rhs})
}

// processMergeCandidates introduces the merged symbol for each recorded
// candidate. For a candidate X.[P1:T] => X.[P2:T] it adds
//
//	X.[P1:T] => X.[P1&P2:T]
//	X.[P2:T] => X.[P1&P2:T]
//
// and, for every conformance rule on [P1:T] or [P2:T], the lifted rule
// [P1&P2:T].[Q] => [P1&P2:T]. Added rules can queue further candidates, so
// the list is chased to its (possibly growing) end.
func (s *System) processMergeCandidates(maxRuleCount, maxRuleDepth int) error {
	for i := 0; i < len(s.mergeCandidates); i++ {
		candidate := s.mergeCandidates[i]
		lhs, rhs := candidate.lhs, candidate.rhs

		merged := s.ctx.MergeAssociatedTypes(lhs.Back(), rhs.Back())
		s.debugf("## merged %s and %s into %s\n", lhs.Back(), rhs.Back(), merged)

		mergedTerm := lhs.Mutable()
		mergedTerm.SetBack(merged)

		s.AddRule(lhs.Mutable(), mergedTerm.Clone(), nil)
		s.AddRule(rhs.Mutable(), mergedTerm.Clone(), nil)

		// Lift conformance rules from either original symbol onto the
		// merged symbol. Snapshot the rule count; added rules cannot
		// themselves be two-symbol conformance rules on the originals.
		ruleCount := len(s.rules)
		for j := 0; j < ruleCount; j++ {
			otherLHS := s.rules[j].lhs
			if otherLHS.Len() != 2 || otherLHS.At(1).kind != SymbolProtocol {
				continue
			}
			if otherLHS.At(0) != lhs.Back() && otherLHS.At(0) != rhs.Back() {
				continue
			}

			newLHS := NewMutableTerm(merged, otherLHS.At(1))
			newRHS := NewMutableTerm(merged)
			s.AddRule(newLHS, newRHS, nil)
		}

		if len(s.rules) > maxRuleCount {
			return ErrTooManyRules
		}
	}

	s.mergeCandidates = s.mergeCandidates[:0]
	return nil
}
