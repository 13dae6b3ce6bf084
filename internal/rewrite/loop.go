package rewrite

import (
	"fmt"
	"strings"
)

// StepKind identifies a rewrite step variant.
type StepKind int

const (
	// StepRule applies a rewrite rule (or its inverse) at an offset.
	StepRule StepKind = iota
	// StepRelation applies a relation recorded by the property map.
	StepRelation
	// StepShift moves the current term between the evaluator's primary and
	// secondary stacks.
	StepShift
	// StepDecompose pushes the substitution terms of the final symbol of
	// the current term onto the primary stack; inverted, it pops them back
	// into the symbol.
	StepDecompose
	// StepPrefixSubstitutions prepends the first Arg symbols of the current
	// term to every substitution of the symbol EndOffset positions before
	// the end of the term.
	StepPrefixSubstitutions
)

// RewriteStep is a single oriented application within a rewrite path.
// StartOffset counts the symbols preceding the application and EndOffset
// the symbols following it; a step with both offsets zero applies to the
// whole term, "in empty context".
type RewriteStep struct {
	Kind        StepKind
	StartOffset int
	EndOffset   int

	// Arg is the rule id for StepRule, the relation id for StepRelation,
	// the substitution count for StepDecompose and the prefix length for
	// StepPrefixSubstitutions.
	Arg int

	Inverse bool
}

func (s RewriteStep) isInContext() bool {
	return s.StartOffset > 0 || s.EndOffset > 0
}

func ruleStep(startOffset, endOffset, ruleID int, inverse bool) RewriteStep {
	return RewriteStep{Kind: StepRule, StartOffset: startOffset, EndOffset: endOffset,
		Arg: ruleID, Inverse: inverse}
}

func relationStep(startOffset, endOffset, relationID int, inverse bool) RewriteStep {
	return RewriteStep{Kind: StepRelation, StartOffset: startOffset, EndOffset: endOffset,
		Arg: relationID, Inverse: inverse}
}

func shiftStep(inverse bool) RewriteStep {
	return RewriteStep{Kind: StepShift, Inverse: inverse}
}

func decomposeStep(count int, inverse bool) RewriteStep {
	return RewriteStep{Kind: StepDecompose, Arg: count, Inverse: inverse}
}

func prefixSubstitutionsStep(count, endOffset int, inverse bool) RewriteStep {
	return RewriteStep{Kind: StepPrefixSubstitutions, EndOffset: endOffset,
		Arg: count, Inverse: inverse}
}

// RewritePath is a sequence of rewrite steps transforming one term into
// another. A path whose start and end coincide is a loop.
type RewritePath struct {
	steps []RewriteStep
}

func (p *RewritePath) Steps() []RewriteStep { return p.steps }
func (p *RewritePath) Empty() bool          { return len(p.steps) == 0 }
func (p *RewritePath) Size() int            { return len(p.steps) }

func (p *RewritePath) Add(step RewriteStep) {
	p.steps = append(p.steps, step)
}

func (p *RewritePath) AppendPath(other RewritePath) {
	p.steps = append(p.steps, other.steps...)
}

func (p *RewritePath) Resize(n int) {
	p.steps = p.steps[:n]
}

func (p *RewritePath) Clone() RewritePath {
	return RewritePath{steps: append([]RewriteStep(nil), p.steps...)}
}

// Invert reverses the path in place: steps run in opposite order with their
// orientations flipped.
func (p *RewritePath) Invert() {
	for i, j := 0, len(p.steps)-1; i < j; i, j = i+1, j-1 {
		p.steps[i], p.steps[j] = p.steps[j], p.steps[i]
	}
	for i := range p.steps {
		p.steps[i].Inverse = !p.steps[i].Inverse
	}
}

// SplitCycleAtRule returns a new definition for a rule that appears exactly
// once in this loop in empty context: the path from the rule's left hand
// side to its right hand side obtained by traveling around the loop the
// other way.
func (p *RewritePath) SplitCycleAtRule(ruleID int) RewritePath {
	var basepointToLHS, rhsToBasepoint RewritePath
	ruleWasInverted := false
	sawRule := false

	for _, step := range p.steps {
		if step.Kind == StepRule && step.Arg == ruleID {
			if sawRule {
				panic("rule appears more than once in loop")
			}
			if step.isInContext() {
				panic("rule appears in context")
			}
			ruleWasInverted = step.Inverse
			sawRule = true
			continue
		}
		if sawRule {
			rhsToBasepoint.Add(step)
		} else {
			basepointToLHS.Add(step)
		}
	}

	result := rhsToBasepoint
	result.AppendPath(basepointToLHS)
	if !ruleWasInverted {
		result.Invert()
	}
	return result
}

// ReplaceRuleWithPath replaces every application of ruleID with the given
// replacement path, re-contextualized to the offsets of the replaced step.
// Steps between a decompose and its inverse operate on substitution terms
// pushed on the stack and are not re-contextualized. Reports whether any
// step was replaced.
func (p *RewritePath) ReplaceRuleWithPath(ruleID int, replacement RewritePath) bool {
	found := false
	for _, step := range p.steps {
		if step.Kind == StepRule && step.Arg == ruleID {
			found = true
			break
		}
	}
	if !found {
		return false
	}

	var newSteps []RewriteStep
	for _, step := range p.steps {
		if step.Kind != StepRule || step.Arg != ruleID {
			newSteps = append(newSteps, step)
			continue
		}

		decomposeCount := 0
		recontextualize := func(newStep RewriteStep) {
			inverse := newStep.Inverse != step.Inverse

			if newStep.Kind == StepDecompose && inverse {
				if decomposeCount <= 0 {
					panic("unbalanced decompose steps in replacement path")
				}
				decomposeCount--
			}
			if decomposeCount == 0 {
				newStep.StartOffset += step.StartOffset
				newStep.EndOffset += step.EndOffset
			}
			newStep.Inverse = inverse
			newSteps = append(newSteps, newStep)
			if newStep.Kind == StepDecompose && !inverse {
				decomposeCount++
			}
		}

		if step.Inverse {
			for i := len(replacement.steps) - 1; i >= 0; i-- {
				recontextualize(replacement.steps[i])
			}
		} else {
			for _, newStep := range replacement.steps {
				recontextualize(newStep)
			}
		}
		if decomposeCount != 0 {
			panic("unbalanced decompose steps in replacement path")
		}
	}

	p.steps = newSteps
	return true
}

// RewriteLoop is a path from a basepoint back to itself. Loops witness
// identities among rules; minimization consumes them.
type RewriteLoop struct {
	Basepoint *Term
	Path      RewritePath

	deleted bool

	// Cached result of RulesInEmptyContext; invalidated by markDirty.
	dirty               bool
	rulesInEmptyContext []int
}

func newRewriteLoop(basepoint *Term, path RewritePath) *RewriteLoop {
	return &RewriteLoop{Basepoint: basepoint, Path: path, dirty: true}
}

func (l *RewriteLoop) isDeleted() bool { return l.deleted }
func (l *RewriteLoop) markDeleted()    { l.deleted = true }
func (l *RewriteLoop) markDirty()      { l.dirty = true }

// RulesInEmptyContext returns the rules that appear exactly once in the loop
// in empty context. Such a rule is redundant: it is equivalent to traveling
// around the rest of the loop in the other direction.
func (l *RewriteLoop) RulesInEmptyContext(sys *System) []int {
	if !l.dirty {
		return l.rulesInEmptyContext
	}

	inEmptyContext := map[int]bool{}
	multiplicity := map[int]int{}

	evaluator := newPathEvaluator(l.Basepoint)
	for _, step := range l.Path.steps {
		if step.Kind == StepRule {
			if !step.isInContext() && !evaluator.isInContext() {
				inEmptyContext[step.Arg] = true
			}
			multiplicity[step.Arg]++
		}
		evaluator.apply(step, sys)
	}

	l.rulesInEmptyContext = l.rulesInEmptyContext[:0]
	for ruleID := range inEmptyContext {
		if multiplicity[ruleID] == 1 {
			l.rulesInEmptyContext = append(l.rulesInEmptyContext, ruleID)
		}
	}
	l.dirty = false
	return l.rulesInEmptyContext
}

func (l *RewriteLoop) String() string {
	var b strings.Builder
	b.WriteString(l.Basepoint.String())
	b.WriteString(": ")
	for i, step := range l.Path.steps {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%v", step)
	}
	return b.String()
}

// pathEvaluator replays a rewrite path over a term, maintaining the primary
// and secondary stacks manipulated by shift and decompose steps.
type pathEvaluator struct {
	primary   []*MutableTerm
	secondary []*MutableTerm
}

func newPathEvaluator(basepoint *Term) *pathEvaluator {
	return &pathEvaluator{primary: []*MutableTerm{basepoint.Mutable()}}
}

func (e *pathEvaluator) current() *MutableTerm {
	return e.primary[len(e.primary)-1]
}

// isInContext reports whether terms beyond the initial one are on the
// stacks, meaning subsequent steps apply to substitution terms rather than
// to the basepoint itself.
func (e *pathEvaluator) isInContext() bool {
	return len(e.primary) > 1 || len(e.secondary) > 0
}

func (e *pathEvaluator) apply(step RewriteStep, sys *System) {
	switch step.Kind {
	case StepRule:
		rule := sys.Rule(step.Arg)
		from, to := rule.lhs, rule.rhs
		if step.Inverse {
			from, to = to, from
		}
		term := e.current()
		end := step.StartOffset + from.Len()
		if end > term.Len() || !symbolsEqual(term.symbols[step.StartOffset:end], from.symbols) {
			panic(fmt.Sprintf("rule %d does not apply at offset %d of %s",
				step.Arg, step.StartOffset, term))
		}
		term.rewriteSubterm(step.StartOffset, from.Len(), to.symbols)

	case StepRelation:
		rel := sys.Relation(step.Arg)
		from, to := rel.LHS, rel.RHS
		if step.Inverse {
			from, to = to, from
		}
		term := e.current()
		end := step.StartOffset + from.Len()
		if end > term.Len() || !symbolsEqual(term.symbols[step.StartOffset:end], from.symbols) {
			panic(fmt.Sprintf("relation %d does not apply at offset %d of %s",
				step.Arg, step.StartOffset, term))
		}
		term.rewriteSubterm(step.StartOffset, from.Len(), to.symbols)

	case StepShift:
		if !step.Inverse {
			e.secondary = append(e.secondary, e.primary[len(e.primary)-1])
			e.primary = e.primary[:len(e.primary)-1]
		} else {
			e.primary = append(e.primary, e.secondary[len(e.secondary)-1])
			e.secondary = e.secondary[:len(e.secondary)-1]
		}

	case StepDecompose:
		if !step.Inverse {
			back := e.current().Back()
			subs := back.Substitutions()
			if len(subs) != step.Arg {
				panic("decompose count mismatch")
			}
			for _, sub := range subs {
				e.primary = append(e.primary, sub.Mutable())
			}
		} else {
			n := step.Arg
			subs := make([]*Term, n)
			for i := n - 1; i >= 0; i-- {
				top := e.primary[len(e.primary)-1]
				e.primary = e.primary[:len(e.primary)-1]
				subs[i] = sys.ctx.Term(top.symbols...)
			}
			term := e.current()
			back := term.Back()
			term.SetBack(sys.ctx.WithSubstitutions(back, subs))
		}

	case StepPrefixSubstitutions:
		term := e.current()
		target := term.Len() - 1 - step.EndOffset
		symbol := term.symbols[target]
		prefix := term.symbols[:step.Arg]
		subs := symbol.Substitutions()
		newSubs := make([]*Term, len(subs))
		for i, sub := range subs {
			if !step.Inverse {
				combined := append(append([]*Symbol(nil), prefix...), sub.symbols...)
				newSubs[i] = sys.ctx.Term(combined...)
			} else {
				newSubs[i] = sys.ctx.Term(sub.symbols[step.Arg:]...)
			}
		}
		term.symbols[target] = sys.ctx.WithSubstitutions(symbol, newSubs)
	}
}
