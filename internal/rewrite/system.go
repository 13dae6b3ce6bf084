package rewrite

import (
	"fmt"
	"io"

	"github.com/lunalang/generics/internal/config"
)

// Relation is a pseudo-rule recorded by the property map: the left hand
// side is known to rewrite to the right hand side, but the pair is not
// oriented by the term order and does not participate in simplification.
type Relation struct {
	LHS *Term
	RHS *Term
}

type rulePair struct {
	first  int
	second int
}

type mergeCandidate struct {
	// The original rule X.[P1:T] => Y.[P2:T].
	lhs *Term
	rhs *Term
}

// System is a term rewrite system over the types of one generic signature
// or one connected component of protocols. Rules are appended, never
// removed; flag bits mark rules out of the minimal set.
type System struct {
	ctx *Context

	// protos is non-empty for a rewrite system minimizing a protocol
	// connected component; empty for a top-level generic signature.
	protos []string

	// knownProtos records every protocol whose rules were added, with the
	// value marking membership in protos. Conditional requirement inference
	// can grow it after initialization.
	knownProtos map[string]bool

	rules []Rule
	trie  *ruleTrie

	worklist        []rulePair
	checkedOverlaps map[rulePair]bool

	mergeCandidates []mergeCandidate

	relations   []Relation
	relationMap map[[2]*Term]int

	differences   []TypeDifference
	differenceMap map[[2]*Symbol]int

	loops []*RewriteLoop

	initialized bool
	complete    bool
	minimized   bool
	recordLoops bool
}

func NewSystem(ctx *Context) *System {
	return &System{
		ctx:             ctx,
		knownProtos:     map[string]bool{},
		trie:            newRuleTrie(),
		checkedOverlaps: map[rulePair]bool{},
		relationMap:     map[[2]*Term]int{},
		differenceMap:   map[[2]*Symbol]int{},
	}
}

func (s *System) Context() *Context { return s.ctx }

// Protocols returns the protocol connected component this system minimizes,
// or nil for a top-level signature system.
func (s *System) Protocols() []string { return s.protos }

func (s *System) Rule(id int) *Rule { return &s.rules[id] }
func (s *System) RuleCount() int    { return len(s.rules) }

func (s *System) Loops() []*RewriteLoop { return s.loops }

// MarkKnownProtocol records that rules for proto are present. Reports
// whether the protocol was new.
func (s *System) MarkKnownProtocol(proto string) bool {
	if _, ok := s.knownProtos[proto]; ok {
		return false
	}
	s.knownProtos[proto] = false
	return true
}

func (s *System) IsKnownProtocol(proto string) bool {
	_, ok := s.knownProtos[proto]
	return ok
}

// RulePair is a pair of terms forming an unoriented rule.
type RulePair struct {
	LHS *MutableTerm
	RHS *MutableTerm
}

// Initialize seeds the system with the permanent rules and the requirement
// rules, in that order. recordLoops enables loop recording for
// minimization; protos names the connected component when minimizing
// protocol requirement signatures.
func (s *System) Initialize(recordLoops bool, protos []string,
	permanentRules, requirementRules []RulePair) {
	if s.initialized {
		panic("rewrite system already initialized")
	}
	s.initialized = true
	s.recordLoops = recordLoops
	s.protos = protos
	for _, p := range protos {
		s.knownProtos[p] = true
	}

	for _, pair := range permanentRules {
		s.AddPermanentRule(pair.LHS, pair.RHS)
	}
	for _, pair := range requirementRules {
		s.AddExplicitRule(pair.LHS, pair.RHS)
	}
}

// Simplify reduces term to normal form, leftmost-longest first, repeating
// until no rule applies. Terminates because every application strictly
// decreases the term in the well-founded term order. When path is non-nil
// the steps taken are appended to it.
func (s *System) Simplify(term *MutableTerm, path *RewritePath) bool {
	changed := false

	for {
		tryAgain := false
		for from := 0; from < term.Len(); from++ {
			ruleID, ok := s.trie.findLongest(term.symbols[from:])
			if !ok {
				continue
			}
			rule := &s.rules[ruleID]

			startOffset := from
			endOffset := term.Len() - rule.lhs.Len() - from
			term.rewriteSubterm(from, rule.lhs.Len(), rule.rhs.symbols)

			if path != nil {
				path.Add(ruleStep(startOffset, endOffset, ruleID, false))
			}

			changed = true
			tryAgain = true
			break
		}
		if !tryAgain {
			break
		}
	}

	return changed
}

// SimplifySubstitutions reduces the substitution terms of a superclass,
// concrete type or concrete conformance symbol, returning the rebuilt
// symbol. The recorded path choreography pushes the substitutions onto the
// evaluator stacks, reduces each in turn and recombines them.
func (s *System) SimplifySubstitutions(symbol *Symbol, path *RewritePath) (*Symbol, bool) {
	substitutions := symbol.Substitutions()
	if len(substitutions) == 0 {
		return symbol, false
	}

	oldSize := 0
	if path != nil {
		oldSize = path.Size()

		path.Add(decomposeStep(len(substitutions), false))
		for i := 1; i < len(substitutions); i++ {
			path.Add(shiftStep(false))
		}
	}

	newSubstitutions := make([]*Term, 0, len(substitutions))
	anyChanged := false
	for i, substitution := range substitutions {
		if i > 0 && path != nil {
			path.Add(shiftStep(true))
		}

		mut := substitution.Mutable()
		if s.Simplify(mut, path) {
			anyChanged = true
		}
		newSubstitutions = append(newSubstitutions, s.ctx.Term(mut.symbols...))
	}

	if path != nil {
		path.Add(decomposeStep(len(substitutions), true))
	}

	if !anyChanged {
		if path != nil {
			path.Resize(oldSize)
		}
		return symbol, false
	}

	return s.ctx.WithSubstitutions(symbol, newSubstitutions), true
}

// AddRule simplifies both sides, orients them and appends a rule, returning
// false if both sides reduce to the same term. When path gives a derivation
// of rhs from lhs, a loop is recorded: either a trivial one, when the rule
// collapses, or one closed by applying the new rule in reverse.
func (s *System) AddRule(lhs, rhs *MutableTerm, path *RewritePath) bool {
	if lhs.Len() == 0 || rhs.Len() == 0 {
		panic("empty term in rule")
	}

	var lhsPath, rhsPath RewritePath
	s.Simplify(lhs, &lhsPath)
	s.Simplify(rhs, &rhsPath)

	var loop RewritePath
	if path != nil {
		// Build a path from the simplified lhs to the simplified rhs:
		// reverse out of the lhs simplification, follow the derivation,
		// then follow the rhs simplification.
		lhsPath.Invert()
		loop.AppendPath(lhsPath)
		loop.AppendPath(*path)
		loop.AppendPath(rhsPath)
	}

	result, comparable := lhs.Compare(rhs, s.ctx)
	if !comparable {
		panic(fmt.Sprintf("incomparable terms in rule: %s vs %s", lhs, rhs))
	}
	if result == 0 {
		if path != nil {
			s.recordRewriteLoop(lhs, loop)
		}
		return false
	}

	if result < 0 {
		lhs, rhs = rhs, lhs
		loop.Invert()
	}

	newRuleID := len(s.rules)
	uniquedLHS := s.ctx.Term(lhs.symbols...)
	uniquedRHS := s.ctx.Term(rhs.symbols...)
	s.rules = append(s.rules, Rule{lhs: uniquedLHS, rhs: uniquedRHS})

	if path != nil {
		loop.Add(ruleStep(0, 0, newRuleID, true))
		s.recordRewriteLoop(lhs, loop)
	}

	if oldRuleID, inserted := s.trie.insert(uniquedLHS.symbols, newRuleID); !inserted {
		panic(fmt.Sprintf("duplicate rewrite rule: #%d %s", oldRuleID, s.rules[oldRuleID].String()))
	}

	// Queue overlap checks between the new rule and every existing rule.
	// The relation is not commutative, so both orderings are queued.
	for j := range s.rules {
		if j == newRuleID {
			continue
		}
		s.worklist = append(s.worklist, rulePair{newRuleID, j}, rulePair{j, newRuleID})
	}

	s.checkMergeCandidate(uniquedLHS, uniquedRHS)

	return true
}

func (s *System) AddPermanentRule(lhs, rhs *MutableTerm) bool {
	added := s.AddRule(lhs, rhs, nil)
	if added {
		s.rules[len(s.rules)-1].markPermanent()
	}
	return added
}

func (s *System) AddExplicitRule(lhs, rhs *MutableTerm) bool {
	added := s.AddRule(lhs, rhs, nil)
	if added {
		s.rules[len(s.rules)-1].markExplicit()
	}
	return added
}

// isInMinimizationDomain reports whether a term rooted in the given
// protocol (or at a generic parameter, when hasRoot is false) belongs to
// the domain being minimized.
func (s *System) isInMinimizationDomain(rootProto string, hasRoot bool) bool {
	if !hasRoot {
		return len(s.protos) == 0
	}
	for _, p := range s.protos {
		if p == rootProto {
			return true
		}
	}
	return false
}

func (s *System) recordRewriteLoop(basepoint *MutableTerm, path RewritePath) {
	if !s.recordLoops {
		return
	}
	root, hasRoot := basepoint.RootProtocol()
	if !s.isInMinimizationDomain(root, hasRoot) {
		return
	}
	s.loops = append(s.loops, newRewriteLoop(s.ctx.Term(basepoint.symbols...), path))
}

// SimplifyLeftHandSides flags rules whose left hand side can be reduced by
// another rule. Valid only on a confluent system.
func (s *System) SimplifyLeftHandSides() {
	if !s.complete {
		panic("rewrite system is not complete")
	}

	for ruleID := range s.rules {
		rule := &s.rules[ruleID]
		if rule.lhsSimplified {
			continue
		}

		lhs := rule.lhs.symbols
	search:
		for from := range lhs {
			for _, otherRuleID := range s.trie.findAll(lhs[from:]) {
				if otherRuleID == ruleID {
					continue
				}
				if s.rules[otherRuleID].lhsSimplified {
					continue
				}
				rule.markLHSSimplified()
				break search
			}
		}
	}
}

// SimplifyRightHandSides reduces every rule's right hand side, adding a
// replacement rule and a loop relating the two. Valid only on a confluent
// system.
func (s *System) SimplifyRightHandSides() {
	if !s.complete {
		panic("rewrite system is not complete")
	}

	for ruleID := 0; ruleID < len(s.rules); ruleID++ {
		rule := &s.rules[ruleID]
		if rule.rhsSimplified {
			continue
		}

		var rhsPath RewritePath
		rhs := rule.rhs.Mutable()
		if !s.Simplify(rhs, &rhsPath) {
			continue
		}

		lhs := rule.lhs
		rule.markRHSSimplified()

		newRuleID := len(s.rules)
		s.rules = append(s.rules, Rule{lhs: lhs, rhs: s.ctx.Term(rhs.symbols...)})
		// The trie entry for this lhs stays pointing at the original rule.

		// Loop at the original lhs: apply the original rule, reduce its
		// rhs, then apply the new rule in reverse.
		var loop RewritePath
		loop.Add(ruleStep(0, 0, ruleID, false))
		loop.AppendPath(rhsPath)
		loop.Add(ruleStep(0, 0, newRuleID, true))
		s.recordRewriteLoop(lhs.Mutable(), loop)
	}
}

// SimplifyLeftHandSideSubstitutions reduces substitution terms inside
// superclass, concrete type and concrete conformance symbols ending a left
// hand side.
func (s *System) SimplifyLeftHandSideSubstitutions() {
	for ruleID := 0; ruleID < len(s.rules); ruleID++ {
		rule := &s.rules[ruleID]
		if rule.substitutionSimplified {
			continue
		}

		lhs := rule.lhs
		symbol := lhs.Back()
		if !symbol.HasSubstitutions() {
			continue
		}

		var path RewritePath
		path.Add(ruleStep(0, 0, ruleID, true))

		newSymbol, changed := s.SimplifySubstitutions(symbol, &path)
		if !changed {
			continue
		}

		rule.markSubstitutionSimplified()

		newLHS := NewMutableTerm(lhs.symbols[:lhs.Len()-1]...)
		newLHS.Add(newSymbol)

		path.Invert()
		s.AddRule(newLHS, rule.rhs.Mutable(), &path)
	}
}

// RecordRelation uniques the pair (lhs, rhs) and returns its index.
func (s *System) RecordRelation(lhs, rhs *Term) int {
	key := [2]*Term{lhs, rhs}
	if id, ok := s.relationMap[key]; ok {
		return id
	}
	id := len(s.relations)
	s.relations = append(s.relations, Relation{LHS: lhs, RHS: rhs})
	s.relationMap[key] = id
	return id
}

func (s *System) Relation(id int) Relation { return s.relations[id] }

// VerifyRules checks structural invariants on every rule: property symbols
// terminal, generic parameters only at the root, both sides rooted in the
// same domain. Enabled in test mode.
func (s *System) VerifyRules() error {
	for i := range s.rules {
		rule := &s.rules[i]
		lhs, rhs := rule.lhs, rule.rhs

		for index, symbol := range lhs.symbols {
			last := index == lhs.Len()-1
			if !last {
				if symbol.kind == SymbolLayout {
					return fmt.Errorf("rule %s: interior layout symbol", rule)
				}
				if symbol.HasSubstitutions() {
					return fmt.Errorf("rule %s: interior substitution symbol", rule)
				}
			}
			if index != 0 && symbol.kind == SymbolGenericParam {
				return fmt.Errorf("rule %s: interior generic parameter", rule)
			}
			if !rule.lhsSimplified && index != 0 && !last && symbol.kind == SymbolProtocol {
				return fmt.Errorf("rule %s: interior protocol symbol", rule)
			}
		}

		for index, symbol := range rhs.symbols {
			if symbol.kind == SymbolLayout {
				return fmt.Errorf("rule %s: layout symbol on rhs", rule)
			}
			if symbol.HasSubstitutions() {
				return fmt.Errorf("rule %s: substitution symbol on rhs", rule)
			}
			if index != 0 && symbol.kind == SymbolGenericParam {
				return fmt.Errorf("rule %s: interior generic parameter on rhs", rule)
			}
			if !rule.rhsSimplified && index != 0 && symbol.kind == SymbolProtocol {
				return fmt.Errorf("rule %s: interior protocol symbol on rhs", rule)
			}
		}

		lhsRoot, lhsHas := lhs.RootProtocol()
		rhsRoot, rhsHas := rhs.RootProtocol()
		if lhsHas != rhsHas || (lhsHas && lhsRoot != rhsRoot) {
			return fmt.Errorf("rule %s: sides rooted in different domains", rule)
		}
	}
	return nil
}

// Dump writes the rules, relations, type differences and live loops.
func (s *System) Dump(w io.Writer) {
	fmt.Fprintln(w, "Rewrite system: {")
	for i := range s.rules {
		fmt.Fprintf(w, "- %s\n", s.rules[i].String())
	}
	fmt.Fprintln(w, "}")
	fmt.Fprintln(w, "Relations: {")
	for _, rel := range s.relations {
		fmt.Fprintf(w, "- %s =>> %s\n", rel.LHS, rel.RHS)
	}
	fmt.Fprintln(w, "}")
	fmt.Fprintln(w, "Type differences: {")
	for i := range s.differences {
		fmt.Fprintf(w, "- %s\n", s.differences[i].String())
	}
	fmt.Fprintln(w, "}")
	fmt.Fprintln(w, "Rewrite loops: {")
	for _, loop := range s.loops {
		if loop.isDeleted() {
			continue
		}
		fmt.Fprintf(w, "- %s\n", loop)
	}
	fmt.Fprintln(w, "}")
}

func (s *System) debugf(format string, args ...interface{}) {
	if config.DebugDump {
		fmt.Printf(format, args...)
	}
}
