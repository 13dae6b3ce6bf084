package rewrite

import (
	"errors"
	"testing"

	"github.com/lunalang/generics/internal/config"
)

func TestAddRuleOrientation(t *testing.T) {
	ctx := testContext(t)
	sys := NewSystem(ctx)
	sys.Initialize(false, nil, nil, nil)

	x := ctx.GenericParamSymbol(0, 0)
	y := ctx.GenericParamSymbol(0, 1)

	// The smaller term must end up on the right regardless of argument order.
	if !sys.AddRule(NewMutableTerm(x), NewMutableTerm(y), nil) {
		t.Fatal("AddRule returned false for distinct terms")
	}
	rule := sys.Rule(0)
	if rule.LHS().String() != "τ_0_1" || rule.RHS().String() != "τ_0_0" {
		t.Errorf("rule oriented as %s, want τ_0_1 => τ_0_0", rule)
	}
}

func TestAddRuleCollapses(t *testing.T) {
	ctx := testContext(t)
	sys := NewSystem(ctx)
	sys.Initialize(false, nil, nil, nil)

	x := ctx.GenericParamSymbol(0, 0)
	y := ctx.GenericParamSymbol(0, 1)
	p := ctx.ProtocolSymbol("P")

	sys.AddRule(NewMutableTerm(y), NewMutableTerm(x), nil)
	sys.AddRule(NewMutableTerm(x, p), NewMutableTerm(x), nil)

	// Both sides reduce to τ_0_0, so no rule is added.
	if sys.AddRule(NewMutableTerm(y, p), NewMutableTerm(x), nil) {
		t.Error("AddRule added a rule for a pair that reduces to the same normal form")
	}
	if sys.RuleCount() != 2 {
		t.Errorf("RuleCount() = %d, want 2", sys.RuleCount())
	}
}

func TestSimplifyIdempotent(t *testing.T) {
	ctx := testContext(t)
	sys := NewSystem(ctx)
	sys.Initialize(false, nil, nil, nil)

	x := ctx.GenericParamSymbol(0, 0)
	y := ctx.GenericParamSymbol(0, 1)
	p := ctx.ProtocolSymbol("P")
	q := ctx.ProtocolSymbol("Q")

	sys.AddRule(NewMutableTerm(y), NewMutableTerm(x), nil)
	sys.AddRule(NewMutableTerm(x, p), NewMutableTerm(x), nil)

	term := NewMutableTerm(y, p, q)
	if !sys.Simplify(term, nil) {
		t.Fatal("Simplify did not reduce a reducible term")
	}
	if term.String() != "τ_0_0.[Q]" {
		t.Errorf("normal form = %s, want τ_0_0.[Q]", term)
	}

	// A normal form stays put.
	if sys.Simplify(term, nil) {
		t.Errorf("Simplify changed a normal form, got %s", term)
	}
}

// completionFixture builds the rule pairs for the signature
// {T : P, U : P, T == U} in the given order.
func completionPairs(ctx *Context, order []int) []RulePair {
	x := ctx.GenericParamSymbol(0, 0)
	y := ctx.GenericParamSymbol(0, 1)
	p := ctx.ProtocolSymbol("P")

	all := []RulePair{
		{LHS: NewMutableTerm(x, p), RHS: NewMutableTerm(x)},
		{LHS: NewMutableTerm(y, p), RHS: NewMutableTerm(y)},
		{LHS: NewMutableTerm(y), RHS: NewMutableTerm(x)},
	}
	out := make([]RulePair, 0, len(all))
	for _, i := range order {
		out = append(out, all[i])
	}
	return out
}

func TestCompletionConfluence(t *testing.T) {
	// Whatever order the rules arrive in, the completed system must send
	// every probe term to the same normal form.
	orders := [][]int{
		{0, 1, 2},
		{2, 1, 0},
		{1, 2, 0},
	}

	var want []string
	for i, order := range orders {
		ctx := testContext(t)
		sys := NewSystem(ctx)
		sys.Initialize(false, nil, nil, completionPairs(ctx, order))
		if err := sys.ComputeConfluentCompletion(config.MaxRuleCount, config.MaxRuleDepth); err != nil {
			t.Fatalf("order %v: completion failed: %v", order, err)
		}
		if err := sys.VerifyRules(); err != nil {
			t.Fatalf("order %v: %v", order, err)
		}

		x := ctx.GenericParamSymbol(0, 0)
		y := ctx.GenericParamSymbol(0, 1)
		p := ctx.ProtocolSymbol("P")
		probes := []*MutableTerm{
			NewMutableTerm(y, p),
			NewMutableTerm(y, p, p),
			NewMutableTerm(x, p),
			NewMutableTerm(y),
		}

		var got []string
		for _, probe := range probes {
			sys.Simplify(probe, nil)
			got = append(got, probe.String())
		}

		if i == 0 {
			want = got
			continue
		}
		for j := range got {
			if got[j] != want[j] {
				t.Errorf("order %v: normal form %d = %s, want %s", order, j, got[j], want[j])
			}
		}
	}
}

func TestCompletionLimits(t *testing.T) {
	// {τ_0_0.a.b.c => τ_0_0, τ_0_0.a => τ_0_0} forces completion to derive
	// τ_0_0.b.c => τ_0_0, which can trip either ceiling.
	pairs := func(ctx *Context) []RulePair {
		x := ctx.GenericParamSymbol(0, 0)
		a, b, c := ctx.NameSymbol("a"), ctx.NameSymbol("b"), ctx.NameSymbol("c")
		return []RulePair{
			{LHS: NewMutableTerm(x, a, b, c), RHS: NewMutableTerm(x)},
			{LHS: NewMutableTerm(x, a), RHS: NewMutableTerm(x)},
		}
	}

	t.Run("rule count", func(t *testing.T) {
		ctx := testContext(t)
		sys := NewSystem(ctx)
		sys.Initialize(false, nil, nil, pairs(ctx))
		err := sys.ComputeConfluentCompletion(2, config.MaxRuleDepth)
		if !errors.Is(err, ErrTooManyRules) {
			t.Errorf("completion error = %v, want ErrTooManyRules", err)
		}
	})

	t.Run("rule depth", func(t *testing.T) {
		ctx := testContext(t)
		sys := NewSystem(ctx)
		sys.Initialize(false, nil, nil, pairs(ctx))
		err := sys.ComputeConfluentCompletion(config.MaxRuleCount, 2)
		if !errors.Is(err, ErrRuleTooDeep) {
			t.Errorf("completion error = %v, want ErrRuleTooDeep", err)
		}
	})

	t.Run("within limits", func(t *testing.T) {
		ctx := testContext(t)
		sys := NewSystem(ctx)
		sys.Initialize(false, nil, nil, pairs(ctx))
		if err := sys.ComputeConfluentCompletion(config.MaxRuleCount, config.MaxRuleDepth); err != nil {
			t.Errorf("completion failed: %v", err)
		}
	})
}

func TestMinimizeDeletesDerivedConformance(t *testing.T) {
	// In {T : P, U : P, T == U} the conformance of U is derivable from the
	// conformance of T through the same-type rule. Minimization must delete
	// exactly that rule.
	ctx := testContext(t)
	sys := NewSystem(ctx)
	sys.Initialize(true, nil, nil, completionPairs(ctx, []int{0, 1, 2}))

	if err := sys.ComputeConfluentCompletion(config.MaxRuleCount, config.MaxRuleDepth); err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	sys.SimplifyLeftHandSides()
	sys.SimplifyRightHandSides()
	sys.Minimize()

	if sys.HadError() {
		t.Error("HadError() = true for a valid signature")
	}

	var kept []string
	for _, ruleID := range sys.MinimizedGenericSignatureRules() {
		kept = append(kept, sys.Rule(ruleID).LHS().String())
	}
	want := []string{"τ_0_0.[P]", "τ_0_1"}
	if len(kept) != len(want) {
		t.Fatalf("minimal rules = %v, want %v", kept, want)
	}
	for i := range want {
		if kept[i] != want[i] {
			t.Errorf("minimal rule %d = %s, want %s", i, kept[i], want[i])
		}
	}
}

func TestMergeHeuristic(t *testing.T) {
	// A rule equating [P:A] and [Q:A] introduces the merged symbol [P&Q:A],
	// and conformances of either original lift onto it.
	ctx := testContext(t)
	sys := NewSystem(ctx)

	x := ctx.GenericParamSymbol(0, 0)
	pa := ctx.AssociatedTypeSymbol([]string{"P"}, "A")
	qa := ctx.AssociatedTypeSymbol([]string{"Q"}, "A")
	r := ctx.ProtocolSymbol("R")

	pairs := []RulePair{
		// [Q:A] conforms to R.
		{LHS: NewMutableTerm(qa, r), RHS: NewMutableTerm(qa)},
		// X.[Q:A] == X.[P:A].
		{LHS: NewMutableTerm(x, qa), RHS: NewMutableTerm(x, pa)},
	}
	sys.Initialize(false, nil, nil, pairs)
	if err := sys.ComputeConfluentCompletion(config.MaxRuleCount, config.MaxRuleDepth); err != nil {
		t.Fatalf("completion failed: %v", err)
	}

	lhs := NewMutableTerm(x, pa)
	rhs := NewMutableTerm(x, qa)
	sys.Simplify(lhs, nil)
	sys.Simplify(rhs, nil)

	if !lhs.Equal(rhs) {
		t.Fatalf("merged members disagree: %s vs %s", lhs, rhs)
	}
	merged := lhs.Back()
	if merged.Kind() != SymbolAssociatedType || merged.Name() != "A" {
		t.Fatalf("normal form %s does not end in an associated type symbol", lhs)
	}
	protos := merged.Protocols()
	if len(protos) != 2 || protos[0] != "P" || protos[1] != "Q" {
		t.Errorf("merged protocol set = %v, want [P Q]", protos)
	}

	// The conformance to R carried over to the merged symbol.
	conformance := lhs.Clone()
	conformance.Add(r)
	if !sys.Simplify(conformance, nil) || !conformance.Equal(lhs) {
		t.Errorf("merged symbol does not conform to R: %s", conformance)
	}
}
