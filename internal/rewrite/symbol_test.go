package rewrite

import (
	"testing"

	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

func TestSymbolInterning(t *testing.T) {
	ctx := testContext(t)

	if a, b := ctx.ProtocolSymbol("P"), ctx.ProtocolSymbol("P"); a != b {
		t.Errorf("protocol symbol not interned: %p vs %p", a, b)
	}
	if a, b := ctx.GenericParamSymbol(0, 1), ctx.GenericParamSymbol(0, 1); a != b {
		t.Errorf("generic parameter symbol not interned: %p vs %p", a, b)
	}
	if a, b := ctx.AssociatedTypeSymbol([]string{"P"}, "A"), ctx.AssociatedTypeSymbol([]string{"P"}, "A"); a != b {
		t.Errorf("associated type symbol not interned: %p vs %p", a, b)
	}

	x := ctx.GenericParamSymbol(0, 0)
	p := ctx.ProtocolSymbol("P")
	if a, b := ctx.Term(x, p), ctx.Term(x, p); a != b {
		t.Errorf("term not interned: %p vs %p", a, b)
	}
}

func TestAssociatedTypeSymbolCanonicalization(t *testing.T) {
	ctx := testContext(t)

	// Duplicates collapse and the list is sorted in protocol order.
	s := ctx.AssociatedTypeSymbol([]string{"Q", "P", "Q"}, "A")
	if got := s.Protocols(); len(got) != 2 || got[0] != "P" || got[1] != "Q" {
		t.Errorf("protocol set = %v, want [P Q]", got)
	}

	// R inherits P, so P is dropped from {P, R}.
	s = ctx.AssociatedTypeSymbol([]string{"P", "R"}, "A")
	if got := s.Protocols(); len(got) != 1 || got[0] != "R" {
		t.Errorf("protocol set = %v, want [R]", got)
	}
}

func TestSymbolKindOrder(t *testing.T) {
	ctx := testContext(t)

	nominal := types.Nominal{Name: "Base"}
	ordered := []*Symbol{
		ctx.AssociatedTypeSymbol([]string{"P"}, "A"),
		ctx.GenericParamSymbol(0, 0),
		ctx.NameSymbol("A"),
		ctx.ProtocolSymbol("P"),
		ctx.LayoutSymbol(decl.Layout{Kind: decl.LayoutAnyObject}),
		ctx.SuperclassSymbol(nominal, nil),
		ctx.ConcreteTypeSymbol(nominal, nil),
		ctx.ConcreteConformanceSymbol(nominal, nil, "P"),
	}

	for i := range ordered {
		for j := range ordered {
			r, ok := ordered[i].Compare(ordered[j], ctx)
			if !ok {
				t.Errorf("%s vs %s: incomparable, want comparable", ordered[i], ordered[j])
				continue
			}
			switch {
			case i < j && r >= 0:
				t.Errorf("%s vs %s: got %d, want < 0", ordered[i], ordered[j], r)
			case i > j && r <= 0:
				t.Errorf("%s vs %s: got %d, want > 0", ordered[i], ordered[j], r)
			case i == j && r != 0:
				t.Errorf("%s vs %s: got %d, want 0", ordered[i], ordered[j], r)
			}
		}
	}
}

func TestSymbolOrderWithinKind(t *testing.T) {
	ctx := testContext(t)

	tests := []struct {
		name string
		a, b *Symbol
		want int
	}{
		{
			name: "names lexicographic",
			a:    ctx.NameSymbol("A"),
			b:    ctx.NameSymbol("B"),
			want: -1,
		},
		{
			name: "protocols by protocol order",
			a:    ctx.ProtocolSymbol("P"),
			b:    ctx.ProtocolSymbol("Q"),
			want: -1,
		},
		{
			name: "generic params by depth then index",
			a:    ctx.GenericParamSymbol(0, 1),
			b:    ctx.GenericParamSymbol(1, 0),
			want: -1,
		},
		{
			name: "associated types by protocol then name",
			a:    ctx.AssociatedTypeSymbol([]string{"P"}, "A"),
			b:    ctx.AssociatedTypeSymbol([]string{"Q"}, "A"),
			want: -1,
		},
		{
			name: "larger protocol set orders first",
			a:    ctx.AssociatedTypeSymbol([]string{"P", "Q"}, "A"),
			b:    ctx.AssociatedTypeSymbol([]string{"P"}, "A"),
			want: -1,
		},
		{
			name: "layouts by kind order",
			a:    ctx.LayoutSymbol(decl.Layout{Kind: decl.LayoutAnyObject}),
			b:    ctx.LayoutSymbol(decl.Layout{Kind: decl.LayoutNativeClass}),
			want: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := tt.a.Compare(tt.b, ctx)
			if !ok {
				t.Fatalf("Compare(%s, %s): incomparable", tt.a, tt.b)
			}
			if sign(r) != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want sign %d", tt.a, tt.b, r, tt.want)
			}
			back, ok := tt.b.Compare(tt.a, ctx)
			if !ok || sign(back) != -tt.want {
				t.Errorf("Compare(%s, %s) = %d, want sign %d", tt.b, tt.a, back, -tt.want)
			}
		})
	}
}

func TestIncomparableSymbols(t *testing.T) {
	ctx := testContext(t)

	nominal := types.Nominal{Name: "Base"}
	other := types.Nominal{Name: "Derived"}
	super := ctx.SuperclassSymbol(nominal, nil)
	concrete := ctx.ConcreteTypeSymbol(other, nil)

	// Across kinds the kind order still decides.
	if r, ok := super.Compare(concrete, ctx); !ok || r >= 0 {
		t.Errorf("Compare(superclass, concrete) = %d, %v; want < 0", r, ok)
	}

	// Two distinct symbols of the same payload-carrying kind do not compare.
	if _, ok := ctx.SuperclassSymbol(other, nil).Compare(super, ctx); ok {
		t.Error("two distinct superclass symbols compare, want incomparable")
	}
	if _, ok := ctx.ConcreteTypeSymbol(nominal, nil).Compare(concrete, ctx); ok {
		t.Error("two distinct concrete type symbols compare, want incomparable")
	}
}

func TestTermOrder(t *testing.T) {
	ctx := testContext(t)

	x := ctx.GenericParamSymbol(0, 0)
	y := ctx.GenericParamSymbol(0, 1)
	p := ctx.ProtocolSymbol("P")
	q := ctx.ProtocolSymbol("Q")

	tests := []struct {
		name string
		a, b *MutableTerm
		want int
	}{
		{"shorter first", NewMutableTerm(y), NewMutableTerm(x, p), -1},
		{"lexicographic at equal length", NewMutableTerm(x, p), NewMutableTerm(x, q), -1},
		{"root decides", NewMutableTerm(x, q), NewMutableTerm(y, p), -1},
		{"equal", NewMutableTerm(x, p), NewMutableTerm(x, p), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := tt.a.Compare(tt.b, ctx)
			if !ok {
				t.Fatalf("Compare(%s, %s): incomparable", tt.a, tt.b)
			}
			if sign(r) != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want sign %d", tt.a, tt.b, r, tt.want)
			}
		})
	}
}

func TestContainsUnresolvedSymbols(t *testing.T) {
	ctx := testContext(t)

	x := ctx.GenericParamSymbol(0, 0)
	resolved := ctx.Term(x, ctx.AssociatedTypeSymbol([]string{"P"}, "A"))
	if resolved.ContainsUnresolvedSymbols() {
		t.Errorf("%s reported unresolved", resolved)
	}

	named := ctx.Term(x, ctx.NameSymbol("Elem"))
	if !named.ContainsUnresolvedSymbols() {
		t.Errorf("%s not reported unresolved", named)
	}

	// A name hiding inside a substitution term counts too.
	schema := types.Nominal{Name: "Box", Args: []types.Type{types.Placeholder{Index: 0}}}
	concrete := ctx.ConcreteTypeSymbol(schema, []*Term{named})
	wrapped := ctx.Term(x, concrete)
	if !wrapped.ContainsUnresolvedSymbols() {
		t.Errorf("%s not reported unresolved through substitutions", wrapped)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
