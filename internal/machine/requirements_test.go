package machine

import (
	"testing"

	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

func TestDesugarConformance(t *testing.T) {
	registry := newRegistry(t,
		[]*decl.Protocol{{Name: "P"}},
		nil,
		[]*decl.Conformance{{TypeName: "Box", Protocol: "P"}})

	tParam := types.Param{Depth: 0, Index: 0}

	t.Run("parameter subject passes through", func(t *testing.T) {
		req := decl.Requirement{Kind: decl.ConformanceRequirement, Subject: tParam, Protocol: "P"}
		out, err := desugarRequirement(registry, req)
		if err != nil {
			t.Fatalf("desugarRequirement: %v", err)
		}
		if len(out) != 1 || out[0].String() != "τ_0_0 : P" {
			t.Errorf("desugared = %v, want [τ_0_0 : P]", out)
		}
	})

	t.Run("satisfied concrete subject vanishes", func(t *testing.T) {
		req := decl.Requirement{
			Kind:     decl.ConformanceRequirement,
			Subject:  types.Nominal{Name: "Box"},
			Protocol: "P",
		}
		out, err := desugarRequirement(registry, req)
		if err != nil {
			t.Fatalf("desugarRequirement: %v", err)
		}
		if len(out) != 0 {
			t.Errorf("desugared = %v, want empty", out)
		}
	})

	t.Run("unsatisfied concrete subject errors", func(t *testing.T) {
		req := decl.Requirement{
			Kind:     decl.ConformanceRequirement,
			Subject:  types.Nominal{Name: "Pair"},
			Protocol: "P",
		}
		if _, err := desugarRequirement(registry, req); err == nil {
			t.Error("no error for a non-conforming concrete subject")
		}
	})

	t.Run("unknown protocol errors", func(t *testing.T) {
		req := decl.Requirement{Kind: decl.ConformanceRequirement, Subject: tParam, Protocol: "Nope"}
		if _, err := desugarRequirement(registry, req); err == nil {
			t.Error("no error for an unknown protocol")
		}
	})
}

func TestDesugarSuperclass(t *testing.T) {
	registry := newRegistry(t, nil, []*decl.Class{{Name: "C"}}, nil)
	tParam := types.Param{Depth: 0, Index: 0}

	req := decl.Requirement{
		Kind:       decl.SuperclassRequirement,
		Subject:    tParam,
		Constraint: types.Nominal{Name: "C"},
	}
	out, err := desugarRequirement(registry, req)
	if err != nil {
		t.Fatalf("desugarRequirement: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("desugared = %v, want one requirement", out)
	}

	req.Constraint = types.Nominal{Name: "Unknown"}
	if _, err := desugarRequirement(registry, req); err == nil {
		t.Error("no error for an undeclared class bound")
	}

	req.Constraint = types.Tuple{}
	if _, err := desugarRequirement(registry, req); err == nil {
		t.Error("no error for a non-nominal class bound")
	}
}

func TestDesugarSameType(t *testing.T) {
	registry := newRegistry(t, nil, nil, nil)
	tParam := types.Param{Depth: 0, Index: 0}
	uParam := types.Param{Depth: 0, Index: 1}
	intType := types.Nominal{Name: "Int"}
	boolType := types.Nominal{Name: "Bool"}

	tests := []struct {
		name    string
		req     decl.Requirement
		want    []string
		wantErr bool
	}{
		{
			name: "subject normalized to the parameter side",
			req: decl.Requirement{
				Kind:       decl.SameTypeRequirement,
				Subject:    intType,
				Constraint: tParam,
			},
			want: []string{"τ_0_0 == Int"},
		},
		{
			name: "equal concrete types vanish",
			req: decl.Requirement{
				Kind:       decl.SameTypeRequirement,
				Subject:    intType,
				Constraint: intType,
			},
			want: nil,
		},
		{
			name: "matching shapes split piecewise",
			req: decl.Requirement{
				Kind:       decl.SameTypeRequirement,
				Subject:    types.Nominal{Name: "Pair", Args: []types.Type{tParam, intType}},
				Constraint: types.Nominal{Name: "Pair", Args: []types.Type{boolType, uParam}},
			},
			want: []string{"τ_0_0 == Bool", "τ_0_1 == Int"},
		},
		{
			name: "tuples split elementwise",
			req: decl.Requirement{
				Kind:       decl.SameTypeRequirement,
				Subject:    types.Tuple{Elements: []types.Type{tParam, intType}},
				Constraint: types.Tuple{Elements: []types.Type{boolType, uParam}},
			},
			want: []string{"τ_0_0 == Bool", "τ_0_1 == Int"},
		},
		{
			name: "distinct heads error",
			req: decl.Requirement{
				Kind:       decl.SameTypeRequirement,
				Subject:    types.Nominal{Name: "Box", Args: []types.Type{tParam}},
				Constraint: types.Nominal{Name: "Pair", Args: []types.Type{tParam}},
			},
			wantErr: true,
		},
		{
			name: "disagreeing concrete positions error",
			req: decl.Requirement{
				Kind:       decl.SameTypeRequirement,
				Subject:    types.Nominal{Name: "Pair", Args: []types.Type{intType, tParam}},
				Constraint: types.Nominal{Name: "Pair", Args: []types.Type{boolType, tParam}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := desugarRequirement(registry, tt.req)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("desugared to %v, want error", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("desugarRequirement: %v", err)
			}
			if !sameStrings(requirementStrings(out), tt.want) {
				t.Errorf("desugared = %v, want %v", requirementStrings(out), tt.want)
			}
		})
	}
}

func TestDesugarCollectsAllErrors(t *testing.T) {
	registry := newRegistry(t, []*decl.Protocol{{Name: "P"}}, nil, nil)
	tParam := types.Param{Depth: 0, Index: 0}

	out, errs := desugarRequirements(registry, []decl.Requirement{
		{Kind: decl.ConformanceRequirement, Subject: tParam, Protocol: "Unknown1"},
		{Kind: decl.ConformanceRequirement, Subject: tParam, Protocol: "P"},
		{Kind: decl.ConformanceRequirement, Subject: tParam, Protocol: "Unknown2"},
	})
	if len(errs) != 2 {
		t.Errorf("collected %d errors, want 2: %v", len(errs), errs)
	}
	if len(out) != 1 {
		t.Errorf("desugared = %v, want the one valid requirement", out)
	}
}
