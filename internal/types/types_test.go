package types

import (
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want string
	}{
		{
			name: "plain nominal",
			typ:  Nominal{Name: "Int"},
			want: "Int",
		},
		{
			name: "generic nominal",
			typ:  Nominal{Name: "Array", Args: []Type{Nominal{Name: "Int"}}},
			want: "Array<Int>",
		},
		{
			name: "param",
			typ:  Param{Depth: 0, Index: 1},
			want: "τ_0_1",
		},
		{
			name: "resolved member",
			typ:  Member{Base: Param{}, Name: "Element", Protocol: "Sequence"},
			want: "τ_0_0.[Sequence:Element]",
		},
		{
			name: "unresolved member",
			typ:  Member{Base: Param{}, Name: "Element"},
			want: "τ_0_0.Element",
		},
		{
			name: "tuple",
			typ:  Tuple{Elements: []Type{Nominal{Name: "Int"}, Param{}}},
			want: "(Int, τ_0_0)",
		},
		{
			name: "func",
			typ:  Func{Params: []Type{Nominal{Name: "Int"}}, Result: Nominal{Name: "Bool"}},
			want: "(Int) -> Bool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.want {
				t.Errorf("String() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsTypeParameter(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want bool
	}{
		{"param", Param{}, true},
		{"member of param", Member{Base: Param{}, Name: "Element"}, true},
		{"nested member", Member{Base: Member{Base: Param{}, Name: "A"}, Name: "B"}, true},
		{"nominal", Nominal{Name: "Int"}, false},
		{"member of nominal", Member{Base: Nominal{Name: "Int"}, Name: "Element"}, false},
		{"nominal over param", Nominal{Name: "Array", Args: []Type{Param{}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTypeParameter(tt.typ); got != tt.want {
				t.Errorf("IsTypeParameter(%s) = %v, want %v", tt.typ, got, tt.want)
			}
		})
	}
}

func TestTransformReplacesParameters(t *testing.T) {
	src := Nominal{Name: "Dictionary", Args: []Type{
		Param{Depth: 0, Index: 0},
		Member{Base: Param{Depth: 0, Index: 1}, Name: "Element", Protocol: "Sequence"},
	}}

	i := 0
	got := Transform(src, func(sub Type) (Type, bool) {
		if IsTypeParameter(sub) {
			p := Placeholder{Index: i}
			i++
			return p, true
		}
		return nil, false
	})

	want := Nominal{Name: "Dictionary", Args: []Type{Placeholder{Index: 0}, Placeholder{Index: 1}}}
	if !Equal(got, want) {
		t.Errorf("Transform() = %s, want %s", got, want)
	}
	if i != 2 {
		t.Errorf("replaced %d parameters, want 2", i)
	}
}

func TestTypeParameters(t *testing.T) {
	src := Tuple{Elements: []Type{
		Param{Depth: 0, Index: 0},
		Nominal{Name: "Array", Args: []Type{Member{Base: Param{Depth: 0, Index: 0}, Name: "E"}}},
		Param{Depth: 0, Index: 0},
	}}
	params := TypeParameters(src)
	if len(params) != 2 {
		t.Fatalf("TypeParameters() returned %d entries, want 2", len(params))
	}
	if !Equal(params[0], Param{Depth: 0, Index: 0}) {
		t.Errorf("params[0] = %s", params[0])
	}
	if !Equal(params[1], Member{Base: Param{Depth: 0, Index: 0}, Name: "E"}) {
		t.Errorf("params[1] = %s", params[1])
	}
}

func TestNestingDepth(t *testing.T) {
	deep := Nominal{Name: "Array", Args: []Type{
		Nominal{Name: "Array", Args: []Type{Nominal{Name: "Int"}}},
	}}
	if got := NestingDepth(deep); got != 3 {
		t.Errorf("NestingDepth = %d, want 3", got)
	}
	if got := NestingDepth(Nominal{Name: "Int"}); got != 1 {
		t.Errorf("NestingDepth = %d, want 1", got)
	}
}
