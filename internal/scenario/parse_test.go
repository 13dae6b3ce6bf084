package scenario

import (
	"testing"

	"github.com/lunalang/generics/internal/types"
)

func TestParseType(t *testing.T) {
	params := map[string]int{"T": 0, "U": 1}
	tParam := types.Param{Depth: 0, Index: 0}
	uParam := types.Param{Depth: 0, Index: 1}

	tests := []struct {
		src  string
		want types.Type
	}{
		{"T", tParam},
		{"@1", uParam},
		{"Self", tParam},
		{"Int", types.Nominal{Name: "Int"}},
		{"U.Elem", types.Member{Base: uParam, Name: "Elem"}},
		{"T.[Collection:Element]", types.Member{Base: tParam, Name: "Element", Protocol: "Collection"}},
		{
			"T.[Collection:Element].Index",
			types.Member{
				Base: types.Member{Base: tParam, Name: "Element", Protocol: "Collection"},
				Name: "Index",
			},
		},
		{"Box<T, Int>", types.Nominal{Name: "Box", Args: []types.Type{tParam, types.Nominal{Name: "Int"}}}},
		{
			"Dict<Box<U>, T>",
			types.Nominal{Name: "Dict", Args: []types.Type{
				types.Nominal{Name: "Box", Args: []types.Type{uParam}},
				tParam,
			}},
		},
		{"()", types.Tuple{}},
		{"(Int, T)", types.Tuple{Elements: []types.Type{types.Nominal{Name: "Int"}, tParam}}},
		{"(Int)", types.Nominal{Name: "Int"}},
		{"(T) -> Int", types.Func{Params: []types.Type{tParam}, Result: types.Nominal{Name: "Int"}}},
		{"() -> U", types.Func{Result: uParam}},
		{" Box< T , U > ", types.Nominal{Name: "Box", Args: []types.Type{tParam, uParam}}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := ParseType(tt.src, params)
			if err != nil {
				t.Fatalf("ParseType(%q): %v", tt.src, err)
			}
			if !types.Equal(got, tt.want) {
				t.Errorf("ParseType(%q) = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestParseTypeErrors(t *testing.T) {
	params := map[string]int{"T": 0}

	for _, src := range []string{
		"",
		"Box<T",
		"Box<T,",
		"T.",
		"T.[Collection]",
		"@",
		"T U",
		"(T -> Int",
	} {
		t.Run(src, func(t *testing.T) {
			if got, err := ParseType(src, params); err == nil {
				t.Errorf("ParseType(%q) = %s, want error", src, got)
			}
		})
	}
}
