package scenario

import (
	"testing"

	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

const basicScenario = `
name: basic
params: [T, U]
protocols:
  - name: Collection
    associated_types: [Element]
    requirements:
      - "Self.[Collection:Element] : P"
  - name: P
  - name: R
    inherits: [P]
classes:
  - name: Base
    params: 1
  - name: Derived
    super: Base<Int>
conformances:
  - type: Box
    protocol: P
    witnesses:
      Element: "@0"
    conditional:
      - "@0 : P"
requirements:
  - "T : Collection"
  - "T : Derived"
  - "T : AnyObject"
  - "T.[Collection:Element] == Box<U>"
  - "U == T"
`

func TestLoadAndBuild(t *testing.T) {
	s, err := Load([]byte(basicScenario))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "basic" || len(s.Params) != 2 {
		t.Fatalf("scenario header = %q %v", s.Name, s.Params)
	}

	registry, reqs, err := s.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// A bare name on the right classifies by what the registry declares.
	wantKinds := []decl.RequirementKind{
		decl.ConformanceRequirement,
		decl.SuperclassRequirement,
		decl.LayoutRequirement,
		decl.SameTypeRequirement,
		decl.SameTypeRequirement,
	}
	if len(reqs) != len(wantKinds) {
		t.Fatalf("Build produced %d requirements, want %d", len(reqs), len(wantKinds))
	}
	for i, kind := range wantKinds {
		if reqs[i].Kind != kind {
			t.Errorf("requirement %d (%s) has kind %d, want %d", i, reqs[i], reqs[i].Kind, kind)
		}
	}

	if got := reqs[3].String(); got != "τ_0_0.[Collection:Element] == Box<τ_0_1>" {
		t.Errorf("requirement 3 = %q", got)
	}
	if reqs[2].Layout.Kind != decl.LayoutAnyObject {
		t.Errorf("layout requirement kind = %v, want AnyObject", reqs[2].Layout)
	}

	// Protocol requirements are parsed in Self's context.
	collection, ok := registry.Protocol("Collection")
	if !ok {
		t.Fatal("Collection not registered")
	}
	if len(collection.Requirements) != 1 {
		t.Fatalf("Collection has %d requirements, want 1", len(collection.Requirements))
	}
	wantSubject := types.Member{
		Base:     types.Param{Depth: 0, Index: 0},
		Name:     "Element",
		Protocol: "Collection",
	}
	if !types.Equal(collection.Requirements[0].Subject, wantSubject) {
		t.Errorf("protocol requirement subject = %s, want %s",
			collection.Requirements[0].Subject, wantSubject)
	}

	// The class superclass is parsed into the declaration context.
	derived, ok := registry.Class("Derived")
	if !ok || derived.Super == nil {
		t.Fatal("Derived has no superclass")
	}
	wantSuper := types.Nominal{Name: "Base", Args: []types.Type{types.Nominal{Name: "Int"}}}
	if !types.Equal(*derived.Super, wantSuper) {
		t.Errorf("superclass of Derived = %s, want %s", derived.Super, wantSuper)
	}

	// Conformance witnesses and conditional requirements use @n parameters.
	conf, _, ok := registry.LookupConformance(types.Nominal{Name: "Box"}, "P")
	if !ok {
		t.Fatal("Box : P not registered")
	}
	if !types.Equal(conf.Witnesses["Element"], types.Param{Depth: 0, Index: 0}) {
		t.Errorf("witness for Element = %s, want @0", conf.Witnesses["Element"])
	}
	if len(conf.Conditional) != 1 || conf.Conditional[0].Protocol != "P" {
		t.Errorf("conditional requirements = %v", conf.Conditional)
	}
}

func TestParseLayouts(t *testing.T) {
	tests := []struct {
		line string
		want decl.Layout
	}{
		{"T : AnyObject", decl.Layout{Kind: decl.LayoutAnyObject}},
		{"T : _NativeClass", decl.Layout{Kind: decl.LayoutNativeClass}},
		{"T : _Trivial", decl.Layout{Kind: decl.LayoutTrivial}},
		{"T : _Trivial(64, 8)", decl.Layout{Kind: decl.LayoutTrivialSized, Size: 64, Alignment: 8}},
	}

	registry := decl.NewRegistry()
	params := map[string]int{"T": 0}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			req, err := parseRequirement(registry, tt.line, params)
			if err != nil {
				t.Fatalf("parseRequirement(%q): %v", tt.line, err)
			}
			if req.Kind != decl.LayoutRequirement || req.Layout != tt.want {
				t.Errorf("parsed %q as %v, want layout %v", tt.line, req, tt.want)
			}
		})
	}
}

func TestParseRequirementErrors(t *testing.T) {
	registry := decl.NewRegistry()
	params := map[string]int{"T": 0}

	for _, line := range []string{
		"T Collection",
		"T :",
		"== Int",
	} {
		t.Run(line, func(t *testing.T) {
			if req, err := parseRequirement(registry, line, params); err == nil {
				t.Errorf("parseRequirement(%q) = %v, want error", line, req)
			}
		})
	}
}

func TestBuildRejectsDuplicateDeclarations(t *testing.T) {
	s := &Scenario{
		Protocols: []ProtocolDecl{{Name: "P"}, {Name: "P"}},
	}
	if _, _, err := s.Build(); err == nil {
		t.Error("Build accepted a duplicate protocol declaration")
	}
}
