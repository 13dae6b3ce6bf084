package signature

import (
	"context"
	"os"
	"testing"

	"github.com/lunalang/generics/internal/cache"
	"github.com/lunalang/generics/internal/config"
	"github.com/lunalang/generics/internal/decl"
)

func TestMain(m *testing.M) {
	config.IsTestMode = true
	os.Exit(m.Run())
}

func mustAdd(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestSessionMinimize(t *testing.T) {
	registry := NewRegistry()
	mustAdd(t, registry.AddProtocol(&Protocol{Name: "P"}))
	mustAdd(t, registry.AddProtocol(&Protocol{Name: "Q"}))

	tParam := GenericParam(0, 0)
	uParam := GenericParam(0, 1)
	session := NewSession(registry)
	sig, err := session.Minimize([]Requirement{
		ConformanceReq(tParam, "P"),
		ConformanceReq(tParam, "Q"),
		SameTypeReq(tParam, uParam),
		ConformanceReq(uParam, "P"),
	})
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if sig.HadError {
		t.Error("HadError = true for a valid signature")
	}
	if got, want := sig.String(), "<τ_0_0 : P, τ_0_0 : Q, τ_0_0 == τ_0_1>"; got != want {
		t.Errorf("signature = %s, want %s", got, want)
	}
}

func TestRequirementSignatureMemoized(t *testing.T) {
	registry := NewRegistry()
	mustAdd(t, registry.AddProtocol(&Protocol{
		Name:            "Collection",
		AssociatedTypes: []decl.AssociatedType{{Name: "Element"}},
		Requirements: []Requirement{
			ConformanceReq(ResolvedMemberType(GenericParam(0, 0), "Collection", "Element"), "P"),
		},
	}))
	mustAdd(t, registry.AddProtocol(&Protocol{Name: "P"}))

	session := NewSession(registry)
	first, hadError, err := session.RequirementSignature("Collection")
	if err != nil {
		t.Fatalf("RequirementSignature: %v", err)
	}
	if hadError {
		t.Error("hadError = true for a valid protocol")
	}
	if len(first) != 1 || first[0].String() != "τ_0_0.[Collection:Element] : P" {
		t.Errorf("requirement signature = %v, want [τ_0_0.[Collection:Element] : P]", first)
	}

	// The whole component was memoized in one pass; repeated queries for any
	// member return the stored slices.
	again, _, err := session.RequirementSignature("Collection")
	if err != nil {
		t.Fatalf("second RequirementSignature: %v", err)
	}
	if len(again) != len(first) || &again[0] != &first[0] {
		t.Error("second query did not return the memoized signature")
	}

	pSig, _, err := session.RequirementSignature("P")
	if err != nil {
		t.Fatalf("RequirementSignature(P): %v", err)
	}
	if len(pSig) != 0 {
		t.Errorf("requirement signature of P = %v, want empty", pSig)
	}
}

func TestSessionWithCache(t *testing.T) {
	registry := NewRegistry()
	mustAdd(t, registry.AddProtocol(&Protocol{Name: "P"}))
	mustAdd(t, registry.AddProtocol(&Protocol{Name: "Q"}))

	store, err := cache.Open(":memory:")
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer store.Close()

	tParam := GenericParam(0, 0)
	reqs := []Requirement{
		ConformanceReq(tParam, "P"),
		ConformanceReq(tParam, "Q"),
	}

	session := NewSession(registry, WithCache(store))
	first, err := session.Minimize(reqs)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}

	// The fingerprint is order insensitive, so the permuted query hits the
	// cache and returns the previously canonicalized signature.
	second, err := session.Minimize([]Requirement{reqs[1], reqs[0]})
	if err != nil {
		t.Fatalf("cached Minimize: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("cached signature = %s, want %s", second, first)
	}
	if n, err := store.Len(context.Background()); err != nil || n != 1 {
		t.Errorf("cache Len = %d, %v; want 1", n, err)
	}
}

func TestCacheScopedToRegistry(t *testing.T) {
	store, err := cache.Open(":memory:")
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer store.Close()

	build := func(withConformance bool) *Registry {
		registry := NewRegistry()
		mustAdd(t, registry.AddProtocol(&Protocol{Name: "P"}))
		mustAdd(t, registry.AddClass(&Class{Name: "C"}))
		if withConformance {
			mustAdd(t, registry.AddConformance(&Conformance{TypeName: "C", Protocol: "P"}))
		}
		return registry
	}

	tParam := GenericParam(0, 0)
	reqs := []Requirement{
		SuperclassReq(tParam, NominalType("C")),
		ConformanceReq(tParam, "P"),
	}

	// With the conformance declared, the superclass bound discharges T : P.
	withConf, err := NewSession(build(true), WithCache(store)).Minimize(reqs)
	if err != nil {
		t.Fatalf("Minimize: %v", err)
	}
	if got, want := withConf.String(), "<τ_0_0 : C>"; got != want {
		t.Fatalf("signature = %s, want %s", got, want)
	}

	// A session over a registry without that conformance shares the store but
	// must not see the cached entry: there T : P is not redundant.
	withoutConf, err := NewSession(build(false), WithCache(store)).Minimize(reqs)
	if err != nil {
		t.Fatalf("Minimize without conformance: %v", err)
	}
	if got, want := withoutConf.String(), "<τ_0_0 : P, τ_0_0 : C>"; got != want {
		t.Errorf("signature = %s, want %s", got, want)
	}

	if n, err := store.Len(context.Background()); err != nil || n != 2 {
		t.Errorf("cache Len = %d, %v; want 2", n, err)
	}
}
