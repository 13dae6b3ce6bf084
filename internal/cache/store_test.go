package cache

import (
	"context"
	"testing"

	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

func testRequirements() []decl.Requirement {
	tParam := types.Param{Depth: 0, Index: 0}
	uParam := types.Param{Depth: 0, Index: 1}
	return []decl.Requirement{
		{Kind: decl.ConformanceRequirement, Subject: tParam, Protocol: "Collection"},
		{
			Kind:       decl.SameTypeRequirement,
			Subject:    types.Member{Base: tParam, Name: "Element", Protocol: "Collection"},
			Constraint: types.Nominal{Name: "Box", Args: []types.Type{uParam}},
		},
		{
			Kind:    decl.LayoutRequirement,
			Subject: uParam,
			Layout:  decl.Layout{Kind: decl.LayoutTrivialSized, Size: 64, Alignment: 8},
		},
		{
			Kind:       decl.SuperclassRequirement,
			Subject:    tParam,
			Constraint: types.Nominal{Name: "Base"},
		},
		{
			Kind:       decl.SameTypeRequirement,
			Subject:    uParam,
			Constraint: types.Func{Params: []types.Type{types.Tuple{}}, Result: types.Nominal{Name: "Int"}},
		},
	}
}

func testRegistry(t *testing.T) *decl.Registry {
	t.Helper()
	r := decl.NewRegistry()
	if err := r.AddProtocol(&decl.Protocol{
		Name:            "Collection",
		AssociatedTypes: []decl.AssociatedType{{Name: "Element"}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := r.AddClass(&decl.Class{Name: "Base"}); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestFingerprint(t *testing.T) {
	registry := testRegistry(t)
	reqs := testRequirements()

	permuted := make([]decl.Requirement, len(reqs))
	for i, req := range reqs {
		permuted[len(reqs)-1-i] = req
	}
	if Fingerprint(registry, reqs) != Fingerprint(registry, permuted) {
		t.Error("fingerprint depends on requirement order")
	}

	if Fingerprint(registry, reqs) == Fingerprint(registry, reqs[:len(reqs)-1]) {
		t.Error("fingerprint ignores a dropped requirement")
	}
	if Fingerprint(registry, nil) == Fingerprint(registry, reqs) {
		t.Error("empty fingerprint collides with a non-empty one")
	}

	// The declarations are part of the key: the same requirement list under a
	// registry with one more conformance must map to a different entry.
	extended := testRegistry(t)
	if err := extended.AddConformance(&decl.Conformance{
		TypeName: "Base",
		Protocol: "Collection",
		Witnesses: map[string]types.Type{
			"Element": types.Nominal{Name: "Int"},
		},
	}); err != nil {
		t.Fatal(err)
	}
	if Fingerprint(registry, reqs) == Fingerprint(extended, reqs) {
		t.Error("fingerprint ignores the declaration registry")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	reqs := testRequirements()
	fingerprint := Fingerprint(testRegistry(t), reqs)

	if _, ok, err := store.Get(ctx, fingerprint); err != nil || ok {
		t.Fatalf("Get on empty store = %v, %v; want miss", ok, err)
	}

	if err := store.Put(ctx, fingerprint, reqs, true); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entry, ok, err := store.Get(ctx, fingerprint)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v; want hit", ok, err)
	}
	if entry.Fingerprint != fingerprint {
		t.Errorf("entry fingerprint = %s, want %s", entry.Fingerprint, fingerprint)
	}
	if !entry.HadError {
		t.Error("HadError flag lost in the round trip")
	}
	if entry.ID == "" {
		t.Error("entry has no id")
	}
	if len(entry.Minimized) != len(reqs) {
		t.Fatalf("round trip produced %d requirements, want %d", len(entry.Minimized), len(reqs))
	}
	for i := range reqs {
		if entry.Minimized[i].Kind != reqs[i].Kind ||
			entry.Minimized[i].String() != reqs[i].String() {
			t.Errorf("requirement %d = %s (kind %d), want %s (kind %d)",
				i, entry.Minimized[i], entry.Minimized[i].Kind, reqs[i], reqs[i].Kind)
		}
	}
	if entry.Minimized[2].Layout != reqs[2].Layout {
		t.Errorf("layout payload = %v, want %v", entry.Minimized[2].Layout, reqs[2].Layout)
	}

	if n, err := store.Len(ctx); err != nil || n != 1 {
		t.Errorf("Len = %d, %v; want 1", n, err)
	}
}

func TestStoreReplacesEntry(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	reqs := testRequirements()
	fingerprint := Fingerprint(testRegistry(t), reqs)

	if err := store.Put(ctx, fingerprint, reqs, false); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, fingerprint, reqs[:1], true); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	entry, ok, err := store.Get(ctx, fingerprint)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v; want hit", ok, err)
	}
	if len(entry.Minimized) != 1 || !entry.HadError {
		t.Errorf("entry not replaced: %d requirements, HadError %v", len(entry.Minimized), entry.HadError)
	}
	if n, err := store.Len(ctx); err != nil || n != 1 {
		t.Errorf("Len = %d, %v; want 1 after replacement", n, err)
	}
}
