package rewrite

import (
	"os"
	"testing"

	"github.com/lunalang/generics/internal/config"
	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/types"
)

func TestMain(m *testing.M) {
	config.IsTestMode = true
	os.Exit(m.Run())
}

// testRegistry declares the protocols and classes the rewrite tests share:
// two unrelated protocols P and Q, a protocol R inheriting P, and a class
// hierarchy Base <- Derived.
func testRegistry(t *testing.T) *decl.Registry {
	t.Helper()
	registry := decl.NewRegistry()

	protos := []*decl.Protocol{
		{Name: "P", AssociatedTypes: []decl.AssociatedType{{Name: "A"}}},
		{Name: "Q", AssociatedTypes: []decl.AssociatedType{{Name: "A"}}},
		{Name: "R", Inherits: []string{"P"}},
	}
	for _, p := range protos {
		if err := registry.AddProtocol(p); err != nil {
			t.Fatalf("AddProtocol(%s): %v", p.Name, err)
		}
	}

	baseSuper := types.Nominal{Name: "Base"}
	classes := []*decl.Class{
		{Name: "Base"},
		{Name: "Derived", Super: &baseSuper},
	}
	for _, c := range classes {
		if err := registry.AddClass(c); err != nil {
			t.Fatalf("AddClass(%s): %v", c.Name, err)
		}
	}
	return registry
}

func testContext(t *testing.T) *Context {
	t.Helper()
	return NewContext(testRegistry(t))
}
