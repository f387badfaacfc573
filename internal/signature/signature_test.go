package signature

import (
	"testing"

	"github.com/lambdapi-go/lambdapi/internal/term"
)

func TestDeclareReturnsSamePointerOnRedeclare(t *testing.T) {
	sig := New()
	a := sig.Declare("t", "Nat", term.TypeSort, false)
	b := sig.Declare("t", "Nat", term.TypeSort, false)
	if a != b {
		t.Errorf("Declare on an already-declared (module, name) pair returned a different *term.Symbol")
	}
}

func TestResolveUnknownSymbolFails(t *testing.T) {
	sig := New()
	_, err := sig.Resolve("t", "Nat")
	if err == nil {
		t.Fatalf("Resolve on an undeclared symbol should fail")
	}
	if _, ok := err.(*UnresolvedSymbolError); !ok {
		t.Errorf("err = %#v, want *UnresolvedSymbolError", err)
	}
}

func TestAllPreservesDeclarationOrder(t *testing.T) {
	sig := New()
	names := []string{"Nat", "z", "s", "plus", "mult", "exp"}
	for _, n := range names {
		sig.Declare("t", n, term.TypeSort, false)
	}
	all := sig.All()
	if len(all) != len(names) {
		t.Fatalf("len(All()) = %d, want %d", len(all), len(names))
	}
	for i, n := range names {
		if all[i].Name != n {
			t.Errorf("All()[%d].Name = %s, want %s (declaration order must be stable)", i, all[i].Name, n)
		}
	}
}

func TestAllSnapshotUnaffectedByLaterDeclare(t *testing.T) {
	sig := New()
	sig.Declare("t", "a", term.TypeSort, false)
	snap := sig.All()
	sig.Declare("t", "b", term.TypeSort, false)
	if len(snap) != 1 {
		t.Errorf("a prior All() snapshot grew after a later Declare call, len = %d, want 1", len(snap))
	}
}

func TestAddRuleRejectsStaticSymbol(t *testing.T) {
	sig := New()
	sym := sig.Declare("t", "Nat", term.TypeSort, false)
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("AddRule on a static symbol did not panic")
		}
	}()
	sig.AddRule(sym, &term.Rule{})
}
