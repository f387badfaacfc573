package kernel

import (
	"testing"

	"github.com/lambdapi-go/lambdapi/internal/binder"
	"github.com/lambdapi-go/lambdapi/internal/term"
)

// natFixture builds a small Nat/z/s/plus signature shared by several
// tests below.
type natFixture struct {
	z, s, plus *term.Symbol
}

func newNatFixture() *natFixture {
	natSym := term.NewSymbol("t", "Nat", term.TypeSort, false)
	natRef := &term.SymbolRef{Sym: natSym}
	z := term.NewSymbol("t", "z", natRef, false)
	s := term.NewSymbol("t", "s", &term.Prod{Dom: natRef}, false)
	plus := term.NewSymbol("t", "plus", &term.Prod{Dom: natRef}, true)

	n, m, x := term.NewVariable("n"), term.NewVariable("m"), term.NewVariable("x")

	// [x] plus z x --> x.
	lhs1, _ := binder.BindMany([]*term.Variable{x}, &term.ArgList{Items: []term.Term{
		&term.SymbolRef{Sym: z}, x,
	}})
	rhs1, _ := binder.BindMany([]*term.Variable{x}, x)
	plus.AddRule(&term.Rule{LHS: lhs1, RHS: rhs1, Arity: 2})

	// [n, m] plus (s n) m --> s (plus n m).
	sOfN := &term.Appl{Fun: &term.SymbolRef{Sym: s}, Arg: n}
	plusOfNM := &term.Appl{Fun: &term.Appl{Fun: &term.SymbolRef{Sym: plus}, Arg: n}, Arg: m}
	lhs2, _ := binder.BindMany([]*term.Variable{n, m}, &term.ArgList{Items: []term.Term{sOfN, m}})
	rhs2, _ := binder.BindMany([]*term.Variable{n, m}, &term.Appl{Fun: &term.SymbolRef{Sym: s}, Arg: plusOfNM})
	plus.AddRule(&term.Rule{LHS: lhs2, RHS: rhs2, Arity: 2})

	return &natFixture{z: z, s: s, plus: plus}
}

func (f *natFixture) zT() term.Term { return &term.SymbolRef{Sym: f.z} }
func (f *natFixture) sT(t term.Term) term.Term {
	return &term.Appl{Fun: &term.SymbolRef{Sym: f.s}, Arg: t}
}
func (f *natFixture) plusT(a, b term.Term) term.Term {
	return &term.Appl{Fun: &term.Appl{Fun: &term.SymbolRef{Sym: f.plus}, Arg: a}, Arg: b}
}

func TestWhnfBeta(t *testing.T) {
	x := term.NewVariable("x")
	idB, _ := binder.BindMany([]*term.Variable{x}, x)
	id := &term.Abst{Dom: term.TypeSort, B: idB}
	appl := &term.Appl{Fun: id, Arg: term.TypeSort}

	got := Whnf(appl)
	if got != term.Sort(term.TypeSort) {
		t.Errorf("Whnf((λx. x) Type) = %#v, want Type", got)
	}
}

func TestWhnfRuleFiringBaseCase(t *testing.T) {
	f := newNatFixture()
	got := Whnf(f.plusT(f.zT(), f.sT(f.zT()))) // plus z (s z)
	want := f.sT(f.zT())
	if !EqSyntax(nil, got, want) {
		t.Errorf("Whnf(plus z (s z)) = %v, want s z", got)
	}
}

func TestWhnfRuleFiringRecursiveCase(t *testing.T) {
	f := newNatFixture()
	// WHNF only exposes the outermost redex: plus (s z) (s z) --> s (plus z (s z)),
	// and the nested plus is not reduced further at this step.
	got := Whnf(f.plusT(f.sT(f.zT()), f.sT(f.zT())))
	want := f.sT(f.plusT(f.zT(), f.sT(f.zT())))
	if !EqSyntax(nil, got, want) {
		t.Errorf("Whnf(plus (s z) (s z)) = %v, want s (plus z (s z))", got)
	}
}

func TestEqModuloReducesBothSides(t *testing.T) {
	f := newNatFixture()
	// plus (s z) (s z) is equal-modulo to s (s z) once both nested
	// redexes are forced, which EqModulo's spine recursion does.
	lhs := Whnf(f.plusT(f.sT(f.zT()), f.sT(f.zT())))
	rhs := f.sT(f.sT(f.zT()))
	if !EqModulo(lhs, rhs) {
		t.Errorf("plus (s z) (s z) should be equal-modulo to s (s z)")
	}
}

func TestWhnfPartialApplicationIsStuck(t *testing.T) {
	f := newNatFixture()
	partial := &term.Appl{Fun: &term.SymbolRef{Sym: f.plus}, Arg: f.zT()}
	got := Whnf(partial)
	if !EqSyntax(nil, got, partial) {
		t.Errorf("Whnf(plus z) with no second argument should be stuck, got %v", got)
	}
}

func TestWhnfDefinitionUnfolding(t *testing.T) {
	natRef := &term.SymbolRef{Sym: term.NewSymbol("t", "Nat", term.TypeSort, false)}
	z := term.NewSymbol("t", "z", natRef, false)
	unit := term.NewSymbol("t", "unit", natRef, true)

	lhs, _ := binder.BindMany(nil, &term.ArgList{})
	rhs, _ := binder.BindMany(nil, &term.SymbolRef{Sym: z})
	unit.AddRule(&term.Rule{LHS: lhs, RHS: rhs, Arity: 0})

	got := Whnf(&term.SymbolRef{Sym: unit})
	if !EqSyntax(nil, got, &term.SymbolRef{Sym: z}) {
		t.Errorf("Whnf(unit) = %v, want z (a zero-arity rule should unfold with no arguments)", got)
	}
}

func TestEqSyntaxSolvesUnsolvedMeta(t *testing.T) {
	meta := term.NewMeta()
	metaApp := &term.MetaApp{M: meta}
	if !EqSyntax(nil, metaApp, term.TypeSort) {
		t.Errorf("EqSyntax should solve the meta against Type and report equal")
	}
	if meta.Solution() == nil {
		t.Errorf("EqSyntax did not instantiate the metavariable as a side effect")
	}
}

func TestEqModuloStrictModeRejectsStuckMismatch(t *testing.T) {
	a := &term.SymbolRef{Sym: term.NewSymbol("t", "a", term.TypeSort, false)}
	b := &term.SymbolRef{Sym: term.NewSymbol("t", "b", term.TypeSort, false)}
	if EqModulo(a, b) {
		t.Errorf("two unrelated static symbols should never be equal-modulo")
	}
}

func TestEqModuloConstrPostponesInsteadOfFailing(t *testing.T) {
	a := &term.SymbolRef{Sym: term.NewSymbol("t", "a", term.TypeSort, false)}
	b := &term.SymbolRef{Sym: term.NewSymbol("t", "b", term.TypeSort, false)}

	ok, pending := EqModuloConstr(a, b)
	if !ok {
		t.Fatalf("constraint-mode comparison of a stuck mismatch should be optimistically accepted")
	}
	if len(pending) != 1 {
		t.Fatalf("expected exactly one postponed obligation, got %d", len(pending))
	}
	if !EqSyntax(nil, pending[0].A, a) || !EqSyntax(nil, pending[0].B, b) {
		t.Errorf("postponed pair = %v, want (a, b)", pending[0])
	}
}

func TestMatchRespectsRepeatedPatternVariable(t *testing.T) {
	// [x] eqtest x x --> z -- a degenerate "equality" rule: the second
	// occurrence of x must match, by EqModulo, whatever the first bound.
	natRef := &term.SymbolRef{Sym: term.NewSymbol("t", "Nat", term.TypeSort, false)}
	z := term.NewSymbol("t", "z", natRef, false)
	s := term.NewSymbol("t", "s", &term.Prod{Dom: natRef}, false)
	eqtest := term.NewSymbol("t", "eqtest", &term.Prod{Dom: natRef}, true)

	x := term.NewVariable("x")
	lhs, _ := binder.BindMany([]*term.Variable{x}, &term.ArgList{Items: []term.Term{x, x}})
	rhs, _ := binder.BindMany([]*term.Variable{x}, &term.SymbolRef{Sym: z})
	eqtest.AddRule(&term.Rule{LHS: lhs, RHS: rhs, Arity: 2})

	zRef := &term.SymbolRef{Sym: z}
	sOfZ := &term.Appl{Fun: &term.SymbolRef{Sym: s}, Arg: zRef}

	matching := &term.Appl{Fun: &term.Appl{Fun: &term.SymbolRef{Sym: eqtest}, Arg: sOfZ}, Arg: sOfZ}
	if got := Whnf(matching); !EqSyntax(nil, got, zRef) {
		t.Errorf("eqtest (s z) (s z) should match and reduce to z, got %v", got)
	}

	mismatched := &term.Appl{Fun: &term.Appl{Fun: &term.SymbolRef{Sym: eqtest}, Arg: sOfZ}, Arg: zRef}
	if got := Whnf(mismatched); EqSyntax(nil, got, zRef) {
		t.Errorf("eqtest (s z) z should not match (repeated variable disagrees), got %v", got)
	}
}
