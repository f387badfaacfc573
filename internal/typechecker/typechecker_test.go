package typechecker

import (
	"errors"
	"os"
	"testing"

	"github.com/lambdapi-go/lambdapi/internal/ast"
	"github.com/lambdapi-go/lambdapi/internal/kernel"
	"github.com/lambdapi-go/lambdapi/internal/lexer"
	"github.com/lambdapi-go/lambdapi/internal/parser"
	"github.com/lambdapi-go/lambdapi/internal/signature"
	"github.com/lambdapi-go/lambdapi/internal/term"
)

func ident(name string) *ast.Ident { return &ast.Ident{Token: lexer.Token{Literal: name}, Name: name} }

func appl(fun, arg ast.Expr) *ast.ApplExpr { return &ast.ApplExpr{Fun: fun, Arg: arg} }

// natModule builds the AST equivalent of:
//
//	static Nat : Type.
//	static z : Nat.
//	static s : Nat -> Nat.
//	def plus : Nat -> Nat -> Nat.
//	[x] plus z x --> x.
//	[n, m] plus (s n) m --> s (plus n m).
func natModule() *ast.Module {
	natToNat := &ast.ProdExpr{Dom: ident("Nat"), Body: ident("Nat")}
	plusType := &ast.ProdExpr{Dom: ident("Nat"), Body: &ast.ProdExpr{Dom: ident("Nat"), Body: ident("Nat")}}

	rule1 := &ast.RuleDecl{
		Vars: []string{"x"},
		LHS:  appl(appl(ident("plus"), ident("z")), ident("x")),
		RHS:  ident("x"),
	}
	rule2 := &ast.RuleDecl{
		Vars: []string{"n", "m"},
		LHS:  appl(appl(ident("plus"), appl(ident("s"), ident("n"))), ident("m")),
		RHS:  appl(ident("s"), appl(appl(ident("plus"), ident("n")), ident("m"))),
	}

	return &ast.Module{
		Name: "t",
		Decls: []ast.Decl{
			&ast.StaticDecl{Name: "Nat", Type: &ast.SortExpr{}},
			&ast.StaticDecl{Name: "z", Type: ident("Nat")},
			&ast.StaticDecl{Name: "s", Type: natToNat},
			&ast.DefDecl{Name: "plus", Type: plusType},
			rule1,
			rule2,
		},
	}
}

func TestElaborateModuleRegistersSymbolsInOrder(t *testing.T) {
	sig := signature.New()
	c := NewChecker("t", sig)

	if err := c.ElaborateModule(natModule()); err != nil {
		t.Fatalf("ElaborateModule failed: %v", err)
	}

	all := sig.All()
	if len(all) != 4 {
		t.Fatalf("len(All()) = %d, want 4", len(all))
	}
	wantNames := []string{"Nat", "z", "s", "plus"}
	for i, want := range wantNames {
		if all[i].Name != want {
			t.Errorf("All()[%d].Name = %s, want %s", i, all[i].Name, want)
		}
	}
}

func TestElaborateModuleAttachesBothRules(t *testing.T) {
	sig := signature.New()
	c := NewChecker("t", sig)
	if err := c.ElaborateModule(natModule()); err != nil {
		t.Fatalf("ElaborateModule failed: %v", err)
	}

	plus, err := sig.Resolve("t", "plus")
	if err != nil {
		t.Fatalf("Resolve(plus) failed: %v", err)
	}
	rules := plus.Rules()
	if len(rules) != 2 {
		t.Fatalf("len(plus.Rules()) = %d, want 2", len(rules))
	}
	if rules[0].Arity != 2 || rules[1].Arity != 2 {
		t.Errorf("both plus rules should have match arity 2, got %d and %d", rules[0].Arity, rules[1].Arity)
	}
}

func TestElaborateDeclUnresolvedSymbolFails(t *testing.T) {
	sig := signature.New()
	c := NewChecker("t", sig)
	bad := &ast.StaticDecl{Name: "z", Type: ident("Nat")} // Nat was never declared
	if err := c.elaborateDecl(bad); err == nil {
		t.Errorf("expected an error resolving an undeclared type, got nil")
	}
}

func TestProdDomainMustBeSorted(t *testing.T) {
	sig := signature.New()
	c := NewChecker("t", sig)
	sig.Declare("t", "Nat", term.TypeSort, false)
	natSym, _ := sig.Resolve("t", "Nat")
	sig.Declare("t", "z", &term.SymbolRef{Sym: natSym}, false)

	// z : Nat -> Nat  is ill-sorted: z is not itself a Type/Kind.
	badProd := &ast.ProdExpr{Dom: ident("z"), Body: ident("Nat")}
	_, err := c.elaborateType(badProd, nil)
	if err == nil {
		t.Fatalf("expected a ConversionMismatchError, got nil")
	}
	if _, ok := err.(*ConversionMismatchError); !ok {
		t.Errorf("err = %#v, want *ConversionMismatchError", err)
	}
}

func TestApplicationArgumentTypeMismatch(t *testing.T) {
	sig := signature.New()
	c := NewChecker("t", sig)
	if err := c.ElaborateModule(natModule()); err != nil {
		t.Fatalf("ElaborateModule failed: %v", err)
	}

	// s Type : applying s (Nat -> Nat) to the sort Type, whose type Kind
	// does not convert to s's declared domain Nat.
	_, _, err := c.infer(appl(ident("s"), &ast.SortExpr{}), nil)
	if err == nil {
		t.Fatalf("expected a type mismatch applying s to Type, got nil")
	}
	if _, ok := err.(*ConversionMismatchError); !ok {
		t.Errorf("err = %#v, want *ConversionMismatchError", err)
	}
}

// badPlusModule is natModule with an extra, ill-typed rule whose first
// pattern argument (tt : Bool) doesn't match plus's declared Nat domain.
func badPlusModule() *ast.Module {
	mod := natModule()
	mod.Decls = append(mod.Decls,
		&ast.StaticDecl{Name: "Bool", Type: &ast.SortExpr{}},
		&ast.StaticDecl{Name: "tt", Type: ident("Bool")},
		&ast.RuleDecl{
			Vars: []string{"x"},
			LHS:  appl(appl(ident("plus"), ident("tt")), ident("x")),
			RHS:  ident("x"),
		},
	)
	return mod
}

func TestElaborateRuleRejectsIllTypedPattern(t *testing.T) {
	sig := signature.New()
	c := NewChecker("t", sig)
	err := c.ElaborateModule(badPlusModule())
	if err == nil {
		t.Fatalf("expected an error elaborating [x] plus tt x --> x (tt : Bool against plus's Nat domain), got nil")
	}
	var convErr *ConversionMismatchError
	if !errors.As(err, &convErr) {
		t.Errorf("err = %v, want a wrapped *ConversionMismatchError", err)
	}
}

// TestElaborateModuleHolFragmentScenarios loads testdata/hol.dk verbatim
// through the real lexer/parser/typechecker pipeline and exercises a
// rule firing whose right-hand side substitutes to a *term.Prod (proof
// of an implication reducing to a function space, and the analogous
// arity-2 arr rule under partial application).
func TestElaborateModuleHolFragmentScenarios(t *testing.T) {
	src, err := os.ReadFile("testdata/hol.dk")
	if err != nil {
		t.Fatalf("reading testdata/hol.dk: %v", err)
	}

	p := parser.New(lexer.New(string(src)))
	mod := p.ParseModule()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parsing testdata/hol.dk: %v", errs)
	}

	sig := signature.New()
	c := NewChecker("hol", sig)
	if err := c.ElaborateModule(mod); err != nil {
		t.Fatalf("ElaborateModule(hol.dk) failed: %v", err)
	}

	resolve := func(name string) *term.Symbol {
		sym, err := sig.Resolve("hol", name)
		if err != nil {
			t.Fatalf("Resolve(%s) failed: %v", name, err)
		}
		return sym
	}
	aRef := &term.SymbolRef{Sym: resolve("A")}
	bRef := &term.SymbolRef{Sym: resolve("B")}
	impRef := &term.SymbolRef{Sym: resolve("imp")}
	arrRef := &term.SymbolRef{Sym: resolve("arr")}
	proofRef := &term.SymbolRef{Sym: resolve("proof")}
	termRef := &term.SymbolRef{Sym: resolve("term")}

	// Scenario 2: proof (imp A B) reduces to proof A -> proof B, a Prod,
	// once the proof-of-implication rule fires.
	impAB := &term.Appl{Fun: &term.Appl{Fun: impRef, Arg: aRef}, Arg: bRef}
	proofImpAB := &term.Appl{Fun: proofRef, Arg: impAB}

	got := kernel.Whnf(proofImpAB)
	prod, ok := got.(*term.Prod)
	if !ok {
		t.Fatalf("Whnf(proof (imp A B)) = %T, want *term.Prod", got)
	}
	wantDom := &term.Appl{Fun: proofRef, Arg: aRef}
	if !kernel.EqSyntax(nil, prod.Dom, wantDom) {
		t.Errorf("proof (imp A B) domain = %v, want proof A", prod.Dom)
	}
	_, body := prod.B.Unbind()
	wantBody := &term.Appl{Fun: proofRef, Arg: bRef}
	if !kernel.EqSyntax(nil, body, wantBody) {
		t.Errorf("proof (imp A B) codomain = %v, want proof B", body)
	}
	if !kernel.EqModulo(proofImpAB, &term.Prod{Dom: wantDom, B: prod.B}) {
		t.Errorf("proof (imp A B) should be equal-modulo proof A -> proof B")
	}

	// Scenario 4: term (arr A B), an arity-2 rule firing under partial
	// application, reduces to term A -> term B the same way.
	arrAB := &term.Appl{Fun: &term.Appl{Fun: arrRef, Arg: aRef}, Arg: bRef}
	termArrAB := &term.Appl{Fun: termRef, Arg: arrAB}

	got2 := kernel.Whnf(termArrAB)
	prod2, ok := got2.(*term.Prod)
	if !ok {
		t.Fatalf("Whnf(term (arr A B)) = %T, want *term.Prod", got2)
	}
	wantDom2 := &term.Appl{Fun: termRef, Arg: aRef}
	if !kernel.EqSyntax(nil, prod2.Dom, wantDom2) {
		t.Errorf("term (arr A B) domain = %v, want term A", prod2.Dom)
	}
}

func TestInferStandaloneResolvesAgainstSignature(t *testing.T) {
	sig := signature.New()
	c := NewChecker("t", sig)
	if err := c.ElaborateModule(natModule()); err != nil {
		t.Fatalf("ElaborateModule failed: %v", err)
	}

	term, typ, err := c.InferStandalone(appl(appl(ident("plus"), ident("z")), ident("z")))
	if err != nil {
		t.Fatalf("InferStandalone(plus z z) failed: %v", err)
	}
	if term == nil || typ == nil {
		t.Errorf("InferStandalone returned a nil term or type")
	}
}
