// Package typechecker elaborates the surface ast.Module into
// term.Term/signature.Signature entries, driving package kernel's
// conversion and package unify's instantiation for every typing
// judgement, with a bundled-context struct carrying the shared state a
// whole module's elaboration needs.
package typechecker

import (
	"fmt"

	"github.com/lambdapi-go/lambdapi/internal/ast"
	"github.com/lambdapi-go/lambdapi/internal/binder"
	"github.com/lambdapi-go/lambdapi/internal/kernel"
	"github.com/lambdapi-go/lambdapi/internal/signature"
	"github.com/lambdapi-go/lambdapi/internal/term"
	"github.com/lambdapi-go/lambdapi/internal/unify"
)

// ConversionMismatchError is raised whenever two types fail EqModulo at
// a checking site. It is the one error kind a rule-acceptance warning
// or a `lambdapi check` diagnostic line is built from.
type ConversionMismatchError struct {
	Expected, Got string
}

func (e *ConversionMismatchError) Error() string {
	return fmt.Sprintf("typechecker: expected a type convertible to %s, got %s", e.Expected, e.Got)
}

// entry is one binding in a local context, a cons-list in spirit
// (append-only, never mutated) even though it's backed by a slice.
type entry struct {
	v   *term.Variable
	typ term.Term
}

type localCtx []entry

func (c localCtx) extend(v *term.Variable, t term.Term) localCtx {
	next := make(localCtx, len(c)+1)
	copy(next, c)
	next[len(c)] = entry{v, t}
	return next
}

func (c localCtx) lookup(name string) (*term.Variable, term.Term, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].v.Name == name {
			return c[i].v, c[i].typ, true
		}
	}
	return nil, nil, false
}

// Checker elaborates one module's declarations against a shared
// signature. A fresh Checker is constructed per top-level module check
// so its Context never leaks postponed obligations across files.
type Checker struct {
	Module  string
	Sig     *signature.Signature
	Context *kernel.Context

	// Warnings accumulates non-fatal rule-acceptance warnings: postponed
	// constraint pairs left unresolved when a rule was accepted.
	Warnings []string
}

// NewChecker returns a Checker that elaborates declarations into module
// and registers them in sig.
func NewChecker(module string, sig *signature.Signature) *Checker {
	return &Checker{Module: module, Sig: sig, Context: kernel.NewContext()}
}

// ElaborateModule type-checks and registers every declaration of mod,
// in file order: a single forward pass, so later declarations may refer
// to earlier ones but not vice versa.
func (c *Checker) ElaborateModule(mod *ast.Module) error {
	for _, decl := range mod.Decls {
		if err := c.elaborateDecl(decl); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) elaborateDecl(decl ast.Decl) error {
	switch d := decl.(type) {
	case *ast.StaticDecl:
		typ, err := c.elaborateType(d.Type, nil)
		if err != nil {
			return fmt.Errorf("static %s: %w", d.Name, err)
		}
		c.Sig.Declare(c.Module, d.Name, typ, false)
		return nil

	case *ast.DefDecl:
		typ, err := c.elaborateType(d.Type, nil)
		if err != nil {
			return fmt.Errorf("def %s: %w", d.Name, err)
		}
		c.Sig.Declare(c.Module, d.Name, typ, true)
		return nil

	case *ast.RuleDecl:
		return c.elaborateRule(d)

	default:
		return fmt.Errorf("typechecker: unhandled declaration %T", decl)
	}
}

// elaborateType elaborates an expression known to denote a type (or
// Kind), checking along the way that every product domain/codomain is
// itself well-sorted. ctx is the local context of already-bound
// variables (e.g. while elaborating a later argument's dependent type).
func (c *Checker) elaborateType(e ast.Expr, ctx localCtx) (term.Term, error) {
	t, _, err := c.infer(e, ctx)
	return t, err
}

// infer synthesizes a term and its type for e, resolving identifiers
// against ctx first and the signature second.
func (c *Checker) infer(e ast.Expr, ctx localCtx) (term.Term, term.Term, error) {
	switch x := e.(type) {
	case *ast.SortExpr:
		if x.Kind {
			return term.KindSort, term.KindSort, nil
		}
		return term.TypeSort, term.KindSort, nil

	case *ast.Ident:
		if v, typ, ok := ctx.lookup(x.Name); ok {
			return v, typ, nil
		}
		sym, err := c.Sig.Resolve(c.Module, x.Name)
		if err != nil {
			return nil, nil, err
		}
		return &term.SymbolRef{Sym: sym}, sym.Type, nil

	case *ast.ProdExpr:
		dom, domType, err := c.infer(x.Dom, ctx)
		if err != nil {
			return nil, nil, err
		}
		if !isSort(domType) {
			return nil, nil, &ConversionMismatchError{Expected: "Type or Kind", Got: fmt.Sprintf("%T", domType)}
		}
		v := term.NewVariable(x.Name)
		bodyCtx := ctx.extend(v, dom)
		body, bodyType, err := c.infer(x.Body, bodyCtx)
		if err != nil {
			return nil, nil, err
		}
		if !isSort(bodyType) {
			return nil, nil, &ConversionMismatchError{Expected: "Type or Kind", Got: fmt.Sprintf("%T", bodyType)}
		}
		b, _ := binder.BindMany([]*term.Variable{v}, body)
		return &term.Prod{Dom: dom, B: b}, bodyType, nil

	case *ast.AbstExpr:
		if x.Dom == nil {
			return nil, nil, fmt.Errorf("typechecker: abstraction %q needs an explicit domain annotation here (no bidirectional checking site)", x.Name)
		}
		dom, _, err := c.infer(x.Dom, ctx)
		if err != nil {
			return nil, nil, err
		}
		v := term.NewVariable(x.Name)
		bodyCtx := ctx.extend(v, dom)
		body, bodyType, err := c.infer(x.Body, bodyCtx)
		if err != nil {
			return nil, nil, err
		}
		abstB, _ := binder.BindMany([]*term.Variable{v}, body)
		typeB, _ := binder.BindMany([]*term.Variable{v}, bodyType)
		return &term.Abst{Dom: dom, B: abstB}, &term.Prod{Dom: dom, B: typeB}, nil

	case *ast.ApplExpr:
		fun, funType, err := c.infer(x.Fun, ctx)
		if err != nil {
			return nil, nil, err
		}
		prod, ok := kernel.Whnf(funType).(*term.Prod)
		if !ok {
			return nil, nil, fmt.Errorf("typechecker: applying a non-function type %T", funType)
		}
		arg, argType, err := c.infer(x.Arg, ctx)
		if err != nil {
			return nil, nil, err
		}
		if !c.checkConvertible(argType, prod.Dom) {
			return nil, nil, &ConversionMismatchError{Expected: fmt.Sprint(prod.Dom), Got: fmt.Sprint(argType)}
		}
		resultType := prod.B.Subst(arg)
		return &term.Appl{Fun: fun, Arg: arg}, resultType, nil

	default:
		return nil, nil, fmt.Errorf("typechecker: unhandled expression %T", e)
	}
}

// InferStandalone elaborates e with an empty local context, for the
// CLI's `whnf` subcommand: a term typed purely against the already
// loaded signature, with no surrounding declaration.
func (c *Checker) InferStandalone(e ast.Expr) (term.Term, term.Term, error) {
	return c.infer(e, nil)
}

func isSort(t term.Term) bool {
	_, ok := t.(term.Sort)
	return ok
}

// checkConvertible runs EqModulo, recording a deferred obligation instead
// of failing when the checker's Context is in constraint mode (e.g. while
// elaborateRHS has it switched on).
func (c *Checker) checkConvertible(a, b term.Term) bool {
	return kernel.EqModuloCtx(c.Context, a, b)
}

// elaborateRule elaborates a rule declaration into a term.Rule and
// attaches it to its head symbol. The checks of each LHS argument's type
// against the head symbol's declared domains (checkPatternArgTypes) and
// the elaboration of the right-hand side run with constraint mode active,
// and postponed pairs that still mention an unsolved metavariable are
// recorded in Warnings rather than rejected. The argument checks inside a
// pattern sub-term (e.g. the n in s n) run in strict mode.
func (c *Checker) elaborateRule(d *ast.RuleDecl) error {
	vars := make([]*term.Variable, len(d.Vars))
	var ctx localCtx
	for i, name := range d.Vars {
		v := term.NewVariable(name)
		vars[i] = v
		ctx = ctx.extend(v, &term.MetaApp{M: term.NewMeta()})
	}

	head, args, argTypes, err := c.splitApplication(d.LHS, ctx)
	if err != nil {
		return fmt.Errorf("rule for %s: %w", d.Token.Literal, err)
	}
	sym, err := c.Sig.Resolve(c.Module, head)
	if err != nil {
		return fmt.Errorf("rule: %w", err)
	}
	if !sym.Definable {
		return fmt.Errorf("rule: %s is not declared definable", sym.Name)
	}

	var pending []kernel.Pair
	if err := c.checkPatternArgTypes(sym, args, argTypes, &pending); err != nil {
		return fmt.Errorf("rule for %s: %w", sym.Name, err)
	}

	lhsBody := &term.ArgList{Items: args}
	rhsTerm, rhsErr := c.elaborateRHS(d.RHS, ctx, &pending)
	if rhsErr != nil {
		return fmt.Errorf("rule for %s: %w", sym.Name, rhsErr)
	}

	lhsBinder, lhsClosed := binder.BindMany(vars, lhsBody)
	rhsBinder, rhsClosed := binder.BindMany(vars, rhsTerm)
	if !lhsClosed || !rhsClosed {
		return fmt.Errorf("rule for %s: right-hand side mentions a variable not bound on the left", sym.Name)
	}

	rule := &term.Rule{LHS: lhsBinder, RHS: rhsBinder, Arity: len(args)}
	c.Sig.AddRule(sym, rule)

	if len(pending) > 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("rule for %s: %d equality obligation(s) postponed", sym.Name, len(pending)))
	}
	return nil
}

func (c *Checker) elaborateRHS(e ast.Expr, ctx localCtx, pending *[]kernel.Pair) (term.Term, error) {
	var t term.Term
	var err error
	collected := kernel.WithConstraints(c.Context, func() {
		t, _, err = c.infer(e, ctx)
	})
	*pending = append(*pending, collected...)
	return t, err
}

// checkPatternArgTypes walks sym's declared Π-type in lockstep with a
// rule's split-out LHS arguments, checking each argument's inferred type
// against the corresponding domain. The check runs under
// kernel.WithConstraints so a stuck comparison is postponed rather than
// rejected outright, but a postponed pair is only kept if it genuinely
// turns on a not-yet-bound pattern variable's placeholder metavariable
// (mentionsUnsolvedMeta); a mismatch between two already-resolved rigid
// types, such as a pattern argument typed Bool against a Nat domain,
// fails immediately instead of being waved through as "postponed".
func (c *Checker) checkPatternArgTypes(sym *term.Symbol, args, argTypes []term.Term, pending *[]kernel.Pair) error {
	typ := sym.Type
	for i, arg := range args {
		prod, ok := kernel.Whnf(typ).(*term.Prod)
		if !ok {
			return fmt.Errorf("%s takes fewer arguments than this rule's left-hand side gives it", sym.Name)
		}
		var converts bool
		collected := kernel.WithConstraints(c.Context, func() {
			converts = c.checkConvertible(argTypes[i], prod.Dom)
		})
		if !converts {
			return &ConversionMismatchError{Expected: fmt.Sprint(prod.Dom), Got: fmt.Sprint(argTypes[i])}
		}
		for _, pair := range collected {
			if !mentionsUnsolvedMeta(pair.A) && !mentionsUnsolvedMeta(pair.B) {
				return &ConversionMismatchError{Expected: fmt.Sprint(prod.Dom), Got: fmt.Sprint(argTypes[i])}
			}
		}
		*pending = append(*pending, collected...)
		typ = prod.B.Subst(arg)
	}
	return nil
}

// mentionsUnsolvedMeta reports whether t still has an unsolved
// metavariable instance somewhere in it, after unfolding already-solved
// ones along the way.
func mentionsUnsolvedMeta(t term.Term) bool {
	switch x := t.(type) {
	case *term.MetaApp:
		if sol := x.M.Solution(); sol != nil {
			return mentionsUnsolvedMeta(sol.Subst(x.Env...))
		}
		return true
	case *term.Prod:
		if mentionsUnsolvedMeta(x.Dom) {
			return true
		}
		_, body := x.B.Unbind()
		return mentionsUnsolvedMeta(body)
	case *term.Abst:
		if mentionsUnsolvedMeta(x.Dom) {
			return true
		}
		_, body := x.B.Unbind()
		return mentionsUnsolvedMeta(body)
	case *term.Appl:
		return mentionsUnsolvedMeta(x.Fun) || mentionsUnsolvedMeta(x.Arg)
	default:
		return false
	}
}

// splitApplication decomposes a parsed LHS "head a1 a2 ... an" into the
// head symbol's name, its ordered argument terms, and each argument's
// inferred type, substituting pattern-variable identifiers for their
// bound term.Variable.
func (c *Checker) splitApplication(e ast.Expr, ctx localCtx) (string, []term.Term, []term.Term, error) {
	var args, argTypes []term.Term
	cur := e
	for {
		appl, ok := cur.(*ast.ApplExpr)
		if !ok {
			break
		}
		argTerm, argType, err := c.elaboratePattern(appl.Arg, ctx)
		if err != nil {
			return "", nil, nil, err
		}
		args = append([]term.Term{argTerm}, args...)
		argTypes = append([]term.Term{argType}, argTypes...)
		cur = appl.Fun
	}
	ident, ok := cur.(*ast.Ident)
	if !ok {
		return "", nil, nil, fmt.Errorf("rule left-hand side must be a symbol applied to patterns")
	}
	return ident.Name, args, argTypes, nil
}

// elaboratePattern elaborates a pattern sub-term and infers its type,
// checking each nested application's argument against the corresponding
// domain exactly like an ordinary expression: identifiers bound in ctx
// become the corresponding *term.Variable (later tag-substituted by
// package kernel's matcher) with their placeholder metavariable type,
// every other identifier resolves as an ordinary symbol reference. This
// is what lets a pattern variable's metavariable type get pinned down by
// its first typed occurrence in the rule.
func (c *Checker) elaboratePattern(e ast.Expr, ctx localCtx) (term.Term, term.Term, error) {
	return c.infer(e, ctx)
}

// CheckUnifyResult folds the unify package's error kind into the
// checker's own vocabulary, for CLI reporting.
func CheckUnifyResult(err error) error {
	if err == nil {
		return nil
	}
	var oe *unify.OccursOrScopeError
	if ok := asOccursOrScope(err, &oe); ok {
		return fmt.Errorf("typechecker: %w", oe)
	}
	return err
}

func asOccursOrScope(err error, target **unify.OccursOrScopeError) bool {
	if oe, ok := err.(*unify.OccursOrScopeError); ok {
		*target = oe
		return true
	}
	return false
}
