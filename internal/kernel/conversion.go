package kernel

import (
	"github.com/lambdapi-go/lambdapi/internal/binder"
	"github.com/lambdapi-go/lambdapi/internal/debug"
	"github.com/lambdapi-go/lambdapi/internal/term"
	"github.com/lambdapi-go/lambdapi/internal/unify"
)

// Pair is a deferred equality obligation: a and b were not decidable as
// equal-modulo at the point they were encountered, but conversion was
// running in constraint mode (see Context), so the check was optimistically
// accepted and the obligation recorded instead of failing outright.
type Pair struct {
	A, B term.Term
}

// Context carries conversion's constraint-postponement mode. It is an
// explicit value, not a package global: the typechecker
// constructs one per top-level check and threads it through every
// EqModulo call made while checking that declaration, so postponed
// obligations from unrelated checks never leak into each other.
type Context struct {
	active  bool
	pending []Pair
}

// NewContext returns a fresh, inactive conversion context.
func NewContext() *Context { return &Context{} }

// WithConstraints runs f with constraint-postponement mode switched on,
// then restores the context's previous mode and pending list, returning
// whatever obligations f's equality checks recorded. Nesting is safe:
// an outer WithConstraints call's own pending list is untouched by an
// inner one.
func WithConstraints(ctx *Context, f func()) []Pair {
	prevActive, prevPending := ctx.active, ctx.pending
	ctx.active, ctx.pending = true, nil
	f()
	collected := ctx.pending
	ctx.active, ctx.pending = prevActive, prevPending
	return collected
}

// AddConstraint records a deferred obligation if ctx is in constraint
// mode, reporting whether it did so. A nil ctx is always inactive.
func AddConstraint(ctx *Context, a, b term.Term) bool {
	if ctx == nil || !ctx.active {
		return false
	}
	ctx.pending = append(ctx.pending, Pair{A: a, B: b})
	return true
}

// EqModulo decides whether a and b are equal modulo β-reduction and
// rewriting, in strict mode: a stuck comparison is a failure, never a
// postponed obligation.
func EqModulo(a, b term.Term) bool {
	return eqModuloCtx(nil, a, b)
}

// EqModuloConstr decides equal-modulo while in constraint mode: a stuck
// comparison at the head-mismatch stage is optimistically accepted and
// recorded instead of failing, and the full list of recorded obligations
// is returned alongside the verdict. Callers (the typechecker, when
// checking a rule's LHS) are responsible for resolving or
// re-checking the returned pairs once more information is available.
func EqModuloConstr(a, b term.Term) (bool, []Pair) {
	ctx := NewContext()
	var ok bool
	pending := WithConstraints(ctx, func() {
		ok = eqModuloCtx(ctx, a, b)
	})
	return ok, pending
}

// EqModuloCtx decides equal-modulo like EqModulo, but threads an existing
// Context through the comparison instead of forcing strict mode: when ctx
// is already in constraint mode (see WithConstraints), a stuck head
// mismatch is postponed into ctx's pending list rather than failing. A nil
// ctx behaves exactly like EqModulo.
func EqModuloCtx(ctx *Context, a, b term.Term) bool {
	return eqModuloCtx(ctx, a, b)
}

// eqModuloCtx implements the worklist procedure for equality-modulo: try the
// syntactic fast path first; otherwise reduce both sides to whnf and
// compare spines pointwise, recursing into the head's own substructure
// when the head shape demands it (Prod/Abst domain and body).
func eqModuloCtx(ctx *Context, a, b term.Term) bool {
	if EqSyntax(ctx, a, b) {
		return true
	}

	hA, sA := WhnfStk(a, nil)
	hB, sB := WhnfStk(b, nil)

	if len(sA) != len(sB) {
		debug.Trace(debug.Equa, "equa", "spine length mismatch, reifying")
		return EqSyntax(ctx, ToTerm(hA, sA), ToTerm(hB, sB))
	}

	if !eqHead(ctx, hA, hB) {
		return false
	}
	for i := range sA {
		if !eqModuloCtx(ctx, sA[i].Get(), sB[i].Get()) {
			return false
		}
	}
	return true
}

// eqHead compares two whnf heads. Prod and Abst recurse structurally
// (domain, then body under a shared fresh variable); every other shape
// falls back to EqSyntax, with a constraint-mode context given one last
// chance to postpone instead of failing.
func eqHead(ctx *Context, hA, hB term.Term) bool {
	switch x := hA.(type) {
	case *term.Prod:
		y, ok := hB.(*term.Prod)
		if !ok {
			return tryDefer(ctx, hA, hB)
		}
		if !eqModuloCtx(ctx, x.Dom, y.Dom) {
			return false
		}
		_, bodyX, bodyY := binder.Unbind2(x.B, y.B)
		return eqModuloCtx(ctx, bodyX, bodyY)

	case *term.Abst:
		y, ok := hB.(*term.Abst)
		if !ok {
			return tryDefer(ctx, hA, hB)
		}
		if !eqModuloCtx(ctx, x.Dom, y.Dom) {
			return false
		}
		_, bodyX, bodyY := binder.Unbind2(x.B, y.B)
		return eqModuloCtx(ctx, bodyX, bodyY)

	default:
		if EqSyntax(ctx, hA, hB) {
			return true
		}
		return tryDefer(ctx, hA, hB)
	}
}

func tryDefer(ctx *Context, a, b term.Term) bool {
	if AddConstraint(ctx, a, b) {
		debug.Trace(debug.Equa, "equa", "postponed")
		return true
	}
	return false
}

// EqSyntax decides strict syntactic (α-)equality after unfolding already
// solved metavariables on both sides. If one side is an unsolved
// *term.MetaApp, it opportunistically attempts to solve it against the
// other side via package unify; success counts as equal, failure as not
// equal. Two unsolved occurrences
// of the same metavariable are compared environment-wise rather than
// triggering self-unification.
func EqSyntax(ctx *Context, a, b term.Term) bool {
	a = unfoldMeta(a)
	b = unfoldMeta(b)

	ma, aIsMeta := a.(*term.MetaApp)
	mb, bIsMeta := b.(*term.MetaApp)

	if aIsMeta && bIsMeta && ma.M == mb.M {
		if len(ma.Env) != len(mb.Env) {
			return false
		}
		for i := range ma.Env {
			if !EqSyntax(ctx, ma.Env[i], mb.Env[i]) {
				return false
			}
		}
		return true
	}
	if aIsMeta {
		return unify.Unify(ma.M, ma.Env, b) == nil
	}
	if bIsMeta {
		return unify.Unify(mb.M, mb.Env, a) == nil
	}

	switch x := a.(type) {
	case term.Sort:
		y, ok := b.(term.Sort)
		return ok && x == y

	case *term.Variable:
		y, ok := b.(*term.Variable)
		return ok && x.ID == y.ID

	case *term.SymbolRef:
		y, ok := b.(*term.SymbolRef)
		return ok && x.Sym == y.Sym

	case *term.Prod:
		y, ok := b.(*term.Prod)
		if !ok || !EqSyntax(ctx, x.Dom, y.Dom) {
			return false
		}
		return binder.EqBinder(func(p, q term.Term) bool { return EqSyntax(ctx, p, q) }, x.B, y.B)

	case *term.Abst:
		y, ok := b.(*term.Abst)
		if !ok || !EqSyntax(ctx, x.Dom, y.Dom) {
			return false
		}
		return binder.EqBinder(func(p, q term.Term) bool { return EqSyntax(ctx, p, q) }, x.B, y.B)

	case *term.Appl:
		y, ok := b.(*term.Appl)
		return ok && EqSyntax(ctx, x.Fun, y.Fun) && EqSyntax(ctx, x.Arg, y.Arg)

	default:
		return false
	}
}

func unfoldMeta(t term.Term) term.Term {
	ma, ok := t.(*term.MetaApp)
	if !ok {
		return t
	}
	sol := ma.M.Solution()
	if sol == nil {
		return t
	}
	return unfoldMeta(sol.Subst(ma.Env...))
}
