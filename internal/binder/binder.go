// Package binder implements capture-avoiding substitution, α-equivalence,
// and safely-closing binder construction. It is the single place in the
// kernel that knows how bound variables are represented; every other
// package only ever sees term.Binder's exported contract.
//
// The representation chosen here is explicit substitution with a
// fresh-id generator: a binder stores its own bound variables (minted
// once, at construction time) next to an ordinary term.Term body in
// which those variables occur free-like.
// Unbind produces a brand-new set of fresh variables and substitutes them
// in, which is what supplies the "fresh, unique to this call" guarantee
// and sidesteps capture without needing a de Bruijn shifting pass.
package binder

import "github.com/lambdapi-go/lambdapi/internal/term"

type multiBinder struct {
	vars []*term.Variable
	body term.Term
}

// New builds a Binder over the given bound variables and body. The
// variables must already occur (or not) inside body with their current
// identities; New does not rename anything.
func New(vars []*term.Variable, body term.Term) term.Binder {
	return &multiBinder{vars: vars, body: body}
}

// BindMany attempts to build a closed multiple-binder over vars in order.
// It reports whether the result is closed (body mentions no other free
// variable than the ones in vars).
func BindMany(vars []*term.Variable, body term.Term) (term.Binder, bool) {
	b := &multiBinder{vars: vars, body: body}
	return b, isClosedOver(vars, body)
}

func (b *multiBinder) NameHint() string {
	if len(b.vars) == 0 {
		return ""
	}
	return b.vars[0].Name
}

func (b *multiBinder) Arity() int { return len(b.vars) }

func (b *multiBinder) IsClosed() bool {
	return isClosedOver(b.vars, b.body)
}

func (b *multiBinder) Subst(args ...term.Term) term.Term {
	if len(args) != len(b.vars) {
		panic("binder: Subst arity mismatch")
	}
	sub := make(map[uint64]term.Term, len(b.vars))
	for i, v := range b.vars {
		sub[v.ID] = args[i]
	}
	return substitute(b.body, sub)
}

func (b *multiBinder) Unbind() ([]*term.Variable, term.Term) {
	fresh := make([]*term.Variable, len(b.vars))
	args := make([]term.Term, len(b.vars))
	for i, v := range b.vars {
		nv := term.NewVariable(v.Name)
		fresh[i] = nv
		args[i] = nv
	}
	return fresh, b.Subst(args...)
}

// Unbind2 shares one set of fresh variables across two same-arity binders,
// for structural comparison of their bodies.
func Unbind2(b1, b2 term.Binder) ([]*term.Variable, term.Term, term.Term) {
	if b1.Arity() != b2.Arity() {
		panic("binder: Unbind2 arity mismatch")
	}
	fresh := make([]*term.Variable, b1.Arity())
	args := make([]term.Term, b1.Arity())
	hint := b1.NameHint()
	for i := range fresh {
		nv := term.NewVariable(hint)
		fresh[i] = nv
		args[i] = nv
	}
	return fresh, b1.Subst(args...), b2.Subst(args...)
}

// EqBinder compares two binders by unbinding them onto a shared fresh
// variable set and calling termEq on the resulting bodies.
func EqBinder(termEq func(a, b term.Term) bool, b1, b2 term.Binder) bool {
	if b1.Arity() != b2.Arity() {
		return false
	}
	_, body1, body2 := Unbind2(b1, b2)
	return termEq(body1, body2)
}

// substitute replaces every *term.Variable in t whose ID is a key of sub
// with the mapped term. It descends into nested Binders by opening them
// (Unbind), substituting in the open body, and rebuilding — which keeps
// the operation correct and capture-free using only the public Binder
// contract, with no special knowledge of any other binder implementation.
func substitute(t term.Term, sub map[uint64]term.Term) term.Term {
	switch x := t.(type) {
	case *term.Variable:
		if repl, ok := sub[x.ID]; ok {
			return repl
		}
		return x
	case term.Sort, term.Tag, term.Wildcard, *term.SymbolRef:
		return x
	case *term.MetaApp:
		newEnv := make([]term.Term, len(x.Env))
		for i, e := range x.Env {
			newEnv[i] = substitute(e, sub)
		}
		return &term.MetaApp{M: x.M, Env: newEnv}
	case *term.Prod:
		return &term.Prod{Dom: substitute(x.Dom, sub), B: substituteBinder(x.B, sub)}
	case *term.Abst:
		return &term.Abst{Dom: substitute(x.Dom, sub), B: substituteBinder(x.B, sub)}
	case *term.Appl:
		return &term.Appl{Fun: substitute(x.Fun, sub), Arg: substitute(x.Arg, sub)}
	case *term.ArgList:
		items := make([]term.Term, len(x.Items))
		for i, it := range x.Items {
			items[i] = substitute(it, sub)
		}
		return &term.ArgList{Items: items}
	default:
		return x
	}
}

func substituteBinder(b term.Binder, sub map[uint64]term.Term) term.Binder {
	fresh, body := b.Unbind()
	newBody := substitute(body, sub)
	nb, _ := BindMany(fresh, newBody)
	return nb
}

// isClosedOver reports whether body mentions no free variable other
// than the ones listed in vars. It descends into nested binders via
// Unbind, so it never confuses an inner binder's own bound variables for
// free occurrences.
func isClosedOver(vars []*term.Variable, body term.Term) bool {
	bound := make(map[uint64]bool, len(vars))
	for _, v := range vars {
		bound[v.ID] = true
	}
	return !hasForeignFreeVar(body, bound)
}

// hasForeignFreeVar reports whether t mentions a *term.Variable whose ID
// is not in bound.
func hasForeignFreeVar(t term.Term, bound map[uint64]bool) bool {
	switch x := t.(type) {
	case *term.Variable:
		return !bound[x.ID]
	case term.Sort, term.Tag, term.Wildcard, *term.SymbolRef:
		return false
	case *term.MetaApp:
		for _, e := range x.Env {
			if hasForeignFreeVar(e, bound) {
				return true
			}
		}
		return false
	case *term.Prod:
		if hasForeignFreeVar(x.Dom, bound) {
			return true
		}
		return bodyHasForeignFreeVar(x.B, bound)
	case *term.Abst:
		if hasForeignFreeVar(x.Dom, bound) {
			return true
		}
		return bodyHasForeignFreeVar(x.B, bound)
	case *term.Appl:
		return hasForeignFreeVar(x.Fun, bound) || hasForeignFreeVar(x.Arg, bound)
	case *term.ArgList:
		for _, it := range x.Items {
			if hasForeignFreeVar(it, bound) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func bodyHasForeignFreeVar(b term.Binder, bound map[uint64]bool) bool {
	fresh, body := b.Unbind()
	// The binder's own freshly-minted variables are bound from the body's
	// point of view; they never count as foreign.
	inner := make(map[uint64]bool, len(bound)+len(fresh))
	for k := range bound {
		inner[k] = true
	}
	for _, v := range fresh {
		inner[v.ID] = true
	}
	return hasForeignFreeVar(body, inner)
}

// FreeVariables collects, in first-occurrence order, the set of free
// variables mentioned in t.
func FreeVariables(t term.Term) []*term.Variable {
	seen := map[uint64]bool{}
	var order []*term.Variable
	var walk func(term.Term)
	walk = func(t term.Term) {
		switch x := t.(type) {
		case *term.Variable:
			if !seen[x.ID] {
				seen[x.ID] = true
				order = append(order, x)
			}
		case *term.MetaApp:
			for _, e := range x.Env {
				walk(e)
			}
		case *term.Prod:
			walk(x.Dom)
			fresh, body := x.B.Unbind()
			for _, v := range fresh {
				seen[v.ID] = true // bound by this binder, never free
			}
			walk(body)
		case *term.Abst:
			walk(x.Dom)
			fresh, body := x.B.Unbind()
			for _, v := range fresh {
				seen[v.ID] = true
			}
			walk(body)
		case *term.Appl:
			walk(x.Fun)
			walk(x.Arg)
		case *term.ArgList:
			for _, it := range x.Items {
				walk(it)
			}
		}
	}
	walk(t)
	return order
}
