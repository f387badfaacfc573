// Package unify implements C7: instantiation of metavariables against
// terms, with an occurs check and a Miller-pattern scope check.
package unify

import (
	"fmt"

	"github.com/lambdapi-go/lambdapi/internal/binder"
	"github.com/lambdapi-go/lambdapi/internal/term"
)

// OccursOrScopeError is returned when a candidate solution fails either
// the occurs check or the Miller-pattern scope check. Non-fatal: the
// caller (typically package kernel's conversion loop, in constraint mode)
// decides whether to recover by postponing or to fail.
type OccursOrScopeError struct {
	Reason string
}

func (e *OccursOrScopeError) Error() string { return "unify: " + e.Reason }

// Unify attempts to solve meta[env] = t. It returns nil on success (the
// metavariable is solved as a side effect) or an *OccursOrScopeError on
// failure. Calling Unify on an already-solved metavariable is a kernel
// bug and panics.
func Unify(meta *term.Meta, env []term.Term, t term.Term) error {
	if meta.Solution() != nil {
		panic(fmt.Sprintf("unify: meta ?%d is already solved", meta.Key))
	}

	if occurs(meta, t, nil) {
		return &OccursOrScopeError{Reason: fmt.Sprintf("?%d occurs in the solution", meta.Key)}
	}

	vars := make([]*term.Variable, len(env))
	for i, e := range env {
		v, ok := e.(*term.Variable)
		if !ok {
			return &OccursOrScopeError{Reason: "environment entry is not a variable (not a Miller pattern)"}
		}
		vars[i] = v
	}

	b, closed := binder.BindMany(vars, t)
	if !closed {
		return &OccursOrScopeError{Reason: "solution mentions a variable outside the metavariable's scope"}
	}

	meta.Solve(b)
	return nil
}

// occurs scans t for an occurrence of meta, unfolding other already-solved
// metavariables as it goes. When descending into a binder, the bound
// variables are irrelevant to the search (meta can never itself be a
// bound *term.Variable): Unbind already gives back an ordinary term with
// concrete free variables to scan exactly like any other term.
func occurs(meta *term.Meta, t term.Term, seen map[*term.Meta]bool) bool {
	switch x := t.(type) {
	case *term.Variable, term.Sort, term.Tag, term.Wildcard, *term.SymbolRef:
		return false
	case *term.MetaApp:
		if x.M == meta {
			return true
		}
		if sol := x.M.Solution(); sol != nil {
			if seen == nil {
				seen = map[*term.Meta]bool{}
			}
			if seen[x.M] {
				return false
			}
			seen[x.M] = true
			return occurs(meta, sol.Subst(x.Env...), seen)
		}
		for _, e := range x.Env {
			if occurs(meta, e, seen) {
				return true
			}
		}
		return false
	case *term.Prod:
		if occurs(meta, x.Dom, seen) {
			return true
		}
		_, body := x.B.Unbind()
		return occurs(meta, body, seen)
	case *term.Abst:
		if occurs(meta, x.Dom, seen) {
			return true
		}
		_, body := x.B.Unbind()
		return occurs(meta, body, seen)
	case *term.Appl:
		return occurs(meta, x.Fun, seen) || occurs(meta, x.Arg, seen)
	default:
		return false
	}
}
