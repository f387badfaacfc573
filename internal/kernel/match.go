package kernel

import (
	"fmt"

	"github.com/lambdapi-go/lambdapi/internal/binder"
	"github.com/lambdapi-go/lambdapi/internal/debug"
	"github.com/lambdapi-go/lambdapi/internal/term"
)

// PatternIllFormedError marks a structural invariant violation in a rule's
// LHS binder: substituting it with tag arguments did not yield an
// *term.ArgList of the rule's own arity. This can only happen if a rule
// was assembled incorrectly (by the parser or a hand-built signature);
// it is not a user-facing error.
type PatternIllFormedError struct {
	Symbol string
}

func (e *PatternIllFormedError) Error() string {
	return fmt.Sprintf("kernel: rule for %s has an ill-formed LHS pattern body", e.Symbol)
}

// tryRules attempts every rule attached to sym, in declaration order,
// against the current stack, and returns the first one that fires.
func tryRules(sym *term.Symbol, stack []*Cell) (term.Term, []*Cell, bool) {
	for _, r := range sym.Rules() {
		if newHead, newStack, ok := tryRule(sym, r, stack); ok {
			return newHead, newStack, true
		}
	}
	return nil, nil, false
}

// tryRule attempts to match a single rule against the stack's first
// r.Arity cells: build the ordered pattern list by
// substituting the LHS binder with tags, match each pattern against its
// corresponding stack cell left to right (short-circuiting on the first
// failure), and on success reduce by substituting the matched terms into
// the RHS binder.
func tryRule(sym *term.Symbol, r *term.Rule, stack []*Cell) (term.Term, []*Cell, bool) {
	if r.Arity > len(stack) {
		return nil, nil, false
	}

	nVars := r.LHS.Arity()
	tagArgs := make([]term.Term, nVars)
	for i := 0; i < nVars; i++ {
		tagArgs[i] = term.Tag{Index: i}
	}
	patternsTerm := r.LHS.Subst(tagArgs...)
	patterns, ok := patternsTerm.(*term.ArgList)
	if !ok || len(patterns.Items) != r.Arity {
		panic(&PatternIllFormedError{Symbol: sym.Name})
	}

	env := make([]term.Term, nVars)
	for i := range env {
		env[i] = term.Tag{Index: i}
	}

	for i, p := range patterns.Items {
		if !matching(env, p, stack[i]) {
			return nil, nil, false
		}
	}

	debug.Trace(debug.Matc, "match", "rule for %s matched", sym.Name)
	result := r.RHS.Subst(env...)
	return result, stack[r.Arity:], true
}

// matching attempts to unify pattern p against the (possibly still
// unforced) contents of cell, extending env in place with the first
// binding for each tag it encounters and checking later occurrences of
// an already-bound tag against EqModulo.
//
// A cell is only forced to whnf once the pattern demands structural
// inspection (anything but a fresh Tag or a Wildcard); matching a bare
// unbound tag against an unforced cell is what gives the matcher its
// call-by-need character: an argument is only evaluated once some rule
// actually needs to look inside it.
func matching(env []term.Term, p term.Term, cell *Cell) bool {
	if tag, ok := p.(term.Tag); ok {
		if isUnbound(env, tag.Index) {
			env[tag.Index] = cell.Get()
			return true
		}
		cell.Set(Whnf(cell.Get()))
		return EqModulo(env[tag.Index], cell.Get())
	}
	if _, ok := p.(term.Wildcard); ok {
		return true
	}

	cell.Set(Whnf(cell.Get()))
	q := cell.Get()

	switch x := p.(type) {
	case term.Sort:
		y, ok := q.(term.Sort)
		return ok && x == y

	case *term.Variable:
		y, ok := q.(*term.Variable)
		return ok && x.ID == y.ID

	case *term.SymbolRef:
		y, ok := q.(*term.SymbolRef)
		return ok && x.Sym == y.Sym

	case *term.Prod:
		y, ok := q.(*term.Prod)
		if !ok {
			return false
		}
		if !matchTerm(env, x.Dom, y.Dom) {
			return false
		}
		_, bx, by := binder.Unbind2(x.B, y.B)
		return matchTerm(env, bx, by)

	case *term.Abst:
		y, ok := q.(*term.Abst)
		if !ok {
			return false
		}
		if !matchTerm(env, x.Dom, y.Dom) {
			return false
		}
		_, bx, by := binder.Unbind2(x.B, y.B)
		return matchTerm(env, bx, by)

	case *term.Appl:
		y, ok := q.(*term.Appl)
		if !ok {
			return false
		}
		return matchTerm(env, x.Fun, y.Fun) && matchTerm(env, x.Arg, y.Arg)

	case *term.MetaApp:
		panic("kernel: MetaApp appeared in matching position")

	default:
		return false
	}
}

// isUnbound reports whether env[idx] still holds its own sentinel value
// term.Tag{Index: idx}, i.e. no pattern occurrence has bound it yet.
func isUnbound(env []term.Term, idx int) bool {
	t, ok := env[idx].(term.Tag)
	return ok && t.Index == idx
}

// matchTerm adapts matching to a plain (not yet forced) term q, for the
// recursive calls made while inspecting a pattern's substructure.
func matchTerm(env []term.Term, p, q term.Term) bool {
	return matching(env, p, NewCell(q))
}
