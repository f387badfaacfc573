package kernel

import (
	"github.com/lambdapi-go/lambdapi/internal/debug"
	"github.com/lambdapi-go/lambdapi/internal/term"
)

// WhnfStk runs the reduction machine to exhaustion: unfolding a solved
// metavariable, pushing an application's argument onto the stack, β-reducing an
// abstraction, or firing a rewrite rule, in whatever order the current
// head shape admits, until none applies. The stack is ordered with index
// 0 as the next argument to consume.
func WhnfStk(head term.Term, stack []*Cell) (term.Term, []*Cell) {
	for {
		switch h := head.(type) {
		case *term.MetaApp:
			sol := h.M.Solution()
			if sol == nil {
				return head, stack
			}
			debug.Trace(debug.Eval, "eval", "unfold ?%d", h.M.Key)
			head = sol.Subst(h.Env...)

		case *term.Appl:
			debug.Trace(debug.Eval, "eval", "push")
			stack = append([]*Cell{NewCell(h.Arg)}, stack...)
			head = h.Fun

		case *term.Abst:
			if len(stack) == 0 {
				return head, stack
			}
			debug.Trace(debug.Eval, "eval", "beta")
			arg := stack[0]
			head = h.B.Subst(arg.Get())
			stack = stack[1:]

		case *term.SymbolRef:
			if !h.Sym.Definable {
				return head, stack
			}
			newHead, newStack, ok := tryRules(h.Sym, stack)
			if !ok {
				return head, stack
			}
			debug.Trace(debug.Eval, "eval", "rewrite %s", h.Sym.Name)
			head = newHead
			stack = newStack

		default:
			return head, stack
		}
	}
}

// ToTerm reifies an evaluator state back into an ordinary term by
// left-folding application nodes over the cell contents, in stack order.
func ToTerm(head term.Term, stack []*Cell) term.Term {
	result := head
	for _, c := range stack {
		result = &term.Appl{Fun: result, Arg: c.Get()}
	}
	return result
}

// Whnf computes the weak-head normal form of t.
func Whnf(t term.Term) term.Term {
	head, stack := WhnfStk(t, nil)
	return ToTerm(head, stack)
}
