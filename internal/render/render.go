// Package render pretty-prints term.Term values back into the .dk-like
// concrete syntax, using a strings.Builder fed by a small set of mutually
// recursive print functions.
package render

import (
	"fmt"
	"strings"

	"github.com/lambdapi-go/lambdapi/internal/term"
)

// Term renders t as a single-line string. Bound variables print using
// their advisory name hint; a variable with an empty hint prints as _<id>.
// Two in-scope binders with the same hint are not disambiguated, so their
// variables print identically.
func Term(t term.Term) string {
	var b strings.Builder
	printTerm(&b, t, 0)
	return b.String()
}

// precedence levels, loosest to tightest: arrow < appl < atom.
const (
	precArrow = 0
	precAppl  = 1
	precAtom  = 2
)

func printTerm(b *strings.Builder, t term.Term, prec int) {
	switch x := t.(type) {
	case term.Sort:
		b.WriteString(x.String())

	case *term.Variable:
		b.WriteString(x.Name)
		if x.Name == "" {
			fmt.Fprintf(b, "_%d", x.ID)
		}

	case *term.SymbolRef:
		b.WriteString(x.Sym.Name)

	case term.Tag:
		fmt.Fprintf(b, "$%d", x.Index)

	case term.Wildcard:
		b.WriteString("_")

	case *term.MetaApp:
		fmt.Fprintf(b, "?%d", x.M.Key)
		if len(x.Env) > 0 {
			b.WriteString("[")
			for i, e := range x.Env {
				if i > 0 {
					b.WriteString(", ")
				}
				printTerm(b, e, precArrow)
			}
			b.WriteString("]")
		}

	case *term.Prod:
		openParen(b, prec, precArrow)
		name := x.B.NameHint()
		if name != "" {
			fmt.Fprintf(b, "%s : ", name)
			printTerm(b, x.Dom, precAppl)
		} else {
			printTerm(b, x.Dom, precAppl+1)
		}
		b.WriteString(" -> ")
		_, body := x.B.Unbind()
		printTerm(b, body, precArrow)
		closeParen(b, prec, precArrow)

	case *term.Abst:
		openParen(b, prec, precArrow)
		name := x.B.NameHint()
		fmt.Fprintf(b, "%s : ", name)
		printTerm(b, x.Dom, precAppl)
		b.WriteString(" => ")
		_, body := x.B.Unbind()
		printTerm(b, body, precArrow)
		closeParen(b, prec, precArrow)

	case *term.Appl:
		openParen(b, prec, precAppl)
		printTerm(b, x.Fun, precAppl)
		b.WriteString(" ")
		printTerm(b, x.Arg, precAtom)
		closeParen(b, prec, precAppl)

	case *term.ArgList:
		b.WriteString("[")
		for i, it := range x.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			printTerm(b, it, precArrow)
		}
		b.WriteString("]")

	default:
		fmt.Fprintf(b, "<?%T>", t)
	}
}

func openParen(b *strings.Builder, prec, need int) {
	if prec > need {
		b.WriteString("(")
	}
}

func closeParen(b *strings.Builder, prec, need int) {
	if prec > need {
		b.WriteString(")")
	}
}
