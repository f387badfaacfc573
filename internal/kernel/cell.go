// Package kernel implements the evaluator (C4), the rewrite matcher (C5)
// and conversion (C6). The three are implemented together because they
// call each other recursively by design: Whnf fires rules through
// tryRule, tryRule forces arguments through Whnf and falls back to
// EqModulo for already-bound pattern-tag equality, and EqModulo drives
// Whnf directly. See SPEC_FULL.md's packaging note for why this can't
// be three separate Go packages without breaking that recursion.
package kernel

import "github.com/lambdapi-go/lambdapi/internal/term"

// Cell is a mutable holder of a term, shared by every consumer of one
// argument position on the evaluator's stack. Normalizing a cell's
// contents and writing the result back is the only mutation the kernel
// performs on term subgraphs; the new contents are always equal modulo
// to the old ones, so the mutation is invisible to any caller that only
// observes terms through EqModulo/Whnf.
type Cell struct {
	contents term.Term
}

// NewCell wraps t in a fresh cell.
func NewCell(t term.Term) *Cell { return &Cell{contents: t} }

// Get returns the cell's current contents.
func (c *Cell) Get() term.Term { return c.contents }

// Set overwrites the cell's contents.
func (c *Cell) Set(t term.Term) { c.contents = t }
