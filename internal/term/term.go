// Package term defines the algebraic term representation of the λΠ-modulo
// kernel: sorts, variables, symbol references, dependent products,
// abstractions, applications, metavariable instances, and the two
// matcher-only markers (pattern tags and wildcards).
//
// Terms are immutable by contract. The only sanctioned mutations are the
// narrowly-scoped sharing optimizations documented on Cell (package
// kernel) and Meta.Solve below; nothing else in this package ever
// rewrites a term in place.
package term

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Term is the base type of every node in the kernel's term graph.
type Term interface {
	isTerm()
}

// Sort distinguishes the universe Type from the super-sort Kind.
type Sort int

const (
	TypeSort Sort = iota
	KindSort
)

func (Sort) isTerm() {}

func (s Sort) String() string {
	if s == KindSort {
		return "Kind"
	}
	return "Type"
}

var varCounter uint64

// Variable is a bound-variable token, unique within its binder's scope.
// Variables are minted by the binder service (package binder) when a
// Binder is unbound or constructed; client code never allocates one
// directly except to seed a fresh local context.
type Variable struct {
	ID   uint64
	Name string // advisory, for printing only
}

// NewVariable mints a fresh variable with the given name hint.
func NewVariable(nameHint string) *Variable {
	id := atomic.AddUint64(&varCounter, 1)
	return &Variable{ID: id, Name: nameHint}
}

func (*Variable) isTerm() {}

func (v *Variable) String() string {
	if v.Name != "" {
		return fmt.Sprintf("%s#%d", v.Name, v.ID)
	}
	return fmt.Sprintf("_#%d", v.ID)
}

// Symbol is either a static symbol (opaque constant, never rewritten) or a
// definable symbol (carries an ordered rule list). Physical identity of a
// *Symbol is canonical: two references built from the same declaration
// compare equal in O(1) by Go pointer identity, which is what SymbolRef
// relies on.
type Symbol struct {
	ID           uint64
	Name         string
	Module       string
	Type         Term
	Definable    bool
	mu           sync.Mutex
	rules        []*Rule
}

var symCounter uint64

// NewSymbol allocates a fresh static or definable symbol. The loader
// (package loader) is the only caller expected to use this directly; it
// is responsible for deduplicating by (module, name) so identity stays
// canonical across a whole load.
func NewSymbol(module, name string, typ Term, definable bool) *Symbol {
	id := atomic.AddUint64(&symCounter, 1)
	return &Symbol{ID: id, Name: name, Module: module, Type: typ, Definable: definable}
}

// AddRule appends a rewrite rule to a definable symbol's rule list.
// Append-only, caller-synchronized at the Signature level; this method
// itself is safe to call concurrently since it takes the symbol's lock.
func (s *Symbol) AddRule(r *Rule) {
	if !s.Definable {
		panic("term: AddRule on a static symbol: " + s.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
}

// Rules returns the symbol's rule list in declaration order. The returned
// slice must be treated as read-only by callers; rules are only ever
// appended, never removed or reordered, so sharing the backing array is
// safe as long as callers don't mutate it.
func (s *Symbol) Rules() []*Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules
}

// SymbolRef is a handle to a Symbol. Two SymbolRefs referencing the same
// *Symbol compare equal in O(1) by pointer identity.
type SymbolRef struct {
	Sym *Symbol
}

func (*SymbolRef) isTerm() {}

func (r *SymbolRef) String() string { return r.Sym.Name }

// Rule is a user-declared rewrite rule lhs --> rhs. LHS and RHS are both
// multiple-binders over the rule's pattern variables (their own Arity()
// is the pattern-variable count, which need not equal Arity below: a
// rule like "plus z y --> y" matches 2 stack arguments but binds only
// one pattern variable). Substituting LHS with one Tag per pattern
// variable yields an *ArgList of exactly Arity pattern terms — the
// argument patterns the defined symbol's head is matched against — and
// substituting RHS the same way yields the rewritten term.
type Rule struct {
	LHS   Binder
	RHS   Binder
	Arity int // number of stack arguments this rule consumes
}

// Binder is the abstract binder contract implemented by package binder.
// It hides the chosen bound-variable representation from every other
// kernel package: nobody outside package binder ever inspects a Binder's
// internals, only its Unbind/Subst/Arity operations.
type Binder interface {
	// NameHint returns the preferred display name of the (first) bound
	// variable. Advisory only; α-equivalence ignores it.
	NameHint() string
	// IsClosed reports whether the binder's body mentions no free
	// variables beyond the ones it itself binds.
	IsClosed() bool
	// Arity is the number of simultaneously bound variables.
	Arity() int
	// Subst performs a single substitution of all Arity bound variables
	// with args, in order, without name capture.
	Subst(args ...Term) Term
	// Unbind opens the binder, returning Arity fresh variables (unique
	// to this call) together with the body instantiated with them.
	Unbind() ([]*Variable, Term)
}

// Prod is a dependent product Πx:A. B.
type Prod struct {
	Dom Term
	B   Binder
}

func (*Prod) isTerm() {}

// Abst is a λ-abstraction λx:A. t. The domain annotation participates in
// equality even though β-reduction never inspects it.
type Abst struct {
	Dom Term
	B   Binder
}

func (*Abst) isTerm() {}

// Appl is function application (Fun Arg).
type Appl struct {
	Fun Term
	Arg Term
}

func (*Appl) isTerm() {}

// Meta is a metavariable. Its solution, once set, is final: a multiple
// binder over as many variables as the metavariable's environment has
// slots. Meta is the one other place (besides Cell, in package kernel)
// where in-place mutation is part of the contract — but only a single
// monotonic write from nil to non-nil.
type Meta struct {
	Key uint64
	mu  sync.Mutex
	sol Binder
}

var metaCounter uint64

// NewMeta allocates a fresh, unsolved metavariable.
func NewMeta() *Meta {
	id := atomic.AddUint64(&metaCounter, 1)
	return &Meta{Key: id}
}

// Solution returns the metavariable's solution, or nil if still unsolved.
func (m *Meta) Solution() Binder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sol
}

// Solve commits the metavariable's solution. Calling it on an
// already-solved metavariable is a kernel bug (MetaAlreadySolved); the
// kernel aborts via panic, recovered at the one designated boundary
// (the per-file check loop in cmd/lambdapi).
func (m *Meta) Solve(b Binder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sol != nil {
		panic(&MetaAlreadySolvedError{Key: m.Key})
	}
	m.sol = b
}

// MetaAlreadySolvedError is the programming-error kind raised by Solve.
type MetaAlreadySolvedError struct{ Key uint64 }

func (e *MetaAlreadySolvedError) Error() string {
	return fmt.Sprintf("term: metavariable ?%d already solved", e.Key)
}

// MetaApp is a metavariable instance: a metavariable paired with the
// ordered environment of terms that close its eventual solution.
type MetaApp struct {
	M   *Meta
	Env []Term
}

func (*MetaApp) isTerm() {}

// Tag is a pattern tag: a small non-negative integer standing in for a
// yet-to-be-bound pattern variable. Tags appear only inside terms built
// by substituting a rule's LHS binder with tag-valued arguments; they
// must never reach client code after a successful match (see package
// kernel's matcher).
type Tag struct{ Index int }

func (Tag) isTerm() {}

// Wildcard matches anything during rewrite-rule matching without
// recording a binding.
type Wildcard struct{}

func (Wildcard) isTerm() {}

// ArgList is the body shape of a rule's LHS binder: unbinding (or
// tag-substituting) a Rule.LHS yields one ArgList of length Rule.Arity,
// the ordered pattern terms the rule expects to match against the
// reduction machine's stack. It is not a surface-syntax term: the parser
// never produces one, and it is only assembled by whoever builds a Rule's
// LHS binder (the typechecker's rule elaboration, the signature cache).
type ArgList struct {
	Items []Term
}

func (*ArgList) isTerm() {}
