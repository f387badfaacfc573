// Package signature implements C3, the registry mapping a symbol's
// identity (module path + name) to its declared Symbol, giving the
// physical-identity guarantee the rest of the kernel relies on: looking
// up the same (module, name) pair twice always returns the same
// *term.Symbol Go pointer.
package signature

import (
	"fmt"
	"sync"

	"github.com/lambdapi-go/lambdapi/internal/term"
)

// UnresolvedSymbolError is returned by Resolve when a (module, name) pair
// has no declaration. Fatal to the current command.
type UnresolvedSymbolError struct {
	Module, Name string
}

func (e *UnresolvedSymbolError) Error() string {
	return fmt.Sprintf("signature: unresolved symbol %s.%s", e.Module, e.Name)
}

// Signature is the registry of all symbols loaded so far. A Signature is
// safe for concurrent reads; mutation (Declare, AddRule) is
// caller-synchronized by the embedded mutex. Rules are append-only.
type Signature struct {
	mu      sync.Mutex
	symbols map[string]*term.Symbol // key: module + "." + name
	order   []*term.Symbol          // declaration order, for deterministic All()
}

// New creates an empty signature.
func New() *Signature {
	return &Signature{symbols: make(map[string]*term.Symbol)}
}

func key(module, name string) string { return module + "." + name }

// Declare registers a new symbol. Declaring an already-declared (module,
// name) pair again returns the existing *term.Symbol unchanged: its type
// and definability are not updated from the new call's arguments.
func (s *Signature) Declare(module, name string, typ term.Term, definable bool) *term.Symbol {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(module, name)
	if existing, ok := s.symbols[k]; ok {
		return existing
	}
	sym := term.NewSymbol(module, name, typ, definable)
	s.symbols[k] = sym
	s.order = append(s.order, sym)
	return sym
}

// Resolve looks up a symbol by its module path and name.
func (s *Signature) Resolve(module, name string) (*term.Symbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sym, ok := s.symbols[key(module, name)]
	if !ok {
		return nil, &UnresolvedSymbolError{Module: module, Name: name}
	}
	return sym, nil
}

// AddRule appends a rewrite rule to a definable symbol. Append-only.
func (s *Signature) AddRule(sym *term.Symbol, r *term.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sym.AddRule(r)
}

// All returns every declared symbol in declaration order, for diagnostics
// and cache serialization. The returned slice is a snapshot; later
// Declare calls don't retroactively affect it.
func (s *Signature) All() []*term.Symbol {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*term.Symbol, len(s.order))
	copy(out, s.order)
	return out
}
