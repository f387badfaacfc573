// Package loader resolves a module's imports, drives the parser and
// typechecker over each file, and persists/retrieves a signature cache
// so an unchanged module need not be re-elaborated. Grounded on the
// teacher's internal/modules loader: a recursive per-file load guarded
// by a "loaded" set, plain os/filepath plumbing, fmt.Errorf-wrapped
// errors throughout.
package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/lambdapi-go/lambdapi/internal/lexer"
	"github.com/lambdapi-go/lambdapi/internal/parser"
	"github.com/lambdapi-go/lambdapi/internal/signature"
	"github.com/lambdapi-go/lambdapi/internal/typechecker"
)

// Loader resolves module names to files under SearchPath, parses and
// elaborates each one exactly once, and guarantees a symbol already
// linked from a prior module comes back as the same *term.Symbol
// pointer, since every module shares the one Sig.
type Loader struct {
	SearchPath []string
	Sig        *signature.Signature
	Cache      *Cache // nil disables the signature cache

	loaded    map[string]bool
	ModuleIDs map[string]uuid.UUID
}

// New returns a Loader over a fresh signature, or sig if non-nil.
func New(searchPath []string, sig *signature.Signature) *Loader {
	if sig == nil {
		sig = signature.New()
	}
	return &Loader{
		SearchPath: searchPath,
		Sig:        sig,
		loaded:     map[string]bool{},
		ModuleIDs:  map[string]uuid.UUID{},
	}
}

// LoadFile parses and elaborates a single file by path, together with
// every module it (transitively) imports. Re-loading an already-loaded
// module is a no-op.
func (l *Loader) LoadFile(path string) error {
	moduleName := moduleNameFromPath(path)
	return l.loadModule(moduleName, path)
}

// LoadModule resolves name against SearchPath and loads it, as for an
// import statement.
func (l *Loader) LoadModule(name string) error {
	if l.loaded[name] {
		return nil
	}
	path, err := l.resolveModuleFile(name)
	if err != nil {
		return err
	}
	return l.loadModule(name, path)
}

func (l *Loader) loadModule(name, path string) error {
	if l.loaded[name] {
		return nil
	}
	l.loaded[name] = true // mark before recursing, so import cycles terminate

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loader: reading %s: %w", path, err)
	}

	if l.Cache != nil {
		if cached, ok, err := l.Cache.Lookup(name, data); err != nil {
			return fmt.Errorf("loader: cache lookup for %s: %w", name, err)
		} else if ok {
			if err := cached.applyTo(l.Sig, name); err != nil {
				return fmt.Errorf("loader: replaying cached signature for %s: %w", name, err)
			}
			l.ModuleIDs[name] = cached.ModuleID
			return nil
		}
	}

	l.ModuleIDs[name] = uuid.New()

	p := parser.New(lexer.New(string(data)))
	mod := p.ParseModule()
	if errs := p.Errors(); len(errs) > 0 {
		return fmt.Errorf("loader: %d syntax error(s) in %s, first: %w", len(errs), path, errs[0])
	}

	for _, imp := range mod.Imports {
		if err := l.LoadModule(imp.Path); err != nil {
			return fmt.Errorf("loader: importing %s from %s: %w", imp.Path, name, err)
		}
	}

	checker := typechecker.NewChecker(name, l.Sig)
	if err := checker.ElaborateModule(mod); err != nil {
		return fmt.Errorf("loader: elaborating %s: %w", path, err)
	}

	if l.Cache != nil {
		if err := l.Cache.Store(name, data, l.ModuleIDs[name], l.Sig); err != nil {
			return fmt.Errorf("loader: caching %s: %w", name, err)
		}
	}
	return nil
}

// resolveModuleFile searches SearchPath, in order, for name+".dk".
func (l *Loader) resolveModuleFile(name string) (string, error) {
	for _, dir := range l.SearchPath {
		candidate := filepath.Join(dir, name+".dk")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("loader: module %q not found on search path %v", name, l.SearchPath)
}

func moduleNameFromPath(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
