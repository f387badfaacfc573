package loader

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/gob"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lambdapi-go/lambdapi/internal/binder"
	"github.com/lambdapi-go/lambdapi/internal/signature"
	"github.com/lambdapi-go/lambdapi/internal/term"
)

// wireTerm is a flattened, fully-exported stand-in for term.Term used
// only for the cache's gob blob: bound variables are referenced by name
// within their binder's lexical scope instead of by pointer, and symbol
// references are (module, name) pairs instead of *term.Symbol, so the
// blob never embeds a Symbol's mutex or its (possibly huge, possibly
// cyclic) rule list.
type wireTerm struct {
	Kind string // sort, var, sym, prod, abst, appl, arglist

	IsKind bool // sort

	Name   string // var / prod / abst binder name; sym symbol name
	Module string // sym

	Dom  *wireTerm // prod, abst
	Body *wireTerm // prod, abst

	Fun, Arg *wireTerm // appl

	Items []*wireTerm // arglist
}

type cachedRule struct {
	VarNames   []string
	MatchArity int
	LHS        *wireTerm
	RHS        *wireTerm
}

type cachedSymbol struct {
	Name      string
	Definable bool
	Type      *wireTerm
	Rules     []cachedRule
}

// CachedSignature is the opaque blob persisted per module: a module's
// uuid plus a flattened snapshot of every symbol it declared, replayable
// against a *signature.Signature without re-parsing or re-typechecking.
type CachedSignature struct {
	ModuleID uuid.UUID
	Hash     string
	Symbols  []cachedSymbol
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// externalize flattens t into a wireTerm. names maps a bound variable's
// id to the name it should be serialized under, extended as Prod/Abst
// binders are walked into. It fails if t contains a metavariable instance
// (solved or not) or a matcher-only marker (Tag/Wildcard), which have no
// business appearing in a fully elaborated symbol type or rule body.
func externalize(t term.Term, names map[uint64]string) (*wireTerm, error) {
	switch x := t.(type) {
	case term.Sort:
		return &wireTerm{Kind: "sort", IsKind: x == term.KindSort}, nil

	case *term.Variable:
		name, ok := names[x.ID]
		if !ok {
			return nil, fmt.Errorf("loader: cache: free variable %s outside any cached binder", x.String())
		}
		return &wireTerm{Kind: "var", Name: name}, nil

	case *term.SymbolRef:
		return &wireTerm{Kind: "sym", Module: x.Sym.Module, Name: x.Sym.Name}, nil

	case *term.Prod:
		dom, err := externalize(x.Dom, names)
		if err != nil {
			return nil, err
		}
		fresh, body := x.B.Unbind()
		next := extendNames(names, fresh[0])
		wb, err := externalize(body, next)
		if err != nil {
			return nil, err
		}
		return &wireTerm{Kind: "prod", Name: fresh[0].Name, Dom: dom, Body: wb}, nil

	case *term.Abst:
		dom, err := externalize(x.Dom, names)
		if err != nil {
			return nil, err
		}
		fresh, body := x.B.Unbind()
		next := extendNames(names, fresh[0])
		wb, err := externalize(body, next)
		if err != nil {
			return nil, err
		}
		return &wireTerm{Kind: "abst", Name: fresh[0].Name, Dom: dom, Body: wb}, nil

	case *term.Appl:
		fun, err := externalize(x.Fun, names)
		if err != nil {
			return nil, err
		}
		arg, err := externalize(x.Arg, names)
		if err != nil {
			return nil, err
		}
		return &wireTerm{Kind: "appl", Fun: fun, Arg: arg}, nil

	case *term.ArgList:
		items := make([]*wireTerm, len(x.Items))
		for i, it := range x.Items {
			w, err := externalize(it, names)
			if err != nil {
				return nil, err
			}
			items[i] = w
		}
		return &wireTerm{Kind: "arglist", Items: items}, nil

	default:
		return nil, fmt.Errorf("loader: cache: cannot serialize a %T", t)
	}
}

func extendNames(names map[uint64]string, v *term.Variable) map[uint64]string {
	next := make(map[uint64]string, len(names)+1)
	for k, n := range names {
		next[k] = n
	}
	next[v.ID] = v.Name
	return next
}

// internalize rebuilds a term.Term from a wireTerm, resolving "var"
// nodes against scope (current lexical binder names) and "sym" nodes
// against sig.
func internalize(w *wireTerm, scope map[string]*term.Variable, sig *signature.Signature) (term.Term, error) {
	switch w.Kind {
	case "sort":
		if w.IsKind {
			return term.KindSort, nil
		}
		return term.TypeSort, nil

	case "var":
		v, ok := scope[w.Name]
		if !ok {
			return nil, fmt.Errorf("loader: cache: unbound variable %q while decoding", w.Name)
		}
		return v, nil

	case "sym":
		sym, err := sig.Resolve(w.Module, w.Name)
		if err != nil {
			return nil, err
		}
		return &term.SymbolRef{Sym: sym}, nil

	case "prod":
		dom, err := internalize(w.Dom, scope, sig)
		if err != nil {
			return nil, err
		}
		v := term.NewVariable(w.Name)
		body, err := internalize(w.Body, extendScope(scope, v), sig)
		if err != nil {
			return nil, err
		}
		b, _ := binder.BindMany([]*term.Variable{v}, body)
		return &term.Prod{Dom: dom, B: b}, nil

	case "abst":
		dom, err := internalize(w.Dom, scope, sig)
		if err != nil {
			return nil, err
		}
		v := term.NewVariable(w.Name)
		body, err := internalize(w.Body, extendScope(scope, v), sig)
		if err != nil {
			return nil, err
		}
		b, _ := binder.BindMany([]*term.Variable{v}, body)
		return &term.Abst{Dom: dom, B: b}, nil

	case "appl":
		fun, err := internalize(w.Fun, scope, sig)
		if err != nil {
			return nil, err
		}
		arg, err := internalize(w.Arg, scope, sig)
		if err != nil {
			return nil, err
		}
		return &term.Appl{Fun: fun, Arg: arg}, nil

	case "arglist":
		items := make([]term.Term, len(w.Items))
		for i, it := range w.Items {
			t, err := internalize(it, scope, sig)
			if err != nil {
				return nil, err
			}
			items[i] = t
		}
		return &term.ArgList{Items: items}, nil

	default:
		return nil, fmt.Errorf("loader: cache: unknown wire kind %q", w.Kind)
	}
}

func extendScope(scope map[string]*term.Variable, v *term.Variable) map[string]*term.Variable {
	next := make(map[string]*term.Variable, len(scope)+1)
	for k, vv := range scope {
		next[k] = vv
	}
	next[v.Name] = v
	return next
}

// applyTo replays a decoded CachedSignature's symbols and rules into
// sig, under module. Symbols are declared in the order they were
// cached, so a type that forward-references a later symbol in the same
// module (unusual, but not forbidden by the surface syntax) will fail to
// resolve — the same restriction the loader's own single forward pass
// already imposes when elaborating from source.
func (cs *CachedSignature) applyTo(sig *signature.Signature, module string) error {
	for _, cSym := range cs.Symbols {
		typ, err := internalize(cSym.Type, map[string]*term.Variable{}, sig)
		if err != nil {
			return fmt.Errorf("cache: decoding type of %s: %w", cSym.Name, err)
		}
		sym := sig.Declare(module, cSym.Name, typ, cSym.Definable)

		for _, cRule := range cSym.Rules {
			vars := make([]*term.Variable, len(cRule.VarNames))
			scope := map[string]*term.Variable{}
			for i, name := range cRule.VarNames {
				v := term.NewVariable(name)
				vars[i] = v
				scope[name] = v
			}
			lhsTerm, err := internalize(cRule.LHS, scope, sig)
			if err != nil {
				return fmt.Errorf("cache: decoding rule for %s: %w", cSym.Name, err)
			}
			rhsTerm, err := internalize(cRule.RHS, scope, sig)
			if err != nil {
				return fmt.Errorf("cache: decoding rule for %s: %w", cSym.Name, err)
			}
			lhsBinder, _ := binder.BindMany(vars, lhsTerm)
			rhsBinder, _ := binder.BindMany(vars, rhsTerm)
			sig.AddRule(sym, &term.Rule{LHS: lhsBinder, RHS: rhsBinder, Arity: cRule.MatchArity})
		}
	}
	return nil
}

// Cache is a signature cache backed by a pure-Go sqlite database
// (modernc.org/sqlite, no cgo), keyed by module name and gated on a
// content hash of the module's source.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if necessary) the sqlite database at path
// and ensures its schema exists.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("loader: opening cache %s: %w", path, err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS signatures (
		module TEXT PRIMARY KEY,
		hash   TEXT NOT NULL,
		blob   BLOB NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("loader: preparing cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// EntryCount returns the number of modules currently cached.
func (c *Cache) EntryCount() (int, error) {
	var n int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM signatures`).Scan(&n)
	return n, err
}

// Lookup returns the cached signature for module if present and its
// stored hash matches data's content hash.
func (c *Cache) Lookup(module string, data []byte) (*CachedSignature, bool, error) {
	var hash string
	var blob []byte
	row := c.db.QueryRow(`SELECT hash, blob FROM signatures WHERE module = ?`, module)
	if err := row.Scan(&hash, &blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	if hash != contentHash(data) {
		return nil, false, nil
	}
	var cached CachedSignature
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&cached); err != nil {
		return nil, false, fmt.Errorf("loader: decoding cached signature for %s: %w", module, err)
	}
	return &cached, true, nil
}

// Store snapshots every symbol sig currently associates with module and
// persists it under module, replacing any prior entry.
func (c *Cache) Store(module string, data []byte, moduleID uuid.UUID, sig *signature.Signature) error {
	cached := CachedSignature{ModuleID: moduleID, Hash: contentHash(data)}

	for _, sym := range sig.All() {
		if sym.Module != module {
			continue
		}
		typ, err := externalize(sym.Type, map[uint64]string{})
		if err != nil {
			return fmt.Errorf("cache: encoding type of %s: %w", sym.Name, err)
		}
		cSym := cachedSymbol{Name: sym.Name, Definable: sym.Definable, Type: typ}

		for _, r := range sym.Rules() {
			// Unbind the LHS (which keeps each pattern variable's own name)
			// and open the RHS onto the same variables, so that the
			// name-based scoping used on decode keeps them distinct.
			fresh, lhsBody := r.LHS.Unbind()
			freshArgs := make([]term.Term, len(fresh))
			for i, v := range fresh {
				freshArgs[i] = v
			}
			rhsBody := r.RHS.Subst(freshArgs...)
			names := make(map[uint64]string, len(fresh))
			varNames := make([]string, len(fresh))
			for i, v := range fresh {
				names[v.ID] = v.Name
				varNames[i] = v.Name
			}
			wLHS, err := externalize(lhsBody, names)
			if err != nil {
				return fmt.Errorf("cache: encoding rule for %s: %w", sym.Name, err)
			}
			wRHS, err := externalize(rhsBody, names)
			if err != nil {
				return fmt.Errorf("cache: encoding rule for %s: %w", sym.Name, err)
			}
			cSym.Rules = append(cSym.Rules, cachedRule{
				VarNames:   varNames,
				MatchArity: r.Arity,
				LHS:        wLHS,
				RHS:        wRHS,
			})
		}
		cached.Symbols = append(cached.Symbols, cSym)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cached); err != nil {
		return fmt.Errorf("cache: encoding signature for %s: %w", module, err)
	}
	_, err := c.db.Exec(
		`INSERT INTO signatures (module, hash, blob) VALUES (?, ?, ?)
		 ON CONFLICT(module) DO UPDATE SET hash = excluded.hash, blob = excluded.blob`,
		module, cached.Hash, buf.Bytes(),
	)
	return err
}
