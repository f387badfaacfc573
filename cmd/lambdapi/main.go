// Command lambdapi is the CLI front end for the kernel: it loads and
// type-checks .dk-flavored source files, prints the whnf of a standalone
// term, and reports on the signature cache.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/lambdapi-go/lambdapi/internal/config"
	"github.com/lambdapi-go/lambdapi/internal/debug"
	"github.com/lambdapi-go/lambdapi/internal/kernel"
	"github.com/lambdapi-go/lambdapi/internal/lexer"
	"github.com/lambdapi-go/lambdapi/internal/loader"
	"github.com/lambdapi-go/lambdapi/internal/parser"
	"github.com/lambdapi-go/lambdapi/internal/render"
	"github.com/lambdapi-go/lambdapi/internal/signature"
	"github.com/lambdapi-go/lambdapi/internal/typechecker"
)

var useColor = isatty.IsTerminal(os.Stderr.Fd())

func colorize(code, s string) string {
	if !useColor {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load("lambdapi.yaml")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.ApplyDebugToggles()

	switch os.Args[1] {
	case "check":
		os.Exit(runCheck(cfg, os.Args[2:]))
	case "whnf":
		os.Exit(runWhnf(cfg, os.Args[2:]))
	case "serve-cache":
		os.Exit(runServeCache(cfg, os.Args[2:]))
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lambdapi <check|whnf|serve-cache> [args...]")
}

func newLoader(cfg *config.Config) (*loader.Loader, func(), error) {
	sig := signature.New()
	l := loader.New(cfg.SearchPath, sig)
	closeFn := func() {}
	if cfg.CacheFile != "" {
		c, err := loader.OpenCache(cfg.CacheFile)
		if err != nil {
			return nil, nil, err
		}
		l.Cache = c
		closeFn = func() { c.Close() }
	}
	return l, closeFn, nil
}

// runCheck loads and type-checks every file, printing the inferred type
// of each top-level declaration and reporting ConversionMismatch-style
// failures as diagnostics. Each file is checked independently, inside
// its own recovered boundary, so one malformed module cannot abort the
// rest of the run.
func runCheck(cfg *config.Config, files []string) int {
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: lambdapi check <files...>")
		return 1
	}

	l, closeFn, err := newLoader(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeFn()

	exitCode := 0
	for _, f := range files {
		if !checkOneFile(l, f) {
			exitCode = 1
		}
	}
	return exitCode
}

func checkOneFile(l *loader.Loader, path string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", colorize("31", "kernel bug"), fmt.Sprint(r))
			ok = false
		}
	}()

	if err := l.LoadFile(path); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", colorize("31", "error"), err)
		return false
	}

	for _, sym := range l.Sig.All() {
		if sym.Module != moduleNameOf(path) {
			continue
		}
		fmt.Printf("%s : %s\n", sym.Name, render.Term(sym.Type))
	}
	return true
}

func moduleNameOf(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// runWhnf parses a standalone term expression against an already-loaded
// signature and prints its weak-head normal form.
func runWhnf(cfg *config.Config, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: lambdapi whnf <file> <term-expr>")
		return 1
	}
	file, exprSrc := args[0], args[1]

	l, closeFn, err := newLoader(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeFn()

	if err := l.LoadFile(file); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	p := parser.New(lexer.New(exprSrc))
	expr := p.ParseStandaloneExpr()
	if errs := p.Errors(); len(errs) > 0 {
		fmt.Fprintln(os.Stderr, errs[0])
		return 1
	}

	checker := typechecker.NewChecker(moduleNameOf(file), l.Sig)
	t, typ, err := checker.InferStandalone(expr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Printf("%s : %s\n", render.Term(kernel.Whnf(t)), render.Term(typ))
	return 0
}

// runServeCache opens the sqlite signature cache and reports basic
// stats: entry count and on-disk size, humanized.
func runServeCache(cfg *config.Config, args []string) int {
	if cfg.CacheFile == "" {
		fmt.Fprintln(os.Stderr, "lambdapi: no cache_file configured in lambdapi.yaml")
		return 1
	}
	info, err := os.Stat(cfg.CacheFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	c, err := loader.OpenCache(cfg.CacheFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer c.Close()

	count, err := c.EntryCount()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Printf("cache file: %s (%s, %d module(s) cached)\n", cfg.CacheFile, humanize.Bytes(uint64(info.Size())), count)
	debug.Trace(debug.Eval, "cli", "serve-cache stat complete")
	return 0
}
