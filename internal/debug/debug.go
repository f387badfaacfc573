// Package debug implements five advisory trace toggles, one per kernel
// concern: debug_eval, debug_equa, debug_matc, debug_unif, debug_patt. Each is
// read once from its environment variable (or a config file value fed
// in via Set) and cached as a bool, so the hot path pays nothing beyond
// a single branch when a toggle is off.
//
// Trace output is plain stdlib fmt/log calls gated by a bool, not a
// structured-logging framework (see DESIGN.md for why no third-party
// logging library was reached for here).
package debug

import (
	"fmt"
	"os"
)

type Toggle int

const (
	Eval Toggle = iota
	Equa
	Matc
	Unif
	Patt
	numToggles
)

var names = [numToggles]string{"DEBUG_EVAL", "DEBUG_EQUA", "DEBUG_MATC", "DEBUG_UNIF", "DEBUG_PATT"}

var enabled [numToggles]bool

func init() {
	for t, name := range names {
		v := os.Getenv(name)
		enabled[t] = v != "" && v != "0" && v != "false"
	}
}

// Set overrides a toggle programmatically (used by the CLI config file).
func Set(t Toggle, on bool) { enabled[t] = on }

// On reports whether a toggle is currently enabled.
func On(t Toggle) bool { return enabled[t] }

// Trace prints a structured trace line if the toggle is enabled. Format
// is "[tag] message", kept deliberately plain.
func Trace(t Toggle, tag, format string, args ...interface{}) {
	if !enabled[t] {
		return
	}
	fmt.Fprintf(os.Stderr, "[%s] %s\n", tag, fmt.Sprintf(format, args...))
}
