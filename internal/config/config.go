// Package config loads the lambdapi CLI's configuration file and exposes
// the handful of settings the loader, typechecker, and debug toggles need
// at startup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lambdapi-go/lambdapi/internal/debug"
)

// SourceFileExt is the recognized extension for .dk-flavored source files.
const SourceFileExt = ".dk"

// Config is the lambdapi.yaml shape. Every field has a documented
// zero-value default so an absent config file is equivalent to an empty
// one.
type Config struct {
	// SearchPath lists directories searched, in order, for a module's
	// source file when it is imported by name.
	SearchPath []string `yaml:"search_path"`

	// CacheFile is the sqlite database file used for the signature cache.
	// Empty disables caching.
	CacheFile string `yaml:"cache_file"`

	// Debug overrides the five advisory trace toggles. A nil field leaves
	// the corresponding environment variable (or its absence) in charge.
	Debug struct {
		Eval *bool `yaml:"eval"`
		Equa *bool `yaml:"equa"`
		Matc *bool `yaml:"matc"`
		Unif *bool `yaml:"unif"`
		Patt *bool `yaml:"patt"`
	} `yaml:"debug"`
}

// Default returns a Config with the search path set to the current
// directory and no cache file.
func Default() *Config {
	return &Config{SearchPath: []string{"."}}
}

// Load reads and parses a lambdapi.yaml file. A missing file is not an
// error; Load returns Default() in that case.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if len(cfg.SearchPath) == 0 {
		cfg.SearchPath = []string{"."}
	}
	return cfg, nil
}

// ApplyDebugToggles pushes any explicit per-toggle overrides from the
// config file into package debug, leaving toggles the file doesn't
// mention at whatever their environment variable already set.
func (c *Config) ApplyDebugToggles() {
	apply := func(t debug.Toggle, v *bool) {
		if v != nil {
			debug.Set(t, *v)
		}
	}
	apply(debug.Eval, c.Debug.Eval)
	apply(debug.Equa, c.Debug.Equa)
	apply(debug.Matc, c.Debug.Matc)
	apply(debug.Unif, c.Debug.Unif)
	apply(debug.Patt, c.Debug.Patt)
}
