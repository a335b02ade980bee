// Package config loads tead settings.
//
// Layers, later ones winning key by key:
//
//  1. built-in defaults
//  2. user config: $TEAD_CONFIG, else $XDG_CONFIG_HOME/tead/config.{toml,yaml,yml},
//     else ~/.config/tead/config.{toml,yaml,yml}
//  3. project config: the nearest .tead.toml, .tead.yaml or .tead.yml found
//     walking up from the working directory
//  4. environment: TEAD_STORAGE, TEAD_DIR, TEAD_FORMAT, TEAD_DB,
//     TEAD_REDIS_ADDR, TEAD_LIMIT, TEAD_LOG_LEVEL
//
// Command-line flags are applied on top by the caller. When a project
// config exists, relative storage and output paths are resolved against
// the directory holding it.
package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Storage backends.
const (
	BackendFiles  = "files"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Backends lists every storage backend.
var Backends = []string{BackendFiles, BackendSQLite, BackendRedis}

// Scopes a guard can track call depth with.
const (
	ScopeContext   = "context"
	ScopeGoroutine = "goroutine"
)

// Config is the merged configuration.
type Config struct {
	Storage Storage `toml:"storage" yaml:"storage"`
	Capture Capture `toml:"capture" yaml:"capture"`
	Gen     Gen     `toml:"gen" yaml:"gen"`
	Log     Log     `toml:"log" yaml:"log"`

	// Sources lists the files that were loaded, lowest precedence first.
	Sources []string `toml:"-" yaml:"-"`
}

// Storage selects where entries are kept.
type Storage struct {
	Backend     string `toml:"backend" yaml:"backend"`
	Dir         string `toml:"dir" yaml:"dir"`
	Format      string `toml:"format" yaml:"format"`
	DB          string `toml:"db" yaml:"db"`
	RedisAddr   string `toml:"redis_addr" yaml:"redis_addr"`
	RedisPrefix string `toml:"redis_prefix" yaml:"redis_prefix"`
}

// Capture tunes the guard.
type Capture struct {
	// Limit caps entries per target; zero or less means unlimited.
	Limit    int    `toml:"limit" yaml:"limit"`
	MaxDepth int    `toml:"max_depth" yaml:"max_depth"`
	Scope    string `toml:"scope" yaml:"scope"`
}

// Gen tunes test generation.
type Gen struct {
	Output string `toml:"output" yaml:"output"`
}

// Log tunes logging.
type Log struct {
	Level string `toml:"level" yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: Storage{
			Backend:     BackendFiles,
			Dir:         filepath.Join(".tead", "traces"),
			Format:      "json",
			DB:          filepath.Join(".tead", "traces.db"),
			RedisAddr:   "localhost:6379",
			RedisPrefix: "tead:",
		},
		Capture: Capture{
			Limit: 10,
			Scope: ScopeContext,
		},
		Gen: Gen{
			Output: "tead_tests",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	if !slices.Contains(Backends, c.Storage.Backend) {
		return fmt.Errorf("storage.backend %q: want one of %s", c.Storage.Backend, strings.Join(Backends, ", "))
	}
	switch strings.ToLower(c.Storage.Format) {
	case "json", "gjson", "cue":
	default:
		return fmt.Errorf("storage.format %q: want json or cue", c.Storage.Format)
	}
	if c.Capture.MaxDepth < 0 {
		return fmt.Errorf("capture.max_depth must not be negative, got %d", c.Capture.MaxDepth)
	}
	if c.Capture.Scope != ScopeContext && c.Capture.Scope != ScopeGoroutine {
		return fmt.Errorf("capture.scope %q: want %s or %s", c.Capture.Scope, ScopeContext, ScopeGoroutine)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: want debug, info, warn or error", c.Log.Level)
	}
	return nil
}
