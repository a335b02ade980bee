package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var configExts = []string{".toml", ".yaml", ".yml"}

// Options controls where Load looks. Zero fields fall back to the process
// environment.
type Options struct {
	// WorkDir is where the project config search starts.
	WorkDir string

	// Getenv reads environment variables.
	Getenv func(string) string

	// HomeDir is the user's home directory.
	HomeDir string
}

func (o Options) withDefaults() (Options, error) {
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	if o.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return o, fmt.Errorf("working directory: %w", err)
		}
		o.WorkDir = wd
	}
	if o.HomeDir == "" {
		// A missing home only disables the user config
		o.HomeDir, _ = os.UserHomeDir()
	}
	return o, nil
}

// Load merges defaults, config files and environment.
func Load(opts Options) (Config, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return Config{}, err
	}
	cfg := Default()

	if path := userConfig(opts); path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if path := ProjectConfig(opts.WorkDir); path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
		resolvePaths(&cfg.Storage, &cfg.Gen, filepath.Dir(path))
	}

	if err := mergeEnv(&cfg, opts.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// userConfig returns the user-level config file, or "".
func userConfig(opts Options) string {
	if p := opts.Getenv("TEAD_CONFIG"); p != "" {
		return p
	}
	var dirs []string
	if xdg := opts.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, "tead"))
	}
	if opts.HomeDir != "" {
		dirs = append(dirs, filepath.Join(opts.HomeDir, ".config", "tead"))
	}
	for _, dir := range dirs {
		if p := firstExisting(dir, "config"); p != "" {
			return p
		}
	}
	return ""
}

// ProjectConfig returns the nearest .tead.{toml,yaml,yml} at or above dir,
// or "".
func ProjectConfig(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		if p := firstExisting(dir, ".tead"); p != "" {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func firstExisting(dir, base string) string {
	for _, ext := range configExts {
		p := filepath.Join(dir, base+ext)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

// mergeFile overlays the keys present in a TOML or YAML file onto cfg.
// Unknown keys are rejected.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config %s: unknown extension, want .toml, .yaml or .yml", path)
	}
	cfg.Sources = append(cfg.Sources, path)
	return nil
}

func resolvePaths(s *Storage, g *Gen, base string) {
	for _, p := range []*string{&s.Dir, &s.DB, &g.Output} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

func mergeEnv(cfg *Config, getenv func(string) string) error {
	set := func(dst *string, name string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	set(&cfg.Storage.Backend, "TEAD_STORAGE")
	set(&cfg.Storage.Dir, "TEAD_DIR")
	set(&cfg.Storage.Format, "TEAD_FORMAT")
	set(&cfg.Storage.DB, "TEAD_DB")
	set(&cfg.Storage.RedisAddr, "TEAD_REDIS_ADDR")
	set(&cfg.Log.Level, "TEAD_LOG_LEVEL")

	if v := getenv("TEAD_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TEAD_LIMIT %q: not an integer", v)
		}
		cfg.Capture.Limit = n
	}
	return nil
}
