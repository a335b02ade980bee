package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(name string) string { return vars[name] }
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Options{WorkDir: t.TempDir(), HomeDir: t.TempDir(), Getenv: env(nil)})
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want, cfg)
	assert.Empty(t, cfg.Sources)
}

func TestLoad_Layers(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	work := filepath.Join(project, "pkg", "geo")
	require.NoError(t, os.MkdirAll(work, 0o755))

	write(t, filepath.Join(home, ".config", "tead", "config.toml"), `
[storage]
backend = "sqlite"
format = "cue"

[capture]
limit = 3
`)
	write(t, filepath.Join(project, ".tead.yaml"), `
storage:
  db: data/traces.db
capture:
  scope: goroutine
`)

	cfg, err := Load(Options{
		WorkDir: work,
		HomeDir: home,
		Getenv:  env(map[string]string{"TEAD_LIMIT": "7", "TEAD_LOG_LEVEL": "debug"}),
	})
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Storage.Backend, "user layer")
	assert.Equal(t, "cue", cfg.Storage.Format, "user layer")
	assert.Equal(t, filepath.Join(project, "data", "traces.db"), cfg.Storage.DB, "project layer, resolved")
	assert.Equal(t, filepath.Join(project, ".tead", "traces"), cfg.Storage.Dir, "default, resolved")
	assert.Equal(t, ScopeGoroutine, cfg.Capture.Scope, "project layer")
	assert.Equal(t, 7, cfg.Capture.Limit, "environment wins")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{
		filepath.Join(home, ".config", "tead", "config.toml"),
		filepath.Join(project, ".tead.yaml"),
	}, cfg.Sources)
}

func TestLoad_UserConfigLocations(t *testing.T) {
	home := t.TempDir()
	xdg := t.TempDir()
	explicit := filepath.Join(t.TempDir(), "custom.yml")
	write(t, filepath.Join(home, ".config", "tead", "config.toml"), "[gen]\noutput = \"home\"\n")
	write(t, filepath.Join(xdg, "tead", "config.yaml"), "gen:\n  output: xdg\n")
	write(t, explicit, "gen:\n  output: explicit\n")

	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"home", nil, "home"},
		{"xdg before home", map[string]string{"XDG_CONFIG_HOME": xdg}, "xdg"},
		{"TEAD_CONFIG first", map[string]string{"XDG_CONFIG_HOME": xdg, "TEAD_CONFIG": explicit}, "explicit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(Options{WorkDir: t.TempDir(), HomeDir: home, Getenv: env(tt.vars)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Gen.Output)
		})
	}
}

func TestLoad_ProjectTOMLBeatsYAML(t *testing.T) {
	project := t.TempDir()
	write(t, filepath.Join(project, ".tead.toml"), "[storage]\nbackend = \"redis\"\n")
	write(t, filepath.Join(project, ".tead.yml"), "storage:\n  backend: sqlite\n")

	assert.Equal(t, filepath.Join(project, ".tead.toml"), ProjectConfig(project))

	cfg, err := Load(Options{WorkDir: project, HomeDir: t.TempDir(), Getenv: env(nil)})
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		vars    map[string]string
		wantErr string
	}{
		{"unknown toml key", ".tead.toml", "[storage]\nbackedn = \"files\"\n", nil, "unknown key"},
		{"unknown yaml key", ".tead.yaml", "storage:\n  backedn: files\n", nil, "backedn"},
		{"bad toml", ".tead.toml", "[storage\n", nil, "parse config"},
		{"bad backend", ".tead.toml", "[storage]\nbackend = \"s3\"\n", nil, "storage.backend"},
		{"bad limit", "", "", map[string]string{"TEAD_LIMIT": "many"}, "TEAD_LIMIT"},
		{"bad format", "", "", map[string]string{"TEAD_STORAGE": "files", "TEAD_FORMAT": "xml"}, "storage.format"},
		{"missing explicit config", "", "", map[string]string{"TEAD_CONFIG": "/nonexistent/tead.toml"}, "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := t.TempDir()
			if tt.file != "" {
				write(t, filepath.Join(project, tt.file), tt.content)
			}
			_, err := Load(Options{WorkDir: project, HomeDir: t.TempDir(), Getenv: env(tt.vars)})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Capture.MaxDepth = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Log.Level = "trace"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Capture.Scope = "thread"
	assert.Error(t, cfg.Validate())
}
