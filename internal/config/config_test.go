package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
base_url = "https://spindle.example.com"
data_root = "/srv/spindle"
default_tenant = "acme"
concurrency = 8
log_format = "json"
journal = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://spindle.example.com", cfg.BaseURL)
	assert.Equal(t, "/srv/spindle", cfg.DataRoot)
	assert.Equal(t, "acme", cfg.DefaultTenant)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.False(t, cfg.Journal)
}

func TestLoad_DefaultsFillUnsetKeys(t *testing.T) {
	path := writeConfig(t, `default_tenant = "acme"`)

	cfg, err := Load(path)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.BaseURL, cfg.BaseURL)
	assert.Equal(t, def.Concurrency, cfg.Concurrency)
	assert.True(t, cfg.Journal)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, `
base_url = "https://spindle.example.com"
data_root = "/srv/spindle"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_root")
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := writeConfig(t, `base_url = `)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().BaseURL, cfg.BaseURL)
}

func TestResolve_PrecedenceChain(t *testing.T) {
	path := writeConfig(t, `
base_url = "https://from-file.example.com"
data_root = "/from/file"
concurrency = 2
`)

	flagURL := "https://from-flag.example.com"
	cfg, err := Resolve(
		EnvOverrides{ConfigPath: path, BaseURL: "https://from-env.example.com", DataRoot: "/from/env"},
		CLIOverrides{BaseURL: &flagURL},
	)
	require.NoError(t, err)

	// Flag wins over env for base_url; env wins over file for data_root.
	assert.Equal(t, "https://from-flag.example.com", cfg.BaseURL)
	assert.Equal(t, "/from/env", cfg.DataRoot)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestResolve_ConcurrencyFromEnv(t *testing.T) {
	noFile := filepath.Join(t.TempDir(), "absent.toml")

	cfg, err := Resolve(EnvOverrides{ConfigPath: noFile, Concurrency: "8"}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Concurrency)

	_, err = Resolve(EnvOverrides{ConfigPath: noFile, Concurrency: "plenty"}, CLIOverrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPINDLE_CONCURRENCY")
}

func TestResolve_TrimsTrailingSlash(t *testing.T) {
	noFile := filepath.Join(t.TempDir(), "absent.toml")
	url := "https://spindle.example.com/"

	cfg, err := Resolve(EnvOverrides{ConfigPath: noFile}, CLIOverrides{BaseURL: &url})
	require.NoError(t, err)
	assert.Equal(t, "https://spindle.example.com", cfg.BaseURL)
}

func TestResolve_ExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	noFile := filepath.Join(t.TempDir(), "absent.toml")
	cfg, err := Resolve(EnvOverrides{ConfigPath: noFile, DataRoot: "~/mirrors"}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "mirrors"), cfg.DataRoot)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "empty base url",
			mutate:  func(c *Config) { c.BaseURL = "" },
			wantErr: "base_url",
		},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.BaseURL = "spindle.example.com" },
			wantErr: "absolute URL",
		},
		{
			name:    "concurrency too low",
			mutate:  func(c *Config) { c.Concurrency = 0 },
			wantErr: "concurrency",
		},
		{
			name:    "concurrency too high",
			mutate:  func(c *Config) { c.Concurrency = 100 },
			wantErr: "concurrency",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.LogFormat = "yaml" },
			wantErr: "log_format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_AccumulatesAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""
	cfg.Concurrency = -1
	cfg.LogFormat = "xml"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
	assert.Contains(t, err.Error(), "concurrency")
	assert.Contains(t, err.Error(), "log_format")
}
