// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for spindle. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
//
// Tenant credentials are deliberately not part of the config file; they are
// environment-only and resolved by the tenant package. Everything here is
// non-secret operational tuning.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Log format values accepted by log_format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// defaultConcurrency is the bounded fan-out width for independent branches
// during pull. Kept modest to respect remote rate limits.
const defaultConcurrency = 4

// Config is the top-level configuration parsed from a TOML file.
// Zero/empty fields are filled from defaults at resolution time.
type Config struct {
	// BaseURL is the remote API root, without a trailing slash.
	BaseURL string `toml:"base_url"`

	// DataRoot is the directory holding one mirror subtree per tenant.
	// A leading "~/" is expanded to the user's home directory.
	DataRoot string `toml:"data_root"`

	// StateDir holds per-tenant sync state (identity map, hash store,
	// tokens) and the shared run journal. Defaults to the platform state
	// directory when empty.
	StateDir string `toml:"state_dir"`

	// DefaultTenant names the tenant used when --tenant is not given.
	DefaultTenant string `toml:"default_tenant"`

	// Concurrency caps parallel flow fetches during pull.
	Concurrency int `toml:"concurrency"`

	// LogFormat selects the slog handler: "text" or "json".
	LogFormat string `toml:"log_format"`

	// Journal enables recording runs to the local history database.
	Journal bool `toml:"journal"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.spindle.dev",
		DataRoot:    "~/spindle",
		StateDir:    "",
		Concurrency: defaultConcurrency,
		LogFormat:   LogFormatText,
		Journal:     true,
	}
}

// expandTilde replaces a leading "~/" with the user's home directory.
// Returns the path unchanged if it doesn't start with "~/" or if the home
// directory cannot be determined.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}
