package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// knownKeys are the valid top-level keys in the config file. Kept in sync
// with the Config struct tags; used to produce named errors for typos.
var knownKeys = map[string]bool{
	"base_url": true, "data_root": true, "state_dir": true,
	"default_tenant": true, "concurrency": true, "log_format": true,
	"journal": true,
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors — silently ignoring a
// typo in a config file leads to hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values. This supports the zero-config
// first-run experience: users can start without creating a config file.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// CLIOverrides holds flag-level overrides. Pointer fields distinguish
// "not specified" (nil) from explicit zero values.
type CLIOverrides struct {
	ConfigPath string
	BaseURL    *string
	DataRoot   *string
	StateDir   *string
	Tenant     *string
	LogFormat  *string
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
// CLI flags always win, matching user expectations for one-off overrides
// without editing the config file. Paths in the result are tilde-expanded.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if err := applyEnv(cfg, env); err != nil {
		return nil, err
	}

	applyCLI(cfg, cli)

	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir()
	}

	cfg.DataRoot = expandTilde(cfg.DataRoot)
	cfg.StateDir = expandTilde(cfg.StateDir)
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config, env EnvOverrides) error {
	if env.BaseURL != "" {
		cfg.BaseURL = env.BaseURL
	}

	if env.DataRoot != "" {
		cfg.DataRoot = env.DataRoot
	}

	if env.StateDir != "" {
		cfg.StateDir = env.StateDir
	}

	if env.DefaultTenant != "" {
		cfg.DefaultTenant = env.DefaultTenant
	}

	if env.Concurrency != "" {
		n, err := strconv.Atoi(env.Concurrency)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", EnvConcurrency, env.Concurrency, err)
		}

		cfg.Concurrency = n
	}

	if env.LogFormat != "" {
		cfg.LogFormat = env.LogFormat
	}

	return nil
}

func applyCLI(cfg *Config, cli CLIOverrides) {
	if cli.BaseURL != nil {
		cfg.BaseURL = *cli.BaseURL
	}

	if cli.DataRoot != nil {
		cfg.DataRoot = *cli.DataRoot
	}

	if cli.StateDir != nil {
		cfg.StateDir = *cli.StateDir
	}

	if cli.Tenant != nil {
		cfg.DefaultTenant = *cli.Tenant
	}

	if cli.LogFormat != nil {
		cfg.LogFormat = *cli.LogFormat
	}
}

// checkUnknownKeys returns an error naming every undecoded key in the file,
// sorted for deterministic output.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	names := make([]string, 0, len(undecoded))
	for _, key := range undecoded {
		names = append(names, key.String())
	}

	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if !knownKeys[name] {
			errs = append(errs, fmt.Errorf("unknown config key %q", name))
		}
	}

	return errors.Join(errs...)
}
