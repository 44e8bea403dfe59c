package config

import "os"

// Environment variable names for overrides. Credential variables
// (SPINDLE_API_KEY*) belong to the tenant package, not here.
const (
	EnvConfig        = "SPINDLE_CONFIG"
	EnvBaseURL       = "SPINDLE_BASE_URL"
	EnvDataRoot      = "SPINDLE_DATA_ROOT"
	EnvStateDir      = "SPINDLE_STATE_DIR"
	EnvDefaultTenant = "SPINDLE_DEFAULT_TENANT"
	EnvConcurrency   = "SPINDLE_CONCURRENCY"
	EnvLogFormat     = "SPINDLE_LOG_FORMAT"
)

// EnvOverrides holds values derived from environment variables.
// These are resolved by Resolve and applied between the config file and
// CLI flags. Empty string means "not set".
type EnvOverrides struct {
	ConfigPath    string // SPINDLE_CONFIG: override config file path
	BaseURL       string // SPINDLE_BASE_URL
	DataRoot      string // SPINDLE_DATA_ROOT
	StateDir      string // SPINDLE_STATE_DIR
	DefaultTenant string // SPINDLE_DEFAULT_TENANT
	Concurrency   string // SPINDLE_CONCURRENCY: parsed by Resolve
	LogFormat     string // SPINDLE_LOG_FORMAT
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify any Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:    os.Getenv(EnvConfig),
		BaseURL:       os.Getenv(EnvBaseURL),
		DataRoot:      os.Getenv(EnvDataRoot),
		StateDir:      os.Getenv(EnvStateDir),
		DefaultTenant: os.Getenv(EnvDefaultTenant),
		Concurrency:   os.Getenv(EnvConcurrency),
		LogFormat:     os.Getenv(EnvLogFormat),
	}
}
