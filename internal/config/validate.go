package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Concurrency bounds. The upper bound guards against hammering the remote
// API from a single client.
const (
	minConcurrency = 1
	maxConcurrency = 64
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.BaseURL == "" {
		errs = append(errs, errors.New("base_url must not be empty"))
	} else if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q is not an absolute URL", cfg.BaseURL))
	}

	if cfg.DataRoot == "" {
		errs = append(errs, errors.New("data_root must not be empty"))
	}

	if cfg.Concurrency < minConcurrency || cfg.Concurrency > maxConcurrency {
		errs = append(errs, fmt.Errorf("concurrency %d out of range [%d, %d]",
			cfg.Concurrency, minConcurrency, maxConcurrency))
	}

	switch cfg.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be %q or %q",
			cfg.LogFormat, LogFormatText, LogFormatJSON))
	}

	return errors.Join(errs...)
}
