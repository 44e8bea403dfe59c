// Package tenant resolves environment-provided credentials into a registry
// of tenants. A tenant is one customer account with its own API key, local
// mirror subtree, and persisted sync state.
//
// Three environment encodings are supported, first match wins:
//
//  1. One variable per tenant: SPINDLE_API_KEY_<NAME> (optionally paired
//     with SPINDLE_PROJECT_ID_<NAME>); the tenant idn is the normalized
//     <NAME> suffix.
//  2. A single structured list: SPINDLE_API_KEYS holding a JSON array of
//     {"api_key": ..., "project_id": ...} objects (bare key strings are
//     also accepted); tenants get synthetic names tenant1, tenant2, ...
//  3. Legacy single tenant: SPINDLE_API_KEY (+ SPINDLE_PROJECT_ID),
//     registered under the idn "default".
//
// Credentials never live in the config file; everything here reads from an
// environment map so tests can inject arbitrary configurations.
package tenant

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spindleworks/spindle-go/internal/idn"
)

// Environment variable names. The per-tenant forms append "_<NAME>".
const (
	EnvAPIKeyPrefix    = "SPINDLE_API_KEY_"
	EnvAPIKeyList      = "SPINDLE_API_KEYS"
	EnvLegacyAPIKey    = "SPINDLE_API_KEY"
	EnvProjectPrefix   = "SPINDLE_PROJECT_ID_"
	EnvLegacyProjectID = "SPINDLE_PROJECT_ID"
)

// syntheticNameFormat names tenants parsed from the SPINDLE_API_KEYS list.
const syntheticNameFormat = "tenant%d"

// Tenant is one customer account. Immutable for the process lifetime;
// uniquely identified by its normalized Idn.
type Tenant struct {
	// Idn is the normalized tenant identifier, used as a directory name
	// under the data root and the state dir.
	Idn string

	// APIKey is the static credential exchanged for access tokens.
	APIKey string

	// ProjectID optionally narrows pulls to one preferred project.
	ProjectID string
}

// ConfigError reports missing or invalid tenant configuration. It is fatal
// and surfaces before any network call is made.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "tenant configuration: " + e.Reason
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// Registry holds all resolved tenants plus the designated default.
// Construction goes through Resolve; the registry is read-only afterwards
// except for SetDefault.
type Registry struct {
	tenants    map[string]Tenant
	order      []string
	defaultIdn string
}

// Get returns the tenant with the given idn (normalized before lookup).
func (r *Registry) Get(name string) (Tenant, bool) {
	t, ok := r.tenants[idn.Normalize(name)]
	return t, ok
}

// Names returns all tenant idns in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)

	return out
}

// Len returns the number of registered tenants.
func (r *Registry) Len() int {
	return len(r.order)
}

// All returns all tenants in registration order.
func (r *Registry) All() []Tenant {
	out := make([]Tenant, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tenants[name])
	}

	return out
}

// SetDefault designates an explicit default tenant. The name must refer to
// a registered tenant.
func (r *Registry) SetDefault(name string) error {
	if name == "" {
		return nil
	}

	normalized := idn.Normalize(name)
	if _, ok := r.tenants[normalized]; !ok {
		return configErrorf("default tenant %q is not configured (have: %s)",
			name, strings.Join(r.order, ", "))
	}

	r.defaultIdn = normalized

	return nil
}

// Default returns the default tenant: the explicitly designated one if set,
// else the sole registered tenant. With multiple tenants and no explicit
// default there is no implicit choice and ok is false.
func (r *Registry) Default() (Tenant, bool) {
	if r.defaultIdn != "" {
		return r.tenants[r.defaultIdn], true
	}

	if len(r.order) == 1 {
		return r.tenants[r.order[0]], true
	}

	return Tenant{}, false
}

// Select resolves a user-supplied tenant name to a Tenant. An empty name
// selects the default; failure modes produce a ConfigError that lists the
// registered tenants so the user can correct the invocation.
func (r *Registry) Select(name string) (Tenant, error) {
	if name != "" {
		t, ok := r.Get(name)
		if !ok {
			return Tenant{}, configErrorf("tenant %q is not configured (have: %s)",
				name, strings.Join(r.order, ", "))
		}

		return t, nil
	}

	t, ok := r.Default()
	if !ok {
		return Tenant{}, configErrorf("multiple tenants configured (%s); select one with --tenant",
			strings.Join(r.order, ", "))
	}

	return t, nil
}

// Environ returns the process environment as a map for Resolve. Later
// duplicates win, matching os.Environ semantics.
func Environ() map[string]string {
	env := make(map[string]string)

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}

		env[k] = v
	}

	return env
}

// sortedKeys returns the map's keys sorted, for deterministic iteration.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
