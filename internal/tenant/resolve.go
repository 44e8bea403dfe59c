package tenant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spindleworks/spindle-go/internal/idn"
)

// Resolve parses the environment map into a tenant registry. Encoding
// precedence is strict: if any per-tenant variable exists only those are
// read; otherwise the structured list; otherwise the legacy single key.
// A ConfigError is returned when zero tenants resolve or any resolved
// tenant is invalid (empty secret, empty or colliding name).
func Resolve(env map[string]string) (*Registry, error) {
	reg := &Registry{tenants: make(map[string]Tenant)}

	if err := resolvePerTenantVars(env, reg); err != nil {
		return nil, err
	}

	if reg.Len() == 0 {
		if err := resolveKeyList(env, reg); err != nil {
			return nil, err
		}
	}

	if reg.Len() == 0 {
		if err := resolveLegacy(env, reg); err != nil {
			return nil, err
		}
	}

	if reg.Len() == 0 {
		return nil, configErrorf("no tenants configured; set %s<NAME>, %s, or %s",
			EnvAPIKeyPrefix, EnvAPIKeyList, EnvLegacyAPIKey)
	}

	return reg, nil
}

// add validates and registers one tenant.
func (r *Registry) add(t Tenant) error {
	if err := idn.Validate(t.Idn); err != nil {
		return configErrorf("invalid tenant name: %v", err)
	}

	t.Idn = idn.Normalize(t.Idn)

	if t.APIKey == "" {
		return configErrorf("tenant %q has an empty API key", t.Idn)
	}

	if _, exists := r.tenants[t.Idn]; exists {
		return configErrorf("tenant %q configured twice (names collide after normalization)", t.Idn)
	}

	r.tenants[t.Idn] = t
	r.order = append(r.order, t.Idn)

	return nil
}

// resolvePerTenantVars reads SPINDLE_API_KEY_<NAME> variables in sorted key
// order (environment maps have no inherent order).
func resolvePerTenantVars(env map[string]string, reg *Registry) error {
	for _, key := range sortedKeys(env) {
		if !strings.HasPrefix(key, EnvAPIKeyPrefix) {
			continue
		}

		name := key[len(EnvAPIKeyPrefix):]
		if name == "" {
			return configErrorf("%s has an empty tenant name suffix", key)
		}

		err := reg.add(Tenant{
			Idn:       name,
			APIKey:    env[key],
			ProjectID: env[EnvProjectPrefix+name],
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// keyListEntry is one element of the SPINDLE_API_KEYS JSON array.
type keyListEntry struct {
	APIKey    string `json:"api_key"`
	ProjectID string `json:"project_id"`
}

// resolveKeyList parses the SPINDLE_API_KEYS structured list. Array entries
// may be objects or bare key strings; either way tenants are named
// tenant1..tenantN in array order.
func resolveKeyList(env map[string]string, reg *Registry) error {
	raw := strings.TrimSpace(env[EnvAPIKeyList])
	if raw == "" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return configErrorf("%s is not a JSON array: %v", EnvAPIKeyList, err)
	}

	for i, item := range items {
		entry, err := parseKeyListEntry(item)
		if err != nil {
			return configErrorf("%s entry %d: %v", EnvAPIKeyList, i+1, err)
		}

		addErr := reg.add(Tenant{
			Idn:       syntheticName(i),
			APIKey:    entry.APIKey,
			ProjectID: entry.ProjectID,
		})
		if addErr != nil {
			return addErr
		}
	}

	return nil
}

func parseKeyListEntry(raw json.RawMessage) (keyListEntry, error) {
	var key string
	if err := json.Unmarshal(raw, &key); err == nil {
		return keyListEntry{APIKey: key}, nil
	}

	var entry keyListEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return keyListEntry{}, err
	}

	return entry, nil
}

func syntheticName(index int) string {
	return fmt.Sprintf(syntheticNameFormat, index+1)
}

// resolveLegacy derives the single "default" tenant from the generic
// SPINDLE_API_KEY variable.
func resolveLegacy(env map[string]string, reg *Registry) error {
	key, ok := env[EnvLegacyAPIKey]
	if !ok {
		return nil
	}

	return reg.add(Tenant{
		Idn:       "default",
		APIKey:    key,
		ProjectID: env[EnvLegacyProjectID],
	})
}
