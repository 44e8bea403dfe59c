package tenant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_PerTenantVars(t *testing.T) {
	reg, err := Resolve(map[string]string{
		"SPINDLE_API_KEY_ACME":    "key-acme",
		"SPINDLE_API_KEY_globex":  "key-globex",
		"SPINDLE_PROJECT_ID_ACME": "proj-1",
		"UNRELATED":               "x",
	})
	require.NoError(t, err)

	require.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"acme", "globex"}, reg.Names())

	acme, ok := reg.Get("acme")
	require.True(t, ok)
	assert.Equal(t, "key-acme", acme.APIKey)
	assert.Equal(t, "proj-1", acme.ProjectID)

	globex, ok := reg.Get("GLOBEX")
	require.True(t, ok, "lookup must be case-insensitive")
	assert.Empty(t, globex.ProjectID)
}

func TestResolve_KeyList(t *testing.T) {
	reg, err := Resolve(map[string]string{
		EnvAPIKeyList: `[{"api_key": "k1", "project_id": "p1"}, "k2"]`,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"tenant1", "tenant2"}, reg.Names())

	first, ok := reg.Get("tenant1")
	require.True(t, ok)
	assert.Equal(t, "k1", first.APIKey)
	assert.Equal(t, "p1", first.ProjectID)

	second, ok := reg.Get("tenant2")
	require.True(t, ok)
	assert.Equal(t, "k2", second.APIKey)
	assert.Empty(t, second.ProjectID)
}

func TestResolve_Legacy(t *testing.T) {
	reg, err := Resolve(map[string]string{
		EnvLegacyAPIKey:    "legacy-key",
		EnvLegacyProjectID: "legacy-proj",
	})
	require.NoError(t, err)

	def, ok := reg.Default()
	require.True(t, ok)
	assert.Equal(t, "default", def.Idn)
	assert.Equal(t, "legacy-key", def.APIKey)
	assert.Equal(t, "legacy-proj", def.ProjectID)
}

func TestResolve_PerTenantVarsTakePrecedence(t *testing.T) {
	reg, err := Resolve(map[string]string{
		"SPINDLE_API_KEY_ACME": "key-acme",
		EnvAPIKeyList:          `["ignored"]`,
		EnvLegacyAPIKey:        "also-ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"acme"}, reg.Names())
}

func TestResolve_KeyListBeatsLegacy(t *testing.T) {
	reg, err := Resolve(map[string]string{
		EnvAPIKeyList:   `["k1"]`,
		EnvLegacyAPIKey: "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"tenant1"}, reg.Names())
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "no tenants",
			env:  map[string]string{"PATH": "/usr/bin"},
			want: "no tenants configured",
		},
		{
			name: "empty per-tenant secret",
			env:  map[string]string{"SPINDLE_API_KEY_ACME": ""},
			want: "empty API key",
		},
		{
			name: "empty name suffix",
			env:  map[string]string{"SPINDLE_API_KEY_": "k"},
			want: "empty tenant name suffix",
		},
		{
			name: "empty legacy secret",
			env:  map[string]string{EnvLegacyAPIKey: ""},
			want: "empty API key",
		},
		{
			name: "colliding names after normalization",
			env: map[string]string{
				"SPINDLE_API_KEY_Acme": "k1",
				"SPINDLE_API_KEY_acme": "k2",
			},
			want: "collide",
		},
		{
			name: "key list not JSON",
			env:  map[string]string{EnvAPIKeyList: "not-json"},
			want: "not a JSON array",
		},
		{
			name: "key list entry without api_key",
			env:  map[string]string{EnvAPIKeyList: `[{"project_id": "p"}]`},
			want: "empty API key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.env)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr, "all resolver failures are ConfigErrors")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegistry_DefaultSelection(t *testing.T) {
	multi := map[string]string{
		"SPINDLE_API_KEY_ACME":   "k1",
		"SPINDLE_API_KEY_GLOBEX": "k2",
	}

	t.Run("single tenant is implicit default", func(t *testing.T) {
		reg, err := Resolve(map[string]string{"SPINDLE_API_KEY_ACME": "k1"})
		require.NoError(t, err)

		def, ok := reg.Default()
		require.True(t, ok)
		assert.Equal(t, "acme", def.Idn)
	})

	t.Run("multiple tenants have no implicit default", func(t *testing.T) {
		reg, err := Resolve(multi)
		require.NoError(t, err)

		_, ok := reg.Default()
		assert.False(t, ok)

		_, err = reg.Select("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--tenant")
	})

	t.Run("explicit default wins", func(t *testing.T) {
		reg, err := Resolve(multi)
		require.NoError(t, err)
		require.NoError(t, reg.SetDefault("GLOBEX"))

		def, ok := reg.Default()
		require.True(t, ok)
		assert.Equal(t, "globex", def.Idn)
	})

	t.Run("unknown explicit default is a ConfigError", func(t *testing.T) {
		reg, err := Resolve(multi)
		require.NoError(t, err)

		err = reg.SetDefault("nonesuch")
		require.Error(t, err)

		var cfgErr *ConfigError
		assert.True(t, errors.As(err, &cfgErr))
	})
}

func TestRegistry_Select(t *testing.T) {
	reg, err := Resolve(map[string]string{
		"SPINDLE_API_KEY_ACME":   "k1",
		"SPINDLE_API_KEY_GLOBEX": "k2",
	})
	require.NoError(t, err)

	got, err := reg.Select("acme")
	require.NoError(t, err)
	assert.Equal(t, "k1", got.APIKey)

	_, err = reg.Select("stark")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme, globex")
}
