package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleworks/spindle-go/internal/tenant"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTenant() tenant.Tenant {
	return tenant.Tenant{Idn: "acme", APIKey: "secret-key"}
}

func newTestManager(t *testing.T, srvURL string) *Manager {
	t.Helper()

	tokenPath := filepath.Join(t.TempDir(), "token.json")

	return NewManager(srvURL, testTenant(), tokenPath, nil, discardLogger())
}

func TestExchange_Success(t *testing.T) {
	var calls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret-key", r.Header.Get("X-API-Key"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"expires_in":    3600,
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }

	rec, err := m.Exchange(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "at-1", rec.AccessToken)
	assert.Equal(t, "rt-1", rec.RefreshToken)
	assert.Equal(t, start.Add(time.Hour).UnixMilli(), rec.ExpiresAt)
	assert.Equal(t, int32(1), calls.Load())

	// Record is persisted with owner-only permissions.
	info, err := os.Stat(m.tokenPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	persisted, err := loadRecord(m.tokenPath)
	require.NoError(t, err)
	assert.Equal(t, rec, persisted)
}

func TestExchange_FieldDialects(t *testing.T) {
	tests := []struct {
		name        string
		response    map[string]any
		wantAccess  string
		wantRefresh string
		wantTTL     time.Duration
	}{
		{
			name:       "snake_case",
			response:   map[string]any{"access_token": "a", "refresh_token": "r", "expires_in": 60},
			wantAccess: "a", wantRefresh: "r", wantTTL: time.Minute,
		},
		{
			name:       "bare token field",
			response:   map[string]any{"token": "a"},
			wantAccess: "a", wantRefresh: "", wantTTL: defaultTokenTTL,
		},
		{
			name:       "camelCase",
			response:   map[string]any{"accessToken": "a", "refreshToken": "r", "expiresIn": 120},
			wantAccess: "a", wantRefresh: "r", wantTTL: 2 * time.Minute,
		},
		{
			name:       "missing expiry falls back to default TTL",
			response:   map[string]any{"access_token": "a"},
			wantAccess: "a", wantRefresh: "", wantTTL: defaultTokenTTL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/v1/auth/token", func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(tt.response)
			})

			srv := httptest.NewServer(mux)
			defer srv.Close()

			m := newTestManager(t, srv.URL)
			start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			m.now = func() time.Time { return start }

			rec, err := m.Exchange(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantAccess, rec.AccessToken)
			assert.Equal(t, tt.wantRefresh, rec.RefreshToken)
			assert.Equal(t, start.Add(tt.wantTTL).UnixMilli(), rec.ExpiresAt)
		})
	}
}

func TestExchange_NoCredential(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	m := NewManager(srv.URL, tenant.Tenant{Idn: "acme"}, filepath.Join(t.TempDir(), "token.json"), nil, discardLogger())

	_, err := m.Exchange(context.Background())
	require.Error(t, err)

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, "acme", credErr.Tenant)
	assert.Zero(t, calls.Load(), "no network call without a credential")
}

func TestExchange_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/token", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "invalid api key"}`, http.StatusUnauthorized)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := newTestManager(t, srv.URL)

	_, err := m.Exchange(context.Background())
	require.Error(t, err)

	var exchErr *AuthExchangeError
	require.ErrorAs(t, err, &exchErr)
	assert.Contains(t, exchErr.Error(), "401")
}

func TestExchange_NoUsableToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/token", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"expires_in": 3600})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := newTestManager(t, srv.URL)

	_, err := m.Exchange(context.Background())
	require.Error(t, err)

	var exchErr *AuthExchangeError
	require.ErrorAs(t, err, &exchErr)
	assert.Contains(t, exchErr.Error(), "no usable access token")
}

func TestRefresh_KeepsOldRefreshTokenWhenNotReissued(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rt-old", body["refresh_token"])

		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-2", "expires_in": 3600})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := newTestManager(t, srv.URL)

	rec, err := m.Refresh(context.Background(), "rt-old")
	require.NoError(t, err)

	assert.Equal(t, "at-2", rec.AccessToken)
	assert.Equal(t, "rt-old", rec.RefreshToken, "old refresh token survives when none is reissued")
}

func TestAccessToken_UsesStoredUnexpiredRecord(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, saveRecord(m.tokenPath, &Record{
		AccessToken: "at-cached",
		ExpiresAt:   now.Add(time.Hour).UnixMilli(),
	}))

	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-cached", tok)
	assert.Zero(t, calls.Load(), "cached unexpired token needs no network")
}

func TestAccessToken_RefreshesExpiredRecord(t *testing.T) {
	var refreshCalls, exchangeCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		refreshCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-refreshed", "expires_in": 3600})
	})
	mux.HandleFunc("/v1/auth/token", func(w http.ResponseWriter, _ *http.Request) {
		exchangeCalls.Add(1)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, saveRecord(m.tokenPath, &Record{
		AccessToken:  "at-stale",
		RefreshToken: "rt-1",
		ExpiresAt:    now.Add(-time.Minute).UnixMilli(),
	}))

	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-refreshed", tok)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Zero(t, exchangeCalls.Load(), "refresh succeeded, no exchange needed")
}

func TestAccessToken_FallsBackToExchangeWhenRefreshRejected(t *testing.T) {
	var refreshCalls, exchangeCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		refreshCalls.Add(1)
		http.Error(w, `{"error": "refresh token revoked"}`, http.StatusUnauthorized)
	})
	mux.HandleFunc("/v1/auth/token", func(w http.ResponseWriter, _ *http.Request) {
		exchangeCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-fresh", "expires_in": 3600})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, saveRecord(m.tokenPath, &Record{
		AccessToken:  "at-stale",
		RefreshToken: "rt-revoked",
		ExpiresAt:    now.Add(-time.Minute).UnixMilli(),
	}))

	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-fresh", tok)

	// Exactly two auth calls: the rejected refresh, then the exchange.
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(1), exchangeCalls.Load())
}

func TestAccessToken_CorruptTokenFileTriggersExchange(t *testing.T) {
	var exchangeCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/token", func(w http.ResponseWriter, _ *http.Request) {
		exchangeCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-new", "expires_in": 3600})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	require.NoError(t, os.WriteFile(m.tokenPath, []byte("{corrupt"), 0o600))

	tok, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-new", tok)
	assert.Equal(t, int32(1), exchangeCalls.Load())
}

func TestForceReauth_BypassesCachedRecord(t *testing.T) {
	var exchangeCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/token", func(w http.ResponseWriter, _ *http.Request) {
		exchangeCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-forced", "expires_in": 3600})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := newTestManager(t, srv.URL)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	// A perfectly valid cached record must not be consulted.
	require.NoError(t, saveRecord(m.tokenPath, &Record{
		AccessToken: "at-cached",
		ExpiresAt:   now.Add(time.Hour).UnixMilli(),
	}))

	tok, err := m.ForceReauth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-forced", tok)
	assert.Equal(t, int32(1), exchangeCalls.Load())

	persisted, err := loadRecord(m.tokenPath)
	require.NoError(t, err)
	assert.Equal(t, "at-forced", persisted.AccessToken)
}
