// Package auth implements the per-tenant token lifecycle: exchanging a
// static API key for an access/refresh token pair, refreshing expired
// tokens, persisting records to tenant-scoped files, and forcing
// re-authentication when the transport hits an authorization failure.
//
// The fallback chain in AccessToken guarantees forward progress even when a
// refresh token has been revoked, at the cost of one extra round trip:
// stored unexpired token -> refresh -> full API-key exchange.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spindleworks/spindle-go/internal/tenant"
)

// Auth endpoint paths, relative to the API base URL.
const (
	exchangePath = "/v1/auth/token"
	refreshPath  = "/v1/auth/refresh"
)

// apiKeyHeader carries the tenant's static credential on exchange calls.
const apiKeyHeader = "X-API-Key"

// defaultTokenTTL is the conservative lifetime assumed when an auth
// response carries no expiry.
const defaultTokenTTL = 30 * time.Minute

// errorBodyLimit caps how much of an error response body is read for
// diagnostics.
const errorBodyLimit = 2048

// defaultHTTPTimeout bounds auth calls when the caller supplies no client.
const defaultHTTPTimeout = 30 * time.Second

// Manager owns one tenant's tokens. All operations are serialized by an
// internal mutex: concurrent requests during a pull fan-out cannot race a
// refresh against an exchange or tear the persisted record.
type Manager struct {
	mu         sync.Mutex
	baseURL    string
	tenant     tenant.Tenant
	tokenPath  string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager creates a token manager for one tenant. tokenPath is the
// tenant-scoped record location; httpClient and logger may be nil.
func NewManager(baseURL string, t tenant.Tenant, tokenPath string, httpClient *http.Client, logger *slog.Logger) *Manager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tenant:     t,
		tokenPath:  tokenPath,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// AccessToken returns a valid access token for the tenant, walking the
// fallback chain: persisted unexpired record -> refresh -> API-key exchange.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.readRecord()
	if rec != nil && !rec.Expired(m.now()) {
		return rec.AccessToken, nil
	}

	if rec != nil && rec.RefreshToken != "" {
		refreshed, err := m.refreshLocked(ctx, rec)
		if err == nil {
			return refreshed.AccessToken, nil
		}

		m.logger.Warn("token refresh failed, falling back to API key exchange",
			slog.String("tenant", m.tenant.Idn),
			slog.String("error", err.Error()),
		)
	}

	exchanged, err := m.exchangeLocked(ctx)
	if err != nil {
		return "", err
	}

	return exchanged.AccessToken, nil
}

// ForceReauth unconditionally exchanges the API key for a fresh token,
// bypassing any cached record. Used by the transport's 401 retry path.
func (m *Manager) ForceReauth(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.exchangeLocked(ctx)
	if err != nil {
		return "", err
	}

	return rec.AccessToken, nil
}

// Exchange performs the API-key exchange and returns the persisted record.
func (m *Manager) Exchange(ctx context.Context) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.exchangeLocked(ctx)
}

// Refresh exchanges a refresh token for a renewed record and persists it.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.refreshLocked(ctx, &Record{RefreshToken: refreshToken})
}

// readRecord loads the persisted record, treating corruption as absence.
// A broken token file is recoverable by re-exchange, unlike the sync state
// files, so it is not fatal — but it is never silently ignored either.
func (m *Manager) readRecord() *Record {
	rec, err := loadRecord(m.tokenPath)
	if err != nil {
		m.logger.Warn("token file unreadable, re-authentication required",
			slog.String("tenant", m.tenant.Idn),
			slog.String("error", err.Error()),
		)

		return nil
	}

	return rec
}

// exchangeLocked sends the tenant's API key to the exchange endpoint and
// persists the normalized result. Caller holds m.mu.
func (m *Manager) exchangeLocked(ctx context.Context) (*Record, error) {
	if m.tenant.APIKey == "" {
		return nil, &CredentialError{Tenant: m.tenant.Idn}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+exchangePath, nil)
	if err != nil {
		return nil, &AuthExchangeError{Tenant: m.tenant.Idn, Err: err}
	}

	req.Header.Set(apiKeyHeader, m.tenant.APIKey)
	req.Header.Set("Accept", "application/json")

	payload, err := m.doAuthRequest(req)
	if err != nil {
		return nil, &AuthExchangeError{Tenant: m.tenant.Idn, Err: err}
	}

	if payload.accessToken() == "" {
		return nil, &AuthExchangeError{Tenant: m.tenant.Idn, Err: fmt.Errorf("response contains no usable access token")}
	}

	rec := &Record{
		AccessToken:  payload.accessToken(),
		RefreshToken: payload.refreshToken(),
		ExpiresAt:    m.now().Add(payload.ttl(defaultTokenTTL)).UnixMilli(),
	}

	if err := saveRecord(m.tokenPath, rec); err != nil {
		return nil, fmt.Errorf("persisting exchanged token: %w", err)
	}

	m.logger.Info("exchanged API key for access token",
		slog.String("tenant", m.tenant.Idn),
		slog.Time("expires_at", time.UnixMilli(rec.ExpiresAt)),
	)

	return rec, nil
}

// refreshLocked sends the refresh token to the refresh endpoint, merges the
// result into the stored record (keeping the old refresh token when none is
// reissued), and persists it. Caller holds m.mu.
func (m *Manager) refreshLocked(ctx context.Context, prev *Record) (*Record, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": prev.RefreshToken})
	if err != nil {
		return nil, &RefreshError{Tenant: m.tenant.Idn, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+refreshPath, strings.NewReader(string(body)))
	if err != nil {
		return nil, &RefreshError{Tenant: m.tenant.Idn, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	payload, err := m.doAuthRequest(req)
	if err != nil {
		return nil, &RefreshError{Tenant: m.tenant.Idn, Err: err}
	}

	if payload.accessToken() == "" {
		return nil, &RefreshError{Tenant: m.tenant.Idn, Err: fmt.Errorf("response contains no usable access token")}
	}

	rec := &Record{
		AccessToken:  payload.accessToken(),
		RefreshToken: payload.refreshToken(),
		ExpiresAt:    m.now().Add(payload.ttl(defaultTokenTTL)).UnixMilli(),
	}

	if rec.RefreshToken == "" {
		rec.RefreshToken = prev.RefreshToken
	}

	if err := saveRecord(m.tokenPath, rec); err != nil {
		return nil, fmt.Errorf("persisting refreshed token: %w", err)
	}

	m.logger.Debug("refreshed access token",
		slog.String("tenant", m.tenant.Idn),
		slog.Time("expires_at", time.UnixMilli(rec.ExpiresAt)),
	)

	return rec, nil
}

// doAuthRequest executes an auth call and decodes the token payload.
// Non-2xx statuses are errors carrying a body excerpt for diagnostics.
func (m *Manager) doAuthRequest(req *http.Request) (*tokenPayload, error) {
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, fmt.Errorf("%s returned %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	var payload tokenPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}

	return &payload, nil
}
