package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// filePerms restricts token files to owner-only read/write.
const filePerms = 0o600

// dirPerms is used when creating the tenant state directory.
const dirPerms = 0o700

// Record is the canonical persisted token shape for one tenant. The remote
// API answers auth calls with several field-name dialects; normalization
// happens once, here, so the rest of the system only ever sees this form.
type Record struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// ExpiresAt is the absolute expiry in epoch milliseconds. The record
	// is expired once now >= ExpiresAt.
	ExpiresAt int64 `json:"expires_at_ms"`
}

// Expired reports whether the record's access token must not be used as of
// now. Expiry triggers a proactive refresh before the token ever reaches a
// request, independent of the reactive 401 retry path.
func (r *Record) Expired(now time.Time) bool {
	return now.UnixMilli() >= r.ExpiresAt
}

// tokenPayload captures every field-name dialect the auth endpoints use.
// Real responses populate one spelling per field; normalization picks the
// first non-empty.
type tokenPayload struct {
	AccessToken      string `json:"access_token"`
	BareToken        string `json:"token"`
	CamelAccessToken string `json:"accessToken"`

	RefreshToken      string `json:"refresh_token"`
	CamelRefreshToken string `json:"refreshToken"`

	ExpiresIn      int64 `json:"expires_in"`
	CamelExpiresIn int64 `json:"expiresIn"`
}

func (p *tokenPayload) accessToken() string {
	for _, v := range []string{p.AccessToken, p.BareToken, p.CamelAccessToken} {
		if v != "" {
			return v
		}
	}

	return ""
}

func (p *tokenPayload) refreshToken() string {
	if p.RefreshToken != "" {
		return p.RefreshToken
	}

	return p.CamelRefreshToken
}

// ttl returns the advertised token lifetime, or fallback when the response
// carried none.
func (p *tokenPayload) ttl(fallback time.Duration) time.Duration {
	seconds := p.ExpiresIn
	if seconds == 0 {
		seconds = p.CamelExpiresIn
	}

	if seconds <= 0 {
		return fallback
	}

	return time.Duration(seconds) * time.Second
}

// loadRecord reads a saved token record. Returns (nil, nil) if the file
// does not exist.
func loadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("auth: reading token file %s: %w", path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("auth: decoding token file %s: %w", path, err)
	}

	return &rec, nil
}

// saveRecord writes the token record atomically (write-to-temp + rename)
// with 0600 permissions. Never logs token values.
func saveRecord(path string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("auth: encoding token record: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, dirPerms); mkErr != nil {
		return fmt.Errorf("auth: creating directory %s: %w", dir, mkErr)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, filePerms); err != nil {
		return fmt.Errorf("auth: writing token file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("auth: renaming token file: %w", err)
	}

	return nil
}
