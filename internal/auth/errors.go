package auth

import "fmt"

// CredentialError reports a tenant with no configured API key. Exchange is
// impossible; the tenant's configuration must be fixed.
type CredentialError struct {
	Tenant string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("auth: tenant %q has no API key configured", e.Tenant)
}

// AuthExchangeError reports a failed API-key exchange: the call errored,
// returned a non-success status, or returned no usable access token.
// Fatal for the affected tenant — there is no further fallback.
type AuthExchangeError struct {
	Tenant string
	Err    error
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("auth: API key exchange for tenant %q failed: %v", e.Tenant, e.Err)
}

func (e *AuthExchangeError) Unwrap() error {
	return e.Err
}

// RefreshError reports a failed refresh-token exchange. Recoverable: the
// token manager falls back to a full API-key exchange.
type RefreshError struct {
	Tenant string
	Err    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("auth: token refresh for tenant %q failed: %v", e.Tenant, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
