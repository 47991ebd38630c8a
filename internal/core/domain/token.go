package domain

import "time"

// DefaultSafetyMargin is how long before expiry an access token stops being used.
const DefaultSafetyMargin = 5 * time.Minute

// TokenState holds the delegated credentials for one tenant.
// The token manager is its only writer.
type TokenState struct {
	AccessToken        string
	RefreshToken       string
	AccessTokenExpiry  time.Time
	RefreshTokenExpiry time.Time
	TenantID           string
}

// HasAccessToken reports whether an access token is present.
func (t TokenState) HasAccessToken() bool {
	return t.AccessToken != ""
}

// HasRefreshToken reports whether silent refresh is possible.
func (t TokenState) HasRefreshToken() bool {
	return t.RefreshToken != ""
}

// ValidFor reports whether the access token still has at least margin left at now.
func (t TokenState) ValidFor(now time.Time, margin time.Duration) bool {
	if t.AccessToken == "" || t.AccessTokenExpiry.IsZero() {
		return false
	}
	return t.AccessTokenExpiry.Sub(now) >= margin
}

// Cleared drops both tokens and their expiry. The tenant id is kept.
func (t TokenState) Cleared() TokenState {
	return TokenState{TenantID: t.TenantID}
}

// AuthPhase is the token manager's state machine position.
type AuthPhase string

const (
	PhaseNoToken       AuthPhase = "no_token"
	PhaseAuthorizing   AuthPhase = "authorizing"
	PhaseAuthorized    AuthPhase = "authorized"
	PhaseRefreshing    AuthPhase = "refreshing"
	PhaseRefreshFailed AuthPhase = "refresh_failed"
)

// TokenStatus is a read-only view of the token state that never exposes token values.
type TokenStatus struct {
	Phase              AuthPhase
	HasAccessToken     bool
	HasRefreshToken    bool
	AccessTokenExpiry  time.Time
	RefreshTokenExpiry time.Time
	TenantID           string
}
