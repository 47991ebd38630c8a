package file

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// Ensure TokenSettings implements the interface.
var _ driven.TokenSettings = (*TokenSettings)(nil)

// SettingsFileName is the file holding persisted token state.
const SettingsFileName = "settings.toml"

// Token setting keys.
const (
	keyAccessToken        = "token.access_token"
	keyRefreshToken       = "token.refresh_token"
	keyAccessTokenExpiry  = "token.access_token_expiry"
	keyRefreshTokenExpiry = "token.refresh_token_expiry"
	keyTenantID           = "token.tenant_id"
	tokenPrefix           = "token."
)

// TokenSettings persists token state to settings.toml.
// Expiry times are stored as RFC 3339 strings in UTC.
type TokenSettings struct {
	store *Store
}

// NewTokenSettings opens settings.toml within dir.
func NewTokenSettings(dir string) (*TokenSettings, error) {
	store, err := NewStore(dir, SettingsFileName)
	if err != nil {
		return nil, fmt.Errorf("open token settings: %w", err)
	}
	return &TokenSettings{store: store}, nil
}

// LoadToken returns the persisted token state.
func (s *TokenSettings) LoadToken(_ context.Context) (domain.TokenState, error) {
	if !s.store.HasPrefix(tokenPrefix) {
		return domain.TokenState{}, domain.ErrNotFound
	}

	accessExpiry, err := parseTime(s.store.GetString(keyAccessTokenExpiry))
	if err != nil {
		return domain.TokenState{}, fmt.Errorf("%s: %w", keyAccessTokenExpiry, err)
	}
	refreshExpiry, err := parseTime(s.store.GetString(keyRefreshTokenExpiry))
	if err != nil {
		return domain.TokenState{}, fmt.Errorf("%s: %w", keyRefreshTokenExpiry, err)
	}

	return domain.TokenState{
		AccessToken:        s.store.GetString(keyAccessToken),
		RefreshToken:       s.store.GetString(keyRefreshToken),
		AccessTokenExpiry:  accessExpiry,
		RefreshTokenExpiry: refreshExpiry,
		TenantID:           s.store.GetString(keyTenantID),
	}, nil
}

// SaveToken replaces the persisted token state.
func (s *TokenSettings) SaveToken(_ context.Context, state domain.TokenState) error {
	return s.store.SetMany(map[string]any{
		keyAccessToken:        state.AccessToken,
		keyRefreshToken:       state.RefreshToken,
		keyAccessTokenExpiry:  formatTime(state.AccessTokenExpiry),
		keyRefreshTokenExpiry: formatTime(state.RefreshTokenExpiry),
		keyTenantID:           state.TenantID,
	})
}

// Path returns the settings file path.
func (s *TokenSettings) Path() string {
	return s.store.Path()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return t, nil
}
