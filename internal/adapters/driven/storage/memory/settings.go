package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// Ensure the stores implement the interfaces.
var (
	_ driven.TokenSettings = (*TokenSettings)(nil)
	_ driven.SecretStore   = (*SecretStore)(nil)
)

// TokenSettings is an in-memory implementation of driven.TokenSettings.
type TokenSettings struct {
	mu    sync.RWMutex
	state *domain.TokenState
	saves int
}

// NewTokenSettings creates empty token settings.
func NewTokenSettings() *TokenSettings {
	return &TokenSettings{}
}

// LoadToken returns the saved state, or domain.ErrNotFound.
func (s *TokenSettings) LoadToken(_ context.Context) (domain.TokenState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return domain.TokenState{}, domain.ErrNotFound
	}
	return *s.state, nil
}

// SaveToken replaces the saved state.
func (s *TokenSettings) SaveToken(_ context.Context, state domain.TokenState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &state
	s.saves++
	return nil
}

// Saves returns how many times SaveToken was called.
func (s *TokenSettings) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// SecretStore is an in-memory implementation of driven.SecretStore.
type SecretStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewSecretStore creates a secret store holding a copy of initial.
func NewSecretStore(initial map[string]string) *SecretStore {
	secrets := make(map[string]string, len(initial))
	for k, v := range initial {
		secrets[k] = v
	}
	return &SecretStore{secrets: secrets}
}

// GetSecret returns the named secret. Empty values count as absent.
func (s *SecretStore) GetSecret(_ context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.secrets[name]
	return v, v != "", nil
}

// SetSecret stores or replaces the named secret.
func (s *SecretStore) SetSecret(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = value
	return nil
}
