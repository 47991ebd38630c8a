package file

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// Ensure SecretStore implements the interface.
var _ driven.SecretStore = (*SecretStore)(nil)

// SecretsFileName is the file holding client credentials.
const SecretsFileName = "secrets.toml"

// SecretStore keeps secrets in a TOML file readable only by the owner.
type SecretStore struct {
	store *Store
}

// NewSecretStore opens secrets.toml within dir.
func NewSecretStore(dir string) (*SecretStore, error) {
	store, err := NewStore(dir, SecretsFileName)
	if err != nil {
		return nil, fmt.Errorf("open secret store: %w", err)
	}
	return &SecretStore{store: store}, nil
}

// GetSecret returns the named secret. Empty values count as absent.
func (s *SecretStore) GetSecret(_ context.Context, name string) (string, bool, error) {
	value := s.store.GetString(name)
	return value, value != "", nil
}

// SetSecret stores or replaces the named secret.
func (s *SecretStore) SetSecret(_ context.Context, name, value string) error {
	return s.store.Set(name, value)
}

// Path returns the secrets file path.
func (s *SecretStore) Path() string {
	return s.store.Path()
}
