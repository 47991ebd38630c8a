package driven

import "context"

// SecretStore holds client credentials outside of plain configuration.
type SecretStore interface {
	// GetSecret returns the named secret and whether it was present.
	GetSecret(ctx context.Context, name string) (string, bool, error)

	// SetSecret stores or replaces the named secret.
	SetSecret(ctx context.Context, name, value string) error
}
