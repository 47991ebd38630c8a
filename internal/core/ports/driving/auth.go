package driving

import (
	"context"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// TokenLifecycle manages the delegated credentials for the accounting service.
type TokenLifecycle interface {
	// EnsureValid makes sure a usable access token exists, refreshing or
	// authorizing interactively as needed.
	EnsureValid(ctx context.Context) error

	// AcquireInteractive runs the browser authorization flow.
	AcquireInteractive(ctx context.Context) (bool, error)

	// Refresh exchanges the refresh token for a new access token.
	Refresh(ctx context.Context) error

	// Disconnect forgets both tokens.
	Disconnect(ctx context.Context) error

	// Status reports the token state without exposing token values.
	Status(ctx context.Context) (domain.TokenStatus, error)
}
