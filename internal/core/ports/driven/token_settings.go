package driven

import (
	"context"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// TokenSettings persists the token fields the core owns.
// The token manager calls SaveToken after every mutation.
type TokenSettings interface {
	// LoadToken returns the persisted token state.
	// Returns domain.ErrNotFound if nothing has been saved yet.
	LoadToken(ctx context.Context) (domain.TokenState, error)

	// SaveToken replaces the persisted token state.
	SaveToken(ctx context.Context, state domain.TokenState) error
}
