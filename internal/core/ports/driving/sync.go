package driving

import (
	"context"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// SyncOrchestrator coordinates record synchronisation from the accounting service.
type SyncOrchestrator interface {
	// SyncAll synchronises every configured entity type in fixed order.
	// The returned error is non-nil only for configuration problems; every
	// other outcome, including cancellation, is described by the result.
	SyncAll(ctx context.Context) (domain.SyncResult, error)

	// SyncEntityType synchronises a single entity type.
	SyncEntityType(ctx context.Context, entity domain.EntityType) (domain.SyncResult, error)

	// Status returns the state of the sync currently in progress, if any.
	Status(ctx context.Context) (*SyncStatus, error)
}

// SyncStatus represents the current state of a sync operation.
type SyncStatus struct {
	// Running indicates if sync is currently in progress.
	Running bool

	// Current is the entity type being processed.
	Current domain.EntityType

	// RecordsSynced is the count of records from completed entity types.
	RecordsSynced int

	// ErrorCount is the number of entity types that failed so far.
	ErrorCount int
}
