package driven

import (
	"context"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// RecordStore persists imported records and sync history.
// Upserts are keyed by (entity type, remote id); the last write wins.
type RecordStore interface {
	// Upsert stores or replaces records.
	Upsert(ctx context.Context, records []domain.Record) error

	// List returns all stored records of an entity type.
	List(ctx context.Context, entity domain.EntityType) ([]domain.Record, error)

	// Count returns the number of stored records of an entity type.
	Count(ctx context.Context, entity domain.EntityType) (int, error)

	// SaveRun appends a sync result to the history.
	SaveRun(ctx context.Context, result domain.SyncResult) error

	// ListRuns returns the most recent sync results, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.SyncResult, error)
}
