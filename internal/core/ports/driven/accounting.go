package driven

import (
	"context"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// AccountingClient reads entity collections from the remote accounting service.
type AccountingClient interface {
	// QueryPage fetches up to size records of the entity type starting at the
	// 1-based position start. A page with Received zero marks the end of the
	// collection; Received also counts rows that were dropped as malformed.
	QueryPage(ctx context.Context, entity domain.EntityType, start, size int) (domain.RecordPage, error)

	// BudgetReport fetches budget lines from the reporting endpoint.
	// Returns domain.ErrNotFound when the tenant has no budget report.
	BudgetReport(ctx context.Context) ([]domain.Record, error)
}
