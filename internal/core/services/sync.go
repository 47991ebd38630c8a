package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
	"github.com/custodia-labs/ledgersync/internal/logger"
	"github.com/custodia-labs/ledgersync/internal/metrics"
	"github.com/custodia-labs/ledgersync/internal/pagination"
	"github.com/custodia-labs/ledgersync/internal/resilience"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// TokenEnsurer makes sure a usable access token exists.
type TokenEnsurer interface {
	EnsureValid(ctx context.Context) error
}

// SyncOptions tunes the orchestrator.
type SyncOptions struct {
	// PageSize is the number of records requested per page.
	PageSize int
	// MaxPages caps the pages fetched per entity type.
	MaxPages int
	// PageDelay is the pause between page requests.
	PageDelay time.Duration
	// AcquireTimeout bounds the wait for a rate limiter permit. Zero waits
	// as long as the context allows.
	AcquireTimeout time.Duration
	// CallTimeout bounds the fetch of one entity type. Zero means no bound.
	CallTimeout time.Duration
	// Types restricts SyncAll to these entity types, kept in sync order.
	// Empty means all types.
	Types []domain.EntityType
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// fetched is the complete pull of one entity type.
type fetched struct {
	records []domain.Record
	// malformed counts rows the service returned that could not be decoded.
	malformed int
}

// entityHandler fetches every record of one entity type.
type entityHandler func(o *SyncOrchestrator, ctx context.Context, entity domain.EntityType) (fetched, error)

// entityHandlers dispatches each entity type to its fetch strategy.
var entityHandlers = map[domain.EntityType]entityHandler{
	domain.EntityCustomers:      (*SyncOrchestrator).fetchCollection,
	domain.EntityInvoices:       (*SyncOrchestrator).fetchCollection,
	domain.EntityAccounts:       (*SyncOrchestrator).fetchCollection,
	domain.EntityVendors:        (*SyncOrchestrator).fetchCollection,
	domain.EntityJournalEntries: (*SyncOrchestrator).fetchCollection,
	domain.EntityBudgets:        (*SyncOrchestrator).fetchBudgets,
}

// SyncOrchestrator coordinates record synchronisation from the accounting service.
type SyncOrchestrator struct {
	tokens  TokenEnsurer
	client  driven.AccountingClient
	limiter *resilience.RateLimiter
	breaker *resilience.CircuitBreaker
	store   driven.RecordStore
	opts    SyncOptions
	now     func() time.Time

	// Status tracking
	mu     sync.RWMutex
	active *driving.SyncStatus
}

// NewSyncOrchestrator creates a new sync orchestrator.
// store is optional; when nil, fetched records are counted but not kept.
func NewSyncOrchestrator(
	tokens TokenEnsurer,
	client driven.AccountingClient,
	limiter *resilience.RateLimiter,
	breaker *resilience.CircuitBreaker,
	store driven.RecordStore,
	opts SyncOptions,
) *SyncOrchestrator {
	if opts.PageSize <= 0 {
		opts.PageSize = pagination.DefaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = pagination.DefaultMaxPages
	}
	if opts.PageDelay < 0 {
		opts.PageDelay = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SyncOrchestrator{
		tokens:  tokens,
		client:  client,
		limiter: limiter,
		breaker: breaker,
		store:   store,
		opts:    opts,
		now:     opts.Now,
	}
}

// SyncAll synchronises every configured entity type in fixed order.
func (o *SyncOrchestrator) SyncAll(ctx context.Context) (domain.SyncResult, error) {
	return o.run(ctx, o.types())
}

// SyncEntityType synchronises a single entity type.
func (o *SyncOrchestrator) SyncEntityType(ctx context.Context, entity domain.EntityType) (domain.SyncResult, error) {
	if !entity.IsValid() {
		return domain.SyncResult{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, entity)
	}
	return o.run(ctx, []domain.EntityType{entity})
}

// Status returns the state of the sync currently in progress.
func (o *SyncOrchestrator) Status(_ context.Context) (*driving.SyncStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.active == nil {
		return &driving.SyncStatus{Running: false}, nil
	}
	// Return a copy to avoid race conditions
	status := *o.active
	return &status, nil
}

// run syncs types in order. Only configuration errors are returned as
// errors; everything else, including cancellation, is reported in the result.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (o *SyncOrchestrator) run(ctx context.Context, types []domain.EntityType) (domain.SyncResult, error) {
	started := o.now()
	result := domain.SyncResult{
		RunID:     uuid.NewString(),
		StartedAt: started.UTC(),
	}

	o.setStatus(&driving.SyncStatus{Running: true})
	defer o.clearStatus()

	finish := func() domain.SyncResult {
		result.Duration = o.now().Sub(started)
		metrics.SyncDuration.Observe(result.Duration.Seconds())
		o.saveRun(ctx, result)
		return result
	}
	cancelled := func() domain.SyncResult {
		result.Success = false
		result.ErrorMessage = domain.CancelledMessage
		logger.Info("Sync %s cancelled after %d records", result.RunID, result.RecordsSynced)
		return finish()
	}

	logger.Info("Starting sync %s (%d entity types)", result.RunID, len(types))

	// 1. Make sure we hold a usable access token
	if err := o.tokens.EnsureValid(ctx); err != nil {
		switch {
		case domain.IsConfigurationError(err):
			result.ErrorMessage = err.Error()
			return finish(), err
		case ctx.Err() != nil:
			return cancelled(), nil
		default:
			result.ErrorMessage = fmt.Sprintf("authorization: %v", err)
			logger.Error("Sync %s aborted: %v", result.RunID, err)
			return finish(), nil
		}
	}

	// 2. Entity types in fixed order, best effort across types
	var failures []string
	for _, entity := range types {
		if ctx.Err() != nil {
			return cancelled(), nil
		}
		o.updateStatus(func(s *driving.SyncStatus) { s.Current = entity })

		outcome := domain.EntityOutcome{EntityType: entity}
		count, malformed, err := o.syncEntity(ctx, entity)
		if err != nil {
			if ctx.Err() != nil {
				return cancelled(), nil
			}
			if domain.IsConfigurationError(err) {
				result.ErrorMessage = err.Error()
				return finish(), err
			}

			outcome.Error = err.Error()
			outcome.Skipped = errors.Is(err, domain.ErrCircuitOpen)
			failures = append(failures, fmt.Sprintf("%s: %v", entity, err))
			result.Outcomes = append(result.Outcomes, outcome)
			o.updateStatus(func(s *driving.SyncStatus) { s.ErrorCount++ })

			label := "failed"
			if outcome.Skipped {
				label = "skipped"
			}
			metrics.SyncEntityOutcomes.WithLabelValues(string(entity), label).Inc()
			logger.Warn("Sync of %s failed: %v", entity, err)
			continue
		}

		outcome.Records = count
		outcome.Malformed = malformed
		result.Outcomes = append(result.Outcomes, outcome)
		result.RecordsSynced += count
		o.updateStatus(func(s *driving.SyncStatus) { s.RecordsSynced += count })
		metrics.SyncRecordsTotal.WithLabelValues(string(entity)).Add(float64(count))
		metrics.SyncEntityOutcomes.WithLabelValues(string(entity), "success").Inc()
		logger.Info("Synced %d %s", count, entity)
	}

	result.Success = len(failures) == 0
	result.ErrorMessage = strings.Join(failures, "; ")

	logger.Info("Sync %s complete: %d records, %d failed types", result.RunID, result.RecordsSynced, len(failures))
	return finish(), nil
}

// syncEntity fetches one entity type through the limiter and breaker, then
// stores the records. Nothing is stored unless the fetch completed. It returns
// the number of records stored and the number of malformed rows dropped.
func (o *SyncOrchestrator) syncEntity(ctx context.Context, entity domain.EntityType) (int, int, error) {
	handler, ok := entityHandlers[entity]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, entity)
	}

	if _, err := o.limiter.Acquire(ctx, o.opts.AcquireTimeout); err != nil {
		return 0, 0, err
	}

	got, err := resilience.Execute(ctx, o.breaker, o.opts.CallTimeout,
		func(ctx context.Context) (fetched, error) {
			return handler(o, ctx, entity)
		})
	if err != nil {
		return 0, 0, err
	}

	if o.store != nil && len(got.records) > 0 {
		if err := o.store.Upsert(ctx, got.records); err != nil {
			return 0, 0, fmt.Errorf("store records: %w", err)
		}
	}
	if got.malformed > 0 {
		metrics.SyncRecordsMalformed.WithLabelValues(string(entity)).Add(float64(got.malformed))
		logger.Warn("Dropped %d malformed %s rows", got.malformed, entity)
	}
	return len(got.records), got.malformed, nil
}

// fetchCollection pages through a queryable entity type. The first page uses
// the permit acquired by syncEntity; later pages acquire their own.
func (o *SyncOrchestrator) fetchCollection(ctx context.Context, entity domain.EntityType) (fetched, error) {
	malformed := 0
	fetch := func(ctx context.Context, start, size int) (pagination.Page[domain.Record], error) {
		if start > 1 {
			if _, err := o.limiter.Acquire(ctx, o.opts.AcquireTimeout); err != nil {
				return pagination.Page[domain.Record]{}, err
			}
		}
		page, err := o.client.QueryPage(ctx, entity, start, size)
		if err != nil {
			return pagination.Page[domain.Record]{}, err
		}
		malformed += page.Malformed()
		return pagination.Page[domain.Record]{Items: page.Records, Received: page.Received}, nil
	}

	records, err := pagination.FetchAll(ctx, fetch, pagination.Options{
		PageSize: o.opts.PageSize,
		MaxPages: o.opts.MaxPages,
		Delay:    o.opts.PageDelay,
		Label:    string(entity),
	})
	if err != nil {
		return fetched{}, err
	}
	return fetched{records: records, malformed: malformed}, nil
}

// fetchBudgets reads the budget report. Budgets are pull-only, and a tenant
// without a report has zero budgets.
func (o *SyncOrchestrator) fetchBudgets(ctx context.Context, _ domain.EntityType) (fetched, error) {
	records, err := o.client.BudgetReport(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("No budget report; treating as zero budgets")
		return fetched{}, nil
	}
	if err != nil {
		return fetched{}, err
	}
	return fetched{records: records}, nil
}

// types returns the configured entity types in sync order.
func (o *SyncOrchestrator) types() []domain.EntityType {
	if len(o.opts.Types) == 0 {
		return domain.SyncOrder
	}
	wanted := make(map[domain.EntityType]bool, len(o.opts.Types))
	for _, t := range o.opts.Types {
		wanted[t] = true
	}
	types := make([]domain.EntityType, 0, len(o.opts.Types))
	for _, t := range domain.SyncOrder {
		if wanted[t] {
			types = append(types, t)
		}
	}
	return types
}

// saveRun appends the result to the run history. A cancelled context still
// gets its run recorded.
func (o *SyncOrchestrator) saveRun(ctx context.Context, result domain.SyncResult) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveRun(context.WithoutCancel(ctx), result); err != nil {
		logger.Warn("Could not record sync run %s: %v", result.RunID, err)
	}
}

// setStatus updates the status for the running sync.
func (o *SyncOrchestrator) setStatus(status *driving.SyncStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = status
}

// updateStatus mutates the running sync's status under the lock.
func (o *SyncOrchestrator) updateStatus(fn func(*driving.SyncStatus)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != nil {
		fn(o.active)
	}
}

// clearStatus removes status tracking once a sync ends.
func (o *SyncOrchestrator) clearStatus() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = nil
}
