// Package memory provides in-memory implementations of driven ports,
// used by tests and by dry runs that must not touch disk.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

type recordKey struct {
	entity   domain.EntityType
	remoteID string
}

// RecordStore is an in-memory implementation of driven.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[recordKey]domain.Record
	runs    []domain.SyncResult
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[recordKey]domain.Record),
	}
}

// Upsert stores or replaces records. The batch is validated before any write.
func (s *RecordStore) Upsert(_ context.Context, records []domain.Record) error {
	for _, r := range records {
		if r.RemoteID == "" {
			return fmt.Errorf("%w: %s record without remote id", domain.ErrInvalidInput, r.EntityType)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[recordKey{r.EntityType, r.RemoteID}] = r
	}
	return nil
}

// List returns all stored records of an entity type ordered by remote id.
func (s *RecordStore) List(_ context.Context, entity domain.EntityType) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []domain.Record
	for key, r := range s.records {
		if key.entity == entity {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RemoteID < records[j].RemoteID
	})
	return records, nil
}

// Count returns the number of stored records of an entity type.
func (s *RecordStore) Count(_ context.Context, entity domain.EntityType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for key := range s.records {
		if key.entity == entity {
			n++
		}
	}
	return n, nil
}

// SaveRun appends a sync result to the history. Saving the same run id replaces it.
func (s *RecordStore) SaveRun(_ context.Context, result domain.SyncResult) error {
	if result.RunID == "" {
		return fmt.Errorf("%w: sync run without id", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].RunID == result.RunID {
			s.runs[i] = result
			return nil
		}
	}
	s.runs = append(s.runs, result)
	return nil
}

// ListRuns returns the most recent sync results, newest first.
// A limit of zero or less returns every run.
func (s *RecordStore) ListRuns(_ context.Context, limit int) ([]domain.SyncResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]domain.SyncResult, len(s.runs))
	copy(runs, s.runs)
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
