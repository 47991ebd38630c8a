package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

func record(entity domain.EntityType, id, name string) domain.Record {
	return domain.Record{
		EntityType:  entity,
		RemoteID:    id,
		DisplayName: name,
		Payload:     json.RawMessage(`{"Id":"` + id + `"}`),
	}
}

func TestNewRecordStore(t *testing.T) {
	store := NewRecordStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.records)
}

func TestRecordStore_UpsertAndList(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []domain.Record{
		record(domain.EntityCustomers, "b", "Beta"),
		record(domain.EntityCustomers, "a", "Acme"),
		record(domain.EntityVendors, "a", "Supplier"),
	}))

	customers, err := store.List(ctx, domain.EntityCustomers)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "a", customers[0].RemoteID)
	assert.Equal(t, "b", customers[1].RemoteID)

	n, err := store.Count(ctx, domain.EntityVendors)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordStore_LastWriteWins(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []domain.Record{record(domain.EntityAccounts, "1", "Cash")}))
	require.NoError(t, store.Upsert(ctx, []domain.Record{record(domain.EntityAccounts, "1", "Petty Cash")}))

	accounts, err := store.List(ctx, domain.EntityAccounts)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Petty Cash", accounts[0].DisplayName)
}

func TestRecordStore_MissingRemoteID(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	err := store.Upsert(ctx, []domain.Record{
		record(domain.EntityInvoices, "1", "INV-1"),
		{EntityType: domain.EntityInvoices},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	n, _ := store.Count(ctx, domain.EntityInvoices)
	assert.Zero(t, n)
}

func TestRecordStore_Runs(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, domain.SyncResult{RunID: "old", StartedAt: base}))
	require.NoError(t, store.SaveRun(ctx, domain.SyncResult{RunID: "new", StartedAt: base.Add(time.Hour)}))
	require.NoError(t, store.SaveRun(ctx, domain.SyncResult{RunID: "old", StartedAt: base, Success: true}))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].RunID)
	assert.True(t, runs[1].Success, "same id replaces the run")

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	assert.ErrorIs(t, store.SaveRun(ctx, domain.SyncResult{}), domain.ErrInvalidInput)
}

func TestRecordStore_ConcurrentUpserts(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			assert.NoError(t, store.Upsert(ctx, []domain.Record{record(domain.EntityCustomers, id, id)}))
		}(i)
	}
	wg.Wait()

	n, err := store.Count(ctx, domain.EntityCustomers)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}
