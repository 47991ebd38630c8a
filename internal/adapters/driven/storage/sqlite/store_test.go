package sqlite

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func testRecord(entity domain.EntityType, id, name string) domain.Record {
	return domain.Record{
		EntityType:  entity,
		RemoteID:    id,
		DisplayName: name,
		UpdatedAt:   time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Payload:     json.RawMessage(`{"Id":"` + id + `","DisplayName":"` + name + `"}`),
		FetchedAt:   time.Date(2026, 2, 1, 8, 0, 0, 123456789, time.UTC),
	}
}

// ==================== Store Creation and Initialization Tests ====================

func TestNewStore_Success(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(tempDir, DatabaseFileName), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewStore(dataDir)
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(dataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewStore_Migrations(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"records", "sync_runs", "schema_migrations"} {
		var name string
		err := store.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
}

func TestNewStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	tempDir := t.TempDir()

	first, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, first.Upsert(context.Background(), []domain.Record{
		testRecord(domain.EntityCustomers, "1", "Acme"),
	}))
	require.NoError(t, first.Close())

	second, err := NewStore(tempDir)
	require.NoError(t, err)
	defer second.Close()

	n, err := second.Count(context.Background(), domain.EntityCustomers)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var applied int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestMigrate_BadSQL(t *testing.T) {
	store := setupTestStore(t)

	err := store.migrate(fstest.MapFS{
		"002_broken.up.sql": {Data: []byte("CREATE TABLE (")},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_broken.up.sql")

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version, "failed migration must not be recorded")
}

func TestMigrate_SkipsUnversionedFiles(t *testing.T) {
	store := setupTestStore(t)

	err := store.migrate(fstest.MapFS{
		"notes.up.sql":       {Data: []byte("CREATE TABLE never (")},
		"002_extra.up.sql":   {Data: []byte("CREATE TABLE extra (id INTEGER)")},
		"002_extra.down.sql": {Data: []byte("DROP TABLE extra")},
	})

	require.NoError(t, err)
	var name string
	require.NoError(t, store.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='extra'",
	).Scan(&name))
}

// ==================== Record Tests ====================

func TestUpsert_InsertAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	records := []domain.Record{
		testRecord(domain.EntityCustomers, "2", "Beta"),
		testRecord(domain.EntityCustomers, "1", "Acme"),
		testRecord(domain.EntityVendors, "1", "Supplier"),
	}
	require.NoError(t, store.Upsert(ctx, records))

	customers, err := store.List(ctx, domain.EntityCustomers)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "1", customers[0].RemoteID)
	assert.Equal(t, "Acme", customers[0].DisplayName)
	assert.Equal(t, domain.EntityCustomers, customers[0].EntityType)
	assert.JSONEq(t, `{"Id":"1","DisplayName":"Acme"}`, string(customers[0].Payload))
	assert.True(t, records[1].UpdatedAt.Equal(customers[0].UpdatedAt))
	assert.True(t, records[1].FetchedAt.Equal(customers[0].FetchedAt))

	vendors, err := store.List(ctx, domain.EntityVendors)
	require.NoError(t, err)
	assert.Len(t, vendors, 1)
}

func TestUpsert_LastWriteWins(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []domain.Record{testRecord(domain.EntityAccounts, "7", "Cash")}))
	updated := testRecord(domain.EntityAccounts, "7", "Petty Cash")
	updated.Payload = json.RawMessage(`{"Id":"7","Name":"Petty Cash"}`)
	require.NoError(t, store.Upsert(ctx, []domain.Record{updated}))

	n, err := store.Count(ctx, domain.EntityAccounts)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	accounts, err := store.List(ctx, domain.EntityAccounts)
	require.NoError(t, err)
	assert.Equal(t, "Petty Cash", accounts[0].DisplayName)
	assert.JSONEq(t, `{"Id":"7","Name":"Petty Cash"}`, string(accounts[0].Payload))
}

func TestUpsert_SameIDDifferentTypes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []domain.Record{
		testRecord(domain.EntityCustomers, "1", "Customer One"),
		testRecord(domain.EntityVendors, "1", "Vendor One"),
	}))

	customers, err := store.Count(ctx, domain.EntityCustomers)
	require.NoError(t, err)
	vendors, err := store.Count(ctx, domain.EntityVendors)
	require.NoError(t, err)
	assert.Equal(t, 1, customers)
	assert.Equal(t, 1, vendors)
}

func TestUpsert_Empty(t *testing.T) {
	store := setupTestStore(t)

	assert.NoError(t, store.Upsert(context.Background(), nil))
}

func TestUpsert_MissingRemoteIDRollsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, []domain.Record{
		testRecord(domain.EntityInvoices, "1", "INV-1"),
		{EntityType: domain.EntityInvoices, Payload: json.RawMessage(`{}`)},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	n, err := store.Count(ctx, domain.EntityInvoices)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "batch is all or nothing")
}

func TestUpsert_ZeroTimesAndEmptyPayload(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []domain.Record{
		{EntityType: domain.EntityBudgets, RemoteID: "budget:1:Jan"},
	}))

	budgets, err := store.List(ctx, domain.EntityBudgets)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.True(t, budgets[0].UpdatedAt.IsZero())
	assert.True(t, budgets[0].FetchedAt.IsZero())
	assert.Equal(t, "null", string(budgets[0].Payload))
}

func TestUpsert_CancelledContext(t *testing.T) {
	store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Upsert(ctx, []domain.Record{testRecord(domain.EntityCustomers, "1", "Acme")})

	assert.Error(t, err)
}

func TestList_Empty(t *testing.T) {
	store := setupTestStore(t)

	records, err := store.List(context.Background(), domain.EntityJournalEntries)

	require.NoError(t, err)
	assert.Empty(t, records)
}

// ==================== Sync Run Tests ====================

func TestSaveRun_AndListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, store.SaveRun(ctx, domain.SyncResult{
			RunID:         id,
			StartedAt:     base.Add(time.Duration(i) * time.Hour),
			Success:       i != 1,
			RecordsSynced: 10 * (i + 1),
			Duration:      time.Duration(i+1) * time.Second,
		}))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].RunID)
	assert.Equal(t, "run-2", runs[1].RunID)
	assert.False(t, runs[1].Success)
	assert.Equal(t, 20, runs[1].RecordsSynced)
	assert.Equal(t, 2*time.Second, runs[1].Duration)
	assert.True(t, base.Add(time.Hour).Equal(runs[1].StartedAt))

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSaveRun_Outcomes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	result := domain.SyncResult{
		RunID:         "run-outcomes",
		StartedAt:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Success:       false,
		RecordsSynced: 30,
		ErrorMessage:  "invoices: boom",
		Duration:      1500 * time.Millisecond,
		Outcomes: []domain.EntityOutcome{
			{EntityType: domain.EntityCustomers, Records: 30},
			{EntityType: domain.EntityInvoices, Error: "boom"},
			{EntityType: domain.EntityAccounts, Skipped: true, Error: "circuit open"},
		},
	}
	require.NoError(t, store.SaveRun(ctx, result))

	runs, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.Outcomes, runs[0].Outcomes)
	assert.Equal(t, "invoices: boom", runs[0].ErrorMessage)
}

func TestSaveRun_ReplacesSameID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC()

	require.NoError(t, store.SaveRun(ctx, domain.SyncResult{RunID: "r", StartedAt: started}))
	require.NoError(t, store.SaveRun(ctx, domain.SyncResult{RunID: "r", StartedAt: started, Success: true, RecordsSynced: 5}))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
	assert.Nil(t, runs[0].Outcomes)
}

func TestSaveRun_MissingID(t *testing.T) {
	store := setupTestStore(t)

	err := store.SaveRun(context.Background(), domain.SyncResult{})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
