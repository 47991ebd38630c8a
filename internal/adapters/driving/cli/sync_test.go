package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
)

func TestSyncCmd_Use(t *testing.T) {
	assert.Equal(t, "sync [entity-type]", syncCmd.Use)
	assert.Equal(t, "Synchronise records from the accounting service", syncCmd.Short)
	assert.Contains(t, syncCmd.Long, "journal_entries")
}

func TestSyncCmd_All(t *testing.T) {
	sync := &mockSync{result: domain.SyncResult{
		RunID:         "run-1",
		Success:       true,
		RecordsSynced: 42,
		Duration:      1500 * time.Millisecond,
		Outcomes: []domain.EntityOutcome{
			{EntityType: domain.EntityCustomers, Records: 40, Malformed: 1},
			{EntityType: domain.EntityBudgets, Records: 2},
		},
	}}
	setupServices(t, Services{Sync: sync})

	out, err := execute(t, "sync")

	require.NoError(t, err)
	assert.Equal(t, 1, sync.all)
	assert.Contains(t, out, "Synchronising all entity types...")
	assert.Contains(t, out, "40 (1 malformed rows dropped)")
	assert.Contains(t, out, "Synced 42 records in 1.5s (run run-1)")
}

func TestSyncCmd_SingleEntity(t *testing.T) {
	sync := &mockSync{result: domain.SyncResult{Success: true}}
	setupServices(t, Services{Sync: sync})

	out, err := execute(t, "sync", "journal-entries")

	require.NoError(t, err)
	assert.Equal(t, []domain.EntityType{domain.EntityJournalEntries}, sync.entities)
	assert.Contains(t, out, "Synchronising journal_entries...")
}

func TestSyncCmd_UnknownEntity(t *testing.T) {
	sync := &mockSync{}
	setupServices(t, Services{Sync: sync})

	_, err := execute(t, "sync", "payroll")

	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	assert.Empty(t, sync.entities)
}

func TestSyncCmd_PartialFailure(t *testing.T) {
	sync := &mockSync{result: domain.SyncResult{
		Success:       false,
		RecordsSynced: 10,
		ErrorMessage:  "invoices: boom; accounts: circuit open",
		Outcomes: []domain.EntityOutcome{
			{EntityType: domain.EntityCustomers, Records: 10},
			{EntityType: domain.EntityInvoices, Error: "boom"},
			{EntityType: domain.EntityAccounts, Skipped: true, Error: "circuit open"},
		},
	}}
	setupServices(t, Services{Sync: sync})

	out, err := execute(t, "sync")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoices: boom")
	assert.Contains(t, out, "FAILED: boom")
	assert.Contains(t, out, "skipped (circuit open)")
}

func TestSyncCmd_Cancelled(t *testing.T) {
	sync := &mockSync{result: domain.SyncResult{ErrorMessage: domain.CancelledMessage, RecordsSynced: 3}}
	setupServices(t, Services{Sync: sync})

	out, err := execute(t, "sync")

	assert.EqualError(t, err, "sync cancelled")
	assert.Contains(t, out, "Synced 3 records")
}

func TestSyncCmd_ConfigurationError(t *testing.T) {
	sync := &mockSync{err: domain.ErrMissingCredentials}
	setupServices(t, Services{Sync: sync})

	_, err := execute(t, "sync")

	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
	assert.ErrorContains(t, err, "sync failed")
}

func TestSyncCmd_ServiceNotConfigured(t *testing.T) {
	setupServices(t, Services{})

	_, err := execute(t, "sync")

	assert.ErrorContains(t, err, "sync service not configured")
}

func TestSyncCmd_TooManyArgs(t *testing.T) {
	setupServices(t, Services{Sync: &mockSync{}})

	_, err := execute(t, "sync", "customers", "invoices")

	assert.Error(t, err)
}

func TestSyncCmd_Progress(t *testing.T) {
	oldInterval := progressInterval
	progressInterval = 5 * time.Millisecond
	t.Cleanup(func() { progressInterval = oldInterval })

	sync := &mockSync{
		result: domain.SyncResult{Success: true},
		block:  make(chan struct{}),
		status: &driving.SyncStatus{Running: true, Current: domain.EntityInvoices, RecordsSynced: 25},
	}
	setupServices(t, Services{Sync: sync})
	go func() {
		time.Sleep(60 * time.Millisecond)
		close(sync.block)
	}()

	out, err := execute(t, "sync")

	require.NoError(t, err)
	assert.Contains(t, out, "Processing invoices... (25 records so far)")
	assert.Equal(t, 1, countOccurrences(out, "Processing invoices"), "progress prints once per entity type")
}

func countOccurrences(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}
