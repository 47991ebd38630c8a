package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ledgersync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// DatabaseFileName is the database file within the data directory.
const DatabaseFileName = "ledgersync.db"

// Ensure Store implements the interface.
var _ driven.RecordStore = (*Store)(nil)

// Store is a SQLite-backed RecordStore.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ledgersync.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ledgersync")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFileName)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Records ====================

// Upsert stores or replaces records in a single transaction.
func (s *Store) Upsert(ctx context.Context, records []domain.Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (entity_type, remote_id, display_name, updated_at, payload, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, remote_id) DO UPDATE SET
			display_name = excluded.display_name,
			updated_at = excluded.updated_at,
			payload = excluded.payload,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if r.RemoteID == "" {
			return fmt.Errorf("%w: %s record without remote id", domain.ErrInvalidInput, r.EntityType)
		}
		payload := string(r.Payload)
		if payload == "" {
			payload = "null"
		}
		if _, err = stmt.ExecContext(ctx, string(r.EntityType), r.RemoteID, r.DisplayName,
			nullTime(r.UpdatedAt), payload, formatTime(r.FetchedAt)); err != nil {
			return fmt.Errorf("upserting %s %s: %w", r.EntityType, r.RemoteID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing records: %w", err)
	}
	return nil
}

// List returns all stored records of an entity type ordered by remote id.
func (s *Store) List(ctx context.Context, entity domain.EntityType) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, remote_id, display_name, updated_at, payload, fetched_at
		FROM records WHERE entity_type = ?
		ORDER BY remote_id
	`, string(entity))
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.Record
		var entityType, payload, fetchedAt string
		var updatedAt sql.NullString
		if err := rows.Scan(&entityType, &r.RemoteID, &r.DisplayName, &updatedAt, &payload, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.EntityType = domain.EntityType(entityType)
		r.Payload = json.RawMessage(payload)
		if r.UpdatedAt, err = parseTime(updatedAt.String); err != nil {
			return nil, fmt.Errorf("record %s updated_at: %w", r.RemoteID, err)
		}
		if r.FetchedAt, err = parseTime(fetchedAt); err != nil {
			return nil, fmt.Errorf("record %s fetched_at: %w", r.RemoteID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Count returns the number of stored records of an entity type.
func (s *Store) Count(ctx context.Context, entity domain.EntityType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE entity_type = ?", string(entity)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// ==================== Sync Runs ====================

// SaveRun appends a sync result to the history. Saving the same run id replaces it.
func (s *Store) SaveRun(ctx context.Context, result domain.SyncResult) error {
	if result.RunID == "" {
		return fmt.Errorf("%w: sync run without id", domain.ErrInvalidInput)
	}

	outcomes, err := json.Marshal(result.Outcomes)
	if err != nil {
		return fmt.Errorf("marshalling outcomes: %w", err)
	}
	if result.Outcomes == nil {
		outcomes = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (run_id, started_at, success, records_synced, error_message, duration_ns, outcomes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			started_at = excluded.started_at,
			success = excluded.success,
			records_synced = excluded.records_synced,
			error_message = excluded.error_message,
			duration_ns = excluded.duration_ns,
			outcomes = excluded.outcomes
	`, result.RunID, formatTime(result.StartedAt), result.Success, result.RecordsSynced,
		result.ErrorMessage, int64(result.Duration), string(outcomes))
	if err != nil {
		return fmt.Errorf("saving sync run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent sync results, newest first.
// A limit of zero or less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.SyncResult, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, success, records_synced, error_message, duration_ns, outcomes
		FROM sync_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.SyncResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.SyncResult
		var startedAt, outcomes string
		var durationNS int64
		if err := rows.Scan(&r.RunID, &startedAt, &r.Success, &r.RecordsSynced,
			&r.ErrorMessage, &durationNS, &outcomes); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		if r.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("sync run %s started_at: %w", r.RunID, err)
		}
		r.Duration = time.Duration(durationNS)
		if err := json.Unmarshal([]byte(outcomes), &r.Outcomes); err != nil {
			return nil, fmt.Errorf("unmarshaling outcomes: %w", err)
		}
		if len(r.Outcomes) == 0 {
			r.Outcomes = nil
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ==================== Helpers ====================

// Times are stored as RFC 3339 text in UTC so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Join(domain.ErrInvalidInput, err)
	}
	return t, nil
}
