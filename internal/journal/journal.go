// Package journal keeps a SQLite history of sync runs, one row per pull
// or push across all tenants of a state directory. The history command
// reads it; the sync engines write it through the RunRecorder interface.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/spindleworks/spindle-go/internal/sync"
)

// DefaultFilename is the journal database name under the state directory.
const DefaultFilename = "history.db"

// busyTimeoutMillis bounds how long a write waits on a lock held by a
// concurrent spindle process before failing.
const busyTimeoutMillis = 5000

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run is one recorded sync run, as returned by List.
type Run struct {
	ID         string
	Tenant     string
	Op         string
	StartedAt  time.Time
	FinishedAt time.Time
	Created    int
	Updated    int
	Deleted    int
	Unchanged  int
	ErrorCount int
	Status     string
}

// Journal persists run summaries in a SQLite database shared by all
// tenants. It implements sync.RunRecorder.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens the journal database at path, creating the file and its
// directory as needed, and applies pending schema migrations. Use
// ":memory:" for tests that don't need persistence.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("journal: creating directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", path, err)
	}

	// One connection keeps SQLite's cross-connection locking out of the
	// picture; the journal is a low-traffic append log.
	db.SetMaxOpenConns(1)

	if err := setPragmas(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db, logger: logger}, nil
}

// setPragmas configures SQLite for WAL mode and lock patience.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMillis), "busy timeout"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("journal: setting pragma %s: %w", p.desc, err)
		}
	}

	return nil
}

// runMigrations applies all pending schema migrations via the goose v3
// Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	// Strip the "migrations/" prefix so goose sees files at the FS root.
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("journal: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("journal: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("journal: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Debug("applied journal migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

const sqlInsertRun = `INSERT INTO sync_runs
	(id, tenant, op, started_at, finished_at,
	 created, updated, deleted, unchanged, error_count, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const sqlRunColumns = `id, tenant, op, started_at, finished_at,
	created, updated, deleted, unchanged, error_count, status`

// Record inserts one row summarizing a finished run. It reads the report
// without locking, so it must run after the run's workers have stopped —
// which Engine.finishRun guarantees.
func (j *Journal) Record(ctx context.Context, report *sync.RunReport) error {
	id := uuid.NewString()

	_, err := j.db.ExecContext(ctx, sqlInsertRun,
		id, report.Tenant, report.Op,
		report.StartedAt.UnixMilli(), report.FinishedAt.UnixMilli(),
		report.Created, report.Updated, report.Deleted, report.Unchanged,
		len(report.Errors), report.Status(),
	)
	if err != nil {
		return fmt.Errorf("journal: recording %s run for tenant %s: %w", report.Op, report.Tenant, err)
	}

	j.logger.Debug("run recorded",
		slog.String("run_id", id),
		slog.String("tenant", report.Tenant),
		slog.String("op", report.Op),
		slog.String("status", report.Status()),
	)

	return nil
}

// List returns recorded runs, newest first. A non-empty tenant narrows
// the result to that tenant; a positive limit caps the row count.
func (j *Journal) List(ctx context.Context, tenant string, limit int) ([]Run, error) {
	query := `SELECT ` + sqlRunColumns + ` FROM sync_runs`
	args := make([]any, 0, 2)

	if tenant != "" {
		query += ` WHERE tenant = ?`
		args = append(args, tenant)
	}

	// Secondary sort keeps the order stable when two runs share a
	// millisecond.
	query += ` ORDER BY started_at DESC, id DESC`

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var run Run

		var startedMS, finishedMS int64

		err := rows.Scan(
			&run.ID, &run.Tenant, &run.Op, &startedMS, &finishedMS,
			&run.Created, &run.Updated, &run.Deleted, &run.Unchanged,
			&run.ErrorCount, &run.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("journal: scanning run row: %w", err)
		}

		run.StartedAt = time.UnixMilli(startedMS)
		run.FinishedAt = time.UnixMilli(finishedMS)

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterating run rows: %w", err)
	}

	return runs, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("journal: closing database: %w", err)
	}

	return nil
}

// Compile-time interface check.
var _ sync.RunRecorder = (*Journal)(nil)
