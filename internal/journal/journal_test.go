package journal

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleworks/spindle-go/internal/sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestJournal opens a file-backed journal in a temp directory so tests
// exercise file creation and the migration path, not just :memory:.
func newTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(filepath.Join(t.TempDir(), DefaultFilename), testLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, j.Close())
	})

	return j
}

// makeReport builds a finished pull report with fixed counts.
func makeReport(tenant string, start time.Time) *sync.RunReport {
	return &sync.RunReport{
		Tenant:     tenant,
		Op:         sync.OpPull,
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Created:    3,
		Updated:    1,
		Unchanged:  12,
	}
}

func TestOpen_CreatesDatabaseAndDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", DefaultFilename)

	j, err := Open(path, testLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, j.Close())
	})

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestOpen_MigrationIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	ctx := context.Background()

	j, err := Open(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, makeReport("acme", time.Now())))
	require.NoError(t, j.Close())

	// A second open must not re-run the migration or disturb the data.
	j, err = Open(path, testLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, j.Close())
	})

	runs, err := j.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestJournal_RecordAndList(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, makeReport("acme", base)))
	require.NoError(t, j.Record(ctx, makeReport("globex", base.Add(time.Minute))))

	pushed := makeReport("acme", base.Add(2*time.Minute))
	pushed.Op = sync.OpPush
	require.NoError(t, j.Record(ctx, pushed))

	t.Run("newest first", func(t *testing.T) {
		runs, err := j.List(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, runs, 3)

		assert.Equal(t, sync.OpPush, runs[0].Op)
		assert.Equal(t, "acme", runs[0].Tenant)
		assert.Equal(t, "globex", runs[1].Tenant)
		assert.Equal(t, "acme", runs[2].Tenant)
	})

	t.Run("round-trips fields", func(t *testing.T) {
		runs, err := j.List(ctx, "", 1)
		require.NoError(t, err)
		require.Len(t, runs, 1)

		run := runs[0]
		_, err = uuid.Parse(run.ID)
		assert.NoError(t, err)
		assert.Equal(t, sync.StatusOK, run.Status)
		assert.Equal(t, 3, run.Created)
		assert.Equal(t, 1, run.Updated)
		assert.Equal(t, 0, run.Deleted)
		assert.Equal(t, 12, run.Unchanged)
		assert.Equal(t, 0, run.ErrorCount)
		assert.Equal(t, pushed.StartedAt.UnixMilli(), run.StartedAt.UnixMilli())
		assert.Equal(t, pushed.FinishedAt.UnixMilli(), run.FinishedAt.UnixMilli())
	})

	t.Run("tenant filter", func(t *testing.T) {
		runs, err := j.List(ctx, "acme", 0)
		require.NoError(t, err)
		require.Len(t, runs, 2)

		for _, run := range runs {
			assert.Equal(t, "acme", run.Tenant)
		}
	})

	t.Run("limit", func(t *testing.T) {
		runs, err := j.List(ctx, "", 2)
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})

	t.Run("unknown tenant is empty", func(t *testing.T) {
		runs, err := j.List(ctx, "hooli", 0)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}

func TestJournal_DistinctRunIDs(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, j.Record(ctx, makeReport("acme", now)))
	require.NoError(t, j.Record(ctx, makeReport("acme", now)))

	runs, err := j.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.NotEqual(t, runs[0].ID, runs[1].ID)
}

func TestJournal_RecordsReportStatus(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	partial := makeReport("acme", time.Now())
	partial.Errors = []sync.EntityError{{Kind: "flow", Idn: "greeting", Op: "list", Err: assert.AnError}}
	require.NoError(t, j.Record(ctx, partial))

	failed := makeReport("acme", time.Now().Add(time.Second))
	failed.Failed = true
	require.NoError(t, j.Record(ctx, failed))

	runs, err := j.List(ctx, "acme", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, sync.StatusFailed, runs[0].Status)
	assert.Equal(t, sync.StatusPartial, runs[1].Status)
	assert.Equal(t, 1, runs[1].ErrorCount)
}
