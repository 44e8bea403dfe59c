package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spindleworks/spindle-go/internal/api"
	"github.com/spindleworks/spindle-go/internal/state"
	"github.com/spindleworks/spindle-go/internal/tenant"
)

// DefaultConcurrency bounds the per-flow fan-out during pull.
const DefaultConcurrency = 4

// Engine runs pull, push and status for a single tenant. Engines are
// cheap to build per run; the stores they hold are the tenant's single
// writers for the run's duration.
type Engine struct {
	tenant      tenant.Tenant
	client      *api.Client
	root        string
	hashes      *state.HashStore
	identity    *state.IdentityMap
	concurrency int
	logger      *slog.Logger
	recorder    RunRecorder

	// now is injected by tests to pin report timestamps.
	now func() time.Time
}

// EngineConfig wires an Engine. Root is the tenant's mirror directory.
// Recorder may be nil to disable run history.
type EngineConfig struct {
	Tenant      tenant.Tenant
	Client      *api.Client
	Root        string
	Hashes      *state.HashStore
	Identity    *state.IdentityMap
	Concurrency int
	Logger      *slog.Logger
	Recorder    RunRecorder
}

// NewEngine validates the wiring and returns a ready engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Root == "" {
		return nil, errors.New("sync: engine requires a mirror root")
	}

	if cfg.Client == nil {
		return nil, errors.New("sync: engine requires an API client")
	}

	if cfg.Hashes == nil || cfg.Identity == nil {
		return nil, errors.New("sync: engine requires loaded stores")
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		tenant:      cfg.Tenant,
		client:      cfg.Client,
		root:        cfg.Root,
		hashes:      cfg.Hashes,
		identity:    cfg.Identity,
		concurrency: concurrency,
		logger:      logger.With(slog.String("tenant", cfg.Tenant.Idn)),
		recorder:    cfg.Recorder,
		now:         time.Now,
	}, nil
}

// Status classifies the local tree without touching the network.
func (e *Engine) Status(scope string) (*Plan, error) {
	return BuildPlan(e.root, scope, e.hashes, e.identity)
}

// saveStores persists both stores; called after mutations so a completed
// operation is never reported successful with its state still in memory.
func (e *Engine) saveStores() error {
	if err := e.hashes.Save(); err != nil {
		return err
	}

	return e.identity.Save()
}

// finishRun stamps the report, persists history, and logs the summary.
// Journal failures are logged and swallowed: history must never fail a
// sync run. Recording detaches from ctx cancellation so an interrupted
// run still leaves a row behind.
func (e *Engine) finishRun(ctx context.Context, report *RunReport) {
	report.FinishedAt = e.now()

	if e.recorder != nil {
		if err := e.recorder.Record(context.WithoutCancel(ctx), report); err != nil {
			e.logger.Warn("recording run history failed", slog.String("error", err.Error()))
		}
	}

	e.logger.Info("run finished",
		slog.String("op", report.Op),
		slog.String("status", report.Status()),
		slog.Int("created", report.Created),
		slog.Int("updated", report.Updated),
		slog.Int("deleted", report.Deleted),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("errors", len(report.Errors)),
		slog.Duration("duration", report.Duration()),
	)
}

// failRun records a fatally aborted run before the error propagates to
// the caller.
func (e *Engine) failRun(ctx context.Context, report *RunReport) {
	report.Failed = true
	e.finishRun(ctx, report)
}
