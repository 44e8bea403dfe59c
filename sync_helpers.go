package main

import (
	"log/slog"
	"path/filepath"

	"github.com/spindleworks/spindle-go/internal/api"
	"github.com/spindleworks/spindle-go/internal/auth"
	"github.com/spindleworks/spindle-go/internal/journal"
	"github.com/spindleworks/spindle-go/internal/state"
	"github.com/spindleworks/spindle-go/internal/sync"
	"github.com/spindleworks/spindle-go/internal/tenant"
)

// tenantRegistry resolves credentials from the process environment and
// applies the configured default tenant.
func tenantRegistry(cc *CLIContext) (*tenant.Registry, error) {
	reg, err := tenant.Resolve(tenant.Environ())
	if err != nil {
		return nil, err
	}

	if err := reg.SetDefault(cc.Cfg.DefaultTenant); err != nil {
		return nil, err
	}

	return reg, nil
}

// selectTenant picks the tenant a command operates on: --tenant when
// given, else the registry default.
func selectTenant(cc *CLIContext) (tenant.Tenant, error) {
	reg, err := tenantRegistry(cc)
	if err != nil {
		return tenant.Tenant{}, err
	}

	return reg.Select(cc.Flags.Tenant)
}

// mirrorRoot returns the tenant's local tree under the data root.
func mirrorRoot(cc *CLIContext, ten tenant.Tenant) string {
	return filepath.Join(cc.Cfg.DataRoot, ten.Idn)
}

// newSyncEngine assembles the per-tenant stack: state stores, token
// manager, API client, the optional run journal, and the engine itself.
// The returned cleanup releases the journal and must run after the last
// engine call.
func newSyncEngine(cc *CLIContext, ten tenant.Tenant) (*sync.Engine, func(), error) {
	paths := state.NewPaths(cc.Cfg.StateDir, ten.Idn)

	hashes, err := state.LoadHashStore(paths.HashFile())
	if err != nil {
		return nil, nil, err
	}

	identity, err := state.LoadIdentityMap(paths.IdentityFile())
	if err != nil {
		return nil, nil, err
	}

	tokens := auth.NewManager(cc.Cfg.BaseURL, ten, paths.TokenFile(), defaultHTTPClient(), cc.Logger)
	client := api.NewClient(cc.Cfg.BaseURL, defaultHTTPClient(), tokens, cc.Logger)

	recorder, cleanup := openRecorder(cc)

	eng, err := sync.NewEngine(sync.EngineConfig{
		Tenant:      ten,
		Client:      client,
		Root:        mirrorRoot(cc, ten),
		Hashes:      hashes,
		Identity:    identity,
		Concurrency: cc.Cfg.Concurrency,
		Logger:      cc.Logger,
		Recorder:    recorder,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return eng, cleanup, nil
}

// openRecorder opens the run journal when history is enabled. A journal
// that cannot be opened disables history with a warning instead of
// blocking the sync itself.
func openRecorder(cc *CLIContext) (sync.RunRecorder, func()) {
	if !cc.Cfg.Journal {
		return nil, func() {}
	}

	j, err := journal.Open(journalPath(cc), cc.Logger)
	if err != nil {
		cc.Logger.Warn("opening run journal failed, history disabled", slog.String("error", err.Error()))

		return nil, func() {}
	}

	cleanup := func() {
		if err := j.Close(); err != nil {
			cc.Logger.Warn("closing run journal", slog.String("error", err.Error()))
		}
	}

	return j, cleanup
}

// journalPath is the shared history database location under the state dir.
func journalPath(cc *CLIContext) string {
	return filepath.Join(cc.Cfg.StateDir, journal.DefaultFilename)
}
