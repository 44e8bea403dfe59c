package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/spindleworks/spindle-go/internal/sync"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the mirror tree and react to local edits",
		Long: `Watch observes the tenant's mirror tree and waits for each burst of
edits to settle. By default it reports what a push would do; with --push it
pushes the pending changes automatically.

Errors during an automatic push are reported and watching continues, so a
transient server failure never ends the session. --project narrows pushes
and reports to one project directory under projects/.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}

	cmd.Flags().Bool("push", false, "push automatically after each settled change burst")
	cmd.Flags().Duration("debounce", sync.DefaultDebounce, "quiet period before a change burst counts as settled")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	push, err := cmd.Flags().GetBool("push")
	if err != nil {
		return err
	}

	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return err
	}

	ten, err := selectTenant(cc)
	if err != nil {
		return err
	}

	root := mirrorRoot(cc, ten)
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("mirror directory %s does not exist; run 'spindle pull' first", root)
	}

	eng, cleanup, err := newSyncEngine(cc, ten)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	w, err := sync.NewWatcher(sync.WatcherConfig{
		Root:     root,
		Debounce: debounce,
		Logger:   cc.Logger,
		OnSettle: func(ctx context.Context) {
			onSettle(ctx, cc, eng, ten.Idn, push)
		},
	})
	if err != nil {
		return err
	}

	mode := "reporting pending changes"
	if push {
		mode = "pushing on settle"
	}

	cc.Statusf("Watching %s (%s, debounce %s); Ctrl-C stops.\n", root, mode, debounce)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// onSettle handles one settled change burst. Failures are logged rather
// than returned: a watch session outlives individual sync attempts.
func onSettle(ctx context.Context, cc *CLIContext, eng *sync.Engine, idn string, push bool) {
	if push {
		report, err := eng.Push(ctx, cc.Flags.Project)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}

			cc.Logger.Error("push failed", slog.String("error", err.Error()))

			return
		}

		// Entity errors are printed by printReport; the watch keeps going.
		_ = printReport(cc, report)

		return
	}

	plan, err := eng.Status(cc.Flags.Project)
	if err != nil {
		cc.Logger.Error("computing changes failed", slog.String("error", err.Error()))

		return
	}

	pending := plan.Pending()
	if len(pending) == 0 {
		cc.Statusf("%s: settled clean.\n", idn)

		return
	}

	cc.Statusf("%s: %d change(s) pending (%s); run 'spindle push' to apply.\n",
		idn, len(pending),
		formatCounts(plan.Count(sync.Added), plan.Count(sync.Modified),
			plan.Count(sync.Deleted), plan.Count(sync.Unchanged)))
}
