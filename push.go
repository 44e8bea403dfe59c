package main

import (
	"github.com/spf13/cobra"
)

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload local edits to the remote configuration",
		Long: `Compare the local tree against the last synced state and replay the
differences remotely: new files become entity creates, edited files
become updates, removed files become deletes. A clean tree performs no
network calls at all.

--project narrows the push to one project directory under projects/.`,
		Args: cobra.NoArgs,
		RunE: runPush,
	}
}

func runPush(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	ten, err := selectTenant(cc)
	if err != nil {
		return err
	}

	eng, cleanup, err := newSyncEngine(cc, ten)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := shutdownContext(cmd.Context(), cc.Logger)

	report, err := eng.Push(ctx, cc.Flags.Project)
	if err != nil {
		return err
	}

	return printReport(cc, report)
}
