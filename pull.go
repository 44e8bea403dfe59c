package main

import (
	"github.com/spf13/cobra"
)

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download the remote configuration into the local tree",
		Long: `Fetch the tenant's full configuration graph (projects, agents, flows,
skills, personas, attributes, knowledge base articles) and mirror it to
the local directory tree. Remote state wins: local files are created,
overwritten, or pruned to match.

--project narrows the pull to one project by its remote id; the tenant's
configured preferred project applies when the flag is unset.`,
		Args: cobra.NoArgs,
		RunE: runPull,
	}
}

func runPull(cmd *cobra.Command, _ []string) error {
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

	report, err := eng.Pull(ctx, cc.Flags.Project)
	if err != nil {
		return err
	}

	return printReport(cc, report)
}
