package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/spindleworks/spindle-go/internal/sync"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local changes since the last sync",
		Long: `Classify every managed file in the tenant's tree against the last synced
state and list what a push would do. Purely local: no network calls, no
state changes.

--project narrows the view to one project directory under projects/.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

// statusRow is the machine-readable shape of one plan entry.
type statusRow struct {
	Path   string `json:"path"`
	Change string `json:"change"`
}

// statusJSON is the --json output document.
type statusJSON struct {
	Tenant  string      `json:"tenant"`
	Clean   bool        `json:"clean"`
	Changes []statusRow `json:"changes"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
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

	plan, err := eng.Status(cc.Flags.Project)
	if err != nil {
		return err
	}

	// Ignored entries (read-only paths with local edits) are listed so the
	// edit is visible, but they never count as work to push.
	var listed []sync.PlanEntry

	for _, entry := range plan.Entries {
		if entry.Change != sync.Unchanged {
			listed = append(listed, entry)
		}
	}

	if cc.Flags.JSON {
		doc := statusJSON{Tenant: ten.Idn, Clean: plan.Clean(), Changes: []statusRow{}}
		for _, entry := range listed {
			doc.Changes = append(doc.Changes, statusRow{Path: entry.Path, Change: entry.Change.String()})
		}

		return printJSON(os.Stdout, doc)
	}

	if len(listed) == 0 {
		cc.Statusf("%s: local tree matches the last sync.\n", ten.Idn)

		return nil
	}

	rows := make([][]string, 0, len(listed))
	for _, entry := range listed {
		rows = append(rows, []string{entry.Change.String(), entry.Path})
	}

	printTable(os.Stdout, []string{"CHANGE", "PATH"}, rows)

	pending := plan.Pending()
	if len(pending) == 0 {
		cc.Statusf("\n%s: nothing to push.\n", ten.Idn)

		return nil
	}

	cc.Statusf("\n%s: %d change(s) to push (%s).\n", ten.Idn, len(pending),
		formatCounts(plan.Count(sync.Added), plan.Count(sync.Modified), plan.Count(sync.Deleted), plan.Count(sync.Unchanged)))

	return nil
}
