package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/spindleworks/spindle-go/internal/idn"
	"github.com/spindleworks/spindle-go/internal/journal"
)

// historyJSON is the machine-readable row for one recorded run.
type historyJSON struct {
	ID         string `json:"id"`
	Tenant     string `json:"tenant"`
	Op         string `json:"op"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Deleted    int    `json:"deleted"`
	Unchanged  int    `json:"unchanged"`
	ErrorCount int    `json:"error_count"`
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past sync runs",
		Long: `History lists past sync runs recorded in the state directory's journal,
newest first. Each row shows when the run started, its tenant and operation,
the resulting status (ok, partial, or failed), and the entity counts.

--tenant filters to one tenant; --limit caps the number of rows.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().Int("limit", 20, "maximum runs to show (0 shows all)")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	j, err := journal.Open(journalPath(cc), cc.Logger)
	if err != nil {
		return fmt.Errorf("opening run journal: %w", err)
	}
	defer j.Close()

	var tenantFilter string
	if cc.Flags.Tenant != "" {
		tenantFilter = idn.Normalize(cc.Flags.Tenant)
	}

	runs, err := j.List(cmd.Context(), tenantFilter, limit)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		out := make([]historyJSON, 0, len(runs))
		for _, run := range runs {
			out = append(out, historyJSON{
				ID:         run.ID,
				Tenant:     run.Tenant,
				Op:         run.Op,
				Status:     run.Status,
				StartedAt:  run.StartedAt.UTC().Format(time.RFC3339),
				FinishedAt: run.FinishedAt.UTC().Format(time.RFC3339),
				Created:    run.Created,
				Updated:    run.Updated,
				Deleted:    run.Deleted,
				Unchanged:  run.Unchanged,
				ErrorCount: run.ErrorCount,
			})
		}

		return printJSON(os.Stdout, out)
	}

	if len(runs) == 0 {
		cc.Statusf("No runs recorded.\n")

		return nil
	}

	rows := make([][]string, 0, len(runs))

	for _, run := range runs {
		rows = append(rows, []string{
			formatWhen(run.StartedAt),
			run.Tenant,
			run.Op,
			run.Status,
			formatCounts(run.Created, run.Updated, run.Deleted, run.Unchanged),
			strconv.Itoa(run.ErrorCount),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
		})
	}

	printTable(os.Stdout,
		[]string{"STARTED", "TENANT", "OP", "STATUS", "CHANGES", "ERRORS", "DURATION"}, rows)

	return nil
}
