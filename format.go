package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/spindleworks/spindle-go/internal/sync"
)

// statusf prints a status message to stderr unless quiet mode is set.
// Data goes to stdout, narration goes to stderr, so pipelines stay clean.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
// Method form of statusf — avoids threading `quiet bool` through call chains.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// isTTY reports whether the file is an interactive terminal.
func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printTable writes aligned columns with a header row on a terminal and
// headerless tab-separated rows when output is redirected, so scripts get
// stable fields.
func printTable(w io.Writer, headers []string, rows [][]string) {
	if f, ok := w.(*os.File); ok && !isTTY(f) {
		for _, row := range rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}

		return
	}

	// Compute column widths.
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// printJSON writes indented JSON to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// formatCounts renders run counters compactly: +created ~updated -deleted
// =unchanged.
func formatCounts(created, updated, deleted, unchanged int) string {
	return fmt.Sprintf("+%d ~%d -%d =%d", created, updated, deleted, unchanged)
}

// formatWhen returns a compact local timestamp for display.
func formatWhen(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// formatReportLine is the one-line human summary of a finished run.
func formatReportLine(report *sync.RunReport) string {
	return fmt.Sprintf("%s %s: %d created, %d updated, %d deleted, %d unchanged in %s",
		report.Tenant, report.Op,
		report.Created, report.Updated, report.Deleted, report.Unchanged,
		report.Duration().Round(time.Millisecond))
}

// reportJSON is the machine-readable shape of a run report.
type reportJSON struct {
	Tenant     string   `json:"tenant"`
	Op         string   `json:"op"`
	Status     string   `json:"status"`
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Deleted    int      `json:"deleted"`
	Unchanged  int      `json:"unchanged"`
	Errors     []string `json:"errors,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

func reportToJSON(report *sync.RunReport) reportJSON {
	out := reportJSON{
		Tenant:     report.Tenant,
		Op:         report.Op,
		Status:     report.Status(),
		Created:    report.Created,
		Updated:    report.Updated,
		Deleted:    report.Deleted,
		Unchanged:  report.Unchanged,
		DurationMS: report.Duration().Milliseconds(),
	}

	for i := range report.Errors {
		out.Errors = append(out.Errors, report.Errors[i].Error())
	}

	return out
}

// printReport renders a run report in the selected format and surfaces
// entity failures: each is printed to stderr, and errEntityErrors is
// returned so main exits with the partial code.
func printReport(cc *CLIContext, report *sync.RunReport) error {
	if cc.Flags.JSON {
		if err := printJSON(os.Stdout, reportToJSON(report)); err != nil {
			return err
		}
	} else {
		cc.Statusf("%s\n", formatReportLine(report))
	}

	for i := range report.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", report.Errors[i].Error())
	}

	if report.HasErrors() {
		return errEntityErrors
	}

	return nil
}
