package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleworks/spindle-go/internal/sync"
)

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "+2 ~1 -0 =7", formatCounts(2, 1, 0, 7))
	assert.Equal(t, "+0 ~0 -0 =0", formatCounts(0, 0, 0, 0))
}

func TestFormatWhen(t *testing.T) {
	// Constructed in the local zone so the output is deterministic.
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)
	assert.Equal(t, "2026-03-14 09:30", formatWhen(ts))
}

func TestPrintTable_Aligned(t *testing.T) {
	var buf bytes.Buffer

	headers := []string{"CHANGE", "PATH"}
	rows := [][]string{
		{"added", "projects/support/agents/billing/agent.yaml"},
		{"modified", "personas/friendly.yaml"},
	}

	// A bytes.Buffer is not an *os.File, so the aligned branch with the
	// header row is used.
	printTable(&buf, headers, rows)
	output := buf.String()

	assert.Contains(t, output, "CHANGE")
	assert.Contains(t, output, "PATH")
	assert.Contains(t, output, "added     projects/support/agents/billing/agent.yaml")
	assert.Contains(t, output, "modified  personas/friendly.yaml")
}

func TestPrintTable_PlainWhenRedirected(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	headers := []string{"CHANGE", "PATH"}
	rows := [][]string{
		{"added", "skills/lookup_order.yaml"},
		{"deleted", "events/order_shipped.yaml"},
	}

	// A pipe is an *os.File but not a terminal, so rows come out
	// headerless and tab-separated for scripts.
	printTable(w, headers, rows)
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)

	assert.Equal(t, "added\tskills/lookup_order.yaml\ndeleted\tevents/order_shipped.yaml\n", string(out))
	assert.NotContains(t, string(out), "CHANGE")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printJSON(&buf, map[string]int{"created": 2}))
	assert.Equal(t, "{\n  \"created\": 2\n}\n", buf.String())
}

func TestFormatReportLine(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	report := &sync.RunReport{
		Tenant:     "acme",
		Op:         sync.OpPull,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Created:    2,
		Updated:    1,
		Unchanged:  7,
	}

	assert.Equal(t, "acme pull: 2 created, 1 updated, 0 deleted, 7 unchanged in 1.5s",
		formatReportLine(report))
}

func TestReportToJSON(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	report := &sync.RunReport{
		Tenant:     "acme",
		Op:         sync.OpPush,
		StartedAt:  start,
		FinishedAt: start.Add(250 * time.Millisecond),
		Updated:    3,
		Errors: []sync.EntityError{
			{Kind: "flow", Idn: "greeting", Op: "update", Err: errors.New("boom")},
		},
	}

	out := reportToJSON(report)

	assert.Equal(t, "acme", out.Tenant)
	assert.Equal(t, sync.OpPush, out.Op)
	assert.Equal(t, sync.StatusPartial, out.Status)
	assert.Equal(t, 3, out.Updated)
	assert.Equal(t, int64(250), out.DurationMS)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "flow greeting")
}

func TestPrintReport_EntityErrorsSignalPartialExit(t *testing.T) {
	cc := &CLIContext{Flags: RunFlags{Quiet: true}}

	clean := &sync.RunReport{Tenant: "acme", Op: sync.OpPull}
	require.NoError(t, printReport(cc, clean))

	failed := &sync.RunReport{
		Tenant: "acme",
		Op:     sync.OpPush,
		Errors: []sync.EntityError{
			{Kind: "skill", Idn: "lookup_order", Op: "update", Err: errors.New("boom")},
		},
	}

	err := printReport(cc, failed)
	require.Error(t, err)
	assert.ErrorIs(t, err, errEntityErrors)
}
