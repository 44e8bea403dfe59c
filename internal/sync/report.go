// Package sync implements the pull, push and status engines that keep a
// tenant's local mirror tree and the remote object graph aligned, plus
// the filesystem watcher that drives watch mode.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Operation labels for run reports and the journal.
const (
	OpPull = "pull"
	OpPush = "push"
)

// Run statuses derived from a report.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// EntityError records a single entity's failure during a run. Failures
// are collected, not propagated: one broken flow never aborts its
// siblings.
type EntityError struct {
	Kind string // "project", "agent", "flow", "skill", …
	Idn  string
	Path string // mirror-relative path, when one applies
	Op   string // "list", "create", "update", "delete", "write", "read"
	Err  error
}

func (e *EntityError) Error() string {
	name := e.Kind
	if e.Idn != "" {
		name += " " + e.Idn
	}

	if e.Path != "" {
		return fmt.Sprintf("%s (%s): %s: %v", name, e.Path, e.Op, e.Err)
	}

	return fmt.Sprintf("%s: %s: %v", name, e.Op, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// RunReport aggregates the outcome of one pull or push. Count methods are
// safe for concurrent use by the pull fan-out.
type RunReport struct {
	Tenant     string
	Op         string
	StartedAt  time.Time
	FinishedAt time.Time

	Created   int
	Updated   int
	Deleted   int
	Unchanged int

	Errors []EntityError

	// Failed marks a run aborted by a fatal error, as opposed to one
	// that completed with entity errors.
	Failed bool

	mu sync.Mutex
}

func newRunReport(tenant, op string, now time.Time) *RunReport {
	return &RunReport{Tenant: tenant, Op: op, StartedAt: now}
}

func (r *RunReport) addCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Created++
}

func (r *RunReport) addUpdated() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Updated++
}

func (r *RunReport) addDeleted() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Deleted++
}

func (r *RunReport) addUnchanged() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Unchanged++
}

func (r *RunReport) addError(e EntityError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Errors = append(r.Errors, e)
}

// HasErrors reports whether any entity failed during the run.
func (r *RunReport) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.Errors) > 0
}

// Status summarizes the run for the journal: failed when a fatal error
// aborted it, partial when entity errors were recorded, ok otherwise.
func (r *RunReport) Status() string {
	if r.Failed {
		return StatusFailed
	}

	if r.HasErrors() {
		return StatusPartial
	}

	return StatusOK
}

// Duration is the wall-clock span of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunRecorder persists run summaries. The journal package provides the
// real implementation; a nil recorder disables history.
type RunRecorder interface {
	Record(ctx context.Context, report *RunReport) error
}
