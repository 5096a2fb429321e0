// Package tracker reconciles the parent link of a batch of issues against an
// external issue tracker.
//
// The Engine verifies the target parent once, classifies every record as
// skip or apply, then applies the changes one record at a time. A failure on
// one record is counted and reported but never stops the batch. Backends
// plug in through the IssueTracker interface and register themselves by name.
package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/jparent/internal/types"
)

// TrackerIssue is the subset of a remote issue the engine cares about.
type TrackerIssue struct {
	ID         string // Tracker's internal ID
	Identifier string // Human-readable key (e.g., "PROJ-123")
	URL        string // API or web URL for the issue
	Title      string
	Type       string
	ParentKey  string // Current parent key on the tracker ("" if none)

	// Raw is the original API response for tracker-specific access.
	Raw interface{}
}

// Options configures a single reconciliation run. It is passed by value and
// never modified by the engine.
type Options struct {
	// Target is the parent key every record should end up linked to.
	Target string
	// DryRun computes and reports the changes without calling SetParent.
	DryRun bool
	// RunID identifies the run in results and audit records. A random ID is
	// generated when empty.
	RunID string
}

// ItemResult is the outcome for one record.
type ItemResult struct {
	Record     types.IssueRecord `json:"record"`
	Decision   types.Decision    `json:"decision"`
	Outcome    types.Outcome     `json:"outcome"`
	WouldApply bool              `json:"would_apply,omitempty"` // Dry run: counted as applied, nothing written
	Err        error             `json:"-"`
	Error      string            `json:"error,omitempty"`
}

// Result is the complete result of a reconciliation run.
type Result struct {
	RunID      string       `json:"run_id"`
	Tracker    string       `json:"tracker"`
	Target     string       `json:"target"`
	DryRun     bool         `json:"dry_run"`
	Stats      Tally        `json:"stats"`
	Items      []ItemResult `json:"items"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Success reports whether every record was applied or skipped.
func (r *Result) Success() bool {
	return r.Stats.Failed == 0
}

// Failures returns the items that failed, in input order.
func (r *Result) Failures() []ItemResult {
	var failed []ItemResult
	for _, item := range r.Items {
		if item.Outcome == types.OutcomeFailed {
			failed = append(failed, item)
		}
	}
	return failed
}

// ErrNoIssues is returned when there is nothing to reconcile.
var ErrNoIssues = errors.New("no issues to process")

// TargetResolutionError means the target parent could not be confirmed to
// exist. Nothing was modified.
type TargetResolutionError struct {
	Target string
	Err    error
}

func (e *TargetResolutionError) Error() string {
	return fmt.Sprintf("parent issue verification failed for %s: %v", e.Target, e.Err)
}

func (e *TargetResolutionError) Unwrap() error { return e.Err }

// ItemApplyError is the failure of a single record's update.
type ItemApplyError struct {
	Key string
	Err error
}

func (e *ItemApplyError) Error() string {
	return fmt.Sprintf("failed to set parent of %s: %v", e.Key, e.Err)
}

func (e *ItemApplyError) Unwrap() error { return e.Err }

// ErrNotInitialized is returned when a tracker is used before Init is called.
type ErrNotInitialized struct {
	Tracker string
}

func (e *ErrNotInitialized) Error() string {
	return e.Tracker + " tracker not initialized; call Init() first"
}
