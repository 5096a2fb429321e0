// Package audit appends a JSON-lines record of every reconciliation run.
//
// Each run writes a run_start event, one item event per record, and either
// run_end or run_abort. All events carry the run_id so a file shared by many
// runs can be split back apart.
package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/steveyegge/jparent/internal/tracker"
)

// Event names written in the "event" field.
const (
	EventRunStart = "run_start"
	EventItem     = "item"
	EventRunEnd   = "run_end"
	EventRunAbort = "run_abort"
)

// Log writes audit events. A nil *Log discards everything, so callers do not
// need to check whether auditing is enabled.
type Log struct {
	mu     sync.Mutex
	logger zerolog.Logger
	closer io.Closer
}

// Open appends to the audit file at path, creating it and its directory.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create audit log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 - path from --audit-log
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	l := New(f)
	l.closer = f
	return l, nil
}

// New writes audit events to w.
func New(w io.Writer) *Log {
	return &Log{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// RunStart records the beginning of a run.
func (l *Log) RunStart(runID, trackerName, target string, dryRun bool, records int) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Info().
		Str("event", EventRunStart).
		Str("run_id", runID).
		Str("tracker", trackerName).
		Str("target", target).
		Bool("dry_run", dryRun).
		Int("records", records).
		Send()
}

// Item records the outcome of one record.
func (l *Log) Item(runID string, item tracker.ItemResult) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var ev *zerolog.Event
	if item.Err != nil {
		ev = l.logger.Error().Str("error", item.Err.Error())
	} else {
		ev = l.logger.Info()
	}
	if current, ok := item.Record.CurrentParentKey(); ok {
		ev = ev.Str("previous_parent", current)
	}
	ev.Str("event", EventItem).
		Str("run_id", runID).
		Str("key", item.Record.Key).
		Str("id", item.Record.ID).
		Str("decision", string(item.Decision)).
		Str("outcome", string(item.Outcome)).
		Bool("would_apply", item.WouldApply).
		Send()
}

// RunEnd records the final tally of a completed run.
func (l *Log) RunEnd(runID string, stats tracker.Tally) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Info().
		Str("event", EventRunEnd).
		Str("run_id", runID).
		Int("applied", stats.Applied).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Int("total", stats.Total).
		Send()
}

// RunAbort records a run that stopped before processing any record.
func (l *Log) RunAbort(runID string, err error) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Error().
		Str("event", EventRunAbort).
		Str("run_id", runID).
		Err(err).
		Send()
}

// Close closes the underlying file, if Open created one.
func (l *Log) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
