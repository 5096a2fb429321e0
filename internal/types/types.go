// Package types defines the core data structures for jparent.
package types

import (
	"fmt"
	"regexp"
)

// IssueRecord is one row of a Jira CSV export, normalized.
//
// Key and ID are always non-empty. The parent fields are nil when the column
// is missing from the export (or the row is too short to reach it), and point
// at "" when the column exists but the cell is blank.
type IssueRecord struct {
	Key       string  `json:"key"`                  // Human-readable key, e.g. "PROJ-123"
	ID        string  `json:"id"`                   // Jira internal id; kept for completeness
	ParentRef *string `json:"parent_ref,omitempty"` // "Parent" column (internal id of the parent)
	ParentKey *string `json:"parent_key,omitempty"` // "Parent key" column
}

// NewIssueRecord builds a record. Callers are expected to pass trimmed values.
func NewIssueRecord(key, id string, parentRef, parentKey *string) IssueRecord {
	return IssueRecord{Key: key, ID: id, ParentRef: parentRef, ParentKey: parentKey}
}

// CurrentParentKey returns the parent key stated by the export, and whether
// the export stated one at all.
func (r IssueRecord) CurrentParentKey() (string, bool) {
	if r.ParentKey == nil {
		return "", false
	}
	return *r.ParentKey, true
}

// Decision is the planner's classification of a single record.
type Decision string

// Decision constants
const (
	DecisionSkip  Decision = "skip"  // Already linked to the target parent
	DecisionApply Decision = "apply" // Needs the parent link set
)

// IsValid checks if the decision value is valid
func (d Decision) IsValid() bool {
	switch d {
	case DecisionSkip, DecisionApply:
		return true
	}
	return false
}

// Outcome is the terminal state of a record after the apply loop.
// Every record goes Pending -> {Skipped | Applied | Failed} exactly once.
type Outcome string

// Outcome constants
const (
	OutcomePending Outcome = "pending"
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// IsTerminal reports whether o is one of the three final outcomes.
func (o Outcome) IsTerminal() bool {
	switch o {
	case OutcomeApplied, OutcomeSkipped, OutcomeFailed:
		return true
	}
	return false
}

// parentKeyPattern is the issue key format accepted for the target parent.
var parentKeyPattern = regexp.MustCompile(`^[A-Z]+-\d+$`)

// InvalidKeyError is returned when a parent key does not look like a Jira key.
type InvalidKeyError struct {
	Key string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid parent key format: %q (expected format: PROJ-123)", e.Key)
}

// ValidateParentKey checks that key looks like a Jira issue key (PROJ-123).
func ValidateParentKey(key string) error {
	if !parentKeyPattern.MatchString(key) {
		return &InvalidKeyError{Key: key}
	}
	return nil
}

// IsValidParentKey is the boolean form of ValidateParentKey.
func IsValidParentKey(key string) bool {
	return parentKeyPattern.MatchString(key)
}
