package tracker

import (
	"fmt"

	"github.com/steveyegge/jparent/internal/types"
)

// Tally accumulates per-record outcomes for one run. It is owned by the
// apply loop and mutated from a single goroutine.
type Tally struct {
	Applied int `json:"applied"` // Parent set (or would be set, in a dry run)
	Skipped int `json:"skipped"` // Already linked to the target parent
	Failed  int `json:"failed"`  // Update rejected or transport error
	Total   int `json:"total"`   // Records that reached a terminal outcome
}

// Record counts one terminal outcome. Non-terminal outcomes are rejected.
func (t *Tally) Record(o types.Outcome) error {
	switch o {
	case types.OutcomeApplied:
		t.Applied++
	case types.OutcomeSkipped:
		t.Skipped++
	case types.OutcomeFailed:
		t.Failed++
	default:
		return fmt.Errorf("cannot tally non-terminal outcome %q", o)
	}
	t.Total++
	return nil
}

// Consistent reports whether Total equals Applied+Skipped+Failed.
func (t Tally) Consistent() bool {
	return t.Total == t.Applied+t.Skipped+t.Failed
}

func (t Tally) String() string {
	return fmt.Sprintf("applied=%d skipped=%d failed=%d total=%d", t.Applied, t.Skipped, t.Failed, t.Total)
}
