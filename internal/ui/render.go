package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/jparent/internal/tracker"
	"github.com/steveyegge/jparent/internal/types"
)

// Banner describes a run before it starts.
type Banner struct {
	CSVFile   string
	ParentKey string
	JiraURL   string // empty for offline commands
	Email     string
	DryRun    bool
	Issues    []string // allow-list; nil means every row
}

// RenderBanner renders the run header.
func RenderBanner(b Banner) string {
	var sb strings.Builder

	title := "Jira Parent Setter"
	if ShouldUseEmoji() {
		title = "🔗 " + title
	}
	sb.WriteString(RenderCategory(title) + "\n")
	sb.WriteString(RenderSeparator() + "\n")

	field := func(label, value string) {
		fmt.Fprintf(&sb, "  %-15s %s\n", label+":", value)
	}
	field("CSV file", b.CSVFile)
	field("Parent key", RenderAccent(b.ParentKey))
	if b.JiraURL != "" {
		field("Jira URL", b.JiraURL)
		if b.Email != "" {
			field("Email", b.Email)
		} else {
			field("Auth", "bearer token")
		}
	}
	if b.DryRun {
		field("Mode", RenderWarn("DRY RUN"))
	} else {
		field("Mode", "LIVE")
	}
	switch {
	case b.Issues == nil:
		field("Target issues", RenderMuted("All issues from CSV"))
	case len(b.Issues) == 0:
		field("Target issues", RenderWarn("none (--issues has no keys)"))
	default:
		field("Target issues", strings.Join(b.Issues, ", "))
	}
	return sb.String()
}

// RenderItem renders the progress line for one processed record. Records
// being re-parented get a second line naming the parent they had.
func RenderItem(item tracker.ItemResult, target string) string {
	key := item.Record.Key
	icon := RenderOutcomeIcon(item.Outcome)

	switch item.Outcome {
	case types.OutcomeSkipped:
		return fmt.Sprintf("%s %s already has parent %s, skipping", icon, key, target)

	case types.OutcomeApplied:
		var line string
		if item.WouldApply {
			line = fmt.Sprintf("%s %s Would set parent of %s to %s", icon, RenderWarn("[DRY RUN]"), key, target)
		} else {
			line = fmt.Sprintf("%s Set parent of %s to %s", icon, key, target)
		}
		if current, ok := item.Record.CurrentParentKey(); ok && current != "" {
			line += "\n  " + RenderMuted(TreeLast+"Current parent: "+current)
		}
		return line

	case types.OutcomeFailed:
		return fmt.Sprintf("%s Failed to process %s: %s", icon, key, RenderFail(itemErrorText(item)))

	default:
		return fmt.Sprintf("%s %s %s", icon, key, item.Outcome)
	}
}

// itemErrorText returns the cause of a failed item. Wrapper layers that only
// name the issue again ("failed to set parent of A-1: update issue A-1: ...")
// are dropped, since the progress line already shows the key.
func itemErrorText(item tracker.ItemResult) string {
	msg := item.Error
	if err := item.Err; err != nil {
		for item.Record.Key != "" {
			inner := errors.Unwrap(err)
			if inner == nil {
				break
			}
			prefix, ok := strings.CutSuffix(err.Error(), ": "+inner.Error())
			if !ok || !strings.Contains(prefix, item.Record.Key) {
				break
			}
			err = inner
		}
		msg = err.Error()
	}
	if msg == "" {
		msg = "unknown error"
	}
	return CompactLine(msg, DefaultErrorChars)
}

// RenderSummary renders the totals block printed after a run.
func RenderSummary(res *tracker.Result) string {
	var sb strings.Builder
	st := res.Stats

	sb.WriteString("\n" + RenderCategory("Summary") + "\n")
	sb.WriteString(RenderSeparator() + "\n")

	processed := fmt.Sprintf("%d", st.Applied)
	if st.Applied > 0 {
		processed = RenderPass(processed)
	}
	errCount := fmt.Sprintf("%d", st.Failed)
	if st.Failed > 0 {
		errCount = RenderFail(errCount)
	}
	fmt.Fprintf(&sb, "  %-11s %s\n", "Processed:", processed)
	fmt.Fprintf(&sb, "  %-11s %d\n", "Skipped:", st.Skipped)
	fmt.Fprintf(&sb, "  %-11s %s\n", "Errors:", errCount)
	fmt.Fprintf(&sb, "  %-11s %d\n", "Total:", st.Total)

	if failed := res.Failures(); len(failed) > 0 {
		keys := make([]string, 0, len(failed))
		for _, item := range failed {
			keys = append(keys, item.Record.Key)
		}
		sb.WriteString("\n" + RenderFailIcon() + " Failed issues: " + strings.Join(keys, ", ") + "\n")
	}

	if res.DryRun {
		sb.WriteString("\n" + RenderInfoIcon() + " This was a dry run. No changes were made.\n")
		sb.WriteString("  " + RenderMuted("Remove --dry-run to apply changes.") + "\n")
	}
	return sb.String()
}

// RenderPlan renders the offline classification of every record.
func RenderPlan(items []tracker.PlannedItem, target string) string {
	var sb strings.Builder

	sb.WriteString(RenderCategory("Plan for "+target) + "\n")
	sb.WriteString(RenderSeparator() + "\n")

	width := 0
	for _, item := range items {
		width = max(width, len(item.Record.Key))
	}

	apply, skip := 0, 0
	for _, item := range items {
		key := fmt.Sprintf("%-*s", width, item.Record.Key)
		if item.Decision == types.DecisionSkip {
			skip++
			fmt.Fprintf(&sb, "  %s %s  %s\n", RenderSkipIcon(), key, RenderMuted("already has parent "+target))
			continue
		}
		apply++
		note := "no parent"
		if current, ok := item.Record.CurrentParentKey(); ok && current != "" {
			note = "current parent " + current
		}
		fmt.Fprintf(&sb, "  %s %s  set parent %s\n", RenderPassIcon(), key, RenderMuted("("+note+")"))
	}

	fmt.Fprintf(&sb, "\n%d to apply, %d to skip, %d total\n", apply, skip, len(items))
	return sb.String()
}
