package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/steveyegge/jparent/internal/audit"
	"github.com/steveyegge/jparent/internal/config"
	"github.com/steveyegge/jparent/internal/debug"
	"github.com/steveyegge/jparent/internal/importer"
	"github.com/steveyegge/jparent/internal/tracker"
	"github.com/steveyegge/jparent/internal/types"
	"github.com/steveyegge/jparent/internal/ui"
)

// trackerName is the backend runs are applied against.
const trackerName = "jira"

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the parent of every issue in a CSV export",
	Long: `Set the parent of every issue in a Jira CSV export to --parent-key.

The export must have "Issue key" and "Issue id" columns. When it also has a
"Parent key" column, issues already linked to the target are skipped without
calling Jira. The target parent is verified once before anything is changed.

Configuration (flags override environment, which overrides .jparent.yaml):
  --jira-url   jira.url        JIRA_URL
  --email      jira.email      JIRA_EMAIL      (omit for bearer-token auth)
  --pat        jira.api_token  JIRA_API_TOKEN

Examples:
  jparent set --csv-file export.csv --parent-key PROJ-1 --dry-run
  jparent set --csv-file export.csv --parent-key PROJ-1 --issues PROJ-7,PROJ-9
  jparent set --csv-file export.csv --parent-key PROJ-1 --yes --audit-log runs.jsonl`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.BindFlags(cmd.Flags(), setBindings); err != nil {
			FatalError("%v", err)
		}
		format := config.GetString("format")

		cfg, err := config.LoadRun(config.LoadOptions{})
		if err != nil {
			fail(format, err)
		}

		res, err := runSet(rootCtx, cfg, os.Stdout)
		if errors.Is(err, errCancelled) {
			debug.PrintNormal("Cancelled. No changes were made.\n")
			return
		}
		if err != nil {
			fail(cfg.Format, err)
		}
		if !res.Success() {
			exit(1)
		}
	},
}

// setBindings maps config keys to the set command's flags.
var setBindings = map[string]string{
	"csv-file":       "csv-file",
	"parent-key":     "parent-key",
	"issues":         "issues",
	"dry-run":        "dry-run",
	"yes":            "yes",
	"delimiter":      "delimiter",
	"audit-log":      "audit-log",
	"jira.url":       "jira-url",
	"jira.email":     "email",
	"jira.api_token": "pat",
}

func init() {
	addInputFlags(setCmd)
	setCmd.Flags().Bool("dry-run", false, "Show what would change without updating Jira")
	setCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	setCmd.Flags().String("jira-url", "", "Jira base URL (e.g. https://company.atlassian.net)")
	setCmd.Flags().String("email", "", "Jira account email for basic auth")
	setCmd.Flags().String("pat", "", "Jira API token or personal access token")
	setCmd.Flags().String("audit-log", "", "Append a JSON-lines record of the run to this file")

	rootCmd.AddCommand(setCmd)
}

// addInputFlags registers the flags shared by set and plan.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("csv-file", "", "Path to the Jira CSV export")
	cmd.Flags().String("parent-key", "", "Key of the parent issue (e.g. PROJ-123) or its browse URL")
	cmd.Flags().String("issues", "", "Comma-separated issue keys to process (default: all rows)")
	cmd.Flags().String("delimiter", ",", `Field delimiter: a single character, or "tab"`)
}

// errCancelled is returned when the operator declines the confirmation prompt.
var errCancelled = errors.New("cancelled")

// Overridden in tests.
var (
	confirmFn     = ui.Confirm
	isInteractive = ui.IsInteractive
)

// runSet loads the export, applies the parent link through the configured
// tracker, and writes the result to out. Progress lines go through the
// debug package so --quiet silences them.
func runSet(ctx context.Context, cfg *config.RunConfig, out io.Writer) (*tracker.Result, error) {
	text := cfg.Format == config.FormatText

	if _, err := os.Stat(cfg.CSVFile); err != nil {
		return nil, fmt.Errorf("CSV file not found: %s", cfg.CSVFile)
	}

	if text {
		debug.PrintNormal("%s\n", ui.RenderBanner(ui.Banner{
			CSVFile:   cfg.CSVFile,
			ParentKey: cfg.ParentKey,
			JiraURL:   cfg.Jira.URL,
			Email:     cfg.Jira.Email,
			DryRun:    cfg.DryRun,
			Issues:    cfg.Issues,
		}))
	}

	records, err := loadRecords(cfg)
	if err != nil {
		return nil, err
	}

	if !cfg.DryRun && !cfg.Yes && text && isInteractive() {
		ok, err := confirmRun(records, cfg.ParentKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errCancelled
		}
	}

	t, err := tracker.NewTracker(trackerName)
	if err != nil {
		return nil, err
	}
	if err := t.Init(ctx, tracker.NewConfig(t.ConfigPrefix(), cfg.Jira)); err != nil {
		return nil, fmt.Errorf("initializing %s tracker: %w", t.DisplayName(), err)
	}
	defer func() { _ = t.Close() }()

	var alog *audit.Log
	if cfg.AuditLog != "" {
		if alog, err = audit.Open(cfg.AuditLog); err != nil {
			return nil, err
		}
		defer func() {
			if err := alog.Close(); err != nil {
				WarnError("closing audit log: %v", err)
			}
		}()
	}

	runID := uuid.NewString()
	alog.RunStart(runID, t.Name(), cfg.ParentKey, cfg.DryRun, len(records))

	engine := tracker.NewEngine(tracker.Instrument(t))
	engine.OnMessage = func(msg string) {
		if text {
			debug.PrintNormal("%s\n", msg)
		} else {
			debug.Logf("%s\n", msg)
		}
	}
	engine.OnWarning = func(msg string) { debug.Warnf("%s", msg) }
	engine.OnItem = func(item tracker.ItemResult) {
		alog.Item(runID, item)
		if text {
			debug.PrintNormal("%s\n", ui.RenderItem(item, cfg.ParentKey))
		} else if item.Err != nil {
			debug.Logf("%s: %v\n", item.Record.Key, item.Err)
		}
	}

	res, err := engine.Run(ctx, records, tracker.Options{
		Target: cfg.ParentKey,
		DryRun: cfg.DryRun,
		RunID:  runID,
	})
	if err != nil {
		alog.RunAbort(runID, err)
		return nil, err
	}
	alog.RunEnd(runID, res.Stats)

	if text {
		_, err = fmt.Fprint(out, ui.RenderSummary(res))
	} else {
		err = writeStructured(out, cfg.Format, res)
	}
	return res, err
}

// loadRecords parses the export and applies the --issues allow-list.
func loadRecords(cfg *config.RunConfig) ([]types.IssueRecord, error) {
	parsed, err := importer.ParseFile(cfg.CSVFile, importer.Options{
		Delimiter: cfg.Delimiter,
		OnWarning: func(w importer.RowWarning) {
			debug.Warnf("skipping %s", w)
		},
	})
	if err != nil {
		return nil, err
	}
	debug.Logf("parsed %d issues from %s (%d rows skipped)\n", len(parsed.Records), cfg.CSVFile, len(parsed.Warnings))

	records := importer.FilterKeys(parsed.Records, cfg.Issues)
	if cfg.Issues != nil {
		warnMissingKeys(records, cfg.Issues)
		debug.Logf("filtered to %d of %d issues\n", len(records), len(parsed.Records))
	}
	if len(records) == 0 {
		return nil, tracker.ErrNoIssues
	}
	return records, nil
}

// warnMissingKeys reports allow-listed keys that matched no row.
func warnMissingKeys(records []types.IssueRecord, keys []string) {
	found := make(map[string]bool, len(records))
	for _, r := range records {
		found[r.Key] = true
	}
	for _, k := range keys {
		if !found[k] {
			debug.Warnf("issue %s not found in CSV", k)
		}
	}
}

func confirmRun(records []types.IssueRecord, target string) (bool, error) {
	apply := 0
	for _, item := range tracker.Plan(records, target) {
		if item.Decision == types.DecisionApply {
			apply++
		}
	}
	title := fmt.Sprintf("Set parent of %d issue(s) to %s?", apply, target)
	desc := fmt.Sprintf("%d already linked and will be skipped.", len(records)-apply)
	return confirmFn(title, desc)
}
