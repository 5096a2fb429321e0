package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/jparent/internal/config"
	"github.com/steveyegge/jparent/internal/tracker"
	"github.com/steveyegge/jparent/internal/types"
	"github.com/steveyegge/jparent/internal/ui"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show which issues would be updated, without contacting Jira",
	Long: `Classify every issue in a CSV export against --parent-key using only the
export's "Parent key" column. Nothing is read from or written to Jira, so the
target parent is not verified.

Examples:
  jparent plan --csv-file export.csv --parent-key PROJ-1
  jparent plan --csv-file export.csv --parent-key PROJ-1 --format json`,
	Run: func(cmd *cobra.Command, args []string) {
		bindings := map[string]string{
			"csv-file":   "csv-file",
			"parent-key": "parent-key",
			"issues":     "issues",
			"delimiter":  "delimiter",
			"no-pager":   "no-pager",
		}
		if err := config.BindFlags(cmd.Flags(), bindings); err != nil {
			FatalError("%v", err)
		}
		format := config.GetString("format")

		cfg, err := config.LoadRun(config.LoadOptions{Offline: true})
		if err != nil {
			fail(format, err)
		}

		var sb strings.Builder
		if err := runPlan(cfg, &sb); err != nil {
			fail(cfg.Format, err)
		}

		if cfg.Format != config.FormatText {
			fmt.Print(sb.String())
			return
		}
		opts := ui.PagerOptions{
			NoPager: config.GetBool("no-pager"),
			Command: config.GetString("pager"),
		}
		if err := ui.ToPager(os.Stdout, sb.String(), opts); err != nil {
			FatalError("%v", err)
		}
	},
}

func init() {
	addInputFlags(planCmd)
	planCmd.Flags().Bool("no-pager", false, "Do not pipe output through a pager")

	rootCmd.AddCommand(planCmd)
}

// planDocument is the machine-readable form of a plan.
type planDocument struct {
	Target string                `json:"target"`
	Apply  int                   `json:"apply"`
	Skip   int                   `json:"skip"`
	Total  int                   `json:"total"`
	Items  []tracker.PlannedItem `json:"items"`
}

func runPlan(cfg *config.RunConfig, out io.Writer) error {
	if _, err := os.Stat(cfg.CSVFile); err != nil {
		return fmt.Errorf("CSV file not found: %s", cfg.CSVFile)
	}
	records, err := loadRecords(cfg)
	if err != nil {
		return err
	}
	items := tracker.Plan(records, cfg.ParentKey)

	if cfg.Format == config.FormatText {
		banner := ui.RenderBanner(ui.Banner{
			CSVFile:   cfg.CSVFile,
			ParentKey: cfg.ParentKey,
			DryRun:    true,
			Issues:    cfg.Issues,
		})
		_, err := fmt.Fprintf(out, "%s\n%s", banner, ui.RenderPlan(items, cfg.ParentKey))
		return err
	}

	doc := planDocument{Target: cfg.ParentKey, Items: items, Total: len(items)}
	for _, item := range items {
		if item.Decision == types.DecisionSkip {
			doc.Skip++
		} else {
			doc.Apply++
		}
	}
	return writeStructured(out, cfg.Format, doc)
}
