package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/jparent/internal/config"
	"github.com/steveyegge/jparent/internal/debug"
	"github.com/steveyegge/jparent/internal/jira"
	"github.com/steveyegge/jparent/internal/telemetry"
)

var (
	configPath  string
	formatFlag  string
	verboseFlag bool
	quietFlag   bool

	rootCtx    = context.Background()
	rootCancel context.CancelFunc = func() {}
)

// globalBindings maps config keys to the root persistent flags.
var globalBindings = map[string]string{
	"format":  "format",
	"verbose": "verbose",
	"quiet":   "quiet",
}

var rootCmd = &cobra.Command{
	Use:   "jparent",
	Short: "jparent - set the parent of Jira issues from a CSV export",
	Long: `Link every issue in a Jira CSV export to one parent issue.

Issues whose "Parent key" column already names the target are skipped; the
rest are updated one at a time through the Jira REST API. A failure on one
issue is reported and counted but never stops the batch.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("jparent version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()

		if err := config.InitializeWithFile(configPath); err != nil {
			FatalError("%v", err)
		}
		if err := config.BindFlags(cmd.Flags(), globalBindings); err != nil {
			FatalError("%v", err)
		}
		debug.SetVerbose(config.GetBool("verbose"))
		debug.SetQuiet(config.GetBool("quiet"))
		if used := config.ConfigFileUsed(); used != "" {
			debug.Logf("using config file %s\n", used)
		}

		jira.UserAgent = "jparent/" + Version
		if err := telemetry.Init(rootCtx, config.LoadTelemetry(Version)); err != nil {
			WarnError("telemetry disabled: %v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./.jparent.yaml, then the user config dir)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// shutdown flushes telemetry and releases the signal handler. It is safe to
// call more than once.
func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	telemetry.Shutdown(ctx)
	rootCancel()
}

// exit shuts down and terminates the process with code.
func exit(code int) {
	shutdown()
	os.Exit(code)
}
