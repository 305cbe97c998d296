// Command miq analyzes database schema migration history: it builds the
// migration dependency graph, detects structural defects, lints individual
// operations for risky schema changes, and scores the result as a pre-merge
// gate.
//
// Exit codes: 0 for a clean or LOW-risk run, 1 for MEDIUM, 2 for
// HIGH/CRITICAL or any fatal error.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/migrationiq/migrationiq/internal/adapter"
	"github.com/migrationiq/migrationiq/internal/config"
	"github.com/migrationiq/migrationiq/internal/stats"
	"github.com/migrationiq/migrationiq/internal/telemetry"
	"github.com/migrationiq/migrationiq/internal/types"
	"github.com/migrationiq/migrationiq/internal/ui"
)

// Version information, injected at build time via -ldflags.
var (
	version = "0.3.0-dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	cfgPath     string
	workDir     string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool
	noColorFlag bool

	cfg *config.Config

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	// exitCode accumulates the worst severity seen this run.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "miq",
	Short: "Migration graph and risk analysis",
	Long: `miq inspects a repository's schema migration history before merge.

It builds the dependency graph across all migrations, flags structural
defects (cycles, multiple heads, missing dependencies, orphans), lints
operations for risky schema changes (destructive drops, lossy type changes,
NOT NULL without a default), compares branches for divergence, and reduces
everything to a single weighted risk score.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetNoColor(noColorFlag)
		if noColorFlag {
			color.NoColor = true
		}

		// init must run before a config exists; version and help never
		// need one.
		switch cmd.Name() {
		case "init", "version", "help":
			return nil
		}

		var err error
		cfg, err = config.Load(cfgPath, workDir)
		if err != nil {
			return err
		}
		if err := telemetry.Init(cmd.Context(), "miq", version); err != nil && verboseFlag {
			fmt.Fprintf(os.Stderr, "warning: telemetry init: %v\n", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Config file path (default: discover migrationiq.yaml upward from the working directory)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", "", "Repository root to analyze (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
}

// loadRecords discovers and parses the working tree's migration files, then
// fills row-count hints from the configured stats catalog when one is set.
// Stats failures degrade to un-annotated records; parse failures are fatal.
func loadRecords(ctx context.Context) ([]types.MigrationRecord, error) {
	root := workDir
	if root == "" {
		root = "."
	}
	records, err := adapter.Discover(cfg.Framework, root, cfg.MigrationDirs)
	if err != nil {
		return nil, fmt.Errorf("discover migrations: %w", err)
	}
	if cfg.StatsDSN != "" {
		p, err := stats.Open(ctx, cfg.StatsDSN)
		if err != nil {
			if !quietFlag {
				fmt.Fprintf(os.Stderr, "warning: row stats unavailable: %v\n", err)
			}
			return records, nil
		}
		defer p.Close(ctx)
		stats.Annotate(ctx, p, records)
	}
	return records, nil
}

// raiseExit records the exit code implied by a severity tier, keeping the
// worst one seen across the run.
func raiseExit(s types.Severity) {
	code := 0
	switch s {
	case types.SeverityMedium:
		code = 1
	case types.SeverityHigh, types.SeverityCritical:
		code = 2
	}
	if code > exitCode {
		exitCode = code
	}
}

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	err := rootCmd.ExecuteContext(rootCtx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	telemetry.Shutdown(shutdownCtx)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(2)
	}
	os.Exit(exitCode)
}
