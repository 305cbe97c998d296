package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/migrationiq/migrationiq/internal/engine"
	"github.com/migrationiq/migrationiq/internal/telemetry"
	"github.com/migrationiq/migrationiq/internal/types"
)

var (
	readyTarget    string
	readyFetch     bool
	readyNoCompare bool
)

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Run the full pre-merge gate",
	Long: `Ready runs everything: the structural check, the lint rules, and (inside a
git repository) the branch comparison against the target. All findings are
aggregated into one risk report; the exit code reflects its severity tier.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := telemetry.Tracer("").Start(cmd.Context(), "miq.ready")
		defer span.End()

		report, target, err := runGate(ctx, readyTarget, readyFetch, readyNoCompare)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(report)
		}
		printReport(report, target)
		raiseExit(report.Risk.Severity)
		return nil
	},
}

// runGate loads the working tree's records, optionally materializes the
// target branch, and runs the full analysis. Comparison is skipped when
// noCompare is set; a missing git repository is fatal otherwise, since a
// silently skipped comparison would weaken the gate.
func runGate(ctx context.Context, target string, fetch, noCompare bool) (*engine.Report, string, error) {
	if target == "" {
		target = cfg.TargetBranch
	}
	local, err := loadRecords(ctx)
	if err != nil {
		return nil, "", err
	}

	var targetRecords []types.MigrationRecord
	if !noCompare {
		_, targetRecords, err = loadTargetRecords(ctx, target, fetch)
		if err != nil {
			return nil, "", err
		}
		if targetRecords == nil {
			targetRecords = []types.MigrationRecord{}
		}
	}

	eng := engine.New(cfg)
	report, err := eng.Ready(ctx, local, targetRecords)
	if err != nil {
		return nil, "", err
	}
	return report, target, nil
}

func init() {
	readyCmd.Flags().StringVarP(&readyTarget, "target", "t", "", "Target ref to compare against (default: config target_branch)")
	readyCmd.Flags().BoolVar(&readyFetch, "fetch", false, "Fetch the target's remote before comparing")
	readyCmd.Flags().BoolVar(&readyNoCompare, "no-compare", false, "Skip the branch comparison")
	rootCmd.AddCommand(readyCmd)
}
