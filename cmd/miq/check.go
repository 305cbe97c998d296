package main

import (
	"github.com/spf13/cobra"

	"github.com/migrationiq/migrationiq/internal/engine"
	"github.com/migrationiq/migrationiq/internal/telemetry"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Analyze the migration graph for structural defects",
	Long: `Check builds the dependency graph from the working tree's migrations and
reports structural defects: missing dependencies, cycles, multiple heads,
and orphaned migrations. Findings are scored and the exit code reflects the
severity tier (0 LOW, 1 MEDIUM, 2 HIGH/CRITICAL).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := telemetry.Tracer("").Start(cmd.Context(), "miq.check")
		defer span.End()

		records, err := loadRecords(ctx)
		if err != nil {
			return err
		}
		eng := engine.New(cfg)
		res, err := eng.Check(records)
		if err != nil {
			return err
		}
		report := eng.Score(res.Findings)

		if jsonOutput {
			return printJSON(struct {
				*engine.CheckResult
				TotalScore int    `json:"total_score"`
				Severity   string `json:"severity"`
			}{res, report.TotalScore, string(report.Severity)})
		}
		printCheckResult(res, report)
		raiseExit(report.Severity)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
