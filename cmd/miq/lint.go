package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/migrationiq/migrationiq/internal/engine"
	"github.com/migrationiq/migrationiq/internal/telemetry"
)

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Lint migration operations for risky schema changes",
	Long: `Lint runs every enabled rule against every operation of every migration:
destructive drops, NOT NULL columns without defaults, lossy type changes,
and in-place alterations of large tables. Rules toggle via configuration;
see 'miq rules' for the registry.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := telemetry.Tracer("").Start(cmd.Context(), "miq.lint")
		defer span.End()

		records, err := loadRecords(ctx)
		if err != nil {
			return err
		}
		eng := engine.New(cfg)
		findings := eng.Lint(records)
		report := eng.Score(findings)

		if jsonOutput {
			return printJSON(report)
		}
		if len(report.Findings) == 0 {
			if !quietFlag {
				fmt.Printf("Checked %d migration(s); no lint findings.\n", len(records))
			}
		} else {
			printHeader("Lint findings")
			printFindings(report.Findings)
		}
		printRisk(report)
		raiseExit(report.Severity)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)
}
