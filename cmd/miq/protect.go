package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/migrationiq/migrationiq/internal/engine"
	"github.com/migrationiq/migrationiq/internal/telemetry"
	"github.com/migrationiq/migrationiq/internal/ui"
)

var (
	protectTarget    string
	protectFetch     bool
	protectNoCompare bool
	protectThreshold int
)

var protectCmd = &cobra.Command{
	Use:   "protect",
	Short: "Enforce the risk threshold (CI gate)",
	Long: `Protect runs the same analysis as 'miq ready' and then enforces the
configured risk threshold: any total score above it exits 2 regardless of
the severity tier. Wire this into CI to block merges.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := telemetry.Tracer("").Start(cmd.Context(), "miq.protect")
		defer span.End()

		threshold := protectThreshold
		if !cmd.Flags().Changed("threshold") {
			threshold = cfg.RiskThreshold
		}

		report, target, err := runGate(ctx, protectTarget, protectFetch, protectNoCompare)
		if err != nil {
			return err
		}
		blocked := report.ExceedsThreshold(threshold)

		if jsonOutput {
			if err := printJSON(struct {
				Blocked   bool `json:"blocked"`
				Threshold int  `json:"threshold"`
				*engine.Report
			}{blocked, threshold, report}); err != nil {
				return err
			}
		} else {
			printReport(report, target)
			if blocked {
				fmt.Println(ui.FailStyle.Render(fmt.Sprintf(
					"BLOCKED: risk score %d exceeds threshold %d", report.Risk.TotalScore, threshold)))
			} else if !quietFlag {
				fmt.Println(ui.PassStyle.Render(fmt.Sprintf(
					"OK: risk score %d within threshold %d", report.Risk.TotalScore, threshold)))
			}
		}

		if blocked {
			exitCode = 2
		} else {
			raiseExit(report.Risk.Severity)
		}
		return nil
	},
}

func init() {
	protectCmd.Flags().StringVarP(&protectTarget, "target", "t", "", "Target ref to compare against (default: config target_branch)")
	protectCmd.Flags().BoolVar(&protectFetch, "fetch", false, "Fetch the target's remote before comparing")
	protectCmd.Flags().BoolVar(&protectNoCompare, "no-compare", false, "Skip the branch comparison")
	protectCmd.Flags().IntVar(&protectThreshold, "threshold", 0, "Risk score threshold (default: config risk_threshold)")
	rootCmd.AddCommand(protectCmd)
}
