package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/migrationiq/migrationiq/internal/advice"
	"github.com/migrationiq/migrationiq/internal/telemetry"
	"github.com/migrationiq/migrationiq/internal/ui"
)

var (
	adviseTarget    string
	adviseNoCompare bool
	adviseModel     string
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Ask Claude for remediation guidance on the current findings",
	Long: `Advise runs the full analysis and sends the findings to the Anthropic API
for a per-finding remediation plan. Requires ANTHROPIC_API_KEY. Analysis
itself never needs the network; this command is the only one that does
(besides git fetches).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := telemetry.Tracer("").Start(cmd.Context(), "miq.advise")
		defer span.End()

		report, target, err := runGate(ctx, adviseTarget, false, adviseNoCompare)
		if err != nil {
			return err
		}
		if len(report.Risk.Findings) == 0 {
			if !quietFlag {
				fmt.Println(ui.PassStyle.Render("Migration history is clean; nothing to advise."))
			}
			return nil
		}
		if !quietFlag {
			printReport(report, target)
		}

		client, err := advice.NewClient("", adviseModel)
		if err != nil {
			return err
		}
		plan, err := client.Advise(ctx, &report.Risk)
		if err != nil {
			return fmt.Errorf("advise: %w", err)
		}
		if jsonOutput {
			return printJSON(map[string]string{"advice": plan})
		}
		fmt.Print(ui.RenderMarkdown(plan))
		raiseExit(report.Risk.Severity)
		return nil
	},
}

func init() {
	adviseCmd.Flags().StringVarP(&adviseTarget, "target", "t", "", "Target ref to compare against (default: config target_branch)")
	adviseCmd.Flags().BoolVar(&adviseNoCompare, "no-compare", false, "Skip the branch comparison")
	adviseCmd.Flags().StringVar(&adviseModel, "model", "", "Anthropic model id (default: "+advice.DefaultModel+")")
	rootCmd.AddCommand(adviseCmd)
}
