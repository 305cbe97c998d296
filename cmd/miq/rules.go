package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/migrationiq/migrationiq/internal/rules"
	"github.com/migrationiq/migrationiq/internal/ui"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the lint rule registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lintCfg := cfg.LintConfig()
		if jsonOutput {
			type ruleInfo struct {
				ID          string `json:"id"`
				Category    string `json:"category"`
				Description string `json:"description"`
				Enabled     bool   `json:"enabled"`
			}
			var out []ruleInfo
			for _, r := range rules.Registry() {
				out = append(out, ruleInfo{r.ID, string(r.Category), r.Description, r.Enabled(lintCfg)})
			}
			return printJSON(out)
		}
		for _, r := range rules.Registry() {
			state := ui.PassStyle.Render("enabled ")
			if !r.Enabled(lintCfg) {
				state = ui.MutedStyle.Render("disabled")
			}
			fmt.Printf("  %s  %-28s %s\n", state, r.ID, r.Description)
		}
		return nil
	},
}

var rulesExplainCmd = &cobra.Command{
	Use:   "explain <rule-id>",
	Short: "Show the remediation guide for a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, ok := rules.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown rule %q (see 'miq rules')", args[0])
		}
		fmt.Print(ui.RenderMarkdown(r.Doc))
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesExplainCmd)
	rootCmd.AddCommand(rulesCmd)
}
