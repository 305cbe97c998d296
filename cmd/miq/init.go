package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/migrationiq/migrationiq/internal/config"
	"github.com/migrationiq/migrationiq/internal/ui"
)

var (
	initForce    bool
	initDefaults bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a migrationiq.yaml config file",
	Long: `Init writes a migrationiq.yaml in the current directory. With a terminal
attached it walks through the main settings interactively; otherwise (or
with --defaults) it writes the default configuration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := workDir
		if dir == "" {
			dir = "."
		}
		path := filepath.Join(dir, "migrationiq.yaml")
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		c := config.Default()
		if !initDefaults && term.IsTerminal(int(os.Stdin.Fd())) {
			if err := promptConfig(c); err != nil {
				return fmt.Errorf("init aborted: %w", err)
			}
		}

		data, err := yaml.Marshal(c)
		if err != nil {
			return err
		}
		header := "# miq configuration. See 'miq rules' for rule ids.\n"
		if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
			return err
		}
		if !quietFlag {
			fmt.Println(ui.PassStyle.Render("Wrote " + path))
		}
		return nil
	},
}

// promptConfig walks through the main settings interactively.
func promptConfig(c *config.Config) error {
	dirs := strings.Join(c.MigrationDirs, ", ")
	threshold := strconv.Itoa(c.RiskThreshold)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Migration framework").
				Description("auto probes Django, then Alembic, then raw SQL").
				Options(
					huh.NewOption("Auto-detect", "auto"),
					huh.NewOption("Django", "django"),
					huh.NewOption("Alembic", "alembic"),
					huh.NewOption("Raw SQL files", "sql"),
				).
				Value(&c.Framework),
			huh.NewInput().
				Title("Migration directories").
				Description("Comma-separated, relative to the repo root").
				Value(&dirs),
			huh.NewInput().
				Title("Target branch").
				Description("Ref compared against by 'miq compare' and 'miq ready'").
				Value(&c.TargetBranch),
			huh.NewInput().
				Title("Risk threshold").
				Description("Total score above which 'miq protect' blocks the merge").
				Value(&threshold).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n < 0 {
						return fmt.Errorf("enter a non-negative integer")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Require two-step NOT NULL additions?").
				Value(&c.Rules.RequireTwoStepNonNull),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	c.MigrationDirs = c.MigrationDirs[:0]
	for _, d := range strings.Split(dirs, ",") {
		if d = strings.TrimSpace(d); d != "" {
			c.MigrationDirs = append(c.MigrationDirs, d)
		}
	}
	if len(c.MigrationDirs) == 0 {
		c.MigrationDirs = []string{"."}
	}
	c.RiskThreshold, _ = strconv.Atoi(strings.TrimSpace(threshold))
	return nil
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "Write defaults without prompting")
	rootCmd.AddCommand(initCmd)
}
