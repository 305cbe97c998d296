package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/migrationiq/migrationiq/internal/adapter"
	"github.com/migrationiq/migrationiq/internal/engine"
	"github.com/migrationiq/migrationiq/internal/gitio"
	"github.com/migrationiq/migrationiq/internal/telemetry"
	"github.com/migrationiq/migrationiq/internal/types"
	"github.com/migrationiq/migrationiq/internal/ui"
)

var (
	compareTarget string
	compareFetch  bool
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare migration history against a target branch",
	Long: `Compare parses the migrations at the target ref (without checking it out)
and analyzes divergence from the working tree: migrations only on one side,
a local branch behind the target, parallel migrations from a shared base,
and merges that would break the graph.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := telemetry.Tracer("").Start(cmd.Context(), "miq.compare")
		defer span.End()

		target := compareTarget
		if target == "" {
			target = cfg.TargetBranch
		}

		local, err := loadRecords(ctx)
		if err != nil {
			return err
		}
		git, targetRecords, err := loadTargetRecords(ctx, target, compareFetch)
		if err != nil {
			return err
		}
		status, err := git.BranchStatus(ctx, target)
		if err != nil {
			status = nil
			if !quietFlag {
				fmt.Println(ui.WarnStyle.Render(fmt.Sprintf("warning: branch status unavailable: %v", err)))
			}
		}

		eng := engine.New(cfg)
		res, err := eng.Compare(ctx, local, targetRecords)
		if err != nil {
			return err
		}
		report := eng.Score(res.Findings)

		if jsonOutput {
			return printJSON(struct {
				Target string              `json:"target"`
				Status *gitio.BranchStatus `json:"branch_status,omitempty"`
				*engine.Report
			}{target, status, &engine.Report{Comparison: res, Risk: report}})
		}

		printComparison(res, target)
		if status != nil && !quietFlag {
			if status.MergeBase == "" {
				fmt.Printf("Branch %s shares no commit history with %s\n", status.Branch, target)
			} else {
				fmt.Printf("Branch %s: %d commit(s) ahead, %d behind %s, %d file(s) changed\n",
					status.Branch, status.CommitsAhead, status.CommitsBehind, target, len(status.ChangedFiles))
			}
		}
		if verboseFlag {
			if changes, err := git.DiffMigrationFiles(ctx, target, "HEAD", cfg.MigrationDirs); err == nil && len(changes) > 0 {
				printHeader("Changed migration files")
				for _, ch := range changes {
					fmt.Printf("  %-8s %s (+%d -%d)\n", ch.Status, ch.Path, ch.LinesAdded, ch.LinesDeleted)
				}
			}
		}
		printRisk(report)
		raiseExit(report.Severity)
		return nil
	},
}

// loadTargetRecords materializes the migration files at ref into a temporary
// tree and parses them with the configured adapter. The working tree is never
// touched.
func loadTargetRecords(ctx context.Context, ref string, fetch bool) (*gitio.Client, []types.MigrationRecord, error) {
	git := gitio.NewClient(workDir)
	if !git.IsRepo(ctx) {
		return nil, nil, fmt.Errorf("not a git repository (comparison needs one); run from a repo or pass --dir")
	}
	if fetch {
		remote := "origin"
		if i := strings.IndexByte(ref, '/'); i > 0 {
			remote = ref[:i]
		}
		if err := git.Fetch(ctx, remote); err != nil {
			if !quietFlag {
				fmt.Println(ui.WarnStyle.Render(fmt.Sprintf("warning: fetch %s failed, comparing against local refs: %v", remote, err)))
			}
		}
	}
	tmp, cleanup, err := git.MaterializeRef(ctx, ref, cfg.MigrationDirs)
	if err != nil {
		return nil, nil, fmt.Errorf("materialize %s: %w", ref, err)
	}
	defer cleanup()

	records, err := adapter.Discover(cfg.Framework, tmp, cfg.MigrationDirs)
	if err != nil {
		return nil, nil, fmt.Errorf("discover migrations at %s: %w", ref, err)
	}
	return git, records, nil
}

func init() {
	compareCmd.Flags().StringVarP(&compareTarget, "target", "t", "", "Target ref to compare against (default: config target_branch)")
	compareCmd.Flags().BoolVar(&compareFetch, "fetch", false, "Fetch the target's remote before comparing")
	rootCmd.AddCommand(compareCmd)
}
