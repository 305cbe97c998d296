package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/migrationiq/migrationiq/internal/engine"
	"github.com/migrationiq/migrationiq/internal/ui"
)

const watchDebounce = 300 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the structural check and lint on every migration change",
	Long: `Watch observes the migration directories and re-runs 'check' plus 'lint'
whenever a migration file changes. Intended for local development while
writing a migration; exit with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return fmt.Errorf("watch has no JSON mode; run 'miq check --json' instead")
		}
		return runWatch(cmd.Context())
	},
}

func runWatch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	root := workDir
	if root == "" {
		root = "."
	}
	watched := 0
	for _, dir := range cfg.MigrationDirs {
		base := filepath.Join(root, dir)
		err := filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
			if err != nil || !entry.IsDir() {
				return nil
			}
			if strings.HasPrefix(entry.Name(), ".") && path != base {
				return filepath.SkipDir
			}
			if werr := watcher.Add(path); werr == nil {
				watched++
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if watched == 0 {
		return fmt.Errorf("nothing to watch under %s", strings.Join(cfg.MigrationDirs, ", "))
	}
	if !quietFlag {
		fmt.Printf("Watching %d directories. Ctrl-C to stop.\n", watched)
	}

	runOnce(ctx)

	// Editors fire bursts of events per save; coalesce them.
	var debounce *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(ev) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = watcher.Add(ev.Name)
					continue
				}
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		case <-fire:
			runOnce(ctx)
		}
	}
}

func relevantEvent(ev fsnotify.Event) bool {
	if ev.Op.Has(fsnotify.Chmod) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(ev.Name))
	if ext == ".py" || ext == ".sql" {
		return true
	}
	// Directory create/remove events carry no extension.
	return ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Remove)
}

// runOnce runs check + lint and prints a compact result block.
func runOnce(ctx context.Context) {
	fmt.Printf("\n%s %s\n", ui.MutedStyle.Render(time.Now().Format("15:04:05")), ui.HeaderStyle.Render("analyzing"))

	records, err := loadRecords(ctx)
	if err != nil {
		fmt.Println(ui.FailStyle.Render("error: " + err.Error()))
		return
	}
	eng := engine.New(cfg)
	res, err := eng.Check(records)
	if err != nil {
		fmt.Println(ui.FailStyle.Render("error: " + err.Error()))
		return
	}
	report := eng.Score(res.Findings, eng.Lint(records))
	if len(report.Findings) == 0 {
		fmt.Printf("%d migration(s), clean\n", res.Count)
		return
	}
	printFindings(report.Findings)
	printRisk(report)
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
