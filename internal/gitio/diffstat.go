package gitio

import (
	"context"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ChangeStatus classifies how a file changed between two refs.
type ChangeStatus string

const (
	StatusAdded    ChangeStatus = "added"
	StatusModified ChangeStatus = "modified"
	StatusDeleted  ChangeStatus = "deleted"
)

// FileChange summarizes one changed file in a ref-to-ref diff.
type FileChange struct {
	Path         string       `json:"path"`
	Status       ChangeStatus `json:"status"`
	LinesAdded   int          `json:"lines_added"`
	LinesDeleted int          `json:"lines_deleted"`
}

// DiffMigrationFiles diffs two refs restricted to the migration directories
// and classifies each changed migration file. Used by `miq compare` to show
// what actually moved between the branches.
func (c *Client) DiffMigrationFiles(ctx context.Context, a, b string, dirs []string) ([]FileChange, error) {
	args := []string{"diff", a, b}
	if len(dirs) > 0 {
		args = append(args, "--")
		args = append(args, dirs...)
	}
	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	return ClassifyDiff([]byte(out))
}

// ClassifyDiff parses a unified diff and reduces it to per-file change
// summaries, keeping only migration-shaped files (.py, .sql).
func ClassifyDiff(unified []byte) ([]FileChange, error) {
	fds, err := diff.ParseMultiFileDiff(unified)
	if err != nil {
		return nil, err
	}
	var changes []FileChange
	for _, fd := range fds {
		orig := stripDiffPrefix(fd.OrigName)
		next := stripDiffPrefix(fd.NewName)

		fc := FileChange{Path: next, Status: StatusModified}
		switch {
		case orig == "/dev/null" || orig == "":
			fc.Status = StatusAdded
		case next == "/dev/null" || next == "":
			fc.Status = StatusDeleted
			fc.Path = orig
		}
		if !isMigrationFile(fc.Path) {
			continue
		}

		stat := fd.Stat()
		fc.LinesAdded = int(stat.Added + stat.Changed)
		fc.LinesDeleted = int(stat.Deleted + stat.Changed)
		changes = append(changes, fc)
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

func stripDiffPrefix(name string) string {
	if name == "/dev/null" {
		return name
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

// isMigrationFile applies the same shape heuristic the original migration
// tooling conventions use: .sql anywhere, .py inside a migrations/ or
// versions/ directory.
func isMigrationFile(path string) bool {
	switch {
	case strings.HasSuffix(path, ".sql"):
		return true
	case strings.HasSuffix(path, ".py"):
		parts := strings.Split(path, "/")
		for _, p := range parts {
			if p == "migrations" || p == "versions" {
				return true
			}
		}
	}
	return false
}
