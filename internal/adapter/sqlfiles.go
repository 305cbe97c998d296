package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/migrationiq/migrationiq/internal/types"
)

// SQL discovers plain *.sql migration files. Each file is one migration;
// its id is the file name without extension. Dependencies come from a
// `-- depends: a, b` header comment, falling back to an implicit linear
// chain on the previous file (lexical order) within the same directory,
// which is how most hand-rolled SQL migration setups behave.
type SQL struct {
	root string
	dirs []string
}

// NewSQL creates a SQL-directory adapter rooted at root, scanning dirs
// (relative to root; empty means the root itself).
func NewSQL(root string, dirs []string) *SQL {
	return &SQL{root: root, dirs: dirs}
}

func (s *SQL) Name() string { return "sql" }

// Detect reports whether any .sql file exists under the configured dirs.
func (s *SQL) Detect() bool {
	found := false
	s.walkSQLDirs(func(string, []string) { found = true })
	return found
}

var (
	sqlDependsRe = regexp.MustCompile(`(?m)^--\s*depends:\s*(.+)$`)
	sqlRowsRe    = regexp.MustCompile(`(?m)^--\s*rows:\s*(\d+)\s*$`)
)

func (s *SQL) Discover() ([]types.MigrationRecord, error) {
	var records []types.MigrationRecord
	var walkErr error
	s.walkSQLDirs(func(dir string, files []string) {
		sort.Strings(files)
		prev := ""
		for _, path := range files {
			rec, err := s.parseFile(path, prev)
			if err != nil {
				walkErr = err
				return
			}
			records = append(records, rec)
			prev = rec.ID
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return records, nil
}

func (s *SQL) parseFile(path, prevID string) (types.MigrationRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.MigrationRecord{}, fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rec := types.MigrationRecord{
		ID:         id,
		SourcePath: path,
		Operations: ParseSQLOperations(content),
	}

	if m := sqlDependsRe.FindStringSubmatch(content); m != nil {
		for _, dep := range strings.Split(m[1], ",") {
			if dep = strings.TrimSpace(dep); dep != "" {
				rec.Dependencies = append(rec.Dependencies, dep)
			}
		}
	} else if prevID != "" {
		rec.Dependencies = []string{prevID}
	}

	// `-- rows: N` annotates the file's table alterations with a row
	// estimate when no live stats source is configured.
	if m := sqlRowsRe.FindStringSubmatch(content); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			for i := range rec.Operations {
				if rec.Operations[i].AltersTable() {
					rec.Operations[i].EstimatedRowCount = int64Ptr(n)
				}
			}
		}
	}

	return rec, nil
}

// walkSQLDirs invokes fn once per directory that contains .sql files.
func (s *SQL) walkSQLDirs(fn func(dir string, files []string)) {
	dirs := s.dirs
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, d := range dirs {
		base := filepath.Join(s.root, d)
		byDir := make(map[string][]string)
		_ = filepath.WalkDir(base, func(path string, entry os.DirEntry, err error) error {
			if err != nil || entry.IsDir() {
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), ".sql") {
				dir := filepath.Dir(path)
				byDir[dir] = append(byDir[dir], path)
			}
			return nil
		})
		var dirNames []string
		for dir := range byDir {
			dirNames = append(dirNames, dir)
		}
		sort.Strings(dirNames)
		for _, dir := range dirNames {
			fn(dir, byDir[dir])
		}
	}
}
