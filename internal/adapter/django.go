package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/migrationiq/migrationiq/internal/types"
)

// Django discovers and parses Django migration files. Parsing is pattern
// recognition over the migration source, not a Python parser: the generated
// files are regular enough that the dependency list and operation calls can
// be extracted reliably.
type Django struct {
	root string
	dirs []string
}

// NewDjango creates a Django adapter rooted at root.
func NewDjango(root string, dirs []string) *Django {
	return &Django{root: root, dirs: dirs}
}

func (d *Django) Name() string { return "django" }

// Detect looks for manage.py or any migrations/__init__.py package.
func (d *Django) Detect() bool {
	if _, err := os.Stat(filepath.Join(d.root, "manage.py")); err == nil {
		return true
	}
	return len(d.migrationDirs()) > 0
}

func (d *Django) Discover() ([]types.MigrationRecord, error) {
	var records []types.MigrationRecord
	for _, migDir := range d.migrationDirs() {
		appLabel := filepath.Base(filepath.Dir(migDir))
		entries, err := os.ReadDir(migDir)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", migDir, err)
		}
		var names []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".py") || name == "__init__.py" {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			path := filepath.Join(migDir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			rec := parseDjangoMigration(string(data), appLabel, name)
			rec.SourcePath = path
			records = append(records, rec)
		}
	}
	return records, nil
}

// migrationDirs returns every directory named "migrations" that contains an
// __init__.py, sorted.
func (d *Django) migrationDirs() []string {
	roots := d.dirs
	if len(roots) == 0 {
		roots = []string{"."}
	}
	var out []string
	for _, r := range roots {
		base := filepath.Join(d.root, r)
		_ = filepath.WalkDir(base, func(path string, entry os.DirEntry, err error) error {
			if err != nil || !entry.IsDir() {
				return nil
			}
			if entry.Name() == "migrations" {
				if _, err := os.Stat(filepath.Join(path, "__init__.py")); err == nil {
					out = append(out, path)
				}
				return filepath.SkipDir
			}
			return nil
		})
	}
	sort.Strings(out)
	return out
}

var (
	djangoDepTupleRe = regexp.MustCompile(`\(\s*['"]([\w]+)['"]\s*,\s*['"]([\w]+)['"]\s*\)`)
	djangoOpCallRe   = regexp.MustCompile(`migrations\.(\w+)\s*\(`)
	djangoKwargRe    = regexp.MustCompile(`\b(model_name|name)\s*=\s*['"]([\w]+)['"]`)
	djangoFieldRe    = regexp.MustCompile(`\bmodels\.(\w+)\s*\(`)
	djangoMaxLenRe   = regexp.MustCompile(`\bmax_length\s*=\s*(\d+)`)
	djangoNullFalse  = regexp.MustCompile(`\bnull\s*=\s*False\b`)
	djangoDefaultRe  = regexp.MustCompile(`\bdefault\s*=`)
	djangoRunSQLArg  = regexp.MustCompile(`(?s)['"]{1,3}(.*?)['"]{1,3}`)
)

func parseDjangoMigration(source, appLabel, fileName string) types.MigrationRecord {
	rec := types.MigrationRecord{
		ID:       appLabel + "." + strings.TrimSuffix(fileName, ".py"),
		AppLabel: appLabel,
	}

	if block, ok := extractBracketBlock(source, "dependencies"); ok {
		for _, m := range djangoDepTupleRe.FindAllStringSubmatch(block, -1) {
			app, name := m[1], m[2]
			if name == "__first__" || name == "__latest__" {
				continue
			}
			rec.Dependencies = append(rec.Dependencies, app+"."+name)
		}
	}

	opsBlock, ok := extractBracketBlock(source, "operations")
	if !ok {
		return rec
	}
	for _, loc := range djangoOpCallRe.FindAllStringSubmatchIndex(opsBlock, -1) {
		opName := opsBlock[loc[2]:loc[3]]
		call := scanCall(opsBlock, loc[1]-1)
		rec.Operations = append(rec.Operations, djangoOperations(opName, call)...)
	}
	return rec
}

// djangoOperations maps one migrations.<Op>(...) call to normalized
// operations. AddField/AlterField with null=False and no default yield an
// extra alter_column_nullability operation carrying the risky sub-shape.
func djangoOperations(opName, call string) []types.Operation {
	model := kwarg(call, "model_name")
	name := kwarg(call, "name")
	target := name
	if model != "" && name != "" {
		target = model + "." + name
	}

	switch opName {
	case "CreateModel":
		return []types.Operation{{Kind: types.OpCreateTable, Target: strings.ToLower(name)}}
	case "DeleteModel", "RemoveModel":
		return []types.Operation{{Kind: types.OpDropTable, Target: strings.ToLower(name)}}
	case "RemoveField":
		return []types.Operation{{Kind: types.OpDropColumn, Target: target}}
	case "AddField":
		ops := []types.Operation{{Kind: types.OpAddColumn, Target: target}}
		return append(ops, djangoNullability(call, target)...)
	case "AlterField":
		ops := []types.Operation{{
			Kind:   types.OpAlterColumnType,
			Target: target,
			ToType: djangoFieldType(call),
		}}
		return append(ops, djangoNullability(call, target)...)
	case "AddConstraint", "AlterUniqueTogether", "AlterIndexTogether":
		return []types.Operation{{Kind: types.OpAddConstraint, Target: strings.ToLower(firstNonEmpty(model, name))}}
	case "RunSQL":
		if m := djangoRunSQLArg.FindStringSubmatch(call); m != nil {
			return ParseSQLOperations(m[1])
		}
		return []types.Operation{{Kind: types.OpOther}}
	default:
		return []types.Operation{{Kind: types.OpOther, Target: target}}
	}
}

func djangoNullability(call, target string) []types.Operation {
	if !djangoNullFalse.MatchString(call) {
		return nil
	}
	return []types.Operation{{
		Kind:       types.OpAlterNullability,
		Target:     target,
		Nullable:   boolPtr(false),
		HasDefault: boolPtr(djangoDefaultRe.MatchString(call)),
	}}
}

// djangoFieldType maps a models.<Field>(...) expression to a normalized
// column type name.
func djangoFieldType(call string) string {
	m := djangoFieldRe.FindStringSubmatch(call)
	if m == nil {
		return ""
	}
	switch m[1] {
	case "IntegerField", "AutoField", "PositiveIntegerField":
		return "integer"
	case "BigIntegerField", "BigAutoField":
		return "bigint"
	case "SmallIntegerField", "PositiveSmallIntegerField":
		return "smallint"
	case "TextField":
		return "text"
	case "CharField", "SlugField", "EmailField":
		if lm := djangoMaxLenRe.FindStringSubmatch(call); lm != nil {
			return "varchar(" + lm[1] + ")"
		}
		return "varchar"
	case "FloatField":
		return "float"
	case "DecimalField":
		return "numeric"
	case "BooleanField":
		return "boolean"
	case "DateTimeField":
		return "timestamp"
	case "DateField":
		return "date"
	default:
		return strings.ToLower(m[1])
	}
}

func kwarg(call, key string) string {
	for _, m := range djangoKwargRe.FindAllStringSubmatch(call, -1) {
		if m[1] == key {
			return m[2]
		}
	}
	return ""
}

// extractBracketBlock returns the text inside the brackets of
// `<attr> = [ ... ]`, handling nested brackets and quoted strings.
func extractBracketBlock(source, attr string) (string, bool) {
	re := regexp.MustCompile(`\b` + attr + `\s*=\s*\[`)
	loc := re.FindStringIndex(source)
	if loc == nil {
		return "", false
	}
	depth := 0
	for i := loc[1] - 1; i < len(source); i++ {
		switch source[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return source[loc[1] : i+1], true
			}
		}
	}
	return "", false
}

// scanCall returns the full parenthesized call text starting at the opening
// paren at index start.
func scanCall(s string, start int) string {
	depth := 0
	inStr := byte(0)
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case inStr != 0:
			if c == inStr && (i == 0 || s[i-1] != '\\') {
				inStr = 0
			}
		case c == '\'' || c == '"':
			inStr = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
