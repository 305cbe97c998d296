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

// Alembic discovers and parses Alembic revision files. Revision identity and
// ancestry come from the revision/down_revision module attributes; operations
// from the op.* calls in upgrade().
type Alembic struct {
	root string
	dirs []string
}

// NewAlembic creates an Alembic adapter rooted at root.
func NewAlembic(root string, dirs []string) *Alembic {
	return &Alembic{root: root, dirs: dirs}
}

func (a *Alembic) Name() string { return "alembic" }

// Detect looks for alembic.ini or a versions directory.
func (a *Alembic) Detect() bool {
	if _, err := os.Stat(filepath.Join(a.root, "alembic.ini")); err == nil {
		return true
	}
	return len(a.versionsDirs()) > 0
}

func (a *Alembic) Discover() ([]types.MigrationRecord, error) {
	var records []types.MigrationRecord
	for _, dir := range a.versionsDirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", dir, err)
		}
		var names []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, ".py") || strings.HasPrefix(name, "__") {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			rec, ok := parseAlembicRevision(string(data))
			if !ok {
				continue
			}
			rec.SourcePath = path
			records = append(records, rec)
		}
	}
	return records, nil
}

// versionsDirs returns candidate Alembic versions directories, sorted.
func (a *Alembic) versionsDirs() []string {
	var out []string
	for _, candidate := range []string{"alembic/versions", "migrations/versions", "versions"} {
		d := filepath.Join(a.root, candidate)
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			out = append(out, d)
		}
	}
	if len(out) > 0 {
		sort.Strings(out)
		return out
	}
	roots := a.dirs
	if len(roots) == 0 {
		roots = []string{"."}
	}
	for _, r := range roots {
		base := filepath.Join(a.root, r)
		_ = filepath.WalkDir(base, func(path string, entry os.DirEntry, err error) error {
			if err != nil || entry.IsDir() {
				return nil
			}
			if entry.Name() == "env.py" {
				versions := filepath.Join(filepath.Dir(path), "versions")
				if info, err := os.Stat(versions); err == nil && info.IsDir() {
					out = append(out, versions)
				}
			}
			return nil
		})
	}
	sort.Strings(out)
	return out
}

var (
	alembicRevisionRe  = regexp.MustCompile(`(?m)^revision(?:\s*:\s*str)?\s*=\s*['"]([^'"]+)['"]`)
	alembicDownRe      = regexp.MustCompile(`(?m)^down_revision(?:\s*:[^=]+)?\s*=\s*['"]([^'"]+)['"]`)
	alembicDownTupleRe = regexp.MustCompile(`(?m)^down_revision(?:\s*:[^=]+)?\s*=\s*\(([^)]*)\)`)
	alembicDownNoneRe  = regexp.MustCompile(`(?m)^down_revision(?:\s*:[^=]+)?\s*=\s*None`)
	alembicOpCallRe    = regexp.MustCompile(`\bop\.(\w+)\s*\(`)
	alembicStrArgRe    = regexp.MustCompile(`^\(\s*['"]([^'"]+)['"]`)
	alembicSecondArgRe = regexp.MustCompile(`^\(\s*['"][^'"]+['"]\s*,\s*['"]([^'"]+)['"]`)
	alembicColumnRe    = regexp.MustCompile(`sa\.Column\s*\(\s*['"]([^'"]+)['"]\s*,\s*(sa\.\w+[^,)]*)`)
	alembicTypeKwRe    = regexp.MustCompile(`\btype_\s*=\s*(sa\.\w+(?:\([^)]*\))?)`)
	alembicExistTypeRe = regexp.MustCompile(`\bexisting_type\s*=\s*(sa\.\w+(?:\([^)]*\))?)`)
	alembicNullFalseRe = regexp.MustCompile(`\bnullable\s*=\s*False\b`)
	alembicServerDefRe = regexp.MustCompile(`\bserver_default\s*=\s*[^N,)]`)
	alembicSaLenRe     = regexp.MustCompile(`(?:length\s*=\s*)?(\d+)`)
)

func parseAlembicRevision(source string) (types.MigrationRecord, bool) {
	m := alembicRevisionRe.FindStringSubmatch(source)
	if m == nil {
		return types.MigrationRecord{}, false
	}
	rec := types.MigrationRecord{ID: m[1], AppLabel: "alembic"}

	switch {
	case alembicDownNoneRe.MatchString(source):
	case alembicDownRe.MatchString(source):
		rec.Dependencies = []string{alembicDownRe.FindStringSubmatch(source)[1]}
	case alembicDownTupleRe.MatchString(source):
		inner := alembicDownTupleRe.FindStringSubmatch(source)[1]
		for _, part := range strings.Split(inner, ",") {
			part = strings.Trim(strings.TrimSpace(part), `'"`)
			if part != "" {
				rec.Dependencies = append(rec.Dependencies, part)
			}
		}
	}

	rec.Operations = parseAlembicOps(upgradeBody(source))
	return rec, true
}

// upgradeBody isolates the upgrade() function so downgrade operations are
// not scored against the migration.
func upgradeBody(source string) string {
	start := strings.Index(source, "def upgrade")
	if start < 0 {
		return ""
	}
	rest := source[start:]
	if end := strings.Index(rest, "def downgrade"); end > 0 {
		return rest[:end]
	}
	return rest
}

func parseAlembicOps(body string) []types.Operation {
	var ops []types.Operation
	for _, loc := range alembicOpCallRe.FindAllStringSubmatchIndex(body, -1) {
		opName := body[loc[2]:loc[3]]
		call := scanCall(body, loc[1]-1)
		ops = append(ops, alembicOperations(opName, call)...)
	}
	return ops
}

func alembicOperations(opName, call string) []types.Operation {
	table := firstStrArg(call)
	switch opName {
	case "create_table":
		return []types.Operation{{Kind: types.OpCreateTable, Target: table}}
	case "drop_table":
		return []types.Operation{{Kind: types.OpDropTable, Target: table}}
	case "drop_column":
		return []types.Operation{{Kind: types.OpDropColumn, Target: table + "." + secondStrArg(call)}}
	case "add_column":
		target := table
		if cm := alembicColumnRe.FindStringSubmatch(call); cm != nil {
			target = table + "." + cm[1]
		}
		ops := []types.Operation{{Kind: types.OpAddColumn, Target: target}}
		if alembicNullFalseRe.MatchString(call) {
			ops = append(ops, types.Operation{
				Kind:       types.OpAlterNullability,
				Target:     target,
				Nullable:   boolPtr(false),
				HasDefault: boolPtr(alembicServerDefRe.MatchString(call)),
			})
		}
		return ops
	case "alter_column":
		target := table + "." + secondStrArg(call)
		var ops []types.Operation
		if tm := alembicTypeKwRe.FindStringSubmatch(call); tm != nil {
			op := types.Operation{Kind: types.OpAlterColumnType, Target: target, ToType: saType(tm[1])}
			if em := alembicExistTypeRe.FindStringSubmatch(call); em != nil {
				op.FromType = saType(em[1])
			}
			ops = append(ops, op)
		}
		if alembicNullFalseRe.MatchString(call) {
			ops = append(ops, types.Operation{
				Kind:       types.OpAlterNullability,
				Target:     target,
				Nullable:   boolPtr(false),
				HasDefault: boolPtr(alembicServerDefRe.MatchString(call)),
			})
		}
		if len(ops) == 0 {
			ops = append(ops, types.Operation{Kind: types.OpOther, Target: target})
		}
		return ops
	case "create_check_constraint", "create_foreign_key", "create_unique_constraint", "create_primary_key":
		return []types.Operation{{Kind: types.OpAddConstraint, Target: table}}
	case "execute":
		if m := djangoRunSQLArg.FindStringSubmatch(call); m != nil {
			return ParseSQLOperations(m[1])
		}
		return []types.Operation{{Kind: types.OpOther}}
	default:
		return []types.Operation{{Kind: types.OpOther, Target: table}}
	}
}

// saType maps a sa.<Type>(...) expression to a normalized column type name.
func saType(expr string) string {
	expr = strings.TrimSpace(expr)
	name := expr
	if i := strings.Index(name, "("); i > 0 {
		name = name[:i]
	}
	name = strings.TrimPrefix(name, "sa.")
	switch name {
	case "Integer":
		return "integer"
	case "BigInteger":
		return "bigint"
	case "SmallInteger":
		return "smallint"
	case "Text", "UnicodeText":
		return "text"
	case "String", "Unicode", "VARCHAR":
		if i := strings.Index(expr, "("); i > 0 {
			if lm := alembicSaLenRe.FindStringSubmatch(expr[i:]); lm != nil {
				return "varchar(" + lm[1] + ")"
			}
		}
		return "varchar"
	case "Float":
		return "float"
	case "Numeric":
		return "numeric"
	case "Boolean":
		return "boolean"
	case "DateTime", "TIMESTAMP":
		return "timestamp"
	case "Date":
		return "date"
	default:
		return strings.ToLower(name)
	}
}

func firstStrArg(call string) string {
	if m := alembicStrArgRe.FindStringSubmatch(call); m != nil {
		return m[1]
	}
	return ""
}

func secondStrArg(call string) string {
	if m := alembicSecondArgRe.FindStringSubmatch(call); m != nil {
		return m[1]
	}
	return ""
}
