package adapter

import (
	"regexp"
	"strings"

	"github.com/migrationiq/migrationiq/internal/types"
)

// Pattern recognition for the risky statement shapes the engine scores.
// This is deliberately not a SQL parser: the engine's contract is to
// recognize specific operation shapes, not to understand arbitrary SQL.
var (
	sqlCreateTableRe = regexp.MustCompile(`(?i)\bCREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([\w."]+)`)
	sqlDropTableRe   = regexp.MustCompile(`(?i)\bDROP\s+TABLE\s+(?:IF\s+EXISTS\s+)?([\w."]+)`)
	sqlAlterTableRe  = regexp.MustCompile(`(?i)\bALTER\s+TABLE\s+(?:ONLY\s+)?([\w."]+)\s+(.+)`)

	sqlAddColumnRe  = regexp.MustCompile(`(?i)^ADD\s+(?:COLUMN\s+)?(?:IF\s+NOT\s+EXISTS\s+)?([\w"]+)\s+([\w()\s]+?)(?:\s+(?:NOT\s+NULL|NULL|DEFAULT|PRIMARY|UNIQUE|REFERENCES|CHECK|CONSTRAINT).*)?$`)
	sqlDropColumnRe = regexp.MustCompile(`(?i)^DROP\s+(?:COLUMN\s+)?(?:IF\s+EXISTS\s+)?([\w"]+)`)
	sqlAlterTypeRe  = regexp.MustCompile(`(?i)^ALTER\s+(?:COLUMN\s+)?([\w"]+)\s+(?:SET\s+DATA\s+)?TYPE\s+([\w()\s]+?)(?:\s+USING\b.*)?$`)
	sqlSetNotNullRe = regexp.MustCompile(`(?i)^ALTER\s+(?:COLUMN\s+)?([\w"]+)\s+SET\s+NOT\s+NULL`)
	sqlAddConstrRe  = regexp.MustCompile(`(?i)^ADD\s+CONSTRAINT\s+([\w"]+)`)

	sqlNotNullRe = regexp.MustCompile(`(?i)\bNOT\s+NULL\b`)
	sqlDefaultRe = regexp.MustCompile(`(?i)\bDEFAULT\b`)
)

// ParseSQLOperations extracts normalized operations from raw SQL text. Used
// by the SQL adapter and by the Django adapter for RunSQL bodies.
func ParseSQLOperations(content string) []types.Operation {
	var ops []types.Operation
	for _, stmt := range splitStatements(content) {
		if m := sqlDropTableRe.FindStringSubmatch(stmt); m != nil {
			ops = append(ops, types.Operation{Kind: types.OpDropTable, Target: unquoteIdent(m[1])})
			continue
		}
		if m := sqlCreateTableRe.FindStringSubmatch(stmt); m != nil {
			ops = append(ops, types.Operation{Kind: types.OpCreateTable, Target: unquoteIdent(m[1])})
			continue
		}
		m := sqlAlterTableRe.FindStringSubmatch(stmt)
		if m == nil {
			if strings.TrimSpace(stmt) != "" {
				ops = append(ops, types.Operation{Kind: types.OpOther})
			}
			continue
		}
		table := unquoteIdent(m[1])
		ops = append(ops, parseAlterActions(table, m[2])...)
	}
	return ops
}

// parseAlterActions handles the action list of one ALTER TABLE statement.
// Multiple comma-separated actions each yield an operation.
func parseAlterActions(table, actions string) []types.Operation {
	var ops []types.Operation
	for _, action := range splitTopLevel(actions, ',') {
		action = strings.TrimSpace(action)
		target := func(col string) string { return table + "." + unquoteIdent(col) }
		switch {
		case sqlAddConstrRe.MatchString(action):
			ops = append(ops, types.Operation{Kind: types.OpAddConstraint, Target: table})
		case sqlAlterTypeRe.MatchString(action):
			m := sqlAlterTypeRe.FindStringSubmatch(action)
			ops = append(ops, types.Operation{
				Kind:   types.OpAlterColumnType,
				Target: target(m[1]),
				ToType: strings.TrimSpace(m[2]),
			})
		case sqlSetNotNullRe.MatchString(action):
			m := sqlSetNotNullRe.FindStringSubmatch(action)
			ops = append(ops, types.Operation{
				Kind:     types.OpAlterNullability,
				Target:   target(m[1]),
				Nullable: boolPtr(false),
			})
		case strings.HasPrefix(strings.ToUpper(action), "DROP CONSTRAINT"):
			ops = append(ops, types.Operation{Kind: types.OpOther, Target: table})
		case sqlDropColumnRe.MatchString(action) && strings.HasPrefix(strings.ToUpper(action), "DROP"):
			m := sqlDropColumnRe.FindStringSubmatch(action)
			ops = append(ops, types.Operation{Kind: types.OpDropColumn, Target: target(m[1])})
		case sqlAddColumnRe.MatchString(action):
			m := sqlAddColumnRe.FindStringSubmatch(action)
			op := types.Operation{Kind: types.OpAddColumn, Target: target(m[1])}
			ops = append(ops, op)
			if sqlNotNullRe.MatchString(action) {
				ops = append(ops, types.Operation{
					Kind:       types.OpAlterNullability,
					Target:     op.Target,
					Nullable:   boolPtr(false),
					HasDefault: boolPtr(sqlDefaultRe.MatchString(action)),
				})
			}
		default:
			ops = append(ops, types.Operation{Kind: types.OpOther, Target: table})
		}
	}
	return ops
}

// splitStatements splits SQL text on top-level semicolons, dropping comment
// lines first.
func splitStatements(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	var stmts []string
	for _, s := range splitTopLevel(strings.Join(lines, "\n"), ';') {
		if strings.TrimSpace(s) != "" {
			stmts = append(stmts, strings.TrimSpace(s))
		}
	}
	return stmts
}

// splitTopLevel splits s on sep, ignoring separators inside parentheses and
// single-quoted strings.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inStr := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inStr:
			if c == '\'' {
				inStr = false
			}
		case c == '\'':
			inStr = true
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func unquoteIdent(s string) string {
	return strings.Trim(s, `"`)
}
