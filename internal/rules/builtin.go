package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/migrationiq/migrationiq/internal/types"
)

// registry is the static rule table, in evaluation order.
var registry = []Rule{
	{
		ID:          "drop-table",
		Category:    types.CategoryDropTable,
		Description: "DROP TABLE causes irreversible data loss",
		Doc:         dropTableDoc,
		enabled:     func(cfg *Config) bool { return !cfg.AllowDropTable },
		check:       checkDropTable,
	},
	{
		ID:          "drop-column",
		Category:    types.CategoryDropColumn,
		Description: "DROP COLUMN discards column data permanently",
		Doc:         dropColumnDoc,
		enabled:     func(cfg *Config) bool { return !cfg.AllowDropColumn },
		check:       checkDropColumn,
	},
	{
		ID:          "non-null-without-default",
		Category:    types.CategoryNonNullNoDefault,
		Description: "NOT NULL constraint without a default fails on populated tables",
		Doc:         nonNullDoc,
		enabled:     func(cfg *Config) bool { return cfg.RequireTwoStepNonNull },
		check:       checkNonNull,
	},
	{
		ID:          "type-change",
		Category:    types.CategoryRiskyTypeChange,
		Description: "narrowing column type changes can truncate or corrupt data",
		Doc:         typeChangeDoc,
		check:       checkTypeChange,
	},
	{
		ID:          "large-table-alter",
		Category:    types.CategoryLargeTableAlter,
		Description: "in-place alteration of a large table can lock it for minutes",
		Doc:         largeTableDoc,
		check:       checkLargeTable,
	},
}

func checkDropTable(op types.Operation, rec *types.MigrationRecord, _ *Config) []types.Finding {
	if op.Kind != types.OpDropTable {
		return nil
	}
	return []types.Finding{{
		Category:    types.CategoryDropTable,
		MigrationID: rec.ID,
		SourcePath:  rec.SourcePath,
		Message:     fmt.Sprintf("migration %q drops table %q", rec.ID, op.Target),
	}}
}

func checkDropColumn(op types.Operation, rec *types.MigrationRecord, _ *Config) []types.Finding {
	if op.Kind != types.OpDropColumn {
		return nil
	}
	return []types.Finding{{
		Category:    types.CategoryDropColumn,
		MigrationID: rec.ID,
		SourcePath:  rec.SourcePath,
		Message:     fmt.Sprintf("migration %q drops column %q", rec.ID, op.Target),
	}}
}

func checkNonNull(op types.Operation, rec *types.MigrationRecord, _ *Config) []types.Finding {
	if op.Kind != types.OpAlterNullability {
		return nil
	}
	if op.Nullable == nil || *op.Nullable {
		return nil
	}
	if op.HasDefault != nil && *op.HasDefault {
		return nil
	}
	return []types.Finding{{
		Category:    types.CategoryNonNullNoDefault,
		MigrationID: rec.ID,
		SourcePath:  rec.SourcePath,
		Message:     fmt.Sprintf("migration %q sets %q NOT NULL without a default", rec.ID, op.Target),
	}}
}

var varcharRe = regexp.MustCompile(`^(?:var)?char(?:acter)?(?:\s+varying)?\s*\((\d+)\)$`)

func checkTypeChange(op types.Operation, rec *types.MigrationRecord, cfg *Config) []types.Finding {
	if op.Kind != types.OpAlterColumnType {
		return nil
	}
	from := normalizeType(op.FromType)
	to := normalizeType(op.ToType)
	if from == "" || to == "" {
		return nil
	}
	if !isNarrowing(from, to, cfg.narrowingPairs()) {
		return nil
	}
	return []types.Finding{{
		Category:    types.CategoryRiskyTypeChange,
		MigrationID: rec.ID,
		SourcePath:  rec.SourcePath,
		Message:     fmt.Sprintf("migration %q changes %q from %s to %s, a narrowing conversion", rec.ID, op.Target, from, to),
	}}
}

func checkLargeTable(op types.Operation, rec *types.MigrationRecord, cfg *Config) []types.Finding {
	if !op.AltersTable() || op.EstimatedRowCount == nil {
		return nil
	}
	threshold := cfg.LargeTableRowThreshold
	if threshold <= 0 {
		threshold = DefaultLargeTableRows
	}
	if *op.EstimatedRowCount <= threshold {
		return nil
	}
	return []types.Finding{{
		Category:    types.CategoryLargeTableAlter,
		MigrationID: rec.ID,
		SourcePath:  rec.SourcePath,
		Message: fmt.Sprintf("migration %q alters %q (~%d rows, threshold %d)",
			rec.ID, op.Target, *op.EstimatedRowCount, threshold),
	}}
}

// DefaultNarrowingPairs returns the built-in set of lossy type transitions.
// Product policy, not algorithm: callers override via Config.NarrowingPairs.
func DefaultNarrowingPairs() []TypePair {
	return []TypePair{
		{From: "text", To: "integer"},
		{From: "text", To: "bigint"},
		{From: "text", To: "smallint"},
		{From: "float", To: "integer"},
		{From: "double precision", To: "integer"},
		{From: "numeric", To: "integer"},
		{From: "bigint", To: "integer"},
		{From: "bigint", To: "smallint"},
		{From: "integer", To: "smallint"},
		{From: "timestamp", To: "date"},
		{From: "timestamptz", To: "date"},
	}
}

func (c *Config) narrowingPairs() []TypePair {
	if c.NarrowingPairs != nil {
		return c.NarrowingPairs
	}
	return DefaultNarrowingPairs()
}

func isNarrowing(from, to string, pairs []TypePair) bool {
	for _, p := range pairs {
		if from == normalizeType(p.From) && to == normalizeType(p.To) {
			return true
		}
	}
	// varchar(N) -> varchar(M) with M < N shrinks regardless of the
	// configured pair list.
	fn, fromOK := varcharLen(from)
	tn, toOK := varcharLen(to)
	return fromOK && toOK && tn < fn
}

func varcharLen(t string) (int, bool) {
	m := varcharRe.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func normalizeType(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(t))), " ")
}
