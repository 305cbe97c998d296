package types

// Category identifies what kind of defect or risk a finding reports.
type Category string

const (
	// Lint categories.
	CategoryDropTable        Category = "drop_table"
	CategoryDropColumn       Category = "drop_column"
	CategoryNonNullNoDefault Category = "non_null_no_default"
	CategoryRiskyTypeChange  Category = "risky_type_change"
	CategoryLargeTableAlter  Category = "large_table_alter"

	// Structural categories.
	CategoryMultipleHeads     Category = "multiple_heads"
	CategoryMissingDependency Category = "missing_dependency"
	CategoryCycle             Category = "cycle"
	CategoryOrphan            Category = "orphan"

	// Branch-comparison categories.
	CategoryBranchBehind      Category = "branch_behind"
	CategoryDivergedGraph     Category = "diverged_graph"
	CategoryParallelMigration Category = "parallel_migration"
)

// Structural reports whether the category describes a correctness-breaking
// graph defect rather than a merely risky schema operation. Structural
// categories score with the configurable structural weight unless overridden.
func (c Category) Structural() bool {
	switch c {
	case CategoryCycle, CategoryOrphan, CategoryMissingDependency,
		CategoryParallelMigration, CategoryDivergedGraph:
		return true
	}
	return false
}

// Finding is one detected defect or risk. Findings are data, not errors:
// every anomaly the analyzers detect flows through to the final report.
type Finding struct {
	Category    Category `json:"category"`
	Weight      int      `json:"severity_weight"`
	MigrationID string   `json:"migration_id,omitempty"`
	SourcePath  string   `json:"source_path,omitempty"`
	Message     string   `json:"message"`

	// Nodes carries the ordered id list for findings that describe a set of
	// migrations (cycle members, extra heads, branch-behind ids).
	Nodes []string `json:"nodes,omitempty"`
}

// Severity is the banded interpretation of an aggregate risk score.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityFromScore maps a total risk score to its severity tier.
func SeverityFromScore(score int) Severity {
	switch {
	case score <= 3:
		return SeverityLow
	case score <= 6:
		return SeverityMedium
	case score <= 9:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}
