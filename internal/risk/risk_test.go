package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migrationiq/migrationiq/internal/types"
)

func TestAggregateWeightsAndScore(t *testing.T) {
	agg := NewAggregator(nil, 0)
	report := agg.Aggregate([]types.Finding{
		{Category: types.CategoryDropTable, MigrationID: "m1"},
		{Category: types.CategoryBranchBehind},
	})
	require.Len(t, report.Findings, 2)
	assert.Equal(t, 10, report.Findings[0].Weight)
	assert.Equal(t, 5, report.Findings[1].Weight)
	assert.Equal(t, 15, report.TotalScore)
	assert.Equal(t, types.SeverityCritical, report.Severity)
}

func TestAggregateStructuralDefault(t *testing.T) {
	agg := NewAggregator(nil, 0)
	for _, cat := range []types.Category{
		types.CategoryCycle,
		types.CategoryOrphan,
		types.CategoryMissingDependency,
		types.CategoryParallelMigration,
		types.CategoryDivergedGraph,
	} {
		assert.Equal(t, DefaultStructuralWeight, agg.WeightFor(cat), string(cat))
	}
}

func TestAggregateRepeatedCategoriesAddLinearly(t *testing.T) {
	agg := NewAggregator(nil, 0)
	report := agg.Aggregate([]types.Finding{
		{Category: types.CategoryDropColumn, MigrationID: "a"},
		{Category: types.CategoryDropColumn, MigrationID: "b"},
		{Category: types.CategoryDropColumn, MigrationID: "c"},
	})
	assert.Equal(t, 24, report.TotalScore)
	assert.Equal(t, types.SeverityCritical, report.Severity)
}

func TestSeverityTiers(t *testing.T) {
	tests := []struct {
		score int
		want  types.Severity
	}{
		{0, types.SeverityLow},
		{3, types.SeverityLow},
		{4, types.SeverityMedium},
		{6, types.SeverityMedium},
		{7, types.SeverityHigh},
		{9, types.SeverityHigh},
		{10, types.SeverityCritical},
		{42, types.SeverityCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, types.SeverityFromScore(tt.score), "score %d", tt.score)
	}
}

func TestAggregateEmptyReportIsLow(t *testing.T) {
	report := NewAggregator(nil, 0).Aggregate()
	assert.NotNil(t, report.Findings)
	assert.Empty(t, report.Findings)
	assert.Zero(t, report.TotalScore)
	assert.Equal(t, types.SeverityLow, report.Severity)
}

func TestAggregateStableOrdering(t *testing.T) {
	agg := NewAggregator(nil, 0)
	report := agg.Aggregate([]types.Finding{
		{Category: types.CategoryBranchBehind},                       // 5
		{Category: types.CategoryDropColumn, MigrationID: "0002_b"},  // 8
		{Category: types.CategoryDropTable, MigrationID: "0003_c"},   // 10
		{Category: types.CategoryDropColumn, MigrationID: "0001_a"},  // 8
		{Category: types.CategoryMultipleHeads, MigrationID: "head"}, // 9
		{Category: types.CategoryCycle, MigrationID: "cyc"},          // 9, "cycle" < "multiple_heads"
	})
	var got []string
	for _, f := range report.Findings {
		got = append(got, string(f.Category)+"/"+f.MigrationID)
	}
	assert.Equal(t, []string{
		"drop_table/0003_c",
		"cycle/cyc",
		"multiple_heads/head",
		"drop_column/0001_a",
		"drop_column/0002_b",
		"branch_behind/",
	}, got)
}

func TestAggregateOverrides(t *testing.T) {
	agg := NewAggregator(map[types.Category]int{
		types.CategoryDropTable: 2,
		types.CategoryCycle:     1,
	}, 4)

	assert.Equal(t, 2, agg.WeightFor(types.CategoryDropTable))
	assert.Equal(t, 1, agg.WeightFor(types.CategoryCycle), "override beats structural weight")
	assert.Equal(t, 4, agg.WeightFor(types.CategoryOrphan), "structural weight override")
	assert.Equal(t, 8, agg.WeightFor(types.CategoryDropColumn), "untouched default")

	report := agg.Aggregate([]types.Finding{{Category: types.CategoryDropTable}})
	assert.Equal(t, 2, report.TotalScore)
	assert.Equal(t, types.SeverityLow, report.Severity)
}

func TestAggregateDoesNotMutateInput(t *testing.T) {
	in := []types.Finding{{Category: types.CategoryDropTable, MigrationID: "m"}}
	_ = NewAggregator(nil, 0).Aggregate(in)
	assert.Zero(t, in[0].Weight, "input findings must keep their zero weight")
}

func TestStampWeights(t *testing.T) {
	agg := NewAggregator(map[types.Category]int{types.CategoryDropColumn: 3}, 0)
	in := []types.Finding{
		{Category: types.CategoryDropTable, MigrationID: "m1"},
		{Category: types.CategoryDropColumn, MigrationID: "m2"},
		{Category: types.CategoryCycle},
	}
	out := agg.StampWeights(in)
	require.Len(t, out, 3)
	assert.Equal(t, 10, out[0].Weight)
	assert.Equal(t, 3, out[1].Weight, "override applies")
	assert.Equal(t, DefaultStructuralWeight, out[2].Weight)
	for _, f := range in {
		assert.Zero(t, f.Weight, "input findings are not mutated")
	}
	assert.NotNil(t, agg.StampWeights(nil))
}
