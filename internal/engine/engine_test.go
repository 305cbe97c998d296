package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migrationiq/migrationiq/internal/config"
	"github.com/migrationiq/migrationiq/internal/types"
)

func boolPtr(b bool) *bool { return &b }

func rec(id string, deps ...string) types.MigrationRecord {
	return types.MigrationRecord{ID: id, Dependencies: deps}
}

func TestCheckCleanHistory(t *testing.T) {
	eng := New(config.Default())
	res, err := eng.Check([]types.MigrationRecord{
		rec("0001_a"),
		rec("0002_b", "0001_a"),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Findings)
	assert.Equal(t, []string{"0002_b"}, res.Heads)
	assert.Equal(t, []string{"0001_a"}, res.Roots)
	assert.Equal(t, 2, res.Count)
}

func TestCheckDuplicateIsFatal(t *testing.T) {
	eng := New(config.Default())
	_, err := eng.Check([]types.MigrationRecord{rec("x"), rec("x")})
	require.Error(t, err)
}

func TestReadyAggregatesAllAnalyzers(t *testing.T) {
	cfg := config.Default()
	eng := New(cfg)

	local := []types.MigrationRecord{
		rec("0001_base"),
		{
			ID:           "0002_risky",
			Dependencies: []string{"0001_base"},
			Operations: []types.Operation{
				{Kind: types.OpDropTable, Target: "audit_log"},
				{Kind: types.OpAlterNullability, Target: "users.email", Nullable: boolPtr(false)},
			},
		},
		rec("0002_sibling", "0001_base"), // second head
	}
	target := []types.MigrationRecord{
		rec("0001_base"),
		rec("0002_target", "0001_base"),
	}

	report, err := eng.Ready(context.Background(), local, target)
	require.NoError(t, err)

	cats := make(map[types.Category]int)
	for _, f := range report.Risk.Findings {
		cats[f.Category]++
	}
	assert.Equal(t, 1, cats[types.CategoryDropTable], "lint flows into the report")
	assert.Equal(t, 1, cats[types.CategoryNonNullNoDefault])
	assert.Equal(t, 1, cats[types.CategoryMultipleHeads], "structural flows into the report")
	assert.GreaterOrEqual(t, cats[types.CategoryParallelMigration]+cats[types.CategoryDivergedGraph], 1,
		"comparison flows into the report")

	require.NotNil(t, report.Comparison)
	assert.Equal(t, []string{"0002_target"}, report.Comparison.TargetOnly)

	// drop_table 10 + non_null 7 + multiple_heads 9 + structural comparison findings.
	assert.Greater(t, report.Risk.TotalScore, 26)
	assert.Equal(t, types.SeverityCritical, report.Risk.Severity)
	assert.True(t, report.ExceedsThreshold(cfg.RiskThreshold))
}

func TestReadyWithoutTargetSkipsComparison(t *testing.T) {
	eng := New(config.Default())
	report, err := eng.Ready(context.Background(), []types.MigrationRecord{rec("0001_a")}, nil)
	require.NoError(t, err)
	assert.Nil(t, report.Comparison)
	assert.Empty(t, report.Risk.Findings)
	assert.Equal(t, types.SeverityLow, report.Risk.Severity)
}

func TestScoreHonorsConfigOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.Weights = map[string]int{"drop_table": 1}
	eng := New(cfg)

	report := eng.Score([]types.Finding{{Category: types.CategoryDropTable}})
	assert.Equal(t, 1, report.TotalScore)
	assert.Equal(t, types.SeverityLow, report.Severity)
}

func TestLintHonorsDisabledRules(t *testing.T) {
	cfg := config.Default()
	cfg.Rules.Disabled = []string{"drop-table"}
	eng := New(cfg)

	findings := eng.Lint([]types.MigrationRecord{{
		ID:         "m",
		Operations: []types.Operation{{Kind: types.OpDropTable, Target: "t"}},
	}})
	assert.Empty(t, findings)
}

func TestReportSectionsCarryWeights(t *testing.T) {
	eng := New(config.Default())
	local := []types.MigrationRecord{
		rec("0001_base"),
		{
			ID:           "0002_drop",
			Dependencies: []string{"0001_base"},
			Operations:   []types.Operation{{Kind: types.OpDropTable, Target: "audit_log"}},
		},
		rec("0002_sibling", "0001_base"),
	}
	target := []types.MigrationRecord{
		rec("0001_base"),
		rec("0002_target", "0001_base"),
	}

	report, err := eng.Ready(context.Background(), local, target)
	require.NoError(t, err)

	// The section lists feed the renderer and the --json payload directly,
	// so every finding must already carry its severity weight.
	require.Len(t, report.Lint, 1)
	assert.Equal(t, 10, report.Lint[0].Weight)
	require.NotEmpty(t, report.Structural)
	for _, f := range report.Structural {
		assert.NotZero(t, f.Weight, string(f.Category))
	}
	require.NotNil(t, report.Comparison)
	require.NotEmpty(t, report.Comparison.Findings)
	for _, f := range report.Comparison.Findings {
		assert.NotZero(t, f.Weight, string(f.Category))
	}
}
