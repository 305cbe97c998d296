package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migrationiq/migrationiq/internal/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.Framework)
	assert.Equal(t, []string{"."}, cfg.MigrationDirs)
	assert.Equal(t, "origin/main", cfg.TargetBranch)
	assert.Equal(t, 7, cfg.RiskThreshold)
	assert.Equal(t, int64(1_000_000), cfg.LargeTableRows)
	assert.Equal(t, 1000, cfg.AncestorDepthLimit)
	assert.True(t, cfg.Rules.RequireTwoStepNonNull)
	assert.False(t, cfg.Rules.AllowDropTable)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "migrationiq.yaml", `
framework: django
migration_dirs:
  - app/migrations
  - billing/migrations
target_branch: origin/develop
risk_threshold: 5
weights:
  drop_table: 12
rules:
  allow_drop_column: true
  disabled:
    - large-table-alter
`)
	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, "django", cfg.Framework)
	assert.Equal(t, []string{"app/migrations", "billing/migrations"}, cfg.MigrationDirs)
	assert.Equal(t, "origin/develop", cfg.TargetBranch)
	assert.Equal(t, 5, cfg.RiskThreshold)
	assert.Equal(t, 12, cfg.Weights["drop_table"])
	assert.True(t, cfg.Rules.AllowDropColumn)
	assert.False(t, cfg.Rules.AllowDropTable, "unset keys keep defaults")
	assert.Equal(t, []string{"large-table-alter"}, cfg.Rules.Disabled)
}

func TestLoadTOMLFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "migrationiq.toml", `
framework = "alembic"
risk_threshold = 9

[rules]
allow_drop_table = true

[weights]
cycle = 3
`)
	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, "alembic", cfg.Framework)
	assert.Equal(t, 9, cfg.RiskThreshold)
	assert.True(t, cfg.Rules.AllowDropTable)
	assert.Equal(t, 3, cfg.Weights["cycle"])
}

func TestLoadDiscoversUpward(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "migrationiq.yaml", "risk_threshold: 2\n")
	nested := filepath.Join(root, "services", "api")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := Load("", nested)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.RiskThreshold)
}

func TestLoadExplicitPathMissingIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	require.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "migrationiq.yaml", "risk_threshold: 5\n")
	t.Setenv("MIQ_RISK_THRESHOLD", "2")

	cfg, err := Load("", dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.RiskThreshold)
}

func TestLoadMalformedYAMLIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "migrationiq.yaml", "framework: [unclosed\n")
	_, err := Load("", dir)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown framework",
			mutate:  func(c *Config) { c.Framework = "rails" },
			wantErr: "unknown framework",
		},
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.RiskThreshold = -1 },
			wantErr: "risk_threshold",
		},
		{
			name:    "negative large table rows",
			mutate:  func(c *Config) { c.LargeTableRows = -5 },
			wantErr: "large_table_rows",
		},
		{
			name:    "unknown disabled rule",
			mutate:  func(c *Config) { c.Rules.Disabled = []string{"no-such-rule"} },
			wantErr: "unknown rule",
		},
		{
			name:    "unknown weight category",
			mutate:  func(c *Config) { c.Weights = map[string]int{"explosion": 4} },
			wantErr: "unknown category",
		},
		{
			name:    "negative weight",
			mutate:  func(c *Config) { c.Weights = map[string]int{"drop_table": -2} },
			wantErr: "must not be negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLintConfigProjection(t *testing.T) {
	cfg := Default()
	cfg.Rules.AllowDropTable = true
	cfg.Rules.Disabled = []string{"type-change"}
	cfg.LargeTableRows = 42

	lc := cfg.LintConfig()
	assert.True(t, lc.AllowDropTable)
	assert.True(t, lc.Disabled["type-change"])
	assert.Equal(t, int64(42), lc.LargeTableRowThreshold)
}

func TestWeightOverridesConversion(t *testing.T) {
	cfg := Default()
	assert.Nil(t, cfg.WeightOverrides())

	cfg.Weights = map[string]int{"drop_table": 1}
	got := cfg.WeightOverrides()
	assert.Equal(t, map[types.Category]int{types.CategoryDropTable: 1}, got)
}
