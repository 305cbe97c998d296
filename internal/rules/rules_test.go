package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migrationiq/migrationiq/internal/types"
)

func boolPtr(b bool) *bool    { return &b }
func int64Ptr(n int64) *int64 { return &n }

func record(id string, ops ...types.Operation) types.MigrationRecord {
	return types.MigrationRecord{ID: id, Operations: ops}
}

func categories(findings []types.Finding) []types.Category {
	out := make([]types.Category, len(findings))
	for i, f := range findings {
		out[i] = f.Category
	}
	return out
}

func TestEvaluateDestructiveOperations(t *testing.T) {
	records := []types.MigrationRecord{
		record("0005_cleanup",
			types.Operation{Kind: types.OpDropTable, Target: "audit_log"},
			types.Operation{Kind: types.OpDropColumn, Target: "users.legacy_flag"},
		),
	}
	findings := Evaluate(records, &Config{})
	require.Len(t, findings, 2)
	assert.Equal(t, types.CategoryDropTable, findings[0].Category)
	assert.Contains(t, findings[0].Message, "audit_log")
	assert.Equal(t, types.CategoryDropColumn, findings[1].Category)
	assert.Equal(t, "0005_cleanup", findings[1].MigrationID)
}

func TestEvaluateAllowTogglesSuppress(t *testing.T) {
	records := []types.MigrationRecord{
		record("0005_cleanup",
			types.Operation{Kind: types.OpDropTable, Target: "audit_log"},
			types.Operation{Kind: types.OpDropColumn, Target: "users.legacy_flag"},
		),
	}
	findings := Evaluate(records, &Config{AllowDropTable: true, AllowDropColumn: true})
	assert.Empty(t, findings)
}

func TestEvaluateNonNullWithoutDefault(t *testing.T) {
	tests := []struct {
		name string
		op   types.Operation
		want int
	}{
		{
			name: "not null without default fires",
			op: types.Operation{
				Kind:     types.OpAlterNullability,
				Target:   "users.email",
				Nullable: boolPtr(false),
			},
			want: 1,
		},
		{
			name: "not null with explicit false default fires",
			op: types.Operation{
				Kind:       types.OpAlterNullability,
				Target:     "users.email",
				Nullable:   boolPtr(false),
				HasDefault: boolPtr(false),
			},
			want: 1,
		},
		{
			name: "not null with default is fine",
			op: types.Operation{
				Kind:       types.OpAlterNullability,
				Target:     "users.email",
				Nullable:   boolPtr(false),
				HasDefault: boolPtr(true),
			},
			want: 0,
		},
		{
			name: "relaxing to nullable is fine",
			op: types.Operation{
				Kind:     types.OpAlterNullability,
				Target:   "users.email",
				Nullable: boolPtr(true),
			},
			want: 0,
		},
		{
			name: "unknown nullability is not guessed at",
			op: types.Operation{
				Kind:   types.OpAlterNullability,
				Target: "users.email",
			},
			want: 0,
		},
	}
	cfg := &Config{RequireTwoStepNonNull: true}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := Evaluate([]types.MigrationRecord{record("m", tt.op)}, cfg)
			assert.Len(t, findings, tt.want)
		})
	}
}

func TestEvaluateNonNullDisabledByToggle(t *testing.T) {
	op := types.Operation{Kind: types.OpAlterNullability, Target: "users.email", Nullable: boolPtr(false)}
	findings := Evaluate([]types.MigrationRecord{record("m", op)}, &Config{RequireTwoStepNonNull: false})
	assert.Empty(t, findings)
}

func TestEvaluateTypeChange(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		fires    bool
	}{
		{"text to integer narrows", "text", "integer", true},
		{"bigint to integer narrows", "bigint", "integer", true},
		{"integer to bigint widens", "integer", "bigint", false},
		{"case and spacing normalize", "  BIGINT ", "Integer", true},
		{"varchar shrink always fires", "varchar(255)", "varchar(50)", true},
		{"varchar growth is fine", "varchar(50)", "varchar(255)", false},
		{"character varying shrink fires", "character varying(100)", "varchar(20)", true},
		{"unknown from type is skipped", "", "integer", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := types.Operation{
				Kind:     types.OpAlterColumnType,
				Target:   "orders.total",
				FromType: tt.from,
				ToType:   tt.to,
			}
			findings := Evaluate([]types.MigrationRecord{record("m", op)}, &Config{})
			if tt.fires {
				require.Len(t, findings, 1)
				assert.Equal(t, types.CategoryRiskyTypeChange, findings[0].Category)
			} else {
				assert.Empty(t, findings)
			}
		})
	}
}

func TestEvaluateTypeChangeCustomPairs(t *testing.T) {
	op := types.Operation{
		Kind:     types.OpAlterColumnType,
		Target:   "t.c",
		FromType: "uuid",
		ToType:   "text",
	}
	rec := []types.MigrationRecord{record("m", op)}

	assert.Empty(t, Evaluate(rec, &Config{}), "uuid->text is not in the default list")

	custom := &Config{NarrowingPairs: []TypePair{{From: "uuid", To: "text"}}}
	findings := Evaluate(rec, custom)
	require.Len(t, findings, 1)

	// A custom list replaces the defaults entirely.
	builtin := types.Operation{Kind: types.OpAlterColumnType, Target: "t.c", FromType: "text", ToType: "integer"}
	assert.Empty(t, Evaluate([]types.MigrationRecord{record("m", builtin)}, custom))
}

func TestEvaluateLargeTableAlter(t *testing.T) {
	tests := []struct {
		name  string
		op    types.Operation
		cfg   Config
		fires bool
	}{
		{
			name:  "over default threshold fires",
			op:    types.Operation{Kind: types.OpAddColumn, Target: "events.meta", EstimatedRowCount: int64Ptr(2_000_000)},
			fires: true,
		},
		{
			name:  "at threshold does not fire",
			op:    types.Operation{Kind: types.OpAddColumn, Target: "events.meta", EstimatedRowCount: int64Ptr(DefaultLargeTableRows)},
			fires: false,
		},
		{
			name:  "no hint never fires",
			op:    types.Operation{Kind: types.OpAddColumn, Target: "events.meta"},
			fires: false,
		},
		{
			name:  "create table is not an alteration",
			op:    types.Operation{Kind: types.OpCreateTable, Target: "events", EstimatedRowCount: int64Ptr(5_000_000)},
			fires: false,
		},
		{
			name:  "custom threshold applies",
			op:    types.Operation{Kind: types.OpDropColumn, Target: "events.meta", EstimatedRowCount: int64Ptr(500)},
			cfg:   Config{AllowDropColumn: true, LargeTableRowThreshold: 100},
			fires: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := Evaluate([]types.MigrationRecord{record("m", tt.op)}, &tt.cfg)
			got := categories(findings)
			if tt.fires {
				assert.Contains(t, got, types.CategoryLargeTableAlter)
			} else {
				assert.NotContains(t, got, types.CategoryLargeTableAlter)
			}
		})
	}
}

func TestEvaluateDisabledByID(t *testing.T) {
	op := types.Operation{Kind: types.OpDropTable, Target: "audit_log"}
	records := []types.MigrationRecord{record("m", op)}

	findings := Evaluate(records, &Config{Disabled: map[string]bool{"drop-table": true}})
	assert.Empty(t, findings)
}

func TestEvaluateOrderIsDeterministic(t *testing.T) {
	records := []types.MigrationRecord{
		record("0002_b", types.Operation{Kind: types.OpDropColumn, Target: "t.a"}),
		record("0001_a", types.Operation{Kind: types.OpDropTable, Target: "t"}),
	}
	first := Evaluate(records, &Config{})
	second := Evaluate(records, &Config{})
	require.Equal(t, first, second)

	// Registry order dominates: drop-table findings precede drop-column ones
	// even though their records arrive in the opposite order.
	require.Len(t, first, 2)
	assert.Equal(t, types.CategoryDropTable, first[0].Category)
	assert.Equal(t, types.CategoryDropColumn, first[1].Category)
}

func TestRegistryLookupAndDocs(t *testing.T) {
	ids := KnownIDs()
	assert.Equal(t, []string{"drop-table", "drop-column", "non-null-without-default", "type-change", "large-table-alter"}, ids)

	for _, id := range ids {
		r, ok := Lookup(id)
		require.True(t, ok, id)
		assert.NotEmpty(t, r.Description, id)
		assert.NotEmpty(t, r.Doc, id)
	}
	_, ok := Lookup("no-such-rule")
	assert.False(t, ok)
}
