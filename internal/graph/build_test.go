package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migrationiq/migrationiq/internal/types"
)

func rec(id string, deps ...string) types.MigrationRecord {
	return types.MigrationRecord{ID: id, Dependencies: deps}
}

func TestBuildLinearChain(t *testing.T) {
	g, defects, err := Build([]types.MigrationRecord{
		rec("0001_initial"),
		rec("0002_add_email", "0001_initial"),
		rec("0003_add_index", "0002_add_email"),
	})
	require.NoError(t, err)
	assert.Empty(t, defects)
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []string{"0003_add_index"}, g.Heads())
	assert.Equal(t, []string{"0001_initial"}, g.Roots())
	assert.Equal(t, []string{"0001_initial", "0002_add_email", "0003_add_index"}, g.TopoOrder())
}

func TestBuildDuplicateIDFatal(t *testing.T) {
	g, _, err := Build([]types.MigrationRecord{
		rec("0001_initial"),
		rec("0001_initial"),
		rec("0002_other", "0001_initial"),
	})
	require.Error(t, err)
	assert.Nil(t, g)

	var dup *DuplicateMigrationError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []string{"0001_initial"}, dup.IDs)
	assert.Contains(t, err.Error(), "0001_initial")
}

func TestBuildMissingDependency(t *testing.T) {
	g, defects, err := Build([]types.MigrationRecord{
		rec("0001_initial"),
		rec("0002_add_email", "0001_initial", "0001_ghost"),
	})
	require.NoError(t, err)
	require.Len(t, defects, 1)
	assert.Equal(t, types.CategoryMissingDependency, defects[0].Category)
	assert.Equal(t, "0002_add_email", defects[0].MigrationID)
	assert.Equal(t, []string{"0002_add_email", "0001_ghost"}, defects[0].Nodes)

	// The resolved edge still exists; the broken one is tracked separately.
	assert.Equal(t, []string{"0001_initial"}, g.DepsOf("0002_add_email"))
	assert.Equal(t, []string{"0001_ghost"}, g.MissingOf("0002_add_email"))
	assert.True(t, g.HasMissing())
}

func TestBuildSelfLoopIsDefect(t *testing.T) {
	_, defects, err := Build([]types.MigrationRecord{
		rec("0001_selfref", "0001_selfref"),
	})
	require.NoError(t, err)
	require.Len(t, defects, 1)
	assert.Equal(t, types.CategoryCycle, defects[0].Category)
	assert.Equal(t, []string{"0001_selfref"}, defects[0].Nodes)
}

func TestBuildDuplicateDependencyCollapses(t *testing.T) {
	g, defects, err := Build([]types.MigrationRecord{
		rec("0001_initial"),
		rec("0002_add_email", "0001_initial", "0001_initial"),
	})
	require.NoError(t, err)
	assert.Empty(t, defects)
	assert.Equal(t, []string{"0001_initial"}, g.DepsOf("0002_add_email"))
	assert.Equal(t, []string{"0002_add_email"}, g.DependentsOf("0001_initial"))
}

func TestTopoOrderLexicographicTieBreak(t *testing.T) {
	// b and c both depend only on a: the tie must break lexicographically.
	g, _, err := Build([]types.MigrationRecord{
		rec("a"),
		rec("c", "a"),
		rec("b", "a"),
		rec("d", "b", "c"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, g.TopoOrder())
}

func TestTopoOrderCoversCyclicNodes(t *testing.T) {
	g, _, err := Build([]types.MigrationRecord{
		rec("a"),
		rec("x", "y"),
		rec("y", "x"),
	})
	require.NoError(t, err)
	order := g.TopoOrder()
	assert.Len(t, order, 3)
	assert.Equal(t, "a", order[0])
	assert.ElementsMatch(t, []string{"x", "y"}, order[1:])
}

func TestTransitiveDepsIncludesMissing(t *testing.T) {
	g, _, err := Build([]types.MigrationRecord{
		rec("a"),
		rec("b", "a"),
		rec("c", "b", "ghost"),
	})
	require.NoError(t, err)

	deps := g.TransitiveDeps("c", 0)
	assert.Equal(t, map[string]bool{"a": true, "b": true, "ghost": true}, deps)

	closure := g.DependencyClosure(0)
	assert.True(t, closure["ghost"])
	assert.True(t, closure["a"])
	assert.False(t, closure["c"], "c is nobody's dependency")
}

func TestTransitiveDepsDepthLimit(t *testing.T) {
	g, _, err := Build([]types.MigrationRecord{
		rec("a"),
		rec("b", "a"),
		rec("c", "b"),
		rec("d", "c"),
	})
	require.NoError(t, err)

	deps := g.TransitiveDeps("d", 2)
	assert.True(t, deps["c"])
	assert.True(t, deps["b"])
	assert.False(t, deps["a"], "depth limit must cut the walk")
}

func TestBuildDeterministicAcrossInputOrder(t *testing.T) {
	forward := []types.MigrationRecord{
		rec("0001_a"),
		rec("0002_b", "0001_a"),
		rec("0002_c", "0001_a"),
		rec("0003_d", "0002_b", "missing_dep"),
	}
	reversed := []types.MigrationRecord{forward[3], forward[2], forward[1], forward[0]}

	g1, d1, err := Build(forward)
	require.NoError(t, err)
	g2, d2, err := Build(reversed)
	require.NoError(t, err)

	assert.Equal(t, g1.IDs(), g2.IDs())
	assert.Equal(t, g1.TopoOrder(), g2.TopoOrder())
	assert.Equal(t, g1.Heads(), g2.Heads())
	assert.Equal(t, d1, d2)
	assert.Equal(t, Analyze(g1), Analyze(g2))
}
