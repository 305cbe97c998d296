package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migrationiq/migrationiq/internal/types"
)

const alembicInitial = `"""create users

Revision ID: a1b2c3d4
Revises:
"""
from alembic import op
import sqlalchemy as sa

revision = 'a1b2c3d4'
down_revision = None


def upgrade():
    op.create_table('users',
        sa.Column('id', sa.Integer(), primary_key=True),
        sa.Column('email', sa.String(length=255)),
    )


def downgrade():
    op.drop_table('users')
`

const alembicSecond = `revision = 'e5f6a7b8'
down_revision = 'a1b2c3d4'


def upgrade():
    op.add_column('users', sa.Column('age', sa.Integer(), nullable=False))
    op.alter_column('users', 'email',
        existing_type=sa.String(length=255),
        type_=sa.String(length=100),
    )
    op.drop_column('users', 'legacy_flag')


def downgrade():
    pass
`

func writeAlembicTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, "alembic", "versions")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "alembic.ini"), []byte("[alembic]\n"), 0o644))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestAlembicDiscover(t *testing.T) {
	root := t.TempDir()
	writeAlembicTree(t, root, map[string]string{
		"a1b2c3d4_create_users.py": alembicInitial,
		"e5f6a7b8_add_age.py":      alembicSecond,
	})

	a := NewAlembic(root, nil)
	assert.True(t, a.Detect())

	records, err := a.Discover()
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "a1b2c3d4", first.ID)
	assert.Empty(t, first.Dependencies, "down_revision = None means a root")
	require.Len(t, first.Operations, 1)
	assert.Equal(t, types.OpCreateTable, first.Operations[0].Kind)
	assert.Equal(t, "users", first.Operations[0].Target)

	second := records[1]
	assert.Equal(t, "e5f6a7b8", second.ID)
	assert.Equal(t, []string{"a1b2c3d4"}, second.Dependencies)
}

func TestAlembicDowngradeIsIgnored(t *testing.T) {
	rec, ok := parseAlembicRevision(alembicInitial)
	require.True(t, ok)
	for _, op := range rec.Operations {
		assert.NotEqual(t, types.OpDropTable, op.Kind, "downgrade body must not be scored")
	}
}

func TestAlembicOperations(t *testing.T) {
	rec, ok := parseAlembicRevision(alembicSecond)
	require.True(t, ok)

	kinds := make([]types.OpKind, len(rec.Operations))
	for i, op := range rec.Operations {
		kinds[i] = op.Kind
	}
	assert.Equal(t, []types.OpKind{
		types.OpAddColumn,
		types.OpAlterNullability, // nullable=False without server_default
		types.OpAlterColumnType,
		types.OpDropColumn,
	}, kinds)

	nullability := rec.Operations[1]
	assert.Equal(t, "users.age", nullability.Target)
	require.NotNil(t, nullability.Nullable)
	assert.False(t, *nullability.Nullable)
	require.NotNil(t, nullability.HasDefault)
	assert.False(t, *nullability.HasDefault)

	alter := rec.Operations[2]
	assert.Equal(t, "users.email", alter.Target)
	assert.Equal(t, "varchar(255)", alter.FromType)
	assert.Equal(t, "varchar(100)", alter.ToType)

	assert.Equal(t, "users.legacy_flag", rec.Operations[3].Target)
}

func TestAlembicMergeRevision(t *testing.T) {
	source := `revision = 'merge99'
down_revision = ('branch_a', 'branch_b')

def upgrade():
    pass
`
	rec, ok := parseAlembicRevision(source)
	require.True(t, ok)
	assert.Equal(t, "merge99", rec.ID)
	assert.Equal(t, []string{"branch_a", "branch_b"}, rec.Dependencies)
	assert.Empty(t, rec.Operations)
}

func TestAlembicTypedAttributes(t *testing.T) {
	source := `revision: str = 'typed01'
down_revision: str | None = 'prev01'

def upgrade():
    op.create_unique_constraint('uq_email', 'users', ['email'])
`
	rec, ok := parseAlembicRevision(source)
	require.True(t, ok)
	assert.Equal(t, "typed01", rec.ID)
	assert.Equal(t, []string{"prev01"}, rec.Dependencies)
	require.Len(t, rec.Operations, 1)
	assert.Equal(t, types.OpAddConstraint, rec.Operations[0].Kind)
}

func TestAlembicNonRevisionFileSkipped(t *testing.T) {
	_, ok := parseAlembicRevision("import os\n")
	assert.False(t, ok)
}
