package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migrationiq/migrationiq/internal/types"
)

func writeMigration(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestSQLDiscoverImplicitChain(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "migrations")
	writeMigration(t, dir, "0001_init.sql", `CREATE TABLE users (id serial);`)
	writeMigration(t, dir, "0002_email.sql", `ALTER TABLE users ADD COLUMN email varchar(255);`)
	writeMigration(t, dir, "0003_index.sql", `CREATE INDEX ON users (email);`)

	a := NewSQL(root, []string{"migrations"})
	assert.True(t, a.Detect())

	records, err := a.Discover()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "0001_init", records[0].ID)
	assert.Empty(t, records[0].Dependencies)
	assert.Equal(t, []string{"0001_init"}, records[1].Dependencies)
	assert.Equal(t, []string{"0002_email"}, records[2].Dependencies)
	assert.Equal(t, types.OpCreateTable, records[0].Operations[0].Kind)
}

func TestSQLDiscoverDependsHeader(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "migrations")
	writeMigration(t, dir, "0001_a.sql", `CREATE TABLE a (id int);`)
	writeMigration(t, dir, "0002_b.sql", `CREATE TABLE b (id int);`)
	writeMigration(t, dir, "0003_c.sql", "-- depends: 0001_a, 0002_b\nDROP TABLE a;")

	records, err := NewSQL(root, []string{"migrations"}).Discover()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"0001_a", "0002_b"}, records[2].Dependencies)
}

func TestSQLDiscoverRowsAnnotation(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "migrations")
	writeMigration(t, dir, "0001_big.sql",
		"-- rows: 2500000\nALTER TABLE events ADD COLUMN meta jsonb;\nCREATE TABLE small (id int);")

	records, err := NewSQL(root, []string{"migrations"}).Discover()
	require.NoError(t, err)
	require.Len(t, records, 1)

	ops := records[0].Operations
	require.Len(t, ops, 2)
	require.NotNil(t, ops[0].EstimatedRowCount, "altering op gets the hint")
	assert.Equal(t, int64(2_500_000), *ops[0].EstimatedRowCount)
	assert.Nil(t, ops[1].EstimatedRowCount, "create table does not")
}

func TestSQLDetectEmptyTree(t *testing.T) {
	a := NewSQL(t.TempDir(), nil)
	assert.False(t, a.Detect())

	records, err := a.Discover()
	require.NoError(t, err)
	assert.Empty(t, records)
}
