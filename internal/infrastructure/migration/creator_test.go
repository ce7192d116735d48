package migration

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "Add Cost Centers")
	require.NoError(t, err)
	assert.Contains(t, mf.UpPath, "add_cost_centers.up.sql")
	assert.Contains(t, mf.DownPath, "add_cost_centers.down.sql")

	_, err = os.Stat(mf.UpPath)
	require.NoError(t, err)
	_, err = os.Stat(mf.DownPath)
	require.NoError(t, err)

	names, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Contains(t, names[0], "add_cost_centers")
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "add_cost_centers", sanitizeName("Add  Cost--Centers"))
	assert.Equal(t, "v2_schema", sanitizeName("V2 Schema "))
}

func TestListMigrationsMissingDir(t *testing.T) {
	names, err := ListMigrations("/nonexistent/path")
	require.NoError(t, err)
	assert.Empty(t, names)
}
