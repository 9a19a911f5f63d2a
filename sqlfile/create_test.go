package sqlfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dt "github.com/bcomnes/dagrator/dagratortest"
)

// TestCreateMigration verifies that the new migration files are named after a
// fresh UUIDv7 and the kebab-cased description, and load back as a migration.
func TestCreateMigration(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Config{MigrationPattern: filepath.Join(tmpDir, "*.sql")}

	c, err := Create(cfg, "Add new table", nil)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), c.ID.Version())
	assert.Equal(t, filepath.Join(tmpDir, c.ID.String()+".do.add-new-table.sql"), c.DoFile)
	assert.Equal(t, filepath.Join(tmpDir, c.ID.String()+".undo.add-new-table.sql"), c.UndoFile)

	doContent, err := os.ReadFile(c.DoFile)
	require.NoError(t, err)
	assert.Contains(t, string(doContent), "Write your migration SQL here")
	assert.NotContains(t, string(doContent), "-- depends:")

	undoContent, err := os.ReadFile(c.UndoFile)
	require.NoError(t, err)
	assert.Contains(t, string(undoContent), "Write your rollback SQL here")

	migs, err := Load(cfg)
	require.NoError(t, err)
	require.Len(t, migs, 1)
	assert.Equal(t, c.ID, migs[0].ID())
	assert.Equal(t, "Add new table", migs[0].Description())
}

func TestCreateMigrationWithDependencies(t *testing.T) {
	fs := memoryfs.New()
	cfg := Config{MigrationPattern: "/db/migrations/*.sql"}

	first, err := CreateFS(fs, cfg, "first", nil)
	require.NoError(t, err)
	second, err := CreateFS(fs, cfg, "Second: the sequel!", []uuid.UUID{first.ID, dt.ID1})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(second.DoFile, ".do.second-the-sequel.sql"), second.DoFile)

	data, err := vfs.ReadFile(fs, second.DoFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "-- depends: "+first.ID.String()+", "+dt.ID1.String())

	migs, err := LoadFS(fs, cfg)
	require.NoError(t, err)
	require.Len(t, migs, 2)
	// UUIDv7 IDs created later sort later.
	assert.Equal(t, first.ID, migs[0].ID())
	assert.ElementsMatch(t, []uuid.UUID{first.ID, dt.ID1}, migs[1].Dependencies())
}

func TestCreateMigrationEmptyDescription(t *testing.T) {
	_, err := CreateFS(memoryfs.New(), Config{MigrationPattern: "/m/*.sql"}, "  !!  ", nil)
	require.Error(t, err)
}

func TestKebabCase(t *testing.T) {
	tests := map[string]string{
		"Add new table":        "add-new-table",
		"  Fix bug  ":          "fix-bug",
		"users.email -> index": "users-email-index",
		"Already-kebab":        "already-kebab",
	}
	for in, want := range tests {
		assert.Equal(t, want, kebabCase(in), in)
	}
}
