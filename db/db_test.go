package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/Dosada05/bracket-engine/db/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpSection(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n"
	up := upSection(content)
	assert.Contains(t, up, "CREATE TABLE a")
	assert.NotContains(t, up, "DROP TABLE")

	assert.Equal(t, "SELECT 1;", upSection("SELECT 1;"))
}

func TestEmbeddedMigrationsCreateCoreTables(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	content, err := fs.ReadFile(migrations.FS, "001_init.sql")
	require.NoError(t, err)
	up := upSection(string(content))
	for _, table := range []string{"tournaments", "participants", "matches"} {
		assert.True(t, strings.Contains(up, "CREATE TABLE IF NOT EXISTS "+table), table)
	}
	assert.Contains(t, up, "participants_tournament_id_user_id_key")
}
