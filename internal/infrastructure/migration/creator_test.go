package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add open houses", "add_open_houses"},
		{"Add-Open-Houses", "add_open_houses"},
		{"ADD_OPEN_HOUSES", "add_open_houses"},
		{"add__open__houses", "add_open_houses"},
		{"Index Price 2", "index_price_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_Numbering(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "init", "Initial schema")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_init.up.sql"), first.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_init.down.sql"), first.DownPath)

	second, err := CreateMigration(dir, "Add open houses", "Open house schedule")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
	assert.Equal(t, "000002_add_open_houses", second.BaseName())

	up, err := os.ReadFile(second.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "Add open houses")
	assert.Contains(t, string(up), "Open house schedule")

	down, err := os.ReadFile(second.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "rollback")
}

func TestCreateMigration_ContinuesAfterGap(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_seed.up.sql"), nil, 0o644))

	mf, err := CreateMigration(dir, "next", "")
	require.NoError(t, err)
	assert.Equal(t, uint(8), mf.Version)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(dir, "init", "")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_add_index.up.sql",
		"000001_init.up.sql",
		"000001_init.down.sql",
		"000003_orphan.down.sql",
		"README.md",
		"notes.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000004_dir.up.sql"), 0o755))

	got, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, uint(1), got[0].Version)
	assert.Equal(t, "init", got[0].Name)
	assert.NotEmpty(t, got[0].DownPath)

	assert.Equal(t, uint(2), got[1].Version)
	assert.Empty(t, got[1].DownPath, "missing rollback is reported as empty")
}

func TestListMigrations_Missing(t *testing.T) {
	got, err := ListMigrations(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListMigrations_ShippedSchema(t *testing.T) {
	got, err := ListMigrations(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, uint(1), got[0].Version)
	for _, mf := range got {
		assert.NotEmpty(t, mf.DownPath, "migration %d needs a rollback", mf.Version)
	}
}
