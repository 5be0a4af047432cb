package importlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingPathCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")

	got, err := LoggingPath(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoggingPathRequiresValue(t *testing.T) {
	_, err := LoggingPath("")
	assert.ErrorIs(t, err, ErrMissingLogPath)
}

func TestLoggingPathFailsOnFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := LoggingPath(filepath.Join(file, "sub"))
	assert.ErrorContains(t, err, "Failed to auto create the path")
}

func TestImportProjectsFile(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(explicit, []byte("{}"), 0o644))

	got, err := ImportProjectsFile(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, got)

	_, err = ImportProjectsFile(dir)
	assert.ErrorContains(t, err, filepath.Join(dir, "import-projects.json"))

	defaultFile := filepath.Join(dir, "import-projects.json")
	require.NoError(t, os.WriteFile(defaultFile, []byte("{}"), 0o644))
	got, err = ImportProjectsFile(dir)
	require.NoError(t, err)
	assert.Equal(t, defaultFile, got)

	_, err = ImportProjectsFile("")
	assert.ErrorContains(t, err, "VULNMAP_IMPORT_PATH")
}
