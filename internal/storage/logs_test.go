package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateci/internal/storage"
)

func TestSaveJobLog(t *testing.T) {
	ls := storage.NewLogStorage(t.TempDir())

	path, err := ls.SaveJobLog("exec-123", "unit-test", "all 14 tests passed\n")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "all 14 tests passed\n", string(data))

	// grouped per execution
	assert.Equal(t, "exec-123", filepath.Base(filepath.Dir(path)))
}

func TestSaveJobLogSanitizesNames(t *testing.T) {
	ls := storage.NewLogStorage(t.TempDir())

	path, err := ls.SaveJobLog("exec/../../etc", "job name!", "output")
	require.NoError(t, err)

	// no path traversal, no special characters in the filename
	assert.NotContains(t, path, "..")
	assert.NotContains(t, filepath.Base(path), " ")
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestSaveJobLogCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "logs")
	ls := storage.NewLogStorage(base)

	_, err := ls.SaveJobLog("exec-1", "clippy-check", "clean")
	require.NoError(t, err)
}
