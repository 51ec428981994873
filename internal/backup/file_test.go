package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "buddy-inbox-backup-1700000000123.json", FileName(time.UnixMilli(1700000000123)))
}

func TestWriteFileThenReadFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	now := time.UnixMilli(42)

	path, err := WriteFile(dir, now, []byte(`{"version":1}`))
	require.NoError(t, err)
	assert.Equal(t, "buddy-inbox-backup-42.json", filepath.Base(path))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
