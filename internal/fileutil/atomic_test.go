package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.md")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
	assert.Equal(t, []string{"out.md"}, listDir(t, dir), "no temp files left behind")
}

func TestWriteFileNew_RefusesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "01-a.wav")

	require.NoError(t, WriteFileNew(path, []byte("first"), 0o644))
	err := WriteFileNew(path, []byte("second"), 0o644)
	require.ErrorIs(t, err, ErrExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.Equal(t, []string{"01-a.wav"}, listDir(t, dir))
}

func TestWriteFileNew_MissingDir(t *testing.T) {
	err := WriteFileNew(filepath.Join(t.TempDir(), "missing", "x"), []byte("x"), 0o644)
	require.Error(t, err)
}
