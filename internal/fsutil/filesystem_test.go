package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileSystem(t *testing.T) {
	m := NewMemoryFileSystem()

	err := m.WriteFile("out/run/report.json", []byte("{}"), 0o644)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "parent must exist")

	require.NoError(t, m.MkdirAll("out/run", 0o755))
	assert.True(t, m.Exists("out"))
	require.NoError(t, m.WriteFile("out/run/report.json", []byte("{}"), 0o644))

	w, err := m.Create("out/run/report.html")
	require.NoError(t, err)
	_, _ = w.Write([]byte("<html>"))
	assert.False(t, m.Exists("out/run/report.html"), "published on close")
	require.NoError(t, w.Close())

	data, err := m.ReadFile("out/run/../run/report.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>", string(data))

	assert.Equal(t, []string{filepath.Join("out", "run", "report.html"), filepath.Join("out", "run", "report.json")}, m.Files())

	_, err = m.ReadFile("missing")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Error(t, m.MkdirAll("out/run/report.json/x", 0o755))
}

func TestOSFileSystem(t *testing.T) {
	var fsys FileSystem = OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, fsys.MkdirAll(dir, 0o755))

	name := filepath.Join(dir, "f.txt")
	require.NoError(t, fsys.WriteFile(name, []byte("x"), 0o644))
	assert.True(t, fsys.Exists(name))

	w, err := fsys.Create(name)
	require.NoError(t, err)
	_, _ = w.Write([]byte("yz"))
	require.NoError(t, w.Close())
	data, err := fsys.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "yz", string(data))
}
