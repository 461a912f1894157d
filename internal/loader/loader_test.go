package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadFolder_ReadsSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha content")
	writeFile(t, dir, "b.md", "# beta\n\nbody")
	writeFile(t, dir, "c.pdf", "ignored binary")
	writeFile(t, dir, "sub/d.txt", "nested content")

	docs, err := New().LoadFolder(dir)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	names := make(map[string]bool)
	for _, d := range docs {
		names[d.Name] = true
		assert.NotEmpty(t, d.ID)
		assert.NotEmpty(t, d.Content)
		assert.Greater(t, d.SizeBytes, int64(0))
	}
	assert.True(t, names["a.txt"])
	assert.True(t, names["b.md"])
	assert.True(t, names[filepath.Join("sub", "d.txt")])
}

func TestLoadFolder_SkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.txt", "   \n\n  ")
	writeFile(t, dir, "real.txt", "actual content")

	docs, err := New().LoadFolder(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "real.txt", docs[0].Name)
}

func TestLoadFolder_SkipsOversizeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.txt", "0123456789")
	writeFile(t, dir, "ok.txt", "tiny")

	l := New()
	l.MaxBytes = 5
	docs, err := l.LoadFolder(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "ok.txt", docs[0].Name)
}

func TestLoadFolder_SkipsHiddenDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".git/notes.txt", "should not load")
	writeFile(t, dir, "visible.txt", "loads fine")

	docs, err := New().LoadFolder(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "visible.txt", docs[0].Name)
}

func TestLoadFolder_EmptyFolderIsError(t *testing.T) {
	_, err := New().LoadFolder(t.TempDir())
	assert.Error(t, err)
}

func TestLoadFolder_MissingFolderIsError(t *testing.T) {
	_, err := New().LoadFolder(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoadFolder_FileNotDirIsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f.txt", "x")
	_, err := New().LoadFolder(filepath.Join(dir, "f.txt"))
	assert.Error(t, err)
}

func TestLoadFolder_CleansContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "messy.txt", "line   with   runs\n\n\n\n\nnext")

	docs, err := New().LoadFolder(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "line with runs\n\nnext", docs[0].Content)
}
