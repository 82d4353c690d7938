package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestFindFilesByExtension(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b", "B.java"))
	touch(t, filepath.Join(root, "A.java"))
	touch(t, filepath.Join(root, "c", "C.groovy"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, ".gradle", "Hidden.java"))

	files, err := FindFilesByExtension(root, ".java", ".groovy")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "A.java"),
		filepath.Join(root, "b", "B.java"),
		filepath.Join(root, "c", "C.groovy"),
	}, files)

	all, err := FindFilesByExtension(root)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestFindFilesByExtensionMissingRoot(t *testing.T) {
	files, err := FindFilesByExtension(filepath.Join(t.TempDir(), "missing"), ".java")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestIsDirIsFile(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "f"))

	assert.True(t, IsDir(root))
	assert.False(t, IsFile(root))
	assert.True(t, IsFile(filepath.Join(root, "f")))
	assert.False(t, IsDir(filepath.Join(root, "f")))
	assert.False(t, IsFile(filepath.Join(root, "missing")))
}
