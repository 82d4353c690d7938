package buildsrc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/classfile"
	"github.com/vk/buildcp/internal/compiler"
	"github.com/vk/buildcp/internal/lookup"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newBuilder() *Builder {
	return New(compiler.NewSourceCompiler(), lookup.System(), WithHashWorkers(2))
}

func TestBuildAbsent(t *testing.T) {
	a, err := newBuilder().Build(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestBuildDefaultDefinition(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"buildSrc/src/main/java/BuildClass.java":          "public class BuildClass { }",
		"buildSrc/src/main/groovy/org/util/Helper.groovy": "package org.util\nclass Helper extends ArrayList { static int answer = 42 }",
		"buildSrc/src/main/resources/ignored.java":        "not compiled",
	})

	a, err := newBuilder().Build(context.Background(), root)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.True(t, a.Rebuilt)
	assert.Equal(t, filepath.Join(root, ArchivePath), a.Path)
	assert.FileExists(t, a.Path)
	assert.Equal(t, 2, a.Classes)

	idx, err := classfile.ReadArchive(a.Path)
	require.NoError(t, err)
	assert.Equal(t, []string{"BuildClass", "org.util.Helper"}, idx.Names())
	helper, _ := idx.Class("org.util.Helper")
	assert.Equal(t, "java.util.ArrayList", helper.Super)

	comment, err := classfile.ArchiveComment(a.Path)
	require.NoError(t, err)
	assert.Equal(t, a.InputHash, comment)
}

func TestBuildIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"buildSrc/src/main/java/BuildClass.java": "public class BuildClass { }"})

	first, err := newBuilder().Build(context.Background(), root)
	require.NoError(t, err)

	// Push the archive into the past so a rewrite would be visible.
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(first.Path, past, past))

	second, err := newBuilder().Build(context.Background(), root)
	require.NoError(t, err)
	assert.False(t, second.Rebuilt)
	assert.Equal(t, first.InputHash, second.InputHash)
	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.True(t, second.ModTime.Equal(past), "archive must not be rewritten")

	info, err := os.Stat(first.Path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past))
}

func TestBuildRebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"buildSrc/src/main/java/BuildClass.java": "public class BuildClass { }"})
	first, err := newBuilder().Build(context.Background(), root)
	require.NoError(t, err)

	writeFiles(t, root, map[string]string{"buildSrc/src/main/java/Other.java": "public class Other extends BuildClass { }"})
	second, err := newBuilder().Build(context.Background(), root)
	require.NoError(t, err)
	assert.True(t, second.Rebuilt)
	assert.NotEqual(t, first.InputHash, second.InputHash)
	assert.Equal(t, 2, second.Classes)
}

func TestBuildCustomDefinition(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"buildSrc/build.hcl":                  `source_dirs = ["sources"]`,
		"buildSrc/sources/Custom.java":        "public class Custom { public static String name = \"custom\"; }",
		"buildSrc/src/main/java/Skipped.java": "public class Skipped { }",
	})
	a, err := newBuilder().Build(context.Background(), root)
	require.NoError(t, err)
	idx, err := classfile.ReadArchive(a.Path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Custom"}, idx.Names())
}

func TestBuildCompilationError(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"buildSrc/src/main/java/Broken.java": "public class Broken extends Missing {"})

	_, err := newBuilder().Build(context.Background(), root)
	require.Error(t, err)
	assert.True(t, builderr.IsKind(err, builderr.KindBuildSrcCompilation))
	assert.Contains(t, err.Error(), "Broken.java")
	assert.NoFileExists(t, filepath.Join(root, ArchivePath))
}

func TestBuildBadDefinition(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"buildSrc/build.hcl": `unknown = true`})
	_, err := newBuilder().Build(context.Background(), root)
	assert.True(t, builderr.IsKind(err, builderr.KindBuildSrcCompilation))
}
