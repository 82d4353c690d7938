package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/buildcp/internal/classfile"
	"github.com/vk/buildcp/internal/compiler"
	"github.com/vk/buildcp/internal/lookup"
)

// BuildJar compiles sources against the system classes and packages the
// result as a jar at path. Source keys are slash separated file names such
// as "org/gradle/test/ImportedClass.java".
func BuildJar(t *testing.T, path string, sources map[string]string) string {
	t.Helper()
	srcDir := t.TempDir()
	WriteFiles(t, srcDir, sources)
	var files []string
	for name := range sources {
		files = append(files, filepath.Join(srcDir, filepath.FromSlash(name)))
	}

	res, err := compiler.NewSourceCompiler().Compile(context.Background(), compiler.Request{
		Sources:   files,
		ClassPath: lookup.System(),
	})
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, classfile.WriteArchive(f, res.Classes, ""))
	return path
}

// BuildRepoJar builds "<name>-<version>.jar" inside a flat directory repository.
func BuildRepoJar(t *testing.T, repoDir, name, version string, sources map[string]string) string {
	t.Helper()
	return BuildJar(t, filepath.Join(repoDir, name+"-"+version+".jar"), sources)
}
