package app

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/buildsrc"
	"github.com/vk/buildcp/internal/classpath"
	"github.com/vk/buildcp/internal/testutil"
)

var testJarSources = map[string]string{
	"org/gradle/test/ImportedClass.java": `
		package org.gradle.test;
		public class ImportedClass { }
	`,
	"org/gradle/test/StaticImportedClass.java": `
		package org.gradle.test;
		public class StaticImportedClass {
		    public static int someValue = 12;
		}
	`,
	"org/gradle/test/StaticImportedFieldClass.java": `
		package org.gradle.test;
		public class StaticImportedFieldClass {
		    public static int anotherValue = 4;
		}
	`,
	"org/gradle/test2/OnDemandImportedClass.java": `
		package org.gradle.test2;
		public class OnDemandImportedClass { }
	`,
}

const importingBuildScript = `
	imports = [
	  "org.gradle.test.ImportedClass",
	  "org.gradle.test2.*",
	  "static org.gradle.test.StaticImportedClass.*",
	  "static org.gradle.test.StaticImportedFieldClass.anotherValue",
	]

	scriptclasspath {
	  repositories {
	    flatDir {
	      dirs = [file("repo")]
	    }
	  }
	  dependencies {
	    classpath {
	      name    = "test"
	      version = "1.+"
	    }
	  }
	}

	class "TestClass" {
	  extends = "ImportedClass"
	}

	task "hello" {
	  actions = [
	    new("ImportedClass"),
	    new("OnDemandImportedClass"),
	    new("TestClass"),
	    println(someValue),
	    println(anotherValue),
	  ]
	}
`

func TestDefaultBuildSources(t *testing.T) {
	dir := testutil.NewBuild(t, map[string]string{
		"buildSrc/src/main/java/BuildClass.java": `public class BuildClass { }`,
		"build.hcl":                              `instance = new("BuildClass")`,
	})
	a := SetupAppTest(t, dir, nil, nil)

	inv, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, inv.BuildSrc)
	assert.Equal(t, filepath.Join(dir, buildsrc.ArchivePath), inv.BuildSrc.Path)
	assert.FileExists(t, filepath.Join(dir, "buildSrc", ".gradle", "internal-repository", "org.gradle", "buildSrc", "SNAPSHOT", "jars", "buildSrc.jar"))
	assert.Equal(t, []string{DefaultTask}, inv.Executed)
	assert.Contains(t, a.Out.String(), "Tasks\n-----\n")
}

func TestBuildSourcesArchiveIsCached(t *testing.T) {
	dir := testutil.NewBuild(t, map[string]string{
		"buildSrc/src/main/java/BuildClass.java": `public class BuildClass { }`,
		"build.hcl":                              `instance = new("BuildClass")`,
	})
	archive := filepath.Join(dir, buildsrc.ArchivePath)

	first, err := SetupAppTest(t, dir, nil, nil).RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, first.BuildSrc.Rebuilt)

	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(archive, past, past))

	second, err := SetupAppTest(t, dir, nil, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, second.BuildSrc.Rebuilt)
	info, err := os.Stat(archive)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past), "archive was rewritten: %v != %v", info.ModTime(), past)
}

func TestDeclaredClasspathWithImports(t *testing.T) {
	dir := testutil.NewBuild(t, map[string]string{"build.hcl": importingBuildScript})
	testutil.BuildRepoJar(t, filepath.Join(dir, "repo"), "test", "1.3", testJarSources)
	a := SetupAppTest(t, dir, []string{"hello"}, nil)

	inv, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{":hello"}, inv.Executed)
	assert.Equal(t, "12\n4\n", a.Out.String())

	root, ok := inv.Project(":")
	require.True(t, ok)
	declared := root.Classpath.Layer(classpath.OriginDeclared)
	require.Len(t, declared, 1)
	assert.Equal(t, "test:1.3", declared[0].Coordinate.String())
	assert.True(t, strings.HasPrefix(declared[0].Path, a.Store().Root()), "declared entry %s is not in the store", declared[0].Path)
}

func TestBuildSourcesVisibleInClasspathBlock(t *testing.T) {
	dir := testutil.NewBuild(t, map[string]string{
		"buildSrc/src/main/java/org/gradle/RepoSettings.java": `
			package org.gradle;
			public class RepoSettings {
			    public static String REPO = "repo";
			    public static String VERSION = "1.+";
			}
		`,
		"build.hcl": `
			imports = ["org.gradle.RepoSettings"]

			scriptclasspath {
			  repositories {
			    flatDir {
			      dirs = [file(field("RepoSettings", "REPO"))]
			    }
			  }
			  dependencies {
			    classpath {
			      name    = "test"
			      version = field("RepoSettings", "VERSION")
			    }
			  }
			  probe = new("RepoSettings")
			}

			task "hello" {
			  actions = [println(class("org.gradle.test.ImportedClass"))]
			}
		`,
	})
	testutil.BuildRepoJar(t, filepath.Join(dir, "repo"), "test", "1.3", testJarSources)
	a := SetupAppTest(t, dir, []string{"hello"}, nil)

	_, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "org.gradle.test.ImportedClass\n", a.Out.String())
}

func TestChildInheritsParentClasspath(t *testing.T) {
	dir := testutil.NewBuild(t, map[string]string{
		"settings.hcl": `include = ["child"]`,
		"build.hcl": `
			scriptclasspath {
			  repositories {
			    flatDir {
			      dirs = [file("repo")]
			    }
			  }
			  dependencies {
			    classpath {
			      name    = "test"
			      version = "1.3"
			    }
			  }
			}
		`,
		"child/build.hcl": `
			imports = ["static org.gradle.test.StaticImportedClass.someValue"]

			task "hello" {
			  actions = [
			    new("org.gradle.test.ImportedClass"),
			    println(someValue),
			  ]
			}
		`,
	})
	testutil.BuildRepoJar(t, filepath.Join(dir, "repo"), "test", "1.3", testJarSources)
	a := SetupAppTest(t, dir, []string{"hello"}, nil)

	inv, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{":child:hello"}, inv.Executed)
	assert.Equal(t, "12\n", a.Out.String())

	root, _ := inv.Project(":")
	child, ok := inv.Project(":child")
	require.True(t, ok)
	for _, path := range root.Classpath.Paths() {
		assert.True(t, child.Classpath.Contains(path), "child classpath misses %s", path)
	}
	inherited := child.Classpath.Layer(classpath.OriginInherited)
	require.Len(t, inherited, 1)
	assert.Equal(t, "test:1.3", inherited[0].Coordinate.String())
}

func TestUnresolvedDependency(t *testing.T) {
	dir := testutil.NewBuild(t, map[string]string{"build.hcl": importingBuildScript})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "repo"), 0o755))
	a := SetupAppTest(t, dir, []string{"hello"}, nil)

	_, err := a.RunOnce(context.Background())
	be := testutil.RequireKind(t, err, builderr.KindUnresolvedDependency)
	assert.Equal(t, ":", be.Project)
	assert.Contains(t, err.Error(), "test:1.+")
	assert.Equal(t, 8, builderr.ExitCode(err))

	var stored []string
	_ = filepath.WalkDir(a.Store().Root(), func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			stored = append(stored, path)
		}
		return nil
	})
	assert.Empty(t, stored)
}

func TestDeclaredDependencyShadowsSystemClass(t *testing.T) {
	dir := testutil.NewBuild(t, map[string]string{
		"build.hcl": `
			scriptclasspath {
			  dependencies {
			    classpath {
			      files = [file("libs/math.jar")]
			    }
			  }
			}
			pi = field("Math", "PI")
		`,
	})
	testutil.BuildJar(t, filepath.Join(dir, "libs", "math.jar"), map[string]string{
		"java/lang/Math.java": `
			package java.lang;
			public class Math {
			    public static int PI = 3;
			}
		`,
	})
	a := SetupAppTest(t, dir, nil, nil)

	inv, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	root, _ := inv.Project(":")
	pi, ok := root.Evaluation.Property("pi")
	require.True(t, ok)
	assert.Equal(t, "3", pi.AsBigFloat().Text('f', -1))
}

func TestBuildSourcesCompilationFailure(t *testing.T) {
	dir := testutil.NewBuild(t, map[string]string{
		"buildSrc/src/main/java/Broken.java": `public class Broken extends Missing { }`,
	})
	_, err := SetupAppTest(t, dir, nil, nil).RunOnce(context.Background())
	be := testutil.RequireKind(t, err, builderr.KindBuildSrcCompilation)
	assert.Contains(t, be.Subject, "Broken.java")
}

func TestDeclarationErrorNamesProject(t *testing.T) {
	dir := testutil.NewBuild(t, map[string]string{
		"settings.hcl": `include = ["child"]`,
		"child/build.hcl": `
			scriptclasspath {
			  plugins {
			  }
			}
		`,
	})
	_, err := SetupAppTest(t, dir, nil, nil).RunOnce(context.Background())
	be := testutil.RequireKind(t, err, builderr.KindDeclaration)
	assert.Equal(t, ":child", be.Project)
}

func TestOfflineResolvesFromStore(t *testing.T) {
	dir := testutil.NewBuild(t, map[string]string{"build.hcl": importingBuildScript})
	repo := filepath.Join(dir, "repo")
	testutil.BuildRepoJar(t, repo, "test", "1.3", testJarSources)
	cache := filepath.Join(t.TempDir(), "shared-cache")

	_, err := SetupAppTest(t, dir, []string{"hello"}, func(c *Config) { c.CacheDir = cache }).RunOnce(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(repo))
	a := SetupAppTest(t, dir, []string{"hello"}, func(c *Config) {
		c.CacheDir = cache
		c.Offline = true
	})
	_, err = a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12\n4\n", a.Out.String())
}
