package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildcp/internal/classfile"
	"github.com/zclconf/go-cty/cty"
)

func writeSources(t *testing.T, files map[string]string) []string {
	t.Helper()
	root := t.TempDir()
	var paths []string
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths = append(paths, path)
	}
	return paths
}

func compile(t *testing.T, cp ClassPath, files map[string]string) (*Result, error) {
	t.Helper()
	return NewSourceCompiler().Compile(context.Background(), Request{Sources: writeSources(t, files), ClassPath: cp})
}

func classesByName(res *Result) map[string]*classfile.Class {
	out := make(map[string]*classfile.Class)
	for _, c := range res.Classes {
		out[c.Name] = c
	}
	return out
}

func TestCompileJavaClass(t *testing.T) {
	res, err := compile(t, nil, map[string]string{
		"org/gradle/test/ImportedClass.java": `
package org.gradle.test;

import java.util.List;

/** Imported from buildSrc. */
public class ImportedClass {
    public static int someValue = 12;
    public static final String NAME = "imported";
    public static boolean enabled = true;
    public static long big = -3L;
    private static int hidden = 1;
    public int instance = 4;
    public static List<String> names = null;

    public static int twice(int v) {
        return v * 2;
    }

    static {
        hidden = 2;
    }
}
`,
	})
	require.NoError(t, err)
	require.Len(t, res.Classes, 1)

	c := res.Classes[0]
	assert.Equal(t, "org.gradle.test.ImportedClass", c.Name)
	assert.Equal(t, ObjectClass, c.Super)
	assert.Equal(t, []string{"NAME", "big", "enabled", "someValue"}, c.FieldNames())
	assert.True(t, c.Fields["someValue"].Equals(cty.NumberIntVal(12)).True())
	assert.True(t, c.Fields["big"].Equals(cty.NumberIntVal(-3)).True())
	assert.Equal(t, cty.StringVal("imported"), c.Fields["NAME"])
	assert.Equal(t, cty.True, c.Fields["enabled"])
}

func TestCompileGroovyClass(t *testing.T) {
	res, err := compile(t, nil, map[string]string{
		"BuildSrcClass.groovy": `
class BuildSrcClass {
    static String message = 'hello from buildSrc'
    static int answer = 42
    def greet() { println message }
}
`,
	})
	require.NoError(t, err)
	require.Len(t, res.Classes, 1)
	c := res.Classes[0]
	assert.Equal(t, "BuildSrcClass", c.Name)
	assert.Equal(t, cty.StringVal("hello from buildSrc"), c.Fields["message"])
	assert.True(t, c.Fields["answer"].Equals(cty.NumberIntVal(42)).True())
}

func TestCompileResolvesSuperclasses(t *testing.T) {
	cp := classfile.NewIndex("system", []*classfile.Class{
		{Name: ObjectClass},
		{Name: "java.util.ArrayList", Super: ObjectClass},
		{Name: "org.lib.Base", Super: ObjectClass},
	})
	res, err := compile(t, cp, map[string]string{
		"a/Sub.java":       "package a; public class Sub extends Base {}",
		"a/Base.java":      "package a; public class Base {}",
		"b/Imported.java":  "package b; import org.lib.Base; public class Imported extends Base {}",
		"b/Wildcard.java":  "package b; import java.util.*; public class Wildcard extends ArrayList<String> implements Runnable { public void run() {} }",
		"b/Qualified.java": "package b; public class Qualified extends a.Sub {}",
		"b/Lang.java":      "package b; public class Lang extends Object {}",
	})
	require.NoError(t, err)

	got := map[string]string{}
	for name, c := range classesByName(res) {
		got[name] = c.Super
	}
	want := map[string]string{
		"a.Sub":       "a.Base",
		"a.Base":      ObjectClass,
		"b.Imported":  "org.lib.Base",
		"b.Wildcard":  "java.util.ArrayList",
		"b.Qualified": "a.Sub",
		"b.Lang":      ObjectClass,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("superclasses mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileErrors(t *testing.T) {
	testCases := []struct {
		name    string
		files   map[string]string
		wantMsg string
	}{
		{
			name:    "unbalanced brace",
			files:   map[string]string{"Broken.java": "public class Broken {\n  void m() {\n"},
			wantMsg: "reached end of file while parsing",
		},
		{
			name:    "stray closing brace",
			files:   map[string]string{"Broken.java": "public class Broken {}\n}\n"},
			wantMsg: "class, interface, or enum expected",
		},
		{
			name:    "unknown superclass",
			files:   map[string]string{"Broken.java": "public class Broken extends Missing {}"},
			wantMsg: "cannot find symbol: class Missing",
		},
		{
			name:    "public class in wrong file",
			files:   map[string]string{"Other.java": "public class Broken {}"},
			wantMsg: "should be declared in a file named Broken.java",
		},
		{
			name: "duplicate class",
			files: map[string]string{
				"a/One.java": "package p; class Dup {}",
				"b/Two.java": "package p; class Dup {}",
			},
			wantMsg: "duplicate class: p.Dup",
		},
		{
			name:    "missing semicolon",
			files:   map[string]string{"Broken.java": "package p\npublic class Broken {}"},
			wantMsg: "';' expected",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := compile(t, nil, tc.files)
			require.Error(t, err)
			var diags Diagnostics
			require.True(t, errors.As(err, &diags))
			assert.Contains(t, err.Error(), tc.wantMsg)
			assert.NotEmpty(t, diags.File())
		})
	}
}

func TestCompileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	paths := writeSources(t, map[string]string{"A.java": "class A {}"})
	_, err := NewSourceCompiler().Compile(ctx, Request{Sources: paths})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiagnosticsError(t *testing.T) {
	ds := Diagnostics{
		{File: "A.java", Line: 1, Column: 2, Message: "first"},
		{File: "B.java", Line: 3, Column: 4, Message: "second"},
	}
	assert.Equal(t, "A.java:1:2: first\nB.java:3:4: second\n2 errors", ds.Error())
	assert.Equal(t, "A.java", ds.File())
}
