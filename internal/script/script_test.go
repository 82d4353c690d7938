package script

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/classfile"
	"github.com/vk/buildcp/internal/classpath"
	"github.com/vk/buildcp/internal/lookup"
	"github.com/vk/buildcp/internal/repository"
	"github.com/zclconf/go-cty/cty"
)

// layers is a ClassLookup over in-memory indexes; later indexes shadow
// earlier ones.
type layers []*classfile.Index

func (l layers) Find(fqn string) (lookup.Resolution, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if c, ok := l[i].Class(fqn); ok {
			return lookup.Resolution{Class: c, Entry: classpath.Entry{Path: l[i].Source}}, true
		}
	}
	return lookup.Resolution{}, false
}

func (l layers) Package(pkg string) []string {
	set := make(map[string]bool)
	for _, idx := range l {
		for _, n := range idx.Package(pkg) {
			set[n] = true
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func testClasses() *classfile.Index {
	return classfile.NewIndex("test.jar", []*classfile.Class{
		{Name: "org.gradle.test.ImportedClass", Super: "java.lang.Object"},
		{Name: "org.gradle.test.StaticBaseClass", Super: "java.lang.Object", Fields: map[string]cty.Value{
			"someValue":      cty.StringVal("hidden"),
			"inheritedValue": cty.StringVal("from base"),
		}},
		{Name: "org.gradle.test.StaticImportedClass", Super: "org.gradle.test.StaticBaseClass", Fields: map[string]cty.Value{
			"someValue": cty.StringVal("hello"),
		}},
		{Name: "org.gradle.test.StaticImportedFieldClass", Super: "java.lang.Object", Fields: map[string]cty.Value{
			"anotherValue": cty.NumberIntVal(42),
			"ignored":      cty.True,
		}},
		{Name: "org.gradle.test2.OnDemandImportedClass", Super: "java.lang.Object"},
	})
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parse(t *testing.T, content string) *Script {
	t.Helper()
	s, err := Parse(context.Background(), writeScript(t, content))
	require.NoError(t, err)
	return s
}

func env(t *testing.T, s *Script, l ClassLookup, out *bytes.Buffer) Env {
	t.Helper()
	e := Env{
		Lookup:  l,
		Project: ProjectInfo{Name: "root", Path: ":", Dir: filepath.Dir(s.Path)},
	}
	if out != nil {
		e.Out = out
	}
	return e
}

const importingScript = `
imports = [
  "org.gradle.test.ImportedClass",
  "org.gradle.test2.*",
  "static org.gradle.test.StaticImportedClass.*",
  "static org.gradle.test.StaticImportedFieldClass.anotherValue",
]

a = new("ImportedClass")
b = class("OnDemandImportedClass")
c = someValue
d = anotherValue
e = upper(c)
f = inheritedValue

class "TestClass" {
  extends = "ImportedClass"
  fields = { greeting = "hi" }
}

task "hello" {
  description = "Says hello."
  depends_on  = ["prepare"]
  actions = [
    new("org.gradle.test.ImportedClass"),
    println(someValue),
    println(field("TestClass", "greeting")),
  ]
}

task "prepare" {
  actions = [println("preparing")]
}
`

func TestEvaluateResolvesImports(t *testing.T) {
	s := parse(t, importingScript)
	var out bytes.Buffer
	eval, err := s.Evaluate(context.Background(), env(t, s, layers{lookup.System(), testClasses()}, &out))
	require.NoError(t, err)

	got := make(map[string]string)
	for _, p := range eval.Properties {
		text, err := render(p.Value)
		require.NoError(t, err)
		got[p.Name] = text
	}
	want := map[string]string{
		"a": "org.gradle.test.ImportedClass@instance",
		"b": "org.gradle.test2.OnDemandImportedClass",
		"c": "hello",
		"d": "42",
		"e": "HELLO",
		"f": "from base",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, eval.Classes, 1)
	assert.Equal(t, "TestClass", eval.Classes[0].Name)
	assert.Equal(t, "org.gradle.test.ImportedClass", eval.Classes[0].Super)

	hello, ok := eval.Task("hello")
	require.True(t, ok)
	assert.Equal(t, "Says hello.", hello.Description)
	assert.Equal(t, []string{"prepare"}, hello.DependsOn)
	assert.Empty(t, out.String(), "actions must not run during evaluation")

	require.NoError(t, hello.Run(context.Background()))
	assert.Equal(t, "hello\nhi\n", out.String())
}

func TestEvaluateOrdersPropertiesByReference(t *testing.T) {
	s := parse(t, `
total = format("%s-%s", first, second)
second = "b"
first = "a"
`)
	eval, err := s.Evaluate(context.Background(), env(t, s, layers{lookup.System()}, nil))
	require.NoError(t, err)

	names := make([]string, len(eval.Properties))
	for i, p := range eval.Properties {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"second", "first", "total"}, names)
	v, ok := eval.Property("total")
	require.True(t, ok)
	assert.Equal(t, "a-b", v.AsString())
}

func TestEvaluateFailures(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"unresolvable class", `a = new("NoSuchClass")`},
		{"self reference", `a = a`},
		{"cycle", "a = b\nb = a"},
		{"unknown superclass", `
class "Broken" {
  extends = "NoSuchClass"
}`},
		{"duplicate task", "task \"x\" {\n}\ntask \"x\" {\n}"},
		{"unknown task dependency", `
task "x" {
  depends_on = ["missing"]
}`},
		{"unknown function in action", `
task "x" {
  actions = [launch()]
}`},
		{"missing static field", `
imports = ["static org.gradle.test.StaticImportedFieldClass.missing"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parse(t, tt.script)
			_, err := s.Evaluate(context.Background(), env(t, s, layers{lookup.System(), testClasses()}, nil))
			require.Error(t, err)
			assert.True(t, builderr.IsKind(err, builderr.KindScript), "got %v", err)
		})
	}
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"syntax", `a = `},
		{"unknown block", "plugins {\n}"},
		{"duplicate classpath", "scriptclasspath {\n}\nscriptclasspath {\n}"},
		{"unlabelled task", "task {\n}"},
		{"invalid import", `imports = ["a..b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), writeScript(t, tt.script))
			require.Error(t, err)
			assert.True(t, builderr.IsKind(err, builderr.KindScript), "got %v", err)
		})
	}
}

func TestParseMissingFileIsEmpty(t *testing.T) {
	s, err := Parse(context.Background(), filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.False(t, s.HasClasspathBlock())

	eval, err := s.Evaluate(context.Background(), Env{Lookup: layers{lookup.System()}})
	require.NoError(t, err)
	assert.Empty(t, eval.Properties)
	assert.Empty(t, eval.Tasks)
}

func TestParseImports(t *testing.T) {
	imps, err := ParseImports([]string{
		"a.b.C",
		"a.b.*",
		"static a.b.C.*",
		"static a.b.C.field",
	})
	require.NoError(t, err)
	want := Imports{
		Explicit: []string{"a.b.C"},
		OnDemand: []string{"a.b"},
		Static:   []StaticImport{{Class: "a.b.C", Member: "*"}, {Class: "a.b.C", Member: "field"}},
	}
	if diff := cmp.Diff(want, imps); diff != "" {
		t.Errorf("imports mismatch (-want +got):\n%s", diff)
	}

	_, err = ParseImports([]string{"static C"})
	assert.Error(t, err)
}

func TestEvaluateClasspath(t *testing.T) {
	s := parse(t, `
imports = ["static org.gradle.test.StaticImportedClass.*"]

scriptclasspath {
  repositories {
    flatDir {
      dirs = [file("repo"), "/abs/repo"]
    }
  }
  dependencies {
    classpath {
      name    = "test"
      version = "1.+"
    }
    classpath {
      group   = "org"
      name    = "other"
      version = "2.0"
    }
    classpath {
      files = [file("lib/classes")]
    }
  }
  probe = println(join(",", [class("ArrayList"), project.path]))
}
`)
	var out bytes.Buffer
	e := env(t, s, layers{lookup.System()}, &out)
	decl, err := s.EvaluateClasspath(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, decl.Frozen())
	assert.Equal(t, "java.util.ArrayList,:\n", out.String())

	repos := decl.Repositories()
	require.Len(t, repos, 1)
	flat, ok := repos[0].(*repository.FlatDir)
	require.True(t, ok)
	assert.Equal(t, []string{filepath.Join(e.Project.Dir, "repo"), "/abs/repo"}, flat.Dirs())

	deps := decl.Dependencies()
	require.Len(t, deps, 3)
	assert.Equal(t, "test:1.+", deps[0].Coordinate.String())
	assert.Equal(t, "org:other:2.0", deps[1].Coordinate.String())
	assert.Equal(t, []string{filepath.Join(e.Project.Dir, "lib", "classes")}, deps[2].Files)
	for _, d := range deps {
		assert.Equal(t, classpath.RoleClasspath, d.Role)
	}
}

func TestEvaluateClasspathWithoutBlock(t *testing.T) {
	s := parse(t, `a = new("NotVisibleInPassOne")`)
	decl, err := s.EvaluateClasspath(context.Background(), env(t, s, layers{lookup.System()}, nil))
	require.NoError(t, err)
	assert.True(t, decl.Frozen())
	assert.True(t, decl.IsEmpty())
}

func TestEvaluateClasspathCannotSeeDeclaredClasses(t *testing.T) {
	s := parse(t, `
imports = ["org.gradle.test.ImportedClass"]
scriptclasspath {
  probe = new("ImportedClass")
}
`)
	_, err := s.EvaluateClasspath(context.Background(), env(t, s, layers{lookup.System()}, nil))
	require.Error(t, err)
	assert.True(t, builderr.IsKind(err, builderr.KindDeclaration), "got %v", err)
	assert.Contains(t, err.Error(), "unable to resolve class ImportedClass")
}

func TestEvaluateClasspathFailures(t *testing.T) {
	tests := []struct {
		name  string
		block string
	}{
		{"unknown block", "plugins {\n}"},
		{"unknown repository kind", "repositories {\n  maven {\n  }\n}"},
		{"repository attribute", "repositories {\n  url = \"x\"\n}"},
		{"missing dirs", "repositories {\n  flatDir {\n  }\n}"},
		{"unknown role", "dependencies {\n  compile {\n    name = \"x\"\n  }\n}"},
		{"neither name nor files", "dependencies {\n  classpath {\n    version = \"1\"\n  }\n}"},
		{"both name and files", "dependencies {\n  classpath {\n    name  = \"x\"\n    files = [\"y\"]\n  }\n}"},
		{"missing version", "dependencies {\n  classpath {\n    name = \"x\"\n  }\n}"},
		{"unknown attribute", "dependencies {\n  classpath {\n    name   = \"x\"\n    flavor = \"y\"\n  }\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parse(t, "scriptclasspath {\n"+tt.block+"\n}\n")
			_, err := s.EvaluateClasspath(context.Background(), env(t, s, layers{lookup.System()}, nil))
			require.Error(t, err)
			assert.True(t, builderr.IsKind(err, builderr.KindDeclaration), "got %v", err)
		})
	}
}

func TestStaticImportOfInvisibleClassIsSkipped(t *testing.T) {
	s := parse(t, `
imports = ["static org.gradle.test.StaticImportedClass.*"]
scriptclasspath {
  probe = length(project.name)
}
c = someValue
`)
	e := env(t, s, layers{lookup.System()}, nil)
	_, err := s.EvaluateClasspath(context.Background(), e)
	require.NoError(t, err)

	e.Lookup = layers{lookup.System(), testClasses()}
	eval, err := s.Evaluate(context.Background(), e)
	require.NoError(t, err)
	v, ok := eval.Property("c")
	require.True(t, ok)
	assert.Equal(t, "hello", v.AsString())
}

func TestPackageClassesIncludesScriptClasses(t *testing.T) {
	s := parse(t, `
class "Local" {
}
names = package_classes("")
gradle = package_classes("org.gradle.test2")
`)
	eval, err := s.Evaluate(context.Background(), env(t, s, layers{lookup.System(), testClasses()}, nil))
	require.NoError(t, err)

	names, _ := eval.Property("names")
	assert.True(t, names.RawEquals(cty.ListVal([]cty.Value{cty.StringVal("Local")})), "got %#v", names)
	gradle, _ := eval.Property("gradle")
	assert.True(t, gradle.RawEquals(cty.ListVal([]cty.Value{cty.StringVal("OnDemandImportedClass")})), "got %#v", gradle)
}

func TestTaskRunHonoursCancellation(t *testing.T) {
	s := parse(t, `
task "x" {
  actions = [println("never")]
}`)
	var out bytes.Buffer
	eval, err := s.Evaluate(context.Background(), env(t, s, layers{lookup.System()}, &out))
	require.NoError(t, err)
	task, ok := eval.Task("x")
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, task.Run(ctx), context.Canceled)
	assert.Empty(t, out.String())
}
