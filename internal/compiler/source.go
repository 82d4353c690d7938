package compiler

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/vk/buildcp/internal/classfile"
	"github.com/vk/buildcp/internal/ctxlog"
)

// ObjectClass is the implicit superclass of every class.
const ObjectClass = "java.lang.Object"

// SourceCompiler compiles the declaration structure of Java and Groovy
// sources in process. It resolves superclasses against the sources being
// compiled and the request classpath.
type SourceCompiler struct{}

// NewSourceCompiler creates the in-process compiler.
func NewSourceCompiler() *SourceCompiler {
	return &SourceCompiler{}
}

// Compile implements Compiler.
func (c *SourceCompiler) Compile(ctx context.Context, req Request) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Compiling sources.", "count", len(req.Sources))

	var diags Diagnostics
	units := make([]*unit, 0, len(req.Sources))
	for _, file := range req.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("reading source %s: %w", file, err)
		}
		u, ds := parse(file, f)
		f.Close()
		if len(ds) > 0 {
			diags = append(diags, ds...)
			continue
		}
		units = append(units, u)
	}
	if len(diags) > 0 {
		return nil, diags
	}

	// Collect declared types before resolving so sources may refer to each
	// other in any order.
	declared := make(map[string]*typeDecl)
	owner := make(map[string]*unit)
	for _, u := range units {
		for _, d := range u.types {
			fqn := qualify(u.pkg, d.name)
			if _, dup := declared[fqn]; dup {
				diags = append(diags, &Diagnostic{File: u.file, Line: d.line, Column: d.column, Message: "duplicate class: " + fqn})
				continue
			}
			if want, ok := expectedFileName(u.file, d.name); d.public && !ok {
				diags = append(diags, &Diagnostic{File: u.file, Line: d.line, Column: d.column,
					Message: fmt.Sprintf("class %s is public, should be declared in a file named %s", d.name, want)})
				continue
			}
			declared[fqn] = d
			owner[fqn] = u
		}
	}
	if len(diags) > 0 {
		return nil, diags
	}

	r := &resolver{declared: declared, classpath: req.ClassPath}
	result := &Result{}
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, d := range u.types {
			fqn := qualify(u.pkg, d.name)
			if owner[fqn] != u {
				continue
			}
			super := ObjectClass
			if d.super != "" {
				resolved, ok := r.resolve(u, d.super)
				if !ok {
					diags = append(diags, &Diagnostic{File: u.file, Line: d.line, Column: d.column,
						Message: "cannot find symbol: class " + d.super})
					continue
				}
				super = resolved
			}
			cls := &classfile.Class{Name: fqn, Super: super}
			if len(d.fields) > 0 {
				cls.Fields = d.fields
			}
			result.Classes = append(result.Classes, cls)
		}
	}
	if len(diags) > 0 {
		return nil, diags
	}
	logger.Debug("Compiled sources.", "classes", len(result.Classes))
	return result, nil
}

type resolver struct {
	declared  map[string]*typeDecl
	classpath ClassPath
}

func (r *resolver) exists(fqn string) bool {
	if _, ok := r.declared[fqn]; ok {
		return true
	}
	if r.classpath == nil {
		return false
	}
	_, ok := r.classpath.Class(fqn)
	return ok
}

var (
	javaDefaultImports   = []string{"java.lang"}
	groovyDefaultImports = []string{"java.lang", "java.util", "java.io", "java.net", "groovy.lang", "groovy.util"}
)

// resolve maps a type name as written in a unit to a fully qualified name:
// single-type imports, then the unit's own package, then on-demand imports,
// then the language's default imports.
func (r *resolver) resolve(u *unit, name string) (string, bool) {
	if strings.Contains(name, ".") {
		return name, r.exists(name)
	}
	for _, imp := range u.imports {
		if !strings.HasSuffix(imp, ".*") && classfile.SimpleNameOf(imp) == name {
			return imp, r.exists(imp)
		}
	}
	if fqn := qualify(u.pkg, name); r.exists(fqn) {
		return fqn, true
	}
	for _, imp := range u.imports {
		if pkg, ok := strings.CutSuffix(imp, ".*"); ok {
			if fqn := qualify(pkg, name); r.exists(fqn) {
				return fqn, true
			}
		}
	}
	defaults := javaDefaultImports
	if u.groovy {
		defaults = groovyDefaultImports
	}
	for _, pkg := range defaults {
		if fqn := qualify(pkg, name); r.exists(fqn) {
			return fqn, true
		}
	}
	return "", false
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}
