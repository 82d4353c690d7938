package script

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/buildcp/internal/classfile"
	"github.com/vk/buildcp/internal/lookup"
	"github.com/zclconf/go-cty/cty"
)

// DefaultImports are the packages every build script imports on demand.
var DefaultImports = []string{"java.lang", "java.util", "groovy.lang", "org.gradle.api"}

// StaticImport imports one static field, or every static field when Member
// is "*", of a class.
type StaticImport struct {
	Class  string
	Member string
}

// Imports are the import declarations of a build script.
type Imports struct {
	Explicit []string // fully qualified class names
	OnDemand []string // package names
	Static   []StaticImport
}

// ParseImports reads import declarations such as "a.b.C", "a.b.*",
// "static a.b.C.*" and "static a.b.C.field".
func ParseImports(decls []string) (Imports, error) {
	var imps Imports
	for _, d := range decls {
		d = strings.TrimSpace(d)
		static := false
		if rest, ok := strings.CutPrefix(d, "static "); ok {
			static = true
			d = strings.TrimSpace(rest)
		}
		if !validImport(d) {
			return Imports{}, fmt.Errorf("invalid import %q", d)
		}
		switch {
		case static:
			cls, member := classfile.PackageOf(d), classfile.SimpleNameOf(d)
			if cls == "" {
				return Imports{}, fmt.Errorf("invalid static import %q: expected a class and a member", d)
			}
			imps.Static = append(imps.Static, StaticImport{Class: cls, Member: member})
		case strings.HasSuffix(d, ".*"):
			imps.OnDemand = append(imps.OnDemand, strings.TrimSuffix(d, ".*"))
		default:
			imps.Explicit = append(imps.Explicit, d)
		}
	}
	return imps, nil
}

func validImport(d string) bool {
	parts := strings.Split(d, ".")
	for i, p := range parts {
		if p == "*" && i == len(parts)-1 && i > 0 {
			continue
		}
		if p == "" || strings.ContainsAny(p, " */\\") {
			return false
		}
	}
	return true
}

// ClassLookup is the class lookup chain a script is evaluated against.
type ClassLookup interface {
	Find(fqn string) (lookup.Resolution, bool)
	Package(pkg string) []string
}

// resolver resolves class names as written in a script.
type resolver struct {
	lookup  ClassLookup
	imports Imports
	classes map[string]*classfile.Class // script-declared classes by name
}

// resolve maps a name to a class: script classes, explicit imports, the
// default package, on-demand imports, then the default imports. Qualified
// names are looked up directly.
func (r *resolver) resolve(name string) (*classfile.Class, bool) {
	if c, ok := r.classes[name]; ok {
		return c, true
	}
	if strings.Contains(name, ".") {
		return r.find(name)
	}
	for _, imp := range r.imports.Explicit {
		if classfile.SimpleNameOf(imp) == name {
			return r.find(imp)
		}
	}
	if c, ok := r.find(name); ok {
		return c, true
	}
	for _, pkg := range r.imports.OnDemand {
		if c, ok := r.find(pkg + "." + name); ok {
			return c, true
		}
	}
	for _, pkg := range DefaultImports {
		if c, ok := r.find(pkg + "." + name); ok {
			return c, true
		}
	}
	return nil, false
}

func (r *resolver) find(fqn string) (*classfile.Class, bool) {
	res, ok := r.lookup.Find(fqn)
	if !ok {
		return nil, false
	}
	return res.Class, true
}

// field finds a static field on a class or its superclasses.
func (r *resolver) field(c *classfile.Class, name string) (*classfile.Class, bool) {
	seen := make(map[string]bool)
	for c != nil && !seen[c.Name] {
		seen[c.Name] = true
		if _, ok := c.Field(name); ok {
			return c, true
		}
		if c.Super == "" {
			break
		}
		c, _ = r.resolve(c.Super)
	}
	return nil, false
}

// staticFields returns every static field visible through c, including the
// inherited ones. A field declared lower in the hierarchy hides one of the
// same name declared above it.
func (r *resolver) staticFields(c *classfile.Class) map[string]cty.Value {
	fields := make(map[string]cty.Value)
	seen := make(map[string]bool)
	for c != nil && !seen[c.Name] {
		seen[c.Name] = true
		for name, v := range c.Fields {
			if _, hidden := fields[name]; !hidden {
				fields[name] = v
			}
		}
		if c.Super == "" {
			break
		}
		c, _ = r.resolve(c.Super)
	}
	return fields
}

// packageClasses lists the simple names visible in a package, including
// script classes in the default package.
func (r *resolver) packageClasses(pkg string) []string {
	names := r.lookup.Package(pkg)
	if pkg != "" {
		return names
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	for n, c := range r.classes {
		if c.Package() == "" && !set[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
