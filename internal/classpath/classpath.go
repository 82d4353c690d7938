// Package classpath holds the classpath value types of a build script:
// tagged entries, the composed classpath of a project, the declaration
// assembled in Pass 1, and the resolver that materialises a declaration.
package classpath

import (
	"fmt"
	"path/filepath"

	"github.com/vk/buildcp/internal/coord"
)

// Origin tags where a classpath entry came from. Origins are ordered by
// precedence: later origins shadow earlier ones.
type Origin int

const (
	OriginSystem Origin = iota
	OriginBuildSrc
	OriginInherited
	OriginDeclared
)

// String implements fmt.Stringer.
func (o Origin) String() string {
	switch o {
	case OriginSystem:
		return "system"
	case OriginBuildSrc:
		return "buildSrc"
	case OriginInherited:
		return "inherited"
	case OriginDeclared:
		return "declared"
	}
	return fmt.Sprintf("Origin(%d)", int(o))
}

// SystemPath is the symbolic path of the in-memory platform classes.
const SystemPath = "<system>"

// Entry is an archive or directory on a classpath.
type Entry struct {
	Path       string
	Origin     Origin
	Coordinate coord.Coordinate // zero for file and buildSrc entries
}

// String implements fmt.Stringer.
func (e Entry) String() string {
	if e.Coordinate.Name != "" {
		return fmt.Sprintf("%s (%s, %s)", e.Path, e.Origin, e.Coordinate)
	}
	return fmt.Sprintf("%s (%s)", e.Path, e.Origin)
}

// ComposedClasspath is an ordered sequence of entries in which no path
// appears twice and origins never decrease. It is immutable once built and
// safe to share with child projects.
type ComposedClasspath struct {
	entries []Entry
}

// Empty is the classpath inherited by the root project.
var Empty = &ComposedClasspath{}

// Compose builds a project's classpath from its layers. Parent entries are
// contributed as inherited, whatever their original tag, unless an earlier
// layer already holds the same path. Within and across layers the first
// occurrence of a path wins, so a child that re-declares a parent entry
// leaves it at its inherited position.
func Compose(system, buildSrc []Entry, parent *ComposedClasspath, declared []Entry) *ComposedClasspath {
	b := &composer{seen: make(map[string]bool)}
	b.add(system, OriginSystem)
	b.add(buildSrc, OriginBuildSrc)
	if parent != nil {
		b.add(parent.entries, OriginInherited)
	}
	b.add(declared, OriginDeclared)
	return &ComposedClasspath{entries: b.entries}
}

type composer struct {
	entries []Entry
	seen    map[string]bool
}

func (b *composer) add(entries []Entry, origin Origin) {
	for _, e := range entries {
		key := normalize(e.Path)
		if b.seen[key] {
			continue
		}
		b.seen[key] = true
		e.Path = key
		e.Origin = origin
		b.entries = append(b.entries, e)
	}
}

func normalize(path string) string {
	if path == SystemPath {
		return path
	}
	return filepath.Clean(path)
}

// Entries returns a copy of the entries in precedence order.
func (c *ComposedClasspath) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Paths returns the entry paths in precedence order.
func (c *ComposedClasspath) Paths() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Path
	}
	return out
}

// Layer returns the entries carrying the given origin.
func (c *ComposedClasspath) Layer(o Origin) []Entry {
	var out []Entry
	for _, e := range c.entries {
		if e.Origin == o {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether the path is on the classpath.
func (c *ComposedClasspath) Contains(path string) bool {
	path = normalize(path)
	for _, e := range c.entries {
		if e.Path == path {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (c *ComposedClasspath) Len() int {
	return len(c.entries)
}

// Validate checks the composition invariants: unique paths and
// non-decreasing origins.
func (c *ComposedClasspath) Validate() error {
	seen := make(map[string]bool, len(c.entries))
	for i, e := range c.entries {
		if seen[e.Path] {
			return fmt.Errorf("classpath entry %s appears twice", e.Path)
		}
		seen[e.Path] = true
		if i > 0 && e.Origin < c.entries[i-1].Origin {
			return fmt.Errorf("classpath entry %s (%s) follows a %s entry", e.Path, e.Origin, c.entries[i-1].Origin)
		}
	}
	return nil
}
