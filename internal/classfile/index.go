package classfile

import "sort"

// Index is the set of classes provided by one classpath container.
type Index struct {
	Source   string // archive or directory path, or a symbolic name for in-memory indexes
	classes  map[string]*Class
	packages map[string][]string
}

// NewIndex builds an index. When two classes share a name the later one wins.
func NewIndex(source string, classes []*Class) *Index {
	idx := &Index{
		Source:   source,
		classes:  make(map[string]*Class, len(classes)),
		packages: make(map[string][]string),
	}
	for _, c := range classes {
		if _, dup := idx.classes[c.Name]; !dup {
			idx.packages[c.Package()] = append(idx.packages[c.Package()], c.SimpleName())
		}
		idx.classes[c.Name] = c
	}
	for _, names := range idx.packages {
		sort.Strings(names)
	}
	return idx
}

// Class looks up a class by fully qualified name.
func (i *Index) Class(fqn string) (*Class, bool) {
	c, ok := i.classes[fqn]
	return c, ok
}

// Package returns the simple names of the classes in a package, sorted.
func (i *Index) Package(pkg string) []string {
	return i.packages[pkg]
}

// Names returns every fully qualified class name, sorted.
func (i *Index) Names() []string {
	names := make([]string, 0, len(i.classes))
	for n := range i.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Classes returns every class ordered by name.
func (i *Index) Classes() []*Class {
	names := i.Names()
	out := make([]*Class, len(names))
	for n, name := range names {
		out[n] = i.classes[name]
	}
	return out
}

// Len returns the number of classes.
func (i *Index) Len() int {
	return len(i.classes)
}
