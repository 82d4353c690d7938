// Package lookup composes the class lookup chain a build script is evaluated
// against. The chain layers the entries of a composed classpath and resolves
// a fully qualified name to the last layer that provides it.
package lookup

import (
	"context"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/classfile"
	"github.com/vk/buildcp/internal/classpath"
	"github.com/vk/buildcp/internal/ctxlog"
)

// DefaultCacheSize bounds the memoised resolutions of one chain.
const DefaultCacheSize = 1024

// Layer is one classpath entry with its class index.
type Layer struct {
	Entry classpath.Entry
	Index *classfile.Index
}

// Resolution is a class together with the entry that provided it.
type Resolution struct {
	Class *classfile.Class
	Entry classpath.Entry
}

// Composer turns composed classpaths into lookup chains.
type Composer struct {
	loader    *classfile.Loader
	cacheSize int
}

// NewComposer creates a composer that indexes containers through loader.
func NewComposer(loader *classfile.Loader) *Composer {
	return &Composer{loader: loader, cacheSize: DefaultCacheSize}
}

// Compose indexes every entry of cp and returns the chain. The chain is
// immutable; it is safe for concurrent use.
func (c *Composer) Compose(ctx context.Context, cp *classpath.ComposedClasspath) (*Chain, error) {
	logger := ctxlog.FromContext(ctx)
	entries := cp.Entries()
	layers := make([]Layer, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var idx *classfile.Index
		if e.Path == classpath.SystemPath {
			idx = System()
		} else {
			var err error
			idx, err = c.loader.Load(e.Path)
			if err != nil {
				return nil, builderr.CacheIO(e.Path, err)
			}
		}
		layers = append(layers, Layer{Entry: e, Index: idx})
		logger.Debug("Indexed classpath entry.", "path", e.Path, "origin", e.Origin.String(), "classes", idx.Len())
	}
	return newChain(cp, layers, c.cacheSize)
}

// Chain is a layered class lookup.
type Chain struct {
	classpath *classpath.ComposedClasspath
	layers    []Layer
	resolved  *lru.Cache[string, *Resolution]
}

func newChain(cp *classpath.ComposedClasspath, layers []Layer, size int) (*Chain, error) {
	cache, err := lru.New[string, *Resolution](size)
	if err != nil {
		return nil, err
	}
	return &Chain{classpath: cp, layers: layers, resolved: cache}, nil
}

// Classpath returns the composed classpath the chain was built from.
func (ch *Chain) Classpath() *classpath.ComposedClasspath {
	return ch.classpath
}

// Layers returns the chain's layers in precedence order.
func (ch *Chain) Layers() []Layer {
	return append([]Layer(nil), ch.layers...)
}

// Find resolves a fully qualified name. Later layers shadow earlier ones.
func (ch *Chain) Find(fqn string) (Resolution, bool) {
	if r, ok := ch.resolved.Get(fqn); ok {
		if r == nil {
			return Resolution{}, false
		}
		return *r, true
	}
	for i := len(ch.layers) - 1; i >= 0; i-- {
		l := ch.layers[i]
		if cls, ok := l.Index.Class(fqn); ok {
			r := &Resolution{Class: cls, Entry: l.Entry}
			ch.resolved.Add(fqn, r)
			return *r, true
		}
	}
	ch.resolved.Add(fqn, nil)
	return Resolution{}, false
}

// Class implements compiler.ClassPath.
func (ch *Chain) Class(fqn string) (*classfile.Class, bool) {
	r, ok := ch.Find(fqn)
	return r.Class, ok
}

// Package returns the union of the simple class names every layer offers in
// pkg, sorted.
func (ch *Chain) Package(pkg string) []string {
	set := make(map[string]struct{})
	for _, l := range ch.layers {
		for _, n := range l.Index.Package(pkg) {
			set[n] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Supers returns the superclass chain of a class, nearest first, as far as
// the chain can resolve it.
func (ch *Chain) Supers(fqn string) []string {
	var out []string
	seen := map[string]bool{fqn: true}
	for {
		r, ok := ch.Find(fqn)
		if !ok || r.Class.Super == "" || seen[r.Class.Super] {
			return out
		}
		fqn = r.Class.Super
		seen[fqn] = true
		out = append(out, fqn)
	}
}
