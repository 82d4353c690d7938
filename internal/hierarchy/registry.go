package hierarchy

import (
	"fmt"
	"sync"

	"github.com/vk/buildcp/internal/classpath"
)

// Registry holds the composed classpath of every evaluated project, keyed by
// project path. A classpath is registered once and never replaced.
type Registry struct {
	mutex      sync.RWMutex
	classpaths map[string]*classpath.ComposedClasspath
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{classpaths: make(map[string]*classpath.ComposedClasspath)}
}

// Register records the classpath of a project.
func (r *Registry) Register(path string, cp *classpath.ComposedClasspath) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.classpaths[path]; ok {
		return fmt.Errorf("classpath of project '%s' is already registered", path)
	}
	r.classpaths[path] = cp
	return nil
}

// Get returns the classpath registered for a project.
func (r *Registry) Get(path string) (*classpath.ComposedClasspath, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	cp, ok := r.classpaths[path]
	return cp, ok
}

// Len returns the number of registered projects.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.classpaths)
}
