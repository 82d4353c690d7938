package classpath

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vk/buildcp/internal/artifactstore"
	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/coord"
	"github.com/vk/buildcp/internal/ctxlog"
	"github.com/vk/buildcp/internal/repository"
)

// ArtifactSink stores resolved artifacts.
type ArtifactSink interface {
	Put(ctx context.Context, c coord.Coordinate, src string) (artifactstore.Ref, error)
}

// Resolver materialises classpath declarations into declared entries.
type Resolver struct {
	store    ArtifactSink
	timeout  time.Duration
	override []repository.Repository
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout bounds every repository lookup and store write.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithRepositories replaces the repositories of every declaration, e.g. with
// the offline store repository.
func WithRepositories(repos ...repository.Repository) Option {
	return func(r *Resolver) { r.override = repos }
}

// NewResolver creates a resolver writing into store.
func NewResolver(store ArtifactSink, opts ...Option) *Resolver {
	r := &Resolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type resolved struct {
	coordinate coord.Coordinate // zero for file dependencies
	path       string
	fromRepo   bool
	stored     bool
}

// Resolve returns the declaration's entries in declaration order. Every
// coordinate is resolved before anything is written to the store, so a
// failure leaves the store untouched.
func (r *Resolver) Resolve(ctx context.Context, decl *Declaration) ([]Entry, error) {
	logger := ctxlog.FromContext(ctx)
	if decl == nil || decl.IsEmpty() {
		return nil, nil
	}

	repos := decl.Repositories()
	if r.override != nil {
		repos = r.override
	}

	var found []resolved
	for _, dep := range decl.Dependencies() {
		if dep.IsFiles() {
			for _, f := range dep.Files {
				if _, err := os.Stat(f); err != nil {
					return nil, builderr.Unresolved(f, err)
				}
				found = append(found, resolved{path: f})
			}
			continue
		}
		m, err := r.resolveOne(ctx, repos, dep.Coordinate)
		if err != nil {
			return nil, err
		}
		found = append(found, resolved{coordinate: m.Coordinate, path: m.Path, fromRepo: true, stored: m.Stored})
	}

	found = collapse(found)

	var entries []Entry
	seen := make(map[string]bool)
	for _, f := range found {
		path := f.path
		if f.fromRepo && !f.stored {
			ref, err := r.put(ctx, f.coordinate, f.path)
			if err != nil {
				return nil, err
			}
			path = ref.Path
		}
		if seen[path] {
			continue
		}
		seen[path] = true
		entries = append(entries, Entry{Path: path, Origin: OriginDeclared, Coordinate: f.coordinate})
	}
	logger.Debug("Resolved classpath declaration.", "entries", len(entries))
	return entries, nil
}

// resolveOne queries the repositories in order; the first match wins.
func (r *Resolver) resolveOne(ctx context.Context, repos []repository.Repository, c coord.Coordinate) (repository.Match, error) {
	logger := ctxlog.FromContext(ctx)
	names := make([]string, 0, len(repos))
	for _, repo := range repos {
		names = append(names, repo.Name())
		m, ok, err := r.lookup(ctx, repo, c)
		if err != nil {
			if _, categorized := builderr.KindOf(err); !categorized {
				err = builderr.Repository(repo.Name(), c.String(), err)
			}
			return repository.Match{}, err
		}
		if ok {
			logger.Info("Resolved dependency.", "coordinate", c.String(), "version", m.Coordinate.Version, "repository", repo.Name())
			return m, nil
		}
	}
	if len(names) == 0 {
		return repository.Match{}, builderr.Unresolved(c.String(), errors.New("no repositories declared"))
	}
	return repository.Match{}, builderr.Unresolved(c.String(), fmt.Errorf("searched in %s", strings.Join(names, ", ")))
}

func (r *Resolver) lookup(ctx context.Context, repo repository.Repository, c coord.Coordinate) (repository.Match, bool, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return repo.Resolve(ctx, c)
}

func (r *Resolver) put(ctx context.Context, c coord.Coordinate, src string) (artifactstore.Ref, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.store.Put(ctx, c, src)
}

// collapse keeps one artifact per group and name: the highest version, at
// the position where the module first appeared.
func collapse(found []resolved) []resolved {
	best := make(map[string]int) // module -> index into out
	var out []resolved
	for _, f := range found {
		if !f.fromRepo {
			out = append(out, f)
			continue
		}
		key := f.coordinate.Module()
		i, ok := best[key]
		if !ok {
			best[key] = len(out)
			out = append(out, f)
			continue
		}
		if coord.Compare(f.coordinate.Version, out[i].coordinate.Version) > 0 {
			out[i] = f
		}
	}
	return out
}
