package repository

import (
	"context"

	"github.com/vk/buildcp/internal/artifactstore"
	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/coord"
)

// ArtifactSource is the read side of the artifact store.
type ArtifactSource interface {
	Lookup(c coord.Coordinate) (artifactstore.Ref, bool, error)
	Versions(group, name string) ([]string, error)
}

// Offline resolves only from artifacts already present in the local store.
// It replaces the declared repositories when the invocation runs offline.
type Offline struct {
	store ArtifactSource
}

// NewOffline creates a repository backed by the artifact store.
func NewOffline(store ArtifactSource) *Offline {
	return &Offline{store: store}
}

// Name implements Repository.
func (r *Offline) Name() string {
	return "offline-cache"
}

// Resolve implements Repository. Matching versions are tried from the highest
// down, so a version listed without a usable artifact falls through to the
// next one.
func (r *Offline) Resolve(ctx context.Context, c coord.Coordinate) (Match, bool, error) {
	if err := ctx.Err(); err != nil {
		return Match{}, false, builderr.Repository(r.Name(), c.String(), err)
	}
	versions, err := r.store.Versions(c.Group, c.Name)
	if err != nil {
		return Match{}, false, builderr.Repository(r.Name(), c.String(), err)
	}
	for _, version := range coord.Descending(c.Version, versions) {
		ref, ok, err := r.store.Lookup(c.WithVersion(version))
		if err != nil {
			return Match{}, false, builderr.Repository(r.Name(), c.String(), err)
		}
		if ok {
			return Match{Coordinate: ref.Coordinate, Path: ref.Path, Repository: r.Name(), Stored: true}, true, nil
		}
	}
	return Match{}, false, nil
}
