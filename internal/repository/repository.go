// Package repository provides the artifact repositories a classpath
// declaration can list. A repository has a single capability: resolve a
// coordinate to a concrete artifact file, or report that it has none.
package repository

import (
	"context"

	"github.com/vk/buildcp/internal/coord"
)

// Match is a successful resolution.
type Match struct {
	Coordinate coord.Coordinate // always concrete
	Path       string
	Repository string
	Stored     bool // Path is already an artifact of the local store
}

// Repository resolves coordinates. Resolve returns ok=false when the
// repository simply has no matching artifact; a non-nil error means the
// repository itself failed.
type Repository interface {
	Name() string
	Resolve(ctx context.Context, c coord.Coordinate) (m Match, ok bool, err error)
}
