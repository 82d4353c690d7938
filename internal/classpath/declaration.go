package classpath

import (
	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/coord"
	"github.com/vk/buildcp/internal/repository"
)

// RoleClasspath is the only dependency role a script classpath block accepts.
const RoleClasspath = "classpath"

// Dependency is one entry of a dependencies scope: either a coordinate to
// resolve through the repositories or a list of files used as they are.
type Dependency struct {
	Role       string
	Coordinate coord.Coordinate
	Files      []string
}

// IsFiles reports whether the dependency names files directly.
func (d Dependency) IsFiles() bool {
	return len(d.Files) > 0
}

// Declaration is the classpath block of one build script: ordered
// repositories and ordered dependencies. It is assembled during Pass 1 and
// frozen when the block ends.
type Declaration struct {
	repositories []repository.Repository
	dependencies []Dependency
	frozen       bool
}

// NewDeclaration creates an empty, mutable declaration.
func NewDeclaration() *Declaration {
	return &Declaration{}
}

// AddRepository appends a repository.
func (d *Declaration) AddRepository(r repository.Repository) error {
	if d.frozen {
		return builderr.Declaration(r.Name(), "repositories cannot be added after the classpath block")
	}
	d.repositories = append(d.repositories, r)
	return nil
}

// AddDependency appends a dependency after validating it.
func (d *Declaration) AddDependency(dep Dependency) error {
	subject := dep.Coordinate.String()
	if dep.IsFiles() {
		subject = dep.Files[0]
	}
	if d.frozen {
		return builderr.Declaration(subject, "dependencies cannot be added after the classpath block")
	}
	if dep.Role == "" {
		dep.Role = RoleClasspath
	}
	if dep.Role != RoleClasspath {
		return builderr.Declaration(subject, "unsupported dependency role '"+dep.Role+"'")
	}
	if !dep.IsFiles() {
		if err := dep.Coordinate.Validate(); err != nil {
			return builderr.Wrap(err, builderr.KindDeclaration, subject, "invalid coordinate")
		}
	}
	d.dependencies = append(d.dependencies, dep)
	return nil
}

// Freeze ends assembly. Further additions fail.
func (d *Declaration) Freeze() {
	d.frozen = true
}

// Frozen reports whether the declaration is frozen.
func (d *Declaration) Frozen() bool {
	return d.frozen
}

// Repositories returns the declared repositories in order.
func (d *Declaration) Repositories() []repository.Repository {
	return append([]repository.Repository(nil), d.repositories...)
}

// Dependencies returns the declared dependencies in order.
func (d *Declaration) Dependencies() []Dependency {
	return append([]Dependency(nil), d.dependencies...)
}

// IsEmpty reports whether the declaration contributes nothing.
func (d *Declaration) IsEmpty() bool {
	return len(d.dependencies) == 0
}
