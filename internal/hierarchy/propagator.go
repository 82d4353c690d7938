// Package hierarchy walks the project tree, parents first, and gives every
// project a composed classpath that extends its parent's.
package hierarchy

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/vk/buildcp/internal/buildsrc"
	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/classpath"
	"github.com/vk/buildcp/internal/ctxlog"
	"github.com/vk/buildcp/internal/lookup"
	"github.com/vk/buildcp/internal/project"
	"github.com/vk/buildcp/internal/script"
)

// Evaluated is the outcome of evaluating one project.
type Evaluated struct {
	Project    *project.Project
	Script     *script.Script
	Classpath  *classpath.ComposedClasspath
	Chain      *lookup.Chain
	Evaluation *script.Evaluation
}

// Propagator evaluates the projects of a build in hierarchy order.
type Propagator struct {
	resolver *classpath.Resolver
	composer *lookup.Composer
	registry *Registry
	out      io.Writer
}

// New creates a propagator. Script output goes to out.
func New(resolver *classpath.Resolver, composer *lookup.Composer, out io.Writer) *Propagator {
	return &Propagator{
		resolver: resolver,
		composer: composer,
		registry: NewRegistry(),
		out:      out,
	}
}

// Registry returns the composed classpaths registered so far.
func (p *Propagator) Registry() *Registry {
	return p.registry
}

// Propagate evaluates every project of tree. buildSrc may be nil. A parent's
// evaluation completes before any of its children starts.
func (p *Propagator) Propagate(ctx context.Context, tree *project.Tree, buildSrc *buildsrc.Artifact) ([]*Evaluated, error) {
	logger := ctxlog.FromContext(ctx)
	system := []classpath.Entry{{Path: classpath.SystemPath}}
	var buildSrcEntries []classpath.Entry
	if buildSrc != nil {
		buildSrcEntries = []classpath.Entry{{Path: buildSrc.Path}}
	}

	// Pass 1 sees only the system and build-sources layers, the same for
	// every project.
	passOne, err := p.composer.Compose(ctx, classpath.Compose(system, buildSrcEntries, nil, nil))
	if err != nil {
		return nil, err
	}

	projects := tree.Ordered()
	results := make([]*Evaluated, 0, len(projects))
	for _, proj := range projects {
		pctx := ctxlog.With(ctx, "project", proj.Path)
		res, err := p.evaluate(pctx, proj, system, buildSrcEntries, passOne)
		if err != nil {
			return nil, builderr.AttachProject(err, proj.Path)
		}
		results = append(results, res)
	}
	logger.Debug("Evaluated all projects.", "projects", len(results))
	return results, nil
}

func (p *Propagator) evaluate(ctx context.Context, proj *project.Project, system, buildSrc []classpath.Entry, passOne *lookup.Chain) (*Evaluated, error) {
	logger := ctxlog.FromContext(ctx)
	inherited := classpath.Empty
	if !proj.IsRoot() {
		cp, ok := p.registry.Get(proj.Parent.Path)
		if !ok {
			return nil, fmt.Errorf("parent project '%s' has not been evaluated", proj.Parent.Path)
		}
		inherited = cp
	}

	s, err := script.Parse(ctx, filepath.Join(proj.Dir, script.FileName))
	if err != nil {
		return nil, err
	}
	info := script.ProjectInfo{Name: proj.Name, Path: proj.Path, Dir: proj.Dir}

	decl, err := s.EvaluateClasspath(ctx, script.Env{Lookup: passOne, Project: info, Out: p.out})
	if err != nil {
		return nil, err
	}
	declared, err := p.resolver.Resolve(ctx, decl)
	if err != nil {
		return nil, err
	}

	cp := classpath.Compose(system, buildSrc, inherited, declared)
	if err := cp.Validate(); err != nil {
		return nil, builderr.Wrap(err, builderr.KindDeclaration, s.Path, "invalid composed classpath")
	}
	for _, path := range inherited.Paths() {
		if !cp.Contains(path) {
			return nil, builderr.Declaration(path, "classpath does not extend the parent classpath")
		}
	}
	chain, err := p.composer.Compose(ctx, cp)
	if err != nil {
		return nil, err
	}
	if err := p.registry.Register(proj.Path, cp); err != nil {
		return nil, err
	}
	logger.Debug("Composed project classpath.", "entries", cp.Len(), "declared", len(cp.Layer(classpath.OriginDeclared)), "inherited", len(cp.Layer(classpath.OriginInherited)))

	eval, err := s.Evaluate(ctx, script.Env{Lookup: chain, Project: info, Out: p.out})
	if err != nil {
		return nil, err
	}
	return &Evaluated{Project: proj, Script: s, Classpath: cp, Chain: chain, Evaluation: eval}, nil
}
