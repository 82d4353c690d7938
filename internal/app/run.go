package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/vk/buildcp/internal/buildsrc"
	"github.com/vk/buildcp/internal/ctxlog"
	"github.com/vk/buildcp/internal/hierarchy"
	"github.com/vk/buildcp/internal/project"
)

// Invocation is the outcome of one build invocation.
type Invocation struct {
	ID       string
	Tree     *project.Tree
	BuildSrc *buildsrc.Artifact // nil when the build has no build sources
	Projects []*hierarchy.Evaluated
	Executed []string // qualified paths of the tasks that ran, in order
}

// Project returns the evaluation of the project with the given path.
func (inv *Invocation) Project(path string) (*hierarchy.Evaluated, bool) {
	for _, p := range inv.Projects {
		if p.Project.Path == path {
			return p, true
		}
	}
	return nil, false
}

// Run executes the configured invocation. In continuous mode it re-runs the
// invocation whenever the build changes until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.Continuous {
		return a.runContinuously(ctx)
	}
	_, err := a.RunOnce(ctx)
	a.logger.Debug("App.Run method finished.")
	return err
}

// RunOnce performs a single invocation: it builds the build sources, walks
// the project hierarchy and runs the requested tasks.
func (a *App) RunOnce(ctx context.Context) (*Invocation, error) {
	inv := &Invocation{ID: uuid.NewString()}
	ctx = ctxlog.WithLogger(ctx, a.logger.With("invocation", inv.ID))
	logger := ctxlog.FromContext(ctx)
	logger.Info("Invocation started.", "project_dir", a.config.ProjectDir, "tasks", a.config.Tasks)

	tree, err := project.Load(ctx, a.config.ProjectDir)
	if err != nil {
		return nil, err
	}
	inv.Tree = tree
	logger.Debug("Project tree loaded.", "projects", tree.Len())

	artifact, err := a.buildSrc.Build(ctx, a.config.ProjectDir)
	if err != nil {
		return nil, err
	}
	inv.BuildSrc = artifact

	propagator := hierarchy.New(a.resolver(ctx), a.composer, a.outW)
	evaluated, err := propagator.Propagate(ctx, tree, artifact)
	if err != nil {
		return nil, err
	}
	inv.Projects = evaluated

	executed, err := a.runTasks(ctx, evaluated, a.config.Tasks)
	inv.Executed = executed
	if err != nil {
		return inv, err
	}

	logger.Info("Invocation finished.", "tasks_run", len(executed))
	return inv, nil
}
