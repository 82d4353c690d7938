package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/ctxlog"
	"github.com/vk/buildcp/internal/dag"
	"github.com/vk/buildcp/internal/hierarchy"
	"github.com/vk/buildcp/internal/project"
	"github.com/vk/buildcp/internal/script"
)

// taskGraph holds every task of an invocation keyed by its qualified path.
type taskGraph struct {
	graph  *dag.Graph
	tasks  map[string]*script.Task
	owners map[string]string // task path to project path
}

func newTaskGraph(projects []*hierarchy.Evaluated) (*taskGraph, error) {
	g := &taskGraph{graph: dag.New(), tasks: make(map[string]*script.Task), owners: make(map[string]string)}
	for _, p := range projects {
		for _, t := range p.Evaluation.Tasks {
			id := p.Project.TaskPath(t.Name)
			g.graph.AddNode(id)
			g.tasks[id] = t
			g.owners[id] = p.Project.Path
		}
	}
	for _, p := range projects {
		for _, t := range p.Evaluation.Tasks {
			id := p.Project.TaskPath(t.Name)
			for _, dep := range t.DependsOn {
				if err := g.graph.AddEdge(p.Project.TaskPath(dep), id); err != nil {
					return nil, builderr.AttachProject(builderr.Script(id, "invalid task dependency", err), p.Project.Path)
				}
			}
		}
	}
	return g, nil
}

// selection is what one requested task name refers to.
type selection struct {
	ids  []string               // qualified task paths
	list []*hierarchy.Evaluated // projects to list, for the built-in tasks task
}

// selectTasks maps a requested name to tasks. A bare name selects the task
// in every project that declares it; ":a:b:name" selects one project's task.
// The built-in tasks task applies when no selected project declares one.
func selectTasks(req string, projects []*hierarchy.Evaluated) (selection, error) {
	var sel selection
	name := req
	scope := projects
	if strings.HasPrefix(req, project.RootPath) {
		idx := strings.LastIndex(req, project.RootPath)
		path := req[:idx]
		if path == "" {
			path = project.RootPath
		}
		name = req[idx+1:]
		scope = nil
		for _, p := range projects {
			if p.Project.Path == path {
				scope = append(scope, p)
			}
		}
	}
	if name == "" {
		return sel, builderr.TaskSelection(req)
	}
	for _, p := range scope {
		if _, ok := p.Evaluation.Task(name); ok {
			sel.ids = append(sel.ids, p.Project.TaskPath(name))
		}
	}
	if len(sel.ids) == 0 && name == DefaultTask && len(scope) > 0 {
		sel.list = scope
		return sel, nil
	}
	if len(sel.ids) == 0 {
		return sel, builderr.TaskSelection(req)
	}
	return sel, nil
}

// runTasks runs the requested tasks in order, each after the tasks it
// depends on. A task runs at most once per invocation.
func (a *App) runTasks(ctx context.Context, projects []*hierarchy.Evaluated, requested []string) ([]string, error) {
	logger := ctxlog.FromContext(ctx)
	g, err := newTaskGraph(projects)
	if err != nil {
		return nil, err
	}

	selections := make([]selection, len(requested))
	for i, req := range requested {
		if selections[i], err = selectTasks(req, projects); err != nil {
			return nil, err
		}
	}

	var executed []string
	done := make(map[string]bool)
	for i, sel := range selections {
		if sel.list != nil {
			if err := listTasks(a.outW, sel.list); err != nil {
				return executed, err
			}
			executed = append(executed, DefaultTask)
			continue
		}
		order, err := g.graph.Closure(sel.ids...)
		if err != nil {
			return executed, builderr.Script(requested[i], "task dependency cycle", err)
		}
		for _, id := range order {
			if done[id] {
				continue
			}
			done[id] = true
			logger.Info("Running task.", "task", id)
			if err := g.tasks[id].Run(ctx); err != nil {
				return executed, builderr.AttachProject(err, g.owners[id])
			}
			executed = append(executed, id)
		}
	}
	return executed, nil
}

// listTasks prints the tasks of the given projects.
func listTasks(w io.Writer, projects []*hierarchy.Evaluated) error {
	var b strings.Builder
	b.WriteString("Tasks\n-----\n")
	count := 0
	for _, p := range projects {
		for _, t := range p.Evaluation.Tasks {
			count++
			b.WriteString(p.Project.TaskPath(t.Name))
			if t.Description != "" {
				b.WriteString(" - ")
				b.WriteString(t.Description)
			}
			b.WriteByte('\n')
		}
	}
	if count == 0 {
		b.WriteString("No tasks.\n")
	}
	_, err := fmt.Fprint(w, b.String())
	return err
}
