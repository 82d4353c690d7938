// Package project builds the project tree of a build from its settings and
// orders it so that every parent comes before its children.
package project

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/ctxlog"
	"github.com/vk/buildcp/internal/dag"
)

// RootPath is the path of the root project.
const RootPath = ":"

// Project is one node of the project tree.
type Project struct {
	Name     string
	Path     string // ":" for the root, ":a:b" for nested projects
	Dir      string
	Parent   *Project
	Children []*Project
}

// IsRoot reports whether p is the root project.
func (p *Project) IsRoot() bool {
	return p.Parent == nil
}

// TaskPath qualifies a task name with the project path, e.g. ":child:hello".
func (p *Project) TaskPath(task string) string {
	if p.IsRoot() {
		return RootPath + task
	}
	return p.Path + RootPath + task
}

// Tree is the project hierarchy of a build.
type Tree struct {
	Root     *Project
	Settings *Settings

	byPath map[string]*Project
	graph  *dag.Graph
}

// Load reads the settings of the build rooted at rootDir and builds its tree.
func Load(ctx context.Context, rootDir string) (*Tree, error) {
	settings, err := LoadSettings(ctx, rootDir)
	if err != nil {
		return nil, err
	}
	return NewTree(ctx, rootDir, settings)
}

// NewTree builds the project tree for settings. Including "a:b" also
// creates its parent ":a".
func NewTree(ctx context.Context, rootDir string, settings *Settings) (*Tree, error) {
	logger := ctxlog.FromContext(ctx)
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, builderr.Settings(rootDir, "invalid root directory", err)
	}
	root := &Project{Name: settings.RootProjectName, Path: RootPath, Dir: abs}
	t := &Tree{
		Root:     root,
		Settings: settings,
		byPath:   map[string]*Project{RootPath: root},
		graph:    dag.New(),
	}
	t.graph.AddNode(RootPath)

	for _, inc := range settings.Include {
		segments, err := splitPath(inc)
		if err != nil {
			return nil, builderr.Settings(settings.Path, fmt.Sprintf("invalid include %q", inc), err)
		}
		parent := root
		for i := range segments {
			path := RootPath + strings.Join(segments[:i+1], RootPath)
			p, ok := t.byPath[path]
			if !ok {
				p = &Project{
					Name:   segments[i],
					Path:   path,
					Dir:    filepath.Join(append([]string{abs}, segments[:i+1]...)...),
					Parent: parent,
				}
				parent.Children = append(parent.Children, p)
				t.byPath[path] = p
				t.graph.AddNode(path)
				if err := t.graph.AddEdge(parent.Path, path); err != nil {
					return nil, builderr.Settings(settings.Path, "invalid project hierarchy", err)
				}
			}
			parent = p
		}
	}

	logger.Debug("Project tree built.", "root", root.Name, "projects", len(t.byPath))
	return t, nil
}

// splitPath splits an include such as "a:b" or ":a:b" into its segments.
func splitPath(inc string) ([]string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(inc), RootPath)
	if trimmed == "" {
		return nil, errors.New("empty project path")
	}
	segments := strings.Split(trimmed, RootPath)
	for _, s := range segments {
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
			return nil, fmt.Errorf("invalid path segment %q", s)
		}
	}
	return segments, nil
}

// Find returns the project with the given path.
func (t *Tree) Find(path string) (*Project, bool) {
	p, ok := t.byPath[path]
	return p, ok
}

// Len returns the number of projects.
func (t *Tree) Len() int {
	return len(t.byPath)
}

// Ordered returns every project with parents before children. Siblings keep
// the order in which the settings declare them.
func (t *Tree) Ordered() []*Project {
	order, err := t.graph.TopologicalOrder()
	if err != nil {
		// The tree only ever gains parent-to-child edges.
		panic(fmt.Sprintf("project tree is not acyclic: %v", err))
	}
	projects := make([]*Project, len(order))
	for i, path := range order {
		projects[i] = t.byPath[path]
	}
	return projects
}
