package script

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/classfile"
	"github.com/vk/buildcp/internal/compiler"
	"github.com/vk/buildcp/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

type classConfig struct {
	Extends string    `hcl:"extends,optional"`
	Fields  cty.Value `hcl:"fields,optional"`
}

type taskConfig struct {
	Description string         `hcl:"description,optional"`
	DependsOn   []string       `hcl:"depends_on,optional"`
	Actions     hcl.Expression `hcl:"actions,optional"`
}

// Evaluation is the result of Pass 2.
type Evaluation struct {
	Properties []Property
	Classes    []*classfile.Class
	Tasks      []*Task
}

// Property returns the value of a top-level property.
func (e *Evaluation) Property(name string) (cty.Value, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return cty.NilVal, false
}

// Task returns a task by name.
func (e *Evaluation) Task(name string) (*Task, bool) {
	for _, t := range e.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Task is a named unit of work declared by a script. Its actions are
// evaluated when the task runs.
type Task struct {
	Name        string
	Description string
	DependsOn   []string

	path    string
	actions hcl.Expression
	scope   *scope
}

// Run evaluates the task's actions in the scope of its script.
func (t *Task) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Running task.", "task", t.Name, "script", t.path)
	if _, diags := t.actions.Value(t.scope.evalContext()); diags.HasErrors() {
		return builderr.Script(t.path, fmt.Sprintf("task '%s' failed", t.Name), diags)
	}
	return nil
}

// Evaluate runs Pass 2: it declares the script classes, evaluates the
// properties and collects the tasks, resolving class names against
// env.Lookup.
func (s *Script) Evaluate(ctx context.Context, env Env) (*Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)
	r := &resolver{lookup: env.Lookup, imports: s.Imports, classes: make(map[string]*classfile.Class)}
	sc := newScope(r, env.Project, env.Out)

	classes, diags := s.declareClasses(sc)
	if diags.HasErrors() {
		return nil, builderr.Script(s.Path, "invalid class declaration", diags)
	}
	if err := sc.importStatics(); err != nil {
		return nil, builderr.Script(s.Path, "invalid static import", err)
	}

	props, diags := evalProperties(sortedAttributes(s.body.Attributes, attrImports), sc)
	if diags.HasErrors() {
		return nil, builderr.Script(s.Path, "failed to evaluate build script", diags)
	}

	tasks, diags := s.declareTasks(sc)
	if diags.HasErrors() {
		return nil, builderr.Script(s.Path, "invalid task declaration", diags)
	}

	logger.Debug("Evaluated build script.", "script", s.Path, "properties", len(props), "classes", len(classes), "tasks", len(tasks))
	return &Evaluation{Properties: props, Classes: classes, Tasks: tasks}, nil
}

// declareClasses registers every script class before resolving superclasses,
// so a class may extend one declared later in the same script.
func (s *Script) declareClasses(sc *scope) ([]*classfile.Class, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	configs := make([]classConfig, len(s.classes))
	classes := make([]*classfile.Class, 0, len(s.classes))
	for i, b := range s.classes {
		name := b.Labels[0]
		if _, dup := sc.resolver.classes[name]; dup {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate class",
				Detail:   fmt.Sprintf("Class %q is already declared in this script.", name),
				Subject:  b.DefRange().Ptr(),
			})
			continue
		}
		if d := gohcl.DecodeBody(b.Body, sc.evalContext(), &configs[i]); d.HasErrors() {
			diags = append(diags, d...)
			continue
		}
		fields, d := classFields(configs[i].Fields, b)
		if d.HasErrors() {
			diags = append(diags, d...)
			continue
		}
		c := &classfile.Class{Name: name, Fields: fields}
		sc.resolver.classes[name] = c
		classes = append(classes, c)
	}
	if diags.HasErrors() {
		return nil, diags
	}

	for i, b := range s.classes {
		c := sc.resolver.classes[b.Labels[0]]
		if configs[i].Extends == "" {
			c.Super = compiler.ObjectClass
			continue
		}
		super, ok := sc.resolver.resolve(configs[i].Extends)
		if !ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unknown superclass",
				Detail:   fmt.Sprintf("Unable to resolve class %s.", configs[i].Extends),
				Subject:  b.DefRange().Ptr(),
			})
			continue
		}
		if super.Name == c.Name {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Cyclic inheritance",
				Detail:   fmt.Sprintf("Class %s cannot extend itself.", c.Name),
				Subject:  b.DefRange().Ptr(),
			})
			continue
		}
		c.Super = super.Name
	}
	return classes, diags
}

func classFields(v cty.Value, b *hclsyntax.Block) (map[string]cty.Value, hcl.Diagnostics) {
	fields := make(map[string]cty.Value)
	if v == cty.NilVal || v.IsNull() {
		return fields, nil
	}
	ty := v.Type()
	if !v.IsWhollyKnown() || !(ty.IsObjectType() || ty.IsMapType()) {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid fields",
			Detail:   "The fields of a class must be an object of static values.",
			Subject:  b.DefRange().Ptr(),
		}}
	}
	for it := v.ElementIterator(); it.Next(); {
		k, val := it.Element()
		fields[k.AsString()] = val
	}
	return fields, nil
}

func (s *Script) declareTasks(sc *scope) ([]*Task, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	tasks := make([]*Task, 0, len(s.tasks))
	seen := make(map[string]bool, len(s.tasks))
	for _, b := range s.tasks {
		name := b.Labels[0]
		if seen[name] {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate task",
				Detail:   fmt.Sprintf("Task %q is already declared in this script.", name),
				Subject:  b.DefRange().Ptr(),
			})
			continue
		}
		seen[name] = true

		var cfg taskConfig
		if d := gohcl.DecodeBody(b.Body, sc.evalContext(), &cfg); d.HasErrors() {
			diags = append(diags, d...)
			continue
		}
		if expr, ok := cfg.Actions.(hclsyntax.Expression); ok {
			diags = append(diags, unknownFunctions(expr, sc)...)
		}
		tasks = append(tasks, &Task{
			Name:        name,
			Description: cfg.Description,
			DependsOn:   cfg.DependsOn,
			path:        s.Path,
			actions:     cfg.Actions,
			scope:       sc,
		})
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Unknown task dependency",
					Detail:   fmt.Sprintf("Task %q depends on %q, which this script does not declare.", t.Name, dep),
				})
			}
		}
	}
	return tasks, diags
}

func unknownFunctions(expr hclsyntax.Expression, sc *scope) hcl.Diagnostics {
	called := make(map[string]hcl.Range)
	calledFunctions(expr, called)
	names := make([]string, 0, len(called))
	for name := range called {
		if _, ok := sc.functions[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	var diags hcl.Diagnostics
	for _, name := range names {
		rng := called[name]
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Call to unknown function",
			Detail:   fmt.Sprintf("There is no function named %q.", name),
			Subject:  &rng,
		})
	}
	return diags
}
