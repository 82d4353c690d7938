// Package script parses build scripts and evaluates them in two passes.
// Pass 1 evaluates only the scriptclasspath block against a restricted class
// lookup and yields a classpath declaration. Pass 2 evaluates the rest of
// the script (script classes, properties and tasks) against the composed
// lookup chain.
package script

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/ctxlog"
	"github.com/vk/buildcp/internal/fsutil"
)

// FileName is the build script of a project directory.
const FileName = "build.hcl"

const (
	blockClasspath = "scriptclasspath"
	blockClass     = "class"
	blockTask      = "task"
	attrImports    = "imports"
)

// Script is a parsed build script.
type Script struct {
	Path    string
	Imports Imports

	body      *hclsyntax.Body
	classpath *hclsyntax.Block
	classes   []*hclsyntax.Block
	tasks     []*hclsyntax.Block
}

// Env is what a pass needs from its caller.
type Env struct {
	Lookup  ClassLookup
	Project ProjectInfo
	Out     io.Writer
}

// Parse reads and structurally validates a build script. A missing file is
// an empty script.
func Parse(ctx context.Context, path string) (*Script, error) {
	logger := ctxlog.FromContext(ctx)
	s := &Script{Path: path}
	if !fsutil.IsFile(path) {
		logger.Debug("No build script, using an empty one.", "path", path)
		s.body = &hclsyntax.Body{}
		return s, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, builderr.Script(path, "failed to parse build script", diags)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, builderr.Script(path, "failed to parse build script", fmt.Errorf("unexpected body type %T", file.Body))
	}
	s.body = body

	diags = unexpectedBlocks(body.Blocks, "a build script", blockClasspath, blockClass, blockTask)
	cp, cpDiags := findUniqueBlock(body.Blocks, blockClasspath)
	diags = append(diags, cpDiags...)
	s.classpath = cp
	for _, b := range body.Blocks {
		switch b.Type {
		case blockClass, blockTask:
			if len(b.Labels) != 1 {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Missing name for " + b.Type,
					Detail:   "A " + b.Type + " block requires exactly one label: its name.",
					Subject:  b.DefRange().Ptr(),
				})
				continue
			}
			if b.Type == blockClass {
				s.classes = append(s.classes, b)
			} else {
				s.tasks = append(s.tasks, b)
			}
		case blockClasspath:
			if len(b.Labels) != 0 {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Unexpected label",
					Detail:   "The scriptclasspath block takes no labels.",
					Subject:  b.DefRange().Ptr(),
				})
			}
		}
	}
	if diags.HasErrors() {
		return nil, builderr.Script(path, "invalid build script", diags)
	}

	if attr, ok := body.Attributes[attrImports]; ok {
		var decls []string
		if diags := gohcl.DecodeExpression(attr.Expr, nil, &decls); diags.HasErrors() {
			return nil, builderr.Script(path, "invalid imports", diags)
		}
		imps, err := ParseImports(decls)
		if err != nil {
			return nil, builderr.Script(path, "invalid imports", err)
		}
		s.Imports = imps
	}

	logger.Debug("Parsed build script.", "path", path, "has_classpath", s.classpath != nil, "classes", len(s.classes), "tasks", len(s.tasks))
	return s, nil
}

// HasClasspathBlock reports whether the script declares a scriptclasspath block.
func (s *Script) HasClasspathBlock() bool {
	return s.classpath != nil
}

