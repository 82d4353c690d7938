package script

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/classpath"
	"github.com/vk/buildcp/internal/coord"
	"github.com/vk/buildcp/internal/ctxlog"
	"github.com/vk/buildcp/internal/repository"
)

const (
	blockRepositories = "repositories"
	blockDependencies = "dependencies"
	blockFlatDir      = "flatDir"
)

type flatDirConfig struct {
	Dirs []string `hcl:"dirs"`
	Name string   `hcl:"name,optional"`
}

type dependencyConfig struct {
	Group   string   `hcl:"group,optional"`
	Name    string   `hcl:"name,optional"`
	Version string   `hcl:"version,optional"`
	Files   []string `hcl:"files,optional"`
}

// EvaluateClasspath runs Pass 1: it evaluates the scriptclasspath block
// against env.Lookup and returns the frozen declaration. A script without
// the block yields an empty declaration.
func (s *Script) EvaluateClasspath(ctx context.Context, env Env) (*classpath.Declaration, error) {
	logger := ctxlog.FromContext(ctx)
	decl := classpath.NewDeclaration()
	if s.classpath == nil {
		decl.Freeze()
		return decl, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sc := newScope(&resolver{lookup: env.Lookup, imports: s.Imports}, env.Project, env.Out)
	if err := sc.importStatics(); err != nil {
		return nil, builderr.Wrap(err, builderr.KindDeclaration, s.Path, "invalid static import")
	}

	body := s.classpath.Body
	diags := unexpectedBlocks(body.Blocks, "a scriptclasspath block", blockRepositories, blockDependencies)
	repos, repoDiags := findUniqueBlock(body.Blocks, blockRepositories)
	diags = append(diags, repoDiags...)
	deps, depDiags := findUniqueBlock(body.Blocks, blockDependencies)
	diags = append(diags, depDiags...)
	if diags.HasErrors() {
		return nil, declarationError(s.Path, diags)
	}

	if _, diags := evalProperties(sortedAttributes(body.Attributes), sc); diags.HasErrors() {
		return nil, declarationError(s.Path, diags)
	}

	if repos != nil {
		if diags := s.declareRepositories(repos, sc, decl); diags.HasErrors() {
			return nil, declarationError(s.Path, diags)
		}
	}
	if deps != nil {
		diags, err := s.declareDependencies(deps, sc, decl)
		if diags.HasErrors() {
			return nil, declarationError(s.Path, diags)
		}
		if err != nil {
			return nil, err
		}
	}

	decl.Freeze()
	logger.Debug("Evaluated classpath declaration.", "script", s.Path, "repositories", len(decl.Repositories()), "dependencies", len(decl.Dependencies()))
	return decl, nil
}

func declarationError(path string, diags hcl.Diagnostics) error {
	return builderr.Wrap(diags, builderr.KindDeclaration, path, "invalid scriptclasspath block")
}

func (s *Script) declareRepositories(block *hclsyntax.Block, sc *scope, decl *classpath.Declaration) hcl.Diagnostics {
	diags := unexpectedBlocks(block.Body.Blocks, "a repositories block", blockFlatDir)
	diags = append(diags, noAttributes(block)...)
	if diags.HasErrors() {
		return diags
	}
	for _, b := range block.Body.Blocks {
		var cfg flatDirConfig
		if d := gohcl.DecodeBody(b.Body, sc.evalContext(), &cfg); d.HasErrors() {
			diags = append(diags, d...)
			continue
		}
		dirs := make([]string, len(cfg.Dirs))
		for i, dir := range cfg.Dirs {
			dirs[i] = sc.path(dir)
		}
		// The declaration is not frozen yet, so this cannot fail.
		_ = decl.AddRepository(repository.NewFlatDir(cfg.Name, dirs...))
	}
	return diags
}

func (s *Script) declareDependencies(block *hclsyntax.Block, sc *scope, decl *classpath.Declaration) (hcl.Diagnostics, error) {
	diags := unexpectedBlocks(block.Body.Blocks, "a dependencies block", classpath.RoleClasspath)
	diags = append(diags, noAttributes(block)...)
	if diags.HasErrors() {
		return diags, nil
	}
	for _, b := range block.Body.Blocks {
		var cfg dependencyConfig
		if d := gohcl.DecodeBody(b.Body, sc.evalContext(), &cfg); d.HasErrors() {
			diags = append(diags, d...)
			continue
		}
		if (cfg.Name == "") == (len(cfg.Files) == 0) {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid classpath dependency",
				Detail:   "A classpath dependency needs either a name or files, but not both.",
				Subject:  b.DefRange().Ptr(),
			})
			continue
		}
		dep := classpath.Dependency{Role: b.Type}
		if cfg.Name != "" {
			dep.Coordinate = coord.Coordinate{Group: cfg.Group, Name: cfg.Name, Version: cfg.Version}
		} else {
			for _, f := range cfg.Files {
				dep.Files = append(dep.Files, sc.path(f))
			}
		}
		if err := decl.AddDependency(dep); err != nil {
			return diags, err
		}
	}
	return diags, nil
}

func noAttributes(block *hclsyntax.Block) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, attr := range sortedAttributes(block.Body.Attributes) {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unsupported argument",
			Detail:   "An argument named \"" + attr.Name + "\" is not expected in a " + block.Type + " block.",
			Subject:  attr.NameRange.Ptr(),
		})
	}
	return diags
}
