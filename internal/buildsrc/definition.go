package buildsrc

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/ctxlog"
	"github.com/vk/buildcp/internal/fsutil"
)

// DefinitionFile is the optional build definition inside the build-sources tree.
const DefinitionFile = "build.hcl"

// DefaultSourceDirs are the conventional source roots, relative to the
// build-sources directory.
var DefaultSourceDirs = []string{"src/main/java", "src/main/groovy"}

// Definition describes how the build-sources tree is built.
type Definition struct {
	SourceDirs []string `hcl:"source_dirs,optional"`

	// Path is the definition file; empty for the default definition.
	Path string
}

// DefaultDefinition returns the definition used when none is provided.
func DefaultDefinition() *Definition {
	return &Definition{SourceDirs: append([]string(nil), DefaultSourceDirs...)}
}

// LoadDefinition reads dir/build.hcl, falling back to the default definition
// when the file does not exist.
func LoadDefinition(ctx context.Context, dir string) (*Definition, error) {
	logger := ctxlog.FromContext(ctx)
	path := filepath.Join(dir, DefinitionFile)
	if !fsutil.IsFile(path) {
		logger.Debug("No build-sources definition, using the default.", "dir", dir)
		return DefaultDefinition(), nil
	}

	logger.Debug("Decoding build-sources definition.", "path", path)
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, builderr.Compilation(path, fmt.Errorf("failed to parse build definition: %w", diags))
	}
	def := &Definition{}
	diags = gohcl.DecodeBody(file.Body, nil, def)
	if diags.HasErrors() {
		return nil, builderr.Compilation(path, fmt.Errorf("failed to decode build definition: %w", diags))
	}
	if def.SourceDirs == nil {
		def.SourceDirs = append([]string(nil), DefaultSourceDirs...)
	}
	for _, d := range def.SourceDirs {
		if filepath.IsAbs(d) {
			return nil, builderr.Compilation(path, fmt.Errorf("source directory %q must be relative", d))
		}
	}
	def.Path = path
	return def, nil
}
