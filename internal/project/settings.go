package project

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

// SettingsFile is the optional settings file in the root project directory.
const SettingsFile = "settings.hcl"

// Settings declares the projects of a build.
type Settings struct {
	RootProjectName string   `hcl:"root_project_name,optional"`
	Include         []string `hcl:"include,optional"`

	// Path is the settings file; empty when the build has none.
	Path string
}

// LoadSettings reads rootDir/settings.hcl. A build without the file is a
// single-project build named after its directory.
func LoadSettings(ctx context.Context, rootDir string) (*Settings, error) {
	logger := ctxlog.FromContext(ctx)
	path := filepath.Join(rootDir, SettingsFile)
	settings := &Settings{}
	if fsutil.IsFile(path) {
		logger.Debug("Decoding settings file.", "path", path)
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, builderr.Settings(path, "failed to parse settings file", diags)
		}
		if diags := gohcl.DecodeBody(file.Body, nil, settings); diags.HasErrors() {
			return nil, builderr.Settings(path, "failed to decode settings file", diags)
		}
		settings.Path = path
	} else {
		logger.Debug("No settings file, using a single project build.", "dir", rootDir)
	}

	if settings.RootProjectName == "" {
		abs, err := filepath.Abs(rootDir)
		if err != nil {
			return nil, builderr.Settings(rootDir, "invalid root directory", err)
		}
		settings.RootProjectName = filepath.Base(abs)
	}
	for _, inc := range settings.Include {
		if _, err := splitPath(inc); err != nil {
			return nil, builderr.Settings(path, fmt.Sprintf("invalid include %q", inc), err)
		}
	}
	return settings, nil
}
