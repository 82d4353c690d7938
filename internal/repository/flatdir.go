package repository

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/coord"
	"github.com/vk/buildcp/internal/ctxlog"
)

const archiveExt = ".jar"

// FlatDir resolves artifacts named "<name>-<version>.jar" from a list of
// plain directories. Groups are not part of the file name and are ignored.
type FlatDir struct {
	name string
	dirs []string
}

// NewFlatDir creates a flat directory repository. Earlier directories take
// precedence when two of them hold the same version.
func NewFlatDir(name string, dirs ...string) *FlatDir {
	if name == "" {
		name = "flatDir"
	}
	return &FlatDir{name: name, dirs: dirs}
}

// Name implements Repository.
func (r *FlatDir) Name() string {
	return r.name
}

// Dirs returns the searched directories.
func (r *FlatDir) Dirs() []string {
	return r.dirs
}

// Resolve implements Repository. A selector resolves to the highest version
// offered across all directories.
func (r *FlatDir) Resolve(ctx context.Context, c coord.Coordinate) (Match, bool, error) {
	logger := ctxlog.FromContext(ctx)
	if err := ctx.Err(); err != nil {
		return Match{}, false, builderr.Repository(r.name, c.String(), err)
	}

	available, err := r.versions(c.Name)
	if err != nil {
		return Match{}, false, builderr.Repository(r.name, c.String(), err)
	}

	versions := make([]string, 0, len(available))
	for v := range available {
		versions = append(versions, v)
	}
	version, ok := coord.Highest(c.Version, versions)
	if !ok {
		logger.Debug("No matching artifact in flat directory repository.", "repository", r.name, "coordinate", c.String(), "candidates", len(versions))
		return Match{}, false, nil
	}

	m := Match{Coordinate: c.WithVersion(version), Path: available[version], Repository: r.name}
	logger.Debug("Resolved artifact.", "repository", r.name, "coordinate", c.String(), "version", version, "path", m.Path)
	return m, true, nil
}

// versions maps every version of the named module found in the directories
// to its file.
func (r *FlatDir) versions(name string) (map[string]string, error) {
	prefix := name + "-"
	found := make(map[string]string)
	for _, dir := range r.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			fname := e.Name()
			if e.IsDir() || !strings.HasPrefix(fname, prefix) || !strings.HasSuffix(fname, archiveExt) {
				continue
			}
			version := strings.TrimSuffix(strings.TrimPrefix(fname, prefix), archiveExt)
			if version == "" {
				continue
			}
			if _, seen := found[version]; !seen {
				found[version] = filepath.Join(dir, fname)
			}
		}
	}
	return found, nil
}
