// Package artifactstore implements the on-disk, content-addressed cache of
// resolved classpath artifacts shared by every project of an invocation.
//
// Layout:
//
//	{Root}/
//	  artifacts-1/
//	    {group or "_"}/
//	      {name}/
//	        {version}/
//	          {sha256}/
//	            {name}-{version}{ext}
//	  staging/
//
// Writes go to a temporary file under staging and are renamed into their
// hash directory, so readers observe either no file or the complete file. No
// version directory exists before its first artifact is committed. An
// artifact that is already present with the same content hash is never
// rewritten.
package artifactstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/coord"
	"github.com/vk/buildcp/internal/ctxlog"
	"golang.org/x/sync/singleflight"
)

const (
	layoutDir  = "artifacts-1"
	stagingDir = "staging"
	emptyGroup = "_"
)

// Ref is an immutable reference to a stored artifact.
type Ref struct {
	Coordinate coord.Coordinate
	Path       string
	Hash       string // hex sha256 of the file content
}

// Store is a filesystem-backed artifact cache.
type Store struct {
	root     string
	inflight singleflight.Group
}

// New opens (creating if needed) a store rooted at dir.
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, builderr.CacheIO(dir, err)
	}
	for _, d := range []string{layoutDir, stagingDir} {
		if err := os.MkdirAll(filepath.Join(abs, d), 0o755); err != nil {
			return nil, builderr.CacheIO(abs, err)
		}
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute cache root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) moduleDir(group, name string) string {
	if group == "" {
		group = emptyGroup
	}
	return filepath.Join(s.root, layoutDir, group, name)
}

func (s *Store) versionDir(c coord.Coordinate) string {
	return filepath.Join(s.moduleDir(c.Group, c.Name), c.Version)
}

// Lookup returns the stored artifact for a concrete coordinate. When several
// contents were stored for the same coordinate the most recently committed
// one wins.
func (s *Store) Lookup(c coord.Coordinate) (Ref, bool, error) {
	if c.IsSelector() {
		return Ref{}, false, fmt.Errorf("lookup requires a concrete version, got %s", c)
	}
	dir := s.versionDir(c)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Ref{}, false, nil
		}
		return Ref{}, false, builderr.CacheIO(c.String(), err)
	}

	var (
		best    Ref
		bestMod int64
		found   bool
	)
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, e.Name()))
		if err != nil {
			return Ref{}, false, builderr.CacheIO(c.String(), err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasPrefix(f.Name(), c.Name+"-"+c.Version) {
				continue
			}
			info, err := f.Info()
			if err != nil {
				return Ref{}, false, builderr.CacheIO(c.String(), err)
			}
			if !found || info.ModTime().UnixNano() > bestMod {
				best = Ref{Coordinate: c, Path: filepath.Join(dir, e.Name(), f.Name()), Hash: e.Name()}
				bestMod = info.ModTime().UnixNano()
				found = true
			}
		}
	}
	return best, found, nil
}

// Versions lists the concrete versions stored for a module. Only versions
// with a committed artifact are listed.
func (s *Store) Versions(group, name string) ([]string, error) {
	entries, err := os.ReadDir(s.moduleDir(group, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, builderr.CacheIO(group+":"+name, err)
	}
	var versions []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || coord.IsSelector(e.Name()) {
			continue
		}
		_, ok, err := s.Lookup(coord.Coordinate{Group: group, Name: name, Version: e.Name()})
		if err != nil {
			return nil, err
		}
		if ok {
			versions = append(versions, e.Name())
		}
	}
	return versions, nil
}

// Put copies src into the store under the concrete coordinate c and returns
// its reference. Concurrent Puts of the same coordinate and source share a
// single copy. A cancelled context aborts the copy and leaves no partial file.
func (s *Store) Put(ctx context.Context, c coord.Coordinate, src string) (Ref, error) {
	if c.IsSelector() {
		return Ref{}, fmt.Errorf("put requires a concrete version, got %s", c)
	}
	if err := c.Validate(); err != nil {
		return Ref{}, builderr.CacheIO(c.String(), err)
	}
	v, err, shared := s.inflight.Do(c.String()+"\x00"+src, func() (any, error) {
		return s.put(ctx, c, src)
	})
	if err != nil {
		return Ref{}, err
	}
	if shared {
		ctxlog.FromContext(ctx).Debug("Shared in-flight artifact store write.", "coordinate", c.String())
	}
	return v.(Ref), nil
}

func (s *Store) put(ctx context.Context, c coord.Coordinate, src string) (Ref, error) {
	logger := ctxlog.FromContext(ctx)

	in, err := os.Open(src)
	if err != nil {
		return Ref{}, builderr.CacheIO(c.String(), err)
	}
	defer in.Close()

	// Staging lives under the same root, so the rename never crosses a
	// filesystem boundary.
	staging := filepath.Join(s.root, stagingDir)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return Ref{}, builderr.CacheIO(c.String(), err)
	}
	tmp, err := os.CreateTemp(staging, "put-*.tmp")
	if err != nil {
		return Ref{}, builderr.CacheIO(c.String(), err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), &ctxReader{ctx: ctx, r: in}); err != nil {
		return Ref{}, builderr.CacheIO(c.String(), err)
	}
	if err := tmp.Sync(); err != nil {
		return Ref{}, builderr.CacheIO(c.String(), err)
	}
	if err := tmp.Close(); err != nil {
		return Ref{}, builderr.CacheIO(c.String(), err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	final := filepath.Join(s.versionDir(c), sum, c.Name+"-"+c.Version+filepath.Ext(src))
	ref := Ref{Coordinate: c, Path: final, Hash: sum}

	if _, err := os.Stat(final); err == nil {
		logger.Debug("Artifact already stored.", "coordinate", c.String(), "path", final)
		return ref, nil
	}

	if err := ctx.Err(); err != nil {
		return Ref{}, builderr.CacheIO(c.String(), err)
	}
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return Ref{}, builderr.CacheIO(c.String(), err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return Ref{}, builderr.CacheIO(c.String(), err)
	}
	logger.Debug("Stored artifact.", "coordinate", c.String(), "path", final)
	return ref, nil
}

// ctxReader aborts a copy as soon as its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
