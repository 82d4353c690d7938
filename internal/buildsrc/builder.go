// Package buildsrc builds the build-sources tree of a project: it compiles
// the sources under buildSrc/ and packages the classes into a jar at a fixed
// path inside the project. An archive whose inputs are unchanged is reused
// without being touched.
package buildsrc

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
	"runtime"
	"time"

	"github.com/vk/buildcp/internal/builderr"
	"github.com/vk/buildcp/internal/classfile"
	"github.com/vk/buildcp/internal/compiler"
	"github.com/vk/buildcp/internal/ctxlog"
	"github.com/vk/buildcp/internal/fsutil"
)

const (
	// Dir is the build-sources directory, relative to the project root.
	Dir = "buildSrc"
	// ArchivePath is where the packaged build sources are written, relative
	// to the project root.
	ArchivePath = "buildSrc/.gradle/internal-repository/org.gradle/buildSrc/SNAPSHOT/jars/buildSrc.jar"
)

var sourceExtensions = []string{".java", ".groovy"}

// Artifact is the packaged output of a build-sources tree.
type Artifact struct {
	Path        string
	InputHash   string
	ContentHash string
	ModTime     time.Time
	Rebuilt     bool
	Classes     int
}

// Builder compiles and packages build sources.
type Builder struct {
	compiler compiler.Compiler
	system   compiler.ClassPath
	timeout  time.Duration
	workers  int
}

// Option configures a Builder.
type Option func(*Builder)

// WithTimeout bounds the compilation.
func WithTimeout(d time.Duration) Option {
	return func(b *Builder) { b.timeout = d }
}

// WithHashWorkers sets how many files are hashed concurrently.
func WithHashWorkers(n int) Option {
	return func(b *Builder) { b.workers = n }
}

// New creates a builder. system is the classpath sources compile against.
func New(c compiler.Compiler, system compiler.ClassPath, opts ...Option) *Builder {
	b := &Builder{compiler: c, system: system, workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers < 1 {
		b.workers = 1
	}
	return b
}

// Build builds the build sources of the project at projectDir. It returns nil
// and no error when the project has no build-sources directory.
func (b *Builder) Build(ctx context.Context, projectDir string) (*Artifact, error) {
	logger := ctxlog.FromContext(ctx)
	dir := filepath.Join(projectDir, Dir)
	if !fsutil.IsDir(dir) {
		logger.Debug("No build sources present.", "dir", dir)
		return nil, nil
	}

	def, err := LoadDefinition(ctx, dir)
	if err != nil {
		return nil, err
	}

	inputs, sources, err := collect(dir, def)
	if err != nil {
		return nil, builderr.CacheIO(dir, err)
	}
	inputHash, err := hashInputs(ctx, dir, inputs, b.workers)
	if err != nil {
		return nil, builderr.CacheIO(dir, err)
	}

	archive := filepath.Join(projectDir, ArchivePath)
	if comment, err := classfile.ArchiveComment(archive); err == nil && comment == inputHash {
		a, err := describe(archive, inputHash)
		if err != nil {
			return nil, builderr.CacheIO(archive, err)
		}
		logger.Info("Build sources are up to date.", "archive", archive)
		return a, nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Ignoring unreadable build sources archive.", "archive", archive, "error", err)
	}

	logger.Info("Compiling build sources.", "dir", dir, "sources", len(sources))
	cctx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	res, err := b.compiler.Compile(cctx, compiler.Request{Sources: sources, ClassPath: b.system})
	if err != nil {
		var diags compiler.Diagnostics
		if errors.As(err, &diags) {
			return nil, builderr.Compilation(diags.File(), err)
		}
		return nil, builderr.Compilation(dir, err)
	}

	contentHash, err := writeArchive(ctx, archive, res.Classes, inputHash)
	if err != nil {
		return nil, builderr.CacheIO(archive, err)
	}
	info, err := os.Stat(archive)
	if err != nil {
		return nil, builderr.CacheIO(archive, err)
	}
	logger.Info("Packaged build sources.", "archive", archive, "classes", len(res.Classes))
	return &Artifact{
		Path:        archive,
		InputHash:   inputHash,
		ContentHash: contentHash,
		ModTime:     info.ModTime(),
		Rebuilt:     true,
		Classes:     len(res.Classes),
	}, nil
}

// collect returns every input file (for hashing) and the compilable sources,
// both sorted.
func collect(dir string, def *Definition) (inputs, sources []string, err error) {
	if def.Path != "" {
		inputs = append(inputs, def.Path)
	}
	for _, rel := range def.SourceDirs {
		root := filepath.Join(dir, rel)
		all, err := fsutil.FindFilesByExtension(root)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, all...)
		src, err := fsutil.FindFilesByExtension(root, sourceExtensions...)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, src...)
	}
	return inputs, sources, nil
}

func describe(archive, inputHash string) (*Artifact, error) {
	info, err := os.Stat(archive)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	idx, err := classfile.ReadArchive(archive)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Path:        archive,
		InputHash:   inputHash,
		ContentHash: hex.EncodeToString(h.Sum(nil)),
		ModTime:     info.ModTime(),
		Classes:     idx.Len(),
	}, nil
}

// writeArchive writes the jar next to its final location and renames it into
// place. It returns the sha256 of the written archive.
func writeArchive(ctx context.Context, archive string, classes []*classfile.Class, comment string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(archive), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(archive), ".buildSrc-*.tmp")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	h := sha256.New()
	if err := classfile.WriteArchive(io.MultiWriter(tmp, h), classes, comment); err != nil {
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), archive); err != nil {
		return "", fmt.Errorf("committing archive: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
