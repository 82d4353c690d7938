package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/buildcp/internal/artifactstore"
	"github.com/vk/buildcp/internal/buildsrc"
	"github.com/vk/buildcp/internal/classfile"
	"github.com/vk/buildcp/internal/classpath"
	"github.com/vk/buildcp/internal/compiler"
	"github.com/vk/buildcp/internal/ctxlog"
	"github.com/vk/buildcp/internal/lookup"
	"github.com/vk/buildcp/internal/repository"
)

// archiveIndexCacheSize bounds the class indexes kept across invocations.
const archiveIndexCacheSize = 256

// App encapsulates the application's dependencies, configuration, and lifecycle.
// Components that keep caches (the artifact store and the class index
// loader) live as long as the App, so continuous mode reuses them.
type App struct {
	outW     io.Writer
	logW     io.Writer
	logger   *slog.Logger
	config   *Config
	compiler compiler.Compiler

	store    *artifactstore.Store
	loader   *classfile.Loader
	composer *lookup.Composer
	buildSrc *buildsrc.Builder
}

// Option configures an App.
type Option func(*App)

// WithLogOutput sends log records to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *App) { a.logW = w }
}

// WithCompiler replaces the in-process source compiler, e.g. with a client
// of an out-of-process compiler daemon.
func WithCompiler(c compiler.Compiler) Option {
	return func(a *App) { a.compiler = c }
}

// NewApp is the constructor for the main application. Task output goes to
// outW.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	a := &App{outW: outW, logW: os.Stderr, config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = newLogger(cfg.LogLevel, cfg.LogFormat, a.logW)
	a.logger.Debug("Logger configured successfully.")

	store, err := artifactstore.New(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.logger.Debug("Artifact store opened.", "root", store.Root())

	loader, err := classfile.NewLoader(archiveIndexCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create class index cache: %w", err)
	}
	a.loader = loader
	a.composer = lookup.NewComposer(loader)

	if a.compiler == nil {
		a.compiler = compiler.NewSourceCompiler()
	}
	var bopts []buildsrc.Option
	if cfg.OperationTimeout > 0 {
		bopts = append(bopts, buildsrc.WithTimeout(cfg.OperationTimeout))
	}
	if cfg.HashWorkers > 0 {
		bopts = append(bopts, buildsrc.WithHashWorkers(cfg.HashWorkers))
	}
	a.buildSrc = buildsrc.New(a.compiler, lookup.System(), bopts...)

	return a, nil
}

// Config returns the configuration the App runs with.
func (a *App) Config() *Config {
	return a.config
}

// Store returns the artifact store shared by every invocation of the App.
func (a *App) Store() *artifactstore.Store {
	return a.store
}

// resolver creates the classpath resolver of one invocation.
func (a *App) resolver(ctx context.Context) *classpath.Resolver {
	var opts []classpath.Option
	if a.config.OperationTimeout > 0 {
		opts = append(opts, classpath.WithTimeout(a.config.OperationTimeout))
	}
	if a.config.Offline {
		ctxlog.FromContext(ctx).Info("Offline mode, resolving from the artifact store only.")
		opts = append(opts, classpath.WithRepositories(repository.NewOffline(a.store)))
	}
	return classpath.NewResolver(a.store, opts...)
}
