package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CacheDirEnv names the environment variable that sets the cache root.
const CacheDirEnv = "BUILDCP_CACHE_DIR"

// DefaultTask runs when an invocation names no task.
const DefaultTask = "tasks"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProjectDir string
	CacheDir   string // artifact store root
	Tasks      []string

	LogFormat string
	LogLevel  string

	Offline          bool
	Continuous       bool
	OperationTimeout time.Duration // per repository lookup, compilation and store write; 0 disables
	HashWorkers      int
	Debounce         time.Duration // continuous mode quiet period
}

// NewConfig validates cfg and fills in defaults. The cache root comes from
// cfg.CacheDir, then the environment, then a .env file in the project
// directory, then a directory under the user's home.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = "."
	}
	dir, err := filepath.Abs(cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("invalid project directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid project directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project directory %s is not a directory", dir)
	}
	cfg.ProjectDir = dir

	if cfg.CacheDir == "" {
		cacheDir, err := cacheDirFromEnv(dir)
		if err != nil {
			return nil, err
		}
		cfg.CacheDir = cacheDir
	}
	if cfg.CacheDir, err = filepath.Abs(cfg.CacheDir); err != nil {
		return nil, fmt.Errorf("invalid cache directory: %w", err)
	}

	if len(cfg.Tasks) == 0 {
		cfg.Tasks = []string{DefaultTask}
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, errors.New("invalid log format: must be 'text' or 'json'")
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log level: must be 'debug', 'info', 'warn', or 'error'")
	}

	if cfg.OperationTimeout < 0 {
		return nil, errors.New("operation timeout cannot be negative")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 200 * time.Millisecond
	}
	return &cfg, nil
}

func cacheDirFromEnv(projectDir string) (string, error) {
	if v := os.Getenv(CacheDirEnv); v != "" {
		return v, nil
	}
	envFile := filepath.Join(projectDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		vars, err := godotenv.Read(envFile)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", envFile, err)
		}
		if v := vars[CacheDirEnv]; v != "" {
			if !filepath.IsAbs(v) {
				v = filepath.Join(projectDir, v)
			}
			return v, nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot derive the cache directory: %w", err)
	}
	return filepath.Join(home, ".buildcp", "caches"), nil
}
