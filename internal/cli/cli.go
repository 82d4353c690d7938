package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/vk/buildcp/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments (without the program name). It
// returns a populated Config, a boolean indicating if the program should
// exit cleanly, or an ExitError.
func Parse(ctx context.Context, args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var config *app.Config
	cmd := &cli.Command{
		Name:            "buildcp",
		Usage:           "Compose build-script classpaths and run build tasks",
		ArgsUsage:       "[task ...]",
		HideHelpCommand: true,
		Writer:          output,
		ErrWriter:       output,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project-dir", Aliases: []string{"p"}, Value: ".", Usage: "Root directory of the build."},
			&cli.StringFlag{Name: "cache-dir", Usage: "Artifact cache root (overrides " + app.CacheDirEnv + ")."},
			&cli.BoolFlag{Name: "offline", Usage: "Resolve dependencies from the artifact cache only."},
			&cli.BoolFlag{Name: "continuous", Aliases: []string{"t"}, Usage: "Re-run the build when files change."},
			&cli.DurationFlag{Name: "debounce", Value: 200 * time.Millisecond, Usage: "Quiet period before a continuous re-run."},
			&cli.DurationFlag{Name: "timeout", Usage: "Timeout of each repository lookup, compilation and cache write. 0 disables it."},
			&cli.IntFlag{Name: "hash-workers", Usage: "Files hashed concurrently when checking build sources. 0 uses every CPU."},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "Log output format. Options: 'text' or 'json'."},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "Set the logging level. Options: 'debug', 'info', 'warn', 'error'."},
		},
		OnUsageError: func(_ context.Context, _ *cli.Command, err error, _ bool) error {
			return err
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			c, err := app.NewConfig(app.Config{
				ProjectDir:       cmd.String("project-dir"),
				CacheDir:         cmd.String("cache-dir"),
				Tasks:            cmd.Args().Slice(),
				LogFormat:        cmd.String("log-format"),
				LogLevel:         cmd.String("log-level"),
				Offline:          cmd.Bool("offline"),
				Continuous:       cmd.Bool("continuous"),
				OperationTimeout: cmd.Duration("timeout"),
				HashWorkers:      cmd.Int("hash-workers"),
				Debounce:         cmd.Duration("debounce"),
			})
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			config = c
			return nil
		},
	}

	if err := cmd.Run(ctx, append([]string{"buildcp"}, args...)); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if config == nil {
		// Help was requested; the command already printed it.
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
