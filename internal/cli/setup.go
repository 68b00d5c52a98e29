package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stagedraw/stagedraw/internal/config"
	"github.com/stagedraw/stagedraw/internal/store"
)

// setup loads the configuration and opens the collection store shared by
// the data-bearing commands.
func setup(opts *RootOptions, cmd *cobra.Command, dataDir string) (config.Config, *store.Store, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, nil, nil, WrapExitError(ExitCommandError, "load configuration", err)
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}

	logLevel := cfg.Log
	if opts.Verbose {
		logLevel.Level = "debug"
	}
	logger := logLevel.NewLogger(cmd.ErrOrStderr())

	s, err := store.Open(cfg.Data.Dir, logger)
	if err != nil {
		return config.Config{}, nil, nil, WrapExitError(ExitCommandError, "open data directory", err)
	}
	return cfg, s, logger, nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
