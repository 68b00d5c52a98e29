package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagedraw/stagedraw/internal/api"
	"github.com/stagedraw/stagedraw/internal/draw"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		port    int
		dataDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the collection and draw API over HTTP",
		Long: `Serve the HTTP API used by display and control clients.

All collection access goes through this process; clients never touch the
collection files directly.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, logger, err := setup(rootOpts, cmd, dataDir)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			ctrl := draw.NewController(s, draw.WithLogger(logger))
			srv := api.NewServer(s, ctrl, cfg.Draw, logger)
			addr := fmt.Sprintf(":%d", cfg.Server.Port)
			if err := srv.Run(addr); err != nil {
				return WrapExitError(ExitCommandError, "serve api", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config)")
	return cmd
}
