package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagedraw/stagedraw/internal/config"
	"github.com/stagedraw/stagedraw/internal/store"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		configPath string
		dataDir    string
	)

	cmd := &cobra.Command{
		Use:           "init",
		Short:         "Write a default config file and create the data directory",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(configPath); err != nil {
				return WrapExitError(ExitCommandError, "write config", err)
			}

			dir := dataDir
			if dir == "" {
				dir = config.Default().Data.Dir
			}
			logger := config.Default().Log.NewLogger(cmd.ErrOrStderr())
			if _, err := store.Open(dir, logger); err != nil {
				return WrapExitError(ExitCommandError, "create data directory", err)
			}

			if rootOpts.Format == "json" {
				return newFormatter(rootOpts, cmd).Success(map[string]string{
					"config":  configPath,
					"dataDir": dir,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and created %s/\n", configPath, dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config-path", "stagedraw.yaml", "where to write the config file")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory to create")
	return cmd
}
