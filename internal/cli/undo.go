package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagedraw/stagedraw/internal/draw"
)

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Reverse the most recent committed draw",
		Long: `Reverse the most recent draw recorded in the history collection: its
winners are deleted, the prize quantity is restored, and the history entry
is removed.

Runs from the durable history, so it works after a restart. Entries that
were removed from source lists stay removed; their original positions are
only known to the process that ran the draw.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUndo(rootOpts, dataDir, cmd)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config)")
	return cmd
}

func runUndo(opts *RootOptions, dataDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	_, s, logger, err := setup(opts, cmd, dataDir)
	if err != nil {
		return err
	}

	history, err := s.ReadHistory()
	if err != nil {
		return WrapExitError(ExitCommandError, "read history", err)
	}
	if len(history) == 0 {
		return reportDrawError(formatter,
			&draw.Error{Code: draw.ErrCodeNothingToUndo, Message: "no draw to undo"})
	}

	// History is append-only; the newest draw is the last entry.
	latest := history[len(history)-1]
	formatter.VerboseLog("undoing draw %s (%d winners of %s)",
		latest.HistoryID, latest.WinnersCount, latest.PrizeName)

	coord := draw.NewCoordinator(s, logger)
	if _, err := coord.ReverseHistory(latest); err != nil {
		return reportDrawError(formatter, err)
	}

	if opts.Format == "text" {
		fmt.Fprintf(cmd.OutOrStdout(), "Undid draw %s: removed %d winner(s), restored %d of %s\n",
			latest.HistoryID, latest.WinnersCount, latest.WinnersCount, latest.PrizeName)
		return nil
	}
	return formatter.Success(map[string]any{
		"historyId":      latest.HistoryID,
		"winnersRemoved": latest.WinnersCount,
		"prize":          latest.PrizeName,
	})
}
