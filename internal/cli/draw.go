package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stagedraw/stagedraw/internal/draw"
	"github.com/stagedraw/stagedraw/internal/record"
)

// drawFlags are the per-draw options; unset ones fall back to the config
// file's draw section.
type drawFlags struct {
	lists          []string
	prize          string
	count          int
	delay          time.Duration
	revealMode     string
	revealInterval time.Duration
	excludePrior   bool
	removeWinners  bool
	displayField   string
	fallbackField  string
	dataDir        string
}

// NewDrawCommand creates the draw command.
func NewDrawCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &drawFlags{}

	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Run one draw in the terminal",
		Long: `Run a complete draw: build the eligible pool, select winners with the
secure shuffle, persist the outcome, and reveal the winners.

Sequential reveal prints one winner per interval; all-at-once prints them
immediately. The committed draw can be reversed afterwards with undo.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraw(rootOpts, flags, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&flags.lists, "lists", nil, "source list ids (required)")
	cmd.Flags().StringVar(&flags.prize, "prize", "", "prize id (required)")
	cmd.Flags().IntVar(&flags.count, "count", 1, "number of winners")
	cmd.Flags().DurationVar(&flags.delay, "delay", 0, "pause before selection")
	cmd.Flags().StringVar(&flags.revealMode, "reveal-mode", "", "all-at-once or sequential")
	cmd.Flags().DurationVar(&flags.revealInterval, "reveal-interval", 0, "pause between sequential reveals")
	cmd.Flags().BoolVar(&flags.excludePrior, "exclude-prior-winners", false, "skip entries that already won this prize")
	cmd.Flags().BoolVar(&flags.removeWinners, "remove-winners", false, "remove drawn entries from their source lists")
	cmd.Flags().StringVar(&flags.displayField, "display-field", "", "entry data field shown as the winner name")
	cmd.Flags().StringVar(&flags.fallbackField, "fallback-field", "", "entry data field used for exclusion when an entry has no id")
	cmd.Flags().StringVar(&flags.dataDir, "data-dir", "", "data directory (overrides config)")
	_ = cmd.MarkFlagRequired("lists")
	_ = cmd.MarkFlagRequired("prize")

	return cmd
}

// drawResult is the JSON payload of a successful draw.
type drawResult struct {
	HistoryID string          `json:"historyId"`
	Prize     string          `json:"prize"`
	Winners   []record.Winner `json:"winners"`
}

func runDraw(opts *RootOptions, flags *drawFlags, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, s, logger, err := setup(opts, cmd, flags.dataDir)
	if err != nil {
		return err
	}

	drawCfg := draw.Config{
		ListIDs:                flags.lists,
		PrizeID:                flags.prize,
		WinnersCount:           flags.count,
		Delay:                  cfg.Draw.Delay,
		RevealMode:             draw.RevealMode(cfg.Draw.RevealMode),
		RevealInterval:         cfg.Draw.RevealInterval,
		ExcludePriorWinners:    cfg.Draw.ExcludePriorWinners,
		RemoveWinnersFromLists: cfg.Draw.RemoveWinnersFromLists,
		FallbackField:          cfg.Draw.FallbackField,
		DisplayField:           cfg.Draw.DisplayField,
	}
	set := cmd.Flags().Changed
	if set("delay") {
		drawCfg.Delay = flags.delay
	}
	if set("reveal-mode") {
		drawCfg.RevealMode = draw.RevealMode(flags.revealMode)
	}
	if set("reveal-interval") {
		drawCfg.RevealInterval = flags.revealInterval
	}
	if set("exclude-prior-winners") {
		drawCfg.ExcludePriorWinners = flags.excludePrior
	}
	if set("remove-winners") {
		drawCfg.RemoveWinnersFromLists = flags.removeWinners
	}
	if set("display-field") {
		drawCfg.DisplayField = flags.displayField
	}
	if set("fallback-field") {
		drawCfg.FallbackField = flags.fallbackField
	}

	done := make(chan error, 1)
	var outcome draw.Outcome

	textOut := opts.Format == "text"
	ctrl := draw.NewController(s,
		draw.WithLogger(logger),
		draw.WithCallbacks(draw.Callbacks{
			OnPhase: func(p draw.Phase) {
				formatter.VerboseLog("phase: %s", p)
			},
			OnReveal: func(revealed, total int, w record.Winner) {
				if textOut {
					fmt.Fprintf(cmd.OutOrStdout(), "Winner %d/%d: %s (%s)\n",
						revealed, total, w.DisplayName, w.Prize)
				}
			},
			OnComplete: func(o draw.Outcome) {
				outcome = o
				done <- nil
			},
			OnError: func(err error) {
				done <- err
			},
		}))

	if err := ctrl.Start(context.Background(), drawCfg); err != nil {
		return reportDrawError(formatter, err)
	}
	if err := <-done; err != nil {
		return reportDrawError(formatter, err)
	}

	if textOut {
		fmt.Fprintf(cmd.OutOrStdout(), "Draw %s complete: %d winner(s) for %s\n",
			outcome.History.HistoryID, len(outcome.Winners), outcome.History.PrizeName)
		return nil
	}
	return formatter.Success(drawResult{
		HistoryID: outcome.History.HistoryID,
		Prize:     outcome.History.PrizeName,
		Winners:   outcome.Winners,
	})
}

// reportDrawError prints the draw engine error and maps it to an exit
// code: refusals the operator can fix are failures, everything else is a
// command error.
func reportDrawError(formatter *OutputFormatter, err error) error {
	code := string(draw.CodeOf(err))
	if code == "" {
		code = "INTERNAL"
	}
	_ = formatter.Error(code, err.Error(), nil)

	exit := ExitCommandError
	if draw.IsValidation(err) || draw.CodeOf(err) == draw.ErrCodeNothingToUndo {
		exit = ExitFailure
	}
	return &ExitError{Code: exit, Message: err.Error(), Err: err}
}
