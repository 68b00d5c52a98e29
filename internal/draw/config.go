package draw

import (
	"fmt"
	"time"
)

// RevealMode controls how committed winners are shown.
type RevealMode string

const (
	// RevealAllAtOnce reveals every winner immediately.
	RevealAllAtOnce RevealMode = "all-at-once"
	// RevealSequential reveals winners one at a time with a configured
	// interval between them.
	RevealSequential RevealMode = "sequential"
)

// Config is the complete configuration of one draw, captured at start
// time. The controller never reads mutable global state: everything a draw
// depends on is in here or in the store.
type Config struct {
	// ListIDs selects the source lists, in concatenation order.
	ListIDs []string

	// PrizeID selects the prize to award.
	PrizeID string

	// WinnersCount is the number of entries to draw.
	WinnersCount int

	// Delay is the optional cosmetic pause before selection. Zero skips
	// the delay phase.
	Delay time.Duration

	// RevealMode and RevealInterval control the reveal phase. The
	// interval only applies to sequential mode.
	RevealMode     RevealMode
	RevealInterval time.Duration

	// ExcludePriorWinners removes entries that already won this prize
	// name from the pool.
	ExcludePriorWinners bool

	// RemoveWinnersFromLists trims drawn entries out of their source
	// lists at commit time.
	RemoveWinnersFromLists bool

	// FallbackField is the entry data field used for exclusion matching
	// when an entry has no ID.
	FallbackField string

	// DisplayField is the entry data field shown as the winner's name.
	// Entries without it fall back to their ID.
	DisplayField string
}

// validate rejects configurations no draw could run with.
func (c Config) validate() error {
	if len(c.ListIDs) == 0 {
		return &Error{Code: ErrCodeInvalidConfig, Message: "no lists selected"}
	}
	if c.PrizeID == "" {
		return &Error{Code: ErrCodeInvalidConfig, Message: "no prize selected"}
	}
	if c.WinnersCount < 1 {
		return &Error{Code: ErrCodeInvalidConfig,
			Message: fmt.Sprintf("winners count must be at least 1, got %d", c.WinnersCount)}
	}
	switch c.RevealMode {
	case RevealAllAtOnce, RevealSequential:
	case "":
		// Defaulted by the controller.
	default:
		return &Error{Code: ErrCodeInvalidConfig,
			Message: fmt.Sprintf("unknown reveal mode %q", c.RevealMode)}
	}
	return nil
}
