package draw

import "github.com/stagedraw/stagedraw/internal/record"

// RemovedEntry is one entry trimmed from a source list during a draw,
// remembered with its original position so undo can put it back exactly
// where it was.
type RemovedEntry struct {
	Entry record.Entry
	Index int
}

// LastAction is the fully-typed description of the most recent committed
// draw: the exact records the commit created and removed, so undo is a
// direct structural inverse instead of reconstructed logic.
//
// LastAction lives in memory only. It exists until the next draw starts or
// the process exits; starting a new draw discards it irrecoverably.
type LastAction struct {
	// Winners are the records the commit created, in commit order.
	Winners []record.Winner

	// PrizeID and PrizeCount describe the quantity decrement to restore.
	PrizeID    string
	PrizeCount int

	// PrizeBefore is the prize record exactly as it was before the
	// commit. Undo restores it verbatim unless another writer has touched
	// the prize since.
	PrizeBefore record.Prize

	// HistoryID is the history entry to delete.
	HistoryID string

	// SourceListIDs are the lists the draw ran over.
	SourceListIDs []string

	// RemovedEntries maps a list ID to the entries trimmed from it, when
	// the remove-winners setting was active. Empty otherwise.
	RemovedEntries map[string][]RemovedEntry
}

// Outcome is one committed selection: everything the coordinator persists
// and the controller reveals.
type Outcome struct {
	Winners []record.Winner
	History record.HistoryEntry
	Prize   record.Prize

	// PrizeBefore is the prize as read immediately before the decrement.
	PrizeBefore record.Prize

	// UpdatedLists are the source lists with drawn entries removed; only
	// populated when the remove-winners setting is active.
	UpdatedLists []record.List

	// RemovedEntries mirrors LastAction.RemovedEntries for undo.
	RemovedEntries map[string][]RemovedEntry
}
