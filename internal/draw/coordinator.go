package draw

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/stagedraw/stagedraw/internal/record"
	"github.com/stagedraw/stagedraw/internal/store"
)

// Coordinator translates a selection outcome into the minimal batch of
// store operations, and builds the mirrored inverse for undo.
//
// Commit is all-or-nothing from the caller's perspective but the
// collections underneath stay independent files: a partial batch failure
// is surfaced with the store's per-collection report, never retried
// silently.
type Coordinator struct {
	store  *store.Store
	logger *slog.Logger
}

// NewCoordinator creates a coordinator writing through s.
func NewCoordinator(s *store.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{store: s, logger: logger}
}

// Commit persists one selection outcome: N winner upserts, the decremented
// prize, one history entry, and the trimmed source lists when the
// remove-winners setting was active.
func (c *Coordinator) Commit(o Outcome) (store.BatchResult, error) {
	ops := make([]store.Op, 0, len(o.Winners)+len(o.UpdatedLists)+2)
	for _, w := range o.Winners {
		ops = append(ops, store.UpsertOp(store.Winners, w))
	}
	ops = append(ops, store.UpsertOp(store.Prizes, o.Prize))
	ops = append(ops, store.UpsertOp(store.History, o.History))
	for _, l := range o.UpdatedLists {
		ops = append(ops, store.UpsertOp(store.Lists, l))
	}

	result, err := c.store.BatchWrite(ops)
	if err != nil {
		return result, fmt.Errorf("commit draw %s: %w", o.History.HistoryID, err)
	}
	return result, nil
}

// Reverse applies the structural inverse of a committed draw: delete each
// winner, restore the prize quantity, delete the history entry, and
// re-insert any entries the draw removed from source lists, at their
// original positions. All four effects go through one batch write.
func (c *Coordinator) Reverse(la LastAction) (store.BatchResult, error) {
	var ops []store.Op
	for _, w := range la.Winners {
		ops = append(ops, store.DeleteOp(store.Winners, w.WinnerID))
	}

	prize, found, err := c.store.FindPrize(la.PrizeID)
	if err != nil {
		return store.BatchResult{}, fmt.Errorf("undo draw %s: %w", la.HistoryID, err)
	}
	switch {
	case found && prize.Version == la.PrizeBefore.Version+1:
		// No other writer touched the prize since the commit: restore the
		// pre-draw record verbatim.
		ops = append(ops, store.UpsertOp(store.Prizes, la.PrizeBefore))
	case found:
		// The prize moved underneath us; merge the quantity back instead
		// of clobbering the newer record.
		c.logger.Warn("prize changed since the draw, merging quantity restore",
			"prizeId", la.PrizeID, "historyId", la.HistoryID)
		prize.Quantity += la.PrizeCount
		prize.Version++
		ops = append(ops, store.UpsertOp(store.Prizes, prize))
	default:
		// The prize was deleted out from under us; nothing to restore the
		// quantity onto.
		c.logger.Warn("undo cannot restore quantity, prize is gone",
			"prizeId", la.PrizeID, "historyId", la.HistoryID)
	}

	ops = append(ops, store.DeleteOp(store.History, la.HistoryID))

	if len(la.RemovedEntries) > 0 {
		restoreOps, err := c.restoreListOps(la)
		if err != nil {
			return store.BatchResult{}, fmt.Errorf("undo draw %s: %w", la.HistoryID, err)
		}
		ops = append(ops, restoreOps...)
	}

	result, err := c.store.BatchWrite(ops)
	if err != nil {
		return result, fmt.Errorf("undo draw %s: %w", la.HistoryID, err)
	}
	return result, nil
}

// ReverseHistory undoes a draw recorded in the history collection, for a
// process that no longer holds the in-memory LastAction. Winners and the
// history entry are removed and the prize quantity is merged back. Entries
// trimmed from source lists stay trimmed: their original positions are not
// recorded durably.
func (c *Coordinator) ReverseHistory(h record.HistoryEntry) (store.BatchResult, error) {
	var ops []store.Op
	for _, id := range h.WinnerIDs {
		ops = append(ops, store.DeleteOp(store.Winners, id))
	}

	prize, found, err := c.store.FindPrize(h.PrizeID)
	if err != nil {
		return store.BatchResult{}, fmt.Errorf("undo draw %s: %w", h.HistoryID, err)
	}
	if found {
		prize.Quantity += h.WinnersCount
		prize.Version++
		ops = append(ops, store.UpsertOp(store.Prizes, prize))
	} else {
		c.logger.Warn("undo cannot restore quantity, prize is gone",
			"prizeId", h.PrizeID, "historyId", h.HistoryID)
	}

	ops = append(ops, store.DeleteOp(store.History, h.HistoryID))

	result, err := c.store.BatchWrite(ops)
	if err != nil {
		return result, fmt.Errorf("undo draw %s: %w", h.HistoryID, err)
	}
	return result, nil
}

// restoreListOps rebuilds each touched source list with its removed
// entries back in place.
func (c *Coordinator) restoreListOps(la LastAction) ([]store.Op, error) {
	lists, err := c.store.ReadLists()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]record.List, len(lists))
	for _, l := range lists {
		byID[l.ListID] = l
	}

	var ops []store.Op
	for listID, removed := range la.RemovedEntries {
		list, ok := byID[listID]
		if !ok {
			c.logger.Warn("undo cannot restore entries, list is gone", "listId", listID)
			continue
		}

		// Ascending original index keeps each insertion point valid.
		sorted := make([]RemovedEntry, len(removed))
		copy(sorted, removed)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

		for _, re := range sorted {
			list.Entries = insertAt(list.Entries, re.Entry, re.Index)
		}
		ops = append(ops, store.UpsertOp(store.Lists, list))
	}
	return ops, nil
}

func insertAt(entries []record.Entry, e record.Entry, idx int) []record.Entry {
	if idx < 0 {
		idx = 0
	}
	if idx > len(entries) {
		idx = len(entries)
	}
	entries = append(entries, record.Entry{})
	copy(entries[idx+1:], entries[idx:])
	entries[idx] = e
	return entries
}
