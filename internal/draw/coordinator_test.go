package draw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagedraw/stagedraw/internal/record"
	"github.com/stagedraw/stagedraw/internal/store"
)

func coordStore(t *testing.T) (*store.Store, *Coordinator) {
	t.Helper()
	s, err := store.Open(t.TempDir(), testLogger())
	require.NoError(t, err)
	return s, NewCoordinator(s, testLogger())
}

func sampleOutcome() Outcome {
	before := record.Prize{PrizeID: "p1", Name: "Gift Card", Quantity: 5}
	after := before
	after.Quantity = 3
	after.Version = 1
	return Outcome{
		Winners: []record.Winner{
			{WinnerID: "w1", EntryID: "e1", DisplayName: "Ada", Prize: "Gift Card", HistoryID: "h1"},
			{WinnerID: "w2", EntryID: "e2", DisplayName: "Grace", Prize: "Gift Card", HistoryID: "h1"},
		},
		Prize:       after,
		PrizeBefore: before,
		History: record.HistoryEntry{
			HistoryID: "h1", PrizeID: "p1", PrizeName: "Gift Card",
			WinnersCount: 2, WinnerIDs: []string{"w1", "w2"},
		},
	}
}

func TestCommitWritesAllTouchedCollections(t *testing.T) {
	s, coord := coordStore(t)
	require.NoError(t, s.Upsert(store.Prizes, record.Prize{PrizeID: "p1", Name: "Gift Card", Quantity: 5}))

	o := sampleOutcome()
	o.UpdatedLists = []record.List{{ListID: "l1", Entries: []record.Entry{{ID: "e3", Index: 0}}}}

	result, err := coord.Commit(o)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]store.Collection{store.Lists, store.Winners, store.Prizes, store.History},
		result.Written)
	assert.Empty(t, result.Failed)

	winners, err := s.ReadWinners()
	require.NoError(t, err)
	assert.Len(t, winners, 2)

	prize, _, err := s.FindPrize("p1")
	require.NoError(t, err)
	assert.Equal(t, 3, prize.Quantity)
	assert.Equal(t, 1, prize.Version)

	lists, err := s.ReadLists()
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Len(t, lists[0].Entries, 1)
}

func TestReverseRestoresUntouchedPrizeVerbatim(t *testing.T) {
	s, coord := coordStore(t)
	o := sampleOutcome()
	_, err := coord.Commit(o)
	require.NoError(t, err)

	la := LastAction{
		Winners:     o.Winners,
		PrizeID:     "p1",
		PrizeCount:  2,
		PrizeBefore: o.PrizeBefore,
		HistoryID:   "h1",
	}
	_, err = coord.Reverse(la)
	require.NoError(t, err)

	winners, err := s.ReadWinners()
	require.NoError(t, err)
	assert.Empty(t, winners)

	history, err := s.ReadHistory()
	require.NoError(t, err)
	assert.Empty(t, history)

	prize, found, err := s.FindPrize("p1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, o.PrizeBefore, prize)
}

func TestReverseMergesWhenPrizeMovedSinceCommit(t *testing.T) {
	s, coord := coordStore(t)
	o := sampleOutcome()
	_, err := coord.Commit(o)
	require.NoError(t, err)

	// Another writer renames the prize and spends one more unit after the
	// commit.
	moved := o.Prize
	moved.Name = "Bigger Gift Card"
	moved.Quantity = 2
	moved.Version = 2
	require.NoError(t, s.Upsert(store.Prizes, moved))

	la := LastAction{
		Winners:     o.Winners,
		PrizeID:     "p1",
		PrizeCount:  2,
		PrizeBefore: o.PrizeBefore,
		HistoryID:   "h1",
	}
	_, err = coord.Reverse(la)
	require.NoError(t, err)

	prize, _, err := s.FindPrize("p1")
	require.NoError(t, err)
	// The newer record survives with only the quantity merged back.
	assert.Equal(t, "Bigger Gift Card", prize.Name)
	assert.Equal(t, 4, prize.Quantity)
	assert.Equal(t, 3, prize.Version)
}

func TestReverseSkipsDeletedPrize(t *testing.T) {
	s, coord := coordStore(t)
	o := sampleOutcome()
	_, err := coord.Commit(o)
	require.NoError(t, err)

	require.NoError(t, s.Remove(store.Prizes, "p1"))

	la := LastAction{
		Winners:     o.Winners,
		PrizeID:     "p1",
		PrizeCount:  2,
		PrizeBefore: o.PrizeBefore,
		HistoryID:   "h1",
	}
	_, err = coord.Reverse(la)
	require.NoError(t, err)

	// Winners and history are still reversed even though the prize is gone.
	winners, err := s.ReadWinners()
	require.NoError(t, err)
	assert.Empty(t, winners)

	_, found, err := s.FindPrize("p1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReverseReinsertsEntriesAtOriginalPositions(t *testing.T) {
	s, coord := coordStore(t)

	// The list after a draw that removed e1 (index 1) and e3 (index 3)
	// from the original [e0 e1 e2 e3 e4].
	require.NoError(t, s.Upsert(store.Lists, record.List{
		ListID: "l1",
		Entries: []record.Entry{
			{ID: "e0", Index: 0}, {ID: "e2", Index: 2}, {ID: "e4", Index: 4},
		},
	}))
	require.NoError(t, s.Upsert(store.Prizes, record.Prize{PrizeID: "p1", Quantity: 3, Version: 1}))

	la := LastAction{
		PrizeID:     "p1",
		PrizeCount:  2,
		PrizeBefore: record.Prize{PrizeID: "p1", Quantity: 5},
		HistoryID:   "h1",
		RemovedEntries: map[string][]RemovedEntry{
			// Deliberately out of order; restore must sort by index.
			"l1": {
				{Entry: record.Entry{ID: "e3", Index: 3}, Index: 3},
				{Entry: record.Entry{ID: "e1", Index: 1}, Index: 1},
			},
		},
	}
	_, err := coord.Reverse(la)
	require.NoError(t, err)

	lists, err := s.ReadLists()
	require.NoError(t, err)
	require.Len(t, lists, 1)
	got := make([]string, len(lists[0].Entries))
	for i, e := range lists[0].Entries {
		got[i] = e.ID
	}
	assert.Equal(t, []string{"e0", "e1", "e2", "e3", "e4"}, got)
}

func TestReverseHistoryWithoutLastAction(t *testing.T) {
	s, coord := coordStore(t)
	o := sampleOutcome()
	_, err := coord.Commit(o)
	require.NoError(t, err)

	// Simulates a process restart: only the persisted history entry is
	// available.
	history, err := s.ReadHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)

	_, err = coord.ReverseHistory(history[0])
	require.NoError(t, err)

	winners, err := s.ReadWinners()
	require.NoError(t, err)
	assert.Empty(t, winners)

	history, err = s.ReadHistory()
	require.NoError(t, err)
	assert.Empty(t, history)

	prize, _, err := s.FindPrize("p1")
	require.NoError(t, err)
	assert.Equal(t, 5, prize.Quantity)
	assert.Equal(t, 2, prize.Version)
}

func TestReverseToleratesDeletedList(t *testing.T) {
	s, coord := coordStore(t)
	require.NoError(t, s.Upsert(store.Prizes, record.Prize{PrizeID: "p1", Quantity: 4, Version: 1}))

	la := LastAction{
		PrizeID:     "p1",
		PrizeCount:  1,
		PrizeBefore: record.Prize{PrizeID: "p1", Quantity: 5},
		HistoryID:   "h1",
		RemovedEntries: map[string][]RemovedEntry{
			"gone": {{Entry: record.Entry{ID: "e1"}, Index: 0}},
		},
	}
	_, err := coord.Reverse(la)
	require.NoError(t, err)

	prize, _, err := s.FindPrize("p1")
	require.NoError(t, err)
	assert.Equal(t, 5, prize.Quantity)
}
