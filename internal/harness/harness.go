package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/stagedraw/stagedraw/internal/draw"
	"github.com/stagedraw/stagedraw/internal/record"
	"github.com/stagedraw/stagedraw/internal/selector"
	"github.com/stagedraw/stagedraw/internal/store"
	"github.com/stagedraw/stagedraw/internal/testutil"
)

// harnessEpoch is the fixed clock start so committed timestamps are stable.
var harnessEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type runner struct {
	store  *store.Store
	ctrl   *draw.Controller
	result *Result
	done   chan error
	idle   chan struct{}

	lastHistoryID string
}

// Run executes a scenario in a fresh temporary store and returns the
// result. Steps run strictly in order; each draw completes before the
// next step starts.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "stagedraw-harness-*")
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	defer os.RemoveAll(dir)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	if err := seed(st, scenario.Seed); err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}

	r := newRunner(st, logger, scenario.IDs, takeFirst)

	for i, step := range scenario.Steps {
		if err := r.runStep(step); err != nil {
			return nil, fmt.Errorf("harness: step %d: %w", i, err)
		}
	}

	state, err := snapshotState(st)
	if err != nil {
		return nil, fmt.Errorf("harness: %w", err)
	}
	r.result.State = state
	return r.result, nil
}

func newRunner(st *store.Store, logger *slog.Logger, ids []string,
	selectFn func(selector.Request) <-chan selector.Response) *runner {
	r := &runner{
		store:  st,
		result: &Result{Pass: true, Trace: []TraceEvent{}},
		done:   make(chan error, 1),
		idle:   make(chan struct{}, 1),
	}
	r.ctrl = draw.NewController(st,
		draw.WithLogger(logger),
		draw.WithClock(testutil.NewFakeClock(harnessEpoch)),
		draw.WithIDGenerator(record.NewFixedGenerator(ids...)),
		draw.WithSelectFunc(selectFn),
		draw.WithCallbacks(draw.Callbacks{
			OnPhase: func(p draw.Phase) {
				r.trace(TraceEvent{Type: "phase", Phase: p.String()})
				if p == draw.PhaseIdle {
					r.idle <- struct{}{}
				}
			},
			OnReveal: func(revealed, total int, w record.Winner) {
				r.trace(TraceEvent{Type: "reveal", Winner: w.DisplayName, WinnerID: w.WinnerID})
			},
			OnComplete: func(o draw.Outcome) {
				r.lastHistoryID = o.History.HistoryID
				r.trace(TraceEvent{Type: "complete", HistoryID: o.History.HistoryID})
				r.done <- nil
			},
			OnError: func(err error) {
				r.done <- err
			},
		}))
	return r
}

// takeFirst is the deterministic selection used by scenarios: the first N
// eligible entries in pool order.
func takeFirst(req selector.Request) <-chan selector.Response {
	n := req.NumWinners
	if n > len(req.Entries) {
		n = len(req.Entries)
	}
	picked := make([]record.Entry, n)
	copy(picked, req.Entries[:n])

	ch := make(chan selector.Response, 1)
	ch <- selector.Response{Result: picked}
	return ch
}

// trace appends an event. Events originate either from the step loop or
// from the draw goroutine, and the loop never proceeds until the goroutine
// has emitted its final event for the step, so appends never overlap.
func (r *runner) trace(e TraceEvent) {
	r.result.Trace = append(r.result.Trace, e)
}

func (r *runner) runStep(step Step) error {
	var err error
	switch {
	case step.Draw != nil:
		err = r.runDraw(*step.Draw)
	case step.Undo:
		err = r.ctrl.Undo()
		if err == nil {
			r.trace(TraceEvent{Type: "undo", HistoryID: r.lastHistoryID})
		}
	}

	if err != nil {
		code := string(draw.CodeOf(err))
		if code == "" {
			return err
		}
		r.trace(TraceEvent{Type: "error", Code: code})
		if step.Expect == "" {
			r.result.AddError(fmt.Sprintf("unexpected error %s: %v", code, err))
		} else if step.Expect != code {
			r.result.AddError(fmt.Sprintf("expected error %s, got %s", step.Expect, code))
		}
		return nil
	}

	if step.Expect != "" {
		r.result.AddError(fmt.Sprintf("expected error %s, step succeeded", step.Expect))
	}
	return nil
}

func (r *runner) runDraw(d DrawStep) error {
	cfg := draw.Config{
		ListIDs:                d.Lists,
		PrizeID:                d.Prize,
		WinnersCount:           d.Count,
		RevealMode:             draw.RevealAllAtOnce,
		ExcludePriorWinners:    d.ExcludePrior,
		RemoveWinnersFromLists: d.RemoveWinners,
	}
	if err := r.ctrl.Start(context.Background(), cfg); err != nil {
		return err
	}
	err := <-r.done
	if err != nil {
		// The draw goroutine still transitions to idle after reporting the
		// error; wait for that event so its trace append lands before the
		// next step touches the trace.
		select {
		case <-r.idle:
		case <-time.After(2 * time.Second):
			return fmt.Errorf("draw never returned to idle after error: %w", err)
		}
	}
	return err
}

func seed(st *store.Store, s Seed) error {
	for _, l := range s.Lists {
		list := record.List{
			ListID:   l.ID,
			Metadata: record.ListMetadata{Name: l.Name, Timestamp: harnessEpoch.UnixMilli()},
		}
		for i, e := range l.Entries {
			list.Entries = append(list.Entries, record.Entry{
				ID:    e.ID,
				Index: i,
				Data:  map[string]string{"name": e.Name},
			})
		}
		if err := st.Upsert(store.Lists, list); err != nil {
			return err
		}
	}
	for _, p := range s.Prizes {
		prize := record.Prize{PrizeID: p.ID, Name: p.Name, Quantity: p.Quantity}
		if err := st.Upsert(store.Prizes, prize); err != nil {
			return err
		}
	}
	return nil
}

func snapshotState(st *store.Store) (State, error) {
	state := State{Lists: map[string]int{}, Prizes: map[string]int{}}

	lists, err := st.ReadLists()
	if err != nil {
		return State{}, err
	}
	for _, l := range lists {
		state.Lists[l.ListID] = len(l.Entries)
	}

	prizes, err := st.ReadPrizes()
	if err != nil {
		return State{}, err
	}
	for _, p := range prizes {
		state.Prizes[p.PrizeID] = p.Quantity
	}

	winners, err := st.ReadWinners()
	if err != nil {
		return State{}, err
	}
	state.Winners = len(winners)

	history, err := st.ReadHistory()
	if err != nil {
		return State{}, err
	}
	state.History = len(history)
	return state, nil
}
