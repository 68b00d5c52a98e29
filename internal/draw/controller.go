package draw

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/stagedraw/stagedraw/internal/pool"
	"github.com/stagedraw/stagedraw/internal/record"
	"github.com/stagedraw/stagedraw/internal/selector"
	"github.com/stagedraw/stagedraw/internal/store"
)

// Phase is the controller's position in the draw lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDelay
	PhaseSelecting
	PhaseRevealing
	PhaseComplete
)

// String returns the phase's external name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDelay:
		return "delay"
	case PhaseSelecting:
		return "selecting"
	case PhaseRevealing:
		return "revealing"
	case PhaseComplete:
		return "complete"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// frameInterval is the granularity of delay progress callbacks.
const frameInterval = 16 * time.Millisecond

// Callbacks observe a draw as it runs. All callbacks are optional and are
// invoked from the draw goroutine, never with the controller's lock held.
type Callbacks struct {
	// OnPhase fires on every phase transition.
	OnPhase func(Phase)
	// OnDelayProgress fires during the delay phase with fractional
	// progress in [0.0, 1.0].
	OnDelayProgress func(float64)
	// OnReveal fires once per revealed winner with the running reveal
	// count and the total.
	OnReveal func(revealed, total int, w record.Winner)
	// OnComplete fires when the draw reaches the complete phase.
	OnComplete func(Outcome)
	// OnError fires when a draw aborts.
	OnError func(error)
}

// Controller drives the draw state machine:
//
//	idle → delay (optional) → selecting → revealing → complete
//
// Cancellation is honored during delay and selecting only; once selecting
// commits, the outcome is durable and a cancel must become an explicit
// Undo. A single goroutine (started by Start) owns all phase transitions;
// the controller itself only routes requests to it.
type Controller struct {
	store    *store.Store
	coord    *Coordinator
	clock    Clock
	ids      record.IDGenerator
	logger   *slog.Logger
	cb       Callbacks
	selectFn func(selector.Request) <-chan selector.Response

	mu       sync.Mutex
	phase    Phase
	cancel   context.CancelFunc
	last     *LastAction
	revealed []record.Winner
	total    int
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock substitutes the wall clock, for deterministic tests.
func WithClock(c Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithIDGenerator substitutes the winner/history ID source.
func WithIDGenerator(g record.IDGenerator) Option {
	return func(ctrl *Controller) { ctrl.ids = g }
}

// WithCallbacks registers draw observers.
func WithCallbacks(cb Callbacks) Option {
	return func(ctrl *Controller) { ctrl.cb = cb }
}

// WithLogger substitutes the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ctrl *Controller) { ctrl.logger = l }
}

// WithSelectFunc substitutes the selection worker launcher, for tests
// that need to interleave store writes with an in-flight selection.
func WithSelectFunc(fn func(selector.Request) <-chan selector.Response) Option {
	return func(ctrl *Controller) { ctrl.selectFn = fn }
}

// NewController creates a controller writing through s.
func NewController(s *store.Store, opts ...Option) *Controller {
	c := &Controller{
		store:    s,
		clock:    SystemClock{},
		ids:      record.UUIDv7Generator{},
		logger:   slog.Default(),
		phase:    PhaseIdle,
		selectFn: selector.Start,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.coord = NewCoordinator(s, c.logger)
	return c
}

// State is a snapshot of the controller for external observers.
type State struct {
	Phase           Phase
	RevealedCount   int
	TotalWinners    int
	RevealedWinners []record.Winner
	CanUndo         bool
}

// State returns a consistent snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	revealed := make([]record.Winner, len(c.revealed))
	copy(revealed, c.revealed)
	return State{
		Phase:           c.phase,
		RevealedCount:   len(revealed),
		TotalWinners:    c.total,
		RevealedWinners: revealed,
		CanUndo:         c.last != nil && (c.phase == PhaseComplete || c.phase == PhaseIdle),
	}
}

// Start validates cfg against the current store state and, if the draw can
// run, launches it. Validation failures happen before any mutation: the
// phase stays idle and nothing is persisted.
//
// Starting while a draw is running is rejected with ErrCodeDrawInProgress.
// Starting from complete is permitted and discards the previous
// LastAction irrecoverably.
func (c *Controller) Start(ctx context.Context, cfg Config) error {
	cfg = withDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case PhaseIdle, PhaseComplete:
	default:
		return &Error{Code: ErrCodeDrawInProgress,
			Message: fmt.Sprintf("a draw is already running (phase %s)", c.phase)}
	}

	// Preflight eligibility check. Data may still change before commit;
	// the selecting phase re-validates.
	if _, _, err := c.buildPool(cfg); err != nil {
		return err
	}

	// Point of no return for the previous draw's undo window.
	c.last = nil
	c.revealed = nil
	c.total = 0

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	first := PhaseSelecting
	if cfg.Delay > 0 {
		first = PhaseDelay
	}
	c.phase = first

	go c.run(runCtx, cfg, first)
	return nil
}

// Cancel aborts a draw during the delay or selecting phase with no
// persisted side effects. During revealing the outcome is already
// committed, so cancel is refused; use Undo instead.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case PhaseDelay, PhaseSelecting:
		c.cancel()
		return nil
	case PhaseRevealing:
		return &Error{Code: ErrCodeCancelDuringReveal,
			Message: "draw already committed, undo it instead"}
	default:
		return nil
	}
}

// Undo reverses the most recent committed draw, while its LastAction still
// exists. The store returns to the pre-draw state for every field the draw
// touched.
func (c *Controller) Undo() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case PhaseDelay, PhaseSelecting, PhaseRevealing:
		return &Error{Code: ErrCodeDrawInProgress,
			Message: fmt.Sprintf("cannot undo while a draw is running (phase %s)", c.phase)}
	}
	if c.last == nil {
		return &Error{Code: ErrCodeNothingToUndo, Message: "no draw to undo"}
	}

	if _, err := c.coord.Reverse(*c.last); err != nil {
		// The last action survives a failed reverse so the operator can
		// retry after reconciling.
		return err
	}

	c.last = nil
	c.revealed = nil
	c.total = 0
	c.phase = PhaseIdle
	return nil
}

// run owns the draw from its first phase to complete or abort. It is the
// only writer of phase transitions after Start.
func (c *Controller) run(ctx context.Context, cfg Config, first Phase) {
	c.notifyPhase(first)

	if cfg.Delay > 0 {
		if !c.runDelay(ctx, cfg.Delay) {
			c.toIdle()
			return
		}
		c.setPhase(PhaseSelecting)
	}

	outcome, err := c.runSelecting(ctx, cfg)
	if err != nil {
		if c.cb.OnError != nil {
			c.cb.OnError(err)
		}
		c.toIdle()
		return
	}
	if outcome == nil {
		// Cancelled while awaiting the worker; nothing was persisted.
		c.toIdle()
		return
	}

	c.setPhase(PhaseRevealing)
	c.runReveal(cfg, *outcome)

	c.setPhase(PhaseComplete)
	if c.cb.OnComplete != nil {
		c.cb.OnComplete(*outcome)
	}
}

// runDelay runs the cosmetic pre-selection pause. Returns false if the
// draw was cancelled. The delay holds no data; cancelling it has no
// persistence side effects.
func (c *Controller) runDelay(ctx context.Context, total time.Duration) bool {
	start := c.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-c.clock.After(frameInterval):
		}

		elapsed := c.clock.Now().Sub(start)
		progress := float64(elapsed) / float64(total)
		if progress > 1 {
			progress = 1
		}
		if c.cb.OnDelayProgress != nil {
			c.cb.OnDelayProgress(progress)
		}
		if elapsed >= total {
			return true
		}
	}
}

// runSelecting re-validates eligibility against current data, runs the
// selection worker, and commits the outcome. A nil, nil return means the
// draw was cancelled before commit.
func (c *Controller) runSelecting(ctx context.Context, cfg Config) (*Outcome, error) {
	eligible, lists, err := c.buildPool(cfg)
	if err != nil {
		return nil, err
	}
	prize, err := c.currentPrize(cfg)
	if err != nil {
		return nil, err
	}

	// Exactly one worker request is outstanding per draw; the worker is
	// disposed after its single response.
	respCh := c.selectFn(selector.Request{Entries: eligible, NumWinners: cfg.WinnersCount})

	var resp selector.Response
	select {
	case <-ctx.Done():
		return nil, nil
	case resp = <-respCh:
	}
	if resp.Err != nil {
		return nil, &Error{Code: ErrCodeSelectionFailed,
			Message: "selection worker failed, no draw occurred", Err: resp.Err}
	}

	// Re-validate immediately before commit: a concurrent writer may have
	// spent the prize while the shuffle ran.
	current, err := c.currentPrize(cfg)
	if err != nil {
		return nil, err
	}
	if current.Version != prize.Version {
		return nil, newPrizeConflict(cfg.PrizeID)
	}

	outcome := c.buildOutcome(cfg, current, resp.Result, lists)
	result, err := c.coord.Commit(outcome)
	if err != nil {
		if result.Partial() {
			c.logger.Error("draw commit left collections inconsistent, manual reconciliation required",
				"historyId", outcome.History.HistoryID, "error", err)
		}
		return nil, err
	}

	c.mu.Lock()
	la := buildLastAction(outcome, cfg)
	c.last = &la
	c.total = len(outcome.Winners)
	c.mu.Unlock()

	return &outcome, nil
}

// runReveal walks the committed winners per the configured reveal mode.
// The outcome is already durable: reveal timing only controls what is
// displayed, and reveal counts increase monotonically without skipping.
func (c *Controller) runReveal(cfg Config, o Outcome) {
	total := len(o.Winners)
	for i, w := range o.Winners {
		if cfg.RevealMode == RevealSequential && i > 0 {
			// Cancellation is not honored here; the draw is committed and
			// the count must still reach the total.
			<-c.clock.After(cfg.RevealInterval)
		}
		c.mu.Lock()
		c.revealed = append(c.revealed, w)
		revealed := len(c.revealed)
		c.mu.Unlock()
		if c.cb.OnReveal != nil {
			c.cb.OnReveal(revealed, total, w)
		}
	}
}

// buildPool reads the source collections and computes the eligible pool,
// rejecting draws the data cannot satisfy.
func (c *Controller) buildPool(cfg Config) ([]record.Entry, []record.List, error) {
	lists, err := c.store.ReadLists()
	if err != nil {
		return nil, nil, err
	}
	winners, err := c.store.ReadWinners()
	if err != nil {
		return nil, nil, err
	}
	prize, err := c.currentPrize(cfg)
	if err != nil {
		return nil, nil, err
	}

	p := pool.Builder{FallbackField: cfg.FallbackField}.
		Build(lists, cfg.ListIDs, prize.Name, winners, cfg.ExcludePriorWinners)
	if len(p.Entries) < cfg.WinnersCount {
		return nil, nil, newInsufficientEntries(len(p.Entries), cfg.WinnersCount)
	}
	return p.Entries, lists, nil
}

// currentPrize reads the prize and checks its quantity can cover the draw.
func (c *Controller) currentPrize(cfg Config) (record.Prize, error) {
	prize, found, err := c.store.FindPrize(cfg.PrizeID)
	if err != nil {
		return record.Prize{}, err
	}
	if !found {
		return record.Prize{}, &Error{Code: ErrCodePrizeNotFound,
			Message: "prize does not exist", PrizeID: cfg.PrizeID}
	}
	if prize.Quantity < cfg.WinnersCount {
		return record.Prize{}, newInsufficientQuantity(cfg.PrizeID, prize.Quantity, cfg.WinnersCount)
	}
	return prize, nil
}

// buildOutcome assembles the records one commit persists.
func (c *Controller) buildOutcome(cfg Config, prize record.Prize, selected []record.Entry, lists []record.List) Outcome {
	now := c.clock.Now().UnixMilli()
	historyID := c.ids.Generate()

	winners := make([]record.Winner, len(selected))
	winnerIDs := make([]string, len(selected))
	for i, e := range selected {
		w := record.Winner{
			WinnerID:    c.ids.Generate(),
			EntryID:     entryKey(e, cfg.FallbackField),
			DisplayName: displayName(e, cfg.DisplayField),
			Prize:       prize.Name,
			Timestamp:   now,
			ListID:      e.SourceListID,
			ListName:    e.SourceListName,
			HistoryID:   historyID,
			Data:        e.Data,
		}
		winners[i] = w
		winnerIDs[i] = w.WinnerID
	}

	before := prize
	prize.Quantity -= len(winners)
	prize.Version++

	outcome := Outcome{
		Winners:     winners,
		Prize:       prize,
		PrizeBefore: before,
		History: record.HistoryEntry{
			HistoryID:    historyID,
			Timestamp:    now,
			ListIDs:      cfg.ListIDs,
			ListName:     joinedListNames(lists, cfg.ListIDs),
			PrizeID:      prize.PrizeID,
			PrizeName:    prize.Name,
			WinnersCount: len(winners),
			WinnerIDs:    winnerIDs,
		},
	}

	if cfg.RemoveWinnersFromLists {
		outcome.UpdatedLists, outcome.RemovedEntries = trimWinners(lists, winners, cfg.FallbackField)
	}
	return outcome
}

// trimWinners removes drawn entries from their source lists, recording
// original positions for undo. Entries are matched by the same key the
// winner records as EntryID.
func trimWinners(lists []record.List, winners []record.Winner, fallbackField string) ([]record.List, map[string][]RemovedEntry) {
	drawn := make(map[string]map[string]bool) // listID -> entry key
	for _, w := range winners {
		if w.ListID == "" || w.EntryID == "" {
			continue
		}
		if drawn[w.ListID] == nil {
			drawn[w.ListID] = make(map[string]bool)
		}
		drawn[w.ListID][w.EntryID] = true
	}

	var updated []record.List
	removed := make(map[string][]RemovedEntry)
	for _, list := range lists {
		ids := drawn[list.ListID]
		if len(ids) == 0 {
			continue
		}
		kept := make([]record.Entry, 0, len(list.Entries))
		for i, e := range list.Entries {
			if ids[entryKey(e, fallbackField)] {
				removed[list.ListID] = append(removed[list.ListID], RemovedEntry{Entry: e, Index: i})
				continue
			}
			kept = append(kept, e)
		}
		list.Entries = kept
		updated = append(updated, list)
	}
	if len(removed) == 0 {
		removed = nil
	}
	return updated, removed
}

func buildLastAction(o Outcome, cfg Config) LastAction {
	return LastAction{
		Winners:        o.Winners,
		PrizeID:        o.Prize.PrizeID,
		PrizeCount:     len(o.Winners),
		PrizeBefore:    o.PrizeBefore,
		HistoryID:      o.History.HistoryID,
		SourceListIDs:  cfg.ListIDs,
		RemovedEntries: o.RemovedEntries,
	}
}

// entryKey is the identity recorded on a winner for exclusion and list
// trimming: the entry ID, or the fallback data field for entries without
// one. Empty when neither exists; such winners can never be matched back
// to an entry.
func entryKey(e record.Entry, fallbackField string) string {
	if e.ID != "" {
		return e.ID
	}
	if fallbackField == "" {
		return ""
	}
	return e.Data[fallbackField]
}

func displayName(e record.Entry, field string) string {
	if field != "" {
		if name := e.Data[field]; name != "" {
			return name
		}
	}
	return e.ID
}

func joinedListNames(lists []record.List, selectedIDs []string) string {
	byID := make(map[string]string, len(lists))
	for _, l := range lists {
		byID[l.ListID] = l.Metadata.Name
	}
	var names []string
	for _, id := range selectedIDs {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

func withDefaults(cfg Config) Config {
	if cfg.RevealMode == "" {
		cfg.RevealMode = RevealAllAtOnce
	}
	if cfg.DisplayField == "" {
		cfg.DisplayField = "name"
	}
	return cfg
}

// setPhase transitions and notifies. notifyPhase only notifies (used when
// Start already set the phase under its own lock).
func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.notifyPhase(p)
}

func (c *Controller) notifyPhase(p Phase) {
	if c.cb.OnPhase != nil {
		c.cb.OnPhase(p)
	}
}

func (c *Controller) toIdle() {
	c.mu.Lock()
	c.phase = PhaseIdle
	c.mu.Unlock()
	c.notifyPhase(PhaseIdle)
}
