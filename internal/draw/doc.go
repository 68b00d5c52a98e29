// Package draw implements the selection engine: the phase state machine
// that turns a configured draw into committed, revealed winners.
//
// # Lifecycle
//
//	idle → delay (optional) → selecting → revealing → complete
//
// A single goroutine owns each draw from start to finish. The delay phase
// is purely cosmetic and cancellable. Selecting re-validates eligibility
// against current data, runs the shuffle in a disposable worker goroutine,
// and commits winners, the prize decrement, and a history entry in one
// batch — the point of no return. Revealing only paces what is displayed;
// it never revisits the pool or the store.
//
// # Undo
//
// Every commit leaves a fully-typed LastAction in memory. Undo applies its
// structural inverse through one batch write: winners deleted, prize
// quantity restored, history entry deleted, removed entries re-inserted.
// Starting a new draw discards the previous LastAction irrecoverably.
//
// # Concurrent Draws
//
// Prize.Quantity is the one piece of shared mutable state with a real
// race. The store has no cross-process transaction, so the prize carries a
// version token: the controller captures it before the shuffle and aborts
// the commit with ErrCodePrizeConflict if another writer moved it. The
// expected deployment is still a single operator driving one draw at a
// time.
package draw
