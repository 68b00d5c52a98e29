package draw

import (
	"errors"
	"fmt"
)

// Error represents a failure detected by the draw engine.
//
// Validation errors are detected before any mutation: the phase returns to
// idle and nothing is persisted. Worker errors get identical handling.
// Persistence errors carry the store's per-collection report.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// PrizeID identifies the affected prize, when one is involved.
	PrizeID string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes draw errors.
type ErrorCode string

const (
	// ErrCodeInsufficientEntries indicates the eligible pool is smaller
	// than the requested winner count.
	ErrCodeInsufficientEntries ErrorCode = "INSUFFICIENT_ENTRIES"

	// ErrCodeInsufficientPrizeQuantity indicates the prize's remaining
	// quantity cannot cover the requested winner count.
	ErrCodeInsufficientPrizeQuantity ErrorCode = "INSUFFICIENT_PRIZE_QUANTITY"

	// ErrCodeDrawInProgress indicates a start request arrived while a draw
	// was already running.
	ErrCodeDrawInProgress ErrorCode = "DRAW_IN_PROGRESS"

	// ErrCodePrizeNotFound indicates the configured prize does not exist.
	ErrCodePrizeNotFound ErrorCode = "PRIZE_NOT_FOUND"

	// ErrCodePrizeConflict indicates the prize changed underneath the draw
	// between validation and commit.
	ErrCodePrizeConflict ErrorCode = "PRIZE_CONFLICT"

	// ErrCodeCancelDuringReveal indicates a cancel request arrived after
	// the draw outcome was already committed.
	ErrCodeCancelDuringReveal ErrorCode = "CANCEL_DURING_REVEAL"

	// ErrCodeNothingToUndo indicates no last action exists to reverse.
	ErrCodeNothingToUndo ErrorCode = "NOTHING_TO_UNDO"

	// ErrCodeSelectionFailed indicates the selection worker reported an
	// error; no draw occurred.
	ErrCodeSelectionFailed ErrorCode = "SELECTION_FAILED"

	// ErrCodeInvalidConfig indicates a malformed draw configuration.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.PrizeID != "" {
		return fmt.Sprintf("%s: %s (prize=%s)", e.Code, e.Message, e.PrizeID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a draw
// Error. Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsValidation returns true for errors detected before any mutation, where
// the operator can simply adjust and retry.
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case ErrCodeInsufficientEntries,
		ErrCodeInsufficientPrizeQuantity,
		ErrCodeDrawInProgress,
		ErrCodePrizeNotFound,
		ErrCodeInvalidConfig:
		return true
	}
	return false
}

func newInsufficientEntries(poolSize, want int) *Error {
	return &Error{
		Code:    ErrCodeInsufficientEntries,
		Message: fmt.Sprintf("eligible pool has %d entries, need %d", poolSize, want),
	}
}

func newInsufficientQuantity(prizeID string, have, want int) *Error {
	return &Error{
		Code:    ErrCodeInsufficientPrizeQuantity,
		Message: fmt.Sprintf("prize quantity %d cannot cover %d winners", have, want),
		PrizeID: prizeID,
	}
}

func newPrizeConflict(prizeID string) *Error {
	return &Error{
		Code:    ErrCodePrizeConflict,
		Message: "prize was modified by another writer during the draw",
		PrizeID: prizeID,
	}
}
