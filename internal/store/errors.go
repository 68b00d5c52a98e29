package store

import (
	"errors"
	"fmt"
	"strings"
)

// CorruptCollectionError indicates a collection file exists but cannot be
// decoded. For every collection except settings this is fatal for the
// operation: fabricating an empty collection would silently present as
// "zero winners/prizes exist".
type CorruptCollectionError struct {
	Collection Collection
	Path       string
	Err        error
}

func (e *CorruptCollectionError) Error() string {
	return fmt.Sprintf("collection %s is corrupt (%s): %v", e.Collection, e.Path, e.Err)
}

func (e *CorruptCollectionError) Unwrap() error {
	return e.Err
}

// IsCorrupt returns true if the error is a CorruptCollectionError.
// Uses errors.As to handle wrapped errors.
func IsCorrupt(err error) bool {
	var ce *CorruptCollectionError
	return errors.As(err, &ce)
}

// BatchError reports the per-collection outcome of a batch write that did
// not fully succeed. Collections are independent files, so collections
// written before the failure stay written; callers must surface exactly
// which collections are updated and which are not.
type BatchError struct {
	Result BatchResult
}

func (e *BatchError) Error() string {
	var failed []string
	for _, f := range e.Result.Failed {
		failed = append(failed, fmt.Sprintf("%s: %v", f.Collection, f.Err))
	}
	var written []string
	for _, c := range e.Result.Written {
		written = append(written, c.String())
	}
	return fmt.Sprintf("batch write partially failed: failed [%s], already written [%s]",
		strings.Join(failed, "; "), strings.Join(written, ", "))
}

// AsBatchError extracts a BatchError from err, if present.
func AsBatchError(err error) (*BatchError, bool) {
	var be *BatchError
	ok := errors.As(err, &be)
	return be, ok
}
