package selector

import (
	"fmt"

	"github.com/stagedraw/stagedraw/internal/record"
)

// Request asks a worker for one selection.
type Request struct {
	Entries    []record.Entry
	NumWinners int
}

// Response is the single reply to a Request: either Result or Err is set,
// never both. Any Err means no selection occurred and the caller must make
// no state changes.
type Response struct {
	Result []record.Entry
	Err    error
}

// Start runs one selection in its own goroutine and returns the channel
// its single Response will arrive on.
//
// The channel is buffered, so the worker never blocks on a caller that has
// stopped listening (a cancelled draw simply abandons the channel). A
// panic inside the selection is converted to an error response; a partial
// or malformed result is never delivered.
func Start(req Request) <-chan Response {
	out := make(chan Response, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- Response{Err: fmt.Errorf("selection panicked: %v", r)}
			}
		}()
		result, err := Select(req.Entries, req.NumWinners)
		if err != nil {
			out <- Response{Err: err}
			return
		}
		out <- Response{Result: result}
	}()
	return out
}
