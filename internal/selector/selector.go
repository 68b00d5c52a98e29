// Package selector performs the unbiased random selection for a draw.
//
// Selection runs in a disposable worker goroutine so a pool of tens of
// thousands of entries cannot stall the phase timers on the controlling
// goroutine. One request gets exactly one response, then the worker is
// gone; reuse is impossible, so no ordering issues arise.
package selector

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/stagedraw/stagedraw/internal/record"
)

// Select returns numWinners distinct entries chosen uniformly at random
// from pool, in an order unrelated to the original pool order.
//
// The pool is shuffled twice with a crypto/rand Fisher-Yates before the
// head is taken; a single flawed pass would still leave the composition
// unbiased. The selected head is then shuffled once more so the reveal
// order reveals nothing about where non-winners sat in the pool.
//
// Count contract: numWinners >= len(pool) returns the whole pool shuffled;
// numWinners <= 0 returns an empty slice. Neither is an error.
func Select(pool []record.Entry, numWinners int) ([]record.Entry, error) {
	if numWinners <= 0 {
		return []record.Entry{}, nil
	}

	shuffled := make([]record.Entry, len(pool))
	copy(shuffled, pool)

	if err := shuffle(shuffled); err != nil {
		return nil, err
	}
	if err := shuffle(shuffled); err != nil {
		return nil, err
	}

	if numWinners > len(shuffled) {
		numWinners = len(shuffled)
	}
	selected := shuffled[:numWinners]

	// Fix the display order independently of the selection order.
	if err := shuffle(selected); err != nil {
		return nil, err
	}
	return selected, nil
}

// shuffle is an in-place Fisher-Yates driven by crypto/rand. No seed
// exists to predict or replay.
func shuffle(entries []record.Entry) error {
	for i := len(entries) - 1; i >= 1; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return fmt.Errorf("draw random index: %w", err)
		}
		entries[i], entries[j] = entries[j], entries[i]
	}
	return nil
}

// randomIndex returns a uniform random int in [0, n).
func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
