// Package pool computes the eligible-entry pool for a draw.
//
// The pool is the exact ordered multiset of entries a selection runs over:
// the concatenation of the selected lists, minus entries excluded for
// having already won the prize. No randomness is introduced here; only the
// selector may reorder entries.
package pool

import (
	"golang.org/x/text/unicode/norm"

	"github.com/stagedraw/stagedraw/internal/record"
)

// Builder merges source lists into a draw pool and applies the same-prize
// exclusion filter.
type Builder struct {
	// FallbackField is the entry data field used as the exclusion key when
	// an entry has no ID. Empty means entries without IDs are never
	// excluded.
	FallbackField string
}

// Pool is the result of a build: the eligible entries in list concatenation
// order, plus how many entries the exclusion filter removed. ExcludedCount
// is informational, for operator warnings only.
type Pool struct {
	Entries       []record.Entry
	ExcludedCount int
}

// Build computes the pool for the given list selection.
//
// Selected IDs that match no list are skipped, not an error: a list deleted
// between selection and draw simply contributes nothing. When exclude is
// set, entries whose exclusion key appears among existing winners of the
// same prize name are filtered out.
func (b Builder) Build(lists []record.List, selectedIDs []string, prizeName string, winners []record.Winner, exclude bool) Pool {
	byID := make(map[string]record.List, len(lists))
	for _, l := range lists {
		byID[l.ListID] = l
	}

	var won map[string]bool
	if exclude {
		won = make(map[string]bool)
		for _, w := range winners {
			if w.Prize != prizeName {
				continue
			}
			if key := normKey(w.EntryID); key != "" {
				won[key] = true
			}
		}
	}

	var p Pool
	for _, id := range selectedIDs {
		list, ok := byID[id]
		if !ok {
			continue
		}
		for _, e := range list.Entries {
			entry := e
			if entry.SourceListID == "" {
				entry.SourceListID = list.ListID
				entry.SourceListName = list.Metadata.Name
			}
			if exclude && won[b.exclusionKey(entry)] {
				p.ExcludedCount++
				continue
			}
			p.Entries = append(p.Entries, entry)
		}
	}
	return p
}

// exclusionKey returns the key an entry is matched by against prior
// winners: the entry ID, or the configured fallback data field when the ID
// is absent.
func (b Builder) exclusionKey(e record.Entry) string {
	if e.ID != "" {
		return normKey(e.ID)
	}
	if b.FallbackField == "" {
		return ""
	}
	return normKey(e.Data[b.FallbackField])
}

// normKey NFC-normalizes a key so fallback-field values that render
// identically (composed vs decomposed accents) compare equal.
func normKey(s string) string {
	if s == "" {
		return ""
	}
	return norm.NFC.String(s)
}
