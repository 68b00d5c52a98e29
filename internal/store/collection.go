package store

import (
	"encoding/json"
	"fmt"

	"github.com/stagedraw/stagedraw/internal/record"
)

// Collection identifies one of the known durable collections.
//
// The set is closed: every variant carries its key field, backing filename,
// and record type, so an "unknown collection" cannot reach the store at all.
// String names from external callers resolve through Parse.
type Collection int

const (
	Lists Collection = iota + 1
	Winners
	Prizes
	History
	Settings
)

// All returns every known collection in a fixed order.
func All() []Collection {
	return []Collection{Lists, Winners, Prizes, History, Settings}
}

// String returns the collection's external name.
func (c Collection) String() string {
	switch c {
	case Lists:
		return "lists"
	case Winners:
		return "winners"
	case Prizes:
		return "prizes"
	case History:
		return "history"
	case Settings:
		return "settings"
	default:
		return fmt.Sprintf("collection(%d)", int(c))
	}
}

// KeyField returns the JSON field records of this collection are keyed by.
func (c Collection) KeyField() string {
	switch c {
	case Lists:
		return "listId"
	case Winners:
		return "winnerId"
	case Prizes:
		return "prizeId"
	case History:
		return "historyId"
	case Settings:
		return "key"
	default:
		return ""
	}
}

// Filename returns the backing file name for the collection.
func (c Collection) Filename() string {
	return c.String() + ".json"
}

// Parse resolves an external string name to a Collection.
// Returns false for any name outside the closed set.
func Parse(name string) (Collection, bool) {
	for _, c := range All() {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

// Record is one entry in a collection. Implemented by the concrete types in
// internal/record; StoreKey returns the value of the collection's key field.
type Record interface {
	StoreKey() string
}

// DecodeRecords unmarshals a JSON array into this collection's typed
// records. The per-collection switch is the single place record types are
// bound to collections; external payloads go through the same binding as
// the collection files themselves.
func (c Collection) DecodeRecords(data []byte) ([]Record, error) {
	switch c {
	case Lists:
		return decodeInto[record.List](data)
	case Winners:
		return decodeInto[record.Winner](data)
	case Prizes:
		return decodeInto[record.Prize](data)
	case History:
		return decodeInto[record.HistoryEntry](data)
	case Settings:
		return decodeInto[record.Setting](data)
	default:
		return nil, fmt.Errorf("decode: unhandled collection %s", c)
	}
}

// accepts reports whether r is the record type this collection stores.
func (c Collection) accepts(r Record) bool {
	switch c {
	case Lists:
		_, ok := r.(record.List)
		return ok
	case Winners:
		_, ok := r.(record.Winner)
		return ok
	case Prizes:
		_, ok := r.(record.Prize)
		return ok
	case History:
		_, ok := r.(record.HistoryEntry)
		return ok
	case Settings:
		_, ok := r.(record.Setting)
		return ok
	default:
		return false
	}
}

func decodeInto[T Record](data []byte) ([]Record, error) {
	var typed []T
	if err := json.Unmarshal(data, &typed); err != nil {
		return nil, err
	}
	records := make([]Record, len(typed))
	for i, t := range typed {
		records[i] = t
	}
	return records, nil
}
