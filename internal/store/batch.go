package store

import "fmt"

// Op is one operation inside a batch write: either an upsert of Record or,
// when Delete is set, removal of the record whose key field equals Key.
type Op struct {
	Collection Collection
	Record     Record
	Delete     bool
	Key        string
}

// UpsertOp builds an upsert operation.
func UpsertOp(c Collection, r Record) Op {
	return Op{Collection: c, Record: r}
}

// DeleteOp builds a delete operation.
func DeleteOp(c Collection, key string) Op {
	return Op{Collection: c, Delete: true, Key: key}
}

// BatchResult names the per-collection outcome of a batch write.
type BatchResult struct {
	Written []Collection
	Failed  []FailedCollection
}

// FailedCollection pairs a collection with the error that stopped its write.
type FailedCollection struct {
	Collection Collection
	Err        error
}

// Partial reports whether some collections were written and some failed.
func (r BatchResult) Partial() bool {
	return len(r.Written) > 0 && len(r.Failed) > 0
}

// BatchWrite applies operations spanning multiple collections.
//
// Each affected collection is loaded once, all of its operations are applied
// in memory, and the collection is written with the store's atomic replace.
// Collections are written in the fixed All() order so failures are
// reproducible.
//
// The files are independent resources, so there is no cross-collection
// rollback: if one write fails the collections already written stay written,
// and the returned BatchResult (wrapped in a BatchError) names exactly which
// collections succeeded. The caller owns reconciliation.
func (s *Store) BatchWrite(ops []Op) (BatchResult, error) {
	byCollection := make(map[Collection][]Op)
	for i, op := range ops {
		if op.Delete {
			if op.Key == "" {
				return BatchResult{}, fmt.Errorf("batch op %d: delete without key", i)
			}
		} else {
			if op.Record == nil {
				return BatchResult{}, fmt.Errorf("batch op %d: upsert without record", i)
			}
			if !op.Collection.accepts(op.Record) {
				return BatchResult{}, fmt.Errorf("batch op %d: record %T does not belong to %s",
					i, op.Record, op.Collection)
			}
		}
		byCollection[op.Collection] = append(byCollection[op.Collection], op)
	}

	var result BatchResult
	var events []Event

	s.mu.Lock()
	for _, c := range All() {
		colOps, affected := byCollection[c]
		if !affected {
			continue
		}
		if err := s.applyLocked(c, colOps); err != nil {
			result.Failed = append(result.Failed, FailedCollection{Collection: c, Err: err})
			continue
		}
		result.Written = append(result.Written, c)
		for _, op := range colOps {
			if op.Delete {
				events = append(events, Event{Collection: c, Kind: OpDelete, Key: op.Key})
			} else {
				events = append(events, Event{Collection: c, Kind: OpUpsert, Key: op.Record.StoreKey()})
			}
		}
	}
	s.mu.Unlock()

	for _, e := range events {
		s.bus.publish(e)
	}

	if len(result.Failed) > 0 {
		if result.Partial() {
			s.logger.Error("batch write left collections inconsistent",
				"written", collectionNames(result.Written),
				"failed", failedNames(result.Failed))
		}
		return result, &BatchError{Result: result}
	}
	return result, nil
}

// applyLocked loads one collection, applies its operations in memory, and
// writes it back once.
func (s *Store) applyLocked(c Collection, ops []Op) error {
	records, err := s.readLocked(c)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if op.Delete {
			kept := make([]Record, 0, len(records))
			for _, r := range records {
				if r.StoreKey() != op.Key {
					kept = append(kept, r)
				}
			}
			records = kept
			continue
		}
		records = upsertInto(records, op.Record)
	}
	return s.writeLocked(c, records)
}

func collectionNames(cs []Collection) []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.String()
	}
	return names
}

func failedNames(fs []FailedCollection) []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Collection.String()
	}
	return names
}
