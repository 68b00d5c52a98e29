// Package store provides file-backed durable storage for the draw
// collections: lists, winners, prizes, history, and settings.
//
// Each collection is a single JSON array file, rewritten wholesale on every
// write. There is no append log and no incremental diff format; the unit of
// durability is the whole collection.
//
// # Write Guarantees
//
// A write marshals the full array, writes it to a temporary file, fsyncs,
// and renames it over the final path. Readers therefore observe either the
// complete old array or the complete new one, never a mix. If the platform
// cannot perform the rename, the store falls back to a direct overwrite and
// logs the degraded guarantee.
//
// BatchWrite spans collections but the files stay independent resources:
// there is no cross-collection rollback. A failed batch reports exactly
// which collections were written so the caller can reconcile.
//
// # Corruption
//
// A collection file that exists but fails to decode is a
// CorruptCollectionError, never silently treated as empty. The one
// exception is settings, which are reconstructible and degrade to empty
// with a logged warning.
//
// # Collections Are a Closed Set
//
// Collection is a closed tagged type carrying the key field and record
// type per variant. External string names resolve through Parse; names
// outside the set are unrepresentable inside the store.
package store
