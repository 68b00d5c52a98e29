package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/stagedraw/stagedraw/internal/record"
)

// Store provides durable storage for the draw collections.
//
// Each collection is one JSON array file under the data directory,
// rewritten wholesale on every write. Writes go to a temporary file first
// and are renamed into place, so readers only ever observe a complete old
// or complete new array.
//
// Thread-safety: a single mutex serializes all read-modify-write cycles.
// Operations are short, bounded, file-scoped; no long-lived locks.
type Store struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
	bus    *eventBus
}

// Open creates or opens a store rooted at dir, creating the directory if
// needed. Collection files are created lazily on first write.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir, logger: logger, bus: newEventBus()}, nil
}

// Dir returns the data directory the store is rooted at.
func (s *Store) Dir() string {
	return s.dir
}

// Read returns all records of a collection in file order.
//
// A missing file reads as an empty collection. A decode failure is a
// CorruptCollectionError for every collection except settings; a corrupt
// settings file is logged and read as empty, since settings are
// reconstructible and must not block a draw.
func (s *Store) Read(c Collection) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(c)
}

func (s *Store) readLocked(c Collection) ([]Record, error) {
	path := filepath.Join(s.dir, c.Filename())
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c, err)
	}

	records, err := c.DecodeRecords(data)
	if err != nil {
		if c == Settings {
			s.logger.Warn("settings collection is corrupt, treating as empty",
				"path", path, "error", err)
			return []Record{}, nil
		}
		return nil, &CorruptCollectionError{Collection: c, Path: path, Err: err}
	}
	return records, nil
}

// Write replaces the collection's contents with records, all-or-nothing.
//
// The array is marshalled to a temporary file, fsynced, and renamed over
// the final path. If the rename fails the store falls back to a direct
// overwrite and logs the degraded atomicity guarantee.
func (s *Store) Write(c Collection, records []Record) error {
	s.mu.Lock()
	err := s.writeLocked(c, records)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.bus.publish(Event{Collection: c, Kind: OpReplace})
	return nil
}

func (s *Store) writeLocked(c Collection, records []Record) error {
	for _, r := range records {
		if !c.accepts(r) {
			return fmt.Errorf("write %s: record %T does not belong to this collection", c, r)
		}
	}

	data, err := marshalRecords(records)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c, err)
	}

	path := filepath.Join(s.dir, c.Filename())
	tmp := path + ".tmp"

	if err := writeFileSync(tmp, data); err != nil {
		return fmt.Errorf("write %s: %w", c, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		// Atomic replace is unavailable; overwrite in place so the data is
		// not lost, but the all-or-nothing guarantee no longer holds.
		s.logger.Error("atomic rename failed, falling back to direct overwrite",
			"collection", c.String(), "error", err)
		os.Remove(tmp)
		if werr := os.WriteFile(path, data, 0o644); werr != nil {
			return fmt.Errorf("write %s (degraded): %w", c, werr)
		}
	}
	return nil
}

// marshalRecords renders the collection file layout: an indented JSON
// array, [] when empty.
func marshalRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.MarshalIndent(records, "", "  ")
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Upsert inserts or replaces one record, matched by the collection's key
// field. Read-modify-write under the store mutex.
func (s *Store) Upsert(c Collection, r Record) error {
	if !c.accepts(r) {
		return fmt.Errorf("upsert %s: record %T does not belong to this collection", c, r)
	}

	s.mu.Lock()
	err := s.upsertLocked(c, r)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.bus.publish(Event{Collection: c, Kind: OpUpsert, Key: r.StoreKey()})
	return nil
}

func (s *Store) upsertLocked(c Collection, r Record) error {
	records, err := s.readLocked(c)
	if err != nil {
		return err
	}
	return s.writeLocked(c, upsertInto(records, r))
}

// Remove deletes the record with the given key value, if present.
// Removing an absent key is not an error.
func (s *Store) Remove(c Collection, key string) error {
	s.mu.Lock()
	removed, err := s.removeLocked(c, key)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if removed {
		s.bus.publish(Event{Collection: c, Kind: OpDelete, Key: key})
	}
	return nil
}

func (s *Store) removeLocked(c Collection, key string) (bool, error) {
	records, err := s.readLocked(c)
	if err != nil {
		return false, err
	}
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.StoreKey() != key {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return false, nil
	}
	return true, s.writeLocked(c, kept)
}

func upsertInto(records []Record, r Record) []Record {
	for i, existing := range records {
		if existing.StoreKey() == r.StoreKey() {
			records[i] = r
			return records
		}
	}
	return append(records, r)
}

// Typed readers for the engine. Each is Read plus a concrete-type
// conversion; the assertion cannot fail because decode binds the type.

func (s *Store) ReadLists() ([]record.List, error) {
	return readTyped[record.List](s, Lists)
}

func (s *Store) ReadWinners() ([]record.Winner, error) {
	return readTyped[record.Winner](s, Winners)
}

func (s *Store) ReadPrizes() ([]record.Prize, error) {
	return readTyped[record.Prize](s, Prizes)
}

func (s *Store) ReadHistory() ([]record.HistoryEntry, error) {
	return readTyped[record.HistoryEntry](s, History)
}

func (s *Store) ReadSettings() ([]record.Setting, error) {
	return readTyped[record.Setting](s, Settings)
}

// FindPrize returns the prize with the given ID, or false if absent.
func (s *Store) FindPrize(prizeID string) (record.Prize, bool, error) {
	prizes, err := s.ReadPrizes()
	if err != nil {
		return record.Prize{}, false, err
	}
	for _, p := range prizes {
		if p.PrizeID == prizeID {
			return p, true, nil
		}
	}
	return record.Prize{}, false, nil
}

func readTyped[T Record](s *Store, c Collection) ([]T, error) {
	records, err := s.Read(c)
	if err != nil {
		return nil, err
	}
	typed := make([]T, len(records))
	for i, r := range records {
		typed[i] = r.(T)
	}
	return typed, nil
}
