// Package checkpoint stores durable journal replay positions in Badger.
//
// A position is the byte offset just past the last journal entry that was
// forwarded to the audit log. Commits never move a position backwards;
// Clear is the only way to rewind.
package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
)

// ErrCheckpoint wraps failures of the underlying store.
var ErrCheckpoint = errors.New("checkpoint store failed")

// keyPrefix namespaces replay positions inside the database.
const keyPrefix = "replay:"

// Store wraps Badger for checkpoint operations.
type Store struct {
	db *badger.DB
}

// Open opens or creates a checkpoint store at the given directory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrCheckpoint, path, err)
	}

	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// MakeKey returns the database key for a journal path. Paths are made
// absolute so that relative and absolute spellings share one position.
func MakeKey(journal string) []byte {
	if abs, err := filepath.Abs(journal); err == nil {
		journal = abs
	}
	return []byte(keyPrefix + filepath.Clean(journal))
}

// Get returns the stored offset for journal and whether one exists.
func (s *Store) Get(journal string) (int64, bool, error) {
	var (
		offset int64
		found  bool
	)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(MakeKey(journal))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("invalid offset encoding (%d bytes)", len(val))
			}
			offset = int64(binary.BigEndian.Uint64(val))
			found = true
			return nil
		})
	})
	if err != nil {
		return 0, false, fmt.Errorf("%w: reading %s: %w", ErrCheckpoint, journal, err)
	}

	return offset, found, nil
}

// Commit stores offset for journal. Offsets not greater than the stored
// one are ignored.
func (s *Store) Commit(journal string, offset int64) error {
	if offset < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrCheckpoint, offset)
	}

	key := MakeKey(journal)
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var prev int64
			if err := item.Value(func(val []byte) error {
				if len(val) == 8 {
					prev = int64(binary.BigEndian.Uint64(val))
				}
				return nil
			}); err != nil {
				return err
			}
			if offset <= prev {
				return nil
			}
		}

		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(offset))
		return txn.Set(key, b[:])
	})
	if err != nil {
		return fmt.Errorf("%w: committing %s: %w", ErrCheckpoint, journal, err)
	}
	return nil
}

// Clear removes the stored offset for journal.
func (s *Store) Clear(journal string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(MakeKey(journal))
	})
	if err != nil {
		return fmt.Errorf("%w: clearing %s: %w", ErrCheckpoint, journal, err)
	}
	return nil
}

// List returns every stored journal path and offset.
func (s *Store) List() (map[string]int64, error) {
	positions := make(map[string]int64)
	prefix := []byte(keyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			journal := string(item.Key()[len(prefix):])
			if err := item.Value(func(val []byte) error {
				if len(val) == 8 {
					positions[journal] = int64(binary.BigEndian.Uint64(val))
				}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing: %w", ErrCheckpoint, err)
	}

	return positions, nil
}
