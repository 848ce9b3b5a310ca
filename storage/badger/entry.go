package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/membridge/core"
	"github.com/poiesic/membridge/storage"
)

// EntryRepository implements storage.EntryRepository for BadgerDB.
type EntryRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.EntryRepository = (*EntryRepository)(nil)

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(backend *Backend) (*EntryRepository, error) {
	idSeq, err := backend.GetSequence(entryIDSeq)
	if err != nil {
		return nil, err
	}

	return &EntryRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *EntryRepository) Close() error {
	return r.idSeq.Release()
}

// FindSimilar delegates to the backend.
func (r *EntryRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, tags []string) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit, tags)
}

// WithTransaction delegates to the backend.
func (r *EntryRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddEntries adds one or more entries to storage.
// Every entry gets a fresh ID, so identical contents are stored twice.
func (r *EntryRepository) AddEntries(ctx context.Context, entries ...*core.Entry) ([]*core.Entry, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, entry := range entries {
			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.idSeq.Next()
				if err != nil {
					return err
				}
			}
			entry.Id = core.ID(nextID)

			if entry.InsertedAt.IsZero() {
				entry.InsertedAt = time.Now().UTC()
			}
			entry.UpdatedAt = entry.InsertedAt

			key := makeEntryKey(entry.Id)
			if err := tx.Set(key, storage.MarshalEntry(entry)); err != nil {
				return err
			}
			if err := r.writeIndexes(tx, entry); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return entries, err
}

// UpdateEntries updates the entries that still exist and returns them.
// Entries deleted in the meantime are skipped.
func (r *EntryRepository) UpdateEntries(ctx context.Context, entries ...*core.Entry) ([]*core.Entry, error) {
	var updated []*core.Entry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		updated = make([]*core.Entry, 0, len(entries))
		for _, entry := range entries {
			key := makeEntryKey(entry.Id)

			old, err := readEntry(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				continue
			}

			entry.UpdatedAt = time.Now().UTC()

			if err := tx.Set(key, storage.MarshalEntry(entry)); err != nil {
				return err
			}

			if !old.Timestamp.Equal(entry.Timestamp) {
				if err := tx.Delete(makeEntryDateKey(old.Timestamp, old.Id)); err != nil {
					return err
				}
				if err := tx.Set(makeEntryDateKey(entry.Timestamp, entry.Id), storage.MarshalID(entry.Id)); err != nil {
					return err
				}
			}

			if !conceptsEqual(old.Concepts, entry.Concepts) {
				if err := deleteConceptIndex(tx, old); err != nil {
					return err
				}
				if err := updateConceptIndex(tx, entry); err != nil {
					return err
				}
			}

			if !slices.Equal(old.Tags, entry.Tags) {
				if err := deleteTagIndex(tx, old); err != nil {
					return err
				}
				if err := updateTagIndex(tx, entry); err != nil {
					return err
				}
			}

			if old.Indexed() != entry.Indexed() {
				if err := updatePendingIndex(tx, entry); err != nil {
					return err
				}
			}
			updated = append(updated, entry)
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteEntries removes entries and every index that references them.
func (r *EntryRepository) DeleteEntries(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeEntryKey(id)

			entry, err := readEntry(tx, key)
			if err != nil {
				return err
			}
			if entry == nil {
				return storage.ErrNotFound
			}

			if err := tx.Delete(makeEntryDateKey(entry.Timestamp, entry.Id)); err != nil {
				return err
			}
			if err := deleteConceptIndex(tx, entry); err != nil {
				return err
			}
			if err := deleteTagIndex(tx, entry); err != nil {
				return err
			}
			if err := tx.Delete(makeEntryPendingKey(entry.Id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetEntry retrieves a single entry by ID.
func (r *EntryRepository) GetEntry(ctx context.Context, id core.ID) (*core.Entry, error) {
	var result *core.Entry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readEntry(tx, makeEntryKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetEntries retrieves multiple entries by their IDs.
func (r *EntryRepository) GetEntries(ctx context.Context, ids ...core.ID) ([]*core.Entry, error) {
	var result []*core.Entry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			entry, err := readEntry(tx, makeEntryKey(id))
			if err != nil {
				return err
			}
			if entry != nil {
				result = append(result, entry)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetEntriesByDateRange retrieves entries within a time range.
func (r *EntryRepository) GetEntriesByDateRange(ctx context.Context, start, end time.Time) ([]*core.Entry, error) {
	if start.Equal(end) {
		end = start.Add(1 * time.Microsecond)
	}

	var results []*core.Entry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makePartialEntryDateKey(start)
		endKey := makePartialEntryDateKey(end)
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			if bytes.Compare(iter.Item().Key(), endKey) >= 0 {
				break
			}
			entry, err := r.readIndexed(tx, iter.Item())
			if err != nil {
				return err
			}
			if entry != nil {
				results = append(results, entry)
			}
		}
		return nil
	}, false)

	return results, err
}

// GetRecentEntries retrieves the N most recent entries, ordered by timestamp descending.
func (r *EntryRepository) GetRecentEntries(ctx context.Context, limit int) ([]*core.Entry, error) {
	var results []*core.Entry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefixOf(entryDatePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration seeks to the largest key <= the seek key
		seekKey := append(prefixOf(entryDatePrefix), bytes.Repeat([]byte{0xFF}, 16)...)
		for iter.Seek(seekKey); iter.Valid() && len(results) < limit; iter.Next() {
			entry, err := r.readIndexed(tx, iter.Item())
			if err != nil {
				return err
			}
			if entry != nil {
				results = append(results, entry)
			}
		}
		return nil
	}, false)

	return results, err
}

// ListEntries retrieves every entry ordered by timestamp.
func (r *EntryRepository) ListEntries(ctx context.Context) ([]*core.Entry, error) {
	var results []*core.Entry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixOf(entryDatePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := r.readIndexed(tx, iter.Item())
			if err != nil {
				return err
			}
			if entry != nil {
				results = append(results, entry)
			}
		}
		return nil
	}, false)

	return results, err
}

// GetEntriesByConcept retrieves IDs of entries associated with a concept.
func (r *EntryRepository) GetEntriesByConcept(ctx context.Context, conceptID core.ID) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		ids, err = scanIDSuffixes(tx, makePartialEntryConceptKey(conceptID))
		return err
	}, false)
	return ids, err
}

// GetEntriesByTag retrieves IDs of entries carrying tag.
func (r *EntryRepository) GetEntriesByTag(ctx context.Context, tag string) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		ids, err = scanIDSuffixes(tx, makePartialEntryTagKey(tag))
		return err
	}, false)
	return ids, err
}

// GetPendingEntries retrieves IDs of entries awaiting a reindex pass.
func (r *EntryRepository) GetPendingEntries(ctx context.Context) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		ids, err = scanIDSuffixes(tx, prefixOf(entryPendingPrefix))
		return err
	}, false)
	return ids, err
}

// Helper methods

// readIndexed follows an index item whose value is an entry ID.
func (r *EntryRepository) readIndexed(tx *badger.Txn, item *badger.Item) (*core.Entry, error) {
	var entryID core.ID
	if err := item.Value(func(val []byte) error {
		var err error
		entryID, err = storage.UnmarshalID(val)
		return err
	}); err != nil {
		return nil, err
	}
	return readEntry(tx, makeEntryKey(entryID))
}

// writeIndexes creates every secondary index entry for a new entry.
func (r *EntryRepository) writeIndexes(tx *badger.Txn, entry *core.Entry) error {
	if err := tx.Set(makeEntryDateKey(entry.Timestamp, entry.Id), storage.MarshalID(entry.Id)); err != nil {
		return err
	}
	if err := updateConceptIndex(tx, entry); err != nil {
		return err
	}
	if err := updateTagIndex(tx, entry); err != nil {
		return err
	}
	if !entry.Indexed() {
		return updatePendingIndex(tx, entry)
	}
	return nil
}

// readEntry reads an entry from the transaction.
// Returns nil, nil when the key does not exist.
func readEntry(tx *badger.Txn, key []byte) (*core.Entry, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var entry *core.Entry
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalEntry(val)
		return unmarshalErr
	})
	return entry, err
}

// scanIDSuffixes collects the trailing 8-byte IDs of every key under prefix.
func scanIDSuffixes(tx *badger.Txn, prefix []byte) ([]core.ID, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var ids []core.ID
	for iter.Rewind(); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		if len(key) != len(prefix)+8 {
			continue
		}
		ids = append(ids, core.ID(binary.BigEndian.Uint64(key[len(prefix):])))
	}
	return ids, nil
}

// entryIDsForTags returns the sorted union of entry IDs carrying any of tags.
func entryIDsForTags(tx *badger.Txn, tags []string) ([]core.ID, error) {
	var ids []core.ID
	for _, tag := range tags {
		tagged, err := scanIDSuffixes(tx, makePartialEntryTagKey(tag))
		if err != nil {
			return nil, err
		}
		ids = append(ids, tagged...)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// updateConceptIndex adds concept index entries for an entry.
func updateConceptIndex(tx *badger.Txn, entry *core.Entry) error {
	for _, conceptRef := range entry.Concepts {
		key := makeEntryConceptKey(conceptRef.ConceptId, entry.Id)
		if err := tx.Set(key, storage.MarshalID(entry.Id)); err != nil {
			return err
		}
	}
	return nil
}

// deleteConceptIndex removes concept index entries for an entry.
func deleteConceptIndex(tx *badger.Txn, entry *core.Entry) error {
	for _, conceptRef := range entry.Concepts {
		if err := tx.Delete(makeEntryConceptKey(conceptRef.ConceptId, entry.Id)); err != nil {
			return err
		}
	}
	return nil
}

func updateTagIndex(tx *badger.Txn, entry *core.Entry) error {
	for _, tag := range entry.Tags {
		if err := tx.Set(makeEntryTagKey(tag, entry.Id), storage.MarshalID(entry.Id)); err != nil {
			return err
		}
	}
	return nil
}

func deleteTagIndex(tx *badger.Txn, entry *core.Entry) error {
	for _, tag := range entry.Tags {
		if err := tx.Delete(makeEntryTagKey(tag, entry.Id)); err != nil {
			return err
		}
	}
	return nil
}

// updatePendingIndex makes the pending index agree with entry.Indexed.
func updatePendingIndex(tx *badger.Txn, entry *core.Entry) error {
	key := makeEntryPendingKey(entry.Id)
	if entry.Indexed() {
		return tx.Delete(key)
	}
	return tx.Set(key, storage.MarshalID(entry.Id))
}

// conceptsEqual compares two concept slices for equality.
func conceptsEqual(a, b []core.ConceptRef) bool {
	return slices.Equal(a, b)
}
