package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/membridge/core"
	"github.com/poiesic/membridge/storage"
)

// conflictRetries bounds how often GetOrCreateConcept retries after two
// reindex batches race to create the same concept.
const conflictRetries = 3

// ConceptRepository implements storage.ConceptRepository for BadgerDB.
// Concepts are keyed by the hash of their (type, name) tuple and shared by
// every entry that mentions them.
type ConceptRepository struct {
	backend *Backend
}

var _ storage.ConceptRepository = (*ConceptRepository)(nil)

// NewConceptRepository creates a new ConceptRepository.
func NewConceptRepository(backend *Backend) (*ConceptRepository, error) {
	return &ConceptRepository{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *ConceptRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ConceptRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddConcepts validates and stores concepts, assigning tuple-derived IDs.
func (r *ConceptRepository) AddConcepts(ctx context.Context, concepts ...*core.Concept) ([]*core.Concept, error) {
	now := time.Now().UTC()
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, concept := range concepts {
			if err := core.ValidateConcept(concept); err != nil {
				return err
			}
			if concept.Id == 0 {
				concept.Id = core.IDFromContent(concept.Tuple())
			}
			if concept.InsertedAt.IsZero() {
				concept.InsertedAt = now
			}
			concept.UpdatedAt = concept.InsertedAt
			if err := putConcept(tx, concept); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	return concepts, err
}

// UpdateConcepts rewrites existing concepts, moving the tuple index when
// the name or type changed.
func (r *ConceptRepository) UpdateConcepts(ctx context.Context, concepts ...*core.Concept) ([]*core.Concept, error) {
	now := time.Now().UTC()
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, concept := range concepts {
			old, err := mustReadConcept(tx, concept.Id)
			if err != nil {
				return err
			}
			if old.Tuple() != concept.Tuple() {
				if err := tx.Delete(makeConceptTupleKey(old.Name, old.Type)); err != nil {
					return err
				}
			}
			concept.UpdatedAt = now
			if err := putConcept(tx, concept); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	return concepts, err
}

// DeleteConcepts removes concepts and their tuple index keys.
func (r *ConceptRepository) DeleteConcepts(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			concept, err := mustReadConcept(tx, id)
			if err != nil {
				return err
			}
			if err := tx.Delete(makeConceptTupleKey(concept.Name, concept.Type)); err != nil {
				return err
			}
			if err := tx.Delete(makeConceptKey(id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetConcept retrieves a single concept by ID.
func (r *ConceptRepository) GetConcept(ctx context.Context, id core.ID) (*core.Concept, error) {
	var concept *core.Concept
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		concept, err = mustReadConcept(tx, id)
		return err
	}, false)
	return concept, err
}

// GetConcepts retrieves the concepts that exist among ids.
func (r *ConceptRepository) GetConcepts(ctx context.Context, ids ...core.ID) ([]*core.Concept, error) {
	result := make([]*core.Concept, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			concept, err := readConcept(tx, makeConceptKey(id))
			if err != nil {
				return err
			}
			if concept != nil {
				result = append(result, concept)
			}
		}
		return nil
	}, false)
	return result, err
}

// FindConceptByNameAndType resolves a concept through the tuple index.
func (r *ConceptRepository) FindConceptByNameAndType(ctx context.Context, name, conceptType string) (*core.Concept, error) {
	var concept *core.Concept
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		concept, err = findByTuple(tx, name, conceptType)
		if err == nil && concept == nil {
			err = storage.ErrNotFound
		}
		return err
	}, false)
	return concept, err
}

// GetOrCreateConcept returns the stored concept for (name, conceptType),
// creating it with vector when it does not exist yet. Lookup and insert share
// one transaction; a commit conflict with a concurrent creator is retried.
func (r *ConceptRepository) GetOrCreateConcept(ctx context.Context, name, conceptType string, vector []float32) (*core.Concept, error) {
	for attempt := 1; ; attempt++ {
		concept, err := r.getOrCreate(name, conceptType, vector)
		if !errors.Is(err, badger.ErrConflict) || attempt == conflictRetries {
			return concept, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (r *ConceptRepository) getOrCreate(name, conceptType string, vector []float32) (*core.Concept, error) {
	var concept *core.Concept
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := findByTuple(tx, name, conceptType)
		if err != nil || existing != nil {
			concept = existing
			return err
		}

		now := time.Now().UTC()
		concept = &core.Concept{
			Name:       name,
			Type:       conceptType,
			Vector:     vector,
			InsertedAt: now,
			UpdatedAt:  now,
		}
		if err := core.ValidateConcept(concept); err != nil {
			return err
		}
		concept.Id = core.IDFromContent(concept.Tuple())
		if err := putConcept(tx, concept); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return concept, nil
}

// ListConcepts retrieves every stored concept.
func (r *ConceptRepository) ListConcepts(ctx context.Context) ([]*core.Concept, error) {
	var results []*core.Concept
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixOf(conceptRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			concept, err := decodeConcept(iter.Item())
			if err != nil {
				return err
			}
			results = append(results, concept)
		}
		return nil
	}, false)
	return results, err
}

// putConcept writes the primary record and the tuple index.
func putConcept(tx *badger.Txn, concept *core.Concept) error {
	if err := tx.Set(makeConceptKey(concept.Id), storage.MarshalConcept(concept)); err != nil {
		return err
	}
	return tx.Set(makeConceptTupleKey(concept.Name, concept.Type), storage.MarshalID(concept.Id))
}

// findByTuple returns nil, nil when no concept carries the tuple.
func findByTuple(tx *badger.Txn, name, conceptType string) (*core.Concept, error) {
	item, err := tx.Get(makeConceptTupleKey(name, conceptType))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var id core.ID
	if err := item.Value(func(val []byte) error {
		var unmarshalErr error
		id, unmarshalErr = storage.UnmarshalID(val)
		return unmarshalErr
	}); err != nil {
		return nil, err
	}
	return readConcept(tx, makeConceptKey(id))
}

func mustReadConcept(tx *badger.Txn, id core.ID) (*core.Concept, error) {
	concept, err := readConcept(tx, makeConceptKey(id))
	if err != nil {
		return nil, err
	}
	if concept == nil {
		return nil, fmt.Errorf("concept %d: %w", id, storage.ErrNotFound)
	}
	return concept, nil
}

// readConcept returns nil, nil when the key does not exist.
func readConcept(tx *badger.Txn, key []byte) (*core.Concept, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeConcept(item)
}

func decodeConcept(item *badger.Item) (*core.Concept, error) {
	var concept *core.Concept
	err := item.Value(func(val []byte) error {
		var unmarshalErr error
		concept, unmarshalErr = storage.UnmarshalConcept(val)
		return unmarshalErr
	})
	return concept, err
}
