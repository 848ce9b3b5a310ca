package storage

import (
	"context"
	"time"

	"github.com/poiesic/membridge/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// EntryRepository provides operations for managing knowledge base entries.
type EntryRepository interface {
	Repository

	// FindSimilar finds indexed entries similar to the given vector.
	// Returns entries with similarity >= minSimilarity, up to limit results.
	// When tags is non-empty only entries carrying at least one of them are considered.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, tags []string) ([]*core.SearchResult, error)

	// AddEntries adds one or more entries to storage.
	// For entries with ID=0, generates new IDs from sequence.
	// Sets InsertedAt timestamp if not already set.
	// Entries without IndexedAt are placed in the pending index.
	AddEntries(ctx context.Context, entries ...*core.Entry) ([]*core.Entry, error)

	// UpdateEntries updates existing entries and their indexes.
	// Updates the UpdatedAt timestamp automatically.
	// Entries that no longer exist are skipped; the result holds only the
	// entries that were written.
	UpdateEntries(ctx context.Context, entries ...*core.Entry) ([]*core.Entry, error)

	// DeleteEntries removes entries by their IDs, along with every index
	// that references them.
	// Returns ErrNotFound if any entry doesn't exist.
	DeleteEntries(ctx context.Context, ids ...core.ID) error

	// GetEntry retrieves a single entry by ID.
	// Returns ErrNotFound if the entry doesn't exist.
	GetEntry(ctx context.Context, id core.ID) (*core.Entry, error)

	// GetEntries retrieves multiple entries by their IDs.
	// Returns only the entries that exist (no error for missing entries).
	GetEntries(ctx context.Context, ids ...core.ID) ([]*core.Entry, error)

	// GetEntriesByDateRange retrieves entries where start <= Timestamp < end,
	// ordered by timestamp.
	GetEntriesByDateRange(ctx context.Context, start, end time.Time) ([]*core.Entry, error)

	// GetRecentEntries retrieves up to limit entries, most recent first.
	GetRecentEntries(ctx context.Context, limit int) ([]*core.Entry, error)

	// GetEntriesByConcept retrieves IDs of entries associated with a concept.
	GetEntriesByConcept(ctx context.Context, conceptID core.ID) ([]core.ID, error)

	// GetEntriesByTag retrieves IDs of entries carrying tag, in ascending ID order.
	GetEntriesByTag(ctx context.Context, tag string) ([]core.ID, error)

	// GetPendingEntries retrieves IDs of entries no reindex pass has covered yet,
	// in ascending ID order.
	GetPendingEntries(ctx context.Context) ([]core.ID, error)

	// ListEntries retrieves every entry ordered by timestamp.
	ListEntries(ctx context.Context) ([]*core.Entry, error)
}

// ConceptRepository provides operations for managing concepts.
type ConceptRepository interface {
	Repository
	// AddConcepts adds one or more concepts to storage.
	// Uses content-based IDs (IDFromContent of concept tuple).
	// Sets InsertedAt timestamp if not already set.
	// Returns the concepts with timestamps populated.
	AddConcepts(ctx context.Context, concepts ...*core.Concept) ([]*core.Concept, error)

	// UpdateConcepts updates existing concepts.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any concept doesn't exist.
	UpdateConcepts(ctx context.Context, concepts ...*core.Concept) ([]*core.Concept, error)

	// DeleteConcepts removes concepts by their IDs.
	// Returns ErrNotFound if any concept doesn't exist.
	DeleteConcepts(ctx context.Context, ids ...core.ID) error

	// GetConcept retrieves a single concept by ID.
	// Returns ErrNotFound if the concept doesn't exist.
	GetConcept(ctx context.Context, id core.ID) (*core.Concept, error)

	// GetConcepts retrieves multiple concepts by their IDs.
	// Returns only the concepts that exist (no error for missing concepts).
	GetConcepts(ctx context.Context, ids ...core.ID) ([]*core.Concept, error)

	// FindConceptByNameAndType finds a concept by its name and type tuple.
	// Returns ErrNotFound if no matching concept exists.
	FindConceptByNameAndType(ctx context.Context, name, conceptType string) (*core.Concept, error)

	// GetOrCreateConcept finds or creates a concept by name and type.
	// If the concept exists, returns it.
	// If not, creates it with the provided vector.
	// Thread-safe: handles concurrent creation attempts.
	GetOrCreateConcept(ctx context.Context, name, conceptType string, vector []float32) (*core.Concept, error)

	// ListConcepts retrieves every stored concept.
	ListConcepts(ctx context.Context) ([]*core.Concept, error)
}

// CheckpointRepository persists reindex processor progress.
type CheckpointRepository interface {
	// SaveCheckpoint stores the checkpoint for its processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint for processorType.
	// Returns nil, nil if none has been saved.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// ListCheckpoints returns every saved checkpoint ordered by processor type.
	ListCheckpoints(ctx context.Context) ([]*core.Checkpoint, error)
}
