// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package membridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/membridge/ai"
	"github.com/poiesic/membridge/ai/openai"
	"github.com/poiesic/membridge/core"
	"github.com/poiesic/membridge/ingestion"
	"github.com/poiesic/membridge/reembed"
	"github.com/poiesic/membridge/search"
	"github.com/poiesic/membridge/storage"
	"github.com/poiesic/membridge/storage/badger"
)

// defaultQueryCacheSize is how many query embeddings the searcher keeps.
const defaultQueryCacheSize = 256

// Database is the knowledge engine: a badger store, an AI provider, the
// reindex pipeline and the searcher. It satisfies bridge.Engine.
type Database struct {
	backend        *badger.Backend
	entryRepo      storage.EntryRepository
	conceptRepo    storage.ConceptRepository
	checkpointRepo storage.CheckpointRepository
	provider       ai.AIProvider
	pipeline       *ingestion.Pipeline
	searcher       *search.Searcher
	logger         *slog.Logger
	closeOnce      sync.Once
	closeErr       error
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig        *ai.Config
	provider        ai.AIProvider
	inMemory        bool
	logger          *slog.Logger
	pipelineOptions []ingestion.Option
	searchOptions   []search.Option
}

// WithAIConfig configures the OpenAI-compatible provider the database creates.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithAIProvider makes the database use provider instead of creating one.
// The database closes it on Close.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps all data in memory; the file path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPipelineOptions passes options through to the ingestion pipeline.
func WithPipelineOptions(opts ...ingestion.Option) DatabaseOption {
	return func(o *databaseOptions) {
		o.pipelineOptions = append(o.pipelineOptions, opts...)
	}
}

// WithSearchOptions passes options through to the searcher.
func WithSearchOptions(opts ...search.Option) DatabaseOption {
	return func(o *databaseOptions) {
		o.searchOptions = append(o.searchOptions, opts...)
	}
}

// NewDatabase opens (or creates) the database at filePath.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	if options.inMemory {
		filePath = ""
	}
	backend, err := badger.OpenBackend(filePath, options.inMemory, badger.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	db := &Database{
		backend:        backend,
		checkpointRepo: badger.NewCheckpointRepository(backend),
		logger:         logger.With("component", "database"),
	}

	entryRepo, err := badger.NewEntryRepository(backend)
	if err != nil {
		return nil, db.abort(err)
	}
	db.entryRepo = entryRepo

	conceptRepo, err := badger.NewConceptRepository(backend)
	if err != nil {
		return nil, db.abort(err)
	}
	db.conceptRepo = conceptRepo

	if options.provider != nil {
		db.provider = options.provider
	} else {
		provider, err := openai.NewProvider(options.aiConfig, openai.WithLogger(logger))
		if err != nil {
			return nil, db.abort(err)
		}
		db.provider = provider
	}

	pipelineOpts := append([]ingestion.Option{ingestion.WithLogger(logger)}, options.pipelineOptions...)
	if db.pipeline, err = ingestion.NewPipeline(db.entryRepo, db.conceptRepo, db.checkpointRepo, db.provider, pipelineOpts...); err != nil {
		return nil, db.abort(err)
	}

	searchOpts := append([]search.Option{
		search.WithLogger(logger),
		search.WithQueryCache(defaultQueryCacheSize),
	}, options.searchOptions...)
	if db.searcher, err = search.NewSearcher(db.entryRepo, db.conceptRepo, db.provider, searchOpts...); err != nil {
		return nil, db.abort(err)
	}

	return db, nil
}

// abort releases whatever NewDatabase had opened and returns err.
func (db *Database) abort(err error) error {
	if closeErr := db.Close(); closeErr != nil {
		db.logger.Error("error releasing partially opened database", "err", closeErr)
	}
	return err
}

// Close releases the pipeline, provider, repositories and backend.
// It is safe to call more than once.
func (db *Database) Close() error {
	db.closeOnce.Do(func() {
		if db.pipeline != nil {
			db.pipeline.Release()
		}
		if db.provider != nil {
			if err := db.provider.Close(); err != nil {
				db.logger.Error("error closing AI provider", "err", err)
			}
		}

		var errs []error
		if db.conceptRepo != nil {
			if err := db.conceptRepo.Close(); err != nil {
				db.logger.Error("error closing concept repository", "err", err)
				errs = append(errs, err)
			}
		}
		if db.entryRepo != nil {
			if err := db.entryRepo.Close(); err != nil {
				db.logger.Error("error closing entry repository", "err", err)
				errs = append(errs, err)
			}
		}
		if err := db.backend.Close(); err != nil {
			db.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
		db.closeErr = errors.Join(errs...)
	})
	return db.closeErr
}

// Add stores data as a pending entry tagged with tags and returns its ID.
// Identical data added twice is stored twice.
func (db *Database) Add(ctx context.Context, data string, tags []string) (core.ID, error) {
	added, err := db.pipeline.Ingest(ctx, []string{data}, &ingestion.IngestOptions{Tags: tags})
	if err != nil {
		return 0, err
	}
	return added[0].Id, nil
}

// Reindex indexes every pending entry.
func (db *Database) Reindex(ctx context.Context) error {
	_, err := db.pipeline.Reindex(ctx)
	return err
}

// ReindexWithStats is Reindex reporting what the pass did.
func (db *Database) ReindexWithStats(ctx context.Context) (ingestion.ReindexStats, error) {
	return db.pipeline.Reindex(ctx)
}

// MarkAllPending schedules every entry for the next Reindex.
func (db *Database) MarkAllPending(ctx context.Context) (int, error) {
	return db.pipeline.MarkAllPending(ctx)
}

// Search finds indexed entries matching query. A non-empty tags restricts
// results to entries carrying at least one of them.
func (db *Database) Search(ctx context.Context, query string, tags []string, limit int) ([]*core.SearchResult, error) {
	return db.searcher.FindSimilar(ctx, query, tags, limit)
}

// SearchWithMonitor is Search reporting each stage to monitor.
func (db *Database) SearchWithMonitor(ctx context.Context, query string, tags []string, limit int, monitor search.SearchMonitor) ([]*core.SearchResult, error) {
	return db.searcher.FindSimilarWithMonitor(ctx, query, tags, limit, monitor)
}

// ListEntries describes every entry, oldest first.
func (db *Database) ListEntries(ctx context.Context) ([]core.EntryMetadata, error) {
	entries, err := db.entryRepo.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]core.EntryMetadata, len(entries))
	for i, entry := range entries {
		result[i] = entry.Describe()
	}
	return result, nil
}

// Delete removes the entry with the given decimal ID.
func (db *Database) Delete(ctx context.Context, entryID string) error {
	id, err := core.ParseID(entryID)
	if err != nil {
		return err
	}
	if err := db.entryRepo.DeleteEntries(ctx, id); err != nil {
		return fmt.Errorf("deleting entry %s: %w", entryID, err)
	}
	db.logger.Debug("deleted entry", "id", id)
	return nil
}

// Reembed regenerates stored vectors with the current embedding model.
func (db *Database) Reembed(ctx context.Context, config *reembed.Config, progress io.Writer) (reembed.Result, error) {
	r := reembed.NewReembedder(db.entryRepo, db.conceptRepo, db.provider.Embedder(), config, progress, db.logger)
	result, err := r.Run(ctx)
	// Cached query vectors may come from the previous model.
	db.searcher.PurgeQueryCache()
	return result, err
}

// EntryRepository returns the entry repository.
func (db *Database) EntryRepository() storage.EntryRepository {
	return db.entryRepo
}

// ConceptRepository returns the concept repository.
func (db *Database) ConceptRepository() storage.ConceptRepository {
	return db.conceptRepo
}

// CheckpointRepository returns the checkpoint repository.
func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.checkpointRepo
}
