package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/membridge/ai"
	"github.com/poiesic/membridge/core"
	"github.com/poiesic/membridge/storage"
)

const defaultBatchSize = 16

// Pipeline stores new entries as pending and indexes them on Reindex.
// Indexing runs batches concurrently on a worker pool.
type Pipeline struct {
	entryRepository      storage.EntryRepository
	conceptRepository    storage.ConceptRepository
	checkpointRepository storage.CheckpointRepository
	pool                 *ants.Pool
	embeddingProc        processor
	conceptProc          processor
	batchSize            int
	logger               *slog.Logger

	// reindexMu keeps passes from overlapping when Reindex is called directly.
	reindexMu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of batches indexed concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many pending entries each pool task indexes.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	entryRepository storage.EntryRepository,
	conceptRepository storage.ConceptRepository,
	checkpointRepository storage.CheckpointRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if entryRepository == nil {
		return nil, ErrEntryRepositoryRequired
	}
	if conceptRepository == nil {
		return nil, ErrConceptRepositoryRequired
	}
	if checkpointRepository == nil {
		return nil, ErrCheckpointRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		entryRepository:      entryRepository,
		conceptRepository:    conceptRepository,
		checkpointRepository: checkpointRepository,
		pool:                 pool,
		batchSize:            defaultBatchSize,
		logger:               slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "pipeline")

	// Processors are created after options so they get the final logger.
	embeddingProc, err := newEmbeddingProcessor(provider.Embedder(), checkpointRepository, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	conceptProc, err := newConceptProcessor(conceptRepository, checkpointRepository,
		provider.Embedder(), provider.ConceptExtractor(), p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}

	p.embeddingProc = embeddingProc
	p.conceptProc = conceptProc
	return p, nil
}

// IngestOptions holds optional parameters for ingestion.
type IngestOptions struct {
	Tags      []string          // Tags attached to every entry, e.g. a session id
	Metadata  map[string]string // Optional metadata to attach to entries
	Timestamp time.Time         // Optional timestamp (uses current time if zero)
}

// Ingest validates and stores contents as pending entries.
// The entries become searchable after the next Reindex.
func (p *Pipeline) Ingest(ctx context.Context, contents []string, opts *IngestOptions) ([]*core.Entry, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}
	timestamp := opts.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	entries := make([]*core.Entry, len(contents))
	for i, text := range contents {
		entries[i] = &core.Entry{
			Contents:  text,
			Tags:      slices.Clone(opts.Tags),
			Timestamp: timestamp,
			Metadata:  opts.Metadata,
		}
		if err := core.ValidateEntry(entries[i]); err != nil {
			return nil, err
		}
	}

	added, err := p.entryRepository.AddEntries(ctx, entries...)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("ingested entries", "count", len(added), "tags", opts.Tags)
	return added, nil
}

// ReindexStats summarizes one reindex pass.
type ReindexStats struct {
	Pending int // entries pending when the pass started
	Indexed int // entries the pass completed
	Failed  int // entries left pending by a failure
}

// Reindex indexes every pending entry: embeddings first, then concepts,
// then the entries are marked indexed in one update per batch.
// Failures are joined; the entries they affect stay pending for the next pass.
func (p *Pipeline) Reindex(ctx context.Context) (ReindexStats, error) {
	p.reindexMu.Lock()
	defer p.reindexMu.Unlock()

	ids, err := p.entryRepository.GetPendingEntries(ctx)
	if err != nil {
		return ReindexStats{}, fmt.Errorf("loading pending entries: %w", err)
	}
	stats := ReindexStats{Pending: len(ids)}
	if len(ids) == 0 {
		p.logger.Debug("nothing to reindex")
		return stats, nil
	}
	p.logger.Info("reindexing", "pending", len(ids))
	start := time.Now()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for batch := range slices.Chunk(ids, p.batchSize) {
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			indexed, err := p.indexBatch(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			stats.Indexed += indexed
			if err != nil {
				errs = append(errs, err)
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("submitting batch: %w", submitErr))
			mu.Unlock()
		}
	}
	wg.Wait()

	for _, proc := range []processor{p.embeddingProc, p.conceptProc} {
		if err := proc.checkpoint(ctx); err != nil {
			p.logger.Error("error applying checkpoint", "err", err)
			errs = append(errs, fmt.Errorf("saving checkpoint: %w", err))
		}
	}

	stats.Failed = stats.Pending - stats.Indexed
	p.logger.Info("reindex finished",
		"indexed", stats.Indexed,
		"failed", stats.Failed,
		"elapsed", time.Since(start))
	return stats, errors.Join(errs...)
}

// indexBatch runs both processors over one batch and persists what completed.
func (p *Pipeline) indexBatch(ctx context.Context, ids []core.ID) (int, error) {
	entries, err := p.entryRepository.GetEntries(ctx, ids...)
	if err != nil {
		return 0, err
	}
	// Entries deleted since the pending snapshot are simply absent.
	if len(entries) == 0 {
		return 0, nil
	}

	embedded, err := p.embeddingProc.process(ctx, entries)
	if err != nil {
		return 0, err
	}
	done, conceptErr := p.conceptProc.process(ctx, embedded)
	if len(done) == 0 {
		return 0, conceptErr
	}

	indexedAt := time.Now().UTC()
	for _, entry := range done {
		entry.IndexedAt = indexedAt
	}
	updated, err := p.entryRepository.UpdateEntries(ctx, done...)
	if err != nil {
		return 0, errors.Join(conceptErr, fmt.Errorf("marking entries indexed: %w", err))
	}
	return len(updated), conceptErr
}

// MarkAllPending clears IndexedAt on every entry so the next Reindex covers
// the whole knowledge base. It returns the number of entries marked.
func (p *Pipeline) MarkAllPending(ctx context.Context) (int, error) {
	p.reindexMu.Lock()
	defer p.reindexMu.Unlock()

	entries, err := p.entryRepository.ListEntries(ctx)
	if err != nil {
		return 0, err
	}

	marked := 0
	for batch := range slices.Chunk(entries, p.batchSize) {
		stale := make([]*core.Entry, 0, len(batch))
		for _, entry := range batch {
			if entry.Indexed() {
				entry.IndexedAt = time.Time{}
				stale = append(stale, entry)
			}
		}
		if len(stale) == 0 {
			continue
		}
		updated, err := p.entryRepository.UpdateEntries(ctx, stale...)
		if err != nil {
			return marked, err
		}
		marked += len(updated)
	}
	p.logger.Info("marked entries pending", "count", marked)
	return marked, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
