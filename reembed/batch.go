package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/membridge/ai"
	"github.com/poiesic/membridge/core"
	"github.com/poiesic/membridge/storage"
)

// BatchProcessor embeds a batch of items and writes the vectors back.
type BatchProcessor[T any] struct {
	embedder       ai.Embedder
	text           func(T) string
	setVector      func(T, []float32)
	update         func(ctx context.Context, items []T) error
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewEntryBatchProcessor embeds entry contents.
func NewEntryBatchProcessor(repo storage.EntryRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration, logger *slog.Logger) *BatchProcessor[*core.Entry] {
	return &BatchProcessor[*core.Entry]{
		embedder:  embedder,
		text:      func(e *core.Entry) string { return e.Contents },
		setVector: func(e *core.Entry, v []float32) { e.Vector = v },
		update: func(ctx context.Context, entries []*core.Entry) error {
			_, err := repo.UpdateEntries(ctx, entries...)
			return err
		},
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         loggerOrDefault(logger),
	}
}

// NewConceptBatchProcessor embeds concept tuples, matching how the reindex
// pipeline embeds new concepts.
func NewConceptBatchProcessor(repo storage.ConceptRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration, logger *slog.Logger) *BatchProcessor[*core.Concept] {
	return &BatchProcessor[*core.Concept]{
		embedder:  embedder,
		text:      func(c *core.Concept) string { return c.Tuple() },
		setVector: func(c *core.Concept, v []float32) { c.Vector = v },
		update: func(ctx context.Context, concepts []*core.Concept) error {
			_, err := repo.UpdateConcepts(ctx, concepts...)
			return err
		},
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         loggerOrDefault(logger),
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// Process generates embeddings for a batch and updates the items in storage.
// Vectors are normalized after embedding.
func (bp *BatchProcessor[T]) Process(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = bp.text(item)
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, bp.logger, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(items) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(items), len(embeddings))
	}

	for i, item := range items {
		bp.setVector(item, core.NormalizeVector(embeddings[i]))
	}

	if err := bp.update(ctx, items); err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}
	return nil
}
