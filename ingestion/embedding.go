package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/membridge/ai"
	"github.com/poiesic/membridge/core"
	"github.com/poiesic/membridge/storage"
)

// EmbeddingProcessorType names the embedding processor's checkpoint.
const EmbeddingProcessorType = "embeddings"

// embeddingProcessor generates entry vectors.
type embeddingProcessor struct {
	embedder ai.Embedder
	progress *progress
	logger   *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

func newEmbeddingProcessor(embedder ai.Embedder, checkpoints storage.CheckpointRepository, logger *slog.Logger) (*embeddingProcessor, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder: embedder,
		progress: &progress{processorType: EmbeddingProcessorType, checkpoints: checkpoints},
		logger:   logger.With("processor", EmbeddingProcessorType),
	}, nil
}

// process embeds the whole batch in one call. A failure leaves every entry pending.
func (ep *embeddingProcessor) process(ctx context.Context, entries []*core.Entry) ([]*core.Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	ep.logger.Debug("generating embeddings", "entries", len(entries))

	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Contents
	}

	vectors, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return nil, fmt.Errorf("embedding %d entries: %w", len(entries), err)
	}
	if len(vectors) != len(entries) {
		return nil, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(entries), len(vectors))
	}

	for i := range vectors {
		entries[i].Vector = core.NormalizeVector(vectors[i])
	}
	ep.progress.advance(entries)
	return entries, nil
}

func (ep *embeddingProcessor) checkpoint(ctx context.Context) error {
	return ep.progress.save(ctx)
}
