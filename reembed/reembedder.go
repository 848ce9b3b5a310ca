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

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/membridge/ai"
	"github.com/poiesic/membridge/storage"
)

// Config holds configuration for reembedding.
type Config struct {
	// BatchSize is the number of items to embed per call
	BatchSize int

	// ReportInterval is how often to report progress (number of items)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// SkipConcepts leaves concept vectors alone
	SkipConcepts bool
}

// DefaultConfig returns the default reembedding configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Result counts what a Run reembedded.
type Result struct {
	Entries  int
	Concepts int
}

// Reembedder regenerates entry and concept vectors.
type Reembedder struct {
	entries  storage.EntryRepository
	concepts storage.ConceptRepository
	embedder ai.Embedder
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewReembedder creates a reembedder. A nil config uses DefaultConfig and a
// nil progress writer discards progress output.
func NewReembedder(entries storage.EntryRepository, concepts storage.ConceptRepository, embedder ai.Embedder, config *Config, progress io.Writer, logger *slog.Logger) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Reembedder{
		entries:  entries,
		concepts: concepts,
		embedder: embedder,
		config:   config,
		progress: progress,
		logger:   loggerOrDefault(logger).With("component", "reembed"),
	}
}

// Run reembeds every indexed entry and then every concept.
func (r *Reembedder) Run(ctx context.Context) (Result, error) {
	var result Result

	entryProc := NewEntryBatchProcessor(r.entries, r.embedder, r.config.MaxRetries, r.config.RetryDelay, r.logger)
	n, err := runBatches(ctx, r, "entries", NewEntryIterator(r.entries, r.config.BatchSize), entryProc)
	result.Entries = n
	if err != nil {
		return result, err
	}

	if r.config.SkipConcepts || r.concepts == nil {
		return result, nil
	}

	conceptProc := NewConceptBatchProcessor(r.concepts, r.embedder, r.config.MaxRetries, r.config.RetryDelay, r.logger)
	n, err = runBatches(ctx, r, "concepts", NewConceptIterator(r.concepts, r.config.BatchSize), conceptProc)
	result.Concepts = n
	return result, err
}

func runBatches[T any](ctx context.Context, r *Reembedder, label string, it *Iterator[T], proc *BatchProcessor[T]) (int, error) {
	total, err := it.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", label, err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No %s found in database\n", label)
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d %s (batch size: %d)\n", total, label, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, label, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = it.ForEach(ctx, func(batch []T) error {
		if err := proc.Process(ctx, batch); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(batch)
		tracker.Increment(len(batch))
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding stopped", "label", label, "processed", processed, "err", err)
		return processed, err
	}

	tracker.Finish()
	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d %s in %v\n",
		processed, label, elapsed.Round(time.Millisecond))
	return processed, nil
}
