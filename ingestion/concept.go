package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/membridge/ai"
	"github.com/poiesic/membridge/core"
	"github.com/poiesic/membridge/storage"
)

// ConceptProcessorType names the concept processor's checkpoint.
const ConceptProcessorType = "concepts"

// conceptProcessor extracts concepts from entries and links them.
type conceptProcessor struct {
	conceptRepository storage.ConceptRepository
	embedder          ai.Embedder
	extractor         ai.ConceptExtractor
	progress          *progress
	logger            *slog.Logger
}

var _ processor = (*conceptProcessor)(nil)

// entryConceptPos tracks where a resolved concept is assigned.
type entryConceptPos struct {
	entryIdx   int
	conceptIdx int
	importance int
}

func newConceptProcessor(
	conceptRepository storage.ConceptRepository,
	checkpoints storage.CheckpointRepository,
	embedder ai.Embedder,
	extractor ai.ConceptExtractor,
	logger *slog.Logger,
) (*conceptProcessor, error) {
	if conceptRepository == nil {
		return nil, fmt.Errorf("concept repository required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("concept extractor required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &conceptProcessor{
		conceptRepository: conceptRepository,
		embedder:          embedder,
		extractor:         extractor,
		progress:          &progress{processorType: ConceptProcessorType, checkpoints: checkpoints},
		logger:            logger.With("processor", ConceptProcessorType),
	}, nil
}

// process classifies each entry and resolves the extracted concepts.
// An entry whose classification fails is left out of the result; the rest
// of the batch still completes.
func (cp *conceptProcessor) process(ctx context.Context, entries []*core.Entry) ([]*core.Entry, error) {
	cp.logger.Debug("extracting concepts", "entries", len(entries))

	// The classifier has no batch API, so entries are classified one by one.
	mapping := make(map[core.ID][]entryConceptPos)
	unique := make([]ai.ExtractedConcept, 0)
	seen := make(map[core.ID]struct{})
	failed := make(map[int]struct{})
	var errs []error

	for entryIdx, entry := range entries {
		extracted, err := cp.extractor.ExtractConcepts(ctx, entry.Contents)
		if err != nil {
			failed[entryIdx] = struct{}{}
			errs = append(errs, fmt.Errorf("entry %d classification failed: %w", entry.Id, err))
			continue
		}

		entry.Concepts = make([]core.ConceptRef, len(extracted))
		for conceptIdx, c := range extracted {
			conceptID := core.IDFromContent(c.Tuple())
			mapping[conceptID] = append(mapping[conceptID], entryConceptPos{
				entryIdx:   entryIdx,
				conceptIdx: conceptIdx,
				importance: c.Importance,
			})
			if _, ok := seen[conceptID]; !ok {
				seen[conceptID] = struct{}{}
				unique = append(unique, c)
			}
		}
	}

	if len(unique) > 0 {
		resolved, err := cp.getOrCreateConcepts(ctx, unique)
		if err != nil {
			// Without resolved concepts no entry in the batch can be linked.
			return nil, errors.Join(append(errs, fmt.Errorf("resolving concepts: %w", err))...)
		}
		for _, concept := range resolved {
			for _, pos := range mapping[concept.Id] {
				entries[pos.entryIdx].Concepts[pos.conceptIdx] = core.ConceptRef{
					ConceptId:  concept.Id,
					Importance: pos.importance,
				}
			}
		}
	}

	done := make([]*core.Entry, 0, len(entries)-len(failed))
	for i, entry := range entries {
		if _, ok := failed[i]; !ok {
			done = append(done, entry)
		}
	}
	cp.progress.advance(done)

	return done, errors.Join(errs...)
}

// getOrCreateConcepts embeds the concept tuples and stores any concept not seen before.
func (cp *conceptProcessor) getOrCreateConcepts(ctx context.Context, concepts []ai.ExtractedConcept) ([]*core.Concept, error) {
	tuples := make([]string, len(concepts))
	for i := range concepts {
		tuples[i] = concepts[i].Tuple()
	}

	vectors, err := cp.embedder.EmbedTexts(ctx, tuples)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(concepts) {
		return nil, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(concepts), len(vectors))
	}

	result := make([]*core.Concept, 0, len(concepts))
	for i, c := range concepts {
		concept, err := cp.conceptRepository.GetOrCreateConcept(ctx, c.Name, c.Type, core.NormalizeVector(vectors[i]))
		if err != nil {
			return nil, err
		}
		result = append(result, concept)
	}
	return result, nil
}

func (cp *conceptProcessor) checkpoint(ctx context.Context) error {
	return cp.progress.save(ctx)
}
