package search

import (
	"cmp"
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/poiesic/membridge/ai"
	"github.com/poiesic/membridge/core"
	"github.com/poiesic/membridge/storage"
)

const (
	// DefaultMinSimilarity is the cosine similarity an entry needs to count as a semantic hit.
	DefaultMinSimilarity float32 = 0.60

	// DefaultMaxHits applies when FindSimilar is called with maxHits < 1.
	DefaultMaxHits = 100
)

// Searcher provides hybrid semantic and conceptual search over entries.
type Searcher struct {
	entryRepository   storage.EntryRepository
	conceptRepository storage.ConceptRepository
	embedder          ai.Embedder
	extractor         ai.ConceptExtractor
	minSimilarity     float32
	queryCache        *lru.Cache[string, []float32]
	logger            *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity sets the semantic hit threshold, in [0, 1].
func WithMinSimilarity(threshold float32) Option {
	return func(s *Searcher) error {
		if threshold < 0 || threshold > 1 {
			return ErrInvalidSimilarity
		}
		s.minSimilarity = threshold
		return nil
	}
}

// WithQueryCache keeps the embeddings of the last size distinct queries so
// repeated searches skip the embedder. Zero disables the cache.
func WithQueryCache(size int) Option {
	return func(s *Searcher) error {
		if size < 0 {
			return ErrInvalidCacheSize
		}
		if size == 0 {
			s.queryCache = nil
			return nil
		}
		cache, err := lru.New[string, []float32](size)
		if err != nil {
			return err
		}
		s.queryCache = cache
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	entryRepository storage.EntryRepository,
	conceptRepository storage.ConceptRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if entryRepository == nil {
		return nil, ErrEntryRepositoryRequired
	}
	if conceptRepository == nil {
		return nil, ErrConceptRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		entryRepository:   entryRepository,
		conceptRepository: conceptRepository,
		embedder:          provider.Embedder(),
		extractor:         provider.ConceptExtractor(),
		minSimilarity:     DefaultMinSimilarity,
		logger:            slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// FindSimilar searches indexed entries for the query.
// A non-empty tags restricts results to entries carrying at least one of them.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilar(ctx context.Context, query string, tags []string, maxHits int) ([]*core.SearchResult, error) {
	return s.FindSimilarWithMonitor(ctx, query, tags, maxHits, nil)
}

// FindSimilarWithMonitor is FindSimilar with callbacks at each stage of the search.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, tags []string, maxHits int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits < 1 {
		maxHits = DefaultMaxHits
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	// 1. Semantic search
	embedding, err := s.embedQuery(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.entryRepository.FindSimilar(ctx, embedding, s.minSimilarity, maxHits, tags)
	if err != nil {
		s.logger.Error("error querying for similar entries", "err", err)
		return nil, err
	}

	semanticScores := make(map[core.ID]float32, len(matches))
	semanticIDs := make([]core.ID, 0, len(matches))
	for _, match := range matches {
		semanticScores[match.Entry.Id] = match.Score
		semanticIDs = append(semanticIDs, match.Entry.Id)
	}
	monitor.AfterSemanticSearch(semanticIDs)

	// 2. Concepts named by the query. A classifier failure degrades the
	// search to semantic hits only.
	concepts := s.queryConcepts(ctx, query)
	monitor.AfterQueryConceptExtraction(concepts)

	// 3. Entries linked to those concepts
	conceptual := make(map[core.ID]bool)
	for _, concept := range concepts {
		ids, err := s.entryRepository.GetEntriesByConcept(ctx, concept.Id)
		if err != nil {
			s.logger.Warn("failed to get entries for concept", "conceptID", concept.Id, "err", err)
			continue
		}
		monitor.FoundRelatedEntries(concept.Tuple(), ids)
		for _, id := range ids {
			conceptual[id] = true
		}
	}
	monitor.AfterConceptuallyRelatedSearch(maps.Keys(conceptual))

	// 4. Combine and score
	candidates := make(map[core.ID]struct{}, len(semanticScores)+len(conceptual))
	for id := range semanticScores {
		candidates[id] = struct{}{}
	}
	for id := range conceptual {
		candidates[id] = struct{}{}
	}
	if len(candidates) == 0 {
		monitor.Finish(nil)
		return []*core.SearchResult{}, nil
	}

	ids := slices.Sorted(maps.Keys(candidates))
	entries, err := s.entryRepository.GetEntries(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving entries", "entryCount", len(ids), "err", err)
		return nil, err
	}
	monitor.AfterEntryRetrieval(entries)

	results := make([]*core.SearchResult, 0, len(entries))
	for _, entry := range entries {
		// Concept links may point at entries outside the tag filter or
		// entries marked pending again since they were linked.
		if entry == nil || !entry.Indexed() || !entry.HasAnyTag(tags) {
			continue
		}

		similarity, inSemantic := semanticScores[entry.Id]
		inConceptual := conceptual[entry.Id]

		var score float32
		switch {
		case inSemantic && inConceptual:
			score = 1.5 * similarity
			monitor.SemanticAndConceptualHit(entry)
		case inConceptual:
			score = 1.2
			monitor.ConceptualHit(entry)
		default:
			score = similarity
			monitor.SemanticHit(entry)
		}

		if containsAllQueryWords(entry.Contents, query) {
			score += 0.3
		}

		results = append(results, &core.SearchResult{Entry: entry, Score: score})
	}

	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	return results, nil
}

// queryConcepts extracts concepts from the query and keeps those already stored.
func (s *Searcher) queryConcepts(ctx context.Context, query string) []*core.Concept {
	extracted, err := s.extractor.ExtractConcepts(ctx, query)
	if err != nil {
		s.logger.Warn("error extracting concepts from query", "err", err)
		return nil
	}

	concepts := make([]*core.Concept, 0, len(extracted))
	for _, ec := range extracted {
		concept, err := s.conceptRepository.GetConcept(ctx, core.IDFromContent(ec.Tuple()))
		if err != nil {
			s.logger.Debug("concept not found", "tuple", ec.Tuple(), "err", err)
			continue
		}
		concepts = append(concepts, concept)
	}
	return concepts
}

// embedQuery returns the normalized query vector, from the cache when possible.
func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.queryCache != nil {
		if vector, ok := s.queryCache.Get(query); ok {
			return vector, nil
		}
	}
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	vector := core.NormalizeVector(embedding)
	if s.queryCache != nil {
		s.queryCache.Add(query, vector)
	}
	return vector, nil
}

// PurgeQueryCache drops cached query embeddings. Call it after the stored
// vectors were regenerated with a different model.
func (s *Searcher) PurgeQueryCache() {
	if s.queryCache != nil {
		s.queryCache.Purge()
	}
}
