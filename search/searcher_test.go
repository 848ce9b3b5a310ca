package search

import (
	"context"
	"errors"
	"iter"
	"slices"
	"testing"
	"time"

	"github.com/poiesic/membridge/ai"
	"github.com/poiesic/membridge/ai/mock"
	"github.com/poiesic/membridge/core"
	"github.com/poiesic/membridge/storage"
	"github.com/poiesic/membridge/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepos(t *testing.T) (storage.EntryRepository, storage.ConceptRepository) {
	t.Helper()
	entryRepo, conceptRepo, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		conceptRepo.Close()
		entryRepo.Close()
		backend.Close()
	})
	return entryRepo, conceptRepo
}

// addIndexed stores an entry as a finished reindex pass would leave it.
func addIndexed(t *testing.T, repo storage.EntryRepository, contents string, concepts []core.ConceptRef, tags ...string) *core.Entry {
	t.Helper()
	now := time.Now().UTC()
	added, err := repo.AddEntries(context.Background(), &core.Entry{
		Contents:  contents,
		Tags:      tags,
		Timestamp: now,
		IndexedAt: now,
		Vector:    mock.WordVector(contents),
		Concepts:  concepts,
	})
	require.NoError(t, err)
	return added[0]
}

// contractConcept stores the concept the mock extractor derives from the word "contract".
func contractConcept(t *testing.T, repo storage.ConceptRepository) []core.ConceptRef {
	t.Helper()
	concept, err := repo.GetOrCreateConcept(context.Background(), "contract", "thing", mock.WordVector("(thing,contract)"))
	require.NoError(t, err)
	return []core.ConceptRef{{ConceptId: concept.Id, Importance: 9}}
}

func resultIDs(results []*core.SearchResult) []core.ID {
	ids := make([]core.ID, len(results))
	for i, r := range results {
		ids[i] = r.Entry.Id
	}
	return ids
}

func TestNewSearcher(t *testing.T) {
	entryRepo, conceptRepo := setupRepos(t)
	provider := mock.NewMockProvider()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(entryRepo, conceptRepo, provider, WithLogger(nil), WithMinSimilarity(0.5))
		require.NoError(t, err)
		assert.Equal(t, float32(0.5), searcher.minSimilarity)
	})

	t.Run("invalid similarity", func(t *testing.T) {
		_, err := NewSearcher(entryRepo, conceptRepo, provider, WithMinSimilarity(1.5))
		assert.ErrorIs(t, err, ErrInvalidSimilarity)
	})

	t.Run("nil entry repository", func(t *testing.T) {
		_, err := NewSearcher(nil, conceptRepo, provider)
		assert.Equal(t, ErrEntryRepositoryRequired, err)
	})

	t.Run("nil concept repository", func(t *testing.T) {
		_, err := NewSearcher(entryRepo, nil, provider)
		assert.Equal(t, ErrConceptRepositoryRequired, err)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewSearcher(entryRepo, conceptRepo, nil)
		assert.Equal(t, ErrAIProviderRequired, err)
	})
}

func TestFindSimilar_EmptyDatabase(t *testing.T) {
	entryRepo, conceptRepo := setupRepos(t)
	searcher, err := NewSearcher(entryRepo, conceptRepo, mock.NewMockProvider())
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "test query", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = searcher.FindSimilar(context.Background(), "  ", nil, 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestFindSimilar_SemanticSearchOnly(t *testing.T) {
	entryRepo, conceptRepo := setupRepos(t)
	a := addIndexed(t, entryRepo, "Contract A", nil)
	b := addIndexed(t, entryRepo, "Contract B", nil)
	c := addIndexed(t, entryRepo, "Contract C", nil)
	addIndexed(t, entryRepo, "cooking recipes", nil)

	searcher, err := NewSearcher(entryRepo, conceptRepo, mock.NewMockProvider())
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "contract", nil, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.ID{a.Id, b.Id, c.Id}, resultIDs(results))

	for _, r := range results {
		// 1/sqrt(2) similarity plus the verbatim boost
		assert.InDelta(t, 0.7071+0.3, r.Score, 1e-3)
	}
}

func TestFindSimilar_TagFilter(t *testing.T) {
	entryRepo, conceptRepo := setupRepos(t)
	concepts := contractConcept(t, conceptRepo)
	a := addIndexed(t, entryRepo, "Contract A", nil, "session-a")
	addIndexed(t, entryRepo, "Contract B", nil, "session-b")
	linked := addIndexed(t, entryRepo, "the agreement", concepts, "session-a")
	addIndexed(t, entryRepo, "another agreement", concepts, "session-b")

	searcher, err := NewSearcher(entryRepo, conceptRepo, mock.NewMockProvider())
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "contract", []string{"session-a"}, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.ID{a.Id, linked.Id}, resultIDs(results))

	results, err = searcher.FindSimilar(context.Background(), "contract", nil, 10)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestFindSimilar_Scoring(t *testing.T) {
	entryRepo, conceptRepo := setupRepos(t)
	concepts := contractConcept(t, conceptRepo)
	both := addIndexed(t, entryRepo, "Contract A", concepts)
	conceptOnly := addIndexed(t, entryRepo, "the agreement", concepts)
	semanticOnly := addIndexed(t, entryRepo, "Contract B", nil)

	searcher, err := NewSearcher(entryRepo, conceptRepo, mock.NewMockProvider())
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "contract", nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []core.ID{both.Id, conceptOnly.Id, semanticOnly.Id}, resultIDs(results))
	assert.InDelta(t, 1.5*0.7071+0.3, results[0].Score, 1e-3)
	assert.InDelta(t, 1.2, results[1].Score, 1e-6)
	assert.InDelta(t, 0.7071+0.3, results[2].Score, 1e-3)
}

func TestFindSimilar_SkipsPendingEntries(t *testing.T) {
	entryRepo, conceptRepo := setupRepos(t)
	concepts := contractConcept(t, conceptRepo)
	_, err := entryRepo.AddEntries(context.Background(), &core.Entry{
		Contents:  "Contract A",
		Timestamp: time.Now().UTC(),
		Vector:    mock.WordVector("Contract A"),
		Concepts:  concepts,
	})
	require.NoError(t, err)

	searcher, err := NewSearcher(entryRepo, conceptRepo, mock.NewMockProvider())
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "contract", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_WithMaxHits(t *testing.T) {
	entryRepo, conceptRepo := setupRepos(t)
	for _, text := range []string{"Contract A", "Contract B", "Contract C", "Contract D"} {
		addIndexed(t, entryRepo, text, nil)
	}

	searcher, err := NewSearcher(entryRepo, conceptRepo, mock.NewMockProvider())
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "contract", nil, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = searcher.FindSimilar(context.Background(), "contract", nil, 0)
	require.NoError(t, err)
	assert.Len(t, results, 4, "a non-positive limit falls back to the default")
}

func TestFindSimilar_ExtractorFailureDegrades(t *testing.T) {
	entryRepo, conceptRepo := setupRepos(t)
	concepts := contractConcept(t, conceptRepo)
	a := addIndexed(t, entryRepo, "Contract A", nil)
	addIndexed(t, entryRepo, "the agreement", concepts)

	provider := mock.NewMockProvider()
	provider.GetMockExtractor().SetExtractConceptsFunc(func(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
		return nil, errors.New("classifier offline")
	})
	searcher, err := NewSearcher(entryRepo, conceptRepo, provider)
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "contract", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{a.Id}, resultIDs(results))
}

func TestFindSimilar_EmbedderFailure(t *testing.T) {
	entryRepo, conceptRepo := setupRepos(t)
	provider := mock.NewMockProvider()
	boom := errors.New("embedder offline")
	provider.GetMockEmbedder().SetEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	})
	searcher, err := NewSearcher(entryRepo, conceptRepo, provider)
	require.NoError(t, err)

	_, err = searcher.FindSimilar(context.Background(), "contract", nil, 10)
	assert.ErrorIs(t, err, boom)
}

type recordingMonitor struct {
	stages   []string
	concepts []string
	results  int
}

func (m *recordingMonitor) Start(string) { m.stages = append(m.stages, "start") }
func (m *recordingMonitor) AfterSemanticSearch([]core.ID) {
	m.stages = append(m.stages, "semantic")
}
func (m *recordingMonitor) AfterQueryConceptExtraction(concepts []*core.Concept) {
	m.stages = append(m.stages, "concepts")
	for _, c := range concepts {
		m.concepts = append(m.concepts, c.Tuple())
	}
}
func (m *recordingMonitor) FoundRelatedEntries(string, []core.ID) {}
func (m *recordingMonitor) AfterConceptuallyRelatedSearch(ids iter.Seq[core.ID]) {
	m.stages = append(m.stages, "conceptual")
}
func (m *recordingMonitor) AfterEntryRetrieval([]*core.Entry) {
	m.stages = append(m.stages, "retrieval")
}
func (m *recordingMonitor) SemanticAndConceptualHit(*core.Entry) {}
func (m *recordingMonitor) SemanticHit(*core.Entry)              {}
func (m *recordingMonitor) ConceptualHit(*core.Entry)            {}
func (m *recordingMonitor) Finish(results []*core.SearchResult) {
	m.stages = append(m.stages, "finish")
	m.results = len(results)
}

func TestFindSimilarWithMonitor(t *testing.T) {
	entryRepo, conceptRepo := setupRepos(t)
	concepts := contractConcept(t, conceptRepo)
	addIndexed(t, entryRepo, "Contract A", concepts)

	searcher, err := NewSearcher(entryRepo, conceptRepo, mock.NewMockProvider())
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := searcher.FindSimilarWithMonitor(context.Background(), "contract", nil, 10, monitor)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, []string{"start", "semantic", "concepts", "conceptual", "retrieval", "finish"}, monitor.stages)
	assert.Equal(t, []string{"(thing,contract)"}, monitor.concepts)
	assert.Equal(t, 1, monitor.results)

	// LogMonitor must accept every stage without panicking.
	_, err = searcher.FindSimilarWithMonitor(context.Background(), "contract", nil, 10, NewLogMonitor(nil))
	require.NoError(t, err)
}

func TestContainsAllQueryWords(t *testing.T) {
	tests := []struct {
		doc, query string
		want       bool
	}{
		{"Contract A: supply agreement", "supply agreement", true},
		{"Contract A: supply agreement", "what is the supply agreement?", true},
		{"Contract A: supply agreement", "lease", false},
		{"anything", "the of and", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsAllQueryWords(tt.doc, tt.query), "%q in %q", tt.query, tt.doc)
	}
	assert.True(t, slices.Equal([]string{"contract", "a1"}, tokenize("The CONTRACT, a1!")))
}

func TestFindSimilar_QueryCache(t *testing.T) {
	entryRepo, conceptRepo := setupRepos(t)
	addIndexed(t, entryRepo, "Contract A", nil)

	provider := mock.NewMockProvider()
	embedder := provider.GetMockEmbedder()
	searcher, err := NewSearcher(entryRepo, conceptRepo, provider, WithQueryCache(8))
	require.NoError(t, err)

	ctx := context.Background()
	for range 3 {
		results, err := searcher.FindSimilar(ctx, "contract", nil, 10)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	}
	assert.Equal(t, 1, embedder.CallCount())

	searcher.PurgeQueryCache()
	_, err = searcher.FindSimilar(ctx, "contract", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.CallCount())

	_, err = NewSearcher(entryRepo, conceptRepo, provider, WithQueryCache(-1))
	assert.ErrorIs(t, err, ErrInvalidCacheSize)
}
