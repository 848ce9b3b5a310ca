package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/poiesic/membridge/ai"
)

// maxConcepts caps how many words the default extractor turns into concepts.
const maxConcepts = 5

// MockConceptExtractor is a test double for ai.ConceptExtractor.
type MockConceptExtractor struct {
	mu                  sync.RWMutex
	extractConceptsFunc func(ctx context.Context, text string) ([]ai.ExtractedConcept, error)

	callCount atomic.Int64
}

// NewMockConceptExtractor creates a mock extractor with default word-based behavior.
func NewMockConceptExtractor() *MockConceptExtractor {
	return &MockConceptExtractor{}
}

// SetExtractConceptsFunc overrides ExtractConcepts. Nil restores the default.
func (m *MockConceptExtractor) SetExtractConceptsFunc(fn func(ctx context.Context, text string) ([]ai.ExtractedConcept, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractConceptsFunc = fn
}

// ExtractConcepts returns one concept per leading word of text.
// Words longer than five letters are typed "thing", the rest "abstract_concept".
// Importance starts at 10 and drops by one per word.
func (m *MockConceptExtractor) ExtractConcepts(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
	m.callCount.Add(1)

	m.mu.RLock()
	fn := m.extractConceptsFunc
	m.mu.RUnlock()
	if fn != nil {
		return fn(ctx, text)
	}

	words := Words(text)
	concepts := make([]ai.ExtractedConcept, 0, min(len(words), maxConcepts))
	importance := 10
	for _, word := range words {
		if len(concepts) == maxConcepts {
			break
		}

		conceptType := "abstract_concept"
		if len(word) > 5 {
			conceptType = "thing"
		}

		concepts = append(concepts, ai.ExtractedConcept{
			Name:       word,
			Type:       conceptType,
			Importance: importance,
		})
		if importance > 1 {
			importance--
		}
	}

	return concepts, nil
}

// CallCount returns how many extraction calls were made.
func (m *MockConceptExtractor) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and any injected behavior.
func (m *MockConceptExtractor) Reset() {
	m.callCount.Store(0)
	m.SetExtractConceptsFunc(nil)
}
