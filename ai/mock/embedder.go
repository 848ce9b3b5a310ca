package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
)

// Dimensions is the length of every vector the default MockEmbedder returns.
const Dimensions = 384

// MockEmbedder is a test double for ai.Embedder.
type MockEmbedder struct {
	mu             sync.RWMutex
	embedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	callCount atomic.Int64
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// SetEmbedTextFunc overrides EmbedText. Nil restores the default.
func (m *MockEmbedder) SetEmbedTextFunc(fn func(ctx context.Context, text string) ([]float32, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedTextFunc = fn
}

// SetEmbedTextsFunc overrides EmbedTexts. Nil restores the default.
func (m *MockEmbedder) SetEmbedTextsFunc(fn func(ctx context.Context, texts []string) ([][]float32, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedTextsFunc = fn
}

// EmbedText generates a deterministic embedding for text.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)

	m.mu.RLock()
	fn := m.embedTextFunc
	m.mu.RUnlock()
	if fn != nil {
		return fn(ctx, text)
	}
	return WordVector(text), nil
}

// EmbedTexts generates deterministic embeddings for texts.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount.Add(1)

	m.mu.RLock()
	fn := m.embedTextsFunc
	m.mu.RUnlock()
	if fn != nil {
		return fn(ctx, texts)
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = WordVector(text)
	}
	return embeddings, nil
}

// CallCount returns how many embedding calls were made.
func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and any injected behavior.
func (m *MockEmbedder) Reset() {
	m.callCount.Store(0)
	m.SetEmbedTextFunc(nil)
	m.SetEmbedTextsFunc(nil)
}

// WordVector hashes every word of text into one of Dimensions buckets and
// returns the unit-length result. Text without words yields a zero vector.
func WordVector(text string) []float32 {
	vector := make([]float32, Dimensions)
	for _, word := range Words(text) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vector[h.Sum32()%Dimensions]++
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v * v)
	}
	if sumSquares == 0 {
		return vector
	}
	norm := float32(1 / math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] *= norm
	}
	return vector
}

// Words lowercases text and splits it into punctuation-trimmed words.
func Words(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := fields[:0]
	for _, f := range fields {
		if w := strings.Trim(f, ".,!?;:\"'()[]{}—–-"); w != "" {
			words = append(words, w)
		}
	}
	return words
}
