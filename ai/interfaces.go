package ai

import "context"

// Embedder turns text into vectors for similarity search.
// Implementations are shared by concurrent reindex batches and must be
// safe for concurrent use.
type Embedder interface {
	// EmbedText embeds a single text. Queries and entries go through the
	// same model, so their vectors are comparable.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts embeds texts in one request. Result i belongs to texts[i];
	// a failure for any text fails the whole call.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ConceptExtractor pulls typed concepts out of text.
// It runs during reindex for stored entries and at search time for queries.
type ConceptExtractor interface {
	// ExtractConcepts returns the concepts found in text, possibly none.
	ExtractConcepts(ctx context.Context, text string) ([]ExtractedConcept, error)
}

// ExtractedConcept is one concept reported by a ConceptExtractor.
type ExtractedConcept struct {
	// Name is lowercase and singular, 1-3 words.
	// Example: "supply contract", "acme corp", "renewal"
	Name string

	// Type categorizes the concept, normally one of ConceptTypes
	// (e.g., "document", "organization", "event").
	Type string

	// Importance runs from 1 to 10; higher means more central to the text.
	Importance int
}

// Tuple returns the "(type,name)" form whose hash identifies the stored concept.
func (c ExtractedConcept) Tuple() string {
	return "(" + c.Type + "," + c.Name + ")"
}

// AIProvider owns an Embedder and a ConceptExtractor built from one Config.
type AIProvider interface {
	Embedder() Embedder
	ConceptExtractor() ConceptExtractor

	// Close releases the provider's clients. Neither service may be used
	// afterwards.
	Close() error
}
