package openai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/poiesic/membridge/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type scriptedModel struct {
	mu        sync.Mutex
	replies   []string
	errs      []error
	calls     int
	lastInput []llms.MessageContent
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	m.lastInput = messages
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.replies) {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.replies[i]}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func testExtractor(model llms.Model, attempts int) *ConceptExtractor {
	config := ai.NewConfig(ai.WithMinImportance(5), ai.WithExtractionAttempts(attempts))
	return newConceptExtractorWithModel(model, config, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCleanResponse(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanResponse("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanResponse("  ```{\"a\":1}```  "))
	assert.Equal(t, `{"a":1}`, cleanResponse(`{"a":1}`))
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"well formed", `{"concept":"x","type":"y"}`, `{"concept":"x","type":"y"}`},
		{"missing quote after comma", `{"concept":"x", type":"y"}`, `{"concept":"x", "type":"y"}`},
		{"missing quote after brace", `[{concept":"x"}]`, `[{"concept":"x"}]`},
		{"literal is untouched", `{"ok": true, "n": null}`, `{"ok": true, "n": null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairJSON(tt.in))
		})
	}
}

func TestScrubString(t *testing.T) {
	assert.Equal(t, "Contract A supply agreement", scrubString(" Contract A: supply agreement. "))
	assert.Empty(t, scrubString("?!"))
}

func TestNormalizeConcepts(t *testing.T) {
	raw := []concept{
		{Concept: "Acme  Corp", Type: "organization", Importance: 7},
		{Concept: "supply agreement", Type: "agreement", Importance: 12},
		{Concept: "acme corp", Type: "organization", Importance: 9},
		{Concept: "weather", Type: "abstract concept", Importance: 5},
		{Concept: "noise", Type: "thing", Importance: 2},
		{Concept: " ", Type: "thing", Importance: 9},
	}

	got := normalizeConcepts(raw, 5)
	assert.Equal(t, []ai.ExtractedConcept{
		{Name: "supply agreement", Type: "agreement", Importance: 10},
		{Name: "acme corp", Type: "organization", Importance: 9},
		{Name: "weather", Type: "abstract_concept", Importance: 5},
	}, got)
}

func TestExtractConcepts(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"```json\n{\"core_concepts\":[{concept\":\"invoice\",\"type\":\"document\",\"importance\":9},{\"concept\":\"ok\",\"type\":\"thing\",\"importance\":1}]}\n```",
	}}
	e := testExtractor(model, 3)

	concepts, err := e.ExtractConcepts(context.Background(), "Invoice 4411 is overdue.")
	require.NoError(t, err)
	assert.Equal(t, []ai.ExtractedConcept{{Name: "invoice", Type: "document", Importance: 9}}, concepts)

	require.Len(t, model.lastInput, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.lastInput[0].Role)
	assert.Equal(t, llms.TextContent{Text: "Invoice 4411 is overdue"}, model.lastInput[1].Parts[0])
}

func TestExtractConcepts_RetriesMalformedJSON(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"not json",
		`{"core_concepts":[{"concept":"globex","type":"organization","importance":8}]}`,
	}}
	e := testExtractor(model, 3)

	concepts, err := e.ExtractConcepts(context.Background(), "Globex")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "globex", concepts[0].Name)
	assert.Equal(t, 2, model.calls)
}

func TestExtractConcepts_GivesUp(t *testing.T) {
	model := &scriptedModel{replies: []string{"nope", "still nope"}}
	e := testExtractor(model, 2)

	_, err := e.ExtractConcepts(context.Background(), "Globex")
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, 2, model.calls)
}

func TestExtractConcepts_RequestErrors(t *testing.T) {
	boom := errors.New("connection refused")
	model := &scriptedModel{
		errs:    []error{boom, nil},
		replies: []string{"", `{"core_concepts":[]}`},
	}
	e := testExtractor(model, 2)

	concepts, err := e.ExtractConcepts(context.Background(), "Globex")
	require.NoError(t, err)
	assert.Empty(t, concepts)

	model = &scriptedModel{errs: []error{boom, boom}}
	_, err = testExtractor(model, 2).ExtractConcepts(context.Background(), "Globex")
	assert.ErrorIs(t, err, boom)
}

func TestExtractConcepts_BlankInput(t *testing.T) {
	model := &scriptedModel{}
	concepts, err := testExtractor(model, 3).ExtractConcepts(context.Background(), " ... ")
	require.NoError(t, err)
	assert.Empty(t, concepts)
	assert.Zero(t, model.calls)
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	config := ai.NewConfig(ai.WithEmbeddingModel(""))
	_, err := NewProvider(config)
	assert.ErrorIs(t, err, ai.ErrInvalidConfig)
}

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider(ai.DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, provider.Embedder())
	assert.NotNil(t, provider.ConceptExtractor())
	assert.NoError(t, provider.Close())
}
