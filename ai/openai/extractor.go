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

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/membridge/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrMalformedResponse is returned when the classifier never produced parseable JSON.
var ErrMalformedResponse = errors.New("malformed classifier response")

// ConceptExtractor implements ai.ConceptExtractor using OpenAI-compatible chat APIs.
type ConceptExtractor struct {
	client        llms.Model
	minImportance int
	attempts      int
	logger        *slog.Logger
}

// concept matches one element of the classifier's JSON output.
type concept struct {
	Concept    string `json:"concept"`
	Type       string `json:"type"`
	Importance int    `json:"importance"`
}

type analysis struct {
	CoreConcepts []concept `json:"core_concepts"`
}

func newConceptExtractor(config *ai.Config, logger *slog.Logger) (*ConceptExtractor, error) {
	client, err := openai.New(
		openai.WithBaseURL(config.ClassifierHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ClassifierModel),
	)
	if err != nil {
		return nil, fmt.Errorf("creating classifier client: %w", err)
	}
	return newConceptExtractorWithModel(client, config, logger), nil
}

func newConceptExtractorWithModel(client llms.Model, config *ai.Config, logger *slog.Logger) *ConceptExtractor {
	return &ConceptExtractor{
		client:        client,
		minImportance: config.MinImportance,
		attempts:      max(config.ExtractionAttempts, 1),
		logger:        logger.With("component", "openai-extractor"),
	}
}

// NewConceptExtractor creates a standalone concept extractor from config.
func NewConceptExtractor(config *ai.Config, opts ...Option) (*ConceptExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newConceptExtractor(config, buildOptions(opts).logger)
}

// ExtractConcepts extracts concepts from text using an LLM.
// Concepts below the configured minimum importance are dropped and the rest
// are returned most important first.
func (e *ConceptExtractor) ExtractConcepts(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
	text = scrubString(text)
	if text == "" {
		return []ai.ExtractedConcept{}, nil
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, buildSystemPrompt()),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}

	var lastErr error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			lastErr = err
			e.logger.Warn("classifier request failed", "attempt", attempt, "err", err)
			continue
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return []ai.ExtractedConcept{}, nil
		}

		responseText := repairJSON(cleanResponse(response.Choices[0].Content))

		var result analysis
		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = fmt.Errorf("%w: %w", ErrMalformedResponse, err)
			e.logger.Warn("error parsing classifier response",
				"attempt", attempt,
				"response", responseText,
				"err", err)
			continue
		}

		extracted := normalizeConcepts(result.CoreConcepts, e.minImportance)
		e.logger.Debug("extracted concepts",
			"total", len(result.CoreConcepts),
			"kept", len(extracted))
		return extracted, nil
	}

	e.logger.Error("concept extraction failed", "attempts", e.attempts, "err", lastErr)
	return nil, lastErr
}
