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

// Package openai implements ai.AIProvider against OpenAI-compatible services.
//
// It uses langchaingo to talk to OpenAI or to local OpenAI-compatible
// servers such as Ollama, LocalAI or vLLM. Embedding and classification may
// live on different hosts.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithEmbeddingModel("embeddinggemma"),
//	    ai.WithClassifierModel("qwen2.5:3b"),
//	)
//
//	provider, err := openai.NewProvider(config, openai.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Contract A: supply agreement")
//	concepts, err := provider.ConceptExtractor().ExtractConcepts(ctx, "Contract A: supply agreement")
//
// The extractor asks the classifier for JSON, repairs the most common
// formatting slips and retries up to Config.ExtractionAttempts times.
package openai
