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

// Package ai provides abstractions for the AI services used by membridge.
//
// The reindex pipeline and the searcher depend only on the interfaces
// defined here:
//
//   - Embedder: generates vector embeddings from text
//   - ConceptExtractor: extracts typed, weighted concepts from text
//   - AIProvider: bundles both and owns their lifecycle
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible services through langchaingo
//   - ai/mock: deterministic test doubles
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Contract B: NDA with Initech")
//
//	// In tests
//	provider := mock.NewMockProvider()
//	provider.GetMockEmbedder().SetEmbedTextFunc(...)
package ai
