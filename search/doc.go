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

// Package search provides hybrid semantic and conceptual search over the
// knowledge base.
//
// The Searcher combines three signals:
//   - Semantic similarity between the query embedding and entry vectors
//   - Concepts extracted from the query that entries are linked to
//   - Verbatim keyword matching with stop-word filtering
//
// Only indexed entries are searched. A tag filter restricts every stage to
// entries carrying at least one of the given tags, which is how sessions
// stay isolated from each other.
package search
