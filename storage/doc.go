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


// Package storage provides the storage abstraction layer for membridge.
//
// This package defines repository interfaces that decouple the knowledge
// engine from its storage backend.
//
// # Architecture
//
//   - EntryRepository: entries plus their date, concept, tag and pending indexes
//   - ConceptRepository: concepts keyed by the hash of their (type, name) tuple
//   - CheckpointRepository: reindex processor progress
//
// # Usage
//
// Open the BadgerDB backend and derive the repositories from it:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	entries, err := badger.NewEntryRepository(backend)
//
// Tests use in-memory storage:
//
//	entries, concepts, checkpoints, backend, err := badger.NewMemoryRepositories()
//
// # Pending entries
//
// An entry without IndexedAt sits in the pending index. A reindex pass reads
// GetPendingEntries, embeds and links the entries, then sets IndexedAt through
// UpdateEntries, which removes them from the index.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
