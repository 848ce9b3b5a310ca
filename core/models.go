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

package core

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// String returns the decimal form used by tool callers.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses the decimal form produced by ID.String.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(v), nil
}

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Entry is a single piece of data stored in the knowledge base.
// Vector, Concepts and IndexedAt are populated by a reindex pass.
type Entry struct {
	Id         ID
	Contents   string
	Tags       []string          // Session tags attached at write time
	Timestamp  time.Time         // When the data was submitted
	InsertedAt time.Time         // When the entry was inserted into the database
	UpdatedAt  time.Time         // When the entry was last updated
	IndexedAt  time.Time         // When a reindex pass last covered the entry; zero while pending
	Concepts   []ConceptRef      // Concepts extracted from the contents
	Vector     []float32         // Embedding vector for semantic search
	Metadata   map[string]string // Optional caller metadata
}

// Indexed reports whether a reindex pass has covered the entry.
func (e *Entry) Indexed() bool {
	return !e.IndexedAt.IsZero()
}

// HasAnyTag reports whether the entry carries at least one of tags.
// An empty filter matches every entry.
func (e *Entry) HasAnyTag(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, tag := range tags {
		if slices.Contains(e.Tags, tag) {
			return true
		}
	}
	return false
}

// Describe returns the listing view of the entry.
func (e *Entry) Describe() EntryMetadata {
	preview := []rune(e.Contents)
	if len(preview) > previewLength {
		preview = append(preview[:previewLength], '…')
	}
	return EntryMetadata{
		ID:         e.Id.String(),
		Tags:       slices.Clone(e.Tags),
		Preview:    string(preview),
		Length:     len(e.Contents),
		InsertedAt: e.InsertedAt,
		Indexed:    e.Indexed(),
	}
}

const previewLength = 80

// EntryMetadata describes a stored entry without its vector or concepts.
type EntryMetadata struct {
	ID         string    `json:"id"`
	Tags       []string  `json:"tags,omitempty"`
	Preview    string    `json:"preview"`
	Length     int       `json:"length"`
	InsertedAt time.Time `json:"inserted_at"`
	Indexed    bool      `json:"indexed"`
}

// Concept represents a domain concept extracted from entries.
type Concept struct {
	Id         ID
	Name       string
	Type       string
	Vector     []float32 // Embedding vector for the concept (populated by processors)
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Tuple returns a string representation of the concept as "(Type,Name)".
// This is used for generating deterministic IDs.
func (c *Concept) Tuple() string {
	return "(" + c.Type + "," + c.Name + ")"
}

// ConceptRef represents a reference to a concept with an importance score.
type ConceptRef struct {
	ConceptId  ID
	Importance int // Importance score from 1-10
}

// SearchResult represents a search result with the full entry and relevance score.
type SearchResult struct {
	Entry *Entry
	Score float32
}

// Checkpoint records how far a reindex processor has progressed.
type Checkpoint struct {
	ProcessorType string
	LastID        ID
	UpdatedAt     time.Time
}
