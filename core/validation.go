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
	"fmt"
	"strings"
	"time"
)

// ValidateEntry validates an Entry according to domain rules.
// Validation rules:
//   - Contents must not be blank
//   - Every tag must be non-empty and free of NUL bytes
//   - Timestamp must not be in the future
//
// NOT validated (populated by reindex):
//   - Vector, Concepts, IndexedAt
//   - ID (0 is valid before the sequence assigns one)
func ValidateEntry(entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}

	if strings.TrimSpace(entry.Contents) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptyContent)
	}

	for _, tag := range entry.Tags {
		if err := ValidateTag(tag); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
		}
	}

	if !IsValidTimestamp(entry.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateConcept validates a Concept according to domain rules.
// Validation rules:
//   - Name must not be empty
//   - Type must not be empty
//
// NOT validated (populated by processors):
//   - Vector (can be empty until embedded)
//   - ID (0 is valid from database sequences)
func ValidateConcept(concept *Concept) error {
	if concept == nil {
		return fmt.Errorf("%w: concept is nil", ErrInvalidConcept)
	}

	if concept.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConcept, ErrEmptyConceptName)
	}

	if concept.Type == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConcept, ErrEmptyConceptType)
	}

	return nil
}

// ValidateTag checks that a tag can be stored in the tag index.
func ValidateTag(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return fmt.Errorf("%w: tag is empty", ErrInvalidTag)
	}
	if strings.ContainsRune(tag, 0) {
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidTag, tag)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
