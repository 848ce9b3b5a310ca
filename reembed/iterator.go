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

package reembed

import (
	"context"
	"slices"

	"github.com/poiesic/membridge/core"
	"github.com/poiesic/membridge/storage"
)

// DefaultBatchSize is the default number of items handed to each batch.
const DefaultBatchSize = 100

// Iterator walks a list of items in fixed-size batches.
type Iterator[T any] struct {
	load      func(ctx context.Context) ([]T, error)
	batchSize int
}

// NewEntryIterator iterates over every indexed entry. Pending entries are
// skipped since the next reindex embeds them anyway.
func NewEntryIterator(repo storage.EntryRepository, batchSize int) *Iterator[*core.Entry] {
	return newIterator(func(ctx context.Context) ([]*core.Entry, error) {
		entries, err := repo.ListEntries(ctx)
		if err != nil {
			return nil, err
		}
		return slices.DeleteFunc(entries, func(e *core.Entry) bool { return !e.Indexed() }), nil
	}, batchSize)
}

// NewConceptIterator iterates over every stored concept.
func NewConceptIterator(repo storage.ConceptRepository, batchSize int) *Iterator[*core.Concept] {
	return newIterator(repo.ListConcepts, batchSize)
}

func newIterator[T any](load func(ctx context.Context) ([]T, error), batchSize int) *Iterator[T] {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Iterator[T]{load: load, batchSize: batchSize}
}

// Count returns how many items a ForEach would visit right now.
func (it *Iterator[T]) Count(ctx context.Context) (int, error) {
	items, err := it.load(ctx)
	return len(items), err
}

// ForEach calls fn for each batch. Iteration stops on the first error from
// fn or when the context is cancelled between batches.
func (it *Iterator[T]) ForEach(ctx context.Context, fn func([]T) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	items, err := it.load(ctx)
	if err != nil {
		return err
	}

	for batch := range slices.Chunk(items, it.batchSize) {
		if err := fn(batch); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
