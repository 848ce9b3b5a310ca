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

package bridge

import (
	"context"

	"github.com/poiesic/membridge/core"
)

// Engine is the knowledge engine the bridge drives. Calls may be slow and
// may fail. Every call, Reindex included, runs on the single executor
// worker, so the bridge never issues two Engine calls at once.
type Engine interface {
	Add(ctx context.Context, data string, tags []string) (core.ID, error)
	Reindex(ctx context.Context) error
	Search(ctx context.Context, query string, tags []string, limit int) ([]*core.SearchResult, error)
	ListEntries(ctx context.Context) ([]core.EntryMetadata, error)
	Delete(ctx context.Context, entryID string) error
}
