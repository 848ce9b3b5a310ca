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

package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/poiesic/membridge/core"
	"github.com/poiesic/membridge/storage"
)

// processor enriches a batch of entries in place during a reindex pass.
type processor interface {
	// process enriches entries and returns the ones it completed.
	// Entries missing from the result stay pending.
	process(ctx context.Context, entries []*core.Entry) ([]*core.Entry, error)

	// checkpoint persists the highest entry ID the processor has completed.
	checkpoint(ctx context.Context) error
}

// progress tracks the highest completed ID for one processor type.
// Batches run concurrently, so it is guarded by a mutex.
type progress struct {
	processorType string
	checkpoints   storage.CheckpointRepository
	mu            sync.Mutex
	lastID        core.ID
	saved         core.ID
}

func (p *progress) advance(entries []*core.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, entry := range entries {
		if entry.Id > p.lastID {
			p.lastID = entry.Id
		}
	}
}

func (p *progress) save(ctx context.Context) error {
	p.mu.Lock()
	lastID := p.lastID
	p.mu.Unlock()

	if lastID == 0 || lastID == p.saved {
		return nil
	}
	err := p.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		ProcessorType: p.processorType,
		LastID:        lastID,
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	p.saved = lastID
	return nil
}
