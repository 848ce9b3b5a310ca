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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/membridge/core"
)

// Tools are the synchronous operations exposed to agents. They are safe
// for concurrent use.
type Tools struct {
	engine      Engine
	executor    *Executor
	coalescer   *Coalescer
	timeout     time.Duration
	searchLimit int
	logger      *slog.Logger
	metrics     *Metrics
	closeOnce   sync.Once
}

// NewTools creates Tools over engine with their own executor and coalescer.
func NewTools(engine Engine, opts ...Option) (*Tools, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}
	cfg := newConfig(opts)
	t := &Tools{
		engine:      engine,
		executor:    NewExecutor(opts...),
		timeout:     cfg.timeout,
		searchLimit: cfg.searchLimit,
		logger:      cfg.logger.With("component", "tools"),
		metrics:     cfg.metrics,
	}
	t.coalescer = NewCoalescer(t.reindex, opts...)
	return t, nil
}

// reindex runs one pass on the executor, so it never overlaps another
// engine call. ctx is the coalescer's; closing the coalescer cancels the
// pass.
func (t *Tools) reindex(ctx context.Context) error {
	_, err := t.executor.Run(ctx, "reindex", func(execCtx context.Context) (any, error) {
		passCtx, cancel := context.WithCancel(execCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		return nil, t.engine.Reindex(passCtx)
	}, 0)
	return err
}

// Add stores data with tags and returns a confirmation. The entry is
// committed when Add returns; it becomes searchable after the next
// reindex pass, which Add schedules.
func (t *Tools) Add(ctx context.Context, data string, tags ...string) (string, error) {
	id, err := Call(ctx, t.executor, "add", t.timeout, func(ctx context.Context) (core.ID, error) {
		id, err := t.engine.Add(ctx, data, tags)
		if err != nil {
			return 0, err
		}
		t.coalescer.Notify()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Item added to knowledge base (entry %s)", id), nil
}

// Search waits for pending reindex work and then searches. A non-empty
// tags restricts results to entries carrying one of them. A limit of zero
// or less uses the configured default.
func (t *Tools) Search(ctx context.Context, query string, tags []string, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		limit = t.searchLimit
	}
	if err := t.drain(ctx); err != nil {
		return nil, err
	}
	return Call(ctx, t.executor, "search", t.timeout, func(ctx context.Context) ([]*core.SearchResult, error) {
		return t.engine.Search(ctx, query, tags, limit)
	})
}

// ListEntries lists every entry. It does not wait for pending reindex work.
func (t *Tools) ListEntries(ctx context.Context) ([]core.EntryMetadata, error) {
	return Call(ctx, t.executor, "list_entries", t.timeout, func(ctx context.Context) ([]core.EntryMetadata, error) {
		return t.engine.ListEntries(ctx)
	})
}

// Delete removes an entry. It does not schedule a reindex.
func (t *Tools) Delete(ctx context.Context, entryID string) (string, error) {
	_, err := Call(ctx, t.executor, "delete", t.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.engine.Delete(ctx, entryID)
	})
	if err != nil {
		return "", err
	}
	return "Successfully deleted data entry: " + entryID, nil
}

// Drain blocks until no reindex is scheduled or running.
func (t *Tools) Drain(ctx context.Context) error {
	return t.coalescer.Drain(ctx)
}

// Pending reports how many calls are queued for the executor.
func (t *Tools) Pending() int {
	return t.executor.Pending()
}

// ReindexState reports the coalescer state.
func (t *Tools) ReindexState() State {
	return t.coalescer.State()
}

// Close stops background reindexing and the executor.
func (t *Tools) Close() {
	t.closeOnce.Do(func() {
		t.coalescer.Close()
		t.executor.Close()
	})
}

// drain is Drain bounded by the call timeout. A failed pass is logged and
// the search goes ahead on whatever the engine has indexed.
func (t *Tools) drain(ctx context.Context) error {
	drainCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	err := t.coalescer.Drain(drainCtx)
	var reindexErr *ReindexError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &reindexErr):
		t.logger.Warn("searching without a complete reindex", "err", reindexErr)
		return nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		t.metrics.observeTimeout("drain")
		return &TimeoutError{Op: "drain", Timeout: t.timeout}
	default:
		return err
	}
}
