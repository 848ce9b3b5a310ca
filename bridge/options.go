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
	"log/slog"
	"time"
)

const (
	// DefaultTimeout bounds every delegated call.
	DefaultTimeout = 120 * time.Second

	// DefaultSearchLimit is used when a search asks for no limit.
	DefaultSearchLimit = 100

	// DefaultQueueSize is the executor's buffered queue length.
	DefaultQueueSize = 64

	defaultBackoffBase = time.Second
	defaultBackoffMax  = 30 * time.Second
)

// Option configures Tools, Executor and Coalescer. Each reads only the
// settings it uses.
type Option func(*config)

type config struct {
	timeout     time.Duration
	searchLimit int
	queueSize   int
	settleDelay time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration
	logger      *slog.Logger
	metrics     *Metrics
}

func newConfig(opts []Option) *config {
	cfg := &config{
		timeout:     DefaultTimeout,
		searchLimit: DefaultSearchLimit,
		queueSize:   DefaultQueueSize,
		backoffBase: defaultBackoffBase,
		backoffMax:  defaultBackoffMax,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithTimeout sets how long a caller waits for a delegated call.
// Zero or less waits until the call completes.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// WithSearchLimit sets the result limit used when a search passes none.
func WithSearchLimit(limit int) Option {
	return func(c *config) {
		if limit > 0 {
			c.searchLimit = limit
		}
	}
}

// WithQueueSize sets the executor queue length. Submitters block while
// the queue is full.
func WithQueueSize(size int) Option {
	return func(c *config) {
		if size >= 0 {
			c.queueSize = size
		}
	}
}

// WithSettleDelay makes the coalescer wait after the first write of a
// burst before starting a reindex pass.
func WithSettleDelay(delay time.Duration) Option {
	return func(c *config) {
		if delay >= 0 {
			c.settleDelay = delay
		}
	}
}

// WithRetryBackoff sets the exponential backoff between failed reindex passes.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(c *config) {
		if base > 0 {
			c.backoffBase = base
		}
		if maxDelay >= c.backoffBase {
			c.backoffMax = maxDelay
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records executor and coalescer activity in m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}
