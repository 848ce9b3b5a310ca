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
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// State is the coalescer's reindex state.
type State int

const (
	// StateIdle means no reindex is scheduled or running.
	StateIdle State = iota
	// StateScheduled means a pass has been requested but has not started.
	StateScheduled
	// StateRunning means a pass is executing.
	StateRunning
	// StateRunningWithPending means a pass is executing and writes arrived
	// after it started.
	StateRunningWithPending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	case StateRunningWithPending:
		return "running_with_pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ReindexFunc runs one reindex pass.
type ReindexFunc func(ctx context.Context) error

// pass is closed when a reindex pass ends. err is set before done closes.
type pass struct {
	done chan struct{}
	err  *ReindexError
}

func newPass() *pass {
	return &pass{done: make(chan struct{})}
}

// Coalescer turns write notifications into reindex passes. A single
// supervising goroutine runs every pass, so passes never overlap. Writes
// that arrive while a pass runs are covered by exactly one follow-up pass.
type Coalescer struct {
	reindex     ReindexFunc
	settleDelay time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration

	mu       sync.Mutex
	state    State
	failures int
	current  *pass

	signal  chan struct{}
	quit    chan struct{}
	stopped chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
	started   bool
	closed    bool

	logger  *slog.Logger
	metrics *Metrics
}

// NewCoalescer creates a coalescer that calls reindex. The supervising
// goroutine starts on the first Start or Notify.
func NewCoalescer(reindex ReindexFunc, opts ...Option) *Coalescer {
	cfg := newConfig(opts)
	ctx, cancel := context.WithCancel(context.Background())
	return &Coalescer{
		reindex:     reindex,
		settleDelay: cfg.settleDelay,
		backoffBase: cfg.backoffBase,
		backoffMax:  cfg.backoffMax,
		current:     newPass(),
		signal:      make(chan struct{}, 1),
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		logger:      cfg.logger.With("component", "coalescer"),
		metrics:     cfg.metrics,
	}
}

// Start launches the supervising goroutine. Only the first call has any
// effect, and none once the coalescer is closed.
func (c *Coalescer) Start() {
	c.startOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.started = true
		go c.loop()
	})
}

// Notify records a write. It does nothing once the coalescer is closed.
func (c *Coalescer) Notify() {
	c.Start()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	switch c.state {
	case StateIdle:
		c.setState(StateScheduled)
		select {
		case c.signal <- struct{}{}:
		default:
		}
	case StateRunning:
		c.setState(StateRunningWithPending)
	default:
		c.metrics.observeCoalesced()
	}
}

// State returns the current state.
func (c *Coalescer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Drain blocks until the coalescer is idle. If a pass fails while
// draining, Drain returns its *ReindexError; the coalescer has already
// re-armed for another attempt.
func (c *Coalescer) Drain(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.state == StateIdle {
			c.mu.Unlock()
			return nil
		}
		p := c.current
		c.mu.Unlock()

		select {
		case <-p.done:
			if p.err != nil {
				return p.err
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-c.quit:
			return ErrClosed
		}
	}
}

// Close stops the supervising goroutine. A running pass sees its context
// cancelled and is waited for.
func (c *Coalescer) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		started := c.started
		c.mu.Unlock()

		close(c.quit)
		c.cancel()
		if started {
			<-c.stopped
		}
	})
}

// setState must be called with mu held.
func (c *Coalescer) setState(s State) {
	c.state = s
	c.metrics.setState(s)
}

func (c *Coalescer) loop() {
	defer close(c.stopped)

	for {
		select {
		case <-c.quit:
			return
		case <-c.signal:
		}
		select {
		case <-c.quit:
			return
		default:
		}
		if c.settleDelay > 0 && !c.sleep(c.settleDelay) {
			return
		}
		if !c.runUntilIdle() {
			return
		}
	}
}

// runUntilIdle runs passes until one completes with no writes pending.
// It returns false if the coalescer was closed.
func (c *Coalescer) runUntilIdle() bool {
	for {
		c.mu.Lock()
		c.setState(StateRunning)
		c.mu.Unlock()

		start := time.Now()
		err := c.runPass()
		elapsed := time.Since(start)
		c.metrics.observeReindex(elapsed, err)

		c.mu.Lock()
		finished := c.current
		c.current = newPass()
		var delay time.Duration
		if err != nil {
			c.failures++
			finished.err = &ReindexError{Attempt: c.failures, Err: err}
			c.setState(StateScheduled)
			delay = c.backoff(c.failures)
		} else {
			c.failures = 0
			if c.state == StateRunningWithPending {
				c.setState(StateScheduled)
			} else {
				c.setState(StateIdle)
			}
		}
		next := c.state
		c.mu.Unlock()
		close(finished.done)

		if err != nil {
			c.logger.Error("reindex failed, retrying", "attempt", finished.err.Attempt, "retry_in", delay, "err", err)
		} else {
			c.logger.Debug("reindex pass complete", "elapsed", elapsed, "next", next)
		}

		if next == StateIdle {
			return true
		}
		if delay > 0 && !c.sleep(delay) {
			return false
		}
		select {
		case <-c.quit:
			return false
		default:
		}
	}
}

func (c *Coalescer) runPass() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			c.logger.Error("reindex panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	return c.reindex(c.ctx)
}

// backoff returns the wait after the given number of consecutive failures.
func (c *Coalescer) backoff(failures int) time.Duration {
	delay := c.backoffBase
	for i := 1; i < failures && delay < c.backoffMax; i++ {
		delay *= 2
	}
	return min(delay, c.backoffMax)
}

// sleep waits for d and returns false if the coalescer closed first.
func (c *Coalescer) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.quit:
		return false
	}
}
