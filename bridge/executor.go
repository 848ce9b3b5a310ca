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
	"runtime/debug"
	"sync"
	"time"
)

// Operation is a unit of work run on the executor worker. It receives the
// executor's base context, not the submitting caller's.
type Operation func(ctx context.Context) (any, error)

// Handle tracks a submitted operation.
type Handle struct {
	op     string
	done   chan struct{}
	result any
	err    error
}

func newHandle(op string) *Handle {
	return &Handle{op: op, done: make(chan struct{})}
}

func (h *Handle) finish(result any, err error) {
	h.result = result
	h.err = err
	close(h.done)
}

// Done is closed once the operation has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the operation finishes, timeout elapses or ctx ends.
// A timeout of zero or less waits without a deadline. Giving up does not
// cancel the operation.
func (h *Handle) Wait(ctx context.Context, timeout time.Duration) (any, error) {
	deadline, stop := deadlineAfter(timeout)
	defer stop()
	return h.await(ctx, deadline, timeout)
}

func (h *Handle) await(ctx context.Context, deadline <-chan time.Time, timeout time.Duration) (any, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-deadline:
		return nil, &TimeoutError{Op: h.op, Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deadlineAfter returns a channel that fires after timeout, or a nil
// channel when timeout is not positive.
func deadlineAfter(timeout time.Duration) (<-chan time.Time, func()) {
	if timeout <= 0 {
		return nil, func() {}
	}
	timer := time.NewTimer(timeout)
	return timer.C, func() { timer.Stop() }
}

type task struct {
	handle *Handle
	run    Operation
}

// Executor runs operations one at a time, in arrival order, on a single
// lazily started worker goroutine.
type Executor struct {
	queue   chan *task
	quit    chan struct{}
	stopped chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	started   bool

	logger  *slog.Logger
	metrics *Metrics
}

// NewExecutor creates an executor. The worker starts on the first Start
// or Submit.
func NewExecutor(opts ...Option) *Executor {
	cfg := newConfig(opts)
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		queue:   make(chan *task, cfg.queueSize),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		logger:  cfg.logger.With("component", "executor"),
		metrics: cfg.metrics,
	}
}

// Start launches the worker. Only the first call has any effect.
func (e *Executor) Start() {
	e.startOnce.Do(func() {
		e.mu.Lock()
		e.started = true
		e.mu.Unlock()
		go e.loop()
	})
}

// Submit queues op and returns its handle. It blocks while the queue is
// full, until ctx ends or the executor closes.
func (e *Executor) Submit(ctx context.Context, name string, op Operation) (*Handle, error) {
	return e.submit(ctx, name, op, nil, 0)
}

// submit enqueues op, giving up with a TimeoutError when deadline fires
// before the queue has room.
func (e *Executor) submit(ctx context.Context, name string, op Operation, deadline <-chan time.Time, timeout time.Duration) (*Handle, error) {
	e.Start()

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	t := &task{handle: newHandle(name), run: op}
	select {
	case e.queue <- t:
	case <-e.quit:
		return nil, ErrClosed
	case <-deadline:
		return nil, &TimeoutError{Op: name, Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	e.metrics.setQueueDepth(len(e.queue))
	return t.handle, nil
}

// Run submits op and waits for it. The timeout covers both waiting for
// room in the queue and waiting for the result; see Handle.Wait.
func (e *Executor) Run(ctx context.Context, name string, op Operation, timeout time.Duration) (any, error) {
	deadline, stop := deadlineAfter(timeout)
	defer stop()

	h, err := e.submit(ctx, name, op, deadline, timeout)
	var result any
	if err == nil {
		result, err = h.await(ctx, deadline, timeout)
	}
	if errors.Is(err, ErrTimeout) {
		e.metrics.observeTimeout(name)
		e.logger.Warn("caller stopped waiting for operation", "op", name, "timeout", timeout)
	}
	return result, err
}

// Call is Run with a typed result. A nil result becomes the zero value of
// T; a result of any other type is an error.
func Call[T any](ctx context.Context, e *Executor, name string, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	result, err := e.Run(ctx, name, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, timeout)
	if err != nil || result == nil {
		return zero, err
	}
	v, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%s: result is %T, not %T", name, result, zero)
	}
	return v, nil
}

// Pending reports how many operations are waiting for the worker.
func (e *Executor) Pending() int {
	return len(e.queue)
}

// Close stops accepting work and waits for the running operation to
// finish. Operations still queued fail with ErrClosed.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		close(e.quit)

		e.mu.Lock()
		e.closed = true
		started := e.started
		e.mu.Unlock()

		if started {
			<-e.stopped
		}
		e.cancel()

		for {
			select {
			case t := <-e.queue:
				t.handle.finish(nil, ErrClosed)
			default:
				e.metrics.setQueueDepth(0)
				return
			}
		}
	})
}

func (e *Executor) loop() {
	defer close(e.stopped)
	e.logger.Debug("executor worker started")

	for {
		select {
		case <-e.quit:
			return
		case t := <-e.queue:
			e.metrics.setQueueDepth(len(e.queue))
			select {
			case <-e.quit:
				t.handle.finish(nil, ErrClosed)
				return
			default:
			}
			e.execute(t)
		}
	}
}

func (e *Executor) execute(t *task) {
	name := t.handle.op
	start := time.Now()

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				e.logger.Error("operation panicked", "op", name, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		result, err = t.run(e.ctx)
	}()

	elapsed := time.Since(start)
	e.metrics.observeOperation(name, elapsed, err)
	if err != nil {
		e.logger.Debug("operation failed", "op", name, "elapsed", elapsed, "err", err)
		t.handle.finish(nil, &EngineError{Op: name, Err: err})
		return
	}
	t.handle.finish(result, nil)
}
