package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoalescer(t *testing.T, reindex ReindexFunc, opts ...Option) *Coalescer {
	t.Helper()
	c := NewCoalescer(reindex, opts...)
	t.Cleanup(c.Close)
	return c
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "scheduled", StateScheduled.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "running_with_pending", StateRunningWithPending.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestCoalescer_DrainWhenIdle(t *testing.T) {
	c := newTestCoalescer(t, func(ctx context.Context) error { return nil })
	assert.NoError(t, c.Drain(context.Background()))
	assert.Equal(t, StateIdle, c.State())
}

func TestCoalescer_SingleWrite(t *testing.T) {
	var calls atomic.Int32
	c := newTestCoalescer(t, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	c.Notify()
	require.NoError(t, c.Drain(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StateIdle, c.State())
}

func TestCoalescer_BurstSharesOnePass(t *testing.T) {
	var calls atomic.Int32
	c := newTestCoalescer(t, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, WithSettleDelay(100*time.Millisecond))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Notify()
		}()
	}
	wg.Wait()
	assert.Equal(t, StateScheduled, c.State())

	require.NoError(t, c.Drain(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCoalescer_WritesDuringPassTriggerOneFollowUp(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	c := newTestCoalescer(t, func(ctx context.Context) error {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return nil
	})

	c.Notify()
	<-started
	assert.Equal(t, StateRunning, c.State())

	for range 5 {
		c.Notify()
	}
	assert.Equal(t, StateRunningWithPending, c.State())

	release <- struct{}{}
	<-started
	assert.Equal(t, StateRunning, c.State())
	release <- struct{}{}

	require.NoError(t, c.Drain(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, StateIdle, c.State())
}

func TestCoalescer_FailureRearms(t *testing.T) {
	var calls atomic.Int32
	c := newTestCoalescer(t, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("embedding service unavailable")
		}
		return nil
	}, WithRetryBackoff(5*time.Millisecond, 10*time.Millisecond))

	c.Notify()
	require.Eventually(t, func() bool {
		return calls.Load() == 2 && c.State() == StateIdle
	}, 2*time.Second, time.Millisecond)
	assert.NoError(t, c.Drain(context.Background()))
}

func TestCoalescer_PanicRearms(t *testing.T) {
	var calls atomic.Int32
	c := newTestCoalescer(t, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			panic("index corrupted")
		}
		return nil
	}, WithRetryBackoff(5*time.Millisecond, 10*time.Millisecond))

	c.Notify()
	require.Eventually(t, func() bool {
		return calls.Load() == 2 && c.State() == StateIdle
	}, 2*time.Second, time.Millisecond)
}

func TestCoalescer_DrainReportsFailure(t *testing.T) {
	boom := errors.New("boom")
	c := newTestCoalescer(t, func(ctx context.Context) error {
		return boom
	}, WithRetryBackoff(5*time.Millisecond, 10*time.Millisecond))

	c.Notify()
	err := c.Drain(context.Background())

	var reindexErr *ReindexError
	require.ErrorAs(t, err, &reindexErr)
	assert.ErrorIs(t, err, boom)
	assert.GreaterOrEqual(t, reindexErr.Attempt, 1)
	assert.NotEqual(t, StateIdle, c.State())
}

func TestCoalescer_DrainContext(t *testing.T) {
	c := newTestCoalescer(t, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	c.Notify()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Drain(ctx), context.DeadlineExceeded)
}

func TestCoalescer_CloseStopsRunningPass(t *testing.T) {
	started := make(chan struct{})
	c := NewCoalescer(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	c.Notify()
	<-started
	c.Close()

	assert.ErrorIs(t, c.Drain(context.Background()), ErrClosed)
	c.Close()
}

func TestCoalescer_NotifyAfterCloseIsIgnored(t *testing.T) {
	var calls atomic.Int32
	c := NewCoalescer(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, WithSettleDelay(0))
	c.Close()

	c.Notify()
	c.Notify()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, StateIdle, c.State())
	c.mu.Lock()
	assert.False(t, c.started)
	c.mu.Unlock()
}

func TestCoalescer_Backoff(t *testing.T) {
	c := NewCoalescer(nil, WithRetryBackoff(time.Second, 30*time.Second))

	assert.Equal(t, time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 16*time.Second, c.backoff(5))
	assert.Equal(t, 30*time.Second, c.backoff(6))
	assert.Equal(t, 30*time.Second, c.backoff(100))
}

func TestCoalescer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	started := make(chan struct{})
	release := make(chan struct{})
	c := newTestCoalescer(t, func(ctx context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}, WithMetrics(m))

	c.Notify()
	<-started
	assert.Equal(t, float64(StateRunning), testutil.ToFloat64(m.coalescerState))

	c.Notify() // running -> running with pending
	c.Notify() // absorbed
	c.Notify() // absorbed
	release <- struct{}{}
	<-started
	release <- struct{}{}
	require.NoError(t, c.Drain(context.Background()))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.coalescedWrites))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reindexPasses.WithLabelValues("success")))
	assert.Equal(t, float64(StateIdle), testutil.ToFloat64(m.coalescerState))
}
