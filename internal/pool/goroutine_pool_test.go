package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoroutinePool_EnqueueCountsOutcomes(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 2, QueueSize: 4})

	var ran atomic.Int32
	require.NoError(t, p.Enqueue(context.Background(), "t1", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}))
	boom := errors.New("boom")
	require.NoError(t, p.Enqueue(context.Background(), "t2", func(ctx context.Context) error { return boom }))

	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, int32(1), ran.Load())

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Submitted)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Zero(t, stats.Rejected)
}

func TestGoroutinePool_EnqueueBeyondCapacity(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 2, QueueSize: 3})

	const tasks = 50
	var done atomic.Int32
	for i := 0; i < tasks; i++ {
		require.NoError(t, p.Enqueue(context.Background(), fmt.Sprintf("t%d", i), func(ctx context.Context) error {
			time.Sleep(time.Millisecond)
			done.Add(1)
			return nil
		}))
	}

	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, int32(tasks), done.Load())
	assert.Equal(t, int64(tasks), p.Stats().Completed)
	assert.Zero(t, p.Stats().Rejected)
}

func TestGoroutinePool_EnqueueBacklogKeepsOrder(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Enqueue(context.Background(), "block", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Enqueue(context.Background(), "n", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}
	assert.Equal(t, 0, p.Available())
	assert.GreaterOrEqual(t, p.Stats().Queued, 8)

	close(release)
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
	assert.Zero(t, p.Stats().Queued)

	err := p.Enqueue(context.Background(), "late", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestGoroutinePool_CloseTimesOutWhileBacklogged(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 1, QueueSize: 0})
	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Enqueue(context.Background(), "slow", func(ctx context.Context) error {
			<-release
			return nil
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, int64(3), p.Stats().Completed)
}

func TestGoroutinePool_PanicRecovered(t *testing.T) {
	var gotName atomic.Value
	p := NewGoroutinePool(GoroutinePoolConfig{
		MaxWorkers: 1,
		QueueSize:  1,
		PanicHandler: func(name string, recovered any, stack []byte) {
			if len(stack) > 0 {
				gotName.Store(name)
			}
		},
	})

	require.NoError(t, p.Enqueue(context.Background(), "bad", func(ctx context.Context) error {
		panic("kaboom")
	}))
	require.NoError(t, p.Close(context.Background()))

	assert.Equal(t, "bad", gotName.Load())
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestGoroutinePool_SubmitFull(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 1, QueueSize: 0})
	release := make(chan struct{})
	started := make(chan struct{})

	// With an unbuffered queue the first submit only lands once a worker is receiving.
	require.Eventually(t, func() bool {
		return p.Submit(context.Background(), "block", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		}) == nil
	}, time.Second, time.Millisecond)
	<-started

	err := p.Submit(context.Background(), "extra", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolFull)
	assert.Equal(t, 0, p.Available())

	close(release)
	require.NoError(t, p.Close(context.Background()))

	err = p.Submit(context.Background(), "late", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestGoroutinePool_CloseDrains(t *testing.T) {
	p := NewGoroutinePool(GoroutinePoolConfig{MaxWorkers: 2, QueueSize: 8})
	var done atomic.Int32
	for i := 0; i < 6; i++ {
		require.NoError(t, p.Submit(context.Background(), "n", func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			return nil
		}))
	}
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, int32(6), done.Load())
}
