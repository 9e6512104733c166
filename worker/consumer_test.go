package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/dumpflow/internal/broker"
	"github.com/BaSui01/dumpflow/testutil"
	"github.com/BaSui01/dumpflow/testutil/fixtures"
	"github.com/BaSui01/dumpflow/types"
)

// fakeQueue is an in-memory Queue that records requeued payloads.
type fakeQueue struct {
	mu       sync.Mutex
	items    [][]byte
	requeued [][]byte
	err      error
}

func (q *fakeQueue) Dequeue(ctx context.Context) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	if len(q.items) == 0 {
		return nil, broker.ErrQueueEmpty
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, nil
}

func (q *fakeQueue) Requeue(_ context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requeued = append(q.requeued, payload)
	return nil
}

func (q *fakeQueue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

func (q *fakeQueue) Requeued() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([][]byte(nil), q.requeued...)
}

func TestConsumer_EndToEnd(t *testing.T) {
	h := newHarness(t, nil, RunnerConfig{})
	h.pending(t, fixtures.ProcessListPlugin, fixtures.EmptyPlugin)

	b := newTestBroker(t)
	submitter := NewQueueSubmitter(b)
	ctx := context.Background()
	require.NoError(t, submitter.Submit(ctx, h.spec(fixtures.ProcessListPlugin)))
	require.NoError(t, submitter.Submit(ctx, h.spec(fixtures.EmptyPlugin)))

	c := NewConsumer(b, newTestPool(t, 2, 2), h.executor, nil,
		ConsumerConfig{QueueName: "dumpflow:tasks"}, zaptest.NewLogger(t))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Run(runCtx) }()

	testutil.AssertEventuallyTrue(t, func() bool {
		return h.result(t, fixtures.ProcessListPlugin).Status == types.StatusSuccess &&
			h.result(t, fixtures.EmptyPlugin).Status == types.StatusEmptySuccess
	}, 10*time.Second)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumer_StopsWhenBrokerClosed(t *testing.T) {
	h := newHarness(t, nil, RunnerConfig{})
	q := &fakeQueue{err: broker.ErrClosed}
	c := NewConsumer(q, newTestPool(t, 1, 1), h.executor, nil, ConsumerConfig{}, nil)

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, broker.ErrClosed)
}

func TestConsumer_BacksOffOnQueueError(t *testing.T) {
	h := newHarness(t, nil, RunnerConfig{})
	q := &fakeQueue{err: errors.New("connection reset by peer")}
	c := NewConsumer(q, newTestPool(t, 1, 1), h.executor, nil,
		ConsumerConfig{ErrorBackoff: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, c.Run(ctx))
}

func TestConsumer_RequeuesWhenPoolFull(t *testing.T) {
	h := newHarness(t, nil, RunnerConfig{})
	p := newTestPool(t, 1, 1)
	q := &fakeQueue{}
	c := NewConsumer(q, p, h.executor, nil, ConsumerConfig{}, nil)

	release := make(chan struct{})
	defer close(release)
	hold := func(context.Context) error {
		<-release
		return nil
	}
	require.NoError(t, p.Submit(context.Background(), "hold-1", hold))
	testutil.AssertEventuallyTrue(t, func() bool { return p.Stats().Active == 1 }, 5*time.Second)
	require.NoError(t, p.Submit(context.Background(), "hold-2", hold))
	require.Equal(t, 0, p.Available())

	payload, err := EncodeTask(h.spec(fixtures.EmptyPlugin))
	require.NoError(t, err)
	c.dispatch(context.Background(), context.Background(), payload)

	requeued := q.Requeued()
	require.Len(t, requeued, 1)
	assert.Equal(t, payload, requeued[0])
}

func TestConsumer_UnschedulableTaskIsFailed(t *testing.T) {
	h := newHarness(t, nil, RunnerConfig{})
	h.pending(t, fixtures.EmptyPlugin)
	p := newTestPool(t, 1, 1)
	require.NoError(t, p.Close(context.Background()))
	c := NewConsumer(&fakeQueue{}, p, h.executor, nil, ConsumerConfig{}, nil)

	payload, err := EncodeTask(h.spec(fixtures.EmptyPlugin))
	require.NoError(t, err)
	c.dispatch(context.Background(), context.Background(), payload)

	row := h.result(t, fixtures.EmptyPlugin)
	assert.Equal(t, types.StatusExecutionFailed, row.Status)
	assert.Contains(t, row.Description, "task could not be scheduled")
}

func TestConsumer_DropsMalformedPayload(t *testing.T) {
	h := newHarness(t, nil, RunnerConfig{})
	q := &fakeQueue{}
	p := newTestPool(t, 1, 1)
	c := NewConsumer(q, p, h.executor, nil, ConsumerConfig{}, nil)

	c.dispatch(context.Background(), context.Background(), []byte("not a task"))

	assert.Empty(t, q.Requeued())
	assert.EqualValues(t, 0, p.Stats().Submitted)
}
