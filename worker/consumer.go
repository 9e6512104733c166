package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/dumpflow/internal/broker"
	"github.com/BaSui01/dumpflow/internal/metrics"
	"github.com/BaSui01/dumpflow/internal/pool"
	"github.com/BaSui01/dumpflow/types"
)

// Queue is the consumer side of the task queue. *broker.Broker implements
// it.
type Queue interface {
	Dequeue(ctx context.Context) ([]byte, error)
	Requeue(ctx context.Context, payload []byte) error
	Len(ctx context.Context) (int64, error)
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	// QueueName labels the queue depth gauge.
	QueueName string
	// PollInterval is how long to wait when the pool has no free slot.
	PollInterval time.Duration
	// ErrorBackoff is how long to wait after a queue error.
	ErrorBackoff time.Duration
	// StatsInterval is how often pool and queue gauges are refreshed.
	StatsInterval time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = time.Second
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 5 * time.Second
	}
	return c
}

// Consumer pulls tasks off the queue and runs them on a bounded pool.
type Consumer struct {
	queue    Queue
	pool     *pool.GoroutinePool
	executor *Executor
	metrics  *metrics.Collector
	cfg      ConsumerConfig
	logger   *zap.Logger
}

// NewConsumer creates a Consumer. collector may be nil.
func NewConsumer(queue Queue, p *pool.GoroutinePool, executor *Executor, collector *metrics.Collector, cfg ConsumerConfig, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		queue:    queue,
		pool:     p,
		executor: executor,
		metrics:  collector,
		cfg:      cfg.withDefaults(),
		logger:   logger.With(zap.String("component", "consumer")),
	}
}

// Run consumes until ctx ends. Running tasks are not canceled with ctx;
// the caller drains them by closing the pool.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started", zap.String("queue", c.cfg.QueueName))
	defer c.logger.Info("consumer stopped")

	taskCtx := context.WithoutCancel(ctx)
	lastStats := time.Time{}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(lastStats) >= c.cfg.StatsInterval {
			c.reportStats(ctx)
			lastStats = time.Now()
		}

		if c.pool.Available() == 0 {
			if !sleep(ctx, c.cfg.PollInterval) {
				return nil
			}
			continue
		}

		payload, err := c.queue.Dequeue(ctx)
		switch {
		case err == nil:
		case errors.Is(err, broker.ErrQueueEmpty):
			continue
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, broker.ErrClosed):
			return err
		default:
			c.logger.Warn("dequeue failed", zap.Error(err))
			if !sleep(ctx, c.cfg.ErrorBackoff) {
				return nil
			}
			continue
		}

		c.dispatch(ctx, taskCtx, payload)
	}
}

func (c *Consumer) dispatch(ctx, taskCtx context.Context, payload []byte) {
	spec, err := DecodeTask(payload)
	if err != nil {
		// 无法解析的消息没有对应的结果行，只能丢弃
		c.logger.Error("dropping malformed task", zap.Error(err), zap.ByteString("payload", truncate(payload, 512)))
		return
	}

	err = c.pool.Submit(taskCtx, spec.Key(), func(ctx context.Context) error {
		_, err := c.executor.Execute(ctx, spec)
		return err
	})
	if err == nil {
		return
	}

	if errors.Is(err, pool.ErrPoolFull) {
		rqErr := c.queue.Requeue(ctx, payload)
		if rqErr == nil {
			return
		}
		err = rqErr
	}

	// 任务既没运行也没回到队列，记为失败以免结果行一直 PENDING
	c.logger.Error("task could not be scheduled",
		zap.String("artifact_id", spec.Artifact.ID),
		zap.String("plugin", spec.Plugin.Name),
		zap.Error(err))
	_, _ = c.executor.sink.Fail(ctx, spec,
		types.NewError(types.ErrSubmitFailure, "task could not be scheduled: "+err.Error()).WithCause(err))
}

func (c *Consumer) reportStats(ctx context.Context) {
	stats := c.pool.Stats()
	c.metrics.SetPoolStats("consumer", stats.Workers, stats.Active, stats.Queued)
	if n, err := c.queue.Len(ctx); err == nil {
		c.metrics.SetQueueDepth(c.cfg.QueueName, n)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
