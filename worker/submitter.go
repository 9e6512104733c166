package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/dumpflow/config"
	"github.com/BaSui01/dumpflow/internal/pool"
	"github.com/BaSui01/dumpflow/types"
)

// Submitter hands a task to the worker pool without waiting for it.
type Submitter interface {
	Submit(ctx context.Context, spec types.TaskSpec) error
	// Mode names the backend, "local" or "redis".
	Mode() string
}

// =============================================================================
// 🏠 本地池提交
// =============================================================================

// LocalSubmitter runs tasks on an in-process goroutine pool.
type LocalSubmitter struct {
	pool     *pool.GoroutinePool
	executor *Executor
	logger   *zap.Logger
}

// NewLocalSubmitter creates a LocalSubmitter.
func NewLocalSubmitter(p *pool.GoroutinePool, executor *Executor, logger *zap.Logger) *LocalSubmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalSubmitter{pool: p, executor: executor, logger: logger}
}

// Submit implements Submitter. The task does not inherit ctx's
// cancellation; it outlives the dispatch call that submitted it. Tasks
// beyond the pool's queue wait in its backlog, so only a closed pool
// rejects a submission.
func (s *LocalSubmitter) Submit(ctx context.Context, spec types.TaskSpec) error {
	taskCtx := context.WithoutCancel(ctx)
	err := s.pool.Enqueue(taskCtx, spec.Key(), func(ctx context.Context) error {
		_, err := s.executor.Execute(ctx, spec)
		return err
	})
	if err != nil {
		return types.NewError(types.ErrSubmitFailure,
			fmt.Sprintf("submit %s: %v", spec.Key(), err)).WithCause(err)
	}
	return nil
}

// Mode implements Submitter.
func (s *LocalSubmitter) Mode() string { return config.ModeLocal }

// =============================================================================
// 📮 队列提交
// =============================================================================

// Enqueuer is the producer side of the task queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload []byte) error
}

// QueueSubmitter publishes tasks to the distributed queue.
type QueueSubmitter struct {
	queue Enqueuer
}

// NewQueueSubmitter creates a QueueSubmitter.
func NewQueueSubmitter(queue Enqueuer) *QueueSubmitter {
	return &QueueSubmitter{queue: queue}
}

// Submit implements Submitter.
func (s *QueueSubmitter) Submit(ctx context.Context, spec types.TaskSpec) error {
	payload, err := EncodeTask(spec)
	if err != nil {
		return types.NewError(types.ErrSubmitFailure, err.Error()).WithCause(err)
	}
	if err := s.queue.Enqueue(ctx, payload); err != nil {
		return types.NewError(types.ErrSubmitFailure,
			fmt.Sprintf("submit %s: %v", spec.Key(), err)).WithCause(err)
	}
	return nil
}

// Mode implements Submitter.
func (s *QueueSubmitter) Mode() string { return config.ModeRedis }

// EncodeTask serializes a task for the queue.
func EncodeTask(spec types.TaskSpec) ([]byte, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encode task %s: %w", spec.Key(), err)
	}
	return payload, nil
}

// DecodeTask parses a queued task.
func DecodeTask(payload []byte) (types.TaskSpec, error) {
	var spec types.TaskSpec
	if err := json.Unmarshal(payload, &spec); err != nil {
		return spec, fmt.Errorf("decode task: %w", err)
	}
	if spec.Artifact.ID == "" || spec.Plugin.Name == "" {
		return spec, fmt.Errorf("decode task: missing artifact id or plugin name")
	}
	return spec, nil
}
