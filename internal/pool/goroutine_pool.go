// Package pool provides the bounded goroutine pool that backs worker slots.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool is full")
)

// Task represents a unit of work.
type Task func(ctx context.Context) error

// PanicHandler receives a recovered panic with the task name and stack.
type PanicHandler func(name string, recovered any, stack []byte)

// GoroutinePool runs submitted tasks on at most maxWorkers goroutines.
type GoroutinePool struct {
	maxWorkers  int
	taskQueue   chan taskWrapper
	workerCount atomic.Int32
	activeCount atomic.Int32
	closed      atomic.Bool
	closeOnce   sync.Once
	drained     chan struct{}
	mu          sync.RWMutex // guards taskQueue against send-after-close
	wg          sync.WaitGroup

	// Enqueue 溢出的任务按提交顺序暂存，由 feeder 写入 taskQueue
	backlogMu sync.Mutex
	backlog   []taskWrapper
	feeding   bool
	feedWG    sync.WaitGroup

	// Metrics
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	// Config
	idleTimeout  time.Duration
	panicHandler PanicHandler
}

type taskWrapper struct {
	name string
	task Task
	ctx  context.Context
}

// GoroutinePoolConfig configures the pool.
type GoroutinePoolConfig struct {
	MaxWorkers   int           `json:"max_workers"`
	QueueSize    int           `json:"queue_size"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	PanicHandler PanicHandler  `json:"-"`
}

// DefaultGoroutinePoolConfig returns sensible defaults.
func DefaultGoroutinePoolConfig() GoroutinePoolConfig {
	return GoroutinePoolConfig{
		MaxWorkers:  4,
		QueueSize:   64,
		IdleTimeout: 60 * time.Second,
	}
}

// NewGoroutinePool creates a new goroutine pool.
func NewGoroutinePool(config GoroutinePoolConfig) *GoroutinePool {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 60 * time.Second
	}
	return &GoroutinePool{
		maxWorkers:   config.MaxWorkers,
		taskQueue:    make(chan taskWrapper, config.QueueSize),
		idleTimeout:  config.IdleTimeout,
		panicHandler: config.PanicHandler,
	}
}

// Submit queues a task without waiting for it. It never blocks: when both
// the queue and the worker slots are full it returns ErrPoolFull.
func (p *GoroutinePool) Submit(ctx context.Context, name string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.submitted.Add(1)

	wrapper := taskWrapper{
		name: name,
		task: task,
		ctx:  ctx,
	}

	select {
	case p.taskQueue <- wrapper:
		p.ensureWorker()
		return nil
	default:
		// Queue full, try to spawn new worker
		if p.trySpawnWorker() {
			select {
			case p.taskQueue <- wrapper:
				return nil
			default:
			}
		}
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

// Enqueue queues a task without waiting for it and never rejects it while
// the pool is open. Tasks that do not fit in the queue wait in an in-memory
// backlog and reach the workers in submission order.
func (p *GoroutinePool) Enqueue(ctx context.Context, name string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.submitted.Add(1)
	wrapper := taskWrapper{name: name, task: task, ctx: ctx}

	p.backlogMu.Lock()
	defer p.backlogMu.Unlock()
	if len(p.backlog) == 0 {
		select {
		case p.taskQueue <- wrapper:
			p.ensureWorker()
			return nil
		default:
		}
	}
	p.backlog = append(p.backlog, wrapper)
	if !p.feeding {
		p.feeding = true
		p.feedWG.Add(1)
		go p.feed()
	}
	return nil
}

// feed moves backlog tasks into the queue, blocking while it is full.
func (p *GoroutinePool) feed() {
	defer p.feedWG.Done()
	for {
		p.backlogMu.Lock()
		if len(p.backlog) == 0 {
			p.feeding = false
			p.backlogMu.Unlock()
			return
		}
		wrapper := p.backlog[0]
		p.backlog[0] = taskWrapper{}
		p.backlog = p.backlog[1:]
		p.backlogMu.Unlock()

		p.ensureWorker()
		p.taskQueue <- wrapper
		p.ensureWorker()
	}
}

func (p *GoroutinePool) backlogLen() int {
	p.backlogMu.Lock()
	defer p.backlogMu.Unlock()
	return len(p.backlog)
}

// Available returns how many more tasks can be accepted right now.
func (p *GoroutinePool) Available() int {
	free := p.maxWorkers - int(p.activeCount.Load()) + cap(p.taskQueue) - len(p.taskQueue) - p.backlogLen()
	if free < 0 {
		return 0
	}
	return free
}

func (p *GoroutinePool) ensureWorker() {
	if p.workerCount.Load() < int32(p.maxWorkers) {
		p.trySpawnWorker()
	}
}

func (p *GoroutinePool) trySpawnWorker() bool {
	for {
		current := p.workerCount.Load()
		if current >= int32(p.maxWorkers) {
			return false
		}
		if p.workerCount.CompareAndSwap(current, current+1) {
			p.wg.Add(1)
			go p.worker()
			return true
		}
	}
}

func (p *GoroutinePool) worker() {
	defer p.wg.Done()
	defer p.workerCount.Add(-1)

	timer := time.NewTimer(p.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case wrapper, ok := <-p.taskQueue:
			if !ok {
				return
			}

			p.activeCount.Add(1)
			err := p.executeTask(wrapper)
			p.activeCount.Add(-1)

			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}

			timer.Reset(p.idleTimeout)

		case <-timer.C:
			// Idle timeout, keep one worker around to drain late submissions
			if p.workerCount.Load() > 1 {
				return
			}
			timer.Reset(p.idleTimeout)
		}
	}
}

func (p *GoroutinePool) executeTask(wrapper taskWrapper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(wrapper.name, r, debug.Stack())
			}
			err = fmt.Errorf("task %s panicked: %v", wrapper.name, r)
		}
	}()

	return wrapper.task(wrapper.ctx)
}

// Close stops accepting tasks and waits for backlog, queued and running
// tasks to finish, or for ctx to end. Calling it again waits again.
func (p *GoroutinePool) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed.Store(true)
		p.mu.Unlock()

		p.drained = make(chan struct{})
		go func() {
			// feeder 结束后才能关闭队列
			p.feedWG.Wait()
			close(p.taskQueue)
			p.wg.Wait()
			close(p.drained)
		}()
	})
	done := p.drained

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool drain: %w", ctx.Err())
	}
}

// Stats returns pool statistics.
func (p *GoroutinePool) Stats() GoroutinePoolStats {
	return GoroutinePoolStats{
		Workers:   int(p.workerCount.Load()),
		Active:    int(p.activeCount.Load()),
		Queued:    len(p.taskQueue) + p.backlogLen(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// GoroutinePoolStats contains pool statistics.
type GoroutinePoolStats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"` // includes the Enqueue backlog
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}
