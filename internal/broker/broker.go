package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/dumpflow/config"
	"github.com/BaSui01/dumpflow/internal/tlsutil"
)

// =============================================================================
// 📮 任务队列
// =============================================================================

// ErrQueueEmpty 阻塞等待超时，队列中没有消息
var ErrQueueEmpty = errors.New("task queue is empty")

// ErrClosed broker 已关闭
var ErrClosed = errors.New("broker is closed")

// Broker Redis 列表任务队列
type Broker struct {
	redis  *redis.Client
	key    string
	block  time.Duration
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// New 连接 Redis 并创建 broker
func New(cfg config.RedisConfig, logger *zap.Logger) (*Broker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueKey == "" {
		return nil, fmt.Errorf("redis queue key is required")
	}

	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.TLS {
		opts.TLSConfig = tlsutil.DefaultTLSConfig()
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	block := cfg.BlockTimeout
	if block < time.Second {
		// BRPOP 的最小阻塞粒度是 1 秒
		block = time.Second
	}

	b := &Broker{
		redis:  client,
		key:    cfg.QueueKey,
		block:  block,
		logger: logger.With(zap.String("component", "broker")),
	}
	b.logger.Info("task broker initialized",
		zap.String("addr", cfg.Addr),
		zap.String("queue", cfg.QueueKey))
	return b, nil
}

// Enqueue 把一条消息追加到队列
func (b *Broker) Enqueue(ctx context.Context, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	if err := b.redis.LPush(ctx, b.key, payload).Err(); err != nil {
		b.logger.Error("enqueue failed", zap.String("queue", b.key), zap.Error(err))
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Requeue 把消息放回队列头，下一次 Dequeue 优先取到它
func (b *Broker) Requeue(ctx context.Context, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	if err := b.redis.RPush(ctx, b.key, payload).Err(); err != nil {
		return fmt.Errorf("requeue: %w", err)
	}
	return nil
}

// Dequeue 阻塞取出队列头的消息，超时返回 ErrQueueEmpty
func (b *Broker) Dequeue(ctx context.Context) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	res, err := b.redis.BRPop(ctx, b.block, b.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	// BRPOP 返回 [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue: unexpected reply length %d", len(res))
	}
	return []byte(res[1]), nil
}

// Len 返回队列中等待的消息数
func (b *Broker) Len(ctx context.Context) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrClosed
	}
	return b.redis.LLen(ctx, b.key).Result()
}

// Ping 检查 Redis 连接
func (b *Broker) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return b.redis.Ping(ctx).Err()
}

// Close 关闭 broker
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.logger.Info("closing task broker")
	return b.redis.Close()
}
