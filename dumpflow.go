// Package dumpflow wires the analysis pipeline from a loaded configuration:
// database, plugin catalog, result store, search indexer, task submission and
// the dispatcher.
//
// Usage:
//
//	import "github.com/BaSui01/dumpflow"
//
//	cfg, _ := config.NewLoader().WithConfigPath("dumpflow.yaml").Load()
//	p, err := dumpflow.New(cfg, logger)
//	defer p.Close(ctx)
//	report, err := p.Dispatch(ctx, "artifact-id")
//
// In local mode tasks run on an in-process pool owned by the Pipeline;
// [Pipeline.Drain] waits for them. In redis mode Dispatch only enqueues; a
// `dumpflow worker` process consumes the queue through [Pipeline.Consumer].
package dumpflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/dumpflow/config"
	"github.com/BaSui01/dumpflow/dispatch"
	"github.com/BaSui01/dumpflow/index"
	"github.com/BaSui01/dumpflow/internal/broker"
	"github.com/BaSui01/dumpflow/internal/database"
	"github.com/BaSui01/dumpflow/internal/metrics"
	"github.com/BaSui01/dumpflow/internal/pool"
	"github.com/BaSui01/dumpflow/internal/server"
	"github.com/BaSui01/dumpflow/plugin"
	"github.com/BaSui01/dumpflow/render"
	"github.com/BaSui01/dumpflow/sink"
	"github.com/BaSui01/dumpflow/staging"
	"github.com/BaSui01/dumpflow/store"
	"github.com/BaSui01/dumpflow/types"
	"github.com/BaSui01/dumpflow/worker"
)

// abandonedDescription is written to rows whose local task never finished.
const abandonedDescription = "task did not finish before the dispatching process stopped"

// Option customizes [New].
type Option func(*options)

type options struct {
	registry  *plugin.Registry
	collector *metrics.Collector
	indexer   index.Indexer
	db        *database.PoolManager
	queue     *broker.Broker
}

// WithRegistry replaces the built-in plugin registry.
func WithRegistry(r *plugin.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithMetrics records pipeline metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithIndexer replaces the configured search indexer.
func WithIndexer(i index.Indexer) Option {
	return func(o *options) { o.indexer = i }
}

// WithDatabase uses an already opened database instead of cfg.Database.
// The Pipeline does not close it.
func WithDatabase(db *database.PoolManager) Option {
	return func(o *options) { o.db = db }
}

// WithBroker uses an already connected broker in redis mode. The Pipeline
// does not close it.
func WithBroker(b *broker.Broker) Option {
	return func(o *options) { o.queue = b }
}

// Pipeline holds the wired components.
type Pipeline struct {
	Config     *config.Config
	DB         *database.PoolManager
	Results    *store.Results
	Catalog    *store.Catalog
	Artifacts  *store.Artifacts
	Registry   *plugin.Registry
	Indexer    index.Indexer
	Executor   *worker.Executor
	Pool       *pool.GoroutinePool
	Submitter  worker.Submitter
	Dispatcher *dispatch.Dispatcher
	// Broker is nil in local mode.
	Broker *broker.Broker

	metrics *metrics.Collector
	logger  *zap.Logger
	closers []func(context.Context) error
}

// New builds a Pipeline from cfg.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("dumpflow: config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = plugin.DefaultRegistry()
	}

	p := &Pipeline{
		Config:   cfg,
		Registry: o.registry,
		metrics:  o.collector,
		logger:   logger,
	}

	if err := p.init(o); err != nil {
		_ = p.Close(context.Background())
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) init(o options) error {
	cfg := p.Config

	p.DB = o.db
	if p.DB == nil {
		db, err := database.Open(cfg.Database, p.logger)
		if err != nil {
			return err
		}
		p.DB = db
		p.closers = append(p.closers, func(context.Context) error { return db.Close() })
	}
	p.DB.OnStats(func(s database.PoolStats) {
		p.metrics.RecordDBConnections(cfg.Database.Driver, s.OpenConnections, s.Idle)
	})

	p.Results = store.NewResults(p.DB, p.logger)
	p.Catalog = store.NewCatalog(p.DB)
	p.Artifacts = store.NewArtifacts(p.DB)

	p.Indexer = o.indexer
	if p.Indexer == nil {
		if cfg.Elasticsearch.Enabled {
			es, err := index.NewElasticIndexer(cfg.Elasticsearch, p.logger)
			if err != nil {
				return err
			}
			p.Indexer = es
		} else {
			p.logger.Warn("elasticsearch disabled, documents are kept in memory")
			p.Indexer = index.NewMemoryIndexer()
		}
	}

	runner := worker.NewRunner(p.Registry, worker.RunnerConfig{
		BaseConfigPath: cfg.Worker.BaseConfigPath,
		Timeout:        cfg.Worker.TaskTimeout,
	}, p.logger)
	p.Executor = worker.NewExecutor(runner, render.NewRenderer(),
		sink.New(p.Indexer, p.Results, p.logger), p.metrics, p.logger)

	p.Pool = pool.NewGoroutinePool(pool.GoroutinePoolConfig{
		MaxWorkers:  cfg.Worker.Concurrency,
		QueueSize:   cfg.Worker.QueueSize,
		IdleTimeout: cfg.Worker.IdleTimeout,
		PanicHandler: func(name string, r any, stack []byte) {
			p.logger.Error("task panicked outside the runner",
				zap.String("task", name), zap.Any("panic", r), zap.ByteString("stack", stack))
		},
	})
	p.closers = append(p.closers, p.Pool.Close)

	switch cfg.Worker.Mode {
	case config.ModeRedis:
		p.Broker = o.queue
		if p.Broker == nil {
			b, err := broker.New(cfg.Redis, p.logger)
			if err != nil {
				return err
			}
			p.Broker = b
			p.closers = append(p.closers, func(context.Context) error { return b.Close() })
		}
		p.Submitter = worker.NewQueueSubmitter(p.Broker)
	default:
		p.Submitter = worker.NewLocalSubmitter(p.Pool, p.Executor, p.logger)
	}

	p.Dispatcher = dispatch.New(staging.New(p.logger), p.Catalog, p.Results, p.Submitter, p.metrics, p.logger)

	p.logger.Info("pipeline ready",
		zap.String("mode", p.Submitter.Mode()),
		zap.Int("concurrency", cfg.Worker.Concurrency))
	return nil
}

// Dispatch loads the artifact by id and dispatches it.
func (p *Pipeline) Dispatch(ctx context.Context, artifactID string) (*dispatch.Report, error) {
	artifact, err := p.Artifacts.Get(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	return p.Dispatcher.Dispatch(ctx, artifact)
}

// Consumer returns a queue consumer running tasks on the Pipeline's pool.
// It is only available in redis mode.
func (p *Pipeline) Consumer() (*worker.Consumer, error) {
	if p.Broker == nil {
		return nil, fmt.Errorf("consumer requires worker.mode %q", config.ModeRedis)
	}
	return worker.NewConsumer(p.Broker, p.Pool, p.Executor, p.metrics, worker.ConsumerConfig{
		QueueName: p.Config.Redis.QueueKey,
	}, p.logger), nil
}

// Drain waits for every locally submitted task to finish. The pool accepts
// no further tasks afterwards, so Drain is the last call before Close. If
// ctx ends first, the artifact's rows still PENDING are finalized
// EXECUTION_FAILED and the ctx error is returned.
func (p *Pipeline) Drain(ctx context.Context, artifactID string) error {
	if p.Broker != nil {
		return fmt.Errorf("drain requires worker.mode %q", config.ModeLocal)
	}
	err := p.Pool.Close(ctx)
	if err == nil {
		return nil
	}

	n, abandonErr := p.Results.AbandonPending(context.WithoutCancel(ctx), artifactID,
		types.StatusExecutionFailed, abandonedDescription)
	if abandonErr != nil {
		return errors.Join(err, abandonErr)
	}
	p.logger.Warn("local tasks interrupted",
		zap.String("artifact_id", artifactID),
		zap.Int64("abandoned", n),
		zap.Error(err))
	return err
}

// SyncCatalog registers every plugin in the registry with the catalog.
// Existing rows keep their disabled flag.
func (p *Pipeline) SyncCatalog(ctx context.Context) (int, error) {
	return p.Catalog.Register(ctx, p.Registry.Names())
}

// HealthChecks returns dependency checks for the ops server.
func (p *Pipeline) HealthChecks() map[string]server.HealthCheck {
	checks := map[string]server.HealthCheck{
		"database": p.DB.Ping,
	}
	if p.Broker != nil {
		checks["redis"] = p.Broker.Ping
	}
	if es, ok := p.Indexer.(*index.ElasticIndexer); ok {
		checks["elasticsearch"] = es.Ping
	}
	return checks
}

// Close drains the pool and releases owned connections in reverse order.
func (p *Pipeline) Close(ctx context.Context) error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
