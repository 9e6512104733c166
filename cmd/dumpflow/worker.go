package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/dumpflow"
	"github.com/BaSui01/dumpflow/config"
	"github.com/BaSui01/dumpflow/internal/metrics"
	"github.com/BaSui01/dumpflow/internal/server"
	"github.com/BaSui01/dumpflow/internal/telemetry"
)

// =============================================================================
// 🛠️ worker 命令
// =============================================================================

func runWorker(args []string, _ io.Writer) error {
	var common commonFlags
	fs := newFlagSet("worker", &common)
	metricsAddr := fs.String("metrics-addr", "", "ops listen address (overrides server.metrics_addr)")
	concurrency := fs.Int("concurrency", 0, "worker slots (overrides worker.concurrency)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(common.configPath)
	if err != nil {
		return err
	}
	if cfg.Worker.Mode != config.ModeRedis {
		return fmt.Errorf("worker requires worker.mode %q; in %q mode dispatch runs tasks itself",
			config.ModeRedis, cfg.Worker.Mode)
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}
	if *concurrency > 0 {
		cfg.Worker.Concurrency = *concurrency
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting dumpflow worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.Int("concurrency", cfg.Worker.Concurrency),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector("dumpflow", logger)
	p, err := dumpflow.New(cfg, logger, dumpflow.WithMetrics(collector))
	if err != nil {
		return err
	}
	defer closePipeline(p, cfg, logger)

	consumer, err := p.Consumer()
	if err != nil {
		return err
	}

	ops := server.NewManager(
		server.NewOpsHandler(nil, collector, p.HealthChecks()),
		server.FromServerConfig(cfg.Server),
		logger,
	)

	ctx, stop := signalContext()
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error { return ops.Run(gctx) })

	err = g.Wait()
	logger.Info("worker stopping, draining running tasks")
	return err
}

// closePipeline 等待运行中的任务结束，超过 shutdown_timeout 后放弃
func closePipeline(p *dumpflow.Pipeline, cfg *config.Config, logger *zap.Logger) {
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		logger.Error("pipeline shutdown", zap.Error(err))
	}
}
