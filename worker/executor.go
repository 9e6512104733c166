package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/BaSui01/dumpflow/internal/ctxkeys"
	"github.com/BaSui01/dumpflow/internal/metrics"
	"github.com/BaSui01/dumpflow/internal/pool"
	"github.com/BaSui01/dumpflow/internal/telemetry"
	"github.com/BaSui01/dumpflow/render"
	"github.com/BaSui01/dumpflow/sink"
	"github.com/BaSui01/dumpflow/types"
)

// Executor runs one task end to end: plugin, render, store.
type Executor struct {
	runner   *Runner
	renderer *render.Renderer
	sink     *sink.Sink
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewExecutor creates an Executor. collector may be nil.
func NewExecutor(runner *Runner, renderer *render.Renderer, s *sink.Sink, collector *metrics.Collector, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		runner:   runner,
		renderer: renderer,
		sink:     s,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "executor")),
	}
}

// Execute runs spec and finalizes its TaskResult row. The outcome carries
// the terminal status; the error is set only when the row could not be
// written.
func (e *Executor) Execute(ctx context.Context, spec types.TaskSpec) (sink.Outcome, error) {
	start := time.Now()
	ctx = ctxkeys.WithTask(ctx, spec.Artifact.ID, spec.Plugin.Name)
	log := e.logger.With(ctxkeys.Fields(ctx)...)

	ctx, span := telemetry.Tracer().Start(ctx, "dumpflow.task")
	defer span.End()
	span.SetAttributes(telemetry.TaskAttributes(spec)...)

	log.Debug("task started", zap.String("path", spec.Path))

	out, err := e.execute(ctx, spec, log)

	duration := time.Since(start)
	status := out.Result.Status
	span.SetAttributes(telemetry.AttrStatus.String(status.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize failed")
	} else if status != types.StatusSuccess && status != types.StatusEmptySuccess {
		span.SetStatus(codes.Error, status.String())
	}
	e.metrics.RecordTaskResult(spec.Plugin.Name, status.String(), duration)
	e.metrics.SetEncodeBufferHitRate(pool.ByteBufferPool.Stats().HitRate())

	log.Info("task finished",
		zap.Stringer("status", status),
		zap.Int("documents", out.Stats.Indexed),
		zap.Duration("duration", duration))
	return out, err
}

func (e *Executor) execute(ctx context.Context, spec types.TaskSpec, log *zap.Logger) (sink.Outcome, error) {
	tree, err := e.runner.Run(ctx, spec)
	if err != nil {
		log.Warn("plugin failed",
			zap.String("code", string(types.GetErrorCode(err))),
			zap.Error(err))
		return e.sink.Fail(ctx, spec, err)
	}

	_, renderSpan := telemetry.Tracer().Start(ctx, "dumpflow.render")
	docs, renderErrs := e.renderer.Render(tree)
	renderSpan.SetAttributes(
		attribute.Int("dumpflow.documents", len(docs)),
		attribute.Int("dumpflow.render_errors", len(renderErrs)),
	)
	renderSpan.End()

	if len(renderErrs) > 0 {
		log.Warn("render errors", zap.Int("render_errors", len(renderErrs)))
	}

	out, err := e.sink.Store(ctx, spec, docs, renderErrs)
	e.metrics.RecordDocuments(spec.Plugin.Name, out.Stats.Indexed, len(renderErrs))
	return out, err
}
