package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/BaSui01/dumpflow/internal/metrics"
	"github.com/BaSui01/dumpflow/internal/telemetry"
	"github.com/BaSui01/dumpflow/types"
)

// Stager resolves an artifact's stored path. *staging.Stager implements it.
type Stager interface {
	Stage(ctx context.Context, path string) (string, error)
}

// Catalog lists plugin descriptors. *store.Catalog implements it.
type Catalog interface {
	ListByOS(ctx context.Context, os types.OperatingSystem) ([]types.PluginDescriptor, error)
}

// ResultStore creates and finalizes TaskResult rows. *store.Results
// implements it.
type ResultStore interface {
	CreatePending(ctx context.Context, artifactID string, plugins []string) error
	Finalize(ctx context.Context, artifactID, pluginName string, status types.TaskStatus, description string) error
}

// Submitter hands a task to the worker pool. worker.Submitter satisfies it.
type Submitter interface {
	Submit(ctx context.Context, spec types.TaskSpec) error
	Mode() string
}

// Report summarizes one Dispatch call.
type Report struct {
	ArtifactID string
	// Path is the staged file the tasks read.
	Path      string
	Submitted []string
	Skipped   []string
	// Failed lists plugins whose submission failed; their rows are
	// EXECUTION_FAILED.
	Failed []string
}

// Total returns the number of TaskResult rows created.
func (r *Report) Total() int {
	return len(r.Submitted) + len(r.Skipped) + len(r.Failed)
}

// Dispatcher fans an artifact out into plugin tasks.
type Dispatcher struct {
	stager    Stager
	catalog   Catalog
	results   ResultStore
	submitter Submitter
	metrics   *metrics.Collector
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Dispatcher. collector may be nil.
func New(stager Stager, catalog Catalog, results ResultStore, submitter Submitter, collector *metrics.Collector, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		stager:    stager,
		catalog:   catalog,
		results:   results,
		submitter: submitter,
		metrics:   collector,
		logger:    logger.With(zap.String("component", "dispatcher")),
		now:       time.Now,
	}
}

// Dispatch stages artifact and submits one task per enabled plugin. It
// returns once every task is submitted or finalized; it never waits for a
// task to run.
func (d *Dispatcher) Dispatch(ctx context.Context, artifact types.Artifact) (*Report, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "dumpflow.dispatch")
	defer span.End()
	span.SetAttributes(telemetry.ArtifactAttributes(artifact)...)

	report, err := d.dispatch(ctx, artifact)
	outcome := "ok"
	if err != nil {
		outcome = string(types.GetErrorCode(err))
		if outcome == "" {
			outcome = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	d.metrics.RecordDispatch(artifact.OperatingSystem.String(), outcome)
	return report, err
}

func (d *Dispatcher) dispatch(ctx context.Context, artifact types.Artifact) (*Report, error) {
	log := d.logger.With(zap.String("artifact_id", artifact.ID))

	path, err := d.stager.Stage(ctx, artifact.Path)
	if err != nil {
		log.Warn("staging failed", zap.Error(err))
		return nil, err
	}

	plugins, err := d.catalog.ListByOS(ctx, artifact.OperatingSystem)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", artifact.ID, err)
	}

	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	if err := d.results.CreatePending(ctx, artifact.ID, names); err != nil {
		return nil, err
	}

	report := &Report{ArtifactID: artifact.ID, Path: path}
	submittedAt := d.now().UTC()

	for _, p := range plugins {
		if p.Disabled {
			if err := d.results.Finalize(ctx, artifact.ID, p.Name, types.StatusSkipped, ""); err != nil {
				return report, fmt.Errorf("skip %s: %w", p.Name, err)
			}
			d.metrics.RecordSkipped(p.Name)
			report.Skipped = append(report.Skipped, p.Name)
			continue
		}

		spec := types.TaskSpec{
			Artifact:    artifact,
			Plugin:      p,
			Path:        path,
			SubmittedAt: submittedAt,
		}
		if err := d.submitter.Submit(ctx, spec); err != nil {
			d.metrics.RecordSubmit(d.submitter.Mode(), "error")
			log.Error("submit failed", zap.String("plugin", p.Name), zap.Error(err))
			if ferr := d.results.Finalize(ctx, artifact.ID, p.Name, types.StatusExecutionFailed, types.Diagnostic(err)); ferr != nil {
				return report, fmt.Errorf("finalize %s after submit failure: %w", p.Name, ferr)
			}
			report.Failed = append(report.Failed, p.Name)
			continue
		}
		d.metrics.RecordSubmit(d.submitter.Mode(), "ok")
		report.Submitted = append(report.Submitted, p.Name)
	}

	log.Info("artifact dispatched",
		zap.String("path", path),
		zap.Int("submitted", len(report.Submitted)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}
