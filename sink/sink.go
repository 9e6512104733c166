package sink

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/dumpflow/index"
	"github.com/BaSui01/dumpflow/render"
	"github.com/BaSui01/dumpflow/types"
)

// ResultWriter finalizes TaskResult rows. *store.Results implements it.
type ResultWriter interface {
	Finalize(ctx context.Context, artifactID, pluginName string, status types.TaskStatus, description string) error
}

// Outcome is what Store and Fail wrote.
type Outcome struct {
	Result types.TaskResult
	Stats  index.Stats
}

// Sink 结果落地
type Sink struct {
	indexer index.Indexer
	results ResultWriter
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a Sink.
func New(indexer index.Indexer, results ResultWriter, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		indexer: indexer,
		results: results,
		logger:  logger.With(zap.String("component", "sink")),
		now:     time.Now,
	}
}

// Store indexes docs into the artifact/plugin partition and finalizes the
// row. The returned error is only set when the row itself could not be
// written; indexing failures are reported through the outcome status.
func (s *Sink) Store(ctx context.Context, spec types.TaskSpec, docs []*render.Document, renderErrs []render.RenderError) (Outcome, error) {
	summary := render.Summary(renderErrs)

	if len(docs) == 0 {
		return s.finalize(ctx, spec, types.StatusEmptySuccess, summary, index.Stats{})
	}

	indexName := types.IndexName(spec.Artifact, spec.Plugin)
	records := index.BuildRecords(indexName, spec.Plugin.Name, docs)

	stats, err := s.indexer.BulkIndex(ctx, records)
	if err != nil {
		s.logger.Warn("bulk index failed",
			zap.String("artifact_id", spec.Artifact.ID),
			zap.String("plugin", spec.Plugin.Name),
			zap.String("index", indexName),
			zap.Int("failed", stats.Failed),
			zap.Error(err))
		return s.finalize(ctx, spec, types.StatusIndexingFailed, joinLines(types.Diagnostic(err), summary), stats)
	}

	return s.finalize(ctx, spec, types.StatusSuccess, summary, stats)
}

// Fail finalizes the row for a task that failed before producing documents.
func (s *Sink) Fail(ctx context.Context, spec types.TaskSpec, cause error) (Outcome, error) {
	return s.finalize(ctx, spec, types.StatusForError(cause), types.Diagnostic(cause), index.Stats{})
}

func (s *Sink) finalize(ctx context.Context, spec types.TaskSpec, status types.TaskStatus, description string, stats index.Stats) (Outcome, error) {
	// 任务超时后仍要写终态
	writeCtx := context.WithoutCancel(ctx)

	out := Outcome{
		Result: types.TaskResult{
			ArtifactID:  spec.Artifact.ID,
			PluginName:  spec.Plugin.Name,
			Status:      status,
			Description: description,
			UpdatedAt:   s.now().UTC(),
		},
		Stats: stats,
	}
	if err := s.results.Finalize(writeCtx, spec.Artifact.ID, spec.Plugin.Name, status, description); err != nil {
		s.logger.Error("finalize task result failed",
			zap.String("artifact_id", spec.Artifact.ID),
			zap.String("plugin", spec.Plugin.Name),
			zap.Stringer("status", status),
			zap.Error(err))
		return out, err
	}

	s.logger.Info("task result stored",
		zap.String("artifact_id", spec.Artifact.ID),
		zap.String("plugin", spec.Plugin.Name),
		zap.Stringer("status", status),
		zap.Int("documents", stats.Indexed))
	return out, nil
}

func joinLines(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n")
}
