package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/dumpflow/plugin"
	"github.com/BaSui01/dumpflow/types"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// BaseConfigPath is the root of the plugin configuration tree.
	BaseConfigPath string
	// Timeout bounds one task; zero means no deadline.
	Timeout time.Duration
}

// Runner builds and runs one plugin per task.
type Runner struct {
	registry *plugin.Registry
	cfg      RunnerConfig
	logger   *zap.Logger
}

// NewRunner creates a Runner over the given plugin registry.
func NewRunner(registry *plugin.Registry, cfg RunnerConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		registry: registry,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "runner")),
	}
}

type runResult struct {
	tree *plugin.Tree
	err  error
}

// Run executes spec.Plugin against spec.Path and returns its result tree.
// Every failure is returned as a *types.Error whose code maps to the
// task's terminal status.
func (r *Runner) Run(ctx context.Context, spec types.TaskSpec) (*plugin.Tree, error) {
	def, ok := r.registry.Get(spec.Plugin.Name)
	if !ok {
		return nil, types.NewError(types.ErrPluginNotFound,
			fmt.Sprintf("plugin %s is not available on this worker", spec.Plugin.Name))
	}

	location, err := plugin.FileURL(spec.Path)
	if err != nil {
		return nil, types.NewError(types.ErrExecutionFailure, err.Error()).WithCause(err)
	}

	pctx := plugin.NewContext()
	pctx.Set(plugin.SingleLocationKey, location)
	automagics := plugin.ChooseAutomagic(r.registry.Automagics(), def)

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	done := make(chan runResult, 1)
	go func() {
		tree, err := r.protect(ctx, pctx, automagics, def)
		done <- runResult{tree: tree, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil {
			return nil, r.contextFailure(ctx, spec)
		}
		return res.tree, res.err
	case <-ctx.Done():
		// 插件可能忽略 ctx，goroutine 结束后结果被丢弃
		return nil, r.contextFailure(ctx, spec)
	}
}

// protect runs construction and execution behind a recover boundary.
func (r *Runner) protect(ctx context.Context, pctx *plugin.Context, automagics []plugin.Automagic, def plugin.Definition) (tree *plugin.Tree, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			tree = nil
			err = types.NewError(types.ErrExecutionFailure,
				fmt.Sprintf("panic: %v\n\n%s", rec, debug.Stack()))
		}
	}()

	constructed, err := plugin.Construct(ctx, pctx, automagics, def, r.cfg.BaseConfigPath)
	if err != nil {
		var unsatisfied *plugin.UnsatisfiedError
		if errors.As(err, &unsatisfied) {
			return nil, types.NewError(types.ErrUnsatisfiedRequirements,
				strings.Join(unsatisfied.Descriptions(), "\n")).WithCause(err)
		}
		return nil, types.NewError(types.ErrExecutionFailure, Trace(err)).WithCause(err)
	}
	for _, ae := range constructed.AutomagicErrors {
		r.logger.Debug("automagic failed",
			zap.String("plugin", def.Name()),
			zap.String("automagic", ae.Automagic),
			zap.Error(ae.Err))
	}

	tree, err = constructed.Plugin.Run(ctx)
	if err != nil {
		return nil, types.NewError(types.ErrExecutionFailure, Trace(err)).WithCause(err)
	}
	if tree == nil {
		tree = plugin.NewTree()
	}
	return tree, nil
}

func (r *Runner) contextFailure(ctx context.Context, spec types.TaskSpec) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.NewError(types.ErrTaskTimeout,
			fmt.Sprintf("plugin %s exceeded the task timeout of %s", spec.Plugin.Name, r.cfg.Timeout)).
			WithCause(ctx.Err())
	}
	return types.NewError(types.ErrExecutionFailure,
		fmt.Sprintf("plugin %s was canceled", spec.Plugin.Name)).WithCause(ctx.Err())
}

// Trace renders an error chain one cause per line, outermost first.
func Trace(err error) string {
	if err == nil {
		return ""
	}
	lines := []string{err.Error()}
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		lines = append(lines, "caused by: "+cause.Error())
	}
	return strings.Join(lines, "\n")
}
