package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/dumpflow/plugin"
	"github.com/BaSui01/dumpflow/testutil"
	"github.com/BaSui01/dumpflow/testutil/fixtures"
	"github.com/BaSui01/dumpflow/types"
)

func runSpec(pluginName, path string) types.TaskSpec {
	return types.TaskSpec{
		Artifact: types.Artifact{ID: "a1", Index: "case42"},
		Plugin:   types.PluginDescriptor{Name: pluginName},
		Path:     path,
	}
}

func TestRunner_Success(t *testing.T) {
	image := testutil.WriteFile(t, "mem.raw", []byte("x"))
	r := NewRunner(fixtures.Registry(), RunnerConfig{BaseConfigPath: "plugins"}, zaptest.NewLogger(t))

	tree, err := r.Run(context.Background(), runSpec(fixtures.ProcessListPlugin, image))
	require.NoError(t, err)
	assert.Equal(t, 4, tree.Len())
}

func TestRunner_UnsatisfiedJoinsDescriptions(t *testing.T) {
	image := testutil.WriteFile(t, "mem.raw", []byte("x"))
	r := NewRunner(fixtures.Registry(), RunnerConfig{}, nil)

	_, err := r.Run(context.Background(), runSpec(fixtures.UnsatisfiedPlugin, image))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUnsatisfiedRequirements))
	assert.Equal(t, "A\nB", types.Diagnostic(err))
	assert.Equal(t, types.StatusUnsatisfied, types.StatusForError(err))

	var unsatisfied *plugin.UnsatisfiedError
	assert.True(t, errors.As(err, &unsatisfied))
}

func TestRunner_MissingImageIsUnsatisfied(t *testing.T) {
	r := NewRunner(fixtures.Registry(), RunnerConfig{}, nil)

	_, err := r.Run(context.Background(), runSpec(fixtures.ProcessListPlugin, "/nonexistent/mem.raw"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUnsatisfiedRequirements))
	assert.Equal(t, "Memory layer for the image", types.Diagnostic(err))
}

func TestRunner_ExecutionErrorCarriesTrace(t *testing.T) {
	r := NewRunner(fixtures.Registry(), RunnerConfig{}, nil)

	_, err := r.Run(context.Background(), runSpec(fixtures.FailingPlugin, "/unused"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrExecutionFailure))
	assert.ErrorIs(t, err, fixtures.ErrPluginBroken)
	assert.Equal(t,
		"walk task list: symbol table not found\ncaused by: symbol table not found",
		types.Diagnostic(err))
	assert.Equal(t, types.StatusExecutionFailed, types.StatusForError(err))
}

func TestRunner_PanicIsContained(t *testing.T) {
	r := NewRunner(fixtures.Registry(), RunnerConfig{}, nil)

	_, err := r.Run(context.Background(), runSpec(fixtures.PanickingPlugin, "/unused"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrExecutionFailure))

	diag := types.Diagnostic(err)
	assert.Contains(t, diag, "panic: assignment to entry in nil map")
	assert.Contains(t, diag, "goroutine")
}

func TestRunner_PluginNotFound(t *testing.T) {
	r := NewRunner(plugin.NewRegistry(), RunnerConfig{}, nil)

	_, err := r.Run(context.Background(), runSpec("windows.info.Info", "/unused"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrPluginNotFound))
	assert.Equal(t, types.StatusExecutionFailed, types.StatusForError(err))
}

func TestRunner_Timeout(t *testing.T) {
	r := NewRunner(fixtures.Registry(), RunnerConfig{Timeout: 50 * time.Millisecond}, nil)

	_, err := r.Run(context.Background(), runSpec(fixtures.BlockingPlugin, "/unused"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTaskTimeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, types.StatusExecutionFailed, types.StatusForError(err))
}

func TestRunner_TimeoutWhenPluginIgnoresContext(t *testing.T) {
	registry := plugin.NewRegistry()
	require.NoError(t, registry.Register(fixtures.Blocking{IgnoreContext: true, Hold: 2 * time.Second}))
	r := NewRunner(registry, RunnerConfig{Timeout: 50 * time.Millisecond}, nil)

	start := time.Now()
	_, err := r.Run(context.Background(), runSpec(fixtures.BlockingPlugin, "/unused"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTaskTimeout))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunner_Canceled(t *testing.T) {
	r := NewRunner(fixtures.Registry(), RunnerConfig{}, nil)

	_, err := r.Run(testutil.CancelledContext(), runSpec(fixtures.BlockingPlugin, "/unused"))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrExecutionFailure))
	assert.ErrorIs(t, err, context.Canceled)
}

// contextRecorder records the execution context each construction sees.
type contextRecorder struct {
	mu    sync.Mutex
	seen  []*plugin.Context
	paths []string
}

func (p *contextRecorder) Name() string { return "recorder.Recorder" }

func (p *contextRecorder) Requirements() []plugin.Requirement {
	return []plugin.Requirement{{Name: plugin.PrimaryLayer, Description: "layer"}}
}

func (p *contextRecorder) New(pctx *plugin.Context, configPath string) (plugin.Plugin, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, pctx)
	p.paths = append(p.paths, pctx.GetString(plugin.JoinPath(configPath, plugin.PrimaryLayer)))
	return fixtures.Static{PluginName: "recorder.Recorder", Tree: fixtures.ProcessTree}.New(pctx, configPath)
}

func TestRunner_FreshContextPerRun(t *testing.T) {
	recorder := &contextRecorder{}
	registry := plugin.NewRegistry()
	registry.RegisterAutomagic(plugin.LayerStacker{})
	require.NoError(t, registry.Register(recorder))
	r := NewRunner(registry, RunnerConfig{BaseConfigPath: "plugins"}, nil)

	const runs = 8
	images := make([]string, runs)
	for i := range images {
		images[i] = testutil.WriteFile(t, fmt.Sprintf("mem%d.raw", i), []byte("x"))
	}

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Run(context.Background(), runSpec("recorder.Recorder", images[i]))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, recorder.seen, runs)
	distinct := map[*plugin.Context]bool{}
	for _, pctx := range recorder.seen {
		distinct[pctx] = true
		assert.Equal(t, plugin.ParallelismOff, pctx.Parallelism())
		assert.Contains(t, pctx.GetString(plugin.SingleLocationKey), "file://")
	}
	assert.Len(t, distinct, runs)
	assert.ElementsMatch(t, images, recorder.paths)
}

func TestRunner_BuiltinBanners(t *testing.T) {
	image := testutil.WriteFile(t, "mem.raw", []byte("\x00\x00Linux version 6.1.0-13-amd64 (debian)\x00\x00"))
	r := NewRunner(plugin.DefaultRegistry(), RunnerConfig{BaseConfigPath: "plugins"}, nil)

	tree, err := r.Run(context.Background(), runSpec("banners.Banners", image))
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Len())
}

func TestTrace(t *testing.T) {
	assert.Equal(t, "", Trace(nil))
	assert.Equal(t, "flat", Trace(errors.New("flat")))

	inner := errors.New("disk read")
	err := fmt.Errorf("scan: %w", fmt.Errorf("page 7: %w", inner))
	assert.Equal(t, "scan: page 7: disk read\ncaused by: page 7: disk read\ncaused by: disk read", Trace(err))
}
