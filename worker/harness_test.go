package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/dumpflow/index"
	"github.com/BaSui01/dumpflow/plugin"
	"github.com/BaSui01/dumpflow/render"
	"github.com/BaSui01/dumpflow/sink"
	"github.com/BaSui01/dumpflow/store"
	"github.com/BaSui01/dumpflow/testutil"
	"github.com/BaSui01/dumpflow/testutil/fixtures"
	"github.com/BaSui01/dumpflow/types"
)

type harness struct {
	artifact types.Artifact
	results  *store.Results
	index    *index.MemoryIndexer
	sink     *sink.Sink
	executor *Executor
	image    string
}

func newHarness(t *testing.T, registry *plugin.Registry, cfg RunnerConfig) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	if registry == nil {
		registry = fixtures.Registry()
	}

	h := &harness{
		artifact: types.Artifact{ID: "a1", Index: "case42", OperatingSystem: types.OSLinux},
		results:  store.NewResults(testutil.NewTestPool(t), logger),
		index:    index.NewMemoryIndexer(),
		image:    testutil.WriteFile(t, "mem.raw", []byte("memory image")),
	}
	h.sink = sink.New(h.index, h.results, logger)
	h.executor = NewExecutor(NewRunner(registry, cfg, logger), render.NewRenderer(), h.sink, nil, logger)
	return h
}

func (h *harness) spec(pluginName string) types.TaskSpec {
	return types.TaskSpec{
		Artifact: h.artifact,
		Plugin:   types.PluginDescriptor{Name: pluginName, OperatingSystem: types.OSLinux},
		Path:     h.image,
	}
}

func (h *harness) pending(t *testing.T, plugins ...string) {
	t.Helper()
	require.NoError(t, h.results.CreatePending(context.Background(), h.artifact.ID, plugins))
}

func (h *harness) result(t *testing.T, pluginName string) *types.TaskResult {
	t.Helper()
	res, err := h.results.Get(context.Background(), h.artifact.ID, pluginName)
	require.NoError(t, err)
	return res
}
