package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/dumpflow/config"
	"github.com/BaSui01/dumpflow/types"
)

func TestRun_VersionAndHelp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out))
	assert.Contains(t, out.String(), "dumpflow dev")

	out.Reset()
	require.NoError(t, run([]string{"help"}, &out))
	assert.Contains(t, out.String(), "dispatch")
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"serve"}, &out)
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, out.String(), "Unknown command: serve")

	assert.ErrorIs(t, run(nil, &out), errUsage)
}

func TestRun_WorkerRequiresRedisMode(t *testing.T) {
	err := run([]string{"worker"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires worker.mode")
}

func TestRun_ArgumentErrors(t *testing.T) {
	assert.ErrorContains(t, run([]string{"dispatch"}, &bytes.Buffer{}), "exactly one artifact id")
	assert.ErrorContains(t, run([]string{"status"}, &bytes.Buffer{}), "exactly one artifact id")
	assert.ErrorIs(t, run([]string{"plugins"}, &bytes.Buffer{}), errUsage)
	assert.ErrorIs(t, run([]string{"artifact"}, &bytes.Buffer{}), errUsage)
	assert.ErrorContains(t, run([]string{"artifact", "add", "--id", "a1"}, &bytes.Buffer{}), "--id and --path")
}

func TestHealthCheck(t *testing.T) {
	var unhealthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, runHealthCheck([]string{"--addr", srv.URL}, &out))
	assert.Equal(t, "OK\n", out.String())

	unhealthy.Store(true)
	err := runHealthCheck([]string{"--addr", srv.URL}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestBuildArtifact(t *testing.T) {
	art, err := buildArtifact("a1", "/data/a1.zip", "Linux", "")
	require.NoError(t, err)
	assert.Equal(t, types.Artifact{ID: "a1", Path: "/data/a1.zip", OperatingSystem: types.OSLinux, Index: "a1"}, art)

	_, err = buildArtifact("a1", "/data/a1.zip", "beos", "x")
	assert.Error(t, err)
}

func TestWriteOutput(t *testing.T) {
	v := map[string]int{"submitted": 2}

	var out bytes.Buffer
	require.NoError(t, writeOutput(&out, "json", v, nil))
	assert.JSONEq(t, `{"submitted":2}`, out.String())

	out.Reset()
	require.NoError(t, writeOutput(&out, "yaml", v, nil))
	var decoded map[string]int
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, v, decoded)

	out.Reset()
	require.NoError(t, writeOutput(&out, "text", v, func(io.Writer) {}))
	assert.Error(t, writeOutput(&out, "xml", v, nil))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "", firstLine(""))
	assert.Equal(t, "A", firstLine("A"))
	assert.Equal(t, "A ...", firstLine("A\nB"))
}

func TestInitLogger(t *testing.T) {
	for _, cfg := range []config.LogConfig{
		{Level: "debug", Format: "console", OutputPaths: []string{"stderr"}},
		{Level: "bogus", Format: "json"},
	} {
		logger := initLogger(cfg)
		require.NotNil(t, logger)
		logger.Info("logger ready")
	}
}
