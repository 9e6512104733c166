package index

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/dumpflow/config"
	"github.com/BaSui01/dumpflow/render"
	"github.com/BaSui01/dumpflow/types"
)

func docs(n int) []*render.Document {
	out := make([]*render.Document, n)
	for i := range out {
		d := render.NewDocument()
		d.Set("Offset", i)
		out[i] = d
	}
	return out
}

func TestBuildRecords_FreshIDs(t *testing.T) {
	records := BuildRecords("mem01_banners.banners", "banners.Banners", docs(3))
	require.Len(t, records, 3)

	seen := map[string]bool{}
	for _, r := range records {
		assert.Equal(t, "mem01_banners.banners", r.Index)
		assert.Equal(t, "banners.Banners", r.Type)
		assert.NotEmpty(t, r.ID)
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}

	again := BuildRecords("mem01_banners.banners", "banners.Banners", docs(3))
	assert.NotEqual(t, records[0].ID, again[0].ID)
}

func TestMemoryIndexer(t *testing.T) {
	m := NewMemoryIndexer()
	ctx := context.Background()

	stats, err := m.BulkIndex(ctx, BuildRecords("a_x", "x", docs(2)))
	require.NoError(t, err)
	assert.Equal(t, Stats{Added: 2, Indexed: 2}, stats)

	_, err = m.BulkIndex(ctx, BuildRecords("a_x", "x", docs(1)))
	require.NoError(t, err)
	assert.Equal(t, 3, m.Count("a_x"))
	assert.Equal(t, []string{"a_x"}, m.Indices())
	assert.Len(t, m.Records("a_x"), 3)

	m.FailWith(errors.New("cluster red"))
	stats, err = m.BulkIndex(ctx, BuildRecords("a_y", "y", docs(2)))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrIndexingFailure))
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 0, m.Count("a_y"))
}

// fakeCluster 模拟 _bulk 接口，source 中含有 poison 的文档返回 400
type fakeCluster struct {
	mu   sync.Mutex
	docs map[string]map[string]json.RawMessage
	// bulkStatus 非零时 _bulk 直接返回该状态码
	bulkStatus int
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if !strings.HasSuffix(r.URL.Path, "/_bulk") {
		_, _ = w.Write([]byte(`{"version":{"number":"8.15.0"},"tagline":"You Know, for Search"}`))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bulkStatus != 0 {
		w.WriteHeader(f.bulkStatus)
		_, _ = w.Write([]byte(`{"error":{"type":"cluster_block_exception","reason":"index read-only"},"status":503}`))
		return
	}

	type meta struct {
		Index struct {
			Index string `json:"_index"`
			ID    string `json:"_id"`
		} `json:"index"`
	}

	var items []map[string]any
	hasErrors := false
	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)
	for scanner.Scan() {
		var m meta
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !scanner.Scan() {
			break
		}
		source := append(json.RawMessage(nil), scanner.Bytes()...)
		item := map[string]any{"_index": m.Index.Index, "_id": m.Index.ID}
		if strings.Contains(string(source), "poison") {
			hasErrors = true
			item["status"] = 400
			item["error"] = map[string]any{"type": "mapper_parsing_exception", "reason": "failed to parse"}
		} else {
			item["status"] = 201
			item["result"] = "created"
			if f.docs[m.Index.Index] == nil {
				f.docs[m.Index.Index] = map[string]json.RawMessage{}
			}
			f.docs[m.Index.Index][m.Index.ID] = source
		}
		items = append(items, map[string]any{"index": item})
	}

	_ = json.NewEncoder(w).Encode(map[string]any{"took": 1, "errors": hasErrors, "items": items})
}

func newTestElastic(t *testing.T) (*ElasticIndexer, *fakeCluster) {
	t.Helper()
	cluster := &fakeCluster{docs: map[string]map[string]json.RawMessage{}}
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	cfg := config.DefaultElasticsearchConfig()
	cfg.Addresses = []string{srv.URL}
	cfg.BulkWorkers = 1
	cfg.MaxRetries = 0

	idx, err := NewElasticIndexer(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return idx, cluster
}

func TestElasticIndexer_BulkIndex(t *testing.T) {
	idx, cluster := newTestElastic(t)

	records := BuildRecords("mem01_banners.banners", "banners.Banners", docs(3))
	stats, err := idx.BulkIndex(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Indexed)
	assert.Equal(t, 0, stats.Failed)

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	require.Len(t, cluster.docs["mem01_banners.banners"], 3)
	assert.JSONEq(t, `{"__children":[],"Offset":0}`, string(cluster.docs["mem01_banners.banners"][records[0].ID]))
}

func TestElasticIndexer_PartialFailure(t *testing.T) {
	idx, _ := newTestElastic(t)

	ds := docs(3)
	ds[1].Set("Banner", "poison")
	stats, err := idx.BulkIndex(context.Background(), BuildRecords("m_x", "x", ds))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrIndexingFailure))
	assert.Equal(t, 1, stats.Failed)
	assert.Contains(t, types.Diagnostic(err), "1 of 3 documents failed to index")
	assert.Contains(t, types.Diagnostic(err), "mapper_parsing_exception")
}

func TestElasticIndexer_Unreachable(t *testing.T) {
	cfg := config.DefaultElasticsearchConfig()
	cfg.Addresses = []string{"http://127.0.0.1:1"}
	cfg.MaxRetries = 0
	idx, err := NewElasticIndexer(cfg, nil)
	require.NoError(t, err)

	stats, err := idx.BulkIndex(context.Background(), BuildRecords("m_x", "x", docs(1)))
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrIndexingFailure))
	assert.Equal(t, 1, stats.Failed)

	diag := types.Diagnostic(err)
	assert.True(t, strings.HasPrefix(diag, "1 of 1 documents failed to index\n"), diag)
	assert.Equal(t, 1, strings.Count(diag, "bulk request:"), diag)
	assert.Error(t, idx.Ping(context.Background()))
}

func TestElasticIndexer_BulkRequestRejected(t *testing.T) {
	idx, cluster := newTestElastic(t)
	cluster.bulkStatus = http.StatusServiceUnavailable

	stats, err := idx.BulkIndex(context.Background(), BuildRecords("m_x", "x", docs(3)))
	require.Error(t, err)
	assert.Equal(t, 3, stats.Failed)
	assert.Zero(t, stats.Indexed)

	diag := types.Diagnostic(err)
	assert.True(t, strings.HasPrefix(diag, "3 of 3 documents failed to index\n"), diag)
	assert.Equal(t, 1, strings.Count(diag, "bulk request:"), diag)
	assert.Contains(t, diag, "503")
}

func TestElasticIndexer_CanceledContextKeepsCause(t *testing.T) {
	idx, _ := newTestElastic(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.BulkIndex(ctx, BuildRecords("m_x", "x", docs(2)))
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))
	assert.ErrorIs(t, err, context.Canceled)

	diag := types.Diagnostic(err)
	assert.True(t, strings.HasPrefix(diag, "bulk "), diag)
	assert.Contains(t, diag, "context canceled")
}

func TestElasticIndexer_EmptyIsNoop(t *testing.T) {
	idx, _ := newTestElastic(t)
	stats, err := idx.BulkIndex(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestElasticIndexer_Ping(t *testing.T) {
	idx, _ := newTestElastic(t)
	assert.NoError(t, idx.Ping(context.Background()))
}

func TestNewElasticIndexer_NoAddresses(t *testing.T) {
	_, err := NewElasticIndexer(config.ElasticsearchConfig{}, nil)
	assert.Error(t, err)
}
