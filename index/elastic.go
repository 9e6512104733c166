package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"go.uber.org/zap"

	"github.com/BaSui01/dumpflow/config"
	"github.com/BaSui01/dumpflow/internal/tlsutil"
	"github.com/BaSui01/dumpflow/types"
)

// maxReportedFailures 错误描述中最多列出的失败条目数
const maxReportedFailures = 10

// ElasticIndexer 基于 esutil.BulkIndexer 的批量写入实现
type ElasticIndexer struct {
	client *elasticsearch.Client
	cfg    config.ElasticsearchConfig
	logger *zap.Logger
}

// NewElasticIndexer 创建 Elasticsearch 客户端。HTTPS 节点使用加固的 TLS 传输。
func NewElasticIndexer(cfg config.ElasticsearchConfig, logger *zap.Logger) (*ElasticIndexer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch: no addresses configured")
	}

	transport, err := tlsutil.SecureTransport(cfg.CACertFile)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: %w", err)
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		APIKey:     cfg.APIKey,
		MaxRetries: cfg.MaxRetries,
		Transport:  transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	return &ElasticIndexer{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "elastic_indexer")),
	}, nil
}

// BulkIndex 实现 Indexer。任一条目失败或请求出错都返回 INDEXING_FAILURE。
func (e *ElasticIndexer) BulkIndex(ctx context.Context, records []Record) (Stats, error) {
	if len(records) == 0 {
		return Stats{}, nil
	}

	// 请求级错误（连接失败、非 2xx）与条目级失败分开记录，
	// 同一请求错误 esutil 会回调两次
	requests := &failureLog{}
	items := &failureLog{}
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        e.client,
		NumWorkers:    e.cfg.BulkWorkers,
		FlushBytes:    e.cfg.FlushBytes,
		FlushInterval: e.cfg.FlushInterval,
		OnError: func(ctx context.Context, err error) {
			requests.add(fmt.Sprintf("bulk request: %v", err))
		},
	})
	if err != nil {
		return Stats{}, types.NewError(types.ErrIndexingFailure, fmt.Sprintf("create bulk indexer: %v", err)).WithCause(err)
	}

	var addErr error
	encodeFailed := 0
	for _, r := range records {
		body, err := json.Marshal(r.Source)
		if err != nil {
			encodeFailed++
			items.add(fmt.Sprintf("encode %s: %v", r.ID, err))
			continue
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			Index:      r.Index,
			DocumentID: r.ID,
			Body:       bytes.NewReader(body),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					items.add(fmt.Sprintf("%s/%s: %v", item.Index, item.DocumentID, err))
					return
				}
				items.add(fmt.Sprintf("%s/%s: %s: %s", item.Index, item.DocumentID, res.Error.Type, res.Error.Reason))
			},
		})
		if err != nil {
			addErr = err
			break
		}
	}

	closeErr := bi.Close(ctx)
	bs := bi.Stats()
	stats := Stats{
		Added:   len(records),
		Indexed: int(bs.NumIndexed),
		// NumFailed 已包含整批请求失败的条目
		Failed: int(bs.NumFailed) + encodeFailed,
	}

	e.logger.Debug("bulk index finished",
		zap.Int("added", stats.Added),
		zap.Int("indexed", stats.Indexed),
		zap.Int("failed", stats.Failed),
		zap.Int("request_errors", requests.count()))

	switch {
	case addErr != nil:
		return stats, indexingError(fmt.Sprintf("bulk add: %v", addErr), requests, items).
			WithCause(addErr).WithRetryable(true)
	case closeErr != nil:
		return stats, indexingError(fmt.Sprintf("bulk flush: %v", closeErr), requests, items).
			WithCause(closeErr).WithRetryable(true)
	case stats.Failed > 0 || requests.count() > 0:
		msg := fmt.Sprintf("%d of %d documents failed to index", stats.Failed, stats.Added)
		return stats, indexingError(msg, requests, items)
	}
	return stats, nil
}

// indexingError 汇总首行与各类失败明细
func indexingError(summary string, logs ...*failureLog) *types.Error {
	lines := []string{summary}
	for _, l := range logs {
		if s := l.String(); s != "" {
			lines = append(lines, s)
		}
	}
	return types.NewError(types.ErrIndexingFailure, strings.Join(lines, "\n"))
}

// Ping 检查集群是否可达
func (e *ElasticIndexer) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

// failureLog 收集 BulkIndexer 回调中的失败信息，回调可能来自多个 worker。
// 相同的行只记一次。
type failureLog struct {
	mu    sync.Mutex
	n     int
	seen  map[string]struct{}
	lines []string
}

func (f *failureLog) add(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.seen[line]; dup {
		return
	}
	if f.seen == nil {
		f.seen = make(map[string]struct{})
	}
	f.seen[line] = struct{}{}
	f.n++
	if len(f.lines) < maxReportedFailures {
		f.lines = append(f.lines, line)
	}
}

func (f *failureLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

func (f *failureLog) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := strings.Join(f.lines, "\n")
	if f.n > len(f.lines) {
		out += fmt.Sprintf("\n... %d more", f.n-len(f.lines))
	}
	return out
}
