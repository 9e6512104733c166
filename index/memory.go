package index

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/dumpflow/types"
)

// MemoryIndexer 进程内索引，按分区保存记录
type MemoryIndexer struct {
	mu      sync.RWMutex
	indices map[string]map[string]Record
	failErr error
}

// NewMemoryIndexer 创建空的内存索引
func NewMemoryIndexer() *MemoryIndexer {
	return &MemoryIndexer{indices: make(map[string]map[string]Record)}
}

// FailWith 让后续 BulkIndex 调用返回 err；传 nil 恢复正常
func (m *MemoryIndexer) FailWith(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

// BulkIndex 实现 Indexer
func (m *MemoryIndexer) BulkIndex(ctx context.Context, records []Record) (Stats, error) {
	stats := Stats{Added: len(records)}
	if err := ctx.Err(); err != nil {
		stats.Failed = len(records)
		return stats, types.NewError(types.ErrIndexingFailure, "bulk index aborted").WithCause(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		stats.Failed = len(records)
		return stats, types.NewError(types.ErrIndexingFailure, m.failErr.Error()).
			WithCause(m.failErr).
			WithRetryable(true)
	}

	for _, r := range records {
		part, ok := m.indices[r.Index]
		if !ok {
			part = make(map[string]Record)
			m.indices[r.Index] = part
		}
		part[r.ID] = r
	}
	stats.Indexed = len(records)
	return stats, nil
}

// Count 返回分区中的文档数
func (m *MemoryIndexer) Count(index string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.indices[index])
}

// Records 返回分区中的全部记录，按 ID 排序
func (m *MemoryIndexer) Records(index string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.indices[index]))
	for _, r := range m.indices[index] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Indices 返回已有分区名，排序后返回
func (m *MemoryIndexer) Indices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.indices))
	for name := range m.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
