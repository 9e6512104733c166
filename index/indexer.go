package index

import (
	"context"

	"github.com/google/uuid"

	"github.com/BaSui01/dumpflow/render"
)

// Record 一条待写入搜索引擎的文档
type Record struct {
	Index  string
	Type   string
	ID     string
	Source *render.Document
}

// Stats 单次批量写入的统计
type Stats struct {
	Added   int `json:"added"`
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// Indexer 搜索引擎批量写入端口。
// 并发调用必须是安全的，不同任务会同时写入不同分区。
type Indexer interface {
	BulkIndex(ctx context.Context, records []Record) (Stats, error)
}

// BuildRecords 为每个文档生成一条记录，并分配新的唯一 ID
func BuildRecords(index, docType string, docs []*render.Document) []Record {
	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, Record{
			Index:  index,
			Type:   docType,
			ID:     uuid.NewString(),
			Source: doc,
		})
	}
	return records
}
