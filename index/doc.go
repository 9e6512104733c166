// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package index 提供搜索引擎边界：批量写入扁平化文档。

# 概述

Indexer 接收一组 {index, type, id, source} 记录并批量写入。
分区名由 types.IndexName 生成，文档 ID 在写入时用 UUID 新分配。

# 实现

  - ElasticIndexer: 基于 go-elasticsearch 的 esutil.BulkIndexer
  - MemoryIndexer: 进程内实现，用于测试和未配置搜索引擎的部署
*/
package index
