// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 dumpflow 各包共享的类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包。dispatch、worker、sink、
store 之间传递的实体、状态码和错误码都定义于此，以避免循环依赖。

# 核心类型

  - Artifact : 已上传的内存镜像，Index 为索引分区前缀
  - PluginDescriptor : 插件目录条目（名称、操作系统、禁用标记）
  - TaskSpec : 提交给 worker 的任务，可 JSON 序列化后入队
  - TaskResult : 每个 (artifact, plugin) 对的一行结果
  - TaskStatus : PENDING 与六种终态，数值与持久化列一致
  - Error / ErrorCode : 结构化错误，Message 即写入结果行的诊断文本

# 主要能力

  - 分区命名：IndexName 生成 {artifact.Index}_{插件名小写}
  - 插件分类：ClassifyPlugin 按名称前缀推断操作系统
  - 失败映射：StatusForError 把错误码映射为终态，Diagnostic 取诊断文本
*/
package types
