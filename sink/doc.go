// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package sink 把一次插件执行的结果落地：批量写入搜索引擎，并把
(artifact, plugin) 的任务结果行写为终态。

# 终态

  - 无文档：不调用搜索引擎，EMPTY_SUCCESS
  - 写入成功：SUCCESS，描述为渲染错误汇总（可为空）
  - 写入失败：INDEXING_FAILED，描述为失败原因加渲染错误汇总

执行阶段的失败（UNSATISFIED、EXECUTION_FAILED）通过 Sink.Fail 记录。
*/
package sink
