// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的流水线指标采集能力，覆盖
分发、任务、worker 池、任务队列、HTTP 与数据库六个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册到默认 Registry，由 /metrics 端点暴露。所有指标按 namespace
隔离。nil Collector 的记录方法都是空操作，组件可以不接指标。

# 主要能力

  - 分发指标：按操作系统与结果统计分发次数，按提交模式统计任务提交。
  - 任务指标：按插件与终态统计任务结果、任务耗时、写入文档数与渲染错误数。
  - 池与队列：worker 池的 worker/活跃/排队数，Redis 队列长度。
  - HTTP 指标：运维端点的请求数与耗时，状态码归类为 2xx/3xx/4xx/5xx。
  - 数据库指标：打开与空闲连接数。
*/
package metrics
