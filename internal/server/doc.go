// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 worker 进程运维端点的 HTTP 服务器生命周期管理。

# 概述

Manager 封装 net/http.Server，统一管理监听、服务、关闭与错误传播。
NewOpsHandler 提供两个端点：

  - /metrics：Prometheus 指标
  - /healthz：并发执行依赖检查（数据库、Redis、搜索引擎），
    全部通过返回 200，否则返回 503 与每项检查的错误

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - Run：阻塞到 context 结束，便于放入 errgroup。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空与连接释放。
  - 错误传播：Errors() 返回异步错误通道。
*/
package server
