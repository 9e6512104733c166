// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 dumpflow 命令行入口。

# 子命令

  - worker : 消费 Redis 任务队列，在本地有界池中执行插件任务，
    同时在独立端口暴露 /metrics 与 /healthz
  - dispatch : 为 artifact 的每个适用插件创建结果行并提交任务；
    local 模式下等待本进程内的任务全部结束
  - status : 打印 artifact 的任务状态统计与逐行结果
  - plugins : 列出、同步、启用或禁用插件目录条目
  - artifact : 登记一个已上传的内存镜像
  - migrate : 数据库迁移（up、down、status 等）
  - health : 请求 worker 的 /healthz
  - version : 版本信息

所有子命令接受 --config 指定 YAML 配置文件，环境变量前缀为 DUMPFLOW_。
Version、BuildTime、GitCommit 通过 ldflags 注入。
*/
package main
