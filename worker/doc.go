// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package worker 执行单个 (artifact, plugin) 任务，并提供把任务交给
worker 池的提交端口。

# 执行链路

Runner 为每个任务新建隔离的 plugin.Context（内部并行关闭），选择适用的
automagic，把输入路径写入 single_location，构造并运行插件。插件代码运行在
recover 边界内，panic 与返回的错误都转成 EXECUTION_FAILURE，带完整的
错误链或 goroutine 栈；缺失配置转成 UNSATISFIED_REQUIREMENTS，描述按行拼接。
配置了 task_timeout 时超过期限的任务以 TASK_TIMEOUT 结束。

Executor 串起 Runner、render.Renderer 与 sink.Sink，记录指标和 span。

# 提交

  - LocalSubmitter：进程内 GoroutinePool，适合单机部署与测试
  - QueueSubmitter：把 TaskSpec 编码为 JSON 写入 Redis 队列，
    由 Consumer 在任意 worker 进程中取出执行

提交是 fire-and-forget 的：调用方拿不到任务句柄，进度只能通过轮询
任务结果行获得。
*/
package worker
