// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 DumpFlow 的分发、任务执行、渲染和写入索引提供 TracerProvider 与 MeterProvider。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
package telemetry
