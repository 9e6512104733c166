// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package dispatch 把一个 artifact 扇出为每个适用插件一个任务。

Dispatch 先解析 artifact 路径（staging），再按操作系统列出插件目录，
为每个插件写入一行 PENDING 结果。禁用的插件直接写为 SKIPPED，
其余插件提交到 worker，不等待执行结果。单个任务提交失败时该行写为
EXECUTION_FAILED，其余插件照常提交。

归档错误或重复派发会在写入任何结果行之前返回错误。
*/
package dispatch
