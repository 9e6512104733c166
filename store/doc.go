// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package store 提供持久化边界：任务结果行、插件目录与 Artifact 读取。

# 任务结果

每个 (artifact, plugin) 对在派发时创建一行 PENDING 记录，
之后只能被 Finalize 写入一次终态。Finalize 以 status = PENDING
作为更新条件，因此重复写入会得到 INVALID_TRANSITION 而不是覆盖。

# 插件目录与 Artifact

Catalog 按操作系统分类查询插件描述（含禁用项），Artifacts 读取上传路径
登记的镜像信息。二者对派发流程都是只读的，写入方法只供 CLI 注册内置插件
和测试使用。
*/
package store
