// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 render 将插件输出的层级结果树扁平化为可索引的有序文档。

Renderer 以先序遍历访问每个节点一次，按列类型选择格式化函数，
缺失值（plugin.AbsentValue）渲染为 null。子节点文档追加到父文档的
__children 槽位，根节点构成输出序列。单个节点的渲染问题以
RenderError 收集返回，不会中断遍历。
*/
package render
