// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 plugin 定义分析引擎边界：插件契约、执行上下文、automagic
配置推断以及插件输出的层级结果树。

# 核心类型

  - Context：单次执行的隔离配置上下文，内部并行默认关闭。
  - Definition / Plugin：插件定义与已构造实例，Run 返回 *Tree。
  - Automagic：推断插件所需配置的辅助组件，由 ChooseAutomagic 选择。
  - Construct：运行 automagic 并校验 Requirement，未满足时返回
    *UnsatisfiedError。
  - Tree / Node / Column：层级结果树；AbsentValue 表示缺失单元格。
  - Registry：插件与 automagic 注册表，DefaultRegistry 提供内置插件。

# 内置插件

  - banners.Banners：扫描镜像中的内核 banner 字符串。
  - frameworkinfo.FrameworkInfo：列出已注册插件及其 Requirement。
*/
package plugin
