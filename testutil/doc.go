// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 DumpFlow 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 数据库: NewTestPool 创建建好表的内存 SQLite 连接池
  - 文件: WriteFile / WriteZip 在临时目录构造镜像与归档
  - 断言: AssertJSONEqual / AssertEventuallyTrue / WaitFor

# 子包

  - testutil/fixtures: 测试插件（固定结果树、失败、panic、缺失配置、阻塞）
    与样例结果树
  - testutil/mocks: RecordingSubmitter，记录提交的任务并支持错误注入

# 使用示例

	ctx := testutil.TestContext(t)
	registry := fixtures.Registry()
	results := store.NewResults(testutil.NewTestPool(t), nil)
*/
package testutil
