// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package broker 提供基于 Redis 列表的分布式任务队列。

# 概述

生产者用 LPUSH 把任务写入队列尾，消费者用 BRPOP 从队列头阻塞取出，
多个 worker 进程可以同时消费同一队列，每条消息只会被一个消费者取到。

消息体是不透明的字节串，编码由调用方决定。

# 用法

	b, err := broker.New(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	_ = b.Enqueue(ctx, payload)
	msg, err := b.Dequeue(ctx)
	if errors.Is(err, broker.ErrQueueEmpty) {
		// 阻塞超时，继续轮询
	}
*/
package broker
