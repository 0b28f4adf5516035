// Package queue 提供读取事件的异步投递管道
// 消费成功后生命周期侧把读取事件入队即返回,
// 通知投递在独立的消费者中进行,拥有自己的重试与死信策略
package queue

import "context"

// Enqueuer 入队接口
type Enqueuer interface {
	Enqueue(ctx context.Context, payload []byte) error
	Close()
}
