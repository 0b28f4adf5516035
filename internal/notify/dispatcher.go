package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/idempotency"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/message"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/metrics"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/queue"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/recorder"
)

// ==================== Dispatcher 调度器 ====================

// Dispatcher 读取事件调度器
// 消费成功后由 HTTP 层调用;整条链路与生命周期操作完全解耦,
// 这里的任何失败都不会改变消费操作已经产生的结果
type Dispatcher struct {
	notifier Notifier
	checker  idempotency.Checker
	recorder recorder.Recorder

	// enqueuer 为空时退化为 inline 模式,在独立 goroutine 中直接投递
	enqueuer queue.Enqueuer

	previewLimit   int
	idempotencyTTL time.Duration

	timeProvider func() time.Time
}

// DispatcherOptions 调度器配置
type DispatcherOptions struct {
	Notifier       Notifier
	Checker        idempotency.Checker
	Recorder       recorder.Recorder
	Enqueuer       queue.Enqueuer
	PreviewLimit   int
	IdempotencyTTL time.Duration
}

// NewDispatcher 创建读取事件调度器
func NewDispatcher(options DispatcherOptions) *Dispatcher {
	recorderImpl := options.Recorder
	if recorderImpl == nil {
		recorderImpl = recorder.NoopRecorder{}
	}

	previewLimit := options.PreviewLimit
	if previewLimit <= 0 {
		previewLimit = DefaultPreviewLimit
	}

	idempotencyTTL := options.IdempotencyTTL
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}

	return &Dispatcher{
		notifier:       options.Notifier,
		checker:        options.Checker,
		recorder:       recorderImpl,
		enqueuer:       options.Enqueuer,
		previewLimit:   previewLimit,
		idempotencyTTL: idempotencyTTL,
		timeProvider:   time.Now,
	}
}

// SetTimeProvider 替换时间源(仅测试使用)
func (dispatcher *Dispatcher) SetTimeProvider(provider func() time.Time) {
	dispatcher.timeProvider = provider
}

// ==================== 事件入口 ====================

// DispatchRead 调度一条消息读取事件
// 去重后入队或在后台投递;所有错误只记录日志,不向调用方传播
func (dispatcher *Dispatcher) DispatchRead(ctx context.Context, record message.Record) {
	event := ReadEvent{
		MessageID: record.ID,
		Preview:   BuildPreview(record.Content, dispatcher.previewLimit),
		ReadAt:    dispatcher.timeProvider(),
	}

	dispatcher.DispatchEvent(ctx, event)
}

// DispatchEvent 调度一条已构建的读取事件
func (dispatcher *Dispatcher) DispatchEvent(ctx context.Context, event ReadEvent) {
	if dispatcher.notifier == nil {
		return
	}

	if !dispatcher.passIdempotency(ctx, event.MessageID) {
		return
	}

	if dispatcher.enqueuer != nil {
		dispatcher.enqueueEvent(ctx, event)
		return
	}

	// inline 模式:不阻塞请求路径,在后台尽力投递一次
	go func() {
		deliverCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := dispatcher.Deliver(deliverCtx, event, 1); err != nil {
			log.Printf("[Notify] 消息 %s 的读取通知投递失败: %v", event.MessageID, err)
		}
	}()
}

// passIdempotency 执行去重检查
// 检查器故障时放行而不是拦截,宁可重复通知也不丢通知
func (dispatcher *Dispatcher) passIdempotency(ctx context.Context, messageID string) bool {
	if dispatcher.checker == nil {
		return true
	}

	isFirst, err := dispatcher.checker.CheckAndSet(ctx, messageID, dispatcher.idempotencyTTL)
	if err != nil {
		log.Printf("[Notify] 消息 %s 去重检查失败,按首次处理: %v", messageID, err)
		return true
	}

	if !isFirst {
		log.Printf("[Notify] 消息 %s 的读取事件重复,跳过通知", messageID)
	}

	return isFirst
}

// enqueueEvent 把事件发布到异步队列
func (dispatcher *Dispatcher) enqueueEvent(ctx context.Context, event ReadEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Notify] 消息 %s 的读取事件编码失败: %v", event.MessageID, err)
		return
	}

	if err := dispatcher.enqueuer.Enqueue(ctx, payload); err != nil {
		log.Printf("[Notify] 消息 %s 的读取事件入队失败: %v", event.MessageID, err)
	}
}

// ==================== 投递执行 ====================

// Deliver 执行一次通知投递并记录结果
// 队列消费者和 inline 模式共用;返回错误时由队列层决定重试
func (dispatcher *Dispatcher) Deliver(ctx context.Context, event ReadEvent, attempt int) error {
	deliveryErr := dispatcher.notifier.Notify(ctx, event)

	dispatcher.saveRecord(ctx, event, attempt, deliveryErr)

	if deliveryErr != nil {
		metrics.NotificationsFailed.Inc()
		return fmt.Errorf("deliver read notification for %s: %w", event.MessageID, deliveryErr)
	}

	metrics.NotificationsSent.Inc()
	return nil
}

// HandleQueuedEvent 处理队列中的读取事件载荷
// 作为 NSQ 消费者的 HandlerFunc 使用
func (dispatcher *Dispatcher) HandleQueuedEvent(ctx context.Context, payload []byte, attempts uint16) error {
	var event ReadEvent

	if err := json.Unmarshal(payload, &event); err != nil {
		// 载荷损坏无法通过重试修复,记录后吞掉
		log.Printf("[Notify] 队列载荷解码失败,丢弃: %v", err)
		return nil
	}

	return dispatcher.Deliver(ctx, event, int(attempts))
}

// saveRecord 写入投递记录
func (dispatcher *Dispatcher) saveRecord(ctx context.Context, event ReadEvent, attempt int, deliveryErr error) {
	record := recorder.Record{
		MessageID:   event.MessageID,
		Attempt:     attempt,
		Status:      recorder.StatusSent,
		ReadAt:      event.ReadAt,
		DeliveredAt: dispatcher.timeProvider(),
	}

	if deliveryErr != nil {
		record.Status = recorder.StatusFailed
		record.ErrorDetail = deliveryErr.Error()
	}

	if err := dispatcher.recorder.Save(ctx, record); err != nil {
		log.Printf("[Notify] 消息 %s 的投递记录写入失败: %v", event.MessageID, err)
	}
}
