package main

import (
	"log"
	"time"

	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/queue"
)

// ==================== 常量定义 ====================

const (
	notifyHandleTimeout = 30 * time.Second
)

// ==================== 读取通知消费者 ====================

// NotifyConsumerManager 读取通知队列消费者管理器
// 从 NSQ 读取事件并交给调度器投递,失败时按退避重试,
// 超过最大尝试次数后转入死信队列
type NotifyConsumerManager struct {
	appContext     *AppContext
	consumerConfig queue.ConsumerConfig
}

// NewNotifyConsumerManager 创建读取通知消费者管理器实例
func NewNotifyConsumerManager(appContext *AppContext) *NotifyConsumerManager {
	nsqConfig := appContext.Configuration.NSQ

	return &NotifyConsumerManager{
		appContext: appContext,
		consumerConfig: queue.ConsumerConfig{
			Topic:                nsqConfig.Topic,
			Channel:              nsqConfig.Channel,
			MaxInFlight:          nsqConfig.MaxInFlight,
			Concurrency:          nsqConfig.Concurrency,
			NsqdAddresses:        []string{nsqConfig.NsqdAddress},
			LookupdAddresses:     nsqConfig.LookupdAddresses,
			DLQTopic:             nsqConfig.Topic + nsqConfig.DLQTopicSuffix,
			MaxAttemptsBeforeDLQ: uint16(nsqConfig.MaxAttempts),
			MessageHandleTimeout: notifyHandleTimeout,
			Handler:              appContext.Dispatcher.HandleQueuedEvent,
		},
	}
}

// Start 启动读取通知消费者
func (manager *NotifyConsumerManager) Start() {
	consumer, err := queue.NewNSQConsumer(manager.consumerConfig)
	if err != nil {
		log.Fatalf("[NotifyConsumer] 创建消费者失败: %v", err)
	}

	manager.attachDeadLetterQueue(consumer)
	manager.runConsumerInBackground(consumer)

	manager.appContext.consumer = consumer
	log.Println("[NotifyConsumer] 读取通知消费者启动成功")
}

// attachDeadLetterQueue 挂载死信队列生产者
// 挂载失败只记录日志,坏事件此时会被直接丢弃而不是转入死信
func (manager *NotifyConsumerManager) attachDeadLetterQueue(consumer *queue.NSQConsumer) {
	address := manager.appContext.Configuration.NSQ.NsqdAddress

	if err := consumer.AttachDLQProducer(address); err != nil {
		log.Printf("[NotifyConsumer] 死信队列生产者挂载失败: %v", err)
	}
}

// runConsumerInBackground 在后台运行消费者
func (manager *NotifyConsumerManager) runConsumerInBackground(consumer *queue.NSQConsumer) {
	go func() {
		if err := consumer.Run(); err != nil {
			log.Printf("[NotifyConsumer] 消费者运行失败: %v", err)
		}
	}()
}

// startNotifyConsumer 启动读取通知队列消费者
func startNotifyConsumer(app *AppContext) {
	manager := NewNotifyConsumerManager(app)
	manager.Start()
}
