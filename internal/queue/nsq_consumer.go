package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nsqio/go-nsq"
)

// ==================== 常量定义 ====================

const (
	// 默认超时时间
	defaultMessageHandleTimeout = 30 * time.Second

	// 重试基础退避时间
	defaultRequeueBackoff = 5 * time.Second

	// 用户代理标识
	defaultUserAgent = "burn-after-reading"

	// 日志前缀
	logPrefix = "[nsq] "

	// 错误消息常量
	errorMessageTopicRequired        = "topic is required"
	errorMessageChannelRequired      = "channel is required"
	errorMessageHandlerRequired      = "handler is required"
	errorMessageNoAddressConfigured  = "no nsqd address or lookupd configured"
	errorMessageConsumerCreationFail = "failed to create NSQ consumer"
)

// ==================== 类型定义 ====================

// HandlerFunc 消息处理函数类型
type HandlerFunc func(ctx context.Context, payload []byte, attempts uint16) error

// NSQConsumer NSQ 消费者
// 投递失败时按退避重试;超过最大尝试次数后转入死信队列,
// 保证坏事件不会无限阻塞通知管道
type NSQConsumer struct {
	config  *nsq.Config
	topic   string
	channel string

	nsqdAddresses    []string
	lookupdAddresses []string

	consumer *nsq.Consumer
	handler  HandlerFunc

	concurrency int

	dlqTopic             string
	maxAttemptsBeforeDLQ uint16
	dlqProducer          *nsq.Producer

	messageHandleTimeout time.Duration
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Topic                string
	Channel              string
	MaxInFlight          int
	Concurrency          int
	NsqdAddresses        []string
	LookupdAddresses     []string
	DLQTopic             string
	MaxAttemptsBeforeDLQ uint16
	MessageHandleTimeout time.Duration
	Handler              HandlerFunc
}

// ==================== 构造函数 ====================

// NewNSQConsumer 从配置创建 NSQ 消费者
func NewNSQConsumer(config ConsumerConfig) (*NSQConsumer, error) {
	if err := validateConsumerConfig(config); err != nil {
		return nil, err
	}

	nsqConfig := createNSQConfig(config.MaxInFlight)

	consumer, err := createNSQConsumer(config.Topic, config.Channel, nsqConfig)
	if err != nil {
		return nil, err
	}

	timeout := config.MessageHandleTimeout
	if timeout == 0 {
		timeout = defaultMessageHandleTimeout
	}

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &NSQConsumer{
		config:               nsqConfig,
		topic:                config.Topic,
		channel:              config.Channel,
		nsqdAddresses:        config.NsqdAddresses,
		lookupdAddresses:     config.LookupdAddresses,
		consumer:             consumer,
		handler:              config.Handler,
		concurrency:          concurrency,
		dlqTopic:             config.DLQTopic,
		maxAttemptsBeforeDLQ: config.MaxAttemptsBeforeDLQ,
		messageHandleTimeout: timeout,
	}, nil
}

// ==================== 配置验证 ====================

// validateConsumerConfig 验证消费者配置
func validateConsumerConfig(config ConsumerConfig) error {
	if config.Topic == "" {
		return errors.New(errorMessageTopicRequired)
	}

	if config.Channel == "" {
		return errors.New(errorMessageChannelRequired)
	}

	if config.Handler == nil {
		return errors.New(errorMessageHandlerRequired)
	}

	if len(config.NsqdAddresses) == 0 && len(config.LookupdAddresses) == 0 {
		return errors.New(errorMessageNoAddressConfigured)
	}

	return nil
}

// createNSQConfig 创建 NSQ 配置
func createNSQConfig(maxInFlight int) *nsq.Config {
	config := nsq.NewConfig()

	if maxInFlight > 0 {
		config.MaxInFlight = maxInFlight
	}

	config.UserAgent = defaultUserAgent

	return config
}

// createNSQConsumer 创建 NSQ 消费者实例
func createNSQConsumer(topic string, channel string, config *nsq.Config) (*nsq.Consumer, error) {
	consumer, err := nsq.NewConsumer(topic, channel, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageConsumerCreationFail, err)
	}

	consumer.SetLogger(log.New(os.Stdout, logPrefix, log.LstdFlags), nsq.LogLevelInfo)

	return consumer, nil
}

// ==================== DLQ 配置 ====================

// AttachDLQProducer 附加死信队列生产者
func (consumer *NSQConsumer) AttachDLQProducer(nsqdAddress string) error {
	if consumer.dlqTopic == "" || nsqdAddress == "" {
		return nil
	}

	producer, err := nsq.NewProducer(nsqdAddress, nsq.NewConfig())
	if err != nil {
		return fmt.Errorf("failed to create DLQ producer: %w", err)
	}

	consumer.dlqProducer = producer
	return nil
}

// ==================== 消息处理 ====================

// Run 注册处理器并连接 NSQ
// 非阻塞;停止通过 Stop 触发
func (consumer *NSQConsumer) Run() error {
	consumer.consumer.AddConcurrentHandlers(nsq.HandlerFunc(consumer.handleMessage), consumer.concurrency)

	return consumer.connect()
}

// Stop 停止消费者并等待在途消息处理完成
func (consumer *NSQConsumer) Stop() {
	consumer.consumer.Stop()
	<-consumer.consumer.StopChan

	if consumer.dlqProducer != nil {
		consumer.dlqProducer.Stop()
	}
}

// connect 连接 nsqd 或 lookupd
func (consumer *NSQConsumer) connect() error {
	if len(consumer.lookupdAddresses) > 0 {
		if err := consumer.consumer.ConnectToNSQLookupds(consumer.lookupdAddresses); err != nil {
			return fmt.Errorf("connect to nsqlookupd: %w", err)
		}
		return nil
	}

	if err := consumer.consumer.ConnectToNSQDs(consumer.nsqdAddresses); err != nil {
		return fmt.Errorf("connect to nsqd: %w", err)
	}

	return nil
}

// handleMessage 处理单条消息
// 失败时交回 NSQ 按退避重试;尝试次数达到上限后转入死信队列
func (consumer *NSQConsumer) handleMessage(nsqMessage *nsq.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), consumer.messageHandleTimeout)
	defer cancel()

	err := consumer.handler(ctx, nsqMessage.Body, nsqMessage.Attempts)
	if err == nil {
		return nil
	}

	log.Printf("%s处理失败 (第 %d 次尝试): %v", logPrefix, nsqMessage.Attempts, err)

	if consumer.shouldRouteToDLQ(nsqMessage.Attempts) {
		consumer.routeToDLQ(nsqMessage)
		return nil
	}

	nsqMessage.RequeueWithoutBackoff(consumer.requeueDelay(nsqMessage.Attempts))
	return nil
}

// shouldRouteToDLQ 判断是否应转入死信队列
func (consumer *NSQConsumer) shouldRouteToDLQ(attempts uint16) bool {
	return consumer.maxAttemptsBeforeDLQ > 0 && attempts >= consumer.maxAttemptsBeforeDLQ
}

// routeToDLQ 将消息发布到死信队列
// DLQ 未配置时只能丢弃并记录,避免队列被坏消息卡死
func (consumer *NSQConsumer) routeToDLQ(nsqMessage *nsq.Message) {
	if consumer.dlqProducer == nil {
		log.Printf("%s消息超过最大尝试次数且未配置 DLQ,丢弃", logPrefix)
		return
	}

	if err := consumer.dlqProducer.Publish(consumer.dlqTopic, nsqMessage.Body); err != nil {
		log.Printf("%s发布到 DLQ 失败: %v", logPrefix, err)
		return
	}

	log.Printf("%s消息已转入死信队列 %s", logPrefix, consumer.dlqTopic)
}

// requeueDelay 计算重试延迟
// 按尝试次数线性增长的简单退避
func (consumer *NSQConsumer) requeueDelay(attempts uint16) time.Duration {
	return time.Duration(attempts) * defaultRequeueBackoff
}
