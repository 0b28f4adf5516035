// Package metrics 暴露服务的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesCreated 创建的消息总数,按过期策略区分
	MessagesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "burn_messages_created_total",
		Help: "Total number of messages created, labeled by expiration policy.",
	}, []string{"policy"})

	// MessagesRetrieved 非破坏性读取成功总数
	MessagesRetrieved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "burn_messages_retrieved_total",
		Help: "Total number of successful non-destructive reads.",
	})

	// MessagesConsumed 消费(读取并销毁)成功总数
	MessagesConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "burn_messages_consumed_total",
		Help: "Total number of messages consumed and destroyed.",
	})

	// MessagesNotFound 缺失命中总数(从未存在/已消费/已过期,不区分)
	MessagesNotFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "burn_messages_not_found_total",
		Help: "Total number of lookups that hit an absent message id.",
	})

	// NotificationsSent 读取通知投递成功总数
	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "burn_notifications_sent_total",
		Help: "Total number of read notifications delivered.",
	})

	// NotificationsFailed 读取通知投递失败总数
	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "burn_notifications_failed_total",
		Help: "Total number of read notification delivery failures.",
	})
)
