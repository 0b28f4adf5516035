// Package notify 实现消息被读取后的通知投递
// 通知是尽力而为的旁路副作用:投递失败只记录日志,
// 永远不会回滚或影响消息消费操作的结果
package notify

import (
	"context"
	"errors"
	"time"
)

// ==================== 常量定义 ====================

const (
	// DefaultPreviewLimit 内容预览默认截断长度(字符)
	// 控制预览长度,避免通知邮件过大
	DefaultPreviewLimit = 160

	// previewEllipsis 截断后缀
	previewEllipsis = "..."

	// emptyContentPlaceholder 空内容占位文本
	emptyContentPlaceholder = "[No content]"
)

// ==================== 错误定义 ====================

var (
	// ErrNotConfigured 通知通道未配置错误
	ErrNotConfigured = errors.New("notification channel is not configured")

	// ErrDeliveryFailed 通知投递失败错误
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// ==================== 类型定义 ====================

// ReadEvent 消息读取事件
// 消费成功后由生命周期侧生成,交给通知器投递
type ReadEvent struct {
	MessageID string    `json:"message_id"`
	Preview   string    `json:"preview"`
	ReadAt    time.Time `json:"read_at"`
}

// Notifier 通知器接口
// 实现负责把读取事件投递到某个通道(Notify API / SMTP)
type Notifier interface {
	Notify(ctx context.Context, event ReadEvent) error
}

// ==================== 预览构建 ====================

// BuildPreview 构建消息内容预览
// 超过 limit 个字符时截断并追加省略号;空内容使用占位文本
func BuildPreview(content string, limit int) string {
	if content == "" {
		return emptyContentPlaceholder
	}

	if limit <= 0 {
		limit = DefaultPreviewLimit
	}

	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}

	return string(runes[:limit]) + previewEllipsis
}
