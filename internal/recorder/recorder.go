// Package recorder 记录读取通知的投递结果
// 记录是尽力而为的旁路操作:写入失败只记录日志,
// 不影响通知投递本身,更不影响消息生命周期
package recorder

import (
	"context"
	"time"
)

// 投递状态常量
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Record 单次通知投递的结果
type Record struct {
	MessageID   string
	Attempt     int
	Status      string
	ErrorDetail string
	ReadAt      time.Time
	DeliveredAt time.Time
}

// Recorder 投递记录器接口
type Recorder interface {
	Save(ctx context.Context, record Record) error
}

// ==================== 空实现 ====================

// NoopRecorder 空记录器
// 未配置 MySQL 时使用,所有写入直接丢弃
type NoopRecorder struct{}

// Save 丢弃记录
func (NoopRecorder) Save(ctx context.Context, record Record) error {
	return nil
}
