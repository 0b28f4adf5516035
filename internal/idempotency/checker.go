// Package idempotency 提供通知去重检查
// 读取方重复的 reveal 请求(浏览器重试、双击)只应产生一次通知;
// 以消息 ID 为去重键,窗口期内的重复事件被丢弃
package idempotency

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ==================== 常量定义 ====================

const (
	keySeparator      = ":"
	idempotencyPrefix = "notified"
)

// ==================== 接口定义 ====================

// Checker 去重检查器接口
// CheckAndSet 返回 true 表示首次出现(应投递),false 表示重复(应丢弃)
type Checker interface {
	CheckAndSet(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
}

// ==================== 内存实现 ====================

// MemoryChecker 进程内去重检查器
// 用于测试和 inline 模式下的单实例部署
type MemoryChecker struct {
	mu   sync.Mutex
	seen map[string]time.Time

	timeProvider func() time.Time
}

// NewMemoryChecker 创建内存去重检查器
func NewMemoryChecker() *MemoryChecker {
	return &MemoryChecker{
		seen:         make(map[string]time.Time),
		timeProvider: time.Now,
	}
}

// SetTimeProvider 替换时间源(仅测试使用)
func (checker *MemoryChecker) SetTimeProvider(provider func() time.Time) {
	checker.mu.Lock()
	defer checker.mu.Unlock()
	checker.timeProvider = provider
}

// CheckAndSet 检查并设置去重标记
func (checker *MemoryChecker) CheckAndSet(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	checker.mu.Lock()
	defer checker.mu.Unlock()

	now := checker.timeProvider()

	expiresAt, found := checker.seen[messageID]
	if found && now.Before(expiresAt) {
		return false, nil
	}

	checker.seen[messageID] = now.Add(ttl)
	return true, nil
}

// buildKey 构建带命名空间的去重键
// 格式: {namespace}:notified:{messageID}
func buildKey(namespace, messageID string) string {
	return strings.Join([]string{namespace, idempotencyPrefix, messageID}, keySeparator)
}
