// Package message 定义阅后即焚消息的核心实体与校验规则
// 消息ID即访问凭证(capability token),链接本身就是唯一的访问凭据
package message

import (
	"errors"
	"fmt"
	"time"
)

// ==================== 常量定义 ====================

// ExpirationKind 过期策略类型
type ExpirationKind string

const (
	// KindOneTime 一次性消息,首次成功读取后立即销毁
	KindOneTime ExpirationKind = "one-time"

	// KindTimeBased 定时消息,到达设定时间后由存储后端自动驱逐
	KindTimeBased ExpirationKind = "time-based"
)

const (
	// MinExpirationMinutes 定时消息的最短有效期(分钟)
	MinExpirationMinutes = 1

	// MaxExpirationMinutes 定时消息的最长有效期(7天)
	MaxExpirationMinutes = 7 * 24 * 60
)

// ==================== 错误定义 ====================

var (
	// ErrEmptyContent 消息内容为空错误
	ErrEmptyContent = errors.New("message content cannot be empty")

	// ErrUnknownExpirationKind 未知的过期策略类型错误
	ErrUnknownExpirationKind = errors.New("unknown expiration type")

	// ErrInvalidExpirationValue 无效的过期时长错误
	ErrInvalidExpirationValue = errors.New("invalid expiration value")
)

// ==================== 类型定义 ====================

// ExpirationPolicy 过期策略
// Kind 为 one-time 时 Minutes 无意义,恒为 0
type ExpirationPolicy struct {
	Kind    ExpirationKind `json:"kind"`
	Minutes int            `json:"minutes,omitempty"`
}

// Record 持久化的消息实体
// 存储中每个 ID 对应一条记录,被消费或过期后永久不可解析
type Record struct {
	ID        string           `json:"id"`
	Content   string           `json:"content"`
	Policy    ExpirationPolicy `json:"policy"`
	CreatedAt time.Time        `json:"created_at"`
}

// ==================== 构造函数 ====================

// OneTime 构造一次性过期策略
func OneTime() ExpirationPolicy {
	return ExpirationPolicy{Kind: KindOneTime}
}

// TimeBased 构造定时过期策略
func TimeBased(minutes int) ExpirationPolicy {
	return ExpirationPolicy{Kind: KindTimeBased, Minutes: minutes}
}

// ==================== 校验方法 ====================

// Validate 校验过期策略的合法性
// 定时策略的时长必须为正整数分钟,且不超过上限
func (policy ExpirationPolicy) Validate() error {
	switch policy.Kind {
	case KindOneTime:
		return nil
	case KindTimeBased:
		return policy.validateMinutes()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownExpirationKind, policy.Kind)
	}
}

// validateMinutes 校验定时策略的时长范围
func (policy ExpirationPolicy) validateMinutes() error {
	if policy.Minutes < MinExpirationMinutes || policy.Minutes > MaxExpirationMinutes {
		return fmt.Errorf(
			"%w: %d minutes (allowed %d~%d)",
			ErrInvalidExpirationValue,
			policy.Minutes,
			MinExpirationMinutes,
			MaxExpirationMinutes,
		)
	}

	return nil
}

// TTL 返回定时策略对应的存储层 TTL
// 一次性策略不设置 TTL,返回 0
func (policy ExpirationPolicy) TTL() time.Duration {
	if policy.Kind != KindTimeBased {
		return 0
	}

	return time.Duration(policy.Minutes) * time.Minute
}

// IsOneTime 判断是否为一次性策略
func (policy ExpirationPolicy) IsOneTime() bool {
	return policy.Kind == KindOneTime
}

// ValidateContent 校验消息内容
func ValidateContent(content string) error {
	if content == "" {
		return ErrEmptyContent
	}

	return nil
}
