package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ==================== 错误定义 ====================

var (
	// ErrRedisSetFailed Redis 设置失败错误
	ErrRedisSetFailed = errors.New("failed to set idempotency key in redis")
)

// ==================== Redis 实现 ====================

// RedisChecker 基于 Redis 的去重检查器
// 利用 SETNX 的原子性,多实例部署下也能保证窗口期内至多一次投递
type RedisChecker struct {
	client    *redis.Client
	namespace string
}

// NewRedisChecker 创建 Redis 去重检查器
func NewRedisChecker(client *redis.Client, namespace string) *RedisChecker {
	return &RedisChecker{
		client:    client,
		namespace: namespace,
	}
}

// CheckAndSet 检查并设置去重标记
// SETNX 成功说明是首次事件;键已存在说明窗口期内重复
func (checker *RedisChecker) CheckAndSet(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	key := buildKey(checker.namespace, messageID)

	isFirst, err := checker.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisSetFailed, err)
	}

	return isFirst, nil
}
