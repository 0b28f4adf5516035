package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ==================== 常量定义 ====================

const (
	keyPrefixMessage = "msg"
	keySeparator     = ":"
)

// ==================== Lua 脚本定义 ====================

// getDelScript 原子读取并删除脚本
// 读取与删除在同一脚本内完成,并发的读取/消费之间不存在窗口,
// 保证一次性消息至多一次成功消费
var getDelScript = redis.NewScript(`
local value = redis.call("GET", KEYS[1])
if value == false then
  return false
end
redis.call("DEL", KEYS[1])
return value
`)

// ==================== Redis 实现 ====================

// RedisStore 基于 Redis 的键值存储适配器
// 仅做透传,不包含业务逻辑;原生 TTL 驱逐由 Redis 负责
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore 创建 Redis 存储适配器
// namespace 用于隔离不同服务的键空间
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: namespace,
	}
}

// Get 读取键值
func (store *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := store.client.Get(ctx, store.buildKey(key)).Bytes()

	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", ErrStoreUnavailable, key, err)
	}

	return value, true, nil
}

// Set 写入键值
func (store *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := store.client.Set(ctx, store.buildKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrStoreUnavailable, key, err)
	}

	return nil
}

// Delete 删除键
// Redis 的 DEL 对不存在的键返回 0,天然幂等
func (store *RedisStore) Delete(ctx context.Context, key string) error {
	if err := store.client.Del(ctx, store.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStoreUnavailable, key, err)
	}

	return nil
}

// Expire 设置键的原生 TTL
func (store *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := store.client.Expire(ctx, store.buildKey(key), ttl).Err(); err != nil {
		return fmt.Errorf("%w: expire %s: %v", ErrStoreUnavailable, key, err)
	}

	return nil
}

// GetDel 原子读取并删除键
// 通过 Lua 脚本在 Redis 服务端一步完成,不依赖客户端版本的 GETDEL 命令
func (store *RedisStore) GetDel(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := getDelScript.Run(ctx, store.client, []string{store.buildKey(key)}).Result()

	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("%w: getdel %s: %v", ErrStoreUnavailable, key, err)
	}

	text, ok := result.(string)
	if !ok {
		return nil, false, fmt.Errorf("%w: getdel %s: unexpected reply type %T", ErrStoreUnavailable, key, result)
	}

	return []byte(text), true, nil
}

// buildKey 构建带命名空间的存储键
// 格式: {namespace}:msg:{id}
func (store *RedisStore) buildKey(key string) string {
	return strings.Join([]string{store.namespace, keyPrefixMessage, key}, keySeparator)
}
