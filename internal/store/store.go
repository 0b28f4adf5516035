// Package store 定义键值存储适配层
// 生命周期管理器只依赖本包接口,存储实现(Redis/内存)在启动时注入,
// 便于测试时替换为内存假实现
package store

import (
	"context"
	"errors"
	"time"
)

// ==================== 错误定义 ====================

var (
	// ErrStoreUnavailable 存储后端不可达或操作被拒绝错误
	ErrStoreUnavailable = errors.New("store operation failed")
)

// ==================== 接口定义 ====================

// KV 键值存储契约
// 单次 Get/Set/Delete 假定原子;GetDel 是读取并删除的原子原语,
// 消费一次性消息必须走 GetDel,不得拆成两次调用
type KV interface {
	// Get 读取键值,键不存在时 found 为 false 且无错误
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set 写入键值
	Set(ctx context.Context, key string, value []byte) error

	// Delete 删除键,删除不存在的键不算错误(幂等)
	Delete(ctx context.Context, key string) error

	// Expire 为键设置原生 TTL,到期后由后端自动驱逐
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// GetDel 原子地读取并删除键,键不存在时 found 为 false
	GetDel(ctx context.Context, key string) (value []byte, found bool, err error)
}
