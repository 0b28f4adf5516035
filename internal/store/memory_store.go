package store

import (
	"context"
	"sync"
	"time"
)

// ==================== 内存实现 ====================

// entry 内存存储条目
// expiresAt 为零值时表示永不过期
type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore 进程内键值存储
// 实现与 Redis 适配器相同的契约,用于测试和无 Redis 的开发模式;
// TTL 按墙钟时间惰性判定,读取时发现过期即视为不存在
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry

	// timeProvider 时间源,便于测试注入假时钟
	timeProvider func() time.Time
}

// NewMemoryStore 创建内存存储实例
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:      make(map[string]entry),
		timeProvider: time.Now,
	}
}

// SetTimeProvider 替换时间源(仅测试使用)
func (store *MemoryStore) SetTimeProvider(provider func() time.Time) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.timeProvider = provider
}

// Get 读取键值
func (store *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	item, found := store.lookup(key)
	if !found {
		return nil, false, nil
	}

	return item.value, true, nil
}

// Set 写入键值,覆盖旧值并清除旧 TTL
func (store *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.entries[key] = entry{value: value}
	return nil
}

// Delete 删除键(幂等)
func (store *MemoryStore) Delete(ctx context.Context, key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.entries, key)
	return nil
}

// Expire 设置键的过期时刻
// 对不存在的键不报错,与 Redis 行为保持一致
func (store *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	item, found := store.lookup(key)
	if !found {
		return nil
	}

	item.expiresAt = store.timeProvider().Add(ttl)
	store.entries[key] = item
	return nil
}

// GetDel 原子读取并删除键
// 整个操作持锁完成,语义与 Redis 端的 Lua 脚本一致
func (store *MemoryStore) GetDel(ctx context.Context, key string) ([]byte, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	item, found := store.lookup(key)
	if !found {
		return nil, false, nil
	}

	delete(store.entries, key)
	return item.value, true, nil
}

// lookup 查找键并惰性清理过期条目
// 调用方必须已持有锁
func (store *MemoryStore) lookup(key string) (entry, bool) {
	item, found := store.entries[key]
	if !found {
		return entry{}, false
	}

	if !item.expiresAt.IsZero() && !store.timeProvider().Before(item.expiresAt) {
		delete(store.entries, key)
		return entry{}, false
	}

	return item, true
}
