// Package lifecycle 实现消息生命周期管理
// 负责创建、读取、消费三个操作及其一致性规则:
// 记录存在当且仅当未被显式消费且(定时策略)TTL 未到期;
// 一次性消息至多完成一次成功的消费
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/message"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/store"
)

// ==================== Manager 管理器 ====================

// Manager 消息生命周期管理器
// 存储通过构造函数注入,不持有全局单例,测试时可替换为内存实现
type Manager struct {
	kv    store.KV
	codec message.Codec

	// idGenerator ID 生成器,默认为 UUID v4
	// 消息 ID 即访问凭证,必须具备密码学强度的不可预测性
	idGenerator func() string

	// timeProvider 时间源,便于测试注入固定时钟
	timeProvider func() time.Time
}

// NewManager 创建生命周期管理器
func NewManager(kv store.KV) *Manager {
	return &Manager{
		kv:           kv,
		codec:        message.NewCodec(),
		idGenerator:  uuid.NewString,
		timeProvider: time.Now,
	}
}

// SetIDGenerator 替换 ID 生成器(仅测试使用)
func (manager *Manager) SetIDGenerator(generator func() string) {
	manager.idGenerator = generator
}

// SetTimeProvider 替换时间源(仅测试使用)
func (manager *Manager) SetTimeProvider(provider func() time.Time) {
	manager.timeProvider = provider
}

// ==================== 核心操作 ====================

// Create 创建消息
// 生成不可预测的唯一 ID,持久化记录;定时策略委托存储后端的原生 TTL,
// 管理器自身不做任何过期扫描
func (manager *Manager) Create(
	ctx context.Context,
	content string,
	policy message.ExpirationPolicy,
) (string, error) {
	if err := manager.validateInput(content, policy); err != nil {
		return "", err
	}

	record := message.Record{
		ID:        manager.idGenerator(),
		Content:   content,
		Policy:    policy,
		CreatedAt: manager.timeProvider(),
	}

	if err := manager.persistRecord(ctx, record); err != nil {
		return "", err
	}

	if err := manager.armTTL(ctx, record); err != nil {
		return "", err
	}

	log.Printf("[Lifecycle] 消息 %s 创建成功 (策略: %s)", record.ID, record.Policy.Kind)

	return record.ID, nil
}

// Retrieve 非破坏性读取消息
// 不论过期策略如何都不删除、不修改记录;
// ID 缺失时统一返回 ErrNotFound,不区分缺失原因
func (manager *Manager) Retrieve(ctx context.Context, id string) (message.Record, error) {
	value, found, err := manager.kv.Get(ctx, id)
	if err != nil {
		return message.Record{}, fmt.Errorf("%w: %v", ErrStore, err)
	}

	if !found {
		return message.Record{}, ErrNotFound
	}

	return manager.decodeRecord(id, value)
}

// Consume 原子地读取并永久删除消息
// 读取与删除在存储端单个原子原语内完成,并发消费至多一个成功;
// 对已消费的 ID 再次调用返回 ErrNotFound,而不是重复删除错误
func (manager *Manager) Consume(ctx context.Context, id string) (message.Record, error) {
	value, found, err := manager.kv.GetDel(ctx, id)
	if err != nil {
		return message.Record{}, fmt.Errorf("%w: %v", ErrStore, err)
	}

	if !found {
		return message.Record{}, ErrNotFound
	}

	record, err := manager.decodeRecord(id, value)
	if err != nil {
		return message.Record{}, err
	}

	log.Printf("[Lifecycle] 消息 %s 已消费并销毁", id)

	return record, nil
}

// ==================== 私有方法 ====================

// validateInput 校验创建请求的内容与策略
func (manager *Manager) validateInput(content string, policy message.ExpirationPolicy) error {
	if err := message.ValidateContent(content); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := policy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	return nil
}

// persistRecord 编码并写入记录
func (manager *Manager) persistRecord(ctx context.Context, record message.Record) error {
	encoded, err := manager.codec.Encode(record)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	if err := manager.kv.Set(ctx, record.ID, encoded); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	return nil
}

// armTTL 为定时消息设置存储层原生 TTL
// 一次性消息不设置 TTL,只能通过显式消费销毁
func (manager *Manager) armTTL(ctx context.Context, record message.Record) error {
	ttl := record.Policy.TTL()
	if ttl <= 0 {
		return nil
	}

	if err := manager.kv.Expire(ctx, record.ID, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	log.Printf("[Lifecycle] 消息 %s 设置过期时间 %d 秒", record.ID, int(ttl.Seconds()))

	return nil
}

// decodeRecord 解码存储值
// 解码失败说明存储值被带外破坏,记录日志后作为存储错误上抛
func (manager *Manager) decodeRecord(id string, value []byte) (message.Record, error) {
	record, err := manager.codec.Decode(id, value)
	if err != nil {
		log.Printf("[Lifecycle] 消息 %s 解码失败: %v", id, err)

		if errors.Is(err, message.ErrDecodeFailed) {
			return message.Record{}, fmt.Errorf("%w: %v", ErrStore, err)
		}

		return message.Record{}, err
	}

	return record, nil
}
