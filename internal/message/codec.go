package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ==================== 错误定义 ====================

var (
	// ErrDecodeFailed 存储值解码失败错误
	// 存储属于外部系统,内容可能被带外修改,解码必须防御性处理
	ErrDecodeFailed = errors.New("failed to decode stored message value")
)

// ==================== 存储编码 ====================

// storedValue 存储层的值编码格式
// 与历史线上数据保持二进制兼容:createdAt 为 Unix 毫秒时间戳,
// 一次性消息的 expirationValue 为 null
type storedValue struct {
	Content         string `json:"content"`
	ExpirationType  string `json:"expirationType"`
	ExpirationValue *int   `json:"expirationValue"`
	CreatedAt       int64  `json:"createdAt"`
}

// Codec 消息记录与存储值表示之间的无损映射
// 编码与解码必须对所有字段(含策略标签与时长)可完整往返
type Codec struct{}

// NewCodec 创建编解码器实例
func NewCodec() Codec {
	return Codec{}
}

// Encode 将消息记录编码为存储值
func (codec Codec) Encode(record Record) ([]byte, error) {
	value := storedValue{
		Content:        record.Content,
		ExpirationType: string(record.Policy.Kind),
		CreatedAt:      record.CreatedAt.UnixMilli(),
	}

	if record.Policy.Kind == KindTimeBased {
		minutes := record.Policy.Minutes
		value.ExpirationValue = &minutes
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode message record: %w", err)
	}

	return encoded, nil
}

// Decode 将存储值解码为消息记录
// ID 不随值存储(键即ID),由调用方回填
func (codec Codec) Decode(id string, data []byte) (Record, error) {
	var value storedValue

	if err := json.Unmarshal(data, &value); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	policy, err := codec.decodePolicy(value)
	if err != nil {
		return Record{}, err
	}

	return Record{
		ID:        id,
		Content:   value.Content,
		Policy:    policy,
		CreatedAt: time.UnixMilli(value.CreatedAt),
	}, nil
}

// decodePolicy 解码过期策略
// 策略标签非法或定时策略缺失时长都视为数据损坏
func (codec Codec) decodePolicy(value storedValue) (ExpirationPolicy, error) {
	switch ExpirationKind(value.ExpirationType) {
	case KindOneTime:
		return OneTime(), nil
	case KindTimeBased:
		if value.ExpirationValue == nil {
			return ExpirationPolicy{}, fmt.Errorf(
				"%w: time-based record missing expiration value",
				ErrDecodeFailed,
			)
		}
		return TimeBased(*value.ExpirationValue), nil
	default:
		return ExpirationPolicy{}, fmt.Errorf(
			"%w: unknown expiration type %q",
			ErrDecodeFailed,
			value.ExpirationType,
		)
	}
}
