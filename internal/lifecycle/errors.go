// lifecycle/errors.go
package lifecycle

import "errors"

// 定义公共错误变量
// 对调用方而言,"从未存在"、"已被消费"、"TTL已过期"三种缺失原因
// 必须不可区分,统一表现为 ErrNotFound,避免暴露消息历史的任何线索
var (
	ErrValidation = errors.New("invalid message input")
	ErrNotFound   = errors.New("message not found or has expired")
	ErrStore      = errors.New("message store failure")
)
