// Package httpapi 实现消息生命周期的 HTTP 接口
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/lifecycle"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/message"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/metrics"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/notify"
)

// ==================== 常量定义 ====================

const (
	// notFoundMessage 统一的缺失提示
	// 从未存在、已被读取、已过期三种情况必须返回完全相同的响应,
	// 不给调用方留下区分缺失原因的口子
	notFoundMessage = "Message not found or has expired"

	defaultRequestTimeout = 10 * time.Second
)

// ==================== 服务接口 ====================

// Lifecycle 生命周期服务接口
// 解耦 HTTP 层与业务实现
type Lifecycle interface {
	Create(ctx context.Context, content string, policy message.ExpirationPolicy) (string, error)
	Retrieve(ctx context.Context, id string) (message.Record, error)
	Consume(ctx context.Context, id string) (message.Record, error)
}

// ReadDispatcher 读取事件调度接口
type ReadDispatcher interface {
	DispatchRead(ctx context.Context, record message.Record)
	Deliver(ctx context.Context, event notify.ReadEvent, attempt int) error
}

// ==================== 数据模型定义 ====================

// UnifiedResponse 统一的 API 响应格式
type UnifiedResponse struct {
	Code int         `json:"code"`
	Data interface{} `json:"data,omitempty"`
	Msg  string      `json:"msg"`
}

// FlexibleScalar 兼容数字与字符串两种 JSON 写法的标量
// 历史客户端把时长和时间戳作为字符串提交,新客户端用数字
type FlexibleScalar string

// UnmarshalJSON 实现宽松解码
func (scalar *FlexibleScalar) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*scalar = FlexibleScalar(asString)
		return nil
	}

	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*scalar = FlexibleScalar(asNumber.String())
		return nil
	}

	// null 等非标量值一律按空处理
	*scalar = ""
	return nil
}

// CreateRequest 创建消息请求
type CreateRequest struct {
	Message         string         `json:"message"`
	ExpirationType  string         `json:"expirationType"`
	ExpirationValue FlexibleScalar `json:"expirationValue"`
}

// NotifyRequest 读取通知请求
type NotifyRequest struct {
	MessageID      string         `json:"messageId"`
	MessageContent string         `json:"messageContent"`
	ReadTime       FlexibleScalar `json:"readTime"`
}

// MessageView 消息记录的响应视图
// 字段命名与存储编码保持一致,老客户端无需改动
type MessageView struct {
	Content         string `json:"content"`
	ExpirationType  string `json:"expirationType"`
	ExpirationValue *int   `json:"expirationValue"`
	CreatedAt       int64  `json:"createdAt"`
}

// ==================== Handler 处理器 ====================

// Handler 消息接口处理器
type Handler struct {
	service      Lifecycle
	dispatcher   ReadDispatcher
	previewLimit int
}

// NewHandler 创建消息接口处理器
func NewHandler(service Lifecycle, dispatcher ReadDispatcher, previewLimit int) *Handler {
	if previewLimit <= 0 {
		previewLimit = notify.DefaultPreviewLimit
	}

	return &Handler{
		service:      service,
		dispatcher:   dispatcher,
		previewLimit: previewLimit,
	}
}

// ==================== 核心处理逻辑 ====================

// Create 创建消息
// POST /api/messages
func (handler *Handler) Create(ginContext *gin.Context) {
	var request CreateRequest

	if err := ginContext.ShouldBindJSON(&request); err != nil {
		sendErrorResponse(ginContext, http.StatusBadRequest, "解析请求失败: "+err.Error())
		return
	}

	policy, err := buildPolicy(request)
	if err != nil {
		sendErrorResponse(ginContext, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(ginContext)
	defer cancel()

	id, err := handler.service.Create(ctx, request.Message, policy)
	if err != nil {
		handler.sendLifecycleError(ginContext, err)
		return
	}

	metrics.MessagesCreated.WithLabelValues(string(policy.Kind)).Inc()

	sendSuccessResponse(ginContext, gin.H{"messageId": id})
}

// Retrieve 非破坏性读取消息
// GET /api/messages/:id
func (handler *Handler) Retrieve(ginContext *gin.Context) {
	id := ginContext.Param("id")
	if id == "" {
		sendErrorResponse(ginContext, http.StatusBadRequest, "Message ID is required")
		return
	}

	ctx, cancel := requestContext(ginContext)
	defer cancel()

	record, err := handler.service.Retrieve(ctx, id)
	if err != nil {
		handler.sendLifecycleError(ginContext, err)
		return
	}

	metrics.MessagesRetrieved.Inc()

	sendSuccessResponse(ginContext, gin.H{"message": buildMessageView(record)})
}

// Consume 原子地读取并销毁消息
// DELETE /api/messages/:id
// 与老客户端的两段式流程兼容:读取后单独调用删除
func (handler *Handler) Consume(ginContext *gin.Context) {
	record, ok := handler.consumeByID(ginContext)
	if !ok {
		return
	}

	sendSuccessResponse(ginContext, gin.H{
		"success": true,
		"message": buildMessageView(record),
	})
}

// Reveal 单次揭示动作:原子消费并触发读取通知
// POST /api/messages/reveal/:id
// 推荐的消费入口,读取与删除在存储端一步完成,不存在竞争窗口
func (handler *Handler) Reveal(ginContext *gin.Context) {
	record, ok := handler.consumeByID(ginContext)
	if !ok {
		return
	}

	if handler.dispatcher != nil {
		handler.dispatcher.DispatchRead(ginContext.Request.Context(), record)
	}

	sendSuccessResponse(ginContext, gin.H{
		"success": true,
		"message": buildMessageView(record),
	})
}

// Notify 直接触发读取通知
// POST /api/messages/notify
// 老客户端在展示内容后显式调用;同步投递,失败返回 500
func (handler *Handler) Notify(ginContext *gin.Context) {
	var request NotifyRequest

	if err := ginContext.ShouldBindJSON(&request); err != nil {
		sendErrorResponse(ginContext, http.StatusBadRequest, "解析请求失败: "+err.Error())
		return
	}

	if request.MessageID == "" {
		sendErrorResponse(ginContext, http.StatusBadRequest, "Message ID is required")
		return
	}

	if handler.dispatcher == nil {
		sendErrorResponse(ginContext, http.StatusInternalServerError, "Notification is not configured")
		return
	}

	event := notify.ReadEvent{
		MessageID: request.MessageID,
		Preview:   notify.BuildPreview(request.MessageContent, handler.previewLimit),
		ReadAt:    parseReadTime(request.ReadTime),
	}

	ctx, cancel := requestContext(ginContext)
	defer cancel()

	if err := handler.dispatcher.Deliver(ctx, event, 1); err != nil {
		log.Printf("[HTTP] 消息 %s 的通知投递失败: %v", request.MessageID, err)
		sendErrorResponse(ginContext, http.StatusInternalServerError, "Failed to send notification")
		return
	}

	sendSuccessResponse(ginContext, gin.H{"success": true})
}

// ==================== 私有方法 ====================

// consumeByID 按路径参数执行原子消费
func (handler *Handler) consumeByID(ginContext *gin.Context) (message.Record, bool) {
	id := ginContext.Param("id")
	if id == "" {
		sendErrorResponse(ginContext, http.StatusBadRequest, "Message ID is required")
		return message.Record{}, false
	}

	ctx, cancel := requestContext(ginContext)
	defer cancel()

	record, err := handler.service.Consume(ctx, id)
	if err != nil {
		handler.sendLifecycleError(ginContext, err)
		return message.Record{}, false
	}

	metrics.MessagesConsumed.Inc()

	return record, true
}

// sendLifecycleError 将生命周期错误映射为 HTTP 响应
func (handler *Handler) sendLifecycleError(ginContext *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		sendErrorResponse(ginContext, http.StatusBadRequest, err.Error())
	case errors.Is(err, lifecycle.ErrNotFound):
		metrics.MessagesNotFound.Inc()
		sendErrorResponse(ginContext, http.StatusNotFound, notFoundMessage)
	default:
		log.Printf("[HTTP] 存储操作失败: %v", err)
		sendErrorResponse(ginContext, http.StatusInternalServerError, "Internal server error")
	}
}

// ==================== 辅助函数 ====================

// sendSuccessResponse 发送成功响应
func sendSuccessResponse(ginContext *gin.Context, data interface{}) {
	ginContext.JSON(http.StatusOK, UnifiedResponse{
		Code: http.StatusOK,
		Data: data,
		Msg:  "success",
	})
}

// sendErrorResponse 发送错误响应
func sendErrorResponse(ginContext *gin.Context, httpStatus int, responseMessage string) {
	ginContext.JSON(httpStatus, UnifiedResponse{
		Code: httpStatus,
		Data: nil,
		Msg:  responseMessage,
	})
}

// requestContext 为单次请求派生带超时的 context
func requestContext(ginContext *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ginContext.Request.Context(), defaultRequestTimeout)
}

// buildPolicy 从创建请求构建过期策略
// 合法性校验交给生命周期层,这里只做结构转换
func buildPolicy(request CreateRequest) (message.ExpirationPolicy, error) {
	switch message.ExpirationKind(request.ExpirationType) {
	case message.KindOneTime:
		return message.OneTime(), nil
	case message.KindTimeBased:
		minutes, err := parseMinutes(request.ExpirationValue)
		if err != nil {
			return message.ExpirationPolicy{}, err
		}
		return message.TimeBased(minutes), nil
	default:
		return message.ExpirationPolicy{}, fmt.Errorf("valid expiration type is required")
	}
}

// parseMinutes 解析过期时长
func parseMinutes(value FlexibleScalar) (int, error) {
	if value == "" {
		return 0, fmt.Errorf("expiration value is required for time-based expiry")
	}

	minutes, err := strconv.Atoi(string(value))
	if err != nil {
		return 0, fmt.Errorf("expiration value must be an integer")
	}

	return minutes, nil
}

// parseReadTime 解析读取时间
// 接受毫秒时间戳或 RFC3339 字符串,缺失时取当前时间
func parseReadTime(value FlexibleScalar) time.Time {
	text := string(value)
	if text == "" {
		return time.Now()
	}

	if milliseconds, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.UnixMilli(milliseconds)
	}

	if parsed, err := time.Parse(time.RFC3339, text); err == nil {
		return parsed
	}

	return time.Now()
}

// buildMessageView 构建消息的对外视图
// 一次性消息的 expirationValue 序列化为 null
func buildMessageView(record message.Record) MessageView {
	view := MessageView{
		Content:        record.Content,
		ExpirationType: string(record.Policy.Kind),
		CreatedAt:      record.CreatedAt.UnixMilli(),
	}

	if !record.Policy.IsOneTime() {
		minutes := record.Policy.Minutes
		view.ExpirationValue = &minutes
	}

	return view
}
