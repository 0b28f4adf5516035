package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/config"
)

// ==================== 常量定义 ====================

const (
	apiKeyHeader         = "x-api-key"
	contentTypeHeader    = "Content-Type"
	contentTypeJSON      = "application/json"
	maxErrorResponseSize = 4 << 10 // 4KB
)

// ==================== Notify API 实现 ====================

// apiRequest Notify send-email 接口的请求体
type apiRequest struct {
	Subject string `json:"subject"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// APINotifier 基于 Notify 邮件 API 的通知器
// 通过 HTTP POST 调用托管的 send-email 接口投递通知邮件
type APINotifier struct {
	endpoint   string
	apiKey     string
	email      string
	httpClient *http.Client
}

// NewAPINotifier 创建 Notify API 通知器
func NewAPINotifier(notifyConfig config.Notify) *APINotifier {
	timeout := notifyConfig.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &APINotifier{
		endpoint: notifyConfig.API.Endpoint,
		apiKey:   notifyConfig.API.APIKey,
		email:    notifyConfig.Email,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Notify 投递读取通知邮件
// 未配置收件人或接口地址时返回 ErrNotConfigured
func (notifier *APINotifier) Notify(ctx context.Context, event ReadEvent) error {
	if err := notifier.checkConfiguration(); err != nil {
		return err
	}

	payload, err := notifier.buildPayload(event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, notifier.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	request.Header.Set(contentTypeHeader, contentTypeJSON)
	request.Header.Set(apiKeyHeader, notifier.apiKey)

	return notifier.execute(request, event.MessageID)
}

// checkConfiguration 检查通知通道配置
func (notifier *APINotifier) checkConfiguration() error {
	if notifier.email == "" {
		log.Printf("[Notify] 未配置通知收件人邮箱 (NOTIFICATION_EMAIL)")
		return ErrNotConfigured
	}

	if notifier.endpoint == "" {
		return ErrNotConfigured
	}

	return nil
}

// buildPayload 构建接口请求体
func (notifier *APINotifier) buildPayload(event ReadEvent) ([]byte, error) {
	return json.Marshal(apiRequest{
		Subject: notificationSubject,
		To:      notifier.email,
		Message: BuildEmailBody(event),
	})
}

// execute 发送请求并检查响应状态
func (notifier *APINotifier) execute(request *http.Request, messageID string) error {
	response, err := notifier.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		log.Printf("[Notify] 消息 %s 的读取通知已投递", messageID)
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorResponseSize))

	return fmt.Errorf(
		"%w: notify api returned %d: %s",
		ErrDeliveryFailed,
		response.StatusCode,
		string(detail),
	)
}
