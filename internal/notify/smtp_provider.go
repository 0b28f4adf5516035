package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/config"
)

// SMTP 协议默认端口常量
const (
	defaultSMTPPort         = 25  // 普通 SMTP 端口
	defaultSMTPSSLPort      = 465 // SSL/TLS 加密端口
	defaultSMTPSTARTTLSPort = 587 // STARTTLS 升级端口
	defaultDialTimeout      = 30 * time.Second
)

// ==================== SMTP 实现 ====================

// SMTPNotifier 基于 SMTP 的通知器
// 自建邮件服务的投递通道,统一管理 SSL、STARTTLS 的连接方式
type SMTPNotifier struct {
	smtpConfig config.SMTPProvider
	email      string
}

// NewSMTPNotifier 创建 SMTP 通知器
func NewSMTPNotifier(notifyConfig config.Notify) *SMTPNotifier {
	return &SMTPNotifier{
		smtpConfig: notifyConfig.SMTP,
		email:      notifyConfig.Email,
	}
}

// Notify 通过 SMTP 投递读取通知邮件
func (notifier *SMTPNotifier) Notify(ctx context.Context, event ReadEvent) error {
	if notifier.email == "" || notifier.smtpConfig.Host == "" {
		return ErrNotConfigured
	}

	rawMessage := notifier.buildRawMessage(event)

	if err := notifier.sendRaw(ctx, rawMessage); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	return nil
}

// buildRawMessage 构建完整的 MIME 邮件内容
func (notifier *SMTPNotifier) buildRawMessage(event ReadEvent) []byte {
	var content strings.Builder

	content.WriteString(fmt.Sprintf("From: %s\r\n", notifier.smtpConfig.From))
	content.WriteString(fmt.Sprintf("To: %s\r\n", notifier.email))
	content.WriteString(fmt.Sprintf("Subject: %s\r\n", notificationSubject))
	content.WriteString("MIME-Version: 1.0\r\n")
	content.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	content.WriteString("\r\n")
	content.WriteString(BuildEmailBody(event))

	return []byte(content.String())
}

// resolvePort 根据安全协议推断默认端口
// 优先使用配置的端口,否则根据 SSL/TLS 协议自动选择标准端口
func (notifier *SMTPNotifier) resolvePort() int {
	if notifier.smtpConfig.Port > 0 {
		return notifier.smtpConfig.Port
	}

	if notifier.smtpConfig.UseSSL {
		return defaultSMTPSSLPort
	}

	if notifier.smtpConfig.UseTLS {
		return defaultSMTPSTARTTLSPort
	}

	return defaultSMTPPort
}

// sendRaw 发送原始邮件数据
func (notifier *SMTPNotifier) sendRaw(ctx context.Context, rawMessage []byte) error {
	client, closeFunction, err := notifier.dial(ctx)
	if err != nil {
		return err
	}
	defer closeFunction()

	if err := notifier.authenticate(client); err != nil {
		return err
	}

	if err := client.Mail(notifier.smtpConfig.From); err != nil {
		return fmt.Errorf("MAIL FROM command failed: %w", err)
	}

	if err := client.Rcpt(notifier.email); err != nil {
		return fmt.Errorf("RCPT TO command failed for %s: %w", notifier.email, err)
	}

	return notifier.writeMessageData(client, rawMessage)
}

// dial 建立 SMTP 客户端连接
// 根据配置自动选择 SSL 或 STARTTLS 协议,返回客户端和清理函数
func (notifier *SMTPNotifier) dial(ctx context.Context) (*smtp.Client, func(), error) {
	connection, err := notifier.dialConnection(ctx)
	if err != nil {
		return nil, nil, err
	}

	if notifier.smtpConfig.UseSSL {
		return notifier.createSSLClient(connection)
	}

	return notifier.createPlainClient(connection)
}

// dialConnection 建立底层 TCP 连接
// 支持 context 超时控制,确保不会无限等待
func (notifier *SMTPNotifier) dialConnection(ctx context.Context) (net.Conn, error) {
	address := net.JoinHostPort(notifier.smtpConfig.Host, fmt.Sprintf("%d", notifier.resolvePort()))

	var dialer net.Dialer

	if deadline, hasDeadline := ctx.Deadline(); hasDeadline {
		connection, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, fmt.Errorf("failed to dial smtp server %s: %w", address, err)
		}

		_ = connection.SetDeadline(deadline)
		return connection, nil
	}

	timeout := notifier.smtpConfig.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	connection, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to dial smtp server %s: %w", address, err)
	}

	return connection, nil
}

// createSSLClient 创建 SSL 加密的 SMTP 客户端
func (notifier *SMTPNotifier) createSSLClient(connection net.Conn) (*smtp.Client, func(), error) {
	tlsConfig := &tls.Config{
		ServerName: notifier.smtpConfig.Host,
	}

	tlsConnection := tls.Client(connection, tlsConfig)

	if err := tlsConnection.Handshake(); err != nil {
		_ = connection.Close()
		return nil, nil, fmt.Errorf("ssl handshake failed: %w", err)
	}

	client, err := smtp.NewClient(tlsConnection, notifier.smtpConfig.Host)
	if err != nil {
		_ = connection.Close()
		return nil, nil, fmt.Errorf("failed to create smtp client with ssl: %w", err)
	}

	closeFunction := func() {
		_ = client.Quit()
		_ = connection.Close()
	}

	return client, closeFunction, nil
}

// createPlainClient 创建普通 SMTP 客户端
// 可选择使用 STARTTLS 将明文连接升级为加密连接
func (notifier *SMTPNotifier) createPlainClient(connection net.Conn) (*smtp.Client, func(), error) {
	client, err := smtp.NewClient(connection, notifier.smtpConfig.Host)
	if err != nil {
		_ = connection.Close()
		return nil, nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	if notifier.smtpConfig.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: notifier.smtpConfig.Host,
		}

		if err = client.StartTLS(tlsConfig); err != nil {
			_ = client.Quit()
			_ = connection.Close()
			return nil, nil, fmt.Errorf("starttls upgrade failed: %w", err)
		}
	}

	closeFunction := func() {
		_ = client.Quit()
		_ = connection.Close()
	}

	return client, closeFunction, nil
}

// authenticate 执行 SMTP 身份认证
// 配置了用户名和密码时才认证,部分服务器允许匿名发送
func (notifier *SMTPNotifier) authenticate(client *smtp.Client) error {
	if notifier.smtpConfig.Username == "" || notifier.smtpConfig.Password == "" {
		return nil
	}

	authentication := smtp.PlainAuth(
		"",
		notifier.smtpConfig.Username,
		notifier.smtpConfig.Password,
		notifier.smtpConfig.Host,
	)

	if err := client.Auth(authentication); err != nil {
		return fmt.Errorf("smtp authentication failed: %w", err)
	}

	return nil
}

// writeMessageData 写入邮件正文数据
func (notifier *SMTPNotifier) writeMessageData(client *smtp.Client, rawMessage []byte) error {
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err = writer.Write(rawMessage); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}

	if err = writer.Close(); err != nil {
		return fmt.Errorf("failed to close message body: %w", err)
	}

	return nil
}

// ==================== 工厂函数 ====================

// NewNotifier 按配置创建通知器
func NewNotifier(notifyConfig config.Notify) (Notifier, error) {
	switch notifyConfig.Provider {
	case config.NotifyProviderAPI:
		return NewAPINotifier(notifyConfig), nil
	case config.NotifyProviderSMTP:
		return NewSMTPNotifier(notifyConfig), nil
	default:
		return nil, errors.New("unknown notify provider: " + notifyConfig.Provider)
	}
}
