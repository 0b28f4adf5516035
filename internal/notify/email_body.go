package notify

import (
	"fmt"
	"strings"
	"time"
)

// ==================== 常量定义 ====================

const (
	// notificationSubject 通知邮件主题
	notificationSubject = "[Burn After Reading] Your secret message was read"

	// readTimeLayout 读取时间的展示格式
	readTimeLayout = "Monday, January 2, 2006 03:04:05 PM MST"
)

// ==================== 邮件正文构建 ====================

// BuildEmailBody 构建通知邮件的 HTML 正文
// 预览内容经过 HTML 转义,防止消息文本注入标签
func BuildEmailBody(event ReadEvent) string {
	var body strings.Builder

	body.WriteString(`<!DOCTYPE html>
<html>
<head>
  <style>
    body {
      font-family: Arial, sans-serif;
      line-height: 1.6;
      color: #333;
      max-width: 600px;
      margin: 0 auto;
    }
    .container {
      padding: 20px;
      border: 1px solid #ddd;
      border-radius: 5px;
      background-color: #f9f9f9;
    }
    .header {
      background-color: #dc2626;
      color: white;
      padding: 10px 20px;
      border-radius: 5px 5px 0 0;
      margin-bottom: 20px;
    }
    .message-content {
      background-color: #fff;
      border: 1px solid #eee;
      border-left: 4px solid #dc2626;
      padding: 15px;
      margin: 20px 0;
      border-radius: 3px;
    }
    .footer {
      font-size: 12px;
      color: #777;
      margin-top: 30px;
      text-align: center;
    }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h2>Secret Message Read Alert</h2>
    </div>
`)

	body.WriteString(fmt.Sprintf(
		"    <p>Your secret message with ID <strong>%s</strong> was read on:</p>\n",
		htmlEscape(event.MessageID),
	))
	body.WriteString(fmt.Sprintf(
		"    <p><strong>%s</strong></p>\n",
		formatReadTime(event.ReadAt),
	))

	body.WriteString("    <p>Message content preview:</p>\n")
	body.WriteString(fmt.Sprintf(
		"    <div class=\"message-content\">%s</div>\n",
		htmlEscape(event.Preview),
	))

	body.WriteString(`    <p>This message has now been destroyed according to your settings.</p>

    <div class="footer">
      <p>This is an automated notification from Burn After Reading.</p>
    </div>
  </div>
</body>
</html>
`)

	return body.String()
}

// formatReadTime 格式化读取时间为人类可读形式
func formatReadTime(readAt time.Time) string {
	if readAt.IsZero() {
		readAt = time.Now()
	}

	return readAt.Format(readTimeLayout)
}

// htmlEscape 转义 HTML 特殊字符
func htmlEscape(text string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)

	return replacer.Replace(text)
}
