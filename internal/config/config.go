// Package config 提供服务配置的加载与校验
// 配置来源优先级: 环境变量 > YAML 配置文件 > 内置默认值
// 启动时先加载 .env 文件,再解析 YAML,最后用环境变量覆盖
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 默认配置常量
const (
	// 应用默认配置
	DefaultHTTPAddress = ":8080"
	DefaultNamespace   = "burn"

	// 存储默认配置
	DefaultStoreBackend = "redis"
	DefaultRedisAddr    = "127.0.0.1:6379"

	// 通知默认配置
	DefaultNotifyProvider  = "notify-api"
	DefaultNotifyEndpoint  = "https://notify.cx/api/send-email"
	DefaultPreviewLimit    = 160
	DefaultNotifyTimeout   = 10 * time.Second
	DefaultIdempotencyTTL  = 24 * time.Hour
	DefaultNotifyQueueMode = "inline"

	// NSQ 队列默认配置
	DefaultNSQTopic       = "message-read-events"
	DefaultNSQChannel     = "notify-workers"
	DefaultNSQMaxInFlight = 64
	DefaultNSQConcurrency = 4
	DefaultNSQMaxAttempts = 5
	DefaultDLQTopicSuffix = ".DLQ"

	// 存储后端类型
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"

	// 通知投递方式
	NotifyProviderAPI  = "notify-api"
	NotifyProviderSMTP = "smtp"

	// 通知队列模式
	NotifyQueueModeInline = "inline"
	NotifyQueueModeNSQ    = "nsq"
)

// Redis Redis 连接配置
type Redis struct {
	Addr     string `yaml:"Addr" env:"REDIS_ADDR"`         // Redis 地址 host:port
	Password string `yaml:"Password" env:"REDIS_PASSWORD"` // Redis 密码
	DB       int    `yaml:"DB" env:"REDIS_DB"`             // 数据库编号
}

// MySQL 通知投递记录库配置
// 未配置 DSN 时关闭记录功能,不影响其他任何行为
type MySQL struct {
	DSN string `yaml:"DSN" env:"MYSQL_DSN"` // 连接串,空值表示禁用
}

// NSQ 消息队列配置
type NSQ struct {
	NsqdAddress      string   `yaml:"NsqdAddress" env:"NSQD_ADDRESS"` // nsqd TCP 地址
	LookupdAddresses []string `yaml:"LookupdAddresses"`               // lookupd HTTP 地址列表
	Topic            string   `yaml:"Topic"`                          // 读取事件主题
	Channel          string   `yaml:"Channel"`                        // 消费者通道
	MaxInFlight      int      `yaml:"MaxInFlight"`                    // 最大在途消息数
	Concurrency      int      `yaml:"Concurrency"`                    // 消费并发度
	MaxAttempts      int      `yaml:"MaxAttempts"`                    // 投递失败最大重试次数
	DLQTopicSuffix   string   `yaml:"DLQTopicSuffix"`                 // 死信队列主题后缀
}

// NotifyAPI Notify 邮件 API 配置
type NotifyAPI struct {
	Endpoint string `yaml:"Endpoint" env:"NOTIFY_ENDPOINT"` // send-email 接口地址
	APIKey   string `yaml:"APIKey" env:"NOTIFY_API_KEY"`    // x-api-key 凭证
}

// SMTPProvider SMTP 邮件服务配置
type SMTPProvider struct {
	From     string        `yaml:"From" env:"SMTP_FROM"`         // 发件人邮箱地址
	Host     string        `yaml:"Host" env:"SMTP_HOST"`         // SMTP 服务器主机名
	Port     int           `yaml:"Port" env:"SMTP_PORT"`         // SMTP 服务器端口
	Username string        `yaml:"Username" env:"SMTP_USERNAME"` // SMTP 认证用户名
	Password string        `yaml:"Password" env:"SMTP_PASSWORD"` // SMTP 认证密码
	UseSSL   bool          `yaml:"UseSSL"`                       // 使用 SSL 直连
	UseTLS   bool          `yaml:"UseTLS"`                       // 使用 STARTTLS 升级
	Timeout  time.Duration `yaml:"Timeout"`                      // 发送超时时间
}

// Notify 读取通知配置
type Notify struct {
	Email          string        `yaml:"Email" env:"NOTIFICATION_EMAIL"` // 通知收件人邮箱
	Provider       string        `yaml:"Provider"`                       // notify-api 或 smtp
	QueueMode      string        `yaml:"QueueMode"`                      // inline 或 nsq
	PreviewLimit   int           `yaml:"PreviewLimit"`                   // 内容预览截断长度
	Timeout        time.Duration `yaml:"Timeout"`                        // 投递超时时间
	IdempotencyTTL time.Duration `yaml:"IdempotencyTTL"`                 // 通知去重标记有效期
	API            NotifyAPI     `yaml:"API"`                            // Notify API 配置
	SMTP           SMTPProvider  `yaml:"SMTP"`                           // SMTP 配置
}

// Config 服务总配置
type Config struct {
	HTTPAddress  string `yaml:"HTTPAddress" env:"HTTP_ADDRESS"` // HTTP 监听地址
	Namespace    string `yaml:"Namespace" env:"NAMESPACE"`      // 存储键命名空间
	StoreBackend string `yaml:"StoreBackend" env:"STORE_BACKEND"`
	Redis        Redis  `yaml:"Redis"`
	MySQL        MySQL  `yaml:"MySQL"`
	NSQ          NSQ    `yaml:"NSQ"`
	Notify       Notify `yaml:"Notify"`
}

// ==================== 加载与校验 ====================

// Load 加载配置
// .env 文件不存在时静默忽略;YAML 文件不存在时使用默认值
func Load(path string) (*Config, error) {
	// .env 仅用于本地开发,线上通过真实环境变量注入
	_ = godotenv.Load()

	configuration := defaultConfig()

	if err := loadYAMLFile(path, configuration); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(configuration); err != nil {
		return nil, err
	}

	configuration.applyDefaults()

	if err := configuration.Validate(); err != nil {
		return nil, err
	}

	return configuration, nil
}

// MustLoad 加载配置,失败时直接退出进程
// 仅供服务启动入口使用
func MustLoad(path string) *Config {
	configuration, err := Load(path)
	if err != nil {
		log.Fatalf("[Config] 加载配置失败: %v", err)
	}

	return configuration
}

// defaultConfig 构造内置默认配置
func defaultConfig() *Config {
	return &Config{
		HTTPAddress:  DefaultHTTPAddress,
		Namespace:    DefaultNamespace,
		StoreBackend: DefaultStoreBackend,
		Redis: Redis{
			Addr: DefaultRedisAddr,
		},
		NSQ: NSQ{
			Topic:          DefaultNSQTopic,
			Channel:        DefaultNSQChannel,
			MaxInFlight:    DefaultNSQMaxInFlight,
			Concurrency:    DefaultNSQConcurrency,
			MaxAttempts:    DefaultNSQMaxAttempts,
			DLQTopicSuffix: DefaultDLQTopicSuffix,
		},
		Notify: Notify{
			Provider:       DefaultNotifyProvider,
			QueueMode:      DefaultNotifyQueueMode,
			PreviewLimit:   DefaultPreviewLimit,
			Timeout:        DefaultNotifyTimeout,
			IdempotencyTTL: DefaultIdempotencyTTL,
			API: NotifyAPI{
				Endpoint: DefaultNotifyEndpoint,
			},
		},
	}
}

// loadYAMLFile 从 YAML 文件加载配置
func loadYAMLFile(path string, configuration *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, configuration); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides 用环境变量覆盖配置
// 未设置的环境变量不会清空已有值
func applyEnvOverrides(configuration *Config) error {
	targets := []interface{}{
		configuration,
		&configuration.Redis,
		&configuration.MySQL,
		&configuration.NSQ,
		&configuration.Notify,
		&configuration.Notify.API,
		&configuration.Notify.SMTP,
	}

	for _, target := range targets {
		if err := env.Parse(target); err != nil {
			return fmt.Errorf("parse environment overrides: %w", err)
		}
	}

	return nil
}

// applyDefaults 补齐被 YAML 显式清空的字段
func (configuration *Config) applyDefaults() {
	if configuration.Notify.PreviewLimit <= 0 {
		configuration.Notify.PreviewLimit = DefaultPreviewLimit
	}

	if configuration.Notify.Timeout <= 0 {
		configuration.Notify.Timeout = DefaultNotifyTimeout
	}

	if configuration.Notify.IdempotencyTTL <= 0 {
		configuration.Notify.IdempotencyTTL = DefaultIdempotencyTTL
	}

	if configuration.NSQ.MaxAttempts <= 0 {
		configuration.NSQ.MaxAttempts = DefaultNSQMaxAttempts
	}
}

// Validate 校验配置的合法性
func (configuration *Config) Validate() error {
	if configuration.HTTPAddress == "" {
		return fmt.Errorf("http address cannot be empty")
	}

	switch configuration.StoreBackend {
	case StoreBackendRedis, StoreBackendMemory:
	default:
		return fmt.Errorf("unknown store backend: %q", configuration.StoreBackend)
	}

	switch configuration.Notify.Provider {
	case NotifyProviderAPI, NotifyProviderSMTP:
	default:
		return fmt.Errorf("unknown notify provider: %q", configuration.Notify.Provider)
	}

	switch configuration.Notify.QueueMode {
	case NotifyQueueModeInline, NotifyQueueModeNSQ:
	default:
		return fmt.Errorf("unknown notify queue mode: %q", configuration.Notify.QueueMode)
	}

	if configuration.Notify.QueueMode == NotifyQueueModeNSQ && configuration.NSQ.NsqdAddress == "" {
		return fmt.Errorf("nsq queue mode requires an nsqd address")
	}

	return nil
}
