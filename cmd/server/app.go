package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/config"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/database"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/httpapi"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/idempotency"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/lifecycle"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/notify"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/queue"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/recorder"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/store"
)

// ==================== 常量定义 ====================

const (
	configFilePath         = "etc/app.yaml"
	gracefulShutdownPeriod = 5 * time.Second
	redisPingTimeout       = 5 * time.Second
)

// ==================== 应用上下文 ====================

// AppContext 应用运行时上下文
// 持有所有已初始化的组件,统一管理资源释放
type AppContext struct {
	Configuration *config.Config
	Manager       *lifecycle.Manager
	Dispatcher    *notify.Dispatcher
	Handler       *httpapi.Handler

	redisClient *redis.Client
	mysqlDB     *sql.DB
	producer    *queue.NSQProducer
	consumer    *queue.NSQConsumer
}

// InitAppContext 初始化应用上下文
// 按依赖顺序装配存储、生命周期管理器、通知链路和 HTTP 处理器
func InitAppContext(configuration *config.Config) *AppContext {
	appContext := &AppContext{Configuration: configuration}

	kv := appContext.initStore()
	appContext.Manager = lifecycle.NewManager(kv)

	appContext.initNotifyPipeline()

	appContext.Handler = httpapi.NewHandler(
		appContext.Manager,
		appContext.Dispatcher,
		configuration.Notify.PreviewLimit,
	)

	return appContext
}

// initStore 初始化消息存储后端
// redis 后端启动时校验连通性,失败直接退出
func (appContext *AppContext) initStore() store.KV {
	configuration := appContext.Configuration

	if configuration.StoreBackend == config.StoreBackendMemory {
		log.Println("[App] 使用内存存储后端(仅限开发与测试)")
		return store.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     configuration.Redis.Addr,
		Password: configuration.Redis.Password,
		DB:       configuration.Redis.DB,
	})

	pingContext, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingContext).Err(); err != nil {
		log.Fatalf("[App] Redis 连接失败 (%s): %v", configuration.Redis.Addr, err)
	}

	appContext.redisClient = client
	log.Printf("[App] Redis 存储后端就绪: %s", configuration.Redis.Addr)

	return store.NewRedisStore(client, configuration.Namespace)
}

// initNotifyPipeline 初始化读取通知链路
// 组装通知器、去重检查器、投递记录器和可选的 NSQ 队列
func (appContext *AppContext) initNotifyPipeline() {
	configuration := appContext.Configuration

	notifier, err := notify.NewNotifier(configuration.Notify)
	if err != nil {
		log.Fatalf("[App] 通知器初始化失败: %v", err)
	}

	options := notify.DispatcherOptions{
		Notifier:       notifier,
		Checker:        appContext.buildIdempotencyChecker(),
		Recorder:       appContext.buildRecorder(),
		PreviewLimit:   configuration.Notify.PreviewLimit,
		IdempotencyTTL: configuration.Notify.IdempotencyTTL,
	}

	if configuration.Notify.QueueMode == config.NotifyQueueModeNSQ {
		options.Enqueuer = appContext.buildProducer()
	}

	appContext.Dispatcher = notify.NewDispatcher(options)
}

// buildIdempotencyChecker 构建通知去重检查器
// 有 Redis 时用 SETNX 实现跨实例去重,否则退化为进程内去重
func (appContext *AppContext) buildIdempotencyChecker() idempotency.Checker {
	if appContext.redisClient != nil {
		return idempotency.NewRedisChecker(
			appContext.redisClient,
			appContext.Configuration.Namespace,
		)
	}

	return idempotency.NewMemoryChecker()
}

// buildRecorder 构建通知投递记录器
// 未配置 MySQL 时记录器为空操作,不影响投递链路
func (appContext *AppContext) buildRecorder() recorder.Recorder {
	dsn := appContext.Configuration.MySQL.DSN
	if dsn == "" {
		return recorder.NoopRecorder{}
	}

	db, err := database.Open(dsn)
	if err != nil {
		log.Fatalf("[App] MySQL 初始化失败: %v", err)
	}

	appContext.mysqlDB = db
	log.Println("[App] MySQL 投递记录表就绪")

	return recorder.NewMySQLRecorder(db)
}

// buildProducer 构建 NSQ 生产者
func (appContext *AppContext) buildProducer() *queue.NSQProducer {
	configuration := appContext.Configuration

	producer, err := queue.NewNSQProducer(
		configuration.NSQ.NsqdAddress,
		configuration.NSQ.Topic,
	)
	if err != nil {
		log.Fatalf("[App] NSQ 生产者初始化失败: %v", err)
	}

	appContext.producer = producer
	log.Printf("[App] NSQ 生产者就绪: %s -> %s",
		configuration.NSQ.NsqdAddress, configuration.NSQ.Topic)

	return producer
}

// Close 释放应用上下文持有的所有资源
// 关闭顺序与依赖方向相反
func (appContext *AppContext) Close() {
	if appContext.consumer != nil {
		appContext.consumer.Stop()
	}

	if appContext.producer != nil {
		appContext.producer.Close()
	}

	if appContext.mysqlDB != nil {
		if err := appContext.mysqlDB.Close(); err != nil {
			log.Printf("[App] MySQL 连接关闭出现错误: %v", err)
		}
	}

	if appContext.redisClient != nil {
		if err := appContext.redisClient.Close(); err != nil {
			log.Printf("[App] Redis 连接关闭出现错误: %v", err)
		}
	}
}

// ==================== HTTP 服务器管理 ====================

// ServerManager HTTP 服务器管理器
type ServerManager struct {
	server *http.Server
}

// NewServerManager 创建服务器管理器实例
func NewServerManager(address string, handler http.Handler) *ServerManager {
	return &ServerManager{
		server: &http.Server{
			Addr:    address,
			Handler: handler,
		},
	}
}

// Start 启动 HTTP 服务器
// 在独立的 goroutine 中运行,避免阻塞主流程
func (manager *ServerManager) Start() {
	go func() {
		log.Printf("[Server] HTTP 服务启动于 %s", manager.server.Addr)

		if err := manager.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] 启动失败: %v", err)
		}
	}()
}

// GracefulShutdown 优雅关闭服务器
// 等待现有请求完成或超时后强制关闭
func (manager *ServerManager) GracefulShutdown() error {
	log.Println("[Server] 开始优雅关闭...")

	shutdownContext, cancel := context.WithTimeout(
		context.Background(),
		gracefulShutdownPeriod,
	)
	defer cancel()

	if err := manager.server.Shutdown(shutdownContext); err != nil {
		log.Printf("[Server] 关闭过程出现错误: %v", err)
		return err
	}

	log.Println("[Server] 优雅关闭完成")
	return nil
}

// ==================== 信号处理器 ====================

// SignalHandler 系统信号处理器
type SignalHandler struct {
	notifyContext context.Context
	stopFunc      context.CancelFunc
}

// NewSignalHandler 创建信号处理器实例
// 监听 SIGINT 和 SIGTERM 信号用于优雅关闭
func NewSignalHandler() *SignalHandler {
	notifyContext, stopFunc := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	return &SignalHandler{
		notifyContext: notifyContext,
		stopFunc:      stopFunc,
	}
}

// WaitForShutdownSignal 等待关闭信号
// 阻塞直到收到中断信号
func (handler *SignalHandler) WaitForShutdownSignal() {
	<-handler.notifyContext.Done()
	handler.stopFunc()
	log.Println("[SignalHandler] 收到关闭信号")
}

// ==================== 应用程序启动器 ====================

// ApplicationRunner 应用程序运行器
// 负责整个应用的生命周期管理
type ApplicationRunner struct {
	configuration *config.Config
	serverManager *ServerManager
	signalHandler *SignalHandler
	appContext    *AppContext
}

// NewApplicationRunner 创建应用运行器实例
func NewApplicationRunner() *ApplicationRunner {
	configuration := config.MustLoad(configFilePath)

	return &ApplicationRunner{
		configuration: configuration,
		signalHandler: NewSignalHandler(),
	}
}

// Run 运行应用程序
// 执行完整的启动、运行和关闭流程
func (runner *ApplicationRunner) Run() {
	runner.initializeApplication()
	runner.startConsumers()
	runner.startHTTPServer()
	runner.waitForShutdown()
}

// initializeApplication 初始化应用程序
func (runner *ApplicationRunner) initializeApplication() {
	runner.appContext = InitAppContext(runner.configuration)
	log.Println("[Runner] 应用程序初始化完成")
}

// startConsumers 启动消息队列消费者
// 仅在 nsq 队列模式下启动,inline 模式下读取通知在进程内直接投递
func (runner *ApplicationRunner) startConsumers() {
	if runner.configuration.Notify.QueueMode != config.NotifyQueueModeNSQ {
		return
	}

	startNotifyConsumer(runner.appContext)
	log.Println("[Runner] 读取通知消费者启动完成")
}

// startHTTPServer 启动 HTTP 服务器
func (runner *ApplicationRunner) startHTTPServer() {
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()
	httpapi.RegisterRoutes(router, runner.appContext.Handler)

	runner.serverManager = NewServerManager(runner.configuration.HTTPAddress, router)
	runner.serverManager.Start()
}

// waitForShutdown 等待并执行优雅关闭
// 确保所有资源正确释放
func (runner *ApplicationRunner) waitForShutdown() {
	runner.signalHandler.WaitForShutdownSignal()
	runner.performShutdown()
}

// performShutdown 执行关闭流程
func (runner *ApplicationRunner) performShutdown() {
	// 先关闭 HTTP 服务器,停止接收新请求
	if runner.serverManager != nil {
		if err := runner.serverManager.GracefulShutdown(); err != nil {
			log.Printf("[Runner] 服务器关闭出现错误: %v", err)
		}
	}

	// 再关闭应用上下文,释放所有资源
	if runner.appContext != nil {
		runner.appContext.Close()
		log.Println("[Runner] 应用上下文资源释放完成")
	}

	log.Println("[Runner] 应用程序已完全关闭")
}
