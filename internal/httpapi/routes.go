package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ==================== 中间件 ====================

// corsMiddleware 跨域资源共享中间件
// 允许所有来源访问,便于前端开发和集成
// 生产环境建议根据需求配置白名单
func corsMiddleware() gin.HandlerFunc {
	return func(ginContext *gin.Context) {
		ginContext.Header("Access-Control-Allow-Origin", "*")
		ginContext.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		ginContext.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if ginContext.Request.Method == "OPTIONS" {
			ginContext.AbortWithStatus(http.StatusNoContent)
			return
		}

		ginContext.Next()
	}
}

// ==================== 路由注册 ====================

// RegisterRoutes 注册全部 HTTP 路由
// 包括消息生命周期接口、通知接口、健康检查和指标导出
func RegisterRoutes(router *gin.Engine, handler *Handler) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/messages", handler.Create)
		api.GET("/messages/:id", handler.Retrieve)
		api.DELETE("/messages/:id", handler.Consume)
		api.POST("/messages/reveal/:id", handler.Reveal)
		api.POST("/messages/notify", handler.Notify)
	}

	router.GET("/healthz", func(ginContext *gin.Context) {
		ginContext.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
