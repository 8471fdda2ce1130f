package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"mailsight/backend/internal/auth"
	jwtpkg "mailsight/backend/internal/auth/jwt"
	"mailsight/backend/internal/config"
	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/health"
	"mailsight/backend/internal/middleware"
	"mailsight/backend/internal/monitoring"
	"mailsight/backend/internal/service"
	"mailsight/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config          *config.Config
	MailService     *service.MailService
	TrackingService *service.TrackingService
	StatsService    *service.StatsService
	WebhookService  *service.WebhookService
	AdminService    *service.AdminService
	AuthService     *auth.Service
	JWTManager      *jwtpkg.Manager
	WebSocketHub    *websocket.Hub
	Store           domain.Store
	Logger          *zap.Logger
	Metrics         *monitoring.Metrics
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	trackingHandler := NewTrackingHandler(deps.TrackingService)
	authHandler := NewAuthHandler(deps.AuthService, deps.JWTManager, deps.Logger)
	mailHandler := NewMailHandler(deps.MailService, deps.StatsService, deps.Logger)
	webhookHandler := NewWebhookHandler(deps.WebhookService, deps.Logger)
	adminHandler := NewAdminHandler(deps.AdminService, deps.Logger)

	// 创建中间件
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)
	adminAuth := middleware.NewAdminAuth(deps.AuthService)

	// 像素端点限流只做降级标记：超限的请求照常返回图片，
	// 只是不再写打开记录（邮件客户端的图片代理会把大量
	// 收件人汇聚到少数出口 IP，不能拒绝）
	pixelRateLimit := middleware.NewRateLimiter(50, 100, deps.Metrics)
	// 认证端点限流：正常拒绝，挡住撞库
	authRateLimit := middleware.NewRateLimiter(5, 10, deps.Metrics)

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	checker := health.NewHealthChecker(deps.Store, deps.Logger)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/live", gin.WrapH(checker.Handler()))
	router.GET("/ready", gin.WrapH(checker.Handler()))

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// ========== Pixel Routes（公开，无认证，永远 200） ==========
	router.GET("/api/pixel/:code", pixelRateLimit.SoftLimit("pixel"), trackingHandler.ServePixel)
	router.GET("/pixel/:code", pixelRateLimit.SoftLimit("pixel"), trackingHandler.ServePixel)

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authRateLimit.Limit("auth"), authHandler.Register)
			authRoutes.POST("/login", authRateLimit.Limit("auth"), authHandler.Login)
			authRoutes.POST("/refresh", authRateLimit.Limit("auth"), authHandler.Refresh)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
			authRoutes.PUT("/password", jwtAuth.RequireAuth(), authHandler.ChangePassword)
			authRoutes.PUT("/notify", jwtAuth.RequireAuth(), authHandler.UpdateNotify)
			authRoutes.DELETE("/account", jwtAuth.RequireAuth(), authHandler.DeleteAccount)
		}

		// ========== Mail Routes ==========
		mailRoutes := v1.Group("/mails")
		mailRoutes.Use(jwtAuth.RequireAuth())
		{
			mailRoutes.POST("", mailHandler.CreateMail)
			mailRoutes.GET("", mailHandler.ListMails)
			mailRoutes.GET("/:id", mailHandler.GetMail)
			mailRoutes.PATCH("/:id", mailHandler.UpdateMail)
			mailRoutes.DELETE("/:id", mailHandler.DeleteMail)
			mailRoutes.GET("/:id/stats", mailHandler.GetMailStats)
			mailRoutes.GET("/:id/logs", mailHandler.ListReadLogs)
		}

		// ========== Dashboard ==========
		v1.GET("/dashboard", jwtAuth.RequireAuth(), mailHandler.GetDashboard)

		// ========== WebSocket Routes ==========
		if deps.WebSocketHub != nil {
			v1.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
		}

		// ========== Webhook Routes ==========
		if deps.WebhookService != nil {
			webhookRoutes := v1.Group("/webhooks")
			webhookRoutes.Use(jwtAuth.RequireAuth())
			{
				webhookRoutes.POST("", webhookHandler.CreateWebhook)
				webhookRoutes.GET("", webhookHandler.ListWebhooks)
				webhookRoutes.GET("/:id", webhookHandler.GetWebhook)
				webhookRoutes.PATCH("/:id", webhookHandler.UpdateWebhook)
				webhookRoutes.DELETE("/:id", webhookHandler.DeleteWebhook)
				webhookRoutes.GET("/:id/deliveries", webhookHandler.GetDeliveries)
			}
		}

		// ========== Admin Routes ==========
		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(jwtAuth.RequireAuth())
		{
			adminRoutes.GET("/users", adminAuth.RequireAdmin(), adminHandler.ListUsers)
			adminRoutes.GET("/users/:id", adminAuth.RequireAdmin(), adminHandler.GetUser)
			adminRoutes.PATCH("/users/:id/active", adminAuth.RequireAdmin(), adminHandler.SetUserActive)
			adminRoutes.DELETE("/users/:id", adminAuth.RequireSuper(), adminHandler.DeleteUser)
			adminRoutes.GET("/statistics", adminAuth.RequireAdmin(), adminHandler.GetStatistics)
		}
	}

	return router
}
