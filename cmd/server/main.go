package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailsight/backend/internal/auth"
	jwtpkg "mailsight/backend/internal/auth/jwt"
	"mailsight/backend/internal/config"
	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/logger"
	"mailsight/backend/internal/monitoring"
	"mailsight/backend/internal/notify"
	"mailsight/backend/internal/service"
	"mailsight/backend/internal/storage/cached"
	"mailsight/backend/internal/storage/hybrid"
	"mailsight/backend/internal/storage/memory"
	redisstore "mailsight/backend/internal/storage/redis"
	sqlstore "mailsight/backend/internal/storage/sql"
	httptransport "mailsight/backend/internal/transport/http"
	"mailsight/backend/internal/websocket"
)

// main 启动像素追踪 HTTP 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting mailsight server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	store, err := initializeStorage(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}
	defer store.Close()

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化服务层
	mailService := service.NewMailService(store, cfg)
	trackingService := service.NewTrackingService(store, log, metrics)
	statsService := service.NewStatsService(store)
	webhookService := service.NewWebhookService(store, log)
	adminService := service.NewAdminService(store)
	authService := auth.NewService(store)

	// Webhook 事件接入邮件 CRUD 与像素命中
	mailService.SetWebhookService(webhookService)
	trackingService.SetWebhookService(webhookService)

	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("access_expiry", cfg.JWT.AccessExpiry),
		zap.Duration("refresh_expiry", cfg.JWT.RefreshExpiry),
	)

	// 创建 WebSocket Hub 并接入打开事件推送。
	// 混合存储时事件经由 Redis 发布订阅转发（多实例下每个
	// 实例都能推送到自己持有的连接），其余存储直接本地推送。
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, jwtManager, metrics, log)
	hybridStore, usesRedis := store.(*hybrid.Store)
	if !usesRedis {
		trackingService.SetNotifier(wsHub)
	}

	// 首次打开邮件通知（可选）
	if cfg.SMTP.Enabled {
		trackingService.SetMailer(notify.NewMailer(cfg.SMTP, log))
		log.Info("first-open mail notifications enabled",
			zap.String("smtp_address", cfg.SMTP.Address))
	}

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:          cfg,
		MailService:     mailService,
		TrackingService: trackingService,
		StatsService:    statsService,
		WebhookService:  webhookService,
		AdminService:    adminService,
		AuthService:     authService,
		JWTManager:      jwtManager,
		WebSocketHub:    wsHub,
		Store:           store,
		Logger:          log,
		Metrics:         metrics,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// Redis 打开事件转发 goroutine（仅混合存储）
	if usesRedis {
		group.Go(func() error {
			return relayReadEvents(groupCtx, hybridStore.Redis(), wsHub, log)
		})
	}

	// 定时重试失败的 Webhook 投递 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		log.Info("starting webhook retry task", zap.Duration("interval", 5*time.Minute))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("webhook retry task stopped")
				return nil
			case <-ticker.C:
				if err := webhookService.RetryFailedDeliveries(); err != nil {
					log.Error("failed to retry webhook deliveries", zap.Error(err))
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 按配置选择存储实现。
//
// 数据库 + Redis 同时配置时使用混合存储（像素查询走 Redis 缓存），
// 只配置数据库时使用 SQL 存储加进程内像素缓存，否则回落到内存存储。
func initializeStorage(cfg *config.Config, log *zap.Logger) (domain.Store, error) {
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	opts := sqlstore.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	if cfg.Redis.Address != "" {
		store, err := hybrid.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			opts,
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Tracking.PixelCacheTTL,
		)
		if err != nil {
			return nil, err
		}
		log.Info("using hybrid storage",
			zap.String("database", cfg.Database.Type),
			zap.String("redis", cfg.Redis.Address))
		return store, nil
	}

	store, err := sqlstore.NewStore(cfg.Database.Type, cfg.Database.DSN, opts)
	if err != nil {
		return nil, err
	}
	log.Info("using database storage with local pixel cache",
		zap.String("type", cfg.Database.Type))
	// 没有 Redis 时像素查询走进程内缓存
	return cached.NewStore(store, cfg.Tracking.PixelCacheTTL), nil
}

// relayReadEvents 把 Redis 发布订阅上的打开事件转发给本地 WebSocket 连接。
func relayReadEvents(ctx context.Context, cache *redisstore.Cache, hub *websocket.Hub, log *zap.Logger) error {
	sub := cache.SubscribeReadEvents()
	defer sub.Close()

	ch := sub.Channel()
	log.Info("starting read event relay")

	for {
		select {
		case <-ctx.Done():
			log.Info("read event relay stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID, ok := redisstore.ParseReadEventChannel(msg.Channel)
			if !ok {
				continue
			}
			readLog, err := redisstore.DecodeReadEvent([]byte(msg.Payload))
			if err != nil {
				log.Warn("failed to decode read event", zap.Error(err))
				continue
			}
			hub.NotifyReadEvent(userID, readLog)
		}
	}
}
