// Package main runs the multi-tenant chat backend HTTP server with WebSocket
// delivery and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HillCountryCoder/chat-app-backend-sub000/config"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/attachments"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/auth"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/channels"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/messages"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/middleware"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/realtime"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenants"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/tenantscope"
	"github.com/HillCountryCoder/chat-app-backend-sub000/internal/unread"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/database"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/queue"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/redis"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/response"
	"github.com/HillCountryCoder/chat-app-backend-sub000/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AttachmentsBucket:    cfg.AWS.AttachmentsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	// Scoped pool for tenant-owned tables; the raw pool stays with the tenant
	// registry and the refresh-token bootstrap only.
	scoped := tenantscope.NewPool(pool, logger)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessTTL())
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Tenants
	tenantRepo := tenants.NewRepository(pool)
	tenantHandler := tenants.NewHandler(tenantRepo, jobQueue, logger)

	// Auth and sessions
	userRepo := auth.NewRepository(scoped)
	globalDir := auth.NewGlobalDirectory(pool)
	refreshRepo := auth.NewRefreshRepository(pool)
	issuer := auth.NewSessionIssuer(jwtService, refreshRepo, globalDir,
		cfg.JWT.RefreshTTL(), cfg.JWT.RememberTTL(), logger)
	authHandler := auth.NewHandler(userRepo, issuer, logger)
	ssoHandler := tenants.NewSSOHandler(tenantRepo, userRepo, issuer, logger)

	// Unread counters
	unreadEngine := unread.NewEngine(rdb, cfg.Unread.TTL(), logger)
	unreadHandler := unread.NewHandler(unreadEngine)

	// Messaging
	messageRepo := messages.NewRepository(scoped)
	dmHandler := messages.NewHandler(messageRepo, unreadEngine, hub, logger)
	channelRepo := channels.NewRepository(scoped)
	channelHandler := channels.NewHandler(channelRepo, messageRepo, unreadEngine, hub, logger)

	// Attachments
	var attachmentHandler *attachments.Handler
	if s3Client != nil {
		attachmentHandler = attachments.NewHandler(s3Client, logger)
	}

	wsValidate := func(token string) (uuid.UUID, string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", err
		}
		return claims.UserID, claims.TenantID, nil
	}

	authLimiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")

	// Tenant onboarding (public)
	api.POST("/tenants/register", tenantHandler.Register)
	api.POST("/tenants/verify", tenantHandler.Verify)

	// Platform administration (operator key)
	operator := api.Group("", middleware.OperatorKey(cfg.Server.OperatorKey))
	operator.GET("/tenants", tenantHandler.ListActive)
	operator.POST("/tenants/:id/status", tenantHandler.SetStatus)

	// Session establishment (public, rate limited)
	limited := api.Group("", authLimiter.Middleware())
	limited.POST("/tenants/sso/init", ssoHandler.Exchange)
	limited.POST("/auth/login", authHandler.Login)
	limited.POST("/auth/refresh", authHandler.Refresh)

	// Authenticated API
	session := api.Group("", middleware.Session(jwtService, logger))
	{
		session.GET("/tenants/sso/session", authHandler.Session)
		session.DELETE("/tenants/sso/logout", authHandler.Logout)

		session.GET("/users", authHandler.List)

		session.GET("/channels", channelHandler.List)
		session.POST("/channels", channelHandler.Create)
		session.POST("/channels/:id/join", channelHandler.Join)
		session.POST("/channels/:id/leave", channelHandler.Leave)
		session.GET("/channels/:id/messages", channelHandler.History)
		session.POST("/channels/:id/messages", channelHandler.Post)

		session.GET("/dm", dmHandler.List)
		session.POST("/dm", dmHandler.Open)
		session.GET("/dm/:id/messages", dmHandler.History)
		session.POST("/dm/:id/messages", dmHandler.Send)

		session.GET("/unread", unreadHandler.GetAll)
		session.GET("/unread/:kind/:conversationID", unreadHandler.Get)
		session.POST("/unread/:kind/:conversationID/read", unreadHandler.MarkAsRead)

		if attachmentHandler != nil {
			session.POST("/attachments", attachmentHandler.Upload)
			session.POST("/attachments/upload-url", attachmentHandler.UploadURL)
			session.POST("/attachments/download-url", attachmentHandler.DownloadURL)
		}
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, wsValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
