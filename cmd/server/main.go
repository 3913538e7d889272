// Package main runs the class dispatcher HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/dispatcher/config"
	"github.com/aura-webinar/dispatcher/internal/auth"
	"github.com/aura-webinar/dispatcher/internal/authz"
	"github.com/aura-webinar/dispatcher/internal/bans"
	"github.com/aura-webinar/dispatcher/internal/classes"
	"github.com/aura-webinar/dispatcher/internal/middleware"
	"github.com/aura-webinar/dispatcher/internal/provisioning"
	"github.com/aura-webinar/dispatcher/internal/recordings"
	"github.com/aura-webinar/dispatcher/internal/worker"
	"github.com/aura-webinar/dispatcher/pkg/database"
	"github.com/aura-webinar/dispatcher/pkg/queue"
	"github.com/aura-webinar/dispatcher/pkg/redis"
	"github.com/aura-webinar/dispatcher/pkg/response"
	"github.com/aura-webinar/dispatcher/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ContentBucket:        cfg.AWS.ContentBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Classes
	provisioner := provisioning.NewClient(provisioning.Config{
		ConferenceURL: cfg.Provisioning.ConferenceURL,
		EventURL:      cfg.Provisioning.EventURL,
		Token:         cfg.Provisioning.Token,
		Timeout:       cfg.Provisioning.Timeout,
	}, logger)
	classRepo := classes.NewRepository(pool, provisioner)

	// Recordings
	recordingRepo := recordings.NewRepository(pool)
	segmentCache, err := recordings.NewSegmentCache(cfg.Recordings.SegmentCacheSize)
	if err != nil {
		logger.Fatal("segment cache", zap.Error(err))
	}
	recordingHandler := recordings.NewHandler(recordingRepo, segmentCache, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	recordingWebhook := recordings.NewWebhookHandler(recordingRepo, classRepo, jobQueue, cfg.Webhook.Secret, logger)

	var content classes.ContentSigner
	if s3Client != nil {
		content = s3Client
	}
	classHandler := classes.NewHandler(classRepo, recordingRepo, content, logger)

	// Authz proxy
	authorizer := authz.NewHTTPAuthorizer(cfg.Authz.URL, cfg.Authz.Token, cfg.Authz.Timeout)
	proxy := authz.NewProxy(classRepo, authorizer, cfg.Authz.Namespace, cfg.Authz.RetryDelay)
	authzHandler := authz.NewHandler(proxy, logger)

	// Bans
	banHandler := bans.NewHandler(bans.NewLedger(pool), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics())

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	// Webhooks (no JWT; shared secret checked in handler)
	v1.POST("/webhooks/transcoding-ready", recordingWebhook.TranscodingReady)

	api := v1.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Classes
		api.POST("/classes", classHandler.Create)
		api.POST("/classes/convert", classHandler.Convert)
		api.GET("/classes/:id", classHandler.GetByID)
		api.PATCH("/classes/:id", classHandler.Update)
		api.POST("/classes/:id/recreate", classHandler.Recreate)
		api.POST("/classes/:id/close", middleware.RequireRole(auth.RoleAdmin), classHandler.Close)
		api.GET("/classes/:id/download", classHandler.Download)
		api.GET("/audiences/:audience/classes/:scope", classHandler.GetByScope)
		api.DELETE("/audiences/:audience/classes/:scope", middleware.RequireRole(auth.RoleAdmin), classHandler.RollbackScope)
		api.GET("/rooms/:room_id/class", classHandler.GetByRoom)

		// Recordings
		api.POST("/classes/:id/recordings", recordingHandler.Create)
		api.GET("/classes/:id/recordings", recordingHandler.ListByClass)
		api.PUT("/recordings/:id/segments", recordingHandler.SetSegments)
		api.PUT("/recordings/:id/adjust", recordingHandler.Adjust)
		api.DELETE("/recordings/:id", recordingHandler.Delete)

		// Authz proxy (service accounts only)
		api.POST("/authz/:audience", middleware.RequireRole(auth.RoleService), authzHandler.Authorize)

		// Bans
		api.GET("/accounts/:account/ban", banHandler.GetLastOp)
		api.POST("/accounts/:account/ban", middleware.RequireRole(auth.RoleAdmin, auth.RoleService), banHandler.Apply)
		api.GET("/accounts/:account/ban/history", banHandler.History)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (transcoded artifacts into S3)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		processor := worker.NewTranscodingProcessor(recordingRepo, s3Client, jobQueue, logger)
		go processor.Run(workerCtx)
		logger.Info("transcoding worker started")
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

	workerCancel()
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
