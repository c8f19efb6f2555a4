// Package main runs the reelpost HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reelpost/backend/config"
	"github.com/reelpost/backend/internal/auth"
	"github.com/reelpost/backend/internal/concepts"
	"github.com/reelpost/backend/internal/middleware"
	"github.com/reelpost/backend/internal/worker"
	"github.com/reelpost/backend/pkg/database"
	"github.com/reelpost/backend/pkg/queue"
	"github.com/reelpost/backend/pkg/redis"
	"github.com/reelpost/backend/pkg/response"
	"github.com/reelpost/backend/pkg/storage"
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
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			MediaBucket:     cfg.AWS.MediaBucket,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Concepts
	conceptRepo := concepts.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	var publisher *concepts.Publisher
	if s3Client != nil {
		publisher = concepts.NewPublisher(
			s3Client,
			conceptRepo,
			jobQueue,
			time.Duration(cfg.Publish.StepTimeoutSec)*time.Second,
			logger,
		)
	}
	progressStore := concepts.NewProgressStore(rdb.Client, time.Duration(cfg.Publish.ProgressTTLMinutes)*time.Minute)
	viewRecorder := concepts.NewViewRecorder(conceptRepo, logger)
	conceptHandler := concepts.NewHandler(conceptRepo, publisher, progressStore, viewRecorder, cfg.Publish.MaxSfxFiles, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public browsing and playback
	router.GET("/concepts", conceptHandler.List)
	router.GET("/concepts/:id", conceptHandler.GetByID)
	router.POST("/concepts/:id/view", conceptHandler.View)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/concepts", conceptHandler.Publish)
		api.GET("/publishes/:id/progress", conceptHandler.Progress)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (orphaned media object cleanup)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		cleanupProcessor := worker.NewCleanupProcessor(s3Client, jobQueue, logger)
		go cleanupProcessor.Run(workerCtx)
		logger.Info("cleanup worker started")
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
