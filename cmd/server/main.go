// Package main runs the Zoom webhook relay HTTP server with graceful shutdown.
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

	"github.com/aura-webinar/relay/config"
	"github.com/aura-webinar/relay/internal/auth"
	"github.com/aura-webinar/relay/internal/enrichment"
	"github.com/aura-webinar/relay/internal/events"
	"github.com/aura-webinar/relay/internal/forwarder"
	"github.com/aura-webinar/relay/internal/middleware"
	"github.com/aura-webinar/relay/internal/proxy"
	"github.com/aura-webinar/relay/internal/webhook"
	"github.com/aura-webinar/relay/internal/worker"
	"github.com/aura-webinar/relay/internal/zoom"
	"github.com/aura-webinar/relay/pkg/redis"
	"github.com/aura-webinar/relay/pkg/response"
	"github.com/aura-webinar/relay/pkg/storage"
)

func main() {
	logger, level := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		logger.Warn("invalid LOG_LEVEL, keeping info", zap.String("level", cfg.Server.LogLevel))
	}

	ctx := context.Background()
	httpClient := &http.Client{}

	// Zoom
	tokens := zoom.NewTokenSource(cfg.Zoom, httpClient, logger)
	zoomClient := zoom.NewClient(cfg.Zoom, httpClient, logger)

	// Downstream delivery, optionally signed
	var signer forwarder.TokenSigner
	if cfg.Downstream.JWTSecret != "" {
		signer = auth.NewJWTService(cfg.Downstream.JWTSecret, time.Duration(cfg.Downstream.JWTTTLMinutes)*time.Minute)
		logger.Info("downstream deliveries signed with JWT")
	}
	fwd := forwarder.New(httpClient, signer, cfg.Downstream.Timeout(), logger)

	pipeline := enrichment.New(enrichment.Config{
		EndedURL:        cfg.Downstream.EndedURL,
		StartedURL:      cfg.Downstream.StartTarget(),
		DeliveryTimeout: cfg.Downstream.Timeout(),
		StartTimeout:    cfg.Downstream.StartTimeout(),
	}, tokens, zoomClient, fwd, logger)

	// Optional sinks
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis publisher disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			pipeline.SetPublisher(events.NewRedisPublisher(rdb.Client, cfg.Redis.Channel, logger))
		}
	}
	if cfg.AWS.ArchiveBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ArchiveBucket:   cfg.AWS.ArchiveBucket,
			Endpoint:        cfg.AWS.S3Endpoint,
		}, logger)
		if err != nil {
			logger.Warn("s3 archive disabled", zap.Error(err))
		} else {
			pipeline.SetArchiver(s3Client)
		}
	}

	// Background tasks
	tasks := worker.NewTasks(logger)
	tasksCtx, tasksCancel := context.WithCancel(context.Background())
	defer tasksCancel()
	go tasks.Run(tasksCtx)

	webhookHandler := webhook.NewHandler(webhook.NewVerifier(cfg.Zoom.WebhookSecretToken), pipeline, tasks, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Zoom webhooks (signature checked in handler)
	router.POST("/webhook", webhookHandler.Handle)

	// Zoom management proxy (JWT required)
	if cfg.Proxy.JWTSecret != "" {
		jwtService := auth.NewJWTService(cfg.Proxy.JWTSecret, 0)
		api := router.Group("/api")
		api.Use(middleware.JWT(jwtService))
		proxy.NewHandler(tokens, zoomClient, logger).Register(api, proxy.WebinarRoutes)
		logger.Info("zoom proxy enabled", zap.Int("routes", len(proxy.WebinarRoutes)))
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := tasks.Wait(shutdownCtx); err != nil {
		logger.Warn("background tasks still running at shutdown", zap.Error(err))
	}
	tasksCancel()
	logger.Info("server stopped")
}

func newLogger() (*zap.Logger, zap.AtomicLevel) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger, config.Level
}
