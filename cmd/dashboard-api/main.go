package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/stem-dashboard-api/internal/handler"
	"github.com/noah-isme/stem-dashboard-api/internal/repository"
	"github.com/noah-isme/stem-dashboard-api/internal/server"
	"github.com/noah-isme/stem-dashboard-api/internal/service"
	"github.com/noah-isme/stem-dashboard-api/pkg/cache"
	"github.com/noah-isme/stem-dashboard-api/pkg/config"
	"github.com/noah-isme/stem-dashboard-api/pkg/database"
	"github.com/noah-isme/stem-dashboard-api/pkg/logger"
)

// @title STEM Dashboard API
// @version 1.0.0
// @description Student records ingestion and dashboard statistics
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("apply migrations", zap.Error(err))
		}
		version, _ := database.MigrationVersion(ctx, db)
		logr.Info("migrations applied", zap.Int64("version", version))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("connect redis", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, config.SummaryConfig{
		Enabled:  cfg.Summary.Enabled && redisClient != nil,
		CacheTTL: cfg.Summary.CacheTTL,
	}, logr)

	ingestion := server.NewIngestionService(db, cacheSvc, metrics, cfg.Ingestion, logr)
	summary := service.NewSummaryService(repository.NewSummaryRepository(db), cacheSvc, metrics, cfg.Summary.CacheTTL, logr)

	deps := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		deps["redis"] = redisPinger{redisClient}
	}

	router := server.NewRouter(server.Deps{
		Config:  cfg,
		Logger:  logr,
		Metrics: metrics,
		Tokens:  service.NewTokenService(cfg.JWT),
		Uploads: handler.NewUploadHandler(ingestion, cfg.Ingestion.MaxUploadBytes),
		Summary: handler.NewSummaryHandler(summary),
		Health:  handler.NewMetricsHandler(metrics, deps),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
