package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tenacademy/onboarding-api/internal/handler"
	"github.com/tenacademy/onboarding-api/internal/middleware"
	"github.com/tenacademy/onboarding-api/internal/models"
	"github.com/tenacademy/onboarding-api/internal/service"
	"github.com/tenacademy/onboarding-api/internal/strapi"
	"github.com/tenacademy/onboarding-api/pkg/cache"
	"github.com/tenacademy/onboarding-api/pkg/config"
	"github.com/tenacademy/onboarding-api/pkg/jobs"
	"github.com/tenacademy/onboarding-api/pkg/logger"
	corsmiddleware "github.com/tenacademy/onboarding-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tenacademy/onboarding-api/pkg/middleware/requestid"
)

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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("redis connection failed", "error", err)
	}

	metrics := service.NewMetricsService()

	cms := strapi.NewProvider(cfg.CMS,
		strapi.WithLogger(logr),
		strapi.WithMetrics(metrics),
	)

	emailSvc := service.NewEmailService(cfg.SMTP, logr)

	authSvc := service.NewAuthService(
		func(runStage string) (service.IdentityResolver, error) { return cms.Get(runStage) },
		redisClient, cfg.Auth.CacheTTL, cfg.Auth.AllowedRoles, logr)

	batchSvc := service.NewBatchService(service.BatchServiceDeps{
		SagaFor: func(runStage string) (service.Onboarder, error) {
			client, err := cms.Get(runStage)
			if err != nil {
				return nil, err
			}
			return service.NewTraineeService(client, logr), nil
		},
		DirectoryFor: func(runStage string) (service.BatchResolver, error) {
			client, err := cms.Get(runStage)
			if err != nil {
				return nil, err
			}
			return service.NewBatchDirectory(client, redisClient, runStage, time.Hour, logr), nil
		},
		WebhookFor: func(batchCfg models.BatchConfig) (service.CallbackNotifier, error) {
			return service.NewWebhookService(batchCfg, cfg.Webhook, logr)
		},
		Email:   emailSvc,
		Metrics: metrics,
		Logger:  logr,
	})

	worker := service.NewWorker(batchSvc, emailSvc, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.BufferSize,
		Logger:     logr,
	}, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker.Start(rootCtx)
	defer worker.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	healthHandler := handler.NewHealthHandler(cfg.Env)
	traineeHandler := handler.NewTraineeHandler(batchSvc, worker, logr)
	webhookHandler := handler.NewWebhookHandler(logr)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group(cfg.APIPrefix)
	{
		authed := api.Group("", middleware.Authenticate(authSvc))
		{
			authed.POST("/trainee/single", traineeHandler.Single)

			// Batch uploads create CMS accounts in bulk, so they are
			// restricted to allow-listed roles like admin-single.
			admin := authed.Group("", middleware.RequireAdmin(authSvc))
			{
				admin.POST("/trainee/batch", traineeHandler.Batch)
				admin.POST("/trainee/admin-single", traineeHandler.AdminSingle)
			}
		}
		api.POST("/webhook", webhookHandler.Receive)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
