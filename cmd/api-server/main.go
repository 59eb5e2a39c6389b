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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-docs-api/api/swagger"
	"github.com/noah-isme/school-docs-api/internal/calendar"
	"github.com/noah-isme/school-docs-api/internal/handler"
	"github.com/noah-isme/school-docs-api/internal/middleware"
	"github.com/noah-isme/school-docs-api/internal/repository"
	"github.com/noah-isme/school-docs-api/internal/service"
	"github.com/noah-isme/school-docs-api/internal/verification"
	"github.com/noah-isme/school-docs-api/pkg/cache"
	"github.com/noah-isme/school-docs-api/pkg/config"
	"github.com/noah-isme/school-docs-api/pkg/database"
	"github.com/noah-isme/school-docs-api/pkg/jobs"
	"github.com/noah-isme/school-docs-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-docs-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-docs-api/pkg/middleware/requestid"
	"github.com/noah-isme/school-docs-api/pkg/storage"
)

// @title School Document Request API
// @version 1.0.0
// @description Request lifecycle engine for school document issuance
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	// The calendar survives without a cache; redis is optional.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, calendar cache disabled", zap.Error(err))
		redisClient = nil
	}

	attachmentStore, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Fatal("failed to init attachment storage", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()
	engine := calendar.NewEngine()
	issuer := verification.NewIssuer(cfg.Verification.Secret, cfg.Verification.QRSize)

	requestRepo := repository.NewRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationSvc := service.NewNotificationService(notificationRepo, metricsSvc, logr)
	dispatcher := service.NewEventDispatcher(
		[]service.EventHandler{notificationSvc},
		jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
		},
		logr,
	)

	requestSvc := service.NewRequestService(requestRepo, engine, issuer, dispatcher, metricsSvc, nil, logr,
		service.RequestServiceConfig{WriteRetries: cfg.Requests.WriteRetries})
	calendarSvc := service.NewCalendarService(engine, redisClient, cfg.Calendar.CacheTTL, logr)
	attachmentSvc := service.NewAttachmentService(
		attachmentStore,
		storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL),
		cfg.Attachments.MaxFileSizeBytes,
		cfg.Attachments.AllowedMIMEs,
		logr,
	)

	requestHandler := handler.NewRequestHandler(requestSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)
	attachmentHandler := handler.NewAttachmentHandler(attachmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	secret := cfg.JWT.Secret
	api := r.Group(cfg.APIPrefix)
	{
		requests := api.Group("/requests")
		{
			requests.POST("", middleware.OptionalJWT(secret), requestHandler.Create)
			requests.GET("", middleware.JWT(secret), requestHandler.List)
			requests.GET("/export", middleware.JWT(secret), middleware.RequireStaff(), requestHandler.ExportCSV)
			requests.GET("/:id", middleware.JWT(secret), requestHandler.Get)
			requests.GET("/:id/claim-slip", middleware.OptionalJWT(secret), requestHandler.ClaimSlip)
			requests.POST("/:id/verify", middleware.JWT(secret), middleware.RequireStaff(), requestHandler.Verify)
			requests.PATCH("/:id/schedule", middleware.JWT(secret), middleware.RequireStaff(), requestHandler.Reschedule)
			requests.GET("/:id/documents/:documentId/token.png", middleware.OptionalJWT(secret), requestHandler.TokenPNG)
			requests.POST("/:id/documents/:documentId/status", middleware.JWT(secret), middleware.RequireStaff(), requestHandler.Transition)
			requests.POST("/:id/documents/:documentId/force-status", middleware.JWT(secret), middleware.RequireSuperSteward(), requestHandler.ForceStatus)
		}

		notifications := api.Group("/notifications", middleware.JWT(secret))
		{
			notifications.GET("", notificationHandler.List)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
		}

		calendarGroup := api.Group("/calendar")
		{
			calendarGroup.GET("/holidays/:year", calendarHandler.Holidays)
			calendarGroup.GET("/next-business-day", calendarHandler.NextBusinessDay)
		}

		attachments := api.Group("/attachments")
		{
			attachments.POST("", middleware.OptionalJWT(secret), attachmentHandler.Upload)
			attachments.GET("/download", attachmentHandler.Download)
		}
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(rootCtx)
	defer dispatcher.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
