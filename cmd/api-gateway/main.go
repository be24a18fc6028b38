package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/events"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Conflict validation, scoring and background optimization of school timetables
// @BasePath /api/v1
// @schemes http

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled || cfg.Events.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	validate := validator.New()
	if err := dto.RegisterValidations(validate); err != nil {
		logr.Fatal("failed to register validators", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()

	placementRepo := repository.NewPlacementRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	timeSlotRepo := repository.NewTimeSlotRepository(db)
	availabilityRepo := repository.NewTeacherAvailabilityRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	resources := service.NewResourceLoader(service.ResourceLoaderConfig{
		Schedules:    scheduleRepo,
		Classrooms:   classroomRepo,
		Teachers:     teacherRepo,
		TimeSlots:    timeSlotRepo,
		Availability: availabilityRepo,
		Cache:        cacheSvc,
		Metrics:      metricsSvc,
		Logger:       logr,
		TTL:          cfg.Cache.TTL,
	})

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		publisher = events.NewRedisPublisher(redisClient, cfg.Events.Channel, logr)
	}

	registry := service.NewRunRegistry(cfg.Optimizer.RunRetention, logr)
	registry.StartJanitor(ctx, time.Minute)

	worker := service.NewOptimizationWorker(registry, publisher, metricsSvc, cfg.Optimizer.ProgressEvery, logr)
	optimizerQueue := jobs.NewQueue("timetable-optimizer", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Optimizer.Workers,
		BufferSize: cfg.Optimizer.QueueSize,
		Logger:     logr,
	})
	optimizerQueue.Start(ctx)
	defer optimizerQueue.Stop()

	optimizationSvc := service.NewOptimizationService(
		registry,
		optimizerQueue,
		placementRepo,
		scheduleRepo,
		resources,
		db,
		publisher,
		validate,
		logr,
		service.OptimizationConfig{
			Enabled:       cfg.Optimizer.Enabled,
			MaxIterations: cfg.Optimizer.MaxIterations,
			MaxDuration:   cfg.Optimizer.MaxDuration,
			Seed:          cfg.Optimizer.Seed,
		},
	)
	timetableSvc := service.NewTimetableService(placementRepo, resources, publisher, optimizationSvc, metricsSvc, validate, logr)
	exportSvc := service.NewExportService(placementRepo, resources, logr, export.NewCSVExporter(), export.NewPDFExporter())

	readiness := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	readiness["optimizer_queue"] = func(context.Context) error {
		if optimizerQueue.Saturated() {
			return fmt.Errorf("optimizer queue full with %d pending runs", optimizerQueue.Pending())
		}
		return nil
	}
	if redisClient != nil {
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	optimizationHandler := handler.NewOptimizationHandler(optimizationSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, readiness)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", metricsHandler.Summary)

	schedules := api.Group("/schedules/:id")
	schedules.POST("/entries/validate", timetableHandler.Validate)
	schedules.GET("/entries", timetableHandler.List)
	schedules.POST("/entries", timetableHandler.Create)
	schedules.PUT("/entries/:entryId", timetableHandler.Update)
	schedules.DELETE("/entries/:entryId", timetableHandler.Delete)
	schedules.GET("/score", timetableHandler.Score)
	schedules.GET("/export", exportHandler.Export)

	schedules.POST("/optimization", optimizationHandler.Start)
	schedules.GET("/optimization", optimizationHandler.Poll)
	schedules.DELETE("/optimization", optimizationHandler.Cancel)
	schedules.POST("/optimization/apply", optimizationHandler.Apply)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
