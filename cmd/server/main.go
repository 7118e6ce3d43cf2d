package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rehabworks/rehab-engine/internal/api"
	"rehabworks/rehab-engine/internal/config"
	"rehabworks/rehab-engine/internal/logger"
	"rehabworks/rehab-engine/internal/notification"
	"rehabworks/rehab-engine/internal/repository/mongo"
	"rehabworks/rehab-engine/internal/service"
	"rehabworks/rehab-engine/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger.Init()
	logger.Log.Info("Starting Rehab Engine Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.WithError(err).Fatal("Could not load config")
	}
	logger.Log.Info("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Log.WithError(err).Fatal("Could not connect to MongoDB")
	}
	defer func() {
		logger.Log.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Log.WithError(err).Error("Failed to disconnect MongoDB")
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Log.Info("Database connection established.")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongo.EnsurePlanIndexes(ctx, appDB.Collection("rehab_plans"))
		mongo.EnsureCompletionIndexes(ctx, appDB.Collection("daily_completions"))
		mongo.EnsureCheckInIndexes(ctx, appDB.Collection("check_ins"))
		mongo.EnsureAlertIndexes(ctx, appDB.Collection("alerts"))
		logger.Log.Info("Index creation process completed.")
	}()

	// --- Stats Cache ---
	var statsCache *redis.Client
	if cfg.Redis.Enabled {
		statsCache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := statsCache.Ping(context.Background()).Err(); err != nil {
			logger.Log.WithError(err).Warn("Redis unreachable, stats cache disabled")
			statsCache = nil
		} else {
			defer statsCache.Close()
			logger.Log.Info("Redis stats cache enabled.")
		}
	}

	// --- Notification Sink ---
	var sink notification.Sink
	if cfg.Kafka.Enabled {
		kafkaSink := notification.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaSink.Close()
		sink = kafkaSink
		logger.Log.WithField("topic", cfg.Kafka.Topic).Info("Kafka notification sink enabled.")
	} else {
		sink = notification.NewLogSink()
	}

	// --- Media Storage ---
	var mediaStorage storage.MediaStorage
	if cfg.S3.BucketName != "" {
		mediaStorage, err = storage.NewS3Storage(cfg.S3)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to initialize S3 storage")
		}
		logger.Log.Info("S3 media storage initialized.")
	}

	// --- Initialize Repositories ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	planRepo := mongo.NewMongoPlanRepository(appDB)
	completionRepo := mongo.NewMongoCompletionRepository(appDB)
	checkInRepo := mongo.NewMongoCheckInRepository(appDB)
	alertRepo := mongo.NewMongoAlertRepository(appDB)
	caseStore := mongo.NewMongoCaseStore(appDB)

	// --- Initialize Services ---
	// One locker is shared by the plan and completion services so that plan
	// mutations and completion submissions serialize per plan.
	locks := service.NewPlanLocker()

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	syncService := service.NewCaseSyncService(caseStore, alertRepo, cfg.Engine.SyncVerifyDelay)
	progressService := service.NewProgressService(planRepo, completionRepo, checkInRepo, alertRepo, statsCache, mediaStorage)
	alertService := service.NewAlertService(alertRepo, sink, service.AlertThresholds{
		SkippedDays:       cfg.Engine.SkippedAlertThreshold,
		MilestoneInterval: cfg.Engine.MilestoneInterval,
		HighPainLevel:     cfg.Engine.HighPainLevel,
	})
	planService := service.NewPlanService(planRepo, completionRepo, alertRepo, syncService, sink, locks)
	completionService := service.NewCompletionService(planRepo, completionRepo, checkInRepo, progressService, alertService, locks)

	// --- Initialize Gin Engine ---
	// gin.SetMode(gin.ReleaseMode) // Uncomment for production
	router := gin.Default()

	api.SetupRoutes(router, cfg.JWT.Secret, authService, planService, completionService, progressService, alertService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Log.WithField("address", cfg.Server.Address).Info("Server starting")

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("ListenAndServe error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Log.Info("Server exiting.")
}
