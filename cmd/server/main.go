package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studypulse/arena-service/internal/ai"
	"github.com/studypulse/arena-service/internal/cache"
	"github.com/studypulse/arena-service/internal/config"
	"github.com/studypulse/arena-service/internal/handlers"
	"github.com/studypulse/arena-service/internal/realtime"
	"github.com/studypulse/arena-service/internal/repositories/postgres"
	"github.com/studypulse/arena-service/internal/services"
	"github.com/studypulse/arena-service/internal/utils"
	"github.com/studypulse/arena-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Environment)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	repo := postgres.NewRepository(db)
	if err := postgres.AutoMigrate(db); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	hub := realtime.NewRedisHub(redisClient, logger)
	defer hub.Close()

	leaderboardCache := cache.NewRedisLeaderboardCache(redisClient)

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	aiClient := ai.NewClient(cfg.AIGatewayURL, cfg.AIAPIKey, logger)
	validator := utils.NewValidator()

	arenaService := services.NewArenaService(repo, aiClient, hub, publisher, leaderboardCache, logger, validator)
	duelService := services.NewDuelService(repo, aiClient, hub, publisher, logger, validator)
	examService := services.NewExamService(repo, aiClient, hub, publisher, logger, validator)
	exportService := services.NewExportService(repo, arenaService, logger)

	defer arenaService.Shutdown()
	defer duelService.Shutdown()
	defer examService.Shutdown()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.RequestLogger(logger))

	auth := handlers.NewAuthenticator(cfg)
	handlerManager := handlers.NewHandlerManager(arenaService, duelService, examService, exportService, auth, logger)
	handlerManager.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Arena service listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}
