package main

import (
	"alcyxob/trainer-schedule/internal/api"
	"alcyxob/trainer-schedule/internal/cache"
	"alcyxob/trainer-schedule/internal/config"
	"alcyxob/trainer-schedule/internal/logging"
	"alcyxob/trainer-schedule/internal/occurrence"
	"alcyxob/trainer-schedule/internal/repository"
	"alcyxob/trainer-schedule/internal/repository/memory"
	"alcyxob/trainer-schedule/internal/repository/mongo"
	"alcyxob/trainer-schedule/internal/repository/postgres"
	"alcyxob/trainer-schedule/internal/service"
	"alcyxob/trainer-schedule/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// @title Trainer Schedule API
// @version 1.0
// @description Effective-dated weekly schedules, session overrides and attendance commitments.
// @contact.name API Support
// @contact.email support@example.com
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting trainer schedule server",
		slog.String("storage", cfg.Storage.Driver),
		slog.String("timezone", cfg.Schedule.Timezone),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server exiting")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Schedule.Location()
	if err != nil {
		return err
	}

	// --- Storage backend ---
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}()

	// --- View cache ---
	var views service.ViewCache = cache.NewMemoryViewCache()
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisViewCache(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		views = redisCache
		logger.Info("redis view cache enabled", slog.String("addr", cfg.Redis.Addr))
	}

	// --- Archive storage ---
	var files storage.FileStorage
	if cfg.S3.Enabled() {
		files, err = storage.NewS3Storage(ctx, cfg.S3, logger)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("S3 bucket not configured, history archives are disabled")
	}

	// --- Services ---
	now := func() time.Time { return time.Now().UTC() }
	materializer := occurrence.NewMaterializer(loc)
	scheduleService := service.NewScheduleService(store, views, logger)
	commitmentService := service.NewCommitmentService(store, views, logger)
	sessionService := service.NewSessionService(store, materializer, views, logger, now)
	archiveService := service.NewArchiveService(store, files, cfg.S3.ArchivePrefix, cfg.S3.URLExpiry, logger, now)

	// --- Gin engine ---
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestIDMiddleware(), api.RequestLogger(logger))

	if err := api.SetupRoutes(router, cfg.JWT.Secret, loc, logger,
		scheduleService, sessionService, commitmentService, archiveService); err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		logger.Warn("JWT secret is empty, every request runs as an anonymous admin")
	}

	// --- HTTP server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		client, err := mongo.ConnectDB(ctx, cfg.Database)
		if err != nil {
			return repository.Store{}, fmt.Errorf("could not connect to MongoDB: %w", err)
		}
		indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		store, err := mongo.NewStore(indexCtx, client, cfg.Database.Name, logger)
		if err != nil {
			_ = mongo.DisconnectDB(client)
			return repository.Store{}, err
		}
		logger.Info("mongodb store ready", slog.String("database", cfg.Database.Name))
		return store, nil

	case config.DriverPostgres:
		store, err := postgres.NewStore(ctx, cfg.Postgres, logger)
		if err != nil {
			return repository.Store{}, fmt.Errorf("could not open PostgreSQL: %w", err)
		}
		logger.Info("postgres store ready")
		return store, nil

	default:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore().Repositories(), nil
	}
}
