package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/locolive/playback/internal/api"
	"github.com/locolive/playback/internal/config"
	"github.com/locolive/playback/internal/domain"
	"github.com/locolive/playback/internal/fcm"
	"github.com/locolive/playback/internal/metrics"
	"github.com/locolive/playback/internal/reporter"
	"github.com/locolive/playback/internal/repository"
	"github.com/locolive/playback/internal/storage"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting playback API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Type),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := initDatabase(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repo := repository.NewPostgresRepository(db, repository.Retention{
		DefaultTimer: cfg.Playback.MessageDefaultTimer,
		Grace:        cfg.Cleanup.MessageGrace,
	})
	if err := repo.Migrate(ctx); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	logger.Info("Connected to database")

	media, err := initMediaStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize media store", zap.Error(err))
	}

	// Push is optional; screenshot reports are still stored without it
	var push domain.PushSender
	fcmClient, err := fcm.NewClient(ctx, logger, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Warn("Failed to initialize Firebase client - push notifications will be disabled", zap.Error(err))
	} else {
		push = fcmClient
		logger.Info("Firebase client initialized")
	}

	m := metrics.New()

	hub := api.NewHub(logger)
	go hub.Run(ctx)

	viewService := domain.NewViewService(repo, push, hub, media, logger)
	viewService.StartCleanupWorker(ctx, clockwork.NewRealClock(), cfg.Cleanup.Interval)

	reports := reporter.New(viewService, logger,
		reporter.WithTimeout(cfg.Playback.ReportTimeout),
		reporter.WithRecorder(m),
	)

	// Initialize handlers
	storyHandler := api.NewStoryHandler(repo, media, logger)
	viewerHandler := api.NewViewerHandler(repo, media, reports, hub, m, cfg.Playback, clockwork.NewRealClock(), logger)
	healthHandler := api.NewHealthHandler(repo)

	router := api.NewRouter(storyHandler, viewerHandler, healthHandler, m.Handler(), cfg.Server.AllowedOrigins, logger)

	// WriteTimeout stays unset: viewer websockets are long lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	// Stops the hub and the cleanup worker, then lets in-flight reports land.
	cancel()
	reports.Close()

	logger.Info("Server stopped")
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.Log.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

func initDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

func initMediaStore(ctx context.Context, cfg config.StorageConfig) (storage.MediaStore, error) {
	switch cfg.Type {
	case "s3":
		return storage.NewS3Store(ctx, cfg)
	default:
		return storage.NewLocalStore(cfg.LocalPath, cfg.BaseURL)
	}
}
