package setup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robalyx/starboard/internal/database"
	"github.com/robalyx/starboard/internal/database/migrations"
	"github.com/robalyx/starboard/internal/database/service"
	"github.com/robalyx/starboard/internal/redis"
	"github.com/robalyx/starboard/internal/setup/config"
	"github.com/robalyx/starboard/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config         *config.Config     // Application configuration
	Logger         *zap.Logger        // Main application logger
	DBLogger       *zap.Logger        // Database-specific logger
	DB             database.Client    // Database connection pool
	RedisManager   *redis.Manager     // Redis connection manager
	LogManager     *telemetry.Manager // Log management system
	RequestTimeout time.Duration      // Timeout for chat HTTP requests
	pprofServer    *pprofServer       // Debug HTTP server for pprof
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
// Workers pass their type for log identification.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string, workerType ...string) (*App, error) {
	cfg, _, err := config.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}

	var wt string
	if len(workerType) > 0 {
		wt = workerType[0]
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug, &cfg.Common.Sentry, wt)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	// Redis manager provides connection pools for the message cache and worker status
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	// Initialize database with migration check
	db, err := checkAndRunMigrations(ctx, &cfg.Common.PostgreSQL, ServiceOptions(cfg), dbLogger)
	if err != nil {
		return nil, err
	}

	// Start pprof server if enabled
	var pprofSrv *pprofServer

	if cfg.Common.Debug.EnablePprof {
		srv, err := startPprofServer(ctx, cfg.Common.Debug.PprofPort, logger)
		if err != nil {
			logger.Error("Failed to start pprof server", zap.Error(err))
		} else {
			pprofSrv = srv

			logger.Warn("pprof debugging endpoint enabled - this should not be used in production!")
		}
	}

	return &App{
		Config:         cfg,
		Logger:         logger,
		DBLogger:       dbLogger.Named("database"),
		DB:             db,
		RedisManager:   redisManager,
		LogManager:     logManager,
		RequestTimeout: serviceType.GetRequestTimeout(cfg),
		pprofServer:    pprofSrv,
	}, nil
}

// ServiceOptions derives the database service options from the config.
func ServiceOptions(cfg *config.Config) database.ServiceOptions {
	return database.ServiceOptions{
		Limits: service.PremiumLimits{
			Starboards:       cfg.Common.Premium.FreeStarboards,
			AutostarChannels: cfg.Common.Premium.FreeAutostarChannels,
		},
		MonthCost: cfg.Common.Premium.MonthCost,
	}
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	if s.pprofServer != nil {
		if err := s.pprofServer.srv.Shutdown(ctx); err != nil {
			s.Logger.Error("Failed to shutdown pprof server", zap.Error(err))
		}

		s.pprofServer.listener.Close()
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections last as other components might need it during cleanup
	s.RedisManager.Close()

	// Flush error reports and close log files
	s.LogManager.Stop()
}

// checkAndRunMigrations runs database migrations if needed.
func checkAndRunMigrations(
	ctx context.Context, cfg *config.PostgreSQL, opts database.ServiceOptions, dbLogger *zap.Logger,
) (database.Client, error) {
	tempDB, err := database.NewConnection(ctx, cfg, opts, dbLogger, false)
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(tempDB.DB(), migrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		tempDB.Close()
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		tempDB.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	unapplied := ms.Unapplied()
	if len(unapplied) == 0 {
		return tempDB, nil
	}

	log.Println("Database migrations are pending. Would you like to run them now? (y/N)")

	var response string

	_, _ = fmt.Scanln(&response)

	if response != "y" && response != "Y" {
		log.Fatalf("Closing program due to incomplete migrations")
	}

	tempDB.Close()

	return database.NewConnection(ctx, cfg, opts, dbLogger, true)
}
