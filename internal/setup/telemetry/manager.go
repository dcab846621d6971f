package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/robalyx/starboard/internal/setup/config"
	"github.com/robalyx/starboard/internal/setup/telemetry/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceType represents the type of service being initialized.
type ServiceType int

const (
	ServiceBot ServiceType = iota
	ServiceWorker
)

// GetRequestTimeout returns the request timeout for the given service type.
func (s ServiceType) GetRequestTimeout(cfg *config.Config) time.Duration {
	timeout := 15000
	if s == ServiceBot && cfg.Bot.RequestTimeout > 0 {
		timeout = cfg.Bot.RequestTimeout
	}

	return time.Duration(timeout) * time.Millisecond
}

// Manager handles the creation and management of log files and directories.
// Each program run logs into its own timestamped session directory.
type Manager struct {
	instanceID        string        // Unique identifier for this program instance
	componentName     string        // Component identifier for this instance
	currentSessionDir string        // Path to the current session's log directory
	logDir            string        // Base directory for all logs
	debug             *config.Debug // Logging level and retention settings
	sentryEnabled     bool          // Whether errors are forwarded to Sentry
	rotators          []*logger.Rotator
	mu                sync.Mutex
}

// NewManager creates a new Manager instance and initializes Sentry when a DSN is configured.
func NewManager(
	serviceType ServiceType, logDir string, debugCfg *config.Debug, sentryCfg *config.Sentry, workerType string,
) *Manager {
	instanceID := uuid.New().String()

	var componentName string

	switch serviceType {
	case ServiceBot:
		componentName = "bot"
	case ServiceWorker:
		componentName = "worker"
		if workerType != "" {
			componentName = workerType + "_worker"
		}
	default:
		componentName = "unknown"
	}

	manager := &Manager{
		instanceID:    instanceID,
		componentName: componentName,
		logDir:        logDir,
		debug:         debugCfg,
	}

	if sentryCfg.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         sentryCfg.DSN,
			Environment: sentryCfg.Environment,
			ServerName:  componentName + "-" + instanceID[:8],
		})
		if err == nil {
			manager.sentryEnabled = true
		} else {
			fmt.Fprintf(os.Stderr, "failed to initialize sentry: %v\n", err)
		}
	}

	return manager
}

// Stop flushes pending error reports and closes the log files.
func (lm *Manager) Stop() {
	if lm.sentryEnabled {
		sentry.Flush(5 * time.Second)
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	for _, r := range lm.rotators {
		_ = r.Sync()
		_ = r.Close()
	}
	lm.rotators = nil
}

// GetLoggers initializes the main and database loggers.
// Returns separate loggers for main application and database logging.
func (lm *Manager) GetLoggers() (*zap.Logger, *zap.Logger, error) {
	if err := lm.setupLogDirectories(); err != nil {
		return nil, nil, err
	}

	mainLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, "main.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	dbLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, "database.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database logger: %w", err)
	}

	return mainLogger.With(zap.String("component", lm.componentName)), dbLogger, nil
}

// GetWorkerLogger creates a logger for background workers.
// Each worker gets its own log file in the session directory.
func (lm *Manager) GetWorkerLogger(name string) *zap.Logger {
	sessionDir := lm.getOrCreateSessionDir()

	l, err := lm.initLogger(filepath.Join(sessionDir, name+".log"))
	if err != nil {
		return zap.NewNop()
	}

	return l
}

// GetInstanceID returns the unique instance identifier for this program run.
func (lm *Manager) GetInstanceID() string {
	return lm.instanceID
}

// setupLogDirectories creates and manages the log directory structure.
// It ensures the base directory exists, rotates old logs, and creates a new session directory.
func (lm *Manager) setupLogDirectories() error {
	if err := os.MkdirAll(lm.logDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	if err := lm.rotateLogSessions(); err != nil {
		return fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	lm.currentSessionDir = filepath.Join(lm.logDir, time.Now().Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(lm.currentSessionDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	return nil
}

// getOrCreateSessionDir returns the current session directory or creates a new one.
// Falls back to base log directory if creation fails.
func (lm *Manager) getOrCreateSessionDir() string {
	if lm.currentSessionDir != "" {
		return lm.currentSessionDir
	}

	sessionDir := filepath.Join(lm.logDir, time.Now().Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(sessionDir, os.ModePerm); err != nil {
		return lm.logDir
	}

	lm.currentSessionDir = sessionDir

	return sessionDir
}

// initLogger creates a zap logger writing to a line-capped file, teed with
// stdout in development mode and with Sentry when enabled.
func (lm *Manager) initLogger(path string) (*zap.Logger, error) {
	levelName := lm.debug.LogLevel
	if lm.debug.Development {
		levelName = "debug"
	}
	if levelName == "" {
		levelName = "info"
	}

	zapLevel, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	rotator, err := logger.OpenRotator(path, lm.debug.MaxLogLines)
	if err != nil {
		return nil, err
	}

	lm.mu.Lock()
	lm.rotators = append(lm.rotators, rotator)
	lm.mu.Unlock()

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(rotator), zapLevel),
	}

	if lm.debug.Development {
		consoleConfig := zap.NewDevelopmentEncoderConfig()
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleConfig), zapcore.Lock(os.Stdout), zapLevel,
		))
	}

	if lm.sentryEnabled {
		cores = append(cores, NewSentryCore(zapcore.ErrorLevel))
	}

	return zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// rotateLogSessions maintains the log directory by removing old sessions.
// Keeps only the most recent sessions based on maxLogsToKeep.
func (lm *Manager) rotateLogSessions() error {
	sessions, err := filepath.Glob(filepath.Join(lm.logDir, "*"))
	if err != nil {
		return err
	}

	keep := lm.debug.MaxLogsToKeep
	if keep <= 0 || len(sessions) <= keep {
		return nil
	}

	// Sort sessions by modification time (oldest first)
	sort.Slice(sessions, func(i, j int) bool {
		iInfo, _ := os.Stat(sessions[i])
		jInfo, _ := os.Stat(sessions[j])

		return iInfo.ModTime().Before(jInfo.ModTime())
	})

	for _, session := range sessions[:len(sessions)-keep] {
		if err := os.RemoveAll(session); err != nil {
			return err
		}
	}

	return nil
}
