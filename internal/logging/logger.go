package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultLogDir  = ".webtriage/logs"
	defaultLogFile = "webtriage.log"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Initialize sets up the global logger, writing structured entries to a file
// under the project directory and warnings (or everything, when verbose) to
// stderr. Safe to call more than once; the last call wins.
func Initialize(projectDir string, verbose bool) error {
	logDir := filepath.Join(projectDir, defaultLogDir)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, defaultLogFile)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	fileLevel := zapcore.InfoLevel
	consoleLevel := zapcore.WarnLevel
	if verbose {
		fileLevel = zapcore.DebugLevel
		consoleLevel = zapcore.DebugLevel
	}

	fileEnc := zap.NewProductionEncoderConfig()
	fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(f), fileLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.AddSync(os.Stderr), consoleLevel),
	)

	mu.Lock()
	logger = zap.New(core)
	mu.Unlock()
	return nil
}

// L returns the global logger. Before Initialize it is a no-op logger, so
// library code can log unconditionally.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Sync flushes buffered log entries. Called once on process exit.
func Sync() {
	_ = L().Sync()
}
