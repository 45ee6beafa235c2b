// Package logger - Process-wide zap logger used by the pipeline and the CLI.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu sync.RWMutex
	log   *zap.Logger
)

// Mode selects the encoder of the process logger.
type Mode string

const (
	// ModeProduction writes JSON lines at info level.
	ModeProduction Mode = "production"
	// ModeDevelopment writes human-readable console lines at debug level.
	ModeDevelopment Mode = "development"
	// ModeNop discards everything.
	ModeNop Mode = "nop"
)

// New builds a logger for the given mode without installing it.
//
// Arguments:
//   - mode: One of ModeProduction, ModeDevelopment or ModeNop. Unknown modes fall back to
//     production.
//
// Returns:
//   - *zap.Logger: The new logger.
//   - error: If zap fails to build the configured sinks.
func New(mode Mode) (*zap.Logger, error) {
	var cfg zap.Config
	switch mode {
	case ModeNop:
		return zap.NewNop(), nil
	case ModeDevelopment:
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Init builds a logger for mode and installs it as the process logger and as zap's global.
func Init(mode Mode) error {
	l, err := New(mode)
	if err != nil {
		return err
	}
	set(l)
	return nil
}

func set(l *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	zap.ReplaceGlobals(l)
	if log != nil {
		_ = log.Sync()
	}
	log = l
}

// Log returns the process logger, or zap's global (a no-op until replaced) before Init.
func Log() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		return log
	}
	return zap.L()
}

// Sync flushes buffered entries.
func Sync() {
	logMu.RLock()
	defer logMu.RUnlock()
	if log != nil {
		_ = log.Sync()
	}
}
