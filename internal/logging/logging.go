// Package logging provides categorized zap loggers for the normlex kernel.
// Each subsystem logs under a named category so operators can grep one
// concern (store, prover, bulk, ...) out of a combined stream.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names used across the kernel.
const (
	CategoryStore     = "store"
	CategoryConflict  = "conflict"
	CategoryKernel    = "kernel"
	CategoryProver    = "prover"
	CategoryChecker   = "checker"
	CategoryBulk      = "bulk"
	CategoryEmbedding = "embedding"
	CategoryConfig    = "config"
)

var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Init builds the process-wide root logger. debug switches to the
// development config with debug-level output. Safe to call once at startup;
// before Init every Named logger is a no-op.
func Init(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	mu.Lock()
	root = logger
	mu.Unlock()
	return logger, nil
}

// SetRoot replaces the root logger. Intended for tests and embedding
// applications that bring their own zap setup.
func SetRoot(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	root = logger
	mu.Unlock()
}

// Named returns a child logger for the given category.
func Named(category string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(category)
}

// Nop returns a discard logger for tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Sync flushes the root logger. Errors are ignored; stderr sinks commonly
// return ENOTTY on sync.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
