// Package logging provides categorized zap loggers for the objection CLI and
// server. Console output goes through a shared core configured once at
// startup; file output, when enabled, goes to objection.log in Options.FileDir
// and is rotated by size.
package logging

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Category names a subsystem. Each category gets a named child logger so log
// lines can be filtered per concern.
type Category string

const (
	CategoryCollect  Category = "collect"  // type collection and validation
	CategoryGenerate Category = "generate" // binding generation
	CategoryBundle   Category = "bundle"   // module loading and bundling
	CategorySession  Category = "session"  // session core
	CategoryServer   Category = "server"   // http/websocket surface
)

// Options controls logger construction.
type Options struct {
	// Verbose lowers the console level to debug.
	Verbose bool

	// FileDir, when non-empty, enables rotated file logging in this
	// directory (one file, shared by all categories).
	FileDir string
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = map[Category]*zap.Logger{}
)

// Initialize builds the shared logging core. Safe to call more than once; the
// latest call wins. Returns the root logger for callers that want it directly.
func Initialize(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), level),
	}

	if opts.FileDir != "" {
		if err := os.MkdirAll(opts.FileDir, 0o755); err != nil {
			return nil, err
		}

		fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(opts.FileDir, "objection.log"),
			MaxSize:    20, // megabytes
			MaxBackups: 3,
		})
		cores = append(cores, zapcore.NewCore(fileEncoder, sink, zapcore.DebugLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))

	mu.Lock()
	root = logger
	loggers = map[Category]*zap.Logger{}
	mu.Unlock()

	return logger, nil
}

// Get returns the logger for a category.
func Get(category Category) *zap.Logger {
	mu.RLock()
	logger, ok := loggers[category]
	mu.RUnlock()
	if ok {
		return logger
	}

	mu.Lock()
	defer mu.Unlock()
	if logger, ok = loggers[category]; ok {
		return logger
	}
	logger = root.Named(string(category))
	loggers[category] = logger
	return logger
}

// Sugar returns the sugared logger for a category. Most call sites prefer the
// printf-style API.
func Sugar(category Category) *zap.SugaredLogger {
	return Get(category).Sugar()
}

// Sync flushes all buffered log entries. Called once on process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
