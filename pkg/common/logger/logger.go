package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// std is the process-wide sugared logger. It starts at info level so packages
// can log before Initialize is called (tests, CLI helpers).
var std atomic.Pointer[zap.SugaredLogger]

func init() {
	std.Store(build(zapcore.InfoLevel))
}

// ParseLevel maps a level name (e.g., "debug", "info", "warn", "error") to a zap level.
// Unknown names fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Initialize sets up the global logger level based on input string.
// Debug level uses the console encoder with caller info; other levels log JSON.
func Initialize(level string) {
	old := std.Swap(build(ParseLevel(level)))
	if old != nil {
		_ = old.Sync()
	}
}

func build(lvl zapcore.Level) *zap.SugaredLogger {
	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Sync flushes buffered entries. Call before exit.
func Sync() { _ = std.Load().Sync() }

// Package-level helpers
func Debug(format string, v ...interface{}) { std.Load().Debugf(format, v...) }
func Info(format string, v ...interface{})  { std.Load().Infof(format, v...) }
func Warn(format string, v ...interface{})  { std.Load().Warnf(format, v...) }
func Error(format string, v ...interface{}) { std.Load().Errorf(format, v...) }
