// Package log is a thin facade over zap so call sites stay compact:
// log.Info("message", "key", value). Reconfiguration is safe at any time.
package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = newLogger("info", "console")
)

// Configure replaces the global logger. Level is one of
// debug, info, warn, error; format is console or json.
func Configure(level, format string) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(level, format)
}

func newLogger(level, format string) *zap.SugaredLogger {
	var lvl zapcore.Level
	switch level {
	case "trace", "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if format != "json" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs at debug level with alternating key/value pairs.
func Debug(msg string, keysAndValues ...interface{}) {
	get().Debugw(msg, keysAndValues...)
}

// Info logs at info level with alternating key/value pairs.
func Info(msg string, keysAndValues ...interface{}) {
	get().Infow(msg, keysAndValues...)
}

// Warn logs at warn level with alternating key/value pairs.
func Warn(msg string, keysAndValues ...interface{}) {
	get().Warnw(msg, keysAndValues...)
}

// Error logs at error level with alternating key/value pairs.
func Error(msg string, keysAndValues ...interface{}) {
	get().Errorw(msg, keysAndValues...)
}
