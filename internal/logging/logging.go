// Package logging configures the process logger. Call sites throughout the
// bridge use the standard library log package; Setup redirects it into a zap
// logger so every line is emitted as a structured entry.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a configured level name onto a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}

// New builds a production zap logger at the given level.
func New(level string) (*zap.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(l)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Setup builds the logger, installs it as zap's global logger and redirects
// the standard library logger into it at info level. The returned function
// restores the previous state and flushes buffered entries.
func Setup(level, service string) (*zap.Logger, func(), error) {
	logger, err := New(level)
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("service", service))
	return logger, install(logger), nil
}

func install(logger *zap.Logger) func() {
	undoGlobals := zap.ReplaceGlobals(logger)
	undoStd := zap.RedirectStdLog(logger)
	return func() {
		undoStd()
		undoGlobals()
		_ = logger.Sync()
	}
}
