package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger at the given level. Development loggers use the
// console encoder; production loggers emit JSON.
func New(level string, development bool) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// Must is New for process entry points, falling back to a development logger.
func Must(level string, development bool) *zap.Logger {
	logger, err := New(level, development)
	if err != nil {
		logger, _ = zap.NewDevelopment()
		logger.Warn("Invalid log level, using development defaults", zap.String("level", level), zap.Error(err))
	}
	return logger
}
