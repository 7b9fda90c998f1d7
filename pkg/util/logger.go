package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"khoomi-api-io/taxonomy/config"
)

var logger = zap.NewNop()

// NewLogger builds the process logger: console output in development, JSON
// everywhere else.
func NewLogger(appEnv string, cfg config.LoggerConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if appEnv == "dev" || appEnv == "development" {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Encoding != "" {
		zcfg.Encoding = cfg.Encoding
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	zcfg.DisableCaller = cfg.DisableCaller
	zcfg.DisableStacktrace = cfg.DisableStacktrace
	return zcfg.Build()
}

// SetLogger replaces the logger behind LogError, LogInfo and LogWarning.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

func Logger() *zap.Logger {
	return logger
}

// LogError logs an error with context
func LogError(message string, err error, fields ...zap.Field) {
	if err != nil {
		logger.Error(message, append(fields, zap.Error(err))...)
	}
}

// LogInfo logs an informational message
func LogInfo(message string, fields ...zap.Field) {
	logger.Info(message, fields...)
}

// LogWarning logs a warning message
func LogWarning(message string, fields ...zap.Field) {
	logger.Warn(message, fields...)
}
