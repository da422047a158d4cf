package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stockwise/internal/config"
)

// New builds the service logger. Unknown levels fall back to info; the
// console format uses zap's development encoder for local runs.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.InitialFields = map[string]interface{}{"service": "stockwise"}
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	return zc.Build()
}
