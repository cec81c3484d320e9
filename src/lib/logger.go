package lib

import (
	"eventix/src/config"
	"os"

	"github.com/covalenthq/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Local runs get a colored console
// encoder; everything else writes JSON, optionally teed to a rotated file.
func NewLogger(cfg *config.Config) *zap.Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)
	if cfg.IsLocal() {
		level.SetLevel(zapcore.DebugLevel)
		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(consoleCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)}
	if cfg.LogFile != "" {
		rotated := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    500,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), rotated, level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()).With(zap.String("env", cfg.Env))
}
