package util

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewZapLogger() *zap.SugaredLogger {
	return NewZapLoggerWithLevel(os.Getenv("LOG_LEVEL"))
}

// NewZapLoggerWithLevel falls back to info when level is empty or unknown.
func NewZapLoggerWithLevel(level string) *zap.SugaredLogger {
	stderr := zapcore.AddSync(os.Stderr)

	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		if parsed, err := zapcore.ParseLevel(level); err == nil {
			lvl.SetLevel(parsed)
		}
	}

	developmentCfg := zap.NewDevelopmentEncoderConfig()
	developmentCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(developmentCfg)

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, stderr, lvl),
	)

	return zap.New(core).Sugar()
}
