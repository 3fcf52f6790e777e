package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init installs the process-wide zap logger. The level comes from LOG_LEVEL;
// by default only errors are shown so the terminal dashboard stays readable.
func Init() *zap.Logger {
	level := zapcore.ErrorLevel

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = ParseLevel(l)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if level == zapcore.DebugLevel {
		cfg.Development = true
	}

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	zap.ReplaceGlobals(logger)
	return logger
}

// ParseLevel maps the LOG_LEVEL vocabulary onto zap levels.
func ParseLevel(l string) zapcore.Level {
	switch l {
	case "dev", "development", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// Named returns a child of the global logger for a component.
func Named(component string) *zap.Logger {
	return zap.L().Named(component)
}
