// Package logging builds the process logger. Log lines go to stderr so that
// rendered reports on stdout stay machine readable.
package logging

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a level name to a zap level. Unknown names yield info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Config returns the zap configuration for the given level and encoding
// ("console" or "json").
func Config(level, encoding string) zap.Config {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	if encoding == "json" {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		encoding = "console"
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return zap.Config{
		Level:             zap.NewAtomicLevelAt(ParseLevel(level)),
		Encoding:          encoding,
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		EncoderConfig:     encoderConfig,
	}
}

// Init builds the logger, installs it as the global zap and otelzap logger
// and returns a function that flushes it.
func Init(level, encoding string) (func(), error) {
	logger, err := Config(level, encoding).Build()
	if err != nil {
		return func() {}, errors.Wrap(err, "build logger")
	}
	return Install(logger), nil
}

// Install wraps logger for trace correlation and makes it global.
func Install(logger *zap.Logger) func() {
	restoreZap := zap.ReplaceGlobals(logger)
	restoreOtel := otelzap.ReplaceGlobals(otelzap.New(logger, otelzap.WithMinLevel(logger.Level())))
	return func() {
		_ = logger.Sync()
		restoreOtel()
		restoreZap()
	}
}
