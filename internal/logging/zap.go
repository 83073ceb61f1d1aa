// README: Structured logger construction (zap) shared by server and client cores.
package logging

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface injected into services. *zap.SugaredLogger
// satisfies it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Infof(format string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnf(format string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorf(format string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatalf(format string, args ...interface{})
	Sync() error
}

// NewLogger builds a production JSON logger at the given level ("debug",
// "info", "warn", "error").
func NewLogger(logLevel string) Logger {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if len(logLevel) > 0 {
		if parsedLevel, err := zap.ParseAtomicLevel(logLevel); err != nil {
			log.Fatalf("error parsing log level %s: %v", logLevel, err)
		} else {
			level = parsedLevel
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.Level = level
	return zap.Must(cfg.Build()).Sugar()
}

// NewTestLogger builds a human-readable logger for tests.
func NewTestLogger() Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	return zap.Must(cfg.Build()).Sugar()
}
