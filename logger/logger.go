package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.SugaredLogger so packages depend on one logging type.
type Logger struct {
	*zap.SugaredLogger
}

// New builds a production JSON logger at the given level
// ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func New(level string) (*Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(component)}
}

// With returns a child logger with structured context attached.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...)}
}
