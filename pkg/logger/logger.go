package logger

import (
	"context"
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxLogger string

const loggerKey ctxLogger = "requestLogger"

var defaultLogger = zap.NewNop().Sugar()

// Run builds the root sugared logger with the given level
// ("debug", "info", "warn", "error"). It also becomes the
// fallback for requests that carry no logger in their context.
func Run(level string) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		log.Printf("logger: unknown log level `%s`, falling back to info", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	zl, err := cfg.Build()
	if err != nil {
		log.Fatalf("logger: can't build zap logger: %v", err)
	}

	defaultLogger = zl.Sugar()
	return defaultLogger
}

// WithLogger puts a request-scoped logger into the context.
func WithLogger(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// Log returns the logger stored in ctx by the logging middleware,
// or the root logger if the context has none.
func Log(ctx context.Context) *zap.SugaredLogger {
	if l, ok := ctx.Value(loggerKey).(*zap.SugaredLogger); ok && l != nil {
		return l
	}
	return defaultLogger
}
