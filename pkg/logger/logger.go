package logger

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production-friendly structured JSON logger.
// No business logic should depend on logging implementation details.
func New(appEnv string) *zap.Logger {
	return NewWithSink(appEnv, zapcore.Lock(os.Stdout))
}

// NewWithSink is New writing to ws instead of stdout.
func NewWithSink(appEnv string, ws zapcore.WriteSyncer) *zap.Logger {
	level := zapcore.InfoLevel
	if appEnv == "local" || appEnv == "dev" {
		level = zapcore.DebugLevel
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), ws, level)
	return zap.New(core, zap.AddCaller()).With(zap.String("env", appEnv))
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to zap.L().
func From(ctx context.Context) *zap.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.L()
}

// ShutdownFlush syncs buffered entries, giving up after timeout.
func ShutdownFlush(ctx context.Context, l *zap.Logger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Sync() }()

	select {
	case err := <-done:
		// Syncing a terminal or pipe fails on some platforms; nothing was lost.
		if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
