package log

import (
	"context"
	"testing"

	"go.uber.org/zap/zapcore"
)

// Wrapper is a simple wrapper of a logging function.
//
// Library packages like breakerbp and retrybp take a Wrapper instead of a zap
// logger so callers can route their messages anywhere.
type Wrapper func(ctx context.Context, msg string)

// Log is the nil-safe way of calling a Wrapper.
//
// A nil Wrapper falls back to ErrorWrapper.
func (w Wrapper) Log(ctx context.Context, msg string) {
	if w == nil {
		ErrorWrapper(ctx, msg)
		return
	}
	w(ctx, msg)
}

// NopWrapper is a Wrapper implementation that does nothing.
func NopWrapper(ctx context.Context, msg string) {}

// ErrorWrapper logs msg at error level with the logger attached to ctx.
func ErrorWrapper(ctx context.Context, msg string) {
	C(ctx).Error(msg)
}

// ZapWrapper returns a Wrapper that logs at the given level with the logger
// attached to ctx.
func ZapWrapper(level Level) Wrapper {
	zl := level.ToZapLevel()
	return func(ctx context.Context, msg string) {
		logger := C(ctx)
		switch zl {
		case zapcore.DebugLevel:
			logger.Debug(msg)
		case zapcore.InfoLevel:
			logger.Info(msg)
		case zapcore.WarnLevel:
			logger.Warn(msg)
		case zapcore.ErrorLevel:
			logger.Error(msg)
		case zapcore.FatalLevel:
			logger.Fatal(msg)
		case ZapNopLevel:
		}
	}
}

// TestWrapper is a Wrapper that fails the test when called.
func TestWrapper(tb testing.TB) Wrapper {
	return func(_ context.Context, msg string) {
		tb.Errorf("logger called with msg: %q", msg)
	}
}

var (
	_ Wrapper = NopWrapper
	_ Wrapper = ErrorWrapper
)
