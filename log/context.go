package log

import (
	"context"

	"go.uber.org/zap"
)

type contextKeyType struct{}

var contextKey contextKeyType

// logger keys for attached data.
const (
	requestIDKey = "request_id"
)

// AttachArgs are used to create loggers to be attached to context object with
// pre-filled key-value pairs.
//
// Zero value fields are ignored.
type AttachArgs struct {
	RequestID string

	AdditionalPairs map[string]interface{}
}

// Attach attaches a logger with data extracted from args into the context
// object.
func Attach(ctx context.Context, args AttachArgs) context.Context {
	kv := make([]interface{}, 0, len(args.AdditionalPairs)*2+2)
	if args.RequestID != "" {
		kv = append(kv, requestIDKey, args.RequestID)
	}
	for k, v := range args.AdditionalPairs {
		kv = append(kv, k, v)
	}

	logger := C(ctx)
	if len(kv) > 0 {
		logger = logger.With(kv...)
	}
	return context.WithValue(ctx, contextKey, logger)
}

// C is short for Context.
//
// It extracts the logger attached to the context object, and falls back to the
// global logger if none is found:
//
//	log.C(ctx).Errorw("Backend call failed", "err", err)
//
// The return value is never nil.
func C(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(contextKey).(*zap.SugaredLogger); ok && logger != nil {
		return logger
	}
	return globalLogger
}
