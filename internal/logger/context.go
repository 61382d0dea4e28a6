package logger

import (
	"context"
	"log/slog"
)

type contextKey string

// Поля, которые FromContext переносит из context в каждую запись
const (
	requestIDKey   contextKey = "request_id"
	userIDKey      contextKey = "user_id"
	referenceIDKey contextKey = "reference_id"
)

var contextFields = []contextKey{requestIDKey, userIDKey, referenceIDKey}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// WithReferenceID привязывает reference_id платежа ко всем логам проверки
func WithReferenceID(ctx context.Context, referenceID string) context.Context {
	return context.WithValue(ctx, referenceIDKey, referenceID)
}

// FromContext возвращает логгер с request_id, user_id и reference_id из ctx
func FromContext(ctx context.Context) *slog.Logger {
	l := current()
	if ctx == nil {
		return l
	}

	var fields []any
	for _, key := range contextFields {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, string(key), v)
		}
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

func CtxDebug(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}

func CtxInfo(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Info(msg, args...)
}

func CtxWarn(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Warn(msg, args...)
}

func CtxError(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Error(msg, args...)
}

// CtxWithError - CtxError с полем error
func CtxWithError(ctx context.Context, msg string, err error, args ...any) {
	FromContext(ctx).Error(msg, append([]any{"error", err.Error()}, args...)...)
}
