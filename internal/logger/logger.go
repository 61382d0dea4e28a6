package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

var log *slog.Logger

// Init настраивает глобальный логгер по окружению:
// development - текст с debug, test - только warn и выше, иначе JSON
func Init(env string) {
	InitWithWriter(env, os.Stdout)
}

// InitWithWriter - то же, что Init, но с произвольным приёмником
func InitWithWriter(env string, w io.Writer) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo, AddSource: true}

	var handler slog.Handler
	switch strings.ToLower(env) {
	case "development", "dev", "local":
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	case "test":
		opts.Level = slog.LevelWarn
		opts.AddSource = false
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	log = slog.New(handler).With("service", "docvault")
	slog.SetDefault(log)
}

func current() *slog.Logger {
	if log == nil {
		Init("development")
	}
	return log
}

func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// Fatal пишет ошибку старта и завершает процесс
func Fatal(msg string, args ...any) {
	current().Error(msg, args...)
	os.Exit(1)
}

// GatewayLog - наблюдатель вызовов MoMo: сбои на warn, успех на debug
func GatewayLog(operation string, duration time.Duration, err error) {
	fields := []any{"gateway", "mtn_momo", "operation", operation, "duration_ms", duration.Milliseconds()}
	if err != nil {
		current().Warn("Gateway call failed", append(fields, "error", err.Error())...)
		return
	}
	current().Debug("Gateway call", fields...)
}

// WorkerLog - итог одного прогона задачи PaymentWorker
func WorkerLog(job string, processed int, err error) {
	fields := []any{"worker", "payment_worker", "job", job, "processed", processed}
	if err != nil {
		current().Error("Worker job failed", append(fields, "error", err.Error())...)
		return
	}
	current().Info("Worker job completed", fields...)
}
