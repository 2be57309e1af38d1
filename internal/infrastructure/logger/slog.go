package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// SlogLogger логгер на основе log/slog
type SlogLogger struct {
	logger *slog.Logger
}

// Options параметры логгера
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // text или json
	Output io.Writer // По умолчанию os.Stderr
}

// New создает логгер. Формат JSON выбирается явно или переменной GO_ENV=production.
func New(opts Options) *SlogLogger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") || os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return &SlogLogger{logger: slog.New(handler)}
}

// ParseLevel переводит имя уровня в slog.Level, по умолчанию info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With возвращает логгер с дополнительными атрибутами
func (l *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{logger: l.logger.With(args...)}
}

// Debug логирует отладочное сообщение
func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info логирует информационное сообщение
func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn логирует предупреждение
func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error логирует сообщение об ошибке
func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}
