package aqm

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Logger is the structured logger threaded through the service. Arguments
// after msg are slog key/value pairs or slog.Attr values.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Error(msg string, kv ...any)
	SetLevel(level string)
	With(kv ...any) Logger
}

type slogLogger struct {
	base  *slog.Logger
	level *slog.LevelVar
}

// NewLogger writes to stdout. LOG_FORMAT=json switches from text to JSON lines.
func NewLogger(level string) Logger {
	return NewWriterLogger(os.Stdout, level, os.Getenv("LOG_FORMAT"))
}

// NewWriterLogger writes to w using format "json" or "text".
func NewWriterLogger(w io.Writer, level, format string) Logger {
	lv := new(slog.LevelVar)
	lv.Set(ParseLevel(level))

	opts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	}
	return &slogLogger{base: slog.New(h), level: lv}
}

func (l *slogLogger) Debug(msg string, kv ...any) { l.base.Debug(msg, kv...) }
func (l *slogLogger) Info(msg string, kv ...any)  { l.base.Info(msg, kv...) }
func (l *slogLogger) Error(msg string, kv ...any) { l.base.Error(msg, kv...) }

// SetLevel changes the threshold for this logger and every logger derived
// from it through With.
func (l *slogLogger) SetLevel(level string) { l.level.Set(ParseLevel(level)) }

func (l *slogLogger) With(kv ...any) Logger {
	return &slogLogger{base: l.base.With(kv...), level: l.level}
}

// ParseLevel maps a configured level name onto slog. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "dbg":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) SetLevel(string)      {}
func (noopLogger) With(...any) Logger   { return noopLogger{} }

func NewNoopLogger() Logger {
	return noopLogger{}
}

// NewRequestLogger logs one line per finished request, tagged with the
// request id, at info level. The request start is logged at debug.
func NewRequestLogger(logger Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = NewNoopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLog := logger.With(
				"request_id", RequestIDFrom(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			reqLog.Debug("request started", "remote_addr", r.RemoteAddr, "user_agent", r.UserAgent())

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			began := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				reqLog.Info("request completed",
					"status", status,
					"bytes", ww.BytesWritten(),
					"elapsed_ms", time.Since(began).Milliseconds(),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
