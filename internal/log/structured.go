package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// StructuredLogger emits the request and failure events shared by the HTTP
// layer, with consistent field names.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// RequestStarted is logged at debug; the completion line carries everything
// needed in production.
func (sl *StructuredLogger) RequestStarted(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.logger.Logger.DebugContext(ctx, "Request started", fields.ToSlice()...)
}

// RequestCompleted logs at info below 400, warn for client errors and error
// for server errors.
func (sl *StructuredLogger) RequestCompleted(ctx context.Context, r *http.Request, status int, elapsed time.Duration, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(status, elapsed, status < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)
	sl.logger.Logger.Log(ctx, level, "Request completed", fields.ToSlice()...)
}

// AuthRejected records a refused credential, token or blocked account.
func (sl *StructuredLogger) AuthRejected(ctx context.Context, operation, reason, clientIP string) {
	fields := NewFields().
		WithOperation(operation).
		WithClientIP(clientIP).
		WithErrorType(ErrorTypeAuth).
		WithComponent(ComponentAuth)
	fields["reason"] = reason
	sl.logger.Logger.WarnContext(ctx, "Authentication rejected", fields.ToSlice()...)
}

// Failed logs err at error level. fields may be nil.
func (sl *StructuredLogger) Failed(ctx context.Context, msg string, err error, component, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation).WithComponent(component)
	sl.logger.Logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
