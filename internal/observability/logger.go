package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFieldRequestID is the field name for request ID.
	LogFieldRequestID = "request_id"
	// LogFieldOperation is the field name for the service operation.
	LogFieldOperation = "operation"
	// LogFieldSignID is the field name for the analysis ID of a sign.
	LogFieldSignID = "sign_id"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldTextLen is the field name for the length of sign text.
	LogFieldTextLen = "text_length"
	// LogFieldRuleCount is the field name for the number of extracted rules.
	LogFieldRuleCount = "rule_count"
	// LogFieldCacheHit is the field name for whether extraction came from cache.
	LogFieldCacheHit = "cache_hit"
	// LogFieldErrorCode is the field name for error code.
	LogFieldErrorCode = "error_code"
)

// RequestContext carries request-scoped logging fields for one service call.
type RequestContext struct {
	RequestID string
	Operation string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewRequestContext creates a request context with a generated request ID.
func NewRequestContext(logger *slog.Logger, operation string) *RequestContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestContext{
		RequestID: uuid.New().String(),
		Operation: operation,
		StartTime: time.Now(),
		Logger:    logger,
	}
}

// WithFields returns a logger carrying the request fields and attrs.
func (r *RequestContext) WithFields(attrs ...slog.Attr) *slog.Logger {
	args := make([]any, 0, len(attrs)+2)
	for _, attr := range r.attrs(attrs...) {
		args = append(args, attr)
	}
	return r.Logger.With(args...)
}

// Info logs an info message.
func (r *RequestContext) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	r.Logger.LogAttrs(ctx, slog.LevelInfo, msg, r.attrs(attrs...)...)
}

// Debug logs a debug message.
func (r *RequestContext) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	r.Logger.LogAttrs(ctx, slog.LevelDebug, msg, r.attrs(attrs...)...)
}

// Warn logs a warning message.
func (r *RequestContext) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	r.Logger.LogAttrs(ctx, slog.LevelWarn, msg, r.attrs(attrs...)...)
}

// Error logs an error message with the error.
func (r *RequestContext) Error(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("error", err.Error()))
	r.Logger.LogAttrs(ctx, slog.LevelError, msg, r.attrs(attrs...)...)
}

// Duration returns the elapsed time since the request started.
func (r *RequestContext) Duration() time.Duration {
	return time.Since(r.StartTime)
}

// DurationAttr is the elapsed time as a log attribute.
func (r *RequestContext) DurationAttr() slog.Attr {
	return slog.Int64(LogFieldDuration, r.Duration().Milliseconds())
}

func (r *RequestContext) attrs(extra ...slog.Attr) []slog.Attr {
	return append([]slog.Attr{
		slog.String(LogFieldRequestID, r.RequestID),
		slog.String(LogFieldOperation, r.Operation),
	}, extra...)
}

type ctxKey struct{}

// WithRequestContext adds the request context to the context.
func WithRequestContext(ctx context.Context, reqCtx *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, reqCtx)
}

// FromContext extracts the request context from the context.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	reqCtx, ok := ctx.Value(ctxKey{}).(*RequestContext)
	return reqCtx, ok
}

// NewLogger builds the process logger. Format is "json" or "text"; unknown
// levels fall back to info.
func NewLogger(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel reads a level name such as "debug" or "WARN".
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
