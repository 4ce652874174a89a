// Package logging provides structured logging on logrus with request-scoped
// fields carried through context.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	// TraceIDKey holds the request trace ID.
	TraceIDKey contextKey = "trace_id"
	// UserIDKey holds the authenticated caller identity.
	UserIDKey contextKey = "user_id"
	// RoleKey holds the caller role claim.
	RoleKey contextKey = "role"
)

// Logger wraps a logrus logger tagged with a service name.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a logger for service. level is a logrus level name and format
// is "json" or "text".
func New(service, level, format string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339Nano})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	return &Logger{Logger: l, service: service}
}

// NewDiscard returns a logger that writes nothing. Tests use it.
func NewDiscard(service string) *Logger {
	l := New(service, "panic", "json")
	l.SetOutput(io.Discard)
	return l
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default returns the process-wide logger.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLogger = New("presale", "info", "json")
	})
	return defaultLogger
}

// Service returns the service name the logger was created with.
func (l *Logger) Service() string {
	return l.service
}

// WithContext returns an entry carrying the service name and any trace, user
// or role values found in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if ctx == nil {
		return entry
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if userID := GetUserID(ctx); userID != "" {
		entry = entry.WithField("user_id", userID)
	}
	if role := GetRole(ctx); role != "" {
		entry = entry.WithField("role", role)
	}
	return entry
}

// WithFields returns an entry with the service name and fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithField("service", l.service).WithFields(logrus.Fields(fields))
}

// WithField returns an entry with the service name and one field.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField("service", l.service).WithField(key, value)
}

// WithError returns an entry with the service name and err.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithField("service", l.service).WithError(err)
}

// LogRequest logs one served HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
	switch {
	case status >= 500:
		entry.Error("HTTP request")
	case status >= 400:
		entry.Warn("HTTP request")
	default:
		entry.Info("HTTP request")
	}
}

// LogSecurityEvent logs an authentication or abuse related event.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).
		WithField("security_event", event).
		WithFields(logrus.Fields(fields)).
		Warn("Security event")
}

// NewTraceID returns a fresh trace ID.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID stores traceID in ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace ID stored in ctx.
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

// WithUserID stores the caller identity in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID returns the caller identity stored in ctx.
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

// GetRole returns the caller role stored in ctx.
func GetRole(ctx context.Context) string {
	v, _ := ctx.Value(RoleKey).(string)
	return v
}
