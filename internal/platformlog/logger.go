// Package platformlog wraps logrus with the service's redaction boundary
// and context-propagated trace/tenant identifiers.
package platformlog

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/course-supporter/platform/internal/redaction"
)

type ctxKey string

const (
	traceIDKey ctxKey = "trace_id"
	tenantIDKey ctxKey = "tenant_id"
)

// Logger is a service-tagged structured logger.
type Logger struct {
	*logrus.Logger
	service  string
	redactor *redaction.Redactor
}

// New builds a Logger writing JSON (format="json") or text lines to out.
func New(service, level, format string, out io.Writer) *Logger {
	base := logrus.New()
	if out == nil {
		out = os.Stdout
	}
	base.SetOutput(out)

	if format == "text" {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	return &Logger{
		Logger:   base,
		service:  service,
		redactor: redaction.NewRedactor(redaction.DefaultConfig()),
	}
}

// WithContext pulls trace/tenant identifiers out of ctx and attaches them.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{"service": l.service}
	if v, ok := ctx.Value(traceIDKey).(string); ok && v != "" {
		fields["trace_id"] = v
	}
	if v, ok := ctx.Value(tenantIDKey).(string); ok && v != "" {
		fields["tenant_id"] = v
	}
	return l.Logger.WithFields(fields)
}

// WithFields redacts sensitive values before handing them to logrus.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	safe := l.redactor.RedactFields(fields)
	safe["service"] = l.service
	return l.Logger.WithFields(logrus.Fields(safe))
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func ContextWithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}
