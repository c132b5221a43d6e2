package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
)

type NoopSink struct{}

func (NoopSink) Emit(context.Context, domain.AuditEvent) {}

// LogSink writes each event as a structured log record.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log.With(slog.String("component", "audit"))}
}

func (s *LogSink) Emit(ctx context.Context, event domain.AuditEvent) {
	attrs := []slog.Attr{
		slog.String("type", string(event.Type)),
		slog.Bool("success", event.Success),
		slog.Time("at", event.Timestamp),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip", event.IP))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	s.log.LogAttrs(ctx, level, "audit event", attrs...)
}

// MultiSink fans out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event domain.AuditEvent) {
	for _, s := range m {
		s.Emit(ctx, event)
	}
}

func (m MultiSink) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if f, ok := s.(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
