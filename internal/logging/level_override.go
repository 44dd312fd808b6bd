package logging

import (
	"context"
	"log/slog"
)

// levelOverrideHandler raises the minimum level for one logger while the
// wrapped handler keeps the global level.
type levelOverrideHandler struct {
	next  slog.Handler
	level slog.Level
}

func (h *levelOverrideHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.next.Enabled(ctx, level)
}

func (h *levelOverrideHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *levelOverrideHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *levelOverrideHandler) WithGroup(name string) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithGroup(name), level: h.level}
}

// WithLevelOverride returns a logger that enforces the provided minimum level.
// An existing override is replaced rather than stacked, so a workflow logger
// can be more verbose than the global level as long as the underlying handler
// was built with the most verbose level in use.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	handler := logger.Handler()
	if inner, ok := handler.(*levelOverrideHandler); ok {
		handler = inner.next
	}
	return slog.New(&levelOverrideHandler{next: handler, level: level})
}
