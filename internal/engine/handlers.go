package engine

import (
	"context"
	"log/slog"

	"iqfeed_go/internal/domain"
)

// LogHandler writes every message to a structured logger.
type LogHandler struct {
	Logger *slog.Logger
	Level  slog.Level
}

func (h LogHandler) Name() string { return "log" }

func (h LogHandler) Handle(ctx context.Context, msg domain.Message) error {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !logger.Enabled(ctx, h.Level) {
		return nil
	}

	attrs := []slog.Attr{slog.String("kind", msg.Kind().String())}
	switch m := msg.(type) {
	case *domain.Trade:
		attrs = append(attrs,
			slog.String("symbol", m.Symbol),
			slog.String("price", m.LastPrice.String()),
			slog.Int64("size", m.LastSize),
			slog.Int64("ts", m.LastTimeUnixNano))
	case *domain.Timestamp:
		attrs = append(attrs, slog.Int64("ts", m.UnixNano))
	case *domain.ServerMessage:
		attrs = append(attrs, slog.String("text", m.Text))
	case *domain.None:
		attrs = append(attrs, slog.String("tag", m.Tag))
	}
	logger.LogAttrs(ctx, h.Level, "Feed message", attrs...)
	return nil
}

// HandlerFunc adapts a function to domain.MessageHandler
type HandlerFunc struct {
	ID string
	Fn func(ctx context.Context, msg domain.Message) error
}

func (h HandlerFunc) Name() string { return h.ID }

func (h HandlerFunc) Handle(ctx context.Context, msg domain.Message) error {
	return h.Fn(ctx, msg)
}
