package infra

import (
	"context"
	"log/slog"
)

// LogPublisher stands in for a broker when none is configured. Messages are
// logged and dropped.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, pattern string, data any) error {
	slog.InfoContext(ctx, "no broker configured, dropping message", "pattern", pattern)
	return nil
}
