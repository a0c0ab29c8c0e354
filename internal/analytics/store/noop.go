package store

import (
	"context"
	"time"

	"github.com/serroba/admission-go/internal/analytics"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of analytics.Store that logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op analytics store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveThrottled(_ context.Context, event *analytics.ThrottledEvent) error {
	n.logger.Info("throttled event received",
		zap.String("id", event.ID),
		zap.String("endpoint", event.Endpoint),
		zap.String("key", event.Key),
		zap.Int64("limit", event.Limit),
		zap.Int64("retryAfter", event.RetryAfterSeconds),
		zap.Time("occurredAt", event.OccurredAt),
	)

	return nil
}

// Recent returns no events; nothing is stored.
func (n *Noop) Recent(context.Context, int) ([]analytics.ThrottledEvent, error) {
	return []analytics.ThrottledEvent{}, nil
}

// CountByClientIP always reports zero.
func (n *Noop) CountByClientIP(context.Context, string, time.Time) (int64, error) {
	return 0, nil
}

// Compile-time check.
var _ analytics.Query = (*Noop)(nil)
