package analytics

import (
	"context"
	"time"
)

// Store defines the interface for persisting throttle events.
type Store interface {
	SaveThrottled(ctx context.Context, event *ThrottledEvent) error
}

// Query reads stored throttle events.
type Query interface {
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]ThrottledEvent, error)
	// CountByClientIP counts a client's events since the given time.
	CountByClientIP(ctx context.Context, clientIP string, since time.Time) (int64, error)
}
