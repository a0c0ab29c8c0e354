package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrBackendUnavailable is returned by a Store that could not reach its backend.
var ErrBackendUnavailable = errors.New("rate limit backend unavailable")

// Store defines the interface for rate limit counting backends.
type Store interface {
	// Check records a request against key and returns the resulting verdict.
	// A denied request is a Verdict with Allowed false, never an error.
	Check(ctx context.Context, key string, window time.Duration, limit int64) (Verdict, error)
}
