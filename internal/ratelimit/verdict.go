package ratelimit

import "time"

// Verdict is the outcome of a single rate limit check.
type Verdict struct {
	Allowed   bool
	Remaining int64
	Limit     int64
	ResetAt   time.Time
	// RetryAfter is the time left until ResetAt when the verdict was computed.
	RetryAfter time.Duration
}

// NewVerdict builds a verdict, clamping remaining and retry-after at zero.
func NewVerdict(allowed bool, remaining, limit int64, resetAt, now time.Time) Verdict {
	remaining = max(remaining, 0)

	return Verdict{
		Allowed:    allowed,
		Remaining:  remaining,
		Limit:      limit,
		ResetAt:    resetAt,
		RetryAfter: max(resetAt.Sub(now), 0),
	}
}
