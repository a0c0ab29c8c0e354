package ratelimit

import (
	"math"
	"strconv"
)

// Throttle response header names.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Headers formats a verdict as throttle response headers. Retry-After is only
// present on denial.
func Headers(v Verdict) map[string]string {
	headers := map[string]string{
		HeaderLimit:     strconv.FormatInt(v.Limit, 10),
		HeaderRemaining: strconv.FormatInt(v.Remaining, 10),
		HeaderReset:     strconv.FormatInt(v.ResetAt.Unix(), 10),
	}

	if !v.Allowed {
		headers[HeaderRetryAfter] = strconv.FormatInt(RetryAfterSeconds(v), 10)
	}

	return headers
}

// RetryAfterSeconds rounds the verdict's retry delay up to whole seconds.
func RetryAfterSeconds(v Verdict) int64 {
	if v.RetryAfter <= 0 {
		return 0
	}

	return int64(math.Ceil(v.RetryAfter.Seconds()))
}
