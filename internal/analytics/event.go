package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/serroba/admission-go/internal/ratelimit"
)

// TopicThrottled is the topic rejected requests are published on.
const TopicThrottled = "ratelimit.throttled"

// ThrottledEvent records a request rejected by the rate limiter.
type ThrottledEvent struct {
	ID                string    `json:"id"`
	Endpoint          string    `json:"endpoint"`
	Path              string    `json:"path"`
	Key               string    `json:"key"`
	ClientIP          string    `json:"clientIp"`
	Limit             int64     `json:"limit"`
	WindowMillis      int64     `json:"windowMillis"`
	RetryAfterSeconds int64     `json:"retryAfterSeconds"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// NewThrottledEvent builds the event for a denial.
func NewThrottledEvent(denial ratelimit.Denial, at time.Time) *ThrottledEvent {
	return &ThrottledEvent{
		ID:                uuid.NewString(),
		Endpoint:          denial.Endpoint,
		Path:              denial.Path,
		Key:               denial.Key,
		ClientIP:          denial.ClientIP,
		Limit:             denial.Policy.Max,
		WindowMillis:      denial.Policy.Window.Milliseconds(),
		RetryAfterSeconds: ratelimit.RetryAfterSeconds(denial.Verdict),
		OccurredAt:        at,
	}
}
