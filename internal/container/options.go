package container

import "time"

// Options is the process configuration, resolved once at start. An empty
// RedisAddr selects local-only rate limiting for the whole process lifetime.
type Options struct {
	Port                 int    `default:"8888"                      help:"Port to listen on"                                            short:"p"`
	RedisAddr            string `default:""                          help:"Redis address for shared rate limiting, empty for local-only" short:"r"`
	RedisTimeoutMs       int    `default:"250"                       help:"Redis dial, read and write timeout in milliseconds"`
	DatabaseURL          string `default:""                          help:"PostgreSQL URL for throttle event storage"`
	LogFormat            string `default:"json"                      help:"Log format: json or console"`
	SweepIntervalSeconds int    `default:"300"                       help:"Seconds between local rate limit store sweeps"`
	PublishThrottled     bool   `default:"true"                      help:"Publish throttle events to Redis streams"`
	ConsumerGroup        string `default:"admission-throttle-events" help:"Redis streams consumer group for throttle events"`
	StreamMaxlen         int64  `default:"100000"                    help:"Approximate maximum length of the throttle event stream"`
	TrustedProxies       string `default:""                          help:"Comma-separated proxy addresses or CIDRs allowed to set X-Authenticated-User"`
}

// RedisTimeout returns the configured Redis timeout.
func (o *Options) RedisTimeout() time.Duration {
	return time.Duration(o.RedisTimeoutMs) * time.Millisecond
}

// SweepInterval returns the configured local store sweep interval.
func (o *Options) SweepInterval() time.Duration {
	return time.Duration(o.SweepIntervalSeconds) * time.Second
}

// SharedBackend reports whether a shared rate limit backend is configured.
func (o *Options) SharedBackend() bool {
	return o.RedisAddr != ""
}
