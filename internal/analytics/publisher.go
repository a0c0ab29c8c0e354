package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/serroba/admission-go/internal/messaging"
	"github.com/serroba/admission-go/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	defaultQueueSize      = 1024
	defaultPublishTimeout = time.Second
)

// ErrReportQueueFull is returned when a denial is dropped because the
// publisher cannot keep up.
var ErrReportQueueFull = errors.New("throttle event queue full")

var droppedEvents = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "admission",
		Subsystem: "events",
		Name:      "throttled_dropped_total",
		Help:      "Throttle events dropped because the publish queue was full",
	},
)

// Reporter publishes a ThrottledEvent for every denial. Events are queued and
// published in the background, so a slow or unavailable broker never delays
// the denied request. Each publish is bounded by the publish timeout.
type Reporter struct {
	publish messaging.Publish[ThrottledEvent]
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan *ThrottledEvent
	done   chan struct{}
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithQueueSize sets how many events may wait for publishing.
func WithQueueSize(n int) ReporterOption {
	return func(r *Reporter) {
		if n > 0 {
			r.queue = make(chan *ThrottledEvent, n)
		}
	}
}

// WithPublishTimeout bounds a single publish.
func WithPublishTimeout(d time.Duration) ReporterOption {
	return func(r *Reporter) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewReporter creates a denial reporter over a typed publish function and
// starts its publishing goroutine. Call Shutdown to drain it.
func NewReporter(publish messaging.Publish[ThrottledEvent], logger *zap.Logger, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		publish: publish,
		logger:  logger,
		now:     time.Now,
		timeout: defaultPublishTimeout,
		queue:   make(chan *ThrottledEvent, defaultQueueSize),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	go r.run()

	return r
}

// ReportDenial implements ratelimit.DenyReporter. It never blocks.
func (r *Reporter) ReportDenial(_ context.Context, denial ratelimit.Denial) error {
	event := NewThrottledEvent(denial, r.now().UTC())

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrReportQueueFull
	}

	select {
	case r.queue <- event:
		return nil
	default:
		droppedEvents.Inc()

		return ErrReportQueueFull
	}
}

func (r *Reporter) run() {
	defer close(r.done)

	for event := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.publish(ctx, event)

		cancel()

		if err != nil {
			r.logger.Error("failed to publish throttle event",
				zap.String("id", event.ID),
				zap.String("key", event.Key),
				zap.Error(err),
			)
		}
	}
}

// Shutdown stops accepting events and waits for queued ones to be published.
func (r *Reporter) Shutdown() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	<-r.done

	return nil
}

// Compile-time check.
var _ ratelimit.DenyReporter = (*Reporter)(nil)
