package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Limiter decides whether a request may proceed. It prefers the shared store
// and falls back to the local store whenever the shared store fails.
//
// There is no circuit breaker: every call tries the shared store first, so a
// flapping backend costs a failed round trip per request but never blocks
// traffic. Requests for the same key served by different stores are not
// ordered relative to each other.
type Limiter struct {
	shared Store
	local  Store
	logger *zap.Logger
	now    func() time.Time
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithSharedStore sets the store consulted before the local store.
// A nil store keeps the limiter in local-only mode.
func WithSharedStore(store Store) LimiterOption {
	return func(l *Limiter) { l.shared = store }
}

// WithLimiterClock overrides the clock used for synthesised verdicts.
func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a limiter backed by local and, optionally, a shared store.
func NewLimiter(local Store, logger *zap.Logger, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		local:  local,
		logger: logger,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Shared reports whether a shared store is configured.
func (l *Limiter) Shared() bool {
	return l.shared != nil
}

// Decide resolves the caller's identifier and checks it against policy.
func (l *Limiter) Decide(ctx context.Context, req Request, policy Policy, extract KeyFunc) Verdict {
	return l.DecideKey(ctx, BuildKey(policy, Resolve(req, extract)), policy)
}

// DecideKey checks an already built key against policy.
//
// Cancellation of ctx is not propagated to the stores: abandoning a check
// halfway would leave the counter under-incremented.
func (l *Limiter) DecideKey(ctx context.Context, key string, policy Policy) Verdict {
	ctx = context.WithoutCancel(ctx)

	if l.shared != nil {
		verdict, err := l.check(ctx, l.shared, backendShared, key, policy)
		if err == nil {
			return verdict
		}

		fallbacksTotal.Inc()
		l.logger.Warn("shared rate limit backend failed, using local backend",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	verdict, err := l.check(ctx, l.local, backendLocal, key, policy)
	if err != nil {
		l.logger.Error("local rate limit backend failed, denying request",
			zap.String("key", key),
			zap.Error(err),
		)

		now := l.now()

		return NewVerdict(false, 0, policy.Max, now.Add(policy.Window), now)
	}

	return verdict
}

func (l *Limiter) check(ctx context.Context, store Store, backend, key string, policy Policy) (Verdict, error) {
	start := time.Now()
	verdict, err := store.Check(ctx, key, policy.Window, policy.Max)

	decisionDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())

	if err != nil {
		decisionsTotal.WithLabelValues(backend, resultError).Inc()

		return Verdict{}, err
	}

	decisionsTotal.WithLabelValues(backend, resultLabel(verdict)).Inc()

	return verdict, nil
}
