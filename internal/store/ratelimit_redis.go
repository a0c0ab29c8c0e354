package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/admission-go/internal/ratelimit"
)

const memberIDLength = 12

//go:embed sliding_window.lua
var slidingWindowSource string

var slidingWindowScript = redis.NewScript(slidingWindowSource)

// RedisStore is a sliding-window implementation of ratelimit.Store backed by
// one Redis sorted set per key. Every request, admitted or not, adds a member
// scored with its timestamp in milliseconds.
//
// Timestamps come from the Redis server clock, so app servers with skewed
// clocks still prune each other's entries consistently.
type RedisStore struct {
	client   redis.UniversalClient
	prefix   string
	memberID func() string
	now      func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the prefix prepended to every Redis key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithRedisClock replaces the Redis server clock with a local time source.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) { s.now = now }
}

// NewRedisStore creates a new Redis-backed rate limit store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) (*RedisStore, error) {
	memberID, err := nanoid.Standard(memberIDLength)
	if err != nil {
		return nil, fmt.Errorf("member id generator: %w", err)
	}

	s := &RedisStore{
		client:   client,
		prefix:   "ratelimit:",
		memberID: memberID,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Check prunes members older than the window, counts the rest, adds the
// current request and refreshes the key's TTL in one atomic script.
// Any Redis failure is reported as ratelimit.ErrBackendUnavailable.
func (s *RedisStore) Check(ctx context.Context, key string, window time.Duration, limit int64) (ratelimit.Verdict, error) {
	var clientNow int64
	if s.now != nil {
		clientNow = s.now().UnixMilli()
	}

	res, err := slidingWindowScript.Run(ctx, s.client, []string{s.prefix + key},
		window.Milliseconds(),
		s.memberID(),
		clientNow,
	).Int64Slice()
	if err != nil {
		return ratelimit.Verdict{}, fmt.Errorf("%w: %w", ratelimit.ErrBackendUnavailable, err)
	}

	if len(res) != 2 {
		return ratelimit.Verdict{}, fmt.Errorf("%w: unexpected script reply %v", ratelimit.ErrBackendUnavailable, res)
	}

	count := res[0]
	now := time.UnixMilli(res[1])

	return ratelimit.NewVerdict(count < limit, limit-count-1, limit, now.Add(window), now), nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Compile-time check.
var _ ratelimit.Store = (*RedisStore)(nil)
