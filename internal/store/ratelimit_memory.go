package store

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/serroba/admission-go/internal/ratelimit"
)

const (
	defaultShards        = 64
	defaultSweepInterval = 5 * time.Minute
)

// counterRecord is the fixed-window state of one key.
type counterRecord struct {
	count           int64
	windowStartedAt time.Time
	windowResetAt   time.Time
}

type shard struct {
	mu      sync.Mutex
	records map[string]*counterRecord
}

// LocalStore is an in-process fixed-window implementation of ratelimit.Store.
//
// Keys are spread over independently locked shards, so checks on one key are
// serialized while unrelated keys proceed in parallel. A caller can burst to
// twice the limit across a window boundary.
type LocalStore struct {
	shards        []*shard
	now           func() time.Time
	sweepInterval time.Duration

	sweeperMu   sync.Mutex
	stopSweeper context.CancelFunc
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) LocalOption {
	return func(s *LocalStore) { s.now = now }
}

// WithSweepInterval sets how often expired records are deleted.
func WithSweepInterval(d time.Duration) LocalOption {
	return func(s *LocalStore) { s.sweepInterval = d }
}

// WithShards sets the number of lock shards.
func WithShards(n int) LocalOption {
	return func(s *LocalStore) {
		if n > 0 {
			s.shards = newShards(n)
		}
	}
}

// NewLocalStore creates a new in-memory rate limit store.
func NewLocalStore(opts ...LocalOption) *LocalStore {
	s := &LocalStore{
		shards:        newShards(defaultShards),
		now:           time.Now,
		sweepInterval: defaultSweepInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{records: make(map[string]*counterRecord)}
	}

	return shards
}

func (s *LocalStore) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Check counts a request for key in the current fixed window.
func (s *LocalStore) Check(_ context.Context, key string, window time.Duration, limit int64) (ratelimit.Verdict, error) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.now()

	rec, ok := sh.records[key]
	if !ok || now.After(rec.windowResetAt) {
		rec = &counterRecord{
			count:           1,
			windowStartedAt: now,
			windowResetAt:   now.Add(window),
		}
		sh.records[key] = rec

		return ratelimit.NewVerdict(true, limit-1, limit, rec.windowResetAt, now), nil
	}

	if rec.count >= limit {
		return ratelimit.NewVerdict(false, 0, limit, rec.windowResetAt, now), nil
	}

	rec.count++

	return ratelimit.NewVerdict(true, limit-rec.count, limit, rec.windowResetAt, now), nil
}

// Sweep deletes every record whose window has ended and returns how many
// were removed. Live counts are never modified.
func (s *LocalStore) Sweep() int {
	removed := 0

	for _, sh := range s.shards {
		sh.mu.Lock()

		now := s.now()

		for key, rec := range sh.records {
			if now.After(rec.windowResetAt) {
				delete(sh.records, key)

				removed++
			}
		}

		sh.mu.Unlock()
	}

	localRecords.Set(float64(s.Len()))

	return removed
}

// Len returns the number of records currently held.
func (s *LocalStore) Len() int {
	total := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.records)
		sh.mu.Unlock()
	}

	return total
}

// StartSweeper runs Sweep every sweep interval until ctx is cancelled or
// Shutdown is called. It does nothing if a sweeper is already running.
func (s *LocalStore) StartSweeper(ctx context.Context) {
	if s.sweepInterval <= 0 {
		return
	}

	s.sweeperMu.Lock()
	defer s.sweeperMu.Unlock()

	if s.stopSweeper != nil {
		return
	}

	ctx, s.stopSweeper = context.WithCancel(ctx)
	ticker := time.NewTicker(s.sweepInterval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Shutdown stops the sweeper, if running. The sweeper may be started again
// afterwards.
func (s *LocalStore) Shutdown() error {
	s.sweeperMu.Lock()
	defer s.sweeperMu.Unlock()

	if s.stopSweeper != nil {
		s.stopSweeper()
		s.stopSweeper = nil
	}

	return nil
}

// Compile-time check.
var _ ratelimit.Store = (*LocalStore)(nil)
