package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/serroba/admission-go/internal/ratelimit"
)

type fakeRequest struct {
	headers    map[string]string
	path       string
	remoteAddr string
	principal  string
}

func (r fakeRequest) Header(name string) string { return r.headers[name] }
func (r fakeRequest) Path() string              { return r.path }
func (r fakeRequest) RemoteAddr() string        { return r.remoteAddr }
func (r fakeRequest) Principal() string         { return r.principal }

func fromAddr(addr string) fakeRequest {
	return fakeRequest{path: "/contact", remoteAddr: addr}
}

var errBackendDown = errors.New("connection refused")

// failingStore always reports the backend as unavailable.
type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (s *failingStore) Check(context.Context, string, time.Duration, int64) (ratelimit.Verdict, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	return ratelimit.Verdict{}, errors.Join(ratelimit.ErrBackendUnavailable, errBackendDown)
}

func (s *failingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

// recordingStore allows everything and remembers the keys it saw.
type recordingStore struct {
	mu   sync.Mutex
	keys []string
	ctxs []context.Context
}

func (s *recordingStore) Check(ctx context.Context, key string, window time.Duration, limit int64) (ratelimit.Verdict, error) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.ctxs = append(s.ctxs, ctx)
	s.mu.Unlock()

	now := time.Now()

	return ratelimit.NewVerdict(true, limit-1, limit, now.Add(window), now), nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
