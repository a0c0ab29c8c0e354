package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/serroba/admission-go/internal/analytics"
	"github.com/serroba/admission-go/internal/handlers"
	"github.com/serroba/admission-go/internal/middleware"
	"github.com/serroba/admission-go/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvents struct {
	events    []analytics.ThrottledEvent
	count     int64
	err       error
	lastLimit int
	lastIP    string
	lastSince time.Time
}

func (f *fakeEvents) Recent(_ context.Context, limit int) ([]analytics.ThrottledEvent, error) {
	f.lastLimit = limit

	return f.events, f.err
}

func (f *fakeEvents) CountByClientIP(_ context.Context, clientIP string, since time.Time) (int64, error) {
	f.lastIP = clientIP
	f.lastSince = since

	return f.count, f.err
}

var operator = map[string]string{middleware.PrincipalHeader: "ops"}

func get(router http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestAdminRequiresVerifiedPrincipal(t *testing.T) {
	paths := []string{
		"/admin/ratelimit/policies",
		"/admin/ratelimit/events",
		"/admin/ratelimit/events/203.0.113.5/count",
	}

	t.Run("anonymous", func(t *testing.T) {
		router := newTestRouter(t)

		for _, path := range paths {
			assert.Equal(t, http.StatusUnauthorized, get(router, path, nil).Code, path)
		}
	})

	t.Run("header from untrusted peer", func(t *testing.T) {
		router := newTestRouterWith(t, "10.0.0.0/8", &fakeEvents{})

		for _, path := range paths {
			assert.Equal(t, http.StatusUnauthorized, get(router, path, operator).Code, path)
		}
	})
}

func TestAdminListPolicies(t *testing.T) {
	router := newTestRouter(t)

	rec := get(router, "/admin/ratelimit/policies", operator)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get(ratelimit.HeaderLimit))

	var body struct {
		Backend  string                `json:"backend"`
		Default  handlers.PolicyView   `json:"default"`
		Policies []handlers.PolicyView `json:"policies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "local", body.Backend)
	assert.Equal(t, int64(60), body.Default.Max)
	assert.Equal(t, time.Minute.Milliseconds(), body.Default.WindowMillis)

	byName := map[string]handlers.PolicyView{}
	for _, p := range body.Policies {
		byName[p.Name] = p
	}

	require.Contains(t, byName, ratelimit.EndpointContact)
	assert.Equal(t, int64(5), byName[ratelimit.EndpointContact].Max)
	assert.Equal(t, (15 * time.Minute).Milliseconds(), byName[ratelimit.EndpointContact].WindowMillis)
}

func TestAdminRecentEvents(t *testing.T) {
	t.Run("returns stored events", func(t *testing.T) {
		events := &fakeEvents{events: []analytics.ThrottledEvent{
			{ID: "evt-1", Endpoint: ratelimit.EndpointContact, ClientIP: "203.0.113.5", Limit: 5},
		}}
		router := newTestRouterWith(t, trustedPeer, events)

		rec := get(router, "/admin/ratelimit/events?limit=10", operator)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 10, events.lastLimit)

		var body handlers.RecentEventsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body.Body))
		require.Len(t, body.Body.Events, 1)
		assert.Equal(t, "evt-1", body.Body.Events[0].ID)
	})

	t.Run("defaults limit and never returns null", func(t *testing.T) {
		events := &fakeEvents{}
		router := newTestRouterWith(t, trustedPeer, events)

		rec := get(router, "/admin/ratelimit/events", operator)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 50, events.lastLimit)
		assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
	})

	t.Run("rejects out of range limit", func(t *testing.T) {
		router := newTestRouter(t)

		assert.Equal(t, http.StatusUnprocessableEntity, get(router, "/admin/ratelimit/events?limit=0", operator).Code)
		assert.Equal(t, http.StatusUnprocessableEntity, get(router, "/admin/ratelimit/events?limit=501", operator).Code)
	})

	t.Run("store failure", func(t *testing.T) {
		router := newTestRouterWith(t, trustedPeer, &fakeEvents{err: errors.New("connection refused")})

		rec := get(router, "/admin/ratelimit/events", operator)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestAdminCountEvents(t *testing.T) {
	events := &fakeEvents{count: 7}
	router := newTestRouterWith(t, trustedPeer, events)
	before := time.Now().UTC()

	rec := get(router, "/admin/ratelimit/events/203.0.113.5/count?sinceMinutes=30", operator)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "203.0.113.5", events.lastIP)
	assert.WithinDuration(t, before.Add(-30*time.Minute), events.lastSince, 5*time.Second)

	var body handlers.CountEventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body.Body))
	assert.Equal(t, int64(7), body.Body.Count)
	assert.Equal(t, "203.0.113.5", body.Body.ClientIP)
}
