package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/admission-go/internal/analytics"
	"github.com/serroba/admission-go/internal/health"
	"github.com/serroba/admission-go/internal/middleware"
	"github.com/serroba/admission-go/internal/ratelimit"
)

// AdminHandler exposes the policy table and recorded throttle events to
// authenticated operators.
type AdminHandler struct {
	admission *ratelimit.Admission
	events    analytics.Query
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(admission *ratelimit.Admission, events analytics.Query) *AdminHandler {
	return &AdminHandler{admission: admission, events: events}
}

// ListPolicies returns every named policy and the default policy.
func (h *AdminHandler) ListPolicies(ctx context.Context, _ *struct{}) (*PoliciesResponse, error) {
	if err := requirePrincipal(ctx); err != nil {
		return nil, err
	}

	table := h.admission.Policies()

	resp := &PoliciesResponse{}
	resp.Body.Backend = health.BackendLocal

	if h.admission.Limiter().Shared() {
		resp.Body.Backend = health.BackendShared
	}

	resp.Body.Default = newPolicyView("", ratelimit.DefaultPolicy)
	resp.Body.Policies = make([]PolicyView, 0, len(table.Names()))

	for _, name := range table.Names() {
		resp.Body.Policies = append(resp.Body.Policies, newPolicyView(name, table.Lookup(name, nil)))
	}

	return resp, nil
}

// RecentEvents returns the newest throttle events.
func (h *AdminHandler) RecentEvents(ctx context.Context, req *RecentEventsRequest) (*RecentEventsResponse, error) {
	if err := requirePrincipal(ctx); err != nil {
		return nil, err
	}

	events, err := h.events.Recent(ctx, req.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load throttle events")
	}

	resp := &RecentEventsResponse{}
	resp.Body.Events = events

	if resp.Body.Events == nil {
		resp.Body.Events = []analytics.ThrottledEvent{}
	}

	return resp, nil
}

// CountEvents counts a client's throttle events over the requested period.
func (h *AdminHandler) CountEvents(ctx context.Context, req *CountEventsRequest) (*CountEventsResponse, error) {
	if err := requirePrincipal(ctx); err != nil {
		return nil, err
	}

	since := time.Now().UTC().Add(-time.Duration(req.SinceMinutes) * time.Minute)

	count, err := h.events.CountByClientIP(ctx, req.ClientIP, since)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to count throttle events")
	}

	resp := &CountEventsResponse{}
	resp.Body.ClientIP = req.ClientIP
	resp.Body.Since = since
	resp.Body.Count = count

	return resp, nil
}

func requirePrincipal(ctx context.Context) error {
	if meta, ok := middleware.RequestMetaFromContext(ctx); ok && meta.Principal != "" {
		return nil
	}

	return huma.Error401Unauthorized("authentication required")
}

func newPolicyView(name string, p ratelimit.Policy) PolicyView {
	return PolicyView{
		Name:         name,
		WindowMillis: p.Window.Milliseconds(),
		Max:          p.Max,
		Message:      p.Message,
	}
}
