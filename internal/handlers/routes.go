package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/admission-go/internal/middleware"
	"github.com/serroba/admission-go/internal/ratelimit"
)

// RegisterRoutes registers the site's form routes with their rate limit policies.
func RegisterRoutes(api huma.API, h *FormHandler) {
	// POST /contact - Contact form
	huma.Register(api, huma.Operation{
		OperationID:   "submit-contact",
		Method:        http.MethodPost,
		Path:          "/contact",
		Summary:       "Submit contact form",
		Tags:          []string{"Forms"},
		DefaultStatus: http.StatusAccepted,
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Endpoint: ratelimit.Endpoint{Name: ratelimit.EndpointContact},
			},
		},
	}, h.SubmitContact)

	// POST /leads - Lead capture form
	huma.Register(api, huma.Operation{
		OperationID:   "submit-lead",
		Method:        http.MethodPost,
		Path:          "/leads",
		Summary:       "Submit lead form",
		Tags:          []string{"Forms"},
		DefaultStatus: http.StatusAccepted,
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Endpoint: ratelimit.Endpoint{Name: ratelimit.EndpointLead},
			},
		},
	}, h.SubmitLead)

	// POST /newsletter - Newsletter sign-up, stricter message than the table entry
	huma.Register(api, huma.Operation{
		OperationID:   "subscribe-newsletter",
		Method:        http.MethodPost,
		Path:          "/newsletter",
		Summary:       "Subscribe to the newsletter",
		Tags:          []string{"Forms"},
		DefaultStatus: http.StatusAccepted,
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Endpoint: ratelimit.Endpoint{
					Name: ratelimit.EndpointNewsletter,
					Overrides: &ratelimit.Overrides{
						Message: "You have already subscribed recently. Please check your inbox.",
					},
				},
			},
		},
	}, h.Subscribe)
}

// RegisterTicketRoutes registers the support ticket route. Tickets are keyed
// per user when auth verifies the caller, per address otherwise.
func RegisterTicketRoutes(router chi.Router, admission *ratelimit.Admission, auth *middleware.ProxyAuth, h *FormHandler) {
	router.With(middleware.HTTPRequestMeta(auth)).Post("/tickets", middleware.Guard(admission, ratelimit.Endpoint{
		Name:    ratelimit.EndpointSupportTicket,
		KeyFunc: ratelimit.UserOrIP,
	}, h.CreateTicket))
}

// RegisterAdminRoutes registers the operator routes. They are limited per
// user under the API policy.
func RegisterAdminRoutes(api huma.API, h *AdminHandler) {
	limit := map[string]any{
		ratelimit.MetadataKey: ratelimit.EndpointConfig{
			Endpoint: ratelimit.Endpoint{Name: ratelimit.EndpointAPI, KeyFunc: ratelimit.UserOrIP},
		},
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-policies",
		Method:      http.MethodGet,
		Path:        "/admin/ratelimit/policies",
		Summary:     "List rate limit policies",
		Tags:        []string{"Admin"},
		Metadata:    limit,
	}, h.ListPolicies)

	huma.Register(api, huma.Operation{
		OperationID: "list-throttle-events",
		Method:      http.MethodGet,
		Path:        "/admin/ratelimit/events",
		Summary:     "List recent throttle events",
		Tags:        []string{"Admin"},
		Metadata:    limit,
	}, h.RecentEvents)

	huma.Register(api, huma.Operation{
		OperationID: "count-throttle-events",
		Method:      http.MethodGet,
		Path:        "/admin/ratelimit/events/{clientIp}/count",
		Summary:     "Count throttle events for a client",
		Tags:        []string{"Admin"},
		Metadata:    limit,
	}, h.CountEvents)
}
