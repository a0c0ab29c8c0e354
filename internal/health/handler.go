package health

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/admission-go/internal/ratelimit"
)

// Backend modes reported by the health endpoint.
const (
	BackendShared = "shared"
	BackendLocal  = "local"
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// Handler handles health check operations.
type Handler struct {
	shared Checker
}

// NewHandler creates a new health handler. A nil checker means the process
// runs in local-only rate limiting mode.
func NewHandler(shared Checker) *Handler {
	return &Handler{shared: shared}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status  string `doc:"ok or degraded"                      json:"status"`
		Backend string `doc:"Rate limit backend: shared or local" json:"backend"`
		Redis   string `doc:"healthy, unhealthy or disabled"      json:"redis"`
	}
}

// Check reports the rate limit backend mode and shared backend reachability.
// An unreachable shared backend degrades the service but does not fail it,
// since decisions fall back to the local backend.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"

	if h.shared == nil {
		resp.Body.Backend = BackendLocal
		resp.Body.Redis = "disabled"

		return resp, nil
	}

	resp.Body.Backend = BackendShared

	if err := h.shared.Ping(ctx); err != nil {
		resp.Body.Redis = "unhealthy"
		resp.Body.Status = "degraded"
	} else {
		resp.Body.Redis = "healthy"
	}

	return resp, nil
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"Health"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, h.Check)
}
