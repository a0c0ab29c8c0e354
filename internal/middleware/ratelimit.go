package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/admission-go/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimiter returns a Huma middleware that enforces admission control.
//
// Per-endpoint configuration is read from operation metadata under
// ratelimit.MetadataKey. Operations without a configured endpoint name are
// limited under their route template (e.g. "/contact"), which selects
// ratelimit.DefaultPolicy unless the table has an entry for it.
//
// Throttle headers are set before the handler runs, so they are merged into
// the handler's response without touching its status or body.
func RateLimiter(
	_ huma.API,
	admission *ratelimit.Admission,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := GetEndpointConfig(ctx)
		if cfg != nil && cfg.Disabled {
			logger.Debug("rate limiting disabled for endpoint",
				zap.String("path", operationPath(ctx)), zap.String("method", ctx.Method()))
			next(ctx)

			return
		}

		var endpoint ratelimit.Endpoint
		if cfg != nil {
			endpoint = cfg.Endpoint
		}

		if endpoint.Name == "" {
			endpoint.Name = operationPath(ctx)
		}

		verdict, policy := admission.Check(ctx.Context(), NewHumaRequest(ctx), endpoint)

		for name, value := range ratelimit.Headers(verdict) {
			ctx.SetHeader(name, value)
		}

		if !verdict.Allowed {
			resp := ratelimit.DenyResponse(verdict, policy)

			ctx.SetHeader("Content-Type", "application/json")
			ctx.SetStatus(resp.Status)

			if err := json.NewEncoder(ctx.BodyWriter()).Encode(resp.Body); err != nil {
				logger.Error("failed to write rate limit response", zap.Error(err))
			}

			return
		}

		next(ctx)
	}
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if present.
func GetEndpointConfig(ctx huma.Context) *ratelimit.EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[ratelimit.MetadataKey].(ratelimit.EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}

// operationPath extracts the route template from the operation, falling back
// to the request path.
func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil && op.Path != "" {
		return op.Path
	}

	u := ctx.URL()

	return u.Path
}

// HTTP returns net/http middleware enforcing the endpoint's policy.
func HTTP(admission *ratelimit.Admission, endpoint ratelimit.Endpoint) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ep := endpoint
			if ep.Name == "" {
				ep.Name = r.URL.Path
			}

			verdict, policy := admission.Check(r.Context(), NewHTTPRequest(r), ep)

			for name, value := range ratelimit.Headers(verdict) {
				w.Header().Set(name, value)
			}

			if !verdict.Allowed {
				WriteResponse(w, ratelimit.DenyResponse(verdict, policy))

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GuardFunc builds the guarded handler for one request, giving it access to
// the request body.
type GuardFunc func(r *http.Request) ratelimit.Handler

// Guard adapts a response-returning handler to net/http through
// ratelimit.Admission.Guard.
func Guard(admission *ratelimit.Admission, endpoint ratelimit.Endpoint, build GuardFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ep := endpoint
		if ep.Name == "" {
			ep.Name = r.URL.Path
		}

		WriteResponse(w, admission.Guard(r.Context(), NewHTTPRequest(r), ep, build(r)))
	}
}

// WriteResponse writes resp with a JSON-encoded body.
func WriteResponse(w http.ResponseWriter, resp *ratelimit.Response) {
	for name, values := range resp.Header {
		w.Header()[name] = append([]string(nil), values...)
	}

	if resp.Body == nil {
		w.WriteHeader(resp.Status)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)

	_ = json.NewEncoder(w).Encode(resp.Body)
}
