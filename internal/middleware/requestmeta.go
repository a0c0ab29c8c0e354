package middleware

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/admission-go/internal/ratelimit"
)

// PrincipalHeader carries the authenticated user id set by a trusted upstream
// proxy. See ProxyAuth.
const PrincipalHeader = "X-Authenticated-User"

type requestMetaKey struct{}

// Meta holds HTTP request metadata used for rate limiting and events.
type Meta struct {
	ClientIP  string
	UserAgent string
	Referrer  string
	Principal string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta Meta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the metadata stored by RequestMeta, if any.
func RequestMetaFromContext(ctx context.Context) (Meta, bool) {
	meta, ok := ctx.Value(requestMetaKey{}).(Meta)

	return meta, ok
}

// RequestMeta is a middleware that adds client IP, user-agent, referrer and
// the verified principal to the request context.
func RequestMeta(_ huma.API, auth *ProxyAuth) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		req := NewHumaRequest(ctx)
		meta := Meta{
			ClientIP:  ratelimit.ClientIP(req),
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
			Principal: auth.Principal(ctx.RemoteAddr(), ctx.Header(PrincipalHeader)),
		}

		next(huma.WithContext(ctx, ContextWithRequestMeta(ctx.Context(), meta)))
	}
}

// HTTPRequestMeta is the net/http equivalent of RequestMeta.
func HTTPRequestMeta(auth *ProxyAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := NewHTTPRequest(r)
			meta := Meta{
				ClientIP:  ratelimit.ClientIP(req),
				UserAgent: r.UserAgent(),
				Referrer:  r.Referer(),
				Principal: auth.Principal(r.RemoteAddr, r.Header.Get(PrincipalHeader)),
			}

			next.ServeHTTP(w, r.WithContext(ContextWithRequestMeta(r.Context(), meta)))
		})
	}
}
