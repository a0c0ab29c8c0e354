package middleware

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/admission-go/internal/ratelimit"
)

// humaRequest adapts huma.Context to ratelimit.Request.
type humaRequest struct {
	ctx huma.Context
}

// NewHumaRequest wraps a huma context for the rate limiter.
func NewHumaRequest(ctx huma.Context) ratelimit.Request {
	return humaRequest{ctx: ctx}
}

func (r humaRequest) Header(name string) string { return r.ctx.Header(name) }
func (r humaRequest) RemoteAddr() string        { return r.ctx.RemoteAddr() }

func (r humaRequest) Path() string {
	u := r.ctx.URL()

	return u.Path
}

// Principal returns the principal verified by RequestMeta. Without it the
// caller is anonymous.
func (r humaRequest) Principal() string {
	meta, _ := RequestMetaFromContext(r.ctx.Context())

	return meta.Principal
}

// httpRequest adapts *http.Request to ratelimit.Request.
type httpRequest struct {
	r *http.Request
}

// NewHTTPRequest wraps a standard request for the rate limiter.
func NewHTTPRequest(r *http.Request) ratelimit.Request {
	return httpRequest{r: r}
}

func (r httpRequest) Header(name string) string { return r.r.Header.Get(name) }
func (r httpRequest) RemoteAddr() string        { return r.r.RemoteAddr }
func (r httpRequest) Path() string              { return r.r.URL.Path }

func (r httpRequest) Principal() string {
	meta, _ := RequestMetaFromContext(r.r.Context())

	return meta.Principal
}
