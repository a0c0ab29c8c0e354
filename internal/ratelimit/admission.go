package ratelimit

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Response is a framework-neutral HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   any
}

// DenyBody is the JSON body sent with a 429 response.
type DenyBody struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retryAfter"`
}

// Handler produces the response for a request that passed admission.
type Handler func(ctx context.Context, req Request) *Response

// Denial describes a rejected request, for reporting.
type Denial struct {
	Endpoint string
	Key      string
	Path     string
	ClientIP string
	Policy   Policy
	Verdict  Verdict
}

// DenyReporter is notified about every rejected request.
type DenyReporter interface {
	ReportDenial(ctx context.Context, denial Denial) error
}

// Admission ties identifier resolution, policy lookup and decisions together.
// It is the only rate limiting component request handlers need.
type Admission struct {
	limiter  *Limiter
	policies *PolicyTable
	reporter DenyReporter
	logger   *zap.Logger
}

// NewAdmission creates an admission guard. reporter may be nil.
func NewAdmission(limiter *Limiter, policies *PolicyTable, reporter DenyReporter, logger *zap.Logger) *Admission {
	return &Admission{
		limiter:  limiter,
		policies: policies,
		reporter: reporter,
		logger:   logger,
	}
}

// Policies returns the policy table used for lookups.
func (a *Admission) Policies() *PolicyTable {
	return a.policies
}

// Limiter returns the decision engine.
func (a *Admission) Limiter() *Limiter {
	return a.limiter
}

// Check resolves the endpoint's policy and returns the verdict for req without
// producing a response. Denials are reported like Guard does.
func (a *Admission) Check(ctx context.Context, req Request, endpoint Endpoint) (Verdict, Policy) {
	policy := a.policies.Lookup(endpoint.Name, endpoint.Overrides)
	key := BuildKey(policy, Resolve(req, endpoint.KeyFunc))

	verdict := a.limiter.DecideKey(ctx, key, policy)
	if !verdict.Allowed {
		a.report(ctx, req, endpoint, key, policy, verdict)
	}

	return verdict, policy
}

// Guard admits or rejects req. A rejected request gets a 429 carrying the
// policy message and handler is not called. An admitted request gets the
// handler's response with the throttle headers merged in.
func (a *Admission) Guard(ctx context.Context, req Request, endpoint Endpoint, handler Handler) *Response {
	verdict, policy := a.Check(ctx, req, endpoint)

	if !verdict.Allowed {
		return DenyResponse(verdict, policy)
	}

	resp := handler(ctx, req)
	if resp == nil {
		resp = &Response{Status: http.StatusOK}
	}

	if resp.Header == nil {
		resp.Header = make(http.Header)
	}

	for name, value := range Headers(verdict) {
		resp.Header.Set(name, value)
	}

	return resp
}

// DenyResponse builds the 429 response for a denied verdict.
func DenyResponse(verdict Verdict, policy Policy) *Response {
	header := make(http.Header)
	for name, value := range Headers(verdict) {
		header.Set(name, value)
	}

	return &Response{
		Status: http.StatusTooManyRequests,
		Header: header,
		Body: DenyBody{
			Error:      policy.Message,
			RetryAfter: RetryAfterSeconds(verdict),
		},
	}
}

func (a *Admission) report(ctx context.Context, req Request, endpoint Endpoint, key string, policy Policy, verdict Verdict) {
	a.logger.Warn("rate limit exceeded",
		zap.String("endpoint", endpoint.Name),
		zap.String("path", req.Path()),
		zap.String("key", key),
		zap.Int64("max", policy.Max),
		zap.Duration("window", policy.Window),
		zap.String("client_ip", ClientIP(req)),
	)

	if a.reporter == nil {
		return
	}

	err := a.reporter.ReportDenial(ctx, Denial{
		Endpoint: endpoint.Name,
		Key:      key,
		Path:     req.Path(),
		ClientIP: ClientIP(req),
		Policy:   policy,
		Verdict:  verdict,
	})
	if err != nil {
		a.logger.Error("failed to report rate limit denial", zap.String("key", key), zap.Error(err))
	}
}
