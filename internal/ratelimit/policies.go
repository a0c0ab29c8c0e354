package ratelimit

import "time"

// Endpoint names of the bundled policy table.
const (
	EndpointContact       = "contact"
	EndpointLead          = "lead"
	EndpointNewsletter    = "newsletter"
	EndpointLogin         = "login"
	EndpointRegister      = "register"
	EndpointPasswordReset = "password-reset"
	EndpointSupportTicket = "support-ticket"
	EndpointBlogComment   = "blog-comment"
	EndpointCheckout      = "checkout"
	EndpointAPI           = "api"
)

// SitePolicies are the limits enforced on the marketing site's endpoints.
func SitePolicies() map[string]Policy {
	return map[string]Policy{
		EndpointContact: {
			Window:  15 * time.Minute,
			Max:     5,
			Message: "Too many contact form submissions. Please try again in a few minutes.",
		},
		EndpointLead: {
			Window:  15 * time.Minute,
			Max:     5,
			Message: "Too many requests. Please try again in a few minutes.",
		},
		EndpointNewsletter: {
			Window:  time.Hour,
			Max:     3,
			Message: "Too many subscription attempts. Please try again later.",
		},
		EndpointLogin: {
			Window:  15 * time.Minute,
			Max:     10,
			Message: "Too many login attempts. Please try again in 15 minutes.",
		},
		EndpointRegister: {
			Window:  time.Hour,
			Max:     5,
			Message: "Too many registration attempts. Please try again later.",
		},
		EndpointPasswordReset: {
			Window:  time.Hour,
			Max:     3,
			Message: "Too many password reset requests. Please try again later.",
		},
		EndpointSupportTicket: {
			Window:  time.Hour,
			Max:     10,
			Message: "Too many support tickets created. Please try again later.",
		},
		EndpointBlogComment: {
			Window:  10 * time.Minute,
			Max:     5,
			Message: "You are commenting too quickly. Please slow down.",
		},
		EndpointCheckout: {
			Window:  10 * time.Minute,
			Max:     10,
			Message: "Too many checkout attempts. Please try again shortly.",
		},
		EndpointAPI: {
			Window:  time.Minute,
			Max:     100,
			Message: "API rate limit exceeded.",
		},
	}
}

// NewSitePolicyTable returns the table built from SitePolicies.
func NewSitePolicyTable() *PolicyTable {
	table, err := NewPolicyTable(SitePolicies())
	if err != nil {
		panic(err)
	}

	return table
}
