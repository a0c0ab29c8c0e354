package handlers

import (
	"time"

	"github.com/serroba/admission-go/internal/analytics"
)

// ContactRequest is the request body for the contact and lead forms.
type ContactRequest struct {
	Body struct {
		Name    string `doc:"Sender name"    example:"Ada Lovelace"        json:"name"    maxLength:"200" minLength:"1"`
		Email   string `doc:"Reply address"  example:"ada@example.com"     format:"email" json:"email"`
		Message string `doc:"Message body"   example:"I'd like a quote." json:"message" maxLength:"5000" minLength:"1"`
	}
}

// NewsletterRequest is the request body for newsletter sign-ups.
type NewsletterRequest struct {
	Body struct {
		Email string `doc:"Subscriber address" example:"ada@example.com" format:"email" json:"email"`
	}
}

// SubmissionResponse acknowledges an accepted form submission.
type SubmissionResponse struct {
	Status int
	Body   struct {
		ID     string `doc:"Submission id"     example:"5f0c6f8e-3b9b-4a8f-9a55-2b1f3f6a1c2d" json:"id"`
		Status string `doc:"Submission status" example:"accepted"                             json:"status"`
	}
}

// TicketRequest is the JSON body of a support ticket.
type TicketRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TicketResponse acknowledges a created support ticket.
type TicketResponse struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Status  string `json:"status"`
}

// PolicyView describes one rate limit policy.
type PolicyView struct {
	Name         string `doc:"Endpoint name, empty for the default policy" json:"name"`
	WindowMillis int64  `doc:"Window length in milliseconds"               json:"windowMillis"`
	Max          int64  `doc:"Requests allowed per window"                 json:"max"`
	Message      string `doc:"Message sent with 429 responses"             json:"message"`
}

// PoliciesResponse lists the policy table.
type PoliciesResponse struct {
	Body struct {
		Backend  string       `doc:"Rate limit backend: shared or local" json:"backend"`
		Default  PolicyView   `json:"default"`
		Policies []PolicyView `json:"policies"`
	}
}

// RecentEventsRequest selects how many throttle events to return.
type RecentEventsRequest struct {
	Limit int `default:"50" doc:"Maximum number of events" maximum:"500" minimum:"1" query:"limit"`
}

// RecentEventsResponse lists throttle events, newest first.
type RecentEventsResponse struct {
	Body struct {
		Events []analytics.ThrottledEvent `json:"events"`
	}
}

// CountEventsRequest selects a client and period.
type CountEventsRequest struct {
	ClientIP     string `doc:"Client address"                  path:"clientIp"`
	SinceMinutes int    `default:"60" doc:"Look-back in minutes" maximum:"10080" minimum:"1" query:"sinceMinutes"`
}

// CountEventsResponse reports how often a client was throttled.
type CountEventsResponse struct {
	Body struct {
		ClientIP string    `json:"clientIp"`
		Since    time.Time `json:"since"`
		Count    int64     `json:"count"`
	}
}
