package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/serroba/admission-go/internal/ratelimit"
	"go.uber.org/zap"
)

// FormHandler accepts the site's public form submissions. Submissions are
// acknowledged and logged; persisting and mailing them is handled elsewhere.
type FormHandler struct {
	logger *zap.Logger
}

// NewFormHandler creates a new form handler.
func NewFormHandler(logger *zap.Logger) *FormHandler {
	return &FormHandler{logger: logger}
}

// SubmitContact accepts a contact form submission.
func (h *FormHandler) SubmitContact(_ context.Context, req *ContactRequest) (*SubmissionResponse, error) {
	return h.accept("contact", zap.String("email", req.Body.Email)), nil
}

// SubmitLead accepts a lead form submission.
func (h *FormHandler) SubmitLead(_ context.Context, req *ContactRequest) (*SubmissionResponse, error) {
	return h.accept("lead", zap.String("email", req.Body.Email)), nil
}

// Subscribe accepts a newsletter sign-up.
func (h *FormHandler) Subscribe(_ context.Context, req *NewsletterRequest) (*SubmissionResponse, error) {
	return h.accept("newsletter", zap.String("email", req.Body.Email)), nil
}

func (h *FormHandler) accept(form string, fields ...zap.Field) *SubmissionResponse {
	resp := &SubmissionResponse{Status: http.StatusAccepted}
	resp.Body.ID = uuid.NewString()
	resp.Body.Status = "accepted"

	h.logger.Info("form submission accepted",
		append([]zap.Field{zap.String("form", form), zap.String("id", resp.Body.ID)}, fields...)...,
	)

	return resp
}

// CreateTicket handles a support ticket through the admission guard's
// response-returning handler contract.
func (h *FormHandler) CreateTicket(r *http.Request) ratelimit.Handler {
	return func(_ context.Context, req ratelimit.Request) *ratelimit.Response {
		var body TicketRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Subject == "" {
			return &ratelimit.Response{
				Status: http.StatusUnprocessableEntity,
				Body:   map[string]string{"error": "subject is required"},
			}
		}

		ticket := TicketResponse{
			ID:      uuid.NewString(),
			Subject: body.Subject,
			Status:  "open",
		}

		h.logger.Info("support ticket created",
			zap.String("id", ticket.ID),
			zap.String("principal", req.Principal()),
		)

		return &ratelimit.Response{Status: http.StatusCreated, Body: ticket}
	}
}
