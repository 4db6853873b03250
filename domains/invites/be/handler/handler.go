package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homebasehq/homebase/domains/invites/be/service"
	"github.com/homebasehq/homebase/platform/go/auth"
	platformlogging "github.com/homebasehq/homebase/platform/go/logging"
	"github.com/homebasehq/homebase/platform/go/problem"
)

// Handler wires the invite service to the HTTP surface.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("invite service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the invite endpoints. The token preview endpoint is public so
// an invited tenant can inspect the invite before authenticating.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/invites/preview", h.Preview)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleManager))
		r.Post("/invites", h.Create)
		r.Get("/invites", h.List)
		r.Delete("/invites/{inviteID}", h.Revoke)
	})
}

type createInviteRequest struct {
	Email      string     `json:"email"`
	LeaseID    *uuid.UUID `json:"leaseId"`
	TTLSeconds *int64     `json:"ttlSeconds"`
}

type inviteResponse struct {
	InviteID  uuid.UUID  `json:"inviteId"`
	Token     string     `json:"token,omitempty"`
	Email     string     `json:"email"`
	LeaseID   *uuid.UUID `json:"leaseId,omitempty"`
	Accepted  bool       `json:"accepted"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	var body createInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	input := service.CreateInput{Email: body.Email, LeaseID: body.LeaseID}
	if body.TTLSeconds != nil {
		input.TTL = time.Duration(*body.TTLSeconds) * time.Second
	}

	invite, err := h.svc.Create(r.Context(), creds.ID, input)
	if err != nil {
		h.writeError(w, r, err, "createInvite")
		return
	}

	// the full token is only ever returned here, at creation
	problem.WriteJSON(w, http.StatusCreated, toInviteResponse(invite, true))
}

// Preview lets the holder of a token inspect the invite it resolves to.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	invite, err := h.svc.GetByToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.writeError(w, r, err, "previewInvite")
		return
	}
	problem.WriteJSON(w, http.StatusOK, toInviteResponse(invite, false))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	leaseID, err := uuid.Parse(r.URL.Query().Get("leaseId"))
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{
			"leaseId": {"leaseId query parameter must be a UUID"},
		}}, "listInvites")
		return
	}

	invites, err := h.svc.ListByLease(r.Context(), creds.ID, leaseID)
	if err != nil {
		h.writeError(w, r, err, "listInvites")
		return
	}

	items := make([]inviteResponse, 0, len(invites))
	for _, invite := range invites {
		items = append(items, toInviteResponse(invite, false))
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "inviteID"))
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{
			"inviteId": {"inviteId must be a UUID"},
		}}, "revokeInvite")
		return
	}

	if err := h.svc.Revoke(r.Context(), creds.ID, id); err != nil {
		h.writeError(w, r, err, "revokeInvite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toInviteResponse(invite service.Invite, includeToken bool) inviteResponse {
	response := inviteResponse{
		InviteID:  invite.InviteID,
		Email:     invite.Email,
		LeaseID:   invite.LeaseID,
		Accepted:  invite.Accepted,
		ExpiresAt: invite.ExpiresAt,
		CreatedAt: invite.CreatedAt,
	}
	if includeToken {
		response.Token = invite.Token
	}
	return response
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status, details := classifyError(err)

	logger := h.loggerFrom(r)
	fields := []zap.Field{zap.String("operation", operation), zap.Int("status", status)}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("invite operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("invite not found", fields...)
	default:
		logger.Warn("invite request rejected", append(fields, zap.Error(err))...)
	}

	problem.Write(w, details)
}

func classifyError(err error) (int, problem.Details) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			problem.New(http.StatusBadRequest, "Validation failed", "one or more fields are invalid", problem.TypeValidation).
				WithFields(validationErr.Fields)
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound,
			problem.New(http.StatusNotFound, "Resource not found", "invite not found", problem.TypeNotFound)
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden,
			problem.New(http.StatusForbidden, "Forbidden", "not allowed to act on this invite", problem.TypeForbidden)
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict,
			problem.New(http.StatusConflict, "Conflict", "invite conflict", problem.TypeConflict)
	default:
		return http.StatusInternalServerError,
			problem.New(http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal)
	}
}

func (h *Handler) loggerFrom(r *http.Request) *zap.Logger {
	if logger, ok := platformlogging.FromContext(r.Context()); ok {
		return logger
	}
	return h.logger
}
