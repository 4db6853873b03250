package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homebasehq/homebase/domains/content/be/service"
	"github.com/homebasehq/homebase/platform/go/auth"
	platformlogging "github.com/homebasehq/homebase/platform/go/logging"
	"github.com/homebasehq/homebase/platform/go/problem"
)

// Handler wires the content service to the HTTP surface.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("content service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the content endpoints. Reads are public and serve the
// marketing site; mutations are gated to admins.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/content/plans", h.ListPlans)
	r.Get("/content/navbar", h.ListNavbar)
	r.Get("/content/policies", h.ListPolicies)
	r.Get("/content/policies/{slug}", h.GetPolicy)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Post("/content/plans", h.UpsertPlan)
		r.Delete("/content/plans/{planID}", h.DeletePlan)
		r.Post("/content/navbar", h.UpsertNavbar)
		r.Delete("/content/navbar/{itemID}", h.DeleteNavbar)
		r.Post("/content/policies", h.UpsertPolicy)
		r.Delete("/content/policies/{sectionID}", h.DeletePolicy)
	})
}

type planRequest struct {
	PlanID       *uuid.UUID `json:"planId"`
	Name         string     `json:"name"`
	PriceMonthly float64    `json:"priceMonthly"`
	Features     []string   `json:"features"`
	SortOrder    int        `json:"sortOrder"`
	Active       bool       `json:"active"`
}

type navbarRequest struct {
	ItemID    *uuid.UUID `json:"itemId"`
	Label     string     `json:"label"`
	Href      string     `json:"href"`
	SortOrder int        `json:"sortOrder"`
	Visible   bool       `json:"visible"`
}

type policyRequest struct {
	SectionID *uuid.UUID `json:"sectionId"`
	Slug      string     `json:"slug"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	SortOrder int        `json:"sortOrder"`
}

// isAdmin reports whether the caller holds the admin role. Admin list calls
// include inactive and hidden records.
func isAdmin(r *http.Request) bool {
	creds, ok := auth.UserFromContext(r.Context())
	return ok && creds.Role == auth.RoleAdmin
}

func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.ListPlans(r.Context(), isAdmin(r))
	if err != nil {
		h.writeError(w, r, err, "listPlans")
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": plans})
}

func (h *Handler) UpsertPlan(w http.ResponseWriter, r *http.Request) {
	var body planRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	plan, err := h.svc.UpsertPlan(r.Context(), service.PlanInput{
		PlanID:       body.PlanID,
		Name:         body.Name,
		PriceMonthly: body.PriceMonthly,
		Features:     body.Features,
		SortOrder:    body.SortOrder,
		Active:       body.Active,
	})
	if err != nil {
		h.writeError(w, r, err, "upsertPlan")
		return
	}
	problem.WriteJSON(w, http.StatusOK, plan)
}

func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "planID")
	if !ok {
		return
	}
	if err := h.svc.DeletePlan(r.Context(), id); err != nil {
		h.writeError(w, r, err, "deletePlan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListNavbar(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListNavbarItems(r.Context(), isAdmin(r))
	if err != nil {
		h.writeError(w, r, err, "listNavbar")
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) UpsertNavbar(w http.ResponseWriter, r *http.Request) {
	var body navbarRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	item, err := h.svc.UpsertNavbarItem(r.Context(), service.NavbarInput{
		ItemID:    body.ItemID,
		Label:     body.Label,
		Href:      body.Href,
		SortOrder: body.SortOrder,
		Visible:   body.Visible,
	})
	if err != nil {
		h.writeError(w, r, err, "upsertNavbar")
		return
	}
	problem.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) DeleteNavbar(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.svc.DeleteNavbarItem(r.Context(), id); err != nil {
		h.writeError(w, r, err, "deleteNavbar")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	sections, err := h.svc.ListPolicies(r.Context())
	if err != nil {
		h.writeError(w, r, err, "listPolicies")
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": sections})
}

func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	section, err := h.svc.GetPolicy(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err, "getPolicy")
		return
	}
	problem.WriteJSON(w, http.StatusOK, section)
}

func (h *Handler) UpsertPolicy(w http.ResponseWriter, r *http.Request) {
	var body policyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	section, err := h.svc.UpsertPolicy(r.Context(), service.PolicyInput{
		SectionID: body.SectionID,
		Slug:      body.Slug,
		Title:     body.Title,
		Body:      body.Body,
		SortOrder: body.SortOrder,
	})
	if err != nil {
		h.writeError(w, r, err, "upsertPolicy")
		return
	}
	problem.WriteJSON(w, http.StatusOK, section)
}

func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "sectionID")
	if !ok {
		return
	}
	if err := h.svc.DeletePolicy(r.Context(), id); err != nil {
		h.writeError(w, r, err, "deletePolicy")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{
			param: {param + " must be a UUID"},
		}}, "parsePath")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status, details := classifyError(err)

	logger := h.loggerFrom(r)
	fields := []zap.Field{zap.String("operation", operation), zap.Int("status", status)}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("content operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("content not found", fields...)
	default:
		logger.Warn("content request rejected", append(fields, zap.Error(err))...)
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
			problem.New(http.StatusNotFound, "Resource not found", "content not found", problem.TypeNotFound)
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict,
			problem.New(http.StatusConflict, "Conflict", "a record with the same name or slug already exists", problem.TypeConflict)
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
