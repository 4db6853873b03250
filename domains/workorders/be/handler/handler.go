package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homebasehq/homebase/domains/workorders/be/service"
	"github.com/homebasehq/homebase/platform/go/auth"
	platformlogging "github.com/homebasehq/homebase/platform/go/logging"
	"github.com/homebasehq/homebase/platform/go/problem"
)

// Handler wires the work order service to the HTTP surface.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("work order service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the work order endpoints. Vendors can read and transition
// orders assigned to them; creation and listing stay with managers.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleManager))
		r.Post("/workorders", h.Create)
		r.Get("/workorders", h.List)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleManager, auth.RoleVendor))
		r.Get("/workorders/{workOrderID}", h.Get)
		r.Patch("/workorders/{workOrderID}", h.Transition)
	})
}

type createWorkOrderRequest struct {
	PropertyID  uuid.UUID  `json:"propertyId"`
	UnitID      *uuid.UUID `json:"unitId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
}

type transitionWorkOrderRequest struct {
	Status   string  `json:"status"`
	VendorID *string `json:"vendorId"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var body createWorkOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}
	if body.PropertyID == uuid.Nil {
		h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{
			"propertyId": {"propertyId is required"},
		}}, "createWorkOrder")
		return
	}

	order, err := h.svc.Create(r.Context(), actor, service.CreateInput{
		PropertyID:  body.PropertyID,
		UnitID:      body.UnitID,
		Title:       body.Title,
		Description: body.Description,
	})
	if err != nil {
		h.writeError(w, r, err, "createWorkOrder")
		return
	}
	problem.WriteJSON(w, http.StatusCreated, order)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	propertyID, err := uuid.Parse(r.URL.Query().Get("propertyId"))
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{
			"propertyId": {"propertyId query parameter must be a UUID"},
		}}, "listWorkOrders")
		return
	}

	input := service.ListInput{PropertyID: propertyID}
	if status := r.URL.Query().Get("status"); status != "" {
		input.Status = &status
	}

	orders, err := h.svc.List(r.Context(), actor, input)
	if err != nil {
		h.writeError(w, r, err, "listWorkOrders")
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": orders})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	id, ok := h.pathUUID(w, r, "workOrderID")
	if !ok {
		return
	}

	order, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err, "getWorkOrder")
		return
	}
	problem.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	id, ok := h.pathUUID(w, r, "workOrderID")
	if !ok {
		return
	}

	var body transitionWorkOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	order, err := h.svc.Transition(r.Context(), actor, id, service.TransitionInput{
		Status:   body.Status,
		VendorID: body.VendorID,
	})
	if err != nil {
		h.writeError(w, r, err, "transitionWorkOrder")
		return
	}
	problem.WriteJSON(w, http.StatusOK, order)
}

func actorFrom(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return service.Actor{}, false
	}
	return service.Actor{ID: creds.ID, Role: creds.Role}, true
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
		logger.Error("work order operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("work order not found", fields...)
	default:
		logger.Warn("work order request rejected", append(fields, zap.Error(err))...)
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
			problem.New(http.StatusNotFound, "Resource not found", "work order not found", problem.TypeNotFound)
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden,
			problem.New(http.StatusForbidden, "Forbidden", "not allowed to act on this work order", problem.TypeForbidden)
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict,
			problem.New(http.StatusConflict, "Conflict", "invalid state transition", problem.TypeConflict)
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
