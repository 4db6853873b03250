package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homebasehq/homebase/domains/properties/be/service"
	"github.com/homebasehq/homebase/platform/go/auth"
	platformlogging "github.com/homebasehq/homebase/platform/go/logging"
	"github.com/homebasehq/homebase/platform/go/problem"
)

// Handler wires the property service to the HTTP surface.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("property service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the property endpoints. Every route requires a manager
// session; properties are never tenant-visible directly.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleManager))
		r.Post("/properties", h.Create)
		r.Get("/properties", h.List)
		r.Get("/properties/{propertyID}", h.Get)
		r.Patch("/properties/{propertyID}", h.Update)
		r.Delete("/properties/{propertyID}", h.Delete)
		r.Post("/properties/{propertyID}/units", h.CreateUnit)
		r.Get("/properties/{propertyID}/units", h.ListUnits)
	})
}

type createPropertyRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

type updatePropertyRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	Zip     *string `json:"zip"`
}

type createUnitRequest struct {
	UnitNumber string  `json:"unitNumber"`
	Bedrooms   int     `json:"bedrooms"`
	Bathrooms  float64 `json:"bathrooms"`
	Sqft       int     `json:"sqft"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	var body createPropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	property, err := h.svc.Create(r.Context(), creds.ID, service.CreateInput{
		Name:    body.Name,
		Address: body.Address,
		City:    body.City,
		State:   body.State,
		Zip:     body.Zip,
	})
	if err != nil {
		h.writeError(w, r, err, "createProperty")
		return
	}
	problem.WriteJSON(w, http.StatusCreated, property)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	properties, err := h.svc.List(r.Context(), creds.ID)
	if err != nil {
		h.writeError(w, r, err, "listProperties")
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": properties})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	id, ok := h.pathUUID(w, r, "propertyID")
	if !ok {
		return
	}

	property, err := h.svc.Get(r.Context(), creds.ID, id)
	if err != nil {
		h.writeError(w, r, err, "getProperty")
		return
	}
	problem.WriteJSON(w, http.StatusOK, property)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	id, ok := h.pathUUID(w, r, "propertyID")
	if !ok {
		return
	}

	var body updatePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	property, err := h.svc.Update(r.Context(), creds.ID, id, service.UpdateInput{
		Name:    body.Name,
		Address: body.Address,
		City:    body.City,
		State:   body.State,
		Zip:     body.Zip,
	})
	if err != nil {
		h.writeError(w, r, err, "updateProperty")
		return
	}
	problem.WriteJSON(w, http.StatusOK, property)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	id, ok := h.pathUUID(w, r, "propertyID")
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), creds.ID, id); err != nil {
		h.writeError(w, r, err, "deleteProperty")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	id, ok := h.pathUUID(w, r, "propertyID")
	if !ok {
		return
	}

	var body createUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	unit, err := h.svc.CreateUnit(r.Context(), creds.ID, id, service.CreateUnitInput{
		UnitNumber: body.UnitNumber,
		Bedrooms:   body.Bedrooms,
		Bathrooms:  body.Bathrooms,
		Sqft:       body.Sqft,
	})
	if err != nil {
		h.writeError(w, r, err, "createUnit")
		return
	}
	problem.WriteJSON(w, http.StatusCreated, unit)
}

func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	id, ok := h.pathUUID(w, r, "propertyID")
	if !ok {
		return
	}

	units, err := h.svc.ListUnits(r.Context(), creds.ID, id)
	if err != nil {
		h.writeError(w, r, err, "listUnits")
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": units})
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
		logger.Error("property operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("property not found", fields...)
	default:
		logger.Warn("property request rejected", append(fields, zap.Error(err))...)
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
			problem.New(http.StatusNotFound, "Resource not found", "property not found", problem.TypeNotFound)
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden,
			problem.New(http.StatusForbidden, "Forbidden", "not allowed to act on this property", problem.TypeForbidden)
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict,
			problem.New(http.StatusConflict, "Conflict", "unit number already exists for this property", problem.TypeConflict)
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
