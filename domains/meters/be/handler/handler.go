package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homebasehq/homebase/domains/meters/be/service"
	"github.com/homebasehq/homebase/platform/go/auth"
	platformlogging "github.com/homebasehq/homebase/platform/go/logging"
	"github.com/homebasehq/homebase/platform/go/problem"
)

// Handler wires the meter service to the HTTP surface.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("meter service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the meter reading endpoints under manager authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleManager))
		r.Post("/units/{unitID}/meter-readings", h.Record)
		r.Get("/units/{unitID}/meter-readings", h.List)
	})
}

type recordReadingRequest struct {
	MeterType string     `json:"meterType"`
	Reading   float64    `json:"reading"`
	ReadAt    *time.Time `json:"readAt"`
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	unitID, ok := h.pathUUID(w, r, "unitID")
	if !ok {
		return
	}

	var body recordReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	input := service.RecordInput{MeterType: body.MeterType, Reading: body.Reading}
	if body.ReadAt != nil {
		input.ReadAt = *body.ReadAt
	}

	reading, err := h.svc.Record(r.Context(), creds.ID, unitID, input)
	if err != nil {
		h.writeError(w, r, err, "recordReading")
		return
	}
	problem.WriteJSON(w, http.StatusCreated, reading)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	unitID, ok := h.pathUUID(w, r, "unitID")
	if !ok {
		return
	}

	input := service.ListInput{}
	if meterType := r.URL.Query().Get("meterType"); meterType != "" {
		input.MeterType = &meterType
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{
				"since": {"since must be an RFC 3339 timestamp"},
			}}, "listReadings")
			return
		}
		input.Since = &since
	}

	readings, err := h.svc.List(r.Context(), creds.ID, unitID, input)
	if err != nil {
		h.writeError(w, r, err, "listReadings")
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": readings})
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
		logger.Error("meter operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("unit not found", fields...)
	default:
		logger.Warn("meter request rejected", append(fields, zap.Error(err))...)
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
			problem.New(http.StatusNotFound, "Resource not found", "unit not found", problem.TypeNotFound)
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden,
			problem.New(http.StatusForbidden, "Forbidden", "not allowed to act on this unit", problem.TypeForbidden)
	case errors.Is(err, service.ErrNotMonotonic):
		return http.StatusConflict,
			problem.New(http.StatusConflict, "Conflict", "reading is below the previous value for this meter", problem.TypeConflict)
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
