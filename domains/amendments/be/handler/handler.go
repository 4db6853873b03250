package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homebasehq/homebase/domains/amendments/be/service"
	"github.com/homebasehq/homebase/platform/go/auth"
	platformlogging "github.com/homebasehq/homebase/platform/go/logging"
	"github.com/homebasehq/homebase/platform/go/persistence"
	"github.com/homebasehq/homebase/platform/go/problem"
)

const dateLayout = "2006-01-02"

// Handler wires the amendment service to the HTTP surface.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("amendment service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the amendment endpoints under the lease subtree.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleManager))
		r.Post("/leases/{leaseID}/amendments", h.Create)
		r.Get("/leases/{leaseID}/amendments", h.List)
		r.Get("/leases/{leaseID}/amendments/{amendmentID}", h.Get)
		r.Patch("/leases/{leaseID}/amendments/{amendmentID}", h.Apply)
		r.Delete("/leases/{leaseID}/amendments/{amendmentID}", h.Delete)
	})
}

type createAmendmentRequest struct {
	AmendmentType     string          `json:"amendmentType"`
	EffectiveDate     string          `json:"effectiveDate"`
	Description       string          `json:"description"`
	Changes           json.RawMessage `json:"changes"`
	RequiresSignature bool            `json:"requiresSignature"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	leaseID, err := pathUUID(r, "leaseID", "leaseId")
	if err != nil {
		h.writeError(w, r, err, "createAmendment")
		return
	}

	var body createAmendmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	effectiveDate, err := time.Parse(dateLayout, body.EffectiveDate)
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{
			"effectiveDate": {"effectiveDate must be a YYYY-MM-DD date"},
		}}, "createAmendment")
		return
	}

	amendment, err := h.svc.Create(r.Context(), creds.ID, leaseID, service.CreateInput{
		AmendmentType:     body.AmendmentType,
		EffectiveDate:     effectiveDate,
		Description:       body.Description,
		Changes:           body.Changes,
		RequiresSignature: body.RequiresSignature,
	})
	if err != nil {
		h.writeError(w, r, err, "createAmendment")
		return
	}
	problem.WriteJSON(w, http.StatusCreated, toAmendmentResponse(amendment))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	leaseID, err := pathUUID(r, "leaseID", "leaseId")
	if err != nil {
		h.writeError(w, r, err, "getAmendment")
		return
	}
	amendmentID, err := pathUUID(r, "amendmentID", "amendmentId")
	if err != nil {
		h.writeError(w, r, err, "getAmendment")
		return
	}

	amendment, err := h.svc.Get(r.Context(), creds.ID, leaseID, amendmentID)
	if err != nil {
		h.writeError(w, r, err, "getAmendment")
		return
	}
	problem.WriteJSON(w, http.StatusOK, toAmendmentResponse(amendment))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	leaseID, err := pathUUID(r, "leaseID", "leaseId")
	if err != nil {
		h.writeError(w, r, err, "listAmendments")
		return
	}

	var status *string
	if raw := r.URL.Query().Get("status"); raw != "" {
		status = &raw
	}

	amendments, err := h.svc.List(r.Context(), creds.ID, leaseID, status)
	if err != nil {
		h.writeError(w, r, err, "listAmendments")
		return
	}

	items := make([]amendmentResponse, 0, len(amendments))
	for _, amendment := range amendments {
		items = append(items, toAmendmentResponse(amendment))
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type applyAmendmentRequest struct {
	Action string `json:"action"`
}

func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	leaseID, err := pathUUID(r, "leaseID", "leaseId")
	if err != nil {
		h.writeError(w, r, err, "applyAmendment")
		return
	}
	amendmentID, err := pathUUID(r, "amendmentID", "amendmentId")
	if err != nil {
		h.writeError(w, r, err, "applyAmendment")
		return
	}

	var body applyAmendmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	result, err := h.svc.Apply(r.Context(), creds.ID, leaseID, amendmentID, body.Action)
	if err != nil {
		h.writeError(w, r, err, "applyAmendment")
		return
	}

	payload := map[string]any{"amendment": toAmendmentResponse(result.Amendment)}
	if result.Amendment.Status == persistence.AmendmentStatusExecuted {
		payload["lease"] = result.Lease
	}
	problem.WriteJSON(w, http.StatusOK, payload)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	leaseID, err := pathUUID(r, "leaseID", "leaseId")
	if err != nil {
		h.writeError(w, r, err, "deleteAmendment")
		return
	}
	amendmentID, err := pathUUID(r, "amendmentID", "amendmentId")
	if err != nil {
		h.writeError(w, r, err, "deleteAmendment")
		return
	}

	if err := h.svc.Delete(r.Context(), creds.ID, leaseID, amendmentID); err != nil {
		h.writeError(w, r, err, "deleteAmendment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type amendmentResponse struct {
	AmendmentID       uuid.UUID       `json:"amendmentId"`
	LeaseID           uuid.UUID       `json:"leaseId"`
	AmendmentType     string          `json:"amendmentType"`
	EffectiveDate     string          `json:"effectiveDate"`
	Description       string          `json:"description"`
	Changes           json.RawMessage `json:"changes"`
	PreviousValues    json.RawMessage `json:"previousValues"`
	Status            string          `json:"status"`
	RequiresSignature bool            `json:"requiresSignature"`
	CreatedBy         string          `json:"createdBy"`
	ApprovedBy        *string         `json:"approvedBy,omitempty"`
	ApprovedAt        *time.Time      `json:"approvedAt,omitempty"`
	RejectedBy        *string         `json:"rejectedBy,omitempty"`
	RejectedAt        *time.Time      `json:"rejectedAt,omitempty"`
	ExecutedBy        *string         `json:"executedBy,omitempty"`
	ExecutedAt        *time.Time      `json:"executedAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func toAmendmentResponse(amendment service.Amendment) amendmentResponse {
	return amendmentResponse{
		AmendmentID:       amendment.AmendmentID,
		LeaseID:           amendment.LeaseID,
		AmendmentType:     amendment.AmendmentType,
		EffectiveDate:     amendment.EffectiveDate.Format(dateLayout),
		Description:       amendment.Description,
		Changes:           amendment.Changes,
		PreviousValues:    amendment.PreviousValues,
		Status:            amendment.Status,
		RequiresSignature: amendment.RequiresSignature,
		CreatedBy:         amendment.CreatedBy,
		ApprovedBy:        amendment.ApprovedBy,
		ApprovedAt:        amendment.ApprovedAt,
		RejectedBy:        amendment.RejectedBy,
		RejectedAt:        amendment.RejectedAt,
		ExecutedBy:        amendment.ExecutedBy,
		ExecutedAt:        amendment.ExecutedAt,
		CreatedAt:         amendment.CreatedAt,
		UpdatedAt:         amendment.UpdatedAt,
	}
}

func pathUUID(r *http.Request, param, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, &service.ValidationError{Fields: service.FieldErrors{
			field: {field + " must be a UUID"},
		}}
	}
	return id, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status, details := classifyError(err)

	logger := h.loggerFrom(r)
	fields := []zap.Field{zap.String("operation", operation), zap.Int("status", status)}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("amendment operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("amendment not found", fields...)
	default:
		logger.Warn("amendment request rejected", append(fields, zap.Error(err))...)
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
			problem.New(http.StatusNotFound, "Resource not found", "amendment not found", problem.TypeNotFound)
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden,
			problem.New(http.StatusForbidden, "Forbidden", "not allowed to act on this amendment", problem.TypeForbidden)
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
