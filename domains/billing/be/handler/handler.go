package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homebasehq/homebase/domains/billing/be/service"
	"github.com/homebasehq/homebase/platform/go/auth"
	platformlogging "github.com/homebasehq/homebase/platform/go/logging"
	"github.com/homebasehq/homebase/platform/go/problem"
)

const dateLayout = "2006-01-02"

// Handler wires the billing service to the HTTP surface.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("billing service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the billing endpoints under manager authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleManager))
		r.Post("/leases/{leaseID}/invoices", h.CreateInvoice)
		r.Get("/leases/{leaseID}/invoices", h.ListInvoices)
		r.Get("/invoices/{invoiceID}", h.GetInvoice)
		r.Post("/invoices/{invoiceID}/payments", h.RecordPayment)
		r.Get("/invoices/{invoiceID}/payments", h.ListPayments)
	})
}

type createInvoiceRequest struct {
	Description string  `json:"description"`
	AmountDue   float64 `json:"amountDue"`
	DueDate     string  `json:"dueDate"`
}

type recordPaymentRequest struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
	Note   string  `json:"note"`
}

func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	leaseID, ok := h.pathUUID(w, r, "leaseID")
	if !ok {
		return
	}

	var body createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	input := service.CreateInvoiceInput{
		Description: body.Description,
		AmountDue:   body.AmountDue,
	}
	if body.DueDate != "" {
		dueDate, err := time.Parse(dateLayout, body.DueDate)
		if err != nil {
			h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{
				"dueDate": {"dueDate must use the YYYY-MM-DD format"},
			}}, "createInvoice")
			return
		}
		input.DueDate = dueDate
	}

	invoice, err := h.svc.CreateInvoice(r.Context(), creds.ID, leaseID, input)
	if err != nil {
		h.writeError(w, r, err, "createInvoice")
		return
	}
	problem.WriteJSON(w, http.StatusCreated, invoice)
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	leaseID, ok := h.pathUUID(w, r, "leaseID")
	if !ok {
		return
	}

	invoices, err := h.svc.ListInvoices(r.Context(), creds.ID, leaseID)
	if err != nil {
		h.writeError(w, r, err, "listInvoices")
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": invoices})
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	invoiceID, ok := h.pathUUID(w, r, "invoiceID")
	if !ok {
		return
	}

	invoice, err := h.svc.GetInvoice(r.Context(), creds.ID, invoiceID)
	if err != nil {
		h.writeError(w, r, err, "getInvoice")
		return
	}
	problem.WriteJSON(w, http.StatusOK, invoice)
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	invoiceID, ok := h.pathUUID(w, r, "invoiceID")
	if !ok {
		return
	}

	var body recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	payment, err := h.svc.RecordPayment(r.Context(), creds.ID, invoiceID, service.RecordPaymentInput{
		Amount: body.Amount,
		Method: body.Method,
		Note:   body.Note,
	})
	if err != nil {
		h.writeError(w, r, err, "recordPayment")
		return
	}
	problem.WriteJSON(w, http.StatusCreated, payment)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	invoiceID, ok := h.pathUUID(w, r, "invoiceID")
	if !ok {
		return
	}

	payments, err := h.svc.ListPayments(r.Context(), creds.ID, invoiceID)
	if err != nil {
		h.writeError(w, r, err, "listPayments")
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": payments})
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
		logger.Error("billing operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("invoice not found", fields...)
	default:
		logger.Warn("billing request rejected", append(fields, zap.Error(err))...)
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
			problem.New(http.StatusNotFound, "Resource not found", "invoice not found", problem.TypeNotFound)
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden,
			problem.New(http.StatusForbidden, "Forbidden", "not allowed to act on this invoice", problem.TypeForbidden)
	case errors.Is(err, service.ErrOverPayment):
		return http.StatusConflict,
			problem.New(http.StatusConflict, "Conflict", "payment exceeds the outstanding balance", problem.TypeConflict)
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
