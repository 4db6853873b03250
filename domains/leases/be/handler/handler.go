package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homebasehq/homebase/domains/leases/be/service"
	"github.com/homebasehq/homebase/platform/go/auth"
	platformlogging "github.com/homebasehq/homebase/platform/go/logging"
	"github.com/homebasehq/homebase/platform/go/persistence"
	"github.com/homebasehq/homebase/platform/go/problem"
)

const dateLayout = "2006-01-02"

// Handler wires the lease service to the HTTP surface.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("lease service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the lease endpoints. The sign and detail routes are
// deliberately outside the manager guard: the tenant path authenticates with
// the invite token, and the detail read authorizes in the service against the
// caller's credentials or token.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/leases/{leaseID}/sign/{role}", h.Sign)
	r.Get("/leases/{leaseID}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleManager))
		r.Post("/leases", h.Create)
		r.Get("/leases", h.List)
		r.Patch("/leases/{leaseID}", h.Update)
		r.Post("/leases/{leaseID}/renewals", h.CreateRenewal)
		r.Get("/leases/{leaseID}/renewals", h.ListRenewals)
	})
}

type createLeaseRequest struct {
	PropertyID         uuid.UUID `json:"propertyId"`
	UnitID             uuid.UUID `json:"unitId"`
	TenantEmail        string    `json:"tenantEmail"`
	StartDate          string    `json:"startDate"`
	EndDate            string    `json:"endDate"`
	RentAmount         float64   `json:"rentAmount"`
	SecurityDeposit    float64   `json:"securityDeposit"`
	TenantPaysElectric bool      `json:"tenantPaysElectric"`
	TenantPaysWater    bool      `json:"tenantPaysWater"`
	TenantPaysTrash    bool      `json:"tenantPaysTrash"`
	TenantPaysInternet bool      `json:"tenantPaysInternet"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeProblem(w, r, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	var body createLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeProblem(w, r, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	fieldErrors := service.FieldErrors{}
	start := parseDate(fieldErrors, "startDate", body.StartDate)
	end := parseDate(fieldErrors, "endDate", body.EndDate)
	if len(fieldErrors) > 0 {
		h.writeError(w, r, &service.ValidationError{Fields: fieldErrors}, "createLease")
		return
	}

	view, err := h.svc.Create(r.Context(), creds.ID, service.CreateInput{
		PropertyID:         body.PropertyID,
		UnitID:             body.UnitID,
		TenantEmail:        body.TenantEmail,
		StartDate:          start,
		EndDate:            end,
		RentAmount:         body.RentAmount,
		SecurityDeposit:    body.SecurityDeposit,
		TenantPaysElectric: body.TenantPaysElectric,
		TenantPaysWater:    body.TenantPaysWater,
		TenantPaysTrash:    body.TenantPaysTrash,
		TenantPaysInternet: body.TenantPaysInternet,
	})
	if err != nil {
		h.writeError(w, r, err, "createLease")
		return
	}

	problem.WriteJSON(w, http.StatusCreated, toLeaseViewResponse(view))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := leaseIDFromRequest(r)
	if err != nil {
		h.writeError(w, r, err, "getLease")
		return
	}

	viewer := service.Viewer{Token: strings.TrimSpace(r.URL.Query().Get("token"))}
	creds, authenticated := auth.UserFromContext(r.Context())
	if authenticated {
		viewer.UserID = creds.ID
		viewer.Role = creds.Role
	} else if viewer.Token == "" {
		h.writeProblem(w, r, problem.New(http.StatusUnauthorized, "Unauthorized", "lease details require authentication or an invite token", problem.TypeUnauthorized))
		return
	}

	view, err := h.svc.Get(r.Context(), id, viewer)
	if err != nil {
		h.writeError(w, r, err, "getLease")
		return
	}
	problem.WriteJSON(w, http.StatusOK, toLeaseViewResponse(view))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	creds, _ := auth.UserFromContext(r.Context())

	input := service.ListInput{}
	if raw := r.URL.Query().Get("propertyId"); raw != "" {
		propertyID, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{
				"propertyId": {"propertyId must be a UUID"},
			}}, "listLeases")
			return
		}
		input.PropertyID = &propertyID
	} else if creds.Role != auth.RoleAdmin {
		// Managers see their own portfolio unless they narrow by property.
		managerID := creds.ID
		input.ManagerID = &managerID
	}

	leases, err := h.svc.List(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err, "listLeases")
		return
	}

	items := make([]leaseResponse, 0, len(leases))
	for _, lease := range leases {
		items = append(items, toLeaseResponse(lease))
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type updateLeaseRequest struct {
	StartDate       *string  `json:"startDate"`
	EndDate         *string  `json:"endDate"`
	RentAmount      *float64 `json:"rentAmount"`
	SecurityDeposit *float64 `json:"securityDeposit"`
	TenantEmail     *string  `json:"tenantEmail"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeProblem(w, r, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	id, err := leaseIDFromRequest(r)
	if err != nil {
		h.writeError(w, r, err, "updateLease")
		return
	}

	var body updateLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeProblem(w, r, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	fieldErrors := service.FieldErrors{}
	input := service.UpdateInput{
		RentAmount:      body.RentAmount,
		SecurityDeposit: body.SecurityDeposit,
		TenantEmail:     body.TenantEmail,
	}
	if body.StartDate != nil {
		start := parseDate(fieldErrors, "startDate", *body.StartDate)
		input.StartDate = &start
	}
	if body.EndDate != nil {
		end := parseDate(fieldErrors, "endDate", *body.EndDate)
		input.EndDate = &end
	}
	if len(fieldErrors) > 0 {
		h.writeError(w, r, &service.ValidationError{Fields: fieldErrors}, "updateLease")
		return
	}

	lease, err := h.svc.UpdateDraft(r.Context(), creds.ID, id, input)
	if err != nil {
		h.writeError(w, r, err, "updateLease")
		return
	}
	problem.WriteJSON(w, http.StatusOK, toLeaseResponse(lease))
}

type signRequest struct {
	Token string `json:"token"`
}

func (h *Handler) Sign(w http.ResponseWriter, r *http.Request) {
	id, err := leaseIDFromRequest(r)
	if err != nil {
		h.writeError(w, r, err, "signLease")
		return
	}

	party, err := service.ParseParty(chi.URLParam(r, "role"))
	if err != nil {
		h.writeError(w, r, err, "signLease")
		return
	}

	var body signRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeProblem(w, r, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
			return
		}
	}

	input := service.SignInput{Token: body.Token}
	creds, authenticated := auth.UserFromContext(r.Context())
	switch party {
	case service.PartyLandlord:
		if !authenticated {
			h.writeProblem(w, r, problem.New(http.StatusUnauthorized, "Unauthorized", "landlord signatures require authentication", problem.TypeUnauthorized))
			return
		}
		input.ManagerID = creds.ID
	case service.PartyTenant:
		if authenticated {
			userID := creds.ID
			input.TenantUserID = &userID
		}
	}

	result, err := h.svc.Sign(r.Context(), id, party, input)
	if err != nil {
		h.writeError(w, r, err, "signLease")
		return
	}

	problem.WriteJSON(w, http.StatusOK, map[string]any{
		"message": result.Message,
		"lease":   toLeaseViewResponse(result.Lease),
	})
}

type renewRequest struct {
	NewStartDate string  `json:"newStartDate"`
	NewEndDate   string  `json:"newEndDate"`
	NewRent      float64 `json:"newRent"`
}

func (h *Handler) CreateRenewal(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeProblem(w, r, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	id, err := leaseIDFromRequest(r)
	if err != nil {
		h.writeError(w, r, err, "renewLease")
		return
	}

	var body renewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeProblem(w, r, problem.New(http.StatusBadRequest, "Invalid request body", "request body must be valid JSON", problem.TypeValidation))
		return
	}

	fieldErrors := service.FieldErrors{}
	start := parseDate(fieldErrors, "newStartDate", body.NewStartDate)
	end := parseDate(fieldErrors, "newEndDate", body.NewEndDate)
	if len(fieldErrors) > 0 {
		h.writeError(w, r, &service.ValidationError{Fields: fieldErrors}, "renewLease")
		return
	}

	renewal, lease, err := h.svc.Renew(r.Context(), creds.ID, id, service.RenewInput{
		NewStartDate: start,
		NewEndDate:   end,
		NewRent:      body.NewRent,
		CreatedBy:    creds.ID,
	})
	if err != nil {
		h.writeError(w, r, err, "renewLease")
		return
	}

	problem.WriteJSON(w, http.StatusCreated, map[string]any{
		"renewal": toRenewalResponse(renewal),
		"lease":   toLeaseResponse(lease),
	})
}

func (h *Handler) ListRenewals(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeProblem(w, r, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	id, err := leaseIDFromRequest(r)
	if err != nil {
		h.writeError(w, r, err, "listRenewals")
		return
	}

	renewals, err := h.svc.ListRenewals(r.Context(), creds.ID, id)
	if err != nil {
		h.writeError(w, r, err, "listRenewals")
		return
	}

	items := make([]renewalResponse, 0, len(renewals))
	for _, renewal := range renewals {
		items = append(items, toRenewalResponse(renewal))
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type leaseResponse struct {
	LeaseID            uuid.UUID  `json:"leaseId"`
	PropertyID         uuid.UUID  `json:"propertyId"`
	UnitID             uuid.UUID  `json:"unitId"`
	TenantEmail        string     `json:"tenantEmail"`
	TenantUserID       *string    `json:"tenantUserId,omitempty"`
	StartDate          string     `json:"startDate"`
	EndDate            string     `json:"endDate"`
	RentAmount         float64    `json:"rentAmount"`
	SecurityDeposit    float64    `json:"securityDeposit"`
	TenantPaysElectric bool       `json:"tenantPaysElectric"`
	TenantPaysWater    bool       `json:"tenantPaysWater"`
	TenantPaysTrash    bool       `json:"tenantPaysTrash"`
	TenantPaysInternet bool       `json:"tenantPaysInternet"`
	Status             string     `json:"status"`
	EffectiveStatus    string     `json:"effectiveStatus"`
	LandlordSignedAt   *time.Time `json:"landlordSignedAt,omitempty"`
	TenantSignedAt     *time.Time `json:"tenantSignedAt,omitempty"`
	DocumentVersion    int        `json:"documentVersion"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type leaseViewResponse struct {
	leaseResponse
	Property persistence.Property `json:"property"`
	Unit     persistence.Unit     `json:"unit"`
}

type renewalResponse struct {
	RenewalID       uuid.UUID `json:"renewalId"`
	LeaseID         uuid.UUID `json:"leaseId"`
	PreviousEndDate string    `json:"previousEndDate"`
	PreviousRent    float64   `json:"previousRent"`
	NewStartDate    string    `json:"newStartDate"`
	NewEndDate      string    `json:"newEndDate"`
	NewRent         float64   `json:"newRent"`
	CreatedBy       string    `json:"createdBy"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toLeaseResponse(lease service.Lease) leaseResponse {
	return leaseResponse{
		LeaseID:            lease.LeaseID,
		PropertyID:         lease.PropertyID,
		UnitID:             lease.UnitID,
		TenantEmail:        lease.TenantEmail,
		TenantUserID:       lease.TenantUserID,
		StartDate:          lease.StartDate.Format(dateLayout),
		EndDate:            lease.EndDate.Format(dateLayout),
		RentAmount:         lease.RentAmount,
		SecurityDeposit:    lease.SecurityDeposit,
		TenantPaysElectric: lease.TenantPaysElectric,
		TenantPaysWater:    lease.TenantPaysWater,
		TenantPaysTrash:    lease.TenantPaysTrash,
		TenantPaysInternet: lease.TenantPaysInternet,
		Status:             lease.Status,
		EffectiveStatus:    lease.EffectiveStatus,
		LandlordSignedAt:   lease.LandlordSignedAt,
		TenantSignedAt:     lease.TenantSignedAt,
		DocumentVersion:    lease.DocumentVersion,
		CreatedAt:          lease.CreatedAt,
		UpdatedAt:          lease.UpdatedAt,
	}
}

func toLeaseViewResponse(view service.LeaseView) leaseViewResponse {
	return leaseViewResponse{
		leaseResponse: toLeaseResponse(view.Lease),
		Property:      view.Property,
		Unit:          view.Unit,
	}
}

func toRenewalResponse(renewal service.Renewal) renewalResponse {
	return renewalResponse{
		RenewalID:       renewal.RenewalID,
		LeaseID:         renewal.LeaseID,
		PreviousEndDate: renewal.PreviousEndDate.Format(dateLayout),
		PreviousRent:    renewal.PreviousRent,
		NewStartDate:    renewal.NewStartDate.Format(dateLayout),
		NewEndDate:      renewal.NewEndDate.Format(dateLayout),
		NewRent:         renewal.NewRent,
		CreatedBy:       renewal.CreatedBy,
		CreatedAt:       renewal.CreatedAt,
	}
}

func leaseIDFromRequest(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "leaseID"))
	if err != nil {
		return uuid.Nil, &service.ValidationError{Fields: service.FieldErrors{
			"leaseId": {"leaseId must be a UUID"},
		}}
	}
	return id, nil
}

func parseDate(fieldErrors service.FieldErrors, field, raw string) time.Time {
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		fieldErrors[field] = append(fieldErrors[field], field+" must be a YYYY-MM-DD date")
		return time.Time{}
	}
	return parsed
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status, details := h.classifyError(err)

	logger := h.loggerFrom(r)
	fields := []zap.Field{zap.String("operation", operation), zap.Int("status", status)}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("lease operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("lease not found", fields...)
	default:
		logger.Warn("lease request rejected", append(fields, zap.Error(err))...)
	}

	h.writeProblem(w, r, details)
}

func (h *Handler) classifyError(err error) (int, problem.Details) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			problem.New(http.StatusBadRequest, "Validation failed", "one or more fields are invalid", problem.TypeValidation).
				WithFields(validationErr.Fields)
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound,
			problem.New(http.StatusNotFound, "Resource not found", "lease not found", problem.TypeNotFound)
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden,
			problem.New(http.StatusForbidden, "Forbidden", "not allowed to act on this lease", problem.TypeForbidden)
	case errors.Is(err, service.ErrNotDraft):
		return http.StatusConflict,
			problem.New(http.StatusConflict, "Conflict", "lease terms are frozen once signatures are collected", problem.TypeConflict)
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict,
			problem.New(http.StatusConflict, "Conflict", "lease conflict", problem.TypeConflict)
	default:
		return http.StatusInternalServerError,
			problem.New(http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal)
	}
}

func (h *Handler) writeProblem(w http.ResponseWriter, r *http.Request, details problem.Details) {
	problem.Write(w, details)
	_ = r
}

func (h *Handler) loggerFrom(r *http.Request) *zap.Logger {
	if logger, ok := platformlogging.FromContext(r.Context()); ok {
		return logger
	}
	return h.logger
}
