package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/homebasehq/homebase/domains/amendments/be/service"
	platformauth "github.com/homebasehq/homebase/platform/go/auth"
)

type mockService struct {
	createFn func(ctx context.Context, managerID string, leaseID uuid.UUID, input service.CreateInput) (service.Amendment, error)
	getFn    func(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID) (service.Amendment, error)
	listFn   func(ctx context.Context, managerID string, leaseID uuid.UUID, status *string) ([]service.Amendment, error)
	applyFn  func(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID, action string) (service.ExecuteResult, error)
	deleteFn func(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID) error
}

func (m *mockService) Create(ctx context.Context, managerID string, leaseID uuid.UUID, input service.CreateInput) (service.Amendment, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, managerID, leaseID, input)
}

func (m *mockService) Get(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID) (service.Amendment, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, managerID, leaseID, amendmentID)
}

func (m *mockService) List(ctx context.Context, managerID string, leaseID uuid.UUID, status *string) ([]service.Amendment, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, managerID, leaseID, status)
}

func (m *mockService) Apply(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID, action string) (service.ExecuteResult, error) {
	if m.applyFn == nil {
		panic("applyFn not configured")
	}
	return m.applyFn(ctx, managerID, leaseID, amendmentID, action)
}

func (m *mockService) Delete(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID) error {
	if m.deleteFn == nil {
		panic("deleteFn not configured")
	}
	return m.deleteFn(ctx, managerID, leaseID, amendmentID)
}

func newRouter(t *testing.T, svc service.Service) chi.Router {
	t.Helper()
	router := chi.NewRouter()
	New(svc, zaptest.NewLogger(t)).Routes(router)
	return router
}

func asManager(r *http.Request) *http.Request {
	creds := &platformauth.UserCredentials{ID: "mgr-1", Email: "mgr-1@example.com", Role: platformauth.RoleManager}
	return r.WithContext(platformauth.WithUser(r.Context(), creds))
}

func sampleAmendment(leaseID uuid.UUID) service.Amendment {
	now := time.Now().UTC()
	return service.Amendment{
		AmendmentID:   uuid.New(),
		LeaseID:       leaseID,
		AmendmentType: "RENT_CHANGE",
		EffectiveDate: now.AddDate(0, 1, 0),
		Description:   "Rent adjustment",
		Changes:       json.RawMessage(`{"rentAmount": 1400}`),
		Status:        "PENDING",
		CreatedBy:     "mgr-1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestAmendmentRoutesRequireAuthentication(t *testing.T) {
	t.Parallel()

	router := newRouter(t, &mockService{})

	req := httptest.NewRequest(http.MethodGet, "/leases/"+uuid.NewString()+"/amendments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAmendmentSuccess(t *testing.T) {
	t.Parallel()

	leaseID := uuid.New()
	svc := &mockService{}
	svc.createFn = func(ctx context.Context, managerID string, gotLease uuid.UUID, input service.CreateInput) (service.Amendment, error) {
		require.Equal(t, "mgr-1", managerID)
		require.Equal(t, leaseID, gotLease)
		require.Equal(t, "RENT_CHANGE", input.AmendmentType)
		require.JSONEq(t, `{"rentAmount": 1400}`, string(input.Changes))
		return sampleAmendment(leaseID), nil
	}

	router := newRouter(t, svc)

	body := `{"amendmentType":"RENT_CHANGE","effectiveDate":"2026-10-01","description":"Rent adjustment","changes":{"rentAmount":1400}}`
	req := httptest.NewRequest(http.MethodPost, "/leases/"+leaseID.String()+"/amendments", strings.NewReader(body))
	req = asManager(req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), leaseID.String())
}

func TestApplyPassesActionThrough(t *testing.T) {
	t.Parallel()

	leaseID := uuid.New()
	amendmentID := uuid.New()

	svc := &mockService{}
	svc.applyFn = func(ctx context.Context, managerID string, gotLease, gotAmendment uuid.UUID, action string) (service.ExecuteResult, error) {
		require.Equal(t, leaseID, gotLease)
		require.Equal(t, amendmentID, gotAmendment)
		require.Equal(t, service.ActionApprove, action)
		approved := sampleAmendment(leaseID)
		approved.AmendmentID = gotAmendment
		approved.Status = "APPROVED"
		return service.ExecuteResult{Amendment: approved}, nil
	}

	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodPatch,
		"/leases/"+leaseID.String()+"/amendments/"+amendmentID.String(),
		strings.NewReader(`{"action":"APPROVE"}`))
	req = asManager(req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "APPROVED")
}

func TestApplyInvalidTransitionConflicts(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	svc.applyFn = func(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID, action string) (service.ExecuteResult, error) {
		return service.ExecuteResult{}, service.ErrInvalidTransition
	}

	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodPatch,
		"/leases/"+uuid.NewString()+"/amendments/"+uuid.NewString(),
		strings.NewReader(`{"action":"EXECUTE"}`))
	req = asManager(req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteAmendmentNoContent(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	svc.deleteFn = func(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID) error {
		return nil
	}

	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodDelete,
		"/leases/"+uuid.NewString()+"/amendments/"+uuid.NewString(), nil)
	req = asManager(req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListAmendmentsForwardsStatusFilter(t *testing.T) {
	t.Parallel()

	leaseID := uuid.New()
	svc := &mockService{}
	svc.listFn = func(ctx context.Context, managerID string, gotLease uuid.UUID, status *string) ([]service.Amendment, error) {
		require.Equal(t, "mgr-1", managerID)
		require.Equal(t, leaseID, gotLease)
		require.NotNil(t, status)
		require.Equal(t, "PENDING", *status)
		return []service.Amendment{sampleAmendment(gotLease)}, nil
	}

	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/leases/"+leaseID.String()+"/amendments?status=PENDING", nil)
	req = asManager(req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Items, 1)
}
