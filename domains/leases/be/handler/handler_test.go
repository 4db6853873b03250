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

	"github.com/homebasehq/homebase/domains/leases/be/service"
	platformauth "github.com/homebasehq/homebase/platform/go/auth"
)

type mockService struct {
	createFn       func(ctx context.Context, managerID string, input service.CreateInput) (service.LeaseView, error)
	getFn          func(ctx context.Context, id uuid.UUID, viewer service.Viewer) (service.LeaseView, error)
	listFn         func(ctx context.Context, input service.ListInput) ([]service.Lease, error)
	updateDraftFn  func(ctx context.Context, managerID string, id uuid.UUID, input service.UpdateInput) (service.Lease, error)
	signFn         func(ctx context.Context, id uuid.UUID, party service.Party, input service.SignInput) (service.SignResult, error)
	renewFn        func(ctx context.Context, managerID string, id uuid.UUID, input service.RenewInput) (service.Renewal, service.Lease, error)
	listRenewalsFn func(ctx context.Context, managerID string, id uuid.UUID) ([]service.Renewal, error)
}

func (m *mockService) Create(ctx context.Context, managerID string, input service.CreateInput) (service.LeaseView, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, managerID, input)
}

func (m *mockService) Get(ctx context.Context, id uuid.UUID, viewer service.Viewer) (service.LeaseView, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id, viewer)
}

func (m *mockService) List(ctx context.Context, input service.ListInput) ([]service.Lease, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, input)
}

func (m *mockService) UpdateDraft(ctx context.Context, managerID string, id uuid.UUID, input service.UpdateInput) (service.Lease, error) {
	if m.updateDraftFn == nil {
		panic("updateDraftFn not configured")
	}
	return m.updateDraftFn(ctx, managerID, id, input)
}

func (m *mockService) Sign(ctx context.Context, id uuid.UUID, party service.Party, input service.SignInput) (service.SignResult, error) {
	if m.signFn == nil {
		panic("signFn not configured")
	}
	return m.signFn(ctx, id, party, input)
}

func (m *mockService) Renew(ctx context.Context, managerID string, id uuid.UUID, input service.RenewInput) (service.Renewal, service.Lease, error) {
	if m.renewFn == nil {
		panic("renewFn not configured")
	}
	return m.renewFn(ctx, managerID, id, input)
}

func (m *mockService) ListRenewals(ctx context.Context, managerID string, id uuid.UUID) ([]service.Renewal, error) {
	if m.listRenewalsFn == nil {
		panic("listRenewalsFn not configured")
	}
	return m.listRenewalsFn(ctx, managerID, id)
}

func newRouter(t *testing.T, svc service.Service) chi.Router {
	t.Helper()
	router := chi.NewRouter()
	New(svc, zaptest.NewLogger(t)).Routes(router)
	return router
}

func asUser(r *http.Request, id, role string) *http.Request {
	creds := &platformauth.UserCredentials{ID: id, Email: id + "@example.com", Role: role}
	return r.WithContext(platformauth.WithUser(r.Context(), creds))
}

func sampleLease(id uuid.UUID) service.Lease {
	now := time.Now().UTC()
	return service.Lease{
		LeaseID:         id,
		PropertyID:      uuid.New(),
		UnitID:          uuid.New(),
		TenantEmail:     "tenant@example.com",
		StartDate:       now,
		EndDate:         now.AddDate(1, 0, 0),
		RentAmount:      1200,
		Status:          service.StatusDraft,
		EffectiveStatus: service.StatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestTenantSignPassesInviteToken(t *testing.T) {
	t.Parallel()

	leaseID := uuid.New()
	svc := &mockService{}
	svc.signFn = func(ctx context.Context, id uuid.UUID, party service.Party, input service.SignInput) (service.SignResult, error) {
		require.Equal(t, leaseID, id)
		require.Equal(t, service.PartyTenant, party)
		require.Equal(t, "tok-123", input.Token)
		require.Nil(t, input.TenantUserID)
		return service.SignResult{
			Message: "lease signed",
			Applied: true,
			Lease:   service.LeaseView{Lease: sampleLease(id)},
		}, nil
	}

	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/leases/"+leaseID.String()+"/sign/tenant",
		strings.NewReader(`{"token":"tok-123"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "lease signed", payload.Message)
}

func TestLandlordSignRequiresAuthentication(t *testing.T) {
	t.Parallel()

	router := newRouter(t, &mockService{})

	req := httptest.NewRequest(http.MethodPost, "/leases/"+uuid.NewString()+"/sign/landlord", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestSignRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	router := newRouter(t, &mockService{})

	req := httptest.NewRequest(http.MethodPost, "/leases/"+uuid.NewString()+"/sign/witness", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateLeaseRequiresManagerRole(t *testing.T) {
	t.Parallel()

	router := newRouter(t, &mockService{})

	req := httptest.NewRequest(http.MethodPost, "/leases", strings.NewReader(`{}`))
	req = asUser(req, "user-1", platformauth.RoleTenant)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateLeaseValidatesDates(t *testing.T) {
	t.Parallel()

	router := newRouter(t, &mockService{})

	body := `{"propertyId":"` + uuid.NewString() + `","unitId":"` + uuid.NewString() +
		`","tenantEmail":"tenant@example.com","startDate":"not-a-date","endDate":"2026-01-01"}`
	req := httptest.NewRequest(http.MethodPost, "/leases", strings.NewReader(body))
	req = asUser(req, "mgr-1", platformauth.RoleManager)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "startDate")
}

func TestCreateLeaseSuccess(t *testing.T) {
	t.Parallel()

	leaseID := uuid.New()
	svc := &mockService{}
	svc.createFn = func(ctx context.Context, managerID string, input service.CreateInput) (service.LeaseView, error) {
		require.Equal(t, "mgr-1", managerID)
		require.Equal(t, "tenant@example.com", input.TenantEmail)
		return service.LeaseView{Lease: sampleLease(leaseID)}, nil
	}

	router := newRouter(t, svc)

	body := `{"propertyId":"` + uuid.NewString() + `","unitId":"` + uuid.NewString() +
		`","tenantEmail":"tenant@example.com","startDate":"2026-01-01","endDate":"2027-01-01","rentAmount":1200}`
	req := httptest.NewRequest(http.MethodPost, "/leases", strings.NewReader(body))
	req = asUser(req, "mgr-1", platformauth.RoleManager)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), leaseID.String())
}

func TestUpdateLeaseConflictWhenNotDraft(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	svc.updateDraftFn = func(ctx context.Context, managerID string, id uuid.UUID, input service.UpdateInput) (service.Lease, error) {
		return service.Lease{}, service.ErrNotDraft
	}

	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodPatch, "/leases/"+uuid.NewString(), strings.NewReader(`{"rentAmount":1300}`))
	req = asUser(req, "mgr-1", platformauth.RoleManager)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetLeaseNotFound(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	svc.getFn = func(ctx context.Context, id uuid.UUID, viewer service.Viewer) (service.LeaseView, error) {
		return service.LeaseView{}, service.ErrNotFound
	}

	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/leases/"+uuid.NewString(), nil)
	req = asUser(req, "mgr-1", platformauth.RoleManager)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLeaseRequiresAuthOrToken(t *testing.T) {
	t.Parallel()

	// No getFn configured: the request must be rejected before the service.
	router := newRouter(t, &mockService{})

	req := httptest.NewRequest(http.MethodGet, "/leases/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestGetLeaseForwardsInviteToken(t *testing.T) {
	t.Parallel()

	leaseID := uuid.New()
	svc := &mockService{}
	svc.getFn = func(ctx context.Context, id uuid.UUID, viewer service.Viewer) (service.LeaseView, error) {
		require.Equal(t, leaseID, id)
		require.Equal(t, "tok-123", viewer.Token)
		require.Empty(t, viewer.UserID)
		return service.LeaseView{Lease: sampleLease(id)}, nil
	}

	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/leases/"+leaseID.String()+"?token=tok-123", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), leaseID.String())
}

func TestListRenewalsPassesManager(t *testing.T) {
	t.Parallel()

	leaseID := uuid.New()
	svc := &mockService{}
	svc.listRenewalsFn = func(ctx context.Context, managerID string, id uuid.UUID) ([]service.Renewal, error) {
		require.Equal(t, "mgr-1", managerID)
		require.Equal(t, leaseID, id)
		return []service.Renewal{}, nil
	}

	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/leases/"+leaseID.String()+"/renewals", nil)
	req = asUser(req, "mgr-1", platformauth.RoleManager)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListLeasesScopesToManagerByDefault(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	svc.listFn = func(ctx context.Context, input service.ListInput) ([]service.Lease, error) {
		require.NotNil(t, input.ManagerID)
		require.Equal(t, "mgr-1", *input.ManagerID)
		return []service.Lease{sampleLease(uuid.New())}, nil
	}

	router := newRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/leases", nil)
	req = asUser(req, "mgr-1", platformauth.RoleManager)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Items, 1)
}
