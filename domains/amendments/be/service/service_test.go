package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

type fakeRepository struct {
	amendments map[uuid.UUID]persistence.Amendment
	leases     map[uuid.UUID]persistence.Lease
	properties map[uuid.UUID]persistence.Property
	now        time.Time
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		amendments: map[uuid.UUID]persistence.Amendment{},
		leases:     map[uuid.UUID]persistence.Lease{},
		properties: map[uuid.UUID]persistence.Property{},
		now:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepository) CreateAmendment(_ context.Context, params persistence.CreateAmendmentParams) (persistence.Amendment, error) {
	if _, ok := f.leases[params.LeaseID]; !ok {
		return persistence.Amendment{}, persistence.ErrLeaseNotFound
	}
	amendment := persistence.Amendment{
		AmendmentID:       params.AmendmentID,
		LeaseID:           params.LeaseID,
		AmendmentType:     params.AmendmentType,
		EffectiveDate:     params.EffectiveDate,
		Description:       params.Description,
		Changes:           params.Changes,
		PreviousValues:    params.PreviousValues,
		Status:            persistence.AmendmentStatusPending,
		RequiresSignature: params.RequiresSignature,
		CreatedBy:         params.CreatedBy,
		CreatedAt:         f.now,
		UpdatedAt:         f.now,
	}
	f.amendments[amendment.AmendmentID] = amendment
	return amendment, nil
}

func (f *fakeRepository) GetAmendment(_ context.Context, id uuid.UUID) (persistence.Amendment, error) {
	amendment, ok := f.amendments[id]
	if !ok {
		return persistence.Amendment{}, persistence.ErrAmendmentNotFound
	}
	return amendment, nil
}

func (f *fakeRepository) ListAmendments(_ context.Context, leaseID uuid.UUID, status *string) ([]persistence.Amendment, error) {
	results := []persistence.Amendment{}
	for _, amendment := range f.amendments {
		if amendment.LeaseID != leaseID {
			continue
		}
		if status != nil && amendment.Status != *status {
			continue
		}
		results = append(results, amendment)
	}
	return results, nil
}

func (f *fakeRepository) SetDecision(_ context.Context, id uuid.UUID, status, decidedBy string, decidedAt time.Time) (persistence.Amendment, error) {
	amendment, ok := f.amendments[id]
	if !ok {
		return persistence.Amendment{}, persistence.ErrAmendmentNotFound
	}
	if amendment.Status != persistence.AmendmentStatusPending {
		return persistence.Amendment{}, persistence.ErrAmendmentConflict
	}
	amendment.Status = status
	if status == persistence.AmendmentStatusRejected {
		amendment.RejectedBy = &decidedBy
		amendment.RejectedAt = &decidedAt
	} else {
		amendment.ApprovedBy = &decidedBy
		amendment.ApprovedAt = &decidedAt
	}
	f.amendments[id] = amendment
	return amendment, nil
}

func (f *fakeRepository) ExecuteAmendment(_ context.Context, id uuid.UUID, executedBy string, executedAt time.Time) (persistence.Amendment, persistence.Lease, error) {
	amendment, ok := f.amendments[id]
	if !ok {
		return persistence.Amendment{}, persistence.Lease{}, persistence.ErrAmendmentNotFound
	}
	if amendment.Status != persistence.AmendmentStatusApproved {
		return persistence.Amendment{}, persistence.Lease{}, persistence.ErrAmendmentConflict
	}

	lease := f.leases[amendment.LeaseID]
	var changes map[string]any
	if err := json.Unmarshal(amendment.Changes, &changes); err != nil {
		return persistence.Amendment{}, persistence.Lease{}, err
	}
	if rent, ok := changes["rentAmount"].(float64); ok {
		lease.RentAmount = rent
	}
	if deposit, ok := changes["securityDeposit"].(float64); ok {
		lease.SecurityDeposit = deposit
	}
	if end, ok := changes["endDate"].(string); ok {
		parsed, err := time.Parse("2006-01-02", end)
		if err != nil {
			return persistence.Amendment{}, persistence.Lease{}, err
		}
		lease.EndDate = parsed
	}
	if amendment.RequiresSignature {
		lease.TenantSignedAt = nil
		lease.LandlordSignedAt = nil
		lease.Status = persistence.LeaseStatusDraft
		lease.DocumentVersion++
	}
	f.leases[amendment.LeaseID] = lease

	amendment.Status = persistence.AmendmentStatusExecuted
	amendment.ExecutedBy = &executedBy
	amendment.ExecutedAt = &executedAt
	f.amendments[id] = amendment
	return amendment, lease, nil
}

func (f *fakeRepository) DeletePending(_ context.Context, id uuid.UUID) error {
	amendment, ok := f.amendments[id]
	if !ok {
		return persistence.ErrAmendmentNotFound
	}
	if amendment.Status != persistence.AmendmentStatusPending {
		return persistence.ErrAmendmentConflict
	}
	delete(f.amendments, id)
	return nil
}

func (f *fakeRepository) GetLease(_ context.Context, id uuid.UUID) (persistence.Lease, error) {
	lease, ok := f.leases[id]
	if !ok {
		return persistence.Lease{}, persistence.ErrLeaseNotFound
	}
	return lease, nil
}

func (f *fakeRepository) GetProperty(_ context.Context, id uuid.UUID) (persistence.Property, error) {
	property, ok := f.properties[id]
	if !ok {
		return persistence.Property{}, persistence.ErrPropertyNotFound
	}
	return property, nil
}

const managerID = "manager-1"

func seedLease(f *fakeRepository) persistence.Lease {
	property := persistence.Property{PropertyID: uuid.New(), ManagerID: managerID}
	f.properties[property.PropertyID] = property

	signedAt := f.now.Add(-24 * time.Hour)
	lease := persistence.Lease{
		LeaseID:          uuid.New(),
		PropertyID:       property.PropertyID,
		UnitID:           uuid.New(),
		TenantEmail:      "tenant@example.com",
		StartDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		RentAmount:       1500,
		SecurityDeposit:  1500,
		Status:           persistence.LeaseStatusSigned,
		TenantSignedAt:   &signedAt,
		LandlordSignedAt: &signedAt,
	}
	f.leases[lease.LeaseID] = lease
	return lease
}

func newService(repo *fakeRepository) *service {
	return &service{
		repo:      repo,
		validator: persistence.NewChangesValidator(),
		now:       func() time.Time { return repo.now },
	}
}

func TestCreateSnapshotsPreviousValues(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	amendment, err := svc.Create(context.Background(), managerID, lease.LeaseID, CreateInput{
		AmendmentType: persistence.AmendmentTypeRentChange,
		EffectiveDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Description:   "annual increase",
		Changes:       json.RawMessage(`{"rentAmount": 1600}`),
	})
	require.NoError(t, err)
	require.Equal(t, persistence.AmendmentStatusPending, amendment.Status)

	var previous map[string]any
	require.NoError(t, json.Unmarshal(amendment.PreviousValues, &previous))
	require.Equal(t, 1500.0, previous["rentAmount"])
}

func TestCreateRejectsInvalidChanges(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	var validationErr *ValidationError

	// RENT_CHANGE without rentAmount
	_, err := svc.Create(context.Background(), managerID, lease.LeaseID, CreateInput{
		AmendmentType: persistence.AmendmentTypeRentChange,
		EffectiveDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Description:   "broken",
		Changes:       json.RawMessage(`{"endDate": "2025-06-30"}`),
	})
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "changes")

	// negative rent
	_, err = svc.Create(context.Background(), managerID, lease.LeaseID, CreateInput{
		AmendmentType: persistence.AmendmentTypeRentChange,
		EffectiveDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Description:   "broken",
		Changes:       json.RawMessage(`{"rentAmount": -10}`),
	})
	require.ErrorAs(t, err, &validationErr)

	// empty changes
	_, err = svc.Create(context.Background(), managerID, lease.LeaseID, CreateInput{
		AmendmentType: persistence.AmendmentTypeOther,
		EffectiveDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Description:   "broken",
		Changes:       json.RawMessage(`{}`),
	})
	require.ErrorAs(t, err, &validationErr)

	// unknown type
	_, err = svc.Create(context.Background(), managerID, lease.LeaseID, CreateInput{
		AmendmentType: "PET_POLICY",
		EffectiveDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Description:   "broken",
		Changes:       json.RawMessage(`{"rentAmount": 1600}`),
	})
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "amendmentType")
}

func TestCreateEnforcesOwnership(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	_, err := svc.Create(context.Background(), "intruder", lease.LeaseID, CreateInput{
		AmendmentType: persistence.AmendmentTypeRentChange,
		EffectiveDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Description:   "increase",
		Changes:       json.RawMessage(`{"rentAmount": 1600}`),
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func createPending(t *testing.T, svc Service, leaseID uuid.UUID, requiresSignature bool) Amendment {
	t.Helper()
	amendment, err := svc.Create(context.Background(), managerID, leaseID, CreateInput{
		AmendmentType:     persistence.AmendmentTypeRentChange,
		EffectiveDate:     time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		Description:       "annual increase",
		Changes:           json.RawMessage(`{"rentAmount": 1600}`),
		RequiresSignature: requiresSignature,
	})
	require.NoError(t, err)
	return amendment
}

func TestApproveThenExecute(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)
	amendment := createPending(t, svc, lease.LeaseID, false)

	approved, err := svc.Apply(context.Background(), managerID, lease.LeaseID, amendment.AmendmentID, ActionApprove)
	require.NoError(t, err)
	require.Equal(t, persistence.AmendmentStatusApproved, approved.Amendment.Status)

	executed, err := svc.Apply(context.Background(), managerID, lease.LeaseID, amendment.AmendmentID, ActionExecute)
	require.NoError(t, err)
	require.Equal(t, persistence.AmendmentStatusExecuted, executed.Amendment.Status)
	require.Equal(t, 1600.0, executed.Lease.RentAmount)
	// no signature reset requested, so the lease stays signed
	require.Equal(t, persistence.LeaseStatusSigned, executed.Lease.Status)
	require.NotNil(t, executed.Lease.TenantSignedAt)
}

func TestExecuteWithSignatureResetReopensLease(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)
	amendment := createPending(t, svc, lease.LeaseID, true)

	_, err := svc.Apply(context.Background(), managerID, lease.LeaseID, amendment.AmendmentID, ActionApprove)
	require.NoError(t, err)

	executed, err := svc.Apply(context.Background(), managerID, lease.LeaseID, amendment.AmendmentID, ActionExecute)
	require.NoError(t, err)
	require.Equal(t, persistence.LeaseStatusDraft, executed.Lease.Status)
	require.Nil(t, executed.Lease.TenantSignedAt)
	require.Nil(t, executed.Lease.LandlordSignedAt)
	require.Equal(t, 1, executed.Lease.DocumentVersion)
}

func TestIllegalTransitionsConflict(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)
	amendment := createPending(t, svc, lease.LeaseID, false)

	// EXECUTE before APPROVE
	_, err := svc.Apply(context.Background(), managerID, lease.LeaseID, amendment.AmendmentID, ActionExecute)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Apply(context.Background(), managerID, lease.LeaseID, amendment.AmendmentID, ActionReject)
	require.NoError(t, err)

	// REJECTED is terminal
	_, err = svc.Apply(context.Background(), managerID, lease.LeaseID, amendment.AmendmentID, ActionApprove)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Apply(context.Background(), managerID, lease.LeaseID, amendment.AmendmentID, ActionExecute)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeleteOnlyPending(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	pending := createPending(t, svc, lease.LeaseID, false)
	require.NoError(t, svc.Delete(context.Background(), managerID, lease.LeaseID, pending.AmendmentID))

	approved := createPending(t, svc, lease.LeaseID, false)
	_, err := svc.Apply(context.Background(), managerID, lease.LeaseID, approved.AmendmentID, ActionApprove)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), managerID, lease.LeaseID, approved.AmendmentID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGetScopedToLease(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	other := seedLease(repo)
	svc := newService(repo)
	amendment := createPending(t, svc, lease.LeaseID, false)

	_, err := svc.Get(context.Background(), managerID, other.LeaseID, amendment.AmendmentID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReadsEnforceOwnership(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)
	amendment := createPending(t, svc, lease.LeaseID, false)

	_, err := svc.Get(context.Background(), "intruder", lease.LeaseID, amendment.AmendmentID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.List(context.Background(), "intruder", lease.LeaseID, nil)
	require.ErrorIs(t, err, ErrForbidden)

	got, err := svc.Get(context.Background(), managerID, lease.LeaseID, amendment.AmendmentID)
	require.NoError(t, err)
	require.Equal(t, amendment.AmendmentID, got.AmendmentID)

	listed, err := svc.List(context.Background(), managerID, lease.LeaseID, nil)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}

func TestRejectRecordsItsOwnDecider(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)
	amendment := createPending(t, svc, lease.LeaseID, false)

	rejected, err := svc.Apply(context.Background(), managerID, lease.LeaseID, amendment.AmendmentID, ActionReject)
	require.NoError(t, err)
	require.Equal(t, persistence.AmendmentStatusRejected, rejected.Amendment.Status)
	require.NotNil(t, rejected.Amendment.RejectedBy)
	require.Equal(t, managerID, *rejected.Amendment.RejectedBy)
	require.Nil(t, rejected.Amendment.ApprovedBy)
	require.Nil(t, rejected.Amendment.ApprovedAt)
}
