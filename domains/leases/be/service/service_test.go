package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

type fakeRepository struct {
	leases     map[uuid.UUID]persistence.Lease
	properties map[uuid.UUID]persistence.Property
	units      map[uuid.UUID]persistence.Unit
	invites    map[string]persistence.Invite
	renewals   []persistence.Renewal
	now        time.Time
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		leases:     map[uuid.UUID]persistence.Lease{},
		properties: map[uuid.UUID]persistence.Property{},
		units:      map[uuid.UUID]persistence.Unit{},
		invites:    map[string]persistence.Invite{},
		now:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepository) CreateLease(_ context.Context, params persistence.CreateLeaseParams) (persistence.Lease, error) {
	lease := persistence.Lease{
		LeaseID:         params.LeaseID,
		PropertyID:      params.PropertyID,
		UnitID:          params.UnitID,
		TenantEmail:     params.TenantEmail,
		StartDate:       params.StartDate,
		EndDate:         params.EndDate,
		RentAmount:      params.RentAmount,
		SecurityDeposit: params.SecurityDeposit,
		Status:          persistence.LeaseStatusDraft,
		CreatedAt:       f.now,
		UpdatedAt:       f.now,
	}
	f.leases[lease.LeaseID] = lease
	return lease, nil
}

func (f *fakeRepository) GetLease(_ context.Context, id uuid.UUID) (persistence.Lease, error) {
	lease, ok := f.leases[id]
	if !ok {
		return persistence.Lease{}, persistence.ErrLeaseNotFound
	}
	return lease, nil
}

func (f *fakeRepository) GetLeaseDetail(_ context.Context, id uuid.UUID) (persistence.LeaseDetail, error) {
	lease, ok := f.leases[id]
	if !ok {
		return persistence.LeaseDetail{}, persistence.ErrLeaseNotFound
	}
	return persistence.LeaseDetail{
		Lease:    lease,
		Property: f.properties[lease.PropertyID],
		Unit:     f.units[lease.UnitID],
	}, nil
}

func (f *fakeRepository) ListLeases(_ context.Context, params persistence.ListLeasesParams) ([]persistence.Lease, error) {
	results := []persistence.Lease{}
	for _, lease := range f.leases {
		if params.PropertyID != nil && lease.PropertyID != *params.PropertyID {
			continue
		}
		if params.ManagerID != nil && f.properties[lease.PropertyID].ManagerID != *params.ManagerID {
			continue
		}
		results = append(results, lease)
	}
	return results, nil
}

func (f *fakeRepository) UpdateDraftLease(_ context.Context, id uuid.UUID, params persistence.UpdateDraftLeaseParams) (persistence.Lease, error) {
	lease, ok := f.leases[id]
	if !ok {
		return persistence.Lease{}, persistence.ErrLeaseNotFound
	}
	if lease.Status != persistence.LeaseStatusDraft || lease.TenantSignedAt != nil || lease.LandlordSignedAt != nil {
		return persistence.Lease{}, persistence.ErrLeaseNotDraft
	}
	if params.StartDate != nil {
		lease.StartDate = *params.StartDate
	}
	if params.EndDate != nil {
		lease.EndDate = *params.EndDate
	}
	if params.RentAmount != nil {
		lease.RentAmount = *params.RentAmount
	}
	if params.SecurityDeposit != nil {
		lease.SecurityDeposit = *params.SecurityDeposit
	}
	if params.TenantEmail != nil {
		lease.TenantEmail = *params.TenantEmail
	}
	f.leases[id] = lease
	return lease, nil
}

func (f *fakeRepository) ApplyTenantSignature(_ context.Context, id uuid.UUID, signedAt time.Time, tenantUserID *string) (persistence.Lease, bool, error) {
	lease, ok := f.leases[id]
	if !ok {
		return persistence.Lease{}, false, persistence.ErrLeaseNotFound
	}
	if lease.TenantSignedAt != nil {
		return lease, false, nil
	}
	lease.TenantSignedAt = &signedAt
	if tenantUserID != nil {
		lease.TenantUserID = tenantUserID
	}
	if lease.LandlordSignedAt != nil {
		lease.Status = persistence.LeaseStatusSigned
	}
	f.leases[id] = lease
	return lease, true, nil
}

func (f *fakeRepository) ApplyLandlordSignature(_ context.Context, id uuid.UUID, signedAt time.Time) (persistence.Lease, bool, error) {
	lease, ok := f.leases[id]
	if !ok {
		return persistence.Lease{}, false, persistence.ErrLeaseNotFound
	}
	if lease.LandlordSignedAt != nil {
		return lease, false, nil
	}
	lease.LandlordSignedAt = &signedAt
	if lease.TenantSignedAt != nil {
		lease.Status = persistence.LeaseStatusSigned
	}
	f.leases[id] = lease
	return lease, true, nil
}

func (f *fakeRepository) CreateRenewal(_ context.Context, params persistence.CreateRenewalParams) (persistence.Renewal, persistence.Lease, error) {
	lease, ok := f.leases[params.LeaseID]
	if !ok {
		return persistence.Renewal{}, persistence.Lease{}, persistence.ErrLeaseNotFound
	}
	renewal := persistence.Renewal{
		RenewalID:       params.RenewalID,
		LeaseID:         params.LeaseID,
		PreviousEndDate: lease.EndDate,
		PreviousRent:    lease.RentAmount,
		NewStartDate:    params.NewStartDate,
		NewEndDate:      params.NewEndDate,
		NewRent:         params.NewRent,
		CreatedBy:       params.CreatedBy,
		CreatedAt:       f.now,
	}
	f.renewals = append(f.renewals, renewal)

	lease.StartDate = params.NewStartDate
	lease.EndDate = params.NewEndDate
	lease.RentAmount = params.NewRent
	lease.TenantSignedAt = nil
	lease.LandlordSignedAt = nil
	lease.Status = persistence.LeaseStatusDraft
	lease.DocumentVersion++
	f.leases[params.LeaseID] = lease
	return renewal, lease, nil
}

func (f *fakeRepository) ListRenewals(_ context.Context, leaseID uuid.UUID) ([]persistence.Renewal, error) {
	results := []persistence.Renewal{}
	for _, renewal := range f.renewals {
		if renewal.LeaseID == leaseID {
			results = append(results, renewal)
		}
	}
	return results, nil
}

func (f *fakeRepository) GetProperty(_ context.Context, id uuid.UUID) (persistence.Property, error) {
	property, ok := f.properties[id]
	if !ok {
		return persistence.Property{}, persistence.ErrPropertyNotFound
	}
	return property, nil
}

func (f *fakeRepository) GetUnit(_ context.Context, id uuid.UUID) (persistence.Unit, error) {
	unit, ok := f.units[id]
	if !ok {
		return persistence.Unit{}, persistence.ErrUnitNotFound
	}
	return unit, nil
}

func (f *fakeRepository) GetInviteByToken(_ context.Context, token string) (persistence.Invite, error) {
	invite, ok := f.invites[token]
	if !ok {
		return persistence.Invite{}, persistence.ErrInviteNotFound
	}
	return invite, nil
}

func (f *fakeRepository) MarkInviteAccepted(_ context.Context, token string, now time.Time) (persistence.Invite, error) {
	invite, ok := f.invites[token]
	if !ok {
		return persistence.Invite{}, persistence.ErrInviteNotFound
	}
	if invite.Accepted || !invite.ExpiresAt.After(now) {
		return persistence.Invite{}, persistence.ErrInviteConflict
	}
	invite.Accepted = true
	f.invites[token] = invite
	return invite, nil
}

const managerID = "manager-1"

func seedLease(f *fakeRepository) persistence.Lease {
	property := persistence.Property{PropertyID: uuid.New(), ManagerID: managerID, Name: "Maple Court"}
	unit := persistence.Unit{UnitID: uuid.New(), PropertyID: property.PropertyID, UnitNumber: "2B"}
	f.properties[property.PropertyID] = property
	f.units[unit.UnitID] = unit

	lease := persistence.Lease{
		LeaseID:     uuid.New(),
		PropertyID:  property.PropertyID,
		UnitID:      unit.UnitID,
		TenantEmail: "tenant@example.com",
		StartDate:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		RentAmount:  1500,
		Status:      persistence.LeaseStatusDraft,
	}
	f.leases[lease.LeaseID] = lease
	return lease
}

func seedInvite(f *fakeRepository, leaseID uuid.UUID, token string) persistence.Invite {
	invite := persistence.Invite{
		InviteID:  uuid.New(),
		Token:     token,
		Email:     "tenant@example.com",
		LeaseID:   &leaseID,
		ExpiresAt: f.now.Add(14 * 24 * time.Hour),
	}
	f.invites[token] = invite
	return invite
}

func newService(repo *fakeRepository) *service {
	return &service{repo: repo, now: func() time.Time { return repo.now }}
}

func TestParseParty(t *testing.T) {
	t.Parallel()

	party, err := ParseParty("tenant")
	require.NoError(t, err)
	require.Equal(t, PartyTenant, party)

	party, err = ParseParty("LANDLORD")
	require.NoError(t, err)
	require.Equal(t, PartyLandlord, party)

	_, err = ParseParty("witness")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "role")
}

func TestSignTenantRequiresToken(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	_, err := svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "token")
}

func TestSignTenantHappyPath(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	seedInvite(repo, lease.LeaseID, "tok-abc")
	svc := newService(repo)

	result, err := svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{Token: "tok-abc"})
	require.NoError(t, err)
	require.True(t, result.Applied)
	require.NotNil(t, result.Lease.Lease.TenantSignedAt)
	require.Equal(t, StatusDraft, result.Lease.Lease.Status)
	require.True(t, repo.invites["tok-abc"].Accepted)
}

func TestSignTenantUnknownTokenForbidden(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	_, err := svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{Token: "nope"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestSignTenantTokenScopedToLease(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	other := seedLease(repo)
	seedInvite(repo, other.LeaseID, "tok-other")
	svc := newService(repo)

	_, err := svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{Token: "tok-other"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestSignTenantExpiredInviteForbidden(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	invite := seedInvite(repo, lease.LeaseID, "tok-old")
	invite.ExpiresAt = repo.now.Add(-time.Hour)
	repo.invites["tok-old"] = invite
	svc := newService(repo)

	_, err := svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{Token: "tok-old"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestSignTenantIdempotent(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	seedInvite(repo, lease.LeaseID, "tok-abc")
	svc := newService(repo)

	first, err := svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{Token: "tok-abc"})
	require.NoError(t, err)
	require.True(t, first.Applied)

	// the second call succeeds even though the invite is now consumed
	second, err := svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{Token: "tok-abc"})
	require.NoError(t, err)
	require.False(t, second.Applied)
	require.Equal(t, first.Lease.Lease.TenantSignedAt, second.Lease.Lease.TenantSignedAt)
}

func TestSignTenantSignedLeaseStillRequiresToken(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	seedInvite(repo, lease.LeaseID, "tok-abc")
	other := seedLease(repo)
	seedInvite(repo, other.LeaseID, "tok-other")
	svc := newService(repo)

	_, err := svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{Token: "tok-abc"})
	require.NoError(t, err)

	// A signed lease must not be readable through a tokenless sign request.
	_, err = svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "token")

	_, err = svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{Token: "nope"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{Token: "tok-other"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestSignLandlordOwnershipEnforced(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	_, err := svc.Sign(context.Background(), lease.LeaseID, PartyLandlord, SignInput{ManagerID: "someone-else"})
	require.ErrorIs(t, err, ErrForbidden)

	result, err := svc.Sign(context.Background(), lease.LeaseID, PartyLandlord, SignInput{ManagerID: managerID})
	require.NoError(t, err)
	require.True(t, result.Applied)
	require.NotNil(t, result.Lease.Lease.LandlordSignedAt)
}

func TestSignBothPartiesPromotesStatus(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	seedInvite(repo, lease.LeaseID, "tok-abc")
	svc := newService(repo)

	_, err := svc.Sign(context.Background(), lease.LeaseID, PartyLandlord, SignInput{ManagerID: managerID})
	require.NoError(t, err)

	result, err := svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{Token: "tok-abc"})
	require.NoError(t, err)
	require.Equal(t, StatusSigned, result.Lease.Lease.Status)
	require.NotNil(t, result.Lease.Lease.TenantSignedAt)
	require.NotNil(t, result.Lease.Lease.LandlordSignedAt)
}

func TestGetAuthorizesViewer(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	seedInvite(repo, lease.LeaseID, "tok-abc")
	other := seedLease(repo)
	seedInvite(repo, other.LeaseID, "tok-other")
	svc := newService(repo)

	// Owning manager and invite bearer may read; strangers may not.
	_, err := svc.Get(context.Background(), lease.LeaseID, Viewer{UserID: managerID, Role: "manager"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), lease.LeaseID, Viewer{UserID: "someone-else", Role: "manager"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), lease.LeaseID, Viewer{Token: "tok-abc"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), lease.LeaseID, Viewer{Token: "tok-other"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), lease.LeaseID, Viewer{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestGetKeepsTokenAccessAfterSigning(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	seedInvite(repo, lease.LeaseID, "tok-abc")
	svc := newService(repo)

	tenantUser := "tenant-user-1"
	_, err := svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{Token: "tok-abc", TenantUserID: &tenantUser})
	require.NoError(t, err)

	// The consumed invite still reads, as does the linked tenant account.
	_, err = svc.Get(context.Background(), lease.LeaseID, Viewer{Token: "tok-abc"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), lease.LeaseID, Viewer{UserID: tenantUser, Role: "tenant"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), lease.LeaseID, Viewer{UserID: "other-tenant", Role: "tenant"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestListRenewalsEnforcesOwnership(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	_, _, err := svc.Renew(context.Background(), managerID, lease.LeaseID, RenewInput{
		NewStartDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		NewEndDate:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		NewRent:      1600,
	})
	require.NoError(t, err)

	_, err = svc.ListRenewals(context.Background(), "someone-else", lease.LeaseID)
	require.ErrorIs(t, err, ErrForbidden)

	renewals, err := svc.ListRenewals(context.Background(), managerID, lease.LeaseID)
	require.NoError(t, err)
	require.Len(t, renewals, 1)
}

func TestEffectiveStatusDerivation(t *testing.T) {
	t.Parallel()

	record := persistence.Lease{
		Status:    persistence.LeaseStatusSigned,
		StartDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	}

	require.Equal(t, StatusSigned, EffectiveStatus(record, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, StatusActive, EffectiveStatus(record, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, StatusExpired, EffectiveStatus(record, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)))

	record.Status = persistence.LeaseStatusDraft
	require.Equal(t, StatusDraft, EffectiveStatus(record, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRenewResetsSignaturesAndBumpsVersion(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	seedInvite(repo, lease.LeaseID, "tok-abc")
	svc := newService(repo)

	_, err := svc.Sign(context.Background(), lease.LeaseID, PartyLandlord, SignInput{ManagerID: managerID})
	require.NoError(t, err)
	_, err = svc.Sign(context.Background(), lease.LeaseID, PartyTenant, SignInput{Token: "tok-abc"})
	require.NoError(t, err)

	renewal, updated, err := svc.Renew(context.Background(), managerID, lease.LeaseID, RenewInput{
		NewStartDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		NewEndDate:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		NewRent:      1600,
	})
	require.NoError(t, err)
	require.Equal(t, lease.EndDate, renewal.PreviousEndDate)
	require.Equal(t, lease.RentAmount, renewal.PreviousRent)
	require.Equal(t, StatusDraft, updated.Status)
	require.Nil(t, updated.TenantSignedAt)
	require.Nil(t, updated.LandlordSignedAt)
	require.Equal(t, 1, updated.DocumentVersion)
}

func TestUpdateDraftRejectedAfterSignature(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	_, err := svc.Sign(context.Background(), lease.LeaseID, PartyLandlord, SignInput{ManagerID: managerID})
	require.NoError(t, err)

	rent := 1700.0
	_, err = svc.UpdateDraft(context.Background(), managerID, lease.LeaseID, UpdateInput{RentAmount: &rent})
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestCreateValidatesInput(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	seedLease(repo)
	svc := newService(repo)

	_, err := svc.Create(context.Background(), managerID, CreateInput{})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "propertyId")
	require.Contains(t, validationErr.Fields, "tenantEmail")
	require.Contains(t, validationErr.Fields, "rentAmount")
}

func TestCreateRejectsUnitFromOtherProperty(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	other := seedLease(repo)
	svc := newService(repo)

	_, err := svc.Create(context.Background(), managerID, CreateInput{
		PropertyID:  lease.PropertyID,
		UnitID:      other.UnitID,
		TenantEmail: "tenant@example.com",
		StartDate:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		RentAmount:  1200,
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "unitId")
}
