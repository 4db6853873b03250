package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

// Repository exposes the persistence operations the lease service needs. It
// spans leases, the owning property/unit, and the invite lookup the tenant
// signature path rides on.
type Repository interface {
	CreateLease(ctx context.Context, params persistence.CreateLeaseParams) (persistence.Lease, error)
	GetLease(ctx context.Context, id uuid.UUID) (persistence.Lease, error)
	GetLeaseDetail(ctx context.Context, id uuid.UUID) (persistence.LeaseDetail, error)
	ListLeases(ctx context.Context, params persistence.ListLeasesParams) ([]persistence.Lease, error)
	UpdateDraftLease(ctx context.Context, id uuid.UUID, params persistence.UpdateDraftLeaseParams) (persistence.Lease, error)
	ApplyTenantSignature(ctx context.Context, id uuid.UUID, signedAt time.Time, tenantUserID *string) (persistence.Lease, bool, error)
	ApplyLandlordSignature(ctx context.Context, id uuid.UUID, signedAt time.Time) (persistence.Lease, bool, error)
	CreateRenewal(ctx context.Context, params persistence.CreateRenewalParams) (persistence.Renewal, persistence.Lease, error)
	ListRenewals(ctx context.Context, leaseID uuid.UUID) ([]persistence.Renewal, error)

	GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error)
	GetUnit(ctx context.Context, id uuid.UUID) (persistence.Unit, error)

	GetInviteByToken(ctx context.Context, token string) (persistence.Invite, error)
	MarkInviteAccepted(ctx context.Context, token string, now time.Time) (persistence.Invite, error)
}

type postgresRepository struct {
	leases     *persistence.LeaseStore
	properties *persistence.PropertyStore
	invites    *persistence.InviteStore
}

// NewPostgresRepository constructs a Repository backed by the shared persistence layer.
func NewPostgresRepository(leases *persistence.LeaseStore, properties *persistence.PropertyStore, invites *persistence.InviteStore) Repository {
	if leases == nil {
		panic("lease store is required")
	}
	if properties == nil {
		panic("property store is required")
	}
	if invites == nil {
		panic("invite store is required")
	}
	return &postgresRepository{leases: leases, properties: properties, invites: invites}
}

func (r *postgresRepository) CreateLease(ctx context.Context, params persistence.CreateLeaseParams) (persistence.Lease, error) {
	return r.leases.CreateLease(ctx, params)
}

func (r *postgresRepository) GetLease(ctx context.Context, id uuid.UUID) (persistence.Lease, error) {
	return r.leases.GetLease(ctx, id)
}

func (r *postgresRepository) GetLeaseDetail(ctx context.Context, id uuid.UUID) (persistence.LeaseDetail, error) {
	return r.leases.GetLeaseDetail(ctx, id)
}

func (r *postgresRepository) ListLeases(ctx context.Context, params persistence.ListLeasesParams) ([]persistence.Lease, error) {
	return r.leases.ListLeases(ctx, params)
}

func (r *postgresRepository) UpdateDraftLease(ctx context.Context, id uuid.UUID, params persistence.UpdateDraftLeaseParams) (persistence.Lease, error) {
	return r.leases.UpdateDraftLease(ctx, id, params)
}

func (r *postgresRepository) ApplyTenantSignature(ctx context.Context, id uuid.UUID, signedAt time.Time, tenantUserID *string) (persistence.Lease, bool, error) {
	return r.leases.ApplyTenantSignature(ctx, id, signedAt, tenantUserID)
}

func (r *postgresRepository) ApplyLandlordSignature(ctx context.Context, id uuid.UUID, signedAt time.Time) (persistence.Lease, bool, error) {
	return r.leases.ApplyLandlordSignature(ctx, id, signedAt)
}

func (r *postgresRepository) CreateRenewal(ctx context.Context, params persistence.CreateRenewalParams) (persistence.Renewal, persistence.Lease, error) {
	return r.leases.CreateRenewal(ctx, params)
}

func (r *postgresRepository) ListRenewals(ctx context.Context, leaseID uuid.UUID) ([]persistence.Renewal, error) {
	return r.leases.ListRenewals(ctx, leaseID)
}

func (r *postgresRepository) GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error) {
	return r.properties.GetProperty(ctx, id)
}

func (r *postgresRepository) GetUnit(ctx context.Context, id uuid.UUID) (persistence.Unit, error) {
	return r.properties.GetUnit(ctx, id)
}

func (r *postgresRepository) GetInviteByToken(ctx context.Context, token string) (persistence.Invite, error) {
	return r.invites.GetInviteByToken(ctx, token)
}

func (r *postgresRepository) MarkInviteAccepted(ctx context.Context, token string, now time.Time) (persistence.Invite, error) {
	return r.invites.MarkAccepted(ctx, token, now)
}
