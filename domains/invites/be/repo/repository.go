package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

// Repository exposes the persistence operations the invite service needs.
type Repository interface {
	CreateInvite(ctx context.Context, params persistence.CreateInviteParams) (persistence.Invite, error)
	GetInvite(ctx context.Context, id uuid.UUID) (persistence.Invite, error)
	GetInviteByToken(ctx context.Context, token string) (persistence.Invite, error)
	ListInvitesByLease(ctx context.Context, leaseID uuid.UUID) ([]persistence.Invite, error)
	DeleteInvite(ctx context.Context, id uuid.UUID) error

	GetLease(ctx context.Context, id uuid.UUID) (persistence.Lease, error)
	GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error)
}

type postgresRepository struct {
	invites    *persistence.InviteStore
	leases     *persistence.LeaseStore
	properties *persistence.PropertyStore
}

// NewPostgresRepository constructs a Repository backed by the shared persistence layer.
func NewPostgresRepository(invites *persistence.InviteStore, leases *persistence.LeaseStore, properties *persistence.PropertyStore) Repository {
	if invites == nil {
		panic("invite store is required")
	}
	if leases == nil {
		panic("lease store is required")
	}
	if properties == nil {
		panic("property store is required")
	}
	return &postgresRepository{invites: invites, leases: leases, properties: properties}
}

func (r *postgresRepository) CreateInvite(ctx context.Context, params persistence.CreateInviteParams) (persistence.Invite, error) {
	return r.invites.CreateInvite(ctx, params)
}

func (r *postgresRepository) GetInvite(ctx context.Context, id uuid.UUID) (persistence.Invite, error) {
	return r.invites.GetInvite(ctx, id)
}

func (r *postgresRepository) GetInviteByToken(ctx context.Context, token string) (persistence.Invite, error) {
	return r.invites.GetInviteByToken(ctx, token)
}

func (r *postgresRepository) ListInvitesByLease(ctx context.Context, leaseID uuid.UUID) ([]persistence.Invite, error) {
	return r.invites.ListInvitesByLease(ctx, leaseID)
}

func (r *postgresRepository) DeleteInvite(ctx context.Context, id uuid.UUID) error {
	return r.invites.DeleteInvite(ctx, id)
}

func (r *postgresRepository) GetLease(ctx context.Context, id uuid.UUID) (persistence.Lease, error) {
	return r.leases.GetLease(ctx, id)
}

func (r *postgresRepository) GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error) {
	return r.properties.GetProperty(ctx, id)
}
