package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

// Repository exposes the persistence operations the amendment service needs.
type Repository interface {
	CreateAmendment(ctx context.Context, params persistence.CreateAmendmentParams) (persistence.Amendment, error)
	GetAmendment(ctx context.Context, id uuid.UUID) (persistence.Amendment, error)
	ListAmendments(ctx context.Context, leaseID uuid.UUID, status *string) ([]persistence.Amendment, error)
	SetDecision(ctx context.Context, id uuid.UUID, status, decidedBy string, decidedAt time.Time) (persistence.Amendment, error)
	ExecuteAmendment(ctx context.Context, id uuid.UUID, executedBy string, executedAt time.Time) (persistence.Amendment, persistence.Lease, error)
	DeletePending(ctx context.Context, id uuid.UUID) error

	GetLease(ctx context.Context, id uuid.UUID) (persistence.Lease, error)
	GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error)
}

type postgresRepository struct {
	amendments *persistence.AmendmentStore
	leases     *persistence.LeaseStore
	properties *persistence.PropertyStore
}

// NewPostgresRepository constructs a Repository backed by the shared persistence layer.
func NewPostgresRepository(amendments *persistence.AmendmentStore, leases *persistence.LeaseStore, properties *persistence.PropertyStore) Repository {
	if amendments == nil {
		panic("amendment store is required")
	}
	if leases == nil {
		panic("lease store is required")
	}
	if properties == nil {
		panic("property store is required")
	}
	return &postgresRepository{amendments: amendments, leases: leases, properties: properties}
}

func (r *postgresRepository) CreateAmendment(ctx context.Context, params persistence.CreateAmendmentParams) (persistence.Amendment, error) {
	return r.amendments.CreateAmendment(ctx, params)
}

func (r *postgresRepository) GetAmendment(ctx context.Context, id uuid.UUID) (persistence.Amendment, error) {
	return r.amendments.GetAmendment(ctx, id)
}

func (r *postgresRepository) ListAmendments(ctx context.Context, leaseID uuid.UUID, status *string) ([]persistence.Amendment, error) {
	return r.amendments.ListAmendments(ctx, leaseID, status)
}

func (r *postgresRepository) SetDecision(ctx context.Context, id uuid.UUID, status, decidedBy string, decidedAt time.Time) (persistence.Amendment, error) {
	return r.amendments.SetDecision(ctx, id, status, decidedBy, decidedAt)
}

func (r *postgresRepository) ExecuteAmendment(ctx context.Context, id uuid.UUID, executedBy string, executedAt time.Time) (persistence.Amendment, persistence.Lease, error) {
	return r.amendments.ExecuteAmendment(ctx, id, executedBy, executedAt)
}

func (r *postgresRepository) DeletePending(ctx context.Context, id uuid.UUID) error {
	return r.amendments.DeletePending(ctx, id)
}

func (r *postgresRepository) GetLease(ctx context.Context, id uuid.UUID) (persistence.Lease, error) {
	return r.leases.GetLease(ctx, id)
}

func (r *postgresRepository) GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error) {
	return r.properties.GetProperty(ctx, id)
}
