package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

// Repository exposes the persistence operations the content service needs.
type Repository interface {
	UpsertPricingPlan(ctx context.Context, params persistence.UpsertPricingPlanParams) (persistence.PricingPlan, error)
	ListPricingPlans(ctx context.Context, activeOnly bool) ([]persistence.PricingPlan, error)
	DeletePricingPlan(ctx context.Context, id uuid.UUID) error

	UpsertNavbarItem(ctx context.Context, params persistence.UpsertNavbarItemParams) (persistence.NavbarItem, error)
	ListNavbarItems(ctx context.Context, visibleOnly bool) ([]persistence.NavbarItem, error)
	DeleteNavbarItem(ctx context.Context, id uuid.UUID) error

	UpsertPolicySection(ctx context.Context, params persistence.UpsertPolicySectionParams) (persistence.PolicySection, error)
	GetPolicySection(ctx context.Context, slug string) (persistence.PolicySection, error)
	ListPolicySections(ctx context.Context) ([]persistence.PolicySection, error)
	DeletePolicySection(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	store *persistence.ContentStore
}

// NewPostgresRepository constructs a Repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.ContentStore) Repository {
	if store == nil {
		panic("content store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) UpsertPricingPlan(ctx context.Context, params persistence.UpsertPricingPlanParams) (persistence.PricingPlan, error) {
	return r.store.UpsertPricingPlan(ctx, params)
}

func (r *postgresRepository) ListPricingPlans(ctx context.Context, activeOnly bool) ([]persistence.PricingPlan, error) {
	return r.store.ListPricingPlans(ctx, activeOnly)
}

func (r *postgresRepository) DeletePricingPlan(ctx context.Context, id uuid.UUID) error {
	return r.store.DeletePricingPlan(ctx, id)
}

func (r *postgresRepository) UpsertNavbarItem(ctx context.Context, params persistence.UpsertNavbarItemParams) (persistence.NavbarItem, error) {
	return r.store.UpsertNavbarItem(ctx, params)
}

func (r *postgresRepository) ListNavbarItems(ctx context.Context, visibleOnly bool) ([]persistence.NavbarItem, error) {
	return r.store.ListNavbarItems(ctx, visibleOnly)
}

func (r *postgresRepository) DeleteNavbarItem(ctx context.Context, id uuid.UUID) error {
	return r.store.DeleteNavbarItem(ctx, id)
}

func (r *postgresRepository) UpsertPolicySection(ctx context.Context, params persistence.UpsertPolicySectionParams) (persistence.PolicySection, error) {
	return r.store.UpsertPolicySection(ctx, params)
}

func (r *postgresRepository) GetPolicySection(ctx context.Context, slug string) (persistence.PolicySection, error) {
	return r.store.GetPolicySection(ctx, slug)
}

func (r *postgresRepository) ListPolicySections(ctx context.Context) ([]persistence.PolicySection, error) {
	return r.store.ListPolicySections(ctx)
}

func (r *postgresRepository) DeletePolicySection(ctx context.Context, id uuid.UUID) error {
	return r.store.DeletePolicySection(ctx, id)
}
