package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

// Repository exposes persistence operations for properties and units.
type Repository interface {
	CreateProperty(ctx context.Context, params persistence.CreatePropertyParams) (persistence.Property, error)
	GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error)
	ListPropertiesByManager(ctx context.Context, managerID string) ([]persistence.Property, error)
	UpdateProperty(ctx context.Context, id uuid.UUID, params persistence.UpdatePropertyParams) (persistence.Property, error)
	DeleteProperty(ctx context.Context, id uuid.UUID) error

	CreateUnit(ctx context.Context, params persistence.CreateUnitParams) (persistence.Unit, error)
	GetUnit(ctx context.Context, id uuid.UUID) (persistence.Unit, error)
	ListUnitsByProperty(ctx context.Context, propertyID uuid.UUID) ([]persistence.Unit, error)
}

type postgresRepository struct {
	store *persistence.PropertyStore
}

// NewPostgresRepository constructs a Repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.PropertyStore) Repository {
	if store == nil {
		panic("property store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) CreateProperty(ctx context.Context, params persistence.CreatePropertyParams) (persistence.Property, error) {
	return r.store.CreateProperty(ctx, params)
}

func (r *postgresRepository) GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error) {
	return r.store.GetProperty(ctx, id)
}

func (r *postgresRepository) ListPropertiesByManager(ctx context.Context, managerID string) ([]persistence.Property, error) {
	return r.store.ListPropertiesByManager(ctx, managerID)
}

func (r *postgresRepository) UpdateProperty(ctx context.Context, id uuid.UUID, params persistence.UpdatePropertyParams) (persistence.Property, error) {
	return r.store.UpdateProperty(ctx, id, params)
}

func (r *postgresRepository) DeleteProperty(ctx context.Context, id uuid.UUID) error {
	return r.store.DeleteProperty(ctx, id)
}

func (r *postgresRepository) CreateUnit(ctx context.Context, params persistence.CreateUnitParams) (persistence.Unit, error) {
	return r.store.CreateUnit(ctx, params)
}

func (r *postgresRepository) GetUnit(ctx context.Context, id uuid.UUID) (persistence.Unit, error) {
	return r.store.GetUnit(ctx, id)
}

func (r *postgresRepository) ListUnitsByProperty(ctx context.Context, propertyID uuid.UUID) ([]persistence.Unit, error) {
	return r.store.ListUnitsByProperty(ctx, propertyID)
}
