package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

// Repository exposes the persistence operations the meter service needs.
type Repository interface {
	CreateReading(ctx context.Context, params persistence.CreateReadingParams) (persistence.MeterReading, error)
	ListReadings(ctx context.Context, params persistence.ListReadingsParams) ([]persistence.MeterReading, error)

	GetUnit(ctx context.Context, id uuid.UUID) (persistence.Unit, error)
	GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error)
}

type postgresRepository struct {
	meters     *persistence.MeterStore
	properties *persistence.PropertyStore
}

// NewPostgresRepository constructs a Repository backed by the shared persistence layer.
func NewPostgresRepository(meters *persistence.MeterStore, properties *persistence.PropertyStore) Repository {
	if meters == nil {
		panic("meter store is required")
	}
	if properties == nil {
		panic("property store is required")
	}
	return &postgresRepository{meters: meters, properties: properties}
}

func (r *postgresRepository) CreateReading(ctx context.Context, params persistence.CreateReadingParams) (persistence.MeterReading, error) {
	return r.meters.CreateReading(ctx, params)
}

func (r *postgresRepository) ListReadings(ctx context.Context, params persistence.ListReadingsParams) ([]persistence.MeterReading, error) {
	return r.meters.ListReadings(ctx, params)
}

func (r *postgresRepository) GetUnit(ctx context.Context, id uuid.UUID) (persistence.Unit, error) {
	return r.properties.GetUnit(ctx, id)
}

func (r *postgresRepository) GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error) {
	return r.properties.GetProperty(ctx, id)
}
