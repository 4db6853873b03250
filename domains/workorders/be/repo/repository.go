package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

// Repository exposes the persistence operations the work order service needs.
type Repository interface {
	CreateWorkOrder(ctx context.Context, params persistence.CreateWorkOrderParams) (persistence.WorkOrder, error)
	GetWorkOrder(ctx context.Context, id uuid.UUID) (persistence.WorkOrder, error)
	ListWorkOrders(ctx context.Context, params persistence.ListWorkOrdersParams) ([]persistence.WorkOrder, error)
	TransitionWorkOrder(ctx context.Context, id uuid.UUID, next string, vendorID *string) (persistence.WorkOrder, error)

	GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error)
	GetUnit(ctx context.Context, id uuid.UUID) (persistence.Unit, error)
}

type postgresRepository struct {
	workOrders *persistence.WorkOrderStore
	properties *persistence.PropertyStore
}

// NewPostgresRepository constructs a Repository backed by the shared persistence layer.
func NewPostgresRepository(workOrders *persistence.WorkOrderStore, properties *persistence.PropertyStore) Repository {
	if workOrders == nil {
		panic("work order store is required")
	}
	if properties == nil {
		panic("property store is required")
	}
	return &postgresRepository{workOrders: workOrders, properties: properties}
}

func (r *postgresRepository) CreateWorkOrder(ctx context.Context, params persistence.CreateWorkOrderParams) (persistence.WorkOrder, error) {
	return r.workOrders.CreateWorkOrder(ctx, params)
}

func (r *postgresRepository) GetWorkOrder(ctx context.Context, id uuid.UUID) (persistence.WorkOrder, error) {
	return r.workOrders.GetWorkOrder(ctx, id)
}

func (r *postgresRepository) ListWorkOrders(ctx context.Context, params persistence.ListWorkOrdersParams) ([]persistence.WorkOrder, error) {
	return r.workOrders.ListWorkOrders(ctx, params)
}

func (r *postgresRepository) TransitionWorkOrder(ctx context.Context, id uuid.UUID, next string, vendorID *string) (persistence.WorkOrder, error) {
	return r.workOrders.TransitionWorkOrder(ctx, id, next, vendorID)
}

func (r *postgresRepository) GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error) {
	return r.properties.GetProperty(ctx, id)
}

func (r *postgresRepository) GetUnit(ctx context.Context, id uuid.UUID) (persistence.Unit, error) {
	return r.properties.GetUnit(ctx, id)
}
