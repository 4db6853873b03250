package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const WorkOrdersTable = "work_orders"

// Work order lifecycle statuses.
const (
	WorkOrderStatusOpen       = "OPEN"
	WorkOrderStatusAssigned   = "ASSIGNED"
	WorkOrderStatusInProgress = "IN_PROGRESS"
	WorkOrderStatusCompleted  = "COMPLETED"
	WorkOrderStatusCancelled  = "CANCELLED"
)

var (
	// ErrWorkOrderNotFound indicates a missing work order record.
	ErrWorkOrderNotFound = errors.New("work order not found")
	// ErrWorkOrderConflict indicates an illegal status transition.
	ErrWorkOrderConflict = errors.New("work order status conflict")
)

// workOrderTransitions lists the legal next statuses per current status.
var workOrderTransitions = map[string][]string{
	WorkOrderStatusOpen:       {WorkOrderStatusAssigned, WorkOrderStatusCancelled},
	WorkOrderStatusAssigned:   {WorkOrderStatusInProgress, WorkOrderStatusCancelled},
	WorkOrderStatusInProgress: {WorkOrderStatusCompleted},
}

// WorkOrder represents a row in the work_orders table.
type WorkOrder struct {
	WorkOrderID      uuid.UUID  `db:"work_order_id" json:"workOrderId"`
	PropertyID       uuid.UUID  `db:"property_id" json:"propertyId"`
	UnitID           *uuid.UUID `db:"unit_id" json:"unitId,omitempty"`
	Title            string     `db:"title" json:"title"`
	Description      string     `db:"description" json:"description"`
	Status           string     `db:"status" json:"status"`
	AssignedVendorID *string    `db:"assigned_vendor_id" json:"assignedVendorId,omitempty"`
	CreatedBy        string     `db:"created_by" json:"createdBy"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

const workOrderColumns = `work_order_id, property_id, unit_id, title, description, status,
        assigned_vendor_id, created_by, created_at, updated_at`

// WorkOrderStore exposes persistence helpers for the work_orders table.
type WorkOrderStore struct {
	pool *pgxpool.Pool
}

// NewWorkOrderStore returns a store instance backed by the shared pool.
func NewWorkOrderStore(pool *pgxpool.Pool) (*WorkOrderStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &WorkOrderStore{pool: pool}, nil
}

// CreateWorkOrderParams captures the fields required to insert a work order.
type CreateWorkOrderParams struct {
	WorkOrderID uuid.UUID
	PropertyID  uuid.UUID
	UnitID      *uuid.UUID
	Title       string
	Description string
	CreatedBy   string
}

// CreateWorkOrder inserts a new open work order.
func (s *WorkOrderStore) CreateWorkOrder(ctx context.Context, params CreateWorkOrderParams) (WorkOrder, error) {
	if params.WorkOrderID == uuid.Nil {
		return WorkOrder{}, errors.New("work order id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (work_order_id, property_id, unit_id, title, description, created_by)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING %s
    `, WorkOrdersTable, workOrderColumns),
		params.WorkOrderID, params.PropertyID, params.UnitID,
		strings.TrimSpace(params.Title), params.Description, params.CreatedBy,
	)

	order, err := scanWorkOrder(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return WorkOrder{}, ErrPropertyNotFound
		}
		return WorkOrder{}, err
	}
	return order, nil
}

// GetWorkOrder returns a single work order by identifier.
func (s *WorkOrderStore) GetWorkOrder(ctx context.Context, id uuid.UUID) (WorkOrder, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE work_order_id = $1
    `, workOrderColumns, WorkOrdersTable), id)

	order, err := scanWorkOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WorkOrder{}, ErrWorkOrderNotFound
		}
		return WorkOrder{}, err
	}
	return order, nil
}

// ListWorkOrdersParams filters the work order listing.
type ListWorkOrdersParams struct {
	PropertyID uuid.UUID
	Status     *string
}

// ListWorkOrders returns work orders for a property, newest first.
func (s *WorkOrderStore) ListWorkOrders(ctx context.Context, params ListWorkOrdersParams) ([]WorkOrder, error) {
	where := "property_id = $1"
	args := []any{params.PropertyID}
	if params.Status != nil {
		args = append(args, *params.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE %s ORDER BY created_at DESC
    `, workOrderColumns, WorkOrdersTable, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list work orders: %w", err)
	}
	defer rows.Close()

	orders := make([]WorkOrder, 0)
	for rows.Next() {
		order, scanErr := scanWorkOrder(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan work order: %w", scanErr)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// TransitionWorkOrder moves a work order to the next status. The current
// statuses that may reach the target are enumerated in the WHERE clause so the
// transition stays atomic under concurrent updates. An optional vendor is
// stamped when assigning.
func (s *WorkOrderStore) TransitionWorkOrder(ctx context.Context, id uuid.UUID, next string, vendorID *string) (WorkOrder, error) {
	var from []string
	for current, nexts := range workOrderTransitions {
		for _, candidate := range nexts {
			if candidate == next {
				from = append(from, fmt.Sprintf("'%s'", current))
			}
		}
	}
	if len(from) == 0 {
		return WorkOrder{}, fmt.Errorf("invalid work order status %q", next)
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET status = $2, assigned_vendor_id = COALESCE($3, assigned_vendor_id), updated_at = NOW()
        WHERE work_order_id = $1 AND status IN (%s)
        RETURNING %s
    `, WorkOrdersTable, strings.Join(from, ", "), workOrderColumns), id, next, vendorID)

	order, err := scanWorkOrder(row)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return WorkOrder{}, err
	}

	if _, getErr := s.GetWorkOrder(ctx, id); getErr != nil {
		return WorkOrder{}, getErr
	}
	return WorkOrder{}, ErrWorkOrderConflict
}

func scanWorkOrder(row pgx.Row) (WorkOrder, error) {
	var w WorkOrder
	err := row.Scan(&w.WorkOrderID, &w.PropertyID, &w.UnitID, &w.Title, &w.Description, &w.Status,
		&w.AssignedVendorID, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return WorkOrder{}, err
	}
	return w, nil
}
