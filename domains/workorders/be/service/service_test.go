package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/homebasehq/homebase/platform/go/auth"
	"github.com/homebasehq/homebase/platform/go/persistence"
)

type fakeRepository struct {
	orders     map[uuid.UUID]persistence.WorkOrder
	units      map[uuid.UUID]persistence.Unit
	properties map[uuid.UUID]persistence.Property
	now        time.Time
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		orders:     map[uuid.UUID]persistence.WorkOrder{},
		units:      map[uuid.UUID]persistence.Unit{},
		properties: map[uuid.UUID]persistence.Property{},
		now:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

var transitions = map[string][]string{
	persistence.WorkOrderStatusOpen:       {persistence.WorkOrderStatusAssigned, persistence.WorkOrderStatusCancelled},
	persistence.WorkOrderStatusAssigned:   {persistence.WorkOrderStatusInProgress, persistence.WorkOrderStatusCancelled},
	persistence.WorkOrderStatusInProgress: {persistence.WorkOrderStatusCompleted},
}

func (f *fakeRepository) CreateWorkOrder(_ context.Context, params persistence.CreateWorkOrderParams) (persistence.WorkOrder, error) {
	if _, ok := f.properties[params.PropertyID]; !ok {
		return persistence.WorkOrder{}, persistence.ErrPropertyNotFound
	}
	order := persistence.WorkOrder{
		WorkOrderID: params.WorkOrderID,
		PropertyID:  params.PropertyID,
		UnitID:      params.UnitID,
		Title:       params.Title,
		Description: params.Description,
		Status:      persistence.WorkOrderStatusOpen,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
	}
	f.orders[order.WorkOrderID] = order
	return order, nil
}

func (f *fakeRepository) GetWorkOrder(_ context.Context, id uuid.UUID) (persistence.WorkOrder, error) {
	order, ok := f.orders[id]
	if !ok {
		return persistence.WorkOrder{}, persistence.ErrWorkOrderNotFound
	}
	return order, nil
}

func (f *fakeRepository) ListWorkOrders(_ context.Context, params persistence.ListWorkOrdersParams) ([]persistence.WorkOrder, error) {
	results := []persistence.WorkOrder{}
	for _, order := range f.orders {
		if order.PropertyID != params.PropertyID {
			continue
		}
		if params.Status != nil && order.Status != *params.Status {
			continue
		}
		results = append(results, order)
	}
	return results, nil
}

func (f *fakeRepository) TransitionWorkOrder(_ context.Context, id uuid.UUID, next string, vendorID *string) (persistence.WorkOrder, error) {
	order, ok := f.orders[id]
	if !ok {
		return persistence.WorkOrder{}, persistence.ErrWorkOrderNotFound
	}
	legal := false
	for _, candidate := range transitions[order.Status] {
		if candidate == next {
			legal = true
		}
	}
	if !legal {
		return persistence.WorkOrder{}, persistence.ErrWorkOrderConflict
	}
	order.Status = next
	if vendorID != nil {
		order.AssignedVendorID = vendorID
	}
	order.UpdatedAt = f.now
	f.orders[id] = order
	return order, nil
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

var (
	manager = Actor{ID: "manager-1", Role: auth.RoleManager}
	vendor  = Actor{ID: "vendor-1", Role: auth.RoleVendor}
)

func seedProperty(f *fakeRepository) persistence.Property {
	property := persistence.Property{PropertyID: uuid.New(), ManagerID: manager.ID}
	f.properties[property.PropertyID] = property
	return property
}

func newService(repo *fakeRepository) *service {
	return &service{repo: repo, now: func() time.Time { return repo.now }}
}

func createOrder(t *testing.T, svc *service, propertyID uuid.UUID) WorkOrder {
	t.Helper()
	order, err := svc.Create(context.Background(), manager, CreateInput{
		PropertyID:  propertyID,
		Title:       "Leaking faucet",
		Description: "Kitchen faucet drips",
	})
	require.NoError(t, err)
	return order
}

func TestCreateValidatesUnitBelongsToProperty(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	property := seedProperty(repo)
	other := seedProperty(repo)
	unit := persistence.Unit{UnitID: uuid.New(), PropertyID: other.PropertyID}
	repo.units[unit.UnitID] = unit
	svc := newService(repo)

	_, err := svc.Create(context.Background(), manager, CreateInput{
		PropertyID: property.PropertyID,
		UnitID:     &unit.UnitID,
		Title:      "Broken window",
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "unitId")
}

func TestAssignRequiresVendor(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	property := seedProperty(repo)
	svc := newService(repo)
	order := createOrder(t, svc, property.PropertyID)

	_, err := svc.Transition(context.Background(), manager, order.WorkOrderID, TransitionInput{
		Status: StatusAssigned,
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "vendorId")

	assigned, err := svc.Transition(context.Background(), manager, order.WorkOrderID, TransitionInput{
		Status:   StatusAssigned,
		VendorID: &vendor.ID,
	})
	require.NoError(t, err)
	require.Equal(t, StatusAssigned, assigned.Status)
	require.Equal(t, vendor.ID, *assigned.AssignedVendorID)
}

func TestVendorProgressesOwnOrders(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	property := seedProperty(repo)
	svc := newService(repo)
	order := createOrder(t, svc, property.PropertyID)

	_, err := svc.Transition(context.Background(), manager, order.WorkOrderID, TransitionInput{
		Status:   StatusAssigned,
		VendorID: &vendor.ID,
	})
	require.NoError(t, err)

	inProgress, err := svc.Transition(context.Background(), vendor, order.WorkOrderID, TransitionInput{
		Status: StatusInProgress,
	})
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, inProgress.Status)

	done, err := svc.Transition(context.Background(), vendor, order.WorkOrderID, TransitionInput{
		Status: StatusCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
}

func TestVendorCannotActOnUnassignedOrders(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	property := seedProperty(repo)
	svc := newService(repo)
	order := createOrder(t, svc, property.PropertyID)

	_, err := svc.Transition(context.Background(), vendor, order.WorkOrderID, TransitionInput{
		Status: StatusInProgress,
	})
	require.ErrorIs(t, err, ErrForbidden)

	otherVendor := Actor{ID: "vendor-2", Role: auth.RoleVendor}
	_, err = svc.Transition(context.Background(), manager, order.WorkOrderID, TransitionInput{
		Status:   StatusAssigned,
		VendorID: &otherVendor.ID,
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), vendor, order.WorkOrderID, TransitionInput{
		Status: StatusInProgress,
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestVendorCannotCancel(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	property := seedProperty(repo)
	svc := newService(repo)
	order := createOrder(t, svc, property.PropertyID)

	_, err := svc.Transition(context.Background(), manager, order.WorkOrderID, TransitionInput{
		Status:   StatusAssigned,
		VendorID: &vendor.ID,
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), vendor, order.WorkOrderID, TransitionInput{
		Status: StatusCancelled,
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestIllegalTransitionsConflict(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	property := seedProperty(repo)
	svc := newService(repo)
	order := createOrder(t, svc, property.PropertyID)

	// OPEN cannot jump straight to IN_PROGRESS or COMPLETED
	_, err := svc.Transition(context.Background(), manager, order.WorkOrderID, TransitionInput{
		Status: StatusInProgress,
	})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Transition(context.Background(), manager, order.WorkOrderID, TransitionInput{
		Status: StatusCompleted,
	})
	require.ErrorIs(t, err, ErrInvalidTransition)

	// cancel, then nothing else is legal
	_, err = svc.Transition(context.Background(), manager, order.WorkOrderID, TransitionInput{
		Status: StatusCancelled,
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), manager, order.WorkOrderID, TransitionInput{
		Status:   StatusAssigned,
		VendorID: &vendor.ID,
	})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestListFiltersByStatus(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	property := seedProperty(repo)
	svc := newService(repo)

	open := createOrder(t, svc, property.PropertyID)
	assigned := createOrder(t, svc, property.PropertyID)
	_, err := svc.Transition(context.Background(), manager, assigned.WorkOrderID, TransitionInput{
		Status:   StatusAssigned,
		VendorID: &vendor.ID,
	})
	require.NoError(t, err)

	status := StatusOpen
	orders, err := svc.List(context.Background(), manager, ListInput{
		PropertyID: property.PropertyID,
		Status:     &status,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, open.WorkOrderID, orders[0].WorkOrderID)
}
