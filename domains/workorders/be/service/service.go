package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/homebasehq/homebase/domains/workorders/be/repo"
	"github.com/homebasehq/homebase/platform/go/auth"
	"github.com/homebasehq/homebase/platform/go/persistence"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError captures input validation problems surfaced by the service.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain-level error sentinel values.
var (
	ErrNotFound          = errors.New("work order not found")
	ErrForbidden         = errors.New("not allowed to act on this work order")
	ErrInvalidTransition = errors.New("invalid work order transition")
)

// Work order statuses, re-exported for callers.
const (
	StatusOpen       = persistence.WorkOrderStatusOpen
	StatusAssigned   = persistence.WorkOrderStatusAssigned
	StatusInProgress = persistence.WorkOrderStatusInProgress
	StatusCompleted  = persistence.WorkOrderStatusCompleted
	StatusCancelled  = persistence.WorkOrderStatusCancelled
)

// WorkOrder mirrors a stored work order record.
type WorkOrder = persistence.WorkOrder

// Actor identifies the caller for authorization decisions. Managers operate
// on work orders for properties they manage; vendors only progress orders
// assigned to them.
type Actor struct {
	ID   string
	Role string
}

// CreateInput defines the payload required to open a work order.
type CreateInput struct {
	PropertyID  uuid.UUID
	UnitID      *uuid.UUID
	Title       string
	Description string
}

// TransitionInput carries the requested status change.
type TransitionInput struct {
	Status   string
	VendorID *string
}

// ListInput filters the work order listing.
type ListInput struct {
	PropertyID uuid.UUID
	Status     *string
}

// Service exposes work order operations.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (WorkOrder, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (WorkOrder, error)
	List(ctx context.Context, actor Actor, input ListInput) ([]WorkOrder, error)
	Transition(ctx context.Context, actor Actor, id uuid.UUID, input TransitionInput) (WorkOrder, error)
}

type service struct {
	repo domainrepo.Repository
	now  func() time.Time
}

// New builds a work order Service backed by the provided repository.
func New(repo domainrepo.Repository) Service {
	if repo == nil {
		panic("work order repo is required")
	}
	return &service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (WorkOrder, error) {
	if err := s.ownedProperty(ctx, actor, input.PropertyID); err != nil {
		return WorkOrder{}, err
	}

	fieldErrors := FieldErrors{}
	if strings.TrimSpace(input.Title) == "" {
		addFieldError(fieldErrors, "title", "title is required")
	}
	if input.UnitID != nil {
		unit, err := s.repo.GetUnit(ctx, *input.UnitID)
		if err != nil {
			if errors.Is(err, persistence.ErrUnitNotFound) {
				addFieldError(fieldErrors, "unitId", "unit does not exist")
			} else {
				return WorkOrder{}, err
			}
		} else if unit.PropertyID != input.PropertyID {
			addFieldError(fieldErrors, "unitId", "unit does not belong to the property")
		}
	}
	if len(fieldErrors) > 0 {
		return WorkOrder{}, &ValidationError{Fields: fieldErrors}
	}

	order, err := s.repo.CreateWorkOrder(ctx, persistence.CreateWorkOrderParams{
		WorkOrderID: uuid.New(),
		PropertyID:  input.PropertyID,
		UnitID:      input.UnitID,
		Title:       input.Title,
		Description: input.Description,
		CreatedBy:   actor.ID,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrPropertyNotFound) {
			return WorkOrder{}, ErrNotFound
		}
		return WorkOrder{}, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, actor Actor, id uuid.UUID) (WorkOrder, error) {
	order, err := s.repo.GetWorkOrder(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrWorkOrderNotFound) {
			return WorkOrder{}, ErrNotFound
		}
		return WorkOrder{}, err
	}
	if err := s.authorizeRead(ctx, actor, order); err != nil {
		return WorkOrder{}, err
	}
	return order, nil
}

func (s *service) List(ctx context.Context, actor Actor, input ListInput) ([]WorkOrder, error) {
	if err := s.ownedProperty(ctx, actor, input.PropertyID); err != nil {
		return nil, err
	}
	if input.Status != nil && !knownStatus(*input.Status) {
		return nil, &ValidationError{Fields: FieldErrors{
			"status": {"unknown work order status"},
		}}
	}
	return s.repo.ListWorkOrders(ctx, persistence.ListWorkOrdersParams{
		PropertyID: input.PropertyID,
		Status:     input.Status,
	})
}

func (s *service) Transition(ctx context.Context, actor Actor, id uuid.UUID, input TransitionInput) (WorkOrder, error) {
	next := strings.ToUpper(strings.TrimSpace(input.Status))
	if !knownStatus(next) || next == StatusOpen {
		return WorkOrder{}, &ValidationError{Fields: FieldErrors{
			"status": {"status must be one of ASSIGNED, IN_PROGRESS, COMPLETED, CANCELLED"},
		}}
	}

	order, err := s.repo.GetWorkOrder(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrWorkOrderNotFound) {
			return WorkOrder{}, ErrNotFound
		}
		return WorkOrder{}, err
	}
	if err := s.authorizeTransition(ctx, actor, order, next); err != nil {
		return WorkOrder{}, err
	}

	var vendorID *string
	if next == StatusAssigned {
		if input.VendorID == nil || strings.TrimSpace(*input.VendorID) == "" {
			return WorkOrder{}, &ValidationError{Fields: FieldErrors{
				"vendorId": {"vendorId is required when assigning"},
			}}
		}
		vendorID = input.VendorID
	}

	updated, err := s.repo.TransitionWorkOrder(ctx, id, next, vendorID)
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrWorkOrderNotFound):
			return WorkOrder{}, ErrNotFound
		case errors.Is(err, persistence.ErrWorkOrderConflict):
			return WorkOrder{}, ErrInvalidTransition
		}
		return WorkOrder{}, err
	}
	return updated, nil
}

// authorizeTransition applies the role rules. Managers may assign and cancel;
// vendors may only progress orders assigned to them.
func (s *service) authorizeTransition(ctx context.Context, actor Actor, order WorkOrder, next string) error {
	switch actor.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleManager:
		return s.ownedProperty(ctx, actor, order.PropertyID)
	case auth.RoleVendor:
		if order.AssignedVendorID == nil || *order.AssignedVendorID != actor.ID {
			return ErrForbidden
		}
		if next != StatusInProgress && next != StatusCompleted {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

func (s *service) authorizeRead(ctx context.Context, actor Actor, order WorkOrder) error {
	switch actor.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleManager:
		return s.ownedProperty(ctx, actor, order.PropertyID)
	case auth.RoleVendor:
		if order.AssignedVendorID == nil || *order.AssignedVendorID != actor.ID {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

func (s *service) ownedProperty(ctx context.Context, actor Actor, propertyID uuid.UUID) error {
	property, err := s.repo.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, persistence.ErrPropertyNotFound) {
			return ErrNotFound
		}
		return err
	}
	if actor.Role != auth.RoleAdmin && property.ManagerID != actor.ID {
		return ErrForbidden
	}
	return nil
}

func knownStatus(status string) bool {
	switch status {
	case StatusOpen, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func addFieldError(m FieldErrors, field, message string) {
	m[field] = append(m[field], message)
}
