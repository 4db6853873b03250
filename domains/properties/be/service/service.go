package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/homebasehq/homebase/domains/properties/be/repo"
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
	ErrNotFound  = errors.New("property not found")
	ErrForbidden = errors.New("not allowed to act on this property")
	ErrConflict  = errors.New("property conflict")
)

// Property mirrors a stored property record.
type Property = persistence.Property

// Unit mirrors a stored unit record.
type Unit = persistence.Unit

// CreateInput defines the payload required to register a property.
type CreateInput struct {
	Name    string
	Address string
	City    string
	State   string
	Zip     string
}

// UpdateInput carries the manager-editable property fields. Nil fields are
// left untouched.
type UpdateInput struct {
	Name    *string
	Address *string
	City    *string
	State   *string
	Zip     *string
}

// CreateUnitInput defines the payload required to add a unit to a property.
type CreateUnitInput struct {
	UnitNumber string
	Bedrooms   int
	Bathrooms  float64
	Sqft       int
}

// Service exposes property and unit operations.
type Service interface {
	Create(ctx context.Context, managerID string, input CreateInput) (Property, error)
	Get(ctx context.Context, managerID string, id uuid.UUID) (Property, error)
	List(ctx context.Context, managerID string) ([]Property, error)
	Update(ctx context.Context, managerID string, id uuid.UUID, input UpdateInput) (Property, error)
	Delete(ctx context.Context, managerID string, id uuid.UUID) error

	CreateUnit(ctx context.Context, managerID string, propertyID uuid.UUID, input CreateUnitInput) (Unit, error)
	ListUnits(ctx context.Context, managerID string, propertyID uuid.UUID) ([]Unit, error)
}

type service struct {
	repo domainrepo.Repository
	now  func() time.Time
}

// New builds a property Service backed by the provided repository.
func New(repo domainrepo.Repository) Service {
	if repo == nil {
		panic("property repo is required")
	}
	return &service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Create(ctx context.Context, managerID string, input CreateInput) (Property, error) {
	fieldErrors := FieldErrors{}
	if strings.TrimSpace(input.Name) == "" {
		addFieldError(fieldErrors, "name", "name is required")
	}
	if strings.TrimSpace(input.Address) == "" {
		addFieldError(fieldErrors, "address", "address is required")
	}
	if len(fieldErrors) > 0 {
		return Property{}, &ValidationError{Fields: fieldErrors}
	}

	return s.repo.CreateProperty(ctx, persistence.CreatePropertyParams{
		PropertyID: uuid.New(),
		ManagerID:  managerID,
		Name:       input.Name,
		Address:    input.Address,
		City:       input.City,
		State:      input.State,
		Zip:        input.Zip,
	})
}

func (s *service) Get(ctx context.Context, managerID string, id uuid.UUID) (Property, error) {
	return s.ownedProperty(ctx, managerID, id)
}

func (s *service) List(ctx context.Context, managerID string) ([]Property, error) {
	return s.repo.ListPropertiesByManager(ctx, managerID)
}

func (s *service) Update(ctx context.Context, managerID string, id uuid.UUID, input UpdateInput) (Property, error) {
	if _, err := s.ownedProperty(ctx, managerID, id); err != nil {
		return Property{}, err
	}

	params := persistence.UpdatePropertyParams{
		Name:    input.Name,
		Address: input.Address,
		City:    input.City,
		State:   input.State,
		Zip:     input.Zip,
	}
	if params.Name == nil && params.Address == nil && params.City == nil && params.State == nil && params.Zip == nil {
		return Property{}, &ValidationError{Fields: FieldErrors{
			"body": {"at least one field must be provided"},
		}}
	}
	if params.Name != nil && strings.TrimSpace(*params.Name) == "" {
		return Property{}, &ValidationError{Fields: FieldErrors{
			"name": {"name must not be empty"},
		}}
	}

	property, err := s.repo.UpdateProperty(ctx, id, params)
	if err != nil {
		if errors.Is(err, persistence.ErrPropertyNotFound) {
			return Property{}, ErrNotFound
		}
		return Property{}, err
	}
	return property, nil
}

func (s *service) Delete(ctx context.Context, managerID string, id uuid.UUID) error {
	if _, err := s.ownedProperty(ctx, managerID, id); err != nil {
		return err
	}

	if err := s.repo.DeleteProperty(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrPropertyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *service) CreateUnit(ctx context.Context, managerID string, propertyID uuid.UUID, input CreateUnitInput) (Unit, error) {
	if _, err := s.ownedProperty(ctx, managerID, propertyID); err != nil {
		return Unit{}, err
	}

	fieldErrors := FieldErrors{}
	if strings.TrimSpace(input.UnitNumber) == "" {
		addFieldError(fieldErrors, "unitNumber", "unitNumber is required")
	}
	if input.Bedrooms < 0 {
		addFieldError(fieldErrors, "bedrooms", "bedrooms must not be negative")
	}
	if input.Bathrooms < 0 {
		addFieldError(fieldErrors, "bathrooms", "bathrooms must not be negative")
	}
	if input.Sqft < 0 {
		addFieldError(fieldErrors, "sqft", "sqft must not be negative")
	}
	if len(fieldErrors) > 0 {
		return Unit{}, &ValidationError{Fields: fieldErrors}
	}

	unit, err := s.repo.CreateUnit(ctx, persistence.CreateUnitParams{
		UnitID:     uuid.New(),
		PropertyID: propertyID,
		UnitNumber: input.UnitNumber,
		Bedrooms:   input.Bedrooms,
		Bathrooms:  input.Bathrooms,
		Sqft:       input.Sqft,
	})
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrUnitConflict):
			return Unit{}, ErrConflict
		case errors.Is(err, persistence.ErrPropertyNotFound):
			return Unit{}, ErrNotFound
		}
		return Unit{}, err
	}
	return unit, nil
}

func (s *service) ListUnits(ctx context.Context, managerID string, propertyID uuid.UUID) ([]Unit, error) {
	if _, err := s.ownedProperty(ctx, managerID, propertyID); err != nil {
		return nil, err
	}
	return s.repo.ListUnitsByProperty(ctx, propertyID)
}

func (s *service) ownedProperty(ctx context.Context, managerID string, id uuid.UUID) (Property, error) {
	property, err := s.repo.GetProperty(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrPropertyNotFound) {
			return Property{}, ErrNotFound
		}
		return Property{}, err
	}
	if property.ManagerID != managerID {
		return Property{}, ErrForbidden
	}
	return property, nil
}

func addFieldError(m FieldErrors, field, message string) {
	m[field] = append(m[field], message)
}
