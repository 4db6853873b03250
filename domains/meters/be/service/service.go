package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/homebasehq/homebase/domains/meters/be/repo"
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
	ErrNotFound     = errors.New("unit not found")
	ErrForbidden    = errors.New("not allowed to act on this unit")
	ErrNotMonotonic = errors.New("reading below the previous value for this meter")
)

// Supported meter types.
const (
	MeterElectric = "ELECTRIC"
	MeterWater    = "WATER"
	MeterGas      = "GAS"
)

var meterTypes = map[string]struct{}{
	MeterElectric: {},
	MeterWater:    {},
	MeterGas:      {},
}

// KnownMeterType reports whether the value is a supported meter type.
func KnownMeterType(value string) bool {
	_, ok := meterTypes[value]
	return ok
}

// Reading mirrors a stored meter reading.
type Reading = persistence.MeterReading

// RecordInput defines the payload required to record a reading.
type RecordInput struct {
	MeterType string
	Reading   float64
	ReadAt    time.Time
}

// ListInput filters the reading listing.
type ListInput struct {
	MeterType *string
	Since     *time.Time
}

// Service exposes meter reading operations.
type Service interface {
	Record(ctx context.Context, managerID string, unitID uuid.UUID, input RecordInput) (Reading, error)
	List(ctx context.Context, managerID string, unitID uuid.UUID, input ListInput) ([]Reading, error)
}

type service struct {
	repo domainrepo.Repository
	now  func() time.Time
}

// New builds a meter Service backed by the provided repository.
func New(repo domainrepo.Repository) Service {
	if repo == nil {
		panic("meter repo is required")
	}
	return &service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Record(ctx context.Context, managerID string, unitID uuid.UUID, input RecordInput) (Reading, error) {
	if err := s.ownedUnit(ctx, managerID, unitID); err != nil {
		return Reading{}, err
	}

	fieldErrors := FieldErrors{}
	meterType := strings.ToUpper(strings.TrimSpace(input.MeterType))
	if !KnownMeterType(meterType) {
		addFieldError(fieldErrors, "meterType", "meterType must be one of ELECTRIC, WATER, GAS")
	}
	if input.Reading < 0 {
		addFieldError(fieldErrors, "reading", "reading must not be negative")
	}
	if len(fieldErrors) > 0 {
		return Reading{}, &ValidationError{Fields: fieldErrors}
	}

	readAt := input.ReadAt
	if readAt.IsZero() {
		readAt = s.now()
	}

	reading, err := s.repo.CreateReading(ctx, persistence.CreateReadingParams{
		ReadingID:  uuid.New(),
		UnitID:     unitID,
		MeterType:  meterType,
		Reading:    input.Reading,
		ReadAt:     readAt,
		RecordedBy: managerID,
	})
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrReadingNotMonotonic):
			return Reading{}, ErrNotMonotonic
		case errors.Is(err, persistence.ErrUnitNotFound):
			return Reading{}, ErrNotFound
		}
		return Reading{}, err
	}
	return reading, nil
}

func (s *service) List(ctx context.Context, managerID string, unitID uuid.UUID, input ListInput) ([]Reading, error) {
	if err := s.ownedUnit(ctx, managerID, unitID); err != nil {
		return nil, err
	}

	if input.MeterType != nil {
		meterType := strings.ToUpper(strings.TrimSpace(*input.MeterType))
		if !KnownMeterType(meterType) {
			return nil, &ValidationError{Fields: FieldErrors{
				"meterType": {"meterType must be one of ELECTRIC, WATER, GAS"},
			}}
		}
		input.MeterType = &meterType
	}

	return s.repo.ListReadings(ctx, persistence.ListReadingsParams{
		UnitID:    unitID,
		MeterType: input.MeterType,
		Since:     input.Since,
	})
}

func (s *service) ownedUnit(ctx context.Context, managerID string, unitID uuid.UUID) error {
	unit, err := s.repo.GetUnit(ctx, unitID)
	if err != nil {
		if errors.Is(err, persistence.ErrUnitNotFound) {
			return ErrNotFound
		}
		return err
	}

	property, err := s.repo.GetProperty(ctx, unit.PropertyID)
	if err != nil {
		if errors.Is(err, persistence.ErrPropertyNotFound) {
			return ErrNotFound
		}
		return err
	}
	if property.ManagerID != managerID {
		return ErrForbidden
	}
	return nil
}

func addFieldError(m FieldErrors, field, message string) {
	m[field] = append(m[field], message)
}
