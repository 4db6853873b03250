package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/homebasehq/homebase/domains/amendments/be/repo"
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
	ErrNotFound = errors.New("amendment not found")
	// ErrInvalidTransition covers decisions on non-pending amendments,
	// execution of non-approved ones, and deletion past PENDING.
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrForbidden         = errors.New("not allowed to act on this amendment")
)

// Actions accepted by the decision endpoint.
const (
	ActionApprove = "APPROVE"
	ActionReject  = "REJECT"
	ActionExecute = "EXECUTE"
)

// Amendment is the domain view of an amendment record.
type Amendment struct {
	AmendmentID       uuid.UUID
	LeaseID           uuid.UUID
	AmendmentType     string
	EffectiveDate     time.Time
	Description       string
	Changes           json.RawMessage
	PreviousValues    json.RawMessage
	Status            string
	RequiresSignature bool
	CreatedBy         string
	ApprovedBy        *string
	ApprovedAt        *time.Time
	RejectedBy        *string
	RejectedAt        *time.Time
	ExecutedBy        *string
	ExecutedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ExecuteResult pairs the executed amendment with the lease it changed.
type ExecuteResult struct {
	Amendment Amendment
	Lease     persistence.Lease
}

// CreateInput defines the payload required to propose an amendment.
type CreateInput struct {
	AmendmentType     string
	EffectiveDate     time.Time
	Description       string
	Changes           json.RawMessage
	RequiresSignature bool
}

// Service exposes amendment lifecycle operations. Every operation authorizes
// the actor against the manager of the lease's property.
type Service interface {
	Create(ctx context.Context, managerID string, leaseID uuid.UUID, input CreateInput) (Amendment, error)
	Get(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID) (Amendment, error)
	List(ctx context.Context, managerID string, leaseID uuid.UUID, status *string) ([]Amendment, error)
	Apply(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID, action string) (ExecuteResult, error)
	Delete(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID) error
}

type service struct {
	repo      domainrepo.Repository
	validator *persistence.ChangesValidator
	now       func() time.Time
}

// New builds an amendment Service backed by the provided repository.
func New(repo domainrepo.Repository, validator *persistence.ChangesValidator) Service {
	if repo == nil {
		panic("amendment repo is required")
	}
	if validator == nil {
		panic("changes validator is required")
	}
	return &service{
		repo:      repo,
		validator: validator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Create(ctx context.Context, managerID string, leaseID uuid.UUID, input CreateInput) (Amendment, error) {
	lease, err := s.ownedLease(ctx, managerID, leaseID)
	if err != nil {
		return Amendment{}, err
	}

	fieldErrors := FieldErrors{}
	amendmentType := strings.ToUpper(strings.TrimSpace(input.AmendmentType))
	if !persistence.KnownAmendmentType(amendmentType) {
		addFieldError(fieldErrors, "amendmentType", fmt.Sprintf("unknown amendment type %q", input.AmendmentType))
	}
	if input.EffectiveDate.IsZero() {
		addFieldError(fieldErrors, "effectiveDate", "effectiveDate is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		addFieldError(fieldErrors, "description", "description is required")
	}
	if len(input.Changes) == 0 || string(input.Changes) == "{}" || string(input.Changes) == "null" {
		addFieldError(fieldErrors, "changes", "changes must not be empty")
	}
	if len(fieldErrors) > 0 {
		return Amendment{}, &ValidationError{Fields: fieldErrors}
	}

	if err := s.validator.Validate(ctx, amendmentType, input.Changes); err != nil {
		return Amendment{}, &ValidationError{Fields: FieldErrors{
			"changes": {err.Error()},
		}}
	}

	previousValues, err := snapshotPreviousValues(lease, input.Changes)
	if err != nil {
		return Amendment{}, &ValidationError{Fields: FieldErrors{
			"changes": {err.Error()},
		}}
	}

	record, err := s.repo.CreateAmendment(ctx, persistence.CreateAmendmentParams{
		AmendmentID:       uuid.New(),
		LeaseID:           leaseID,
		AmendmentType:     amendmentType,
		EffectiveDate:     input.EffectiveDate,
		Description:       strings.TrimSpace(input.Description),
		Changes:           input.Changes,
		PreviousValues:    previousValues,
		RequiresSignature: input.RequiresSignature,
		CreatedBy:         managerID,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrLeaseNotFound) {
			return Amendment{}, ErrNotFound
		}
		return Amendment{}, err
	}
	return mapRecord(record), nil
}

func (s *service) Get(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID) (Amendment, error) {
	if leaseID == uuid.Nil {
		return Amendment{}, ErrNotFound
	}
	if _, err := s.ownedLease(ctx, managerID, leaseID); err != nil {
		return Amendment{}, err
	}
	record, err := s.amendmentOnLease(ctx, leaseID, amendmentID)
	if err != nil {
		return Amendment{}, err
	}
	return mapRecord(record), nil
}

func (s *service) List(ctx context.Context, managerID string, leaseID uuid.UUID, status *string) ([]Amendment, error) {
	if leaseID == uuid.Nil {
		return nil, ErrNotFound
	}
	if _, err := s.ownedLease(ctx, managerID, leaseID); err != nil {
		return nil, err
	}

	records, err := s.repo.ListAmendments(ctx, leaseID, status)
	if err != nil {
		return nil, err
	}

	amendments := make([]Amendment, 0, len(records))
	for _, record := range records {
		amendments = append(amendments, mapRecord(record))
	}
	return amendments, nil
}

// Apply moves an amendment along its lifecycle. APPROVE and REJECT require
// PENDING; EXECUTE requires APPROVED and rewrites the lease transactionally.
func (s *service) Apply(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID, action string) (ExecuteResult, error) {
	record, err := s.amendmentOnLease(ctx, leaseID, amendmentID)
	if err != nil {
		return ExecuteResult{}, err
	}
	if _, err := s.ownedLease(ctx, managerID, record.LeaseID); err != nil {
		return ExecuteResult{}, err
	}

	switch strings.ToUpper(strings.TrimSpace(action)) {
	case ActionApprove:
		decided, err := s.repo.SetDecision(ctx, amendmentID, persistence.AmendmentStatusApproved, managerID, s.now())
		return ExecuteResult{Amendment: mapRecord(decided)}, s.translateError(err)
	case ActionReject:
		decided, err := s.repo.SetDecision(ctx, amendmentID, persistence.AmendmentStatusRejected, managerID, s.now())
		return ExecuteResult{Amendment: mapRecord(decided)}, s.translateError(err)
	case ActionExecute:
		executed, lease, err := s.repo.ExecuteAmendment(ctx, amendmentID, managerID, s.now())
		if err != nil {
			return ExecuteResult{}, s.translateError(err)
		}
		return ExecuteResult{Amendment: mapRecord(executed), Lease: lease}, nil
	default:
		return ExecuteResult{}, &ValidationError{Fields: FieldErrors{
			"action": {fmt.Sprintf("action must be one of %s, %s, %s", ActionApprove, ActionReject, ActionExecute)},
		}}
	}
}

func (s *service) Delete(ctx context.Context, managerID string, leaseID, amendmentID uuid.UUID) error {
	record, err := s.amendmentOnLease(ctx, leaseID, amendmentID)
	if err != nil {
		return err
	}
	if _, err := s.ownedLease(ctx, managerID, record.LeaseID); err != nil {
		return err
	}
	return s.translateError(s.repo.DeletePending(ctx, amendmentID))
}

func (s *service) ownedLease(ctx context.Context, managerID string, leaseID uuid.UUID) (persistence.Lease, error) {
	lease, err := s.repo.GetLease(ctx, leaseID)
	if err != nil {
		if errors.Is(err, persistence.ErrLeaseNotFound) {
			return persistence.Lease{}, ErrNotFound
		}
		return persistence.Lease{}, err
	}

	property, err := s.repo.GetProperty(ctx, lease.PropertyID)
	if err != nil {
		if errors.Is(err, persistence.ErrPropertyNotFound) {
			return persistence.Lease{}, ErrNotFound
		}
		return persistence.Lease{}, err
	}
	if property.ManagerID != managerID {
		return persistence.Lease{}, ErrForbidden
	}
	return lease, nil
}

func (s *service) amendmentOnLease(ctx context.Context, leaseID, amendmentID uuid.UUID) (persistence.Amendment, error) {
	if leaseID == uuid.Nil || amendmentID == uuid.Nil {
		return persistence.Amendment{}, ErrNotFound
	}

	record, err := s.repo.GetAmendment(ctx, amendmentID)
	if err != nil {
		if errors.Is(err, persistence.ErrAmendmentNotFound) {
			return persistence.Amendment{}, ErrNotFound
		}
		return persistence.Amendment{}, err
	}
	if record.LeaseID != leaseID {
		return persistence.Amendment{}, ErrNotFound
	}
	return record, nil
}

func (s *service) translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrAmendmentNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrLeaseNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrAmendmentConflict):
		return ErrInvalidTransition
	default:
		return err
	}
}

// snapshotPreviousValues records the lease values the proposed changes will
// replace, keyed the same way as the changes payload.
func snapshotPreviousValues(lease persistence.Lease, changes json.RawMessage) (json.RawMessage, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(changes, &keys); err != nil {
		return nil, fmt.Errorf("decode changes: %w", err)
	}

	previous := map[string]any{}
	for key := range keys {
		switch key {
		case "startDate":
			previous[key] = lease.StartDate.Format("2006-01-02")
		case "endDate":
			previous[key] = lease.EndDate.Format("2006-01-02")
		case "rentAmount":
			previous[key] = lease.RentAmount
		case "securityDeposit":
			previous[key] = lease.SecurityDeposit
		case "tenantEmail":
			previous[key] = lease.TenantEmail
		case "tenantPaysElectric":
			previous[key] = lease.TenantPaysElectric
		case "tenantPaysWater":
			previous[key] = lease.TenantPaysWater
		case "tenantPaysTrash":
			previous[key] = lease.TenantPaysTrash
		case "tenantPaysInternet":
			previous[key] = lease.TenantPaysInternet
		}
	}
	return json.Marshal(previous)
}

func mapRecord(record persistence.Amendment) Amendment {
	return Amendment{
		AmendmentID:       record.AmendmentID,
		LeaseID:           record.LeaseID,
		AmendmentType:     record.AmendmentType,
		EffectiveDate:     record.EffectiveDate,
		Description:       record.Description,
		Changes:           record.Changes,
		PreviousValues:    record.PreviousValues,
		Status:            record.Status,
		RequiresSignature: record.RequiresSignature,
		CreatedBy:         record.CreatedBy,
		ApprovedBy:        record.ApprovedBy,
		ApprovedAt:        record.ApprovedAt,
		RejectedBy:        record.RejectedBy,
		RejectedAt:        record.RejectedAt,
		ExecutedBy:        record.ExecutedBy,
		ExecutedAt:        record.ExecutedAt,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

func addFieldError(m FieldErrors, field, message string) {
	m[field] = append(m[field], message)
}
