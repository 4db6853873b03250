package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	domainrepo "github.com/homebasehq/homebase/domains/invites/be/repo"
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
	ErrNotFound  = errors.New("invite not found")
	ErrForbidden = errors.New("not allowed to act on this invite")
	ErrConflict  = errors.New("invite conflict")
)

// Token shape. 32 characters from the nanoid URL alphabet keeps the token
// unguessable while staying copy-paste friendly.
const (
	tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	tokenLength   = 32

	// DefaultTTL bounds how long a signature invite stays redeemable.
	DefaultTTL = 14 * 24 * time.Hour
)

// Invite mirrors a stored invite.
type Invite = persistence.Invite

// CreateInput defines the payload required to issue an invite.
type CreateInput struct {
	Email   string
	LeaseID *uuid.UUID
	TTL     time.Duration
}

// Service exposes invite operations.
type Service interface {
	Create(ctx context.Context, managerID string, input CreateInput) (Invite, error)
	GetByToken(ctx context.Context, token string) (Invite, error)
	ListByLease(ctx context.Context, managerID string, leaseID uuid.UUID) ([]Invite, error)
	Revoke(ctx context.Context, managerID string, id uuid.UUID) error
}

type service struct {
	repo     domainrepo.Repository
	now      func() time.Time
	newToken func() (string, error)
}

// New builds an invite Service backed by the provided repository.
func New(repo domainrepo.Repository) Service {
	if repo == nil {
		panic("invite repo is required")
	}
	return &service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
		newToken: func() (string, error) {
			return gonanoid.Generate(tokenAlphabet, tokenLength)
		},
	}
}

func (s *service) Create(ctx context.Context, managerID string, input CreateInput) (Invite, error) {
	fieldErrors := FieldErrors{}
	email := strings.TrimSpace(input.Email)
	if email == "" || !strings.Contains(email[1:], "@") {
		addFieldError(fieldErrors, "email", "email must be a valid email address")
	}
	if len(fieldErrors) > 0 {
		return Invite{}, &ValidationError{Fields: fieldErrors}
	}

	if input.LeaseID != nil {
		if _, err := s.ownedLease(ctx, managerID, *input.LeaseID); err != nil {
			return Invite{}, err
		}
	}

	token, err := s.newToken()
	if err != nil {
		return Invite{}, err
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	invite, err := s.repo.CreateInvite(ctx, persistence.CreateInviteParams{
		InviteID:  uuid.New(),
		Token:     token,
		Email:     email,
		LeaseID:   input.LeaseID,
		ExpiresAt: s.now().Add(ttl),
	})
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrInviteConflict):
			return Invite{}, ErrConflict
		case errors.Is(err, persistence.ErrLeaseNotFound):
			return Invite{}, ErrNotFound
		}
		return Invite{}, err
	}
	return invite, nil
}

func (s *service) GetByToken(ctx context.Context, token string) (Invite, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Invite{}, ErrNotFound
	}

	invite, err := s.repo.GetInviteByToken(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrInviteNotFound) {
			return Invite{}, ErrNotFound
		}
		return Invite{}, err
	}
	return invite, nil
}

func (s *service) ListByLease(ctx context.Context, managerID string, leaseID uuid.UUID) ([]Invite, error) {
	if _, err := s.ownedLease(ctx, managerID, leaseID); err != nil {
		return nil, err
	}
	return s.repo.ListInvitesByLease(ctx, leaseID)
}

func (s *service) Revoke(ctx context.Context, managerID string, id uuid.UUID) error {
	invite, err := s.repo.GetInvite(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrInviteNotFound) {
			return ErrNotFound
		}
		return err
	}
	if invite.LeaseID != nil {
		if _, err := s.ownedLease(ctx, managerID, *invite.LeaseID); err != nil {
			return err
		}
	}

	if err := s.repo.DeleteInvite(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrInviteNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
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

func addFieldError(m FieldErrors, field, message string) {
	m[field] = append(m[field], message)
}
