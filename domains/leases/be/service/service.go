package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/homebasehq/homebase/domains/leases/be/repo"
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
	ErrNotFound = errors.New("lease not found")
	ErrConflict = errors.New("lease conflict")
	// ErrForbidden covers invite-scope failures on the tenant path and
	// ownership failures on the landlord path.
	ErrForbidden = errors.New("not allowed to sign this lease")
	// ErrNotDraft indicates a term edit on a lease that already collected signatures.
	ErrNotDraft = errors.New("lease is not in draft")
)

// Party identifies which side of the lease is signing. It is a closed set;
// ParseParty is the only way handlers should construct one.
type Party string

const (
	PartyTenant   Party = "tenant"
	PartyLandlord Party = "landlord"
)

// ParseParty maps the {role} path segment onto a Party.
func ParseParty(raw string) (Party, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(PartyTenant):
		return PartyTenant, nil
	case string(PartyLandlord):
		return PartyLandlord, nil
	default:
		return "", &ValidationError{Fields: FieldErrors{
			"role": {fmt.Sprintf("role must be %q or %q", PartyTenant, PartyLandlord)},
		}}
	}
}

// Effective lease statuses. SIGNED leases age into ACTIVE and EXPIRED as the
// clock passes the term boundaries; the stored row never changes for that.
const (
	StatusDraft   = "DRAFT"
	StatusSigned  = "SIGNED"
	StatusActive  = "ACTIVE"
	StatusExpired = "EXPIRED"
)

// Lease is the domain view of a lease record, with the derived effective status.
type Lease struct {
	LeaseID            uuid.UUID
	PropertyID         uuid.UUID
	UnitID             uuid.UUID
	TenantEmail        string
	TenantUserID       *string
	StartDate          time.Time
	EndDate            time.Time
	RentAmount         float64
	SecurityDeposit    float64
	TenantPaysElectric bool
	TenantPaysWater    bool
	TenantPaysTrash    bool
	TenantPaysInternet bool
	Status             string
	EffectiveStatus    string
	LandlordSignedAt   *time.Time
	TenantSignedAt     *time.Time
	DocumentVersion    int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// LeaseView is a lease joined with its property and unit.
type LeaseView struct {
	Lease    Lease
	Property persistence.Property
	Unit     persistence.Unit
}

// Renewal mirrors a renewal-history row.
type Renewal = persistence.Renewal

// CreateInput defines the payload required to open a draft lease.
type CreateInput struct {
	PropertyID         uuid.UUID
	UnitID             uuid.UUID
	TenantEmail        string
	StartDate          time.Time
	EndDate            time.Time
	RentAmount         float64
	SecurityDeposit    float64
	TenantPaysElectric bool
	TenantPaysWater    bool
	TenantPaysTrash    bool
	TenantPaysInternet bool
}

// UpdateInput defines the term fields editable while the lease is a draft.
type UpdateInput struct {
	StartDate       *time.Time
	EndDate         *time.Time
	RentAmount      *float64
	SecurityDeposit *float64
	TenantEmail     *string
}

// ListInput filters the lease listing.
type ListInput struct {
	PropertyID *uuid.UUID
	ManagerID  *string
}

// SignInput carries the credentials for a signature request. Token drives the
// tenant path; ManagerID the landlord path. TenantUserID, when present, links
// the authenticated tenant account to the lease on signature.
type SignInput struct {
	Token        string
	TenantUserID *string
	ManagerID    string
}

// SignResult reports the outcome of a signature request. Applied is false when
// the request was an idempotent repeat.
type SignResult struct {
	Message string
	Applied bool
	Lease   LeaseView
}

// RenewInput defines a renewal proposal.
type RenewInput struct {
	NewStartDate time.Time
	NewEndDate   time.Time
	NewRent      float64
	CreatedBy    string
}

// Viewer identifies who is asking to read a lease. Token carries an invite
// token for unauthenticated tenant access; UserID and Role come from
// credentials when the caller is authenticated.
type Viewer struct {
	UserID string
	Role   string
	Token  string
}

// Service exposes lease lifecycle operations.
type Service interface {
	Create(ctx context.Context, managerID string, input CreateInput) (LeaseView, error)
	Get(ctx context.Context, id uuid.UUID, viewer Viewer) (LeaseView, error)
	List(ctx context.Context, input ListInput) ([]Lease, error)
	UpdateDraft(ctx context.Context, managerID string, id uuid.UUID, input UpdateInput) (Lease, error)
	Sign(ctx context.Context, id uuid.UUID, party Party, input SignInput) (SignResult, error)
	Renew(ctx context.Context, managerID string, id uuid.UUID, input RenewInput) (Renewal, Lease, error)
	ListRenewals(ctx context.Context, managerID string, id uuid.UUID) ([]Renewal, error)
}

type service struct {
	repo domainrepo.Repository
	now  func() time.Time
}

// New builds a lease Service backed by the provided repository.
func New(repo domainrepo.Repository) Service {
	if repo == nil {
		panic("lease repo is required")
	}
	return &service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Create(ctx context.Context, managerID string, input CreateInput) (LeaseView, error) {
	fieldErrors := FieldErrors{}

	if input.PropertyID == uuid.Nil {
		addFieldError(fieldErrors, "propertyId", "propertyId is required")
	}
	if input.UnitID == uuid.Nil {
		addFieldError(fieldErrors, "unitId", "unitId is required")
	}
	validateEmail(fieldErrors, "tenantEmail", input.TenantEmail)
	validateTerm(fieldErrors, input.StartDate, input.EndDate)
	if input.RentAmount <= 0 {
		addFieldError(fieldErrors, "rentAmount", "rentAmount must be positive")
	}
	if input.SecurityDeposit < 0 {
		addFieldError(fieldErrors, "securityDeposit", "securityDeposit cannot be negative")
	}
	if len(fieldErrors) > 0 {
		return LeaseView{}, &ValidationError{Fields: fieldErrors}
	}

	property, err := s.ownedProperty(ctx, managerID, input.PropertyID)
	if err != nil {
		return LeaseView{}, err
	}

	unit, err := s.repo.GetUnit(ctx, input.UnitID)
	if err != nil {
		if errors.Is(err, persistence.ErrUnitNotFound) {
			return LeaseView{}, &ValidationError{Fields: FieldErrors{
				"unitId": {"unitId does not reference an existing unit"},
			}}
		}
		return LeaseView{}, err
	}
	if unit.PropertyID != property.PropertyID {
		return LeaseView{}, &ValidationError{Fields: FieldErrors{
			"unitId": {"unit does not belong to the given property"},
		}}
	}

	record, err := s.repo.CreateLease(ctx, persistence.CreateLeaseParams{
		LeaseID:            uuid.New(),
		PropertyID:         input.PropertyID,
		UnitID:             input.UnitID,
		TenantEmail:        strings.TrimSpace(input.TenantEmail),
		StartDate:          input.StartDate,
		EndDate:            input.EndDate,
		RentAmount:         input.RentAmount,
		SecurityDeposit:    input.SecurityDeposit,
		TenantPaysElectric: input.TenantPaysElectric,
		TenantPaysWater:    input.TenantPaysWater,
		TenantPaysTrash:    input.TenantPaysTrash,
		TenantPaysInternet: input.TenantPaysInternet,
	})
	if err != nil {
		return LeaseView{}, err
	}

	return LeaseView{
		Lease:    s.mapLease(record),
		Property: property,
		Unit:     unit,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, viewer Viewer) (LeaseView, error) {
	if id == uuid.Nil {
		return LeaseView{}, ErrNotFound
	}
	view, err := s.view(ctx, id)
	if err != nil {
		return LeaseView{}, err
	}
	if err := s.authorizeView(ctx, view, viewer); err != nil {
		return LeaseView{}, err
	}
	return view, nil
}

// authorizeView gates the lease detail. The owning manager, an admin, the
// linked tenant account, or the bearer of an invite token bound to the lease
// may read it; everyone else gets Forbidden.
func (s *service) authorizeView(ctx context.Context, view LeaseView, viewer Viewer) error {
	if token := strings.TrimSpace(viewer.Token); token != "" {
		invite, err := s.repo.GetInviteByToken(ctx, token)
		if err != nil {
			if errors.Is(err, persistence.ErrInviteNotFound) {
				return ErrForbidden
			}
			return err
		}
		if invite.LeaseID == nil || *invite.LeaseID != view.Lease.LeaseID {
			return ErrForbidden
		}
		// An accepted invite keeps read access so the tenant can review
		// the lease after signing.
		if !invite.Accepted && !invite.ExpiresAt.After(s.now()) {
			return ErrForbidden
		}
		return nil
	}

	switch viewer.Role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleManager:
		if view.Property.ManagerID == viewer.UserID {
			return nil
		}
	case auth.RoleTenant:
		if view.Lease.TenantUserID != nil && *view.Lease.TenantUserID == viewer.UserID {
			return nil
		}
	}
	return ErrForbidden
}

func (s *service) List(ctx context.Context, input ListInput) ([]Lease, error) {
	records, err := s.repo.ListLeases(ctx, persistence.ListLeasesParams{
		PropertyID: input.PropertyID,
		ManagerID:  input.ManagerID,
	})
	if err != nil {
		return nil, err
	}

	leases := make([]Lease, 0, len(records))
	for _, record := range records {
		leases = append(leases, s.mapLease(record))
	}
	return leases, nil
}

func (s *service) UpdateDraft(ctx context.Context, managerID string, id uuid.UUID, input UpdateInput) (Lease, error) {
	if id == uuid.Nil {
		return Lease{}, ErrNotFound
	}

	current, err := s.repo.GetLease(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrLeaseNotFound) {
			return Lease{}, ErrNotFound
		}
		return Lease{}, err
	}
	if _, err := s.ownedProperty(ctx, managerID, current.PropertyID); err != nil {
		return Lease{}, err
	}

	fieldErrors := FieldErrors{}
	start := current.StartDate
	end := current.EndDate
	if input.StartDate != nil {
		start = *input.StartDate
	}
	if input.EndDate != nil {
		end = *input.EndDate
	}
	validateTerm(fieldErrors, start, end)
	if input.RentAmount != nil && *input.RentAmount <= 0 {
		addFieldError(fieldErrors, "rentAmount", "rentAmount must be positive")
	}
	if input.SecurityDeposit != nil && *input.SecurityDeposit < 0 {
		addFieldError(fieldErrors, "securityDeposit", "securityDeposit cannot be negative")
	}
	if input.TenantEmail != nil {
		validateEmail(fieldErrors, "tenantEmail", *input.TenantEmail)
	}
	if input.StartDate == nil && input.EndDate == nil && input.RentAmount == nil &&
		input.SecurityDeposit == nil && input.TenantEmail == nil {
		addFieldError(fieldErrors, "body", "at least one field must be provided")
	}
	if len(fieldErrors) > 0 {
		return Lease{}, &ValidationError{Fields: fieldErrors}
	}

	record, err := s.repo.UpdateDraftLease(ctx, id, persistence.UpdateDraftLeaseParams{
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		RentAmount:      input.RentAmount,
		SecurityDeposit: input.SecurityDeposit,
		TenantEmail:     input.TenantEmail,
	})
	if err != nil {
		switch {
		case errors.Is(err, persistence.ErrLeaseNotFound):
			return Lease{}, ErrNotFound
		case errors.Is(err, persistence.ErrLeaseNotDraft):
			return Lease{}, ErrNotDraft
		}
		return Lease{}, err
	}
	return s.mapLease(record), nil
}

func (s *service) Sign(ctx context.Context, id uuid.UUID, party Party, input SignInput) (SignResult, error) {
	if id == uuid.Nil {
		return SignResult{}, ErrNotFound
	}

	current, err := s.repo.GetLease(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrLeaseNotFound) {
			return SignResult{}, ErrNotFound
		}
		return SignResult{}, err
	}

	switch party {
	case PartyTenant:
		return s.signAsTenant(ctx, current, input)
	case PartyLandlord:
		return s.signAsLandlord(ctx, current, input)
	default:
		return SignResult{}, &ValidationError{Fields: FieldErrors{
			"role": {fmt.Sprintf("role must be %q or %q", PartyTenant, PartyLandlord)},
		}}
	}
}

func (s *service) signAsTenant(ctx context.Context, current persistence.Lease, input SignInput) (SignResult, error) {
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return SignResult{}, &ValidationError{Fields: FieldErrors{
			"token": {"token is required for tenant signatures"},
		}}
	}

	invite, err := s.repo.GetInviteByToken(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrInviteNotFound) {
			return SignResult{}, ErrForbidden
		}
		return SignResult{}, err
	}
	if invite.LeaseID == nil || *invite.LeaseID != current.LeaseID {
		return SignResult{}, ErrForbidden
	}

	// A repeat carrying the invite that produced the signature succeeds
	// without touching the invite again, so a tenant can safely retry. The
	// token must still resolve and bind to this lease to reach here.
	if current.TenantSignedAt != nil {
		return s.signResult(ctx, current.LeaseID, "lease already signed by tenant", false)
	}

	now := s.now()
	if invite.Accepted || !invite.ExpiresAt.After(now) {
		return SignResult{}, ErrForbidden
	}

	signed, applied, err := s.repo.ApplyTenantSignature(ctx, current.LeaseID, now, input.TenantUserID)
	if err != nil {
		return SignResult{}, err
	}
	if !applied {
		// Lost the race to another request carrying the same token.
		return s.signResult(ctx, signed.LeaseID, "lease already signed by tenant", false)
	}

	if _, err := s.repo.MarkInviteAccepted(ctx, token, now); err != nil &&
		!errors.Is(err, persistence.ErrInviteConflict) {
		return SignResult{}, err
	}

	return s.signResult(ctx, signed.LeaseID, "lease signed by tenant", true)
}

func (s *service) signAsLandlord(ctx context.Context, current persistence.Lease, input SignInput) (SignResult, error) {
	if _, err := s.ownedProperty(ctx, input.ManagerID, current.PropertyID); err != nil {
		return SignResult{}, err
	}

	if current.LandlordSignedAt != nil {
		return s.signResult(ctx, current.LeaseID, "lease already signed by landlord", false)
	}

	signed, applied, err := s.repo.ApplyLandlordSignature(ctx, current.LeaseID, s.now())
	if err != nil {
		return SignResult{}, err
	}
	if !applied {
		return s.signResult(ctx, signed.LeaseID, "lease already signed by landlord", false)
	}
	return s.signResult(ctx, signed.LeaseID, "lease signed by landlord", true)
}

func (s *service) Renew(ctx context.Context, managerID string, id uuid.UUID, input RenewInput) (Renewal, Lease, error) {
	if id == uuid.Nil {
		return Renewal{}, Lease{}, ErrNotFound
	}

	fieldErrors := FieldErrors{}
	validateTerm(fieldErrors, input.NewStartDate, input.NewEndDate)
	if input.NewRent <= 0 {
		addFieldError(fieldErrors, "newRent", "newRent must be positive")
	}
	if len(fieldErrors) > 0 {
		return Renewal{}, Lease{}, &ValidationError{Fields: fieldErrors}
	}

	current, err := s.repo.GetLease(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrLeaseNotFound) {
			return Renewal{}, Lease{}, ErrNotFound
		}
		return Renewal{}, Lease{}, err
	}
	if _, err := s.ownedProperty(ctx, managerID, current.PropertyID); err != nil {
		return Renewal{}, Lease{}, err
	}

	createdBy := input.CreatedBy
	if createdBy == "" {
		createdBy = managerID
	}

	renewal, updated, err := s.repo.CreateRenewal(ctx, persistence.CreateRenewalParams{
		RenewalID:    uuid.New(),
		LeaseID:      id,
		NewStartDate: input.NewStartDate,
		NewEndDate:   input.NewEndDate,
		NewRent:      input.NewRent,
		CreatedBy:    createdBy,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrLeaseNotFound) {
			return Renewal{}, Lease{}, ErrNotFound
		}
		return Renewal{}, Lease{}, err
	}
	return renewal, s.mapLease(updated), nil
}

func (s *service) ListRenewals(ctx context.Context, managerID string, id uuid.UUID) ([]Renewal, error) {
	if id == uuid.Nil {
		return nil, ErrNotFound
	}
	current, err := s.repo.GetLease(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrLeaseNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := s.ownedProperty(ctx, managerID, current.PropertyID); err != nil {
		return nil, err
	}
	return s.repo.ListRenewals(ctx, id)
}

func (s *service) ownedProperty(ctx context.Context, managerID string, propertyID uuid.UUID) (persistence.Property, error) {
	property, err := s.repo.GetProperty(ctx, propertyID)
	if err != nil {
		if errors.Is(err, persistence.ErrPropertyNotFound) {
			return persistence.Property{}, ErrNotFound
		}
		return persistence.Property{}, err
	}
	if property.ManagerID != managerID {
		return persistence.Property{}, ErrForbidden
	}
	return property, nil
}

func (s *service) view(ctx context.Context, id uuid.UUID) (LeaseView, error) {
	detail, err := s.repo.GetLeaseDetail(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrLeaseNotFound) {
			return LeaseView{}, ErrNotFound
		}
		return LeaseView{}, err
	}
	return LeaseView{
		Lease:    s.mapLease(detail.Lease),
		Property: detail.Property,
		Unit:     detail.Unit,
	}, nil
}

func (s *service) signResult(ctx context.Context, id uuid.UUID, message string, applied bool) (SignResult, error) {
	view, err := s.view(ctx, id)
	if err != nil {
		return SignResult{}, err
	}
	return SignResult{Message: message, Applied: applied, Lease: view}, nil
}

func (s *service) mapLease(record persistence.Lease) Lease {
	return Lease{
		LeaseID:            record.LeaseID,
		PropertyID:         record.PropertyID,
		UnitID:             record.UnitID,
		TenantEmail:        record.TenantEmail,
		TenantUserID:       record.TenantUserID,
		StartDate:          record.StartDate,
		EndDate:            record.EndDate,
		RentAmount:         record.RentAmount,
		SecurityDeposit:    record.SecurityDeposit,
		TenantPaysElectric: record.TenantPaysElectric,
		TenantPaysWater:    record.TenantPaysWater,
		TenantPaysTrash:    record.TenantPaysTrash,
		TenantPaysInternet: record.TenantPaysInternet,
		Status:             record.Status,
		EffectiveStatus:    EffectiveStatus(record, s.now()),
		LandlordSignedAt:   record.LandlordSignedAt,
		TenantSignedAt:     record.TenantSignedAt,
		DocumentVersion:    record.DocumentVersion,
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
	}
}

// EffectiveStatus derives the presentation status from the stored status and
// the lease term. Only fully signed leases age into ACTIVE and EXPIRED.
func EffectiveStatus(record persistence.Lease, now time.Time) string {
	if record.Status != persistence.LeaseStatusSigned {
		return record.Status
	}
	switch {
	case now.Before(record.StartDate):
		return StatusSigned
	case now.After(record.EndDate):
		return StatusExpired
	default:
		return StatusActive
	}
}

func validateTerm(fieldErrors FieldErrors, start, end time.Time) {
	switch {
	case start.IsZero():
		addFieldError(fieldErrors, "startDate", "startDate is required")
	case end.IsZero():
		addFieldError(fieldErrors, "endDate", "endDate is required")
	case !start.Before(end):
		addFieldError(fieldErrors, "endDate", "endDate must be after startDate")
	}
}

func validateEmail(fieldErrors FieldErrors, field, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		addFieldError(fieldErrors, field, field+" is required")
		return
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		addFieldError(fieldErrors, field, field+" must be a valid email address")
	}
}

func addFieldError(m FieldErrors, field, message string) {
	m[field] = append(m[field], message)
}
