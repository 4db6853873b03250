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

const LeasesTable = "leases"

// Stored lease statuses. ACTIVE/EXPIRED are derived from dates at read time
// and never written to the row.
const (
	LeaseStatusDraft  = "DRAFT"
	LeaseStatusSigned = "SIGNED"
)

var (
	// ErrLeaseNotFound indicates a missing lease record.
	ErrLeaseNotFound = errors.New("lease not found")
	// ErrLeaseNotDraft indicates a mutation that is only legal on a draft lease.
	ErrLeaseNotDraft = errors.New("lease is not in draft")
)

// Lease represents a row in the leases table.
type Lease struct {
	LeaseID            uuid.UUID  `db:"lease_id" json:"leaseId"`
	PropertyID         uuid.UUID  `db:"property_id" json:"propertyId"`
	UnitID             uuid.UUID  `db:"unit_id" json:"unitId"`
	TenantEmail        string     `db:"tenant_email" json:"tenantEmail"`
	TenantUserID       *string    `db:"tenant_user_id" json:"tenantUserId,omitempty"`
	StartDate          time.Time  `db:"start_date" json:"startDate"`
	EndDate            time.Time  `db:"end_date" json:"endDate"`
	RentAmount         float64    `db:"rent_amount" json:"rentAmount"`
	SecurityDeposit    float64    `db:"security_deposit" json:"securityDeposit"`
	TenantPaysElectric bool       `db:"tenant_pays_electric" json:"tenantPaysElectric"`
	TenantPaysWater    bool       `db:"tenant_pays_water" json:"tenantPaysWater"`
	TenantPaysTrash    bool       `db:"tenant_pays_trash" json:"tenantPaysTrash"`
	TenantPaysInternet bool       `db:"tenant_pays_internet" json:"tenantPaysInternet"`
	Status             string     `db:"status" json:"status"`
	LandlordSignedAt   *time.Time `db:"landlord_signed_at" json:"landlordSignedAt,omitempty"`
	TenantSignedAt     *time.Time `db:"tenant_signed_at" json:"tenantSignedAt,omitempty"`
	DocumentVersion    int        `db:"document_version" json:"documentVersion"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

// LeaseDetail is a lease joined with its property and unit.
type LeaseDetail struct {
	Lease    Lease    `json:"lease"`
	Property Property `json:"property"`
	Unit     Unit     `json:"unit"`
}

// Renewal represents a row in the lease_renewals history table.
type Renewal struct {
	RenewalID       uuid.UUID `db:"renewal_id" json:"renewalId"`
	LeaseID         uuid.UUID `db:"lease_id" json:"leaseId"`
	PreviousEndDate time.Time `db:"previous_end_date" json:"previousEndDate"`
	PreviousRent    float64   `db:"previous_rent" json:"previousRent"`
	NewStartDate    time.Time `db:"new_start_date" json:"newStartDate"`
	NewEndDate      time.Time `db:"new_end_date" json:"newEndDate"`
	NewRent         float64   `db:"new_rent" json:"newRent"`
	CreatedBy       string    `db:"created_by" json:"createdBy"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

const leaseColumns = `lease_id, property_id, unit_id, tenant_email, tenant_user_id,
        start_date, end_date, rent_amount, security_deposit,
        tenant_pays_electric, tenant_pays_water, tenant_pays_trash, tenant_pays_internet,
        status, landlord_signed_at, tenant_signed_at, document_version, created_at, updated_at`

// LeaseStore exposes persistence helpers for the leases and lease_renewals tables.
type LeaseStore struct {
	pool *pgxpool.Pool
}

// NewLeaseStore returns a store instance backed by the shared pool.
func NewLeaseStore(pool *pgxpool.Pool) (*LeaseStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &LeaseStore{pool: pool}, nil
}

// CreateLeaseParams captures the fields required to insert a new lease.
type CreateLeaseParams struct {
	LeaseID            uuid.UUID
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

// CreateLease inserts a new draft lease and returns the persisted record.
func (s *LeaseStore) CreateLease(ctx context.Context, params CreateLeaseParams) (Lease, error) {
	if params.LeaseID == uuid.Nil {
		return Lease{}, errors.New("lease id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (lease_id, property_id, unit_id, tenant_email,
            start_date, end_date, rent_amount, security_deposit,
            tenant_pays_electric, tenant_pays_water, tenant_pays_trash, tenant_pays_internet)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING %s
    `, LeasesTable, leaseColumns),
		params.LeaseID, params.PropertyID, params.UnitID, params.TenantEmail,
		params.StartDate, params.EndDate, params.RentAmount, params.SecurityDeposit,
		params.TenantPaysElectric, params.TenantPaysWater, params.TenantPaysTrash, params.TenantPaysInternet,
	)

	lease, err := scanLease(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Lease{}, ErrPropertyNotFound
		}
		return Lease{}, err
	}
	return lease, nil
}

// GetLease returns a single lease by identifier.
func (s *LeaseStore) GetLease(ctx context.Context, id uuid.UUID) (Lease, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE lease_id = $1
    `, leaseColumns, LeasesTable), id)

	lease, err := scanLease(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lease{}, ErrLeaseNotFound
		}
		return Lease{}, err
	}
	return lease, nil
}

// GetLeaseDetail returns the lease joined with its property and unit.
func (s *LeaseStore) GetLeaseDetail(ctx context.Context, id uuid.UUID) (LeaseDetail, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT l.lease_id, l.property_id, l.unit_id, l.tenant_email, l.tenant_user_id,
               l.start_date, l.end_date, l.rent_amount, l.security_deposit,
               l.tenant_pays_electric, l.tenant_pays_water, l.tenant_pays_trash, l.tenant_pays_internet,
               l.status, l.landlord_signed_at, l.tenant_signed_at, l.document_version, l.created_at, l.updated_at,
               p.property_id, p.manager_id, p.name, p.address, p.city, p.state, p.zip, p.created_at, p.updated_at,
               u.unit_id, u.property_id, u.unit_number, u.bedrooms, u.bathrooms, u.sqft, u.created_at, u.updated_at
        FROM %s l
        JOIN %s p ON p.property_id = l.property_id
        JOIN %s u ON u.unit_id = l.unit_id
        WHERE l.lease_id = $1
    `, LeasesTable, PropertiesTable, UnitsTable), id)

	var detail LeaseDetail
	l := &detail.Lease
	p := &detail.Property
	u := &detail.Unit
	err := row.Scan(
		&l.LeaseID, &l.PropertyID, &l.UnitID, &l.TenantEmail, &l.TenantUserID,
		&l.StartDate, &l.EndDate, &l.RentAmount, &l.SecurityDeposit,
		&l.TenantPaysElectric, &l.TenantPaysWater, &l.TenantPaysTrash, &l.TenantPaysInternet,
		&l.Status, &l.LandlordSignedAt, &l.TenantSignedAt, &l.DocumentVersion, &l.CreatedAt, &l.UpdatedAt,
		&p.PropertyID, &p.ManagerID, &p.Name, &p.Address, &p.City, &p.State, &p.Zip, &p.CreatedAt, &p.UpdatedAt,
		&u.UnitID, &u.PropertyID, &u.UnitNumber, &u.Bedrooms, &u.Bathrooms, &u.Sqft, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LeaseDetail{}, ErrLeaseNotFound
		}
		return LeaseDetail{}, err
	}
	return detail, nil
}

// ListLeasesParams filters the lease listing.
type ListLeasesParams struct {
	PropertyID *uuid.UUID
	ManagerID  *string
}

// ListLeases returns leases matching the filters, newest first.
func (s *LeaseStore) ListLeases(ctx context.Context, params ListLeasesParams) ([]Lease, error) {
	where := "1=1"
	var args []any

	if params.PropertyID != nil {
		args = append(args, *params.PropertyID)
		where += fmt.Sprintf(" AND l.property_id = $%d", len(args))
	}
	if params.ManagerID != nil {
		args = append(args, *params.ManagerID)
		where += fmt.Sprintf(" AND p.manager_id = $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT l.lease_id, l.property_id, l.unit_id, l.tenant_email, l.tenant_user_id,
               l.start_date, l.end_date, l.rent_amount, l.security_deposit,
               l.tenant_pays_electric, l.tenant_pays_water, l.tenant_pays_trash, l.tenant_pays_internet,
               l.status, l.landlord_signed_at, l.tenant_signed_at, l.document_version, l.created_at, l.updated_at
        FROM %s l
        JOIN %s p ON p.property_id = l.property_id
        WHERE %s
        ORDER BY l.created_at DESC
    `, LeasesTable, PropertiesTable, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list leases: %w", err)
	}
	defer rows.Close()

	leases := make([]Lease, 0)
	for rows.Next() {
		lease, scanErr := scanLease(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan lease: %w", scanErr)
		}
		leases = append(leases, lease)
	}
	return leases, rows.Err()
}

// UpdateDraftLeaseParams represents term fields editable while the lease is a draft.
type UpdateDraftLeaseParams struct {
	StartDate       *time.Time
	EndDate         *time.Time
	RentAmount      *float64
	SecurityDeposit *float64
	TenantEmail     *string
}

// UpdateDraftLease applies the provided fields to a draft lease. A lease that
// has left DRAFT can only change through amendments.
func (s *LeaseStore) UpdateDraftLease(ctx context.Context, id uuid.UUID, params UpdateDraftLeaseParams) (Lease, error) {
	setParts := []string{}
	var args []any

	if params.StartDate != nil {
		args = append(args, *params.StartDate)
		setParts = append(setParts, fmt.Sprintf("start_date = $%d", len(args)))
	}
	if params.EndDate != nil {
		args = append(args, *params.EndDate)
		setParts = append(setParts, fmt.Sprintf("end_date = $%d", len(args)))
	}
	if params.RentAmount != nil {
		args = append(args, *params.RentAmount)
		setParts = append(setParts, fmt.Sprintf("rent_amount = $%d", len(args)))
	}
	if params.SecurityDeposit != nil {
		args = append(args, *params.SecurityDeposit)
		setParts = append(setParts, fmt.Sprintf("security_deposit = $%d", len(args)))
	}
	if params.TenantEmail != nil {
		args = append(args, *params.TenantEmail)
		setParts = append(setParts, fmt.Sprintf("tenant_email = $%d", len(args)))
	}

	if len(setParts) == 0 {
		return Lease{}, errors.New("no fields to update")
	}

	args = append(args, id)
	query := fmt.Sprintf(`
        UPDATE %s SET %s, updated_at = NOW()
        WHERE lease_id = $%d AND status = '%s' AND landlord_signed_at IS NULL AND tenant_signed_at IS NULL
        RETURNING %s
    `, LeasesTable, strings.Join(setParts, ", "), len(args), LeaseStatusDraft, leaseColumns)

	lease, err := scanLease(s.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return lease, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Lease{}, err
	}

	// Distinguish missing lease from a lease past the draft stage.
	if _, getErr := s.GetLease(ctx, id); getErr != nil {
		return Lease{}, getErr
	}
	return Lease{}, ErrLeaseNotDraft
}

const (
	applyTenantSignatureSQL = `
        UPDATE leases
        SET tenant_signed_at = $2,
            tenant_user_id = COALESCE($3, tenant_user_id),
            status = CASE WHEN landlord_signed_at IS NOT NULL THEN 'SIGNED' ELSE status END,
            updated_at = NOW()
        WHERE lease_id = $1 AND tenant_signed_at IS NULL
        RETURNING ` + leaseColumns

	applyLandlordSignatureSQL = `
        UPDATE leases
        SET landlord_signed_at = $2,
            status = CASE WHEN tenant_signed_at IS NOT NULL THEN 'SIGNED' ELSE status END,
            updated_at = NOW()
        WHERE lease_id = $1 AND landlord_signed_at IS NULL
        RETURNING ` + leaseColumns
)

// ApplyTenantSignature stamps the tenant signature if absent. The WHERE clause
// makes the read-then-write atomic: a concurrent duplicate request matches
// zero rows and the current row is returned with applied=false.
func (s *LeaseStore) ApplyTenantSignature(ctx context.Context, id uuid.UUID, signedAt time.Time, tenantUserID *string) (Lease, bool, error) {
	lease, err := scanLease(s.pool.QueryRow(ctx, applyTenantSignatureSQL, id, signedAt, tenantUserID))
	if err == nil {
		return lease, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Lease{}, false, err
	}

	lease, err = s.GetLease(ctx, id)
	if err != nil {
		return Lease{}, false, err
	}
	return lease, false, nil
}

// ApplyLandlordSignature stamps the landlord signature if absent; same
// conditional-update contract as ApplyTenantSignature.
func (s *LeaseStore) ApplyLandlordSignature(ctx context.Context, id uuid.UUID, signedAt time.Time) (Lease, bool, error) {
	lease, err := scanLease(s.pool.QueryRow(ctx, applyLandlordSignatureSQL, id, signedAt))
	if err == nil {
		return lease, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Lease{}, false, err
	}

	lease, err = s.GetLease(ctx, id)
	if err != nil {
		return Lease{}, false, err
	}
	return lease, false, nil
}

// CreateRenewalParams captures a renewal proposal.
type CreateRenewalParams struct {
	RenewalID    uuid.UUID
	LeaseID      uuid.UUID
	NewStartDate time.Time
	NewEndDate   time.Time
	NewRent      float64
	CreatedBy    string
}

// CreateRenewal records a renewal history row and applies the new term to the
// lease in one transaction: both signatures are cleared, the status drops back
// to DRAFT, and the document version is bumped so the re-issued signature
// packet is distinguishable.
func (s *LeaseStore) CreateRenewal(ctx context.Context, params CreateRenewalParams) (Renewal, Lease, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Renewal{}, Lease{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	current, err := scanLease(tx.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE lease_id = $1 FOR UPDATE
    `, leaseColumns, LeasesTable), params.LeaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Renewal{}, Lease{}, ErrLeaseNotFound
		}
		return Renewal{}, Lease{}, err
	}

	var renewal Renewal
	err = tx.QueryRow(ctx, `
        INSERT INTO lease_renewals (renewal_id, lease_id, previous_end_date, previous_rent,
            new_start_date, new_end_date, new_rent, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING renewal_id, lease_id, previous_end_date, previous_rent,
            new_start_date, new_end_date, new_rent, created_by, created_at
    `, params.RenewalID, params.LeaseID, current.EndDate, current.RentAmount,
		params.NewStartDate, params.NewEndDate, params.NewRent, params.CreatedBy,
	).Scan(&renewal.RenewalID, &renewal.LeaseID, &renewal.PreviousEndDate, &renewal.PreviousRent,
		&renewal.NewStartDate, &renewal.NewEndDate, &renewal.NewRent, &renewal.CreatedBy, &renewal.CreatedAt)
	if err != nil {
		return Renewal{}, Lease{}, fmt.Errorf("insert renewal: %w", err)
	}

	updated, err := scanLease(tx.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET start_date = $2, end_date = $3, rent_amount = $4,
            landlord_signed_at = NULL, tenant_signed_at = NULL,
            status = '%s', document_version = document_version + 1, updated_at = NOW()
        WHERE lease_id = $1
        RETURNING %s
    `, LeasesTable, LeaseStatusDraft, leaseColumns),
		params.LeaseID, params.NewStartDate, params.NewEndDate, params.NewRent))
	if err != nil {
		return Renewal{}, Lease{}, fmt.Errorf("apply renewal: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Renewal{}, Lease{}, fmt.Errorf("commit renewal: %w", err)
	}
	return renewal, updated, nil
}

// ListRenewals returns the renewal history for a lease, newest first.
func (s *LeaseStore) ListRenewals(ctx context.Context, leaseID uuid.UUID) ([]Renewal, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT renewal_id, lease_id, previous_end_date, previous_rent,
            new_start_date, new_end_date, new_rent, created_by, created_at
        FROM lease_renewals WHERE lease_id = $1
        ORDER BY created_at DESC
    `, leaseID)
	if err != nil {
		return nil, fmt.Errorf("list renewals: %w", err)
	}
	defer rows.Close()

	renewals := make([]Renewal, 0)
	for rows.Next() {
		var r Renewal
		if err := rows.Scan(&r.RenewalID, &r.LeaseID, &r.PreviousEndDate, &r.PreviousRent,
			&r.NewStartDate, &r.NewEndDate, &r.NewRent, &r.CreatedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan renewal: %w", err)
		}
		renewals = append(renewals, r)
	}
	return renewals, rows.Err()
}

func scanLease(row pgx.Row) (Lease, error) {
	var l Lease
	err := row.Scan(
		&l.LeaseID, &l.PropertyID, &l.UnitID, &l.TenantEmail, &l.TenantUserID,
		&l.StartDate, &l.EndDate, &l.RentAmount, &l.SecurityDeposit,
		&l.TenantPaysElectric, &l.TenantPaysWater, &l.TenantPaysTrash, &l.TenantPaysInternet,
		&l.Status, &l.LandlordSignedAt, &l.TenantSignedAt, &l.DocumentVersion, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Lease{}, err
	}
	return l, nil
}
