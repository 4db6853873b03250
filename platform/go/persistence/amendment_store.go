package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const AmendmentsTable = "lease_amendments"

// Amendment lifecycle statuses. The stored value only ever moves forward:
// PENDING -> APPROVED -> EXECUTED, or PENDING -> REJECTED.
const (
	AmendmentStatusPending  = "PENDING"
	AmendmentStatusApproved = "APPROVED"
	AmendmentStatusRejected = "REJECTED"
	AmendmentStatusExecuted = "EXECUTED"
)

var (
	// ErrAmendmentNotFound indicates a missing amendment record.
	ErrAmendmentNotFound = errors.New("amendment not found")
	// ErrAmendmentConflict indicates a transition attempted from the wrong status.
	ErrAmendmentConflict = errors.New("amendment status conflict")
	// ErrUnknownChangeKey indicates a changes payload key with no lease column mapping.
	ErrUnknownChangeKey = errors.New("unknown change key")
)

// Amendment represents a row in the lease_amendments table. Changes carries the
// proposed field deltas; PreviousValues is filled at execution time with the
// lease values the changes replaced.
type Amendment struct {
	AmendmentID       uuid.UUID       `db:"amendment_id" json:"amendmentId"`
	LeaseID           uuid.UUID       `db:"lease_id" json:"leaseId"`
	AmendmentType     string          `db:"amendment_type" json:"amendmentType"`
	EffectiveDate     time.Time       `db:"effective_date" json:"effectiveDate"`
	Description       string          `db:"description" json:"description"`
	Changes           json.RawMessage `db:"changes" json:"changes"`
	PreviousValues    json.RawMessage `db:"previous_values" json:"previousValues"`
	Status            string          `db:"status" json:"status"`
	RequiresSignature bool            `db:"requires_signature" json:"requiresSignature"`
	CreatedBy         string          `db:"created_by" json:"createdBy"`
	ApprovedBy        *string         `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt        *time.Time      `db:"approved_at" json:"approvedAt,omitempty"`
	RejectedBy        *string         `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt        *time.Time      `db:"rejected_at" json:"rejectedAt,omitempty"`
	ExecutedBy        *string         `db:"executed_by" json:"executedBy,omitempty"`
	ExecutedAt        *time.Time      `db:"executed_at" json:"executedAt,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

const amendmentColumns = `amendment_id, lease_id, amendment_type, effective_date, description,
        changes, previous_values, status, requires_signature,
        created_by, approved_by, approved_at, rejected_by, rejected_at,
        executed_by, executed_at, created_at, updated_at`

// AmendmentStore exposes persistence helpers for the lease_amendments table.
type AmendmentStore struct {
	pool *pgxpool.Pool
}

// NewAmendmentStore returns a store instance backed by the shared pool.
func NewAmendmentStore(pool *pgxpool.Pool) (*AmendmentStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &AmendmentStore{pool: pool}, nil
}

// CreateAmendmentParams captures the fields required to propose an amendment.
type CreateAmendmentParams struct {
	AmendmentID       uuid.UUID
	LeaseID           uuid.UUID
	AmendmentType     string
	EffectiveDate     time.Time
	Description       string
	Changes           json.RawMessage
	PreviousValues    json.RawMessage
	RequiresSignature bool
	CreatedBy         string
}

// CreateAmendment inserts a pending amendment and returns the persisted record.
func (s *AmendmentStore) CreateAmendment(ctx context.Context, params CreateAmendmentParams) (Amendment, error) {
	if params.AmendmentID == uuid.Nil {
		return Amendment{}, errors.New("amendment id is required")
	}

	previousValues := params.PreviousValues
	if len(previousValues) == 0 {
		previousValues = json.RawMessage("{}")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (amendment_id, lease_id, amendment_type, effective_date, description,
            changes, previous_values, requires_signature, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING %s
    `, AmendmentsTable, amendmentColumns),
		params.AmendmentID, params.LeaseID, params.AmendmentType, params.EffectiveDate,
		params.Description, params.Changes, previousValues, params.RequiresSignature, params.CreatedBy,
	)

	amendment, err := scanAmendment(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Amendment{}, ErrLeaseNotFound
		}
		return Amendment{}, err
	}
	return amendment, nil
}

// GetAmendment returns a single amendment by identifier.
func (s *AmendmentStore) GetAmendment(ctx context.Context, id uuid.UUID) (Amendment, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE amendment_id = $1
    `, amendmentColumns, AmendmentsTable), id)

	amendment, err := scanAmendment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Amendment{}, ErrAmendmentNotFound
		}
		return Amendment{}, err
	}
	return amendment, nil
}

// ListAmendments returns the amendments for a lease, newest first. An optional
// status narrows the listing.
func (s *AmendmentStore) ListAmendments(ctx context.Context, leaseID uuid.UUID, status *string) ([]Amendment, error) {
	where := "lease_id = $1"
	args := []any{leaseID}
	if status != nil {
		args = append(args, *status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE %s ORDER BY created_at DESC
    `, amendmentColumns, AmendmentsTable, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list amendments: %w", err)
	}
	defer rows.Close()

	amendments := make([]Amendment, 0)
	for rows.Next() {
		amendment, scanErr := scanAmendment(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan amendment: %w", scanErr)
		}
		amendments = append(amendments, amendment)
	}
	return amendments, rows.Err()
}

// SetDecision moves a pending amendment to APPROVED or REJECTED. The status
// guard in the WHERE clause makes the transition atomic; a row that already
// left PENDING yields ErrAmendmentConflict. The decider lands in the column
// pair matching the decision, so a rejection never reads as an approval.
func (s *AmendmentStore) SetDecision(ctx context.Context, id uuid.UUID, status string, decidedBy string, decidedAt time.Time) (Amendment, error) {
	decisionSet := "approved_by = $3, approved_at = $4"
	switch status {
	case AmendmentStatusApproved:
	case AmendmentStatusRejected:
		decisionSet = "rejected_by = $3, rejected_at = $4"
	default:
		return Amendment{}, fmt.Errorf("invalid decision status %q", status)
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET status = $2, %s, updated_at = NOW()
        WHERE amendment_id = $1 AND status = '%s'
        RETURNING %s
    `, AmendmentsTable, decisionSet, AmendmentStatusPending, amendmentColumns),
		id, status, decidedBy, decidedAt,
	)

	amendment, err := scanAmendment(row)
	if err == nil {
		return amendment, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Amendment{}, err
	}

	if _, getErr := s.GetAmendment(ctx, id); getErr != nil {
		return Amendment{}, getErr
	}
	return Amendment{}, ErrAmendmentConflict
}

// DeletePending removes an amendment that is still pending. Decided or
// executed amendments are part of the lease history and cannot be deleted.
func (s *AmendmentStore) DeletePending(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
        DELETE FROM %s WHERE amendment_id = $1 AND status = '%s'
    `, AmendmentsTable, AmendmentStatusPending), id)
	if err != nil {
		return fmt.Errorf("delete amendment: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, getErr := s.GetAmendment(ctx, id); getErr != nil {
		return getErr
	}
	return ErrAmendmentConflict
}

// changeColumn maps a changes payload key to its lease column. isDate marks
// values carried as YYYY-MM-DD strings in the JSON payload.
var changeColumns = map[string]struct {
	column string
	isDate bool
}{
	"startDate":          {column: "start_date", isDate: true},
	"endDate":            {column: "end_date", isDate: true},
	"rentAmount":         {column: "rent_amount"},
	"securityDeposit":    {column: "security_deposit"},
	"tenantEmail":        {column: "tenant_email"},
	"tenantPaysElectric": {column: "tenant_pays_electric"},
	"tenantPaysWater":    {column: "tenant_pays_water"},
	"tenantPaysTrash":    {column: "tenant_pays_trash"},
	"tenantPaysInternet": {column: "tenant_pays_internet"},
}

// ExecuteAmendment applies an approved amendment to its lease in one
// transaction: the lease row is locked, the values about to change are
// snapshotted into previous_values, the changes are written to the lease, and
// the amendment moves to EXECUTED. When the amendment requires re-signature
// both signatures are cleared, the lease drops back to DRAFT, and the document
// version is bumped.
func (s *AmendmentStore) ExecuteAmendment(ctx context.Context, id uuid.UUID, executedBy string, executedAt time.Time) (Amendment, Lease, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Amendment{}, Lease{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	amendment, err := scanAmendment(tx.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE amendment_id = $1 FOR UPDATE
    `, amendmentColumns, AmendmentsTable), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Amendment{}, Lease{}, ErrAmendmentNotFound
		}
		return Amendment{}, Lease{}, err
	}
	if amendment.Status != AmendmentStatusApproved {
		return Amendment{}, Lease{}, ErrAmendmentConflict
	}

	lease, err := scanLease(tx.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE lease_id = $1 FOR UPDATE
    `, leaseColumns, LeasesTable), amendment.LeaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Amendment{}, Lease{}, ErrLeaseNotFound
		}
		return Amendment{}, Lease{}, err
	}

	var changes map[string]json.RawMessage
	if err := json.Unmarshal(amendment.Changes, &changes); err != nil {
		return Amendment{}, Lease{}, fmt.Errorf("decode changes: %w", err)
	}

	// Creation-time snapshots win; only keys missing from previous_values are
	// filled in from the lease as it stands now.
	previous := map[string]any{}
	if len(amendment.PreviousValues) > 0 {
		if err := json.Unmarshal(amendment.PreviousValues, &previous); err != nil {
			return Amendment{}, Lease{}, fmt.Errorf("decode previous values: %w", err)
		}
	}

	setParts := []string{}
	var args []any
	args = append(args, amendment.LeaseID)

	for key, raw := range changes {
		mapping, ok := changeColumns[key]
		if !ok {
			return Amendment{}, Lease{}, fmt.Errorf("%w: %s", ErrUnknownChangeKey, key)
		}

		if _, seen := previous[key]; !seen {
			previous[key] = previousLeaseValue(lease, key)
		}

		value, convErr := decodeChangeValue(raw, mapping.isDate)
		if convErr != nil {
			return Amendment{}, Lease{}, fmt.Errorf("decode change %s: %w", key, convErr)
		}
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", mapping.column, len(args)))
	}

	if len(setParts) == 0 {
		return Amendment{}, Lease{}, errors.New("amendment has no changes to apply")
	}

	extra := ""
	if amendment.RequiresSignature {
		extra = fmt.Sprintf(`, landlord_signed_at = NULL, tenant_signed_at = NULL,
            status = '%s', document_version = document_version + 1`, LeaseStatusDraft)
	}

	updatedLease, err := scanLease(tx.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s SET %s%s, updated_at = NOW()
        WHERE lease_id = $1
        RETURNING %s
    `, LeasesTable, strings.Join(setParts, ", "), extra, leaseColumns), args...))
	if err != nil {
		return Amendment{}, Lease{}, fmt.Errorf("apply changes: %w", err)
	}

	previousJSON, err := json.Marshal(previous)
	if err != nil {
		return Amendment{}, Lease{}, fmt.Errorf("encode previous values: %w", err)
	}

	executed, err := scanAmendment(tx.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET status = '%s', previous_values = $2, executed_by = $3, executed_at = $4, updated_at = NOW()
        WHERE amendment_id = $1
        RETURNING %s
    `, AmendmentsTable, AmendmentStatusExecuted, amendmentColumns),
		id, previousJSON, executedBy, executedAt))
	if err != nil {
		return Amendment{}, Lease{}, fmt.Errorf("mark executed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Amendment{}, Lease{}, fmt.Errorf("commit amendment: %w", err)
	}
	return executed, updatedLease, nil
}

func previousLeaseValue(lease Lease, key string) any {
	switch key {
	case "startDate":
		return lease.StartDate.Format("2006-01-02")
	case "endDate":
		return lease.EndDate.Format("2006-01-02")
	case "rentAmount":
		return lease.RentAmount
	case "securityDeposit":
		return lease.SecurityDeposit
	case "tenantEmail":
		return lease.TenantEmail
	case "tenantPaysElectric":
		return lease.TenantPaysElectric
	case "tenantPaysWater":
		return lease.TenantPaysWater
	case "tenantPaysTrash":
		return lease.TenantPaysTrash
	case "tenantPaysInternet":
		return lease.TenantPaysInternet
	}
	return nil
}

func decodeChangeValue(raw json.RawMessage, isDate bool) (any, error) {
	if isDate {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
		parsed, err := time.Parse("2006-01-02", text)
		if err != nil {
			return nil, err
		}
		return parsed, nil
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return value, nil
}

func scanAmendment(row pgx.Row) (Amendment, error) {
	var a Amendment
	err := row.Scan(
		&a.AmendmentID, &a.LeaseID, &a.AmendmentType, &a.EffectiveDate, &a.Description,
		&a.Changes, &a.PreviousValues, &a.Status, &a.RequiresSignature,
		&a.CreatedBy, &a.ApprovedBy, &a.ApprovedAt, &a.RejectedBy, &a.RejectedAt,
		&a.ExecutedBy, &a.ExecutedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return Amendment{}, err
	}
	return a, nil
}
