package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const InvitesTable = "invites"

var (
	// ErrInviteNotFound indicates a missing invite record.
	ErrInviteNotFound = errors.New("invite not found")
	// ErrInviteConflict indicates a token collision or an already-accepted invite.
	ErrInviteConflict = errors.New("invite conflict")
)

// Invite represents a row in the invites table. The token is the capability
// the tenant presents when signing; it is never derivable from the invite id.
type Invite struct {
	InviteID  uuid.UUID  `db:"invite_id" json:"inviteId"`
	Token     string     `db:"token" json:"token"`
	Email     string     `db:"email" json:"email"`
	LeaseID   *uuid.UUID `db:"lease_id" json:"leaseId,omitempty"`
	Accepted  bool       `db:"accepted" json:"accepted"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

const inviteColumns = "invite_id, token, email, lease_id, accepted, expires_at, created_at"

// InviteStore exposes persistence helpers for the invites table.
type InviteStore struct {
	pool *pgxpool.Pool
}

// NewInviteStore returns a store instance backed by the shared pool.
func NewInviteStore(pool *pgxpool.Pool) (*InviteStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &InviteStore{pool: pool}, nil
}

// CreateInviteParams captures the fields required to insert an invite.
type CreateInviteParams struct {
	InviteID  uuid.UUID
	Token     string
	Email     string
	LeaseID   *uuid.UUID
	ExpiresAt time.Time
}

// CreateInvite inserts a new invite and returns the persisted record.
func (s *InviteStore) CreateInvite(ctx context.Context, params CreateInviteParams) (Invite, error) {
	if params.InviteID == uuid.Nil {
		return Invite{}, errors.New("invite id is required")
	}
	if params.Token == "" {
		return Invite{}, errors.New("token is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (invite_id, token, email, lease_id, expires_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING %s
    `, InvitesTable, inviteColumns),
		params.InviteID, params.Token, params.Email, params.LeaseID, params.ExpiresAt,
	)

	invite, err := scanInvite(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Invite{}, ErrInviteConflict
		}
		if isForeignKeyViolation(err) {
			return Invite{}, ErrLeaseNotFound
		}
		return Invite{}, err
	}
	return invite, nil
}

// GetInvite returns a single invite by identifier.
func (s *InviteStore) GetInvite(ctx context.Context, id uuid.UUID) (Invite, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE invite_id = $1
    `, inviteColumns, InvitesTable), id)

	invite, err := scanInvite(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invite{}, ErrInviteNotFound
		}
		return Invite{}, err
	}
	return invite, nil
}

// GetInviteByToken returns the invite carrying the given token.
func (s *InviteStore) GetInviteByToken(ctx context.Context, token string) (Invite, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE token = $1
    `, inviteColumns, InvitesTable), token)

	invite, err := scanInvite(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invite{}, ErrInviteNotFound
		}
		return Invite{}, err
	}
	return invite, nil
}

// ListInvitesByLease returns the invites issued for a lease, newest first.
func (s *InviteStore) ListInvitesByLease(ctx context.Context, leaseID uuid.UUID) ([]Invite, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE lease_id = $1 ORDER BY created_at DESC
    `, inviteColumns, InvitesTable), leaseID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	invites := make([]Invite, 0)
	for rows.Next() {
		invite, scanErr := scanInvite(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan invite: %w", scanErr)
		}
		invites = append(invites, invite)
	}
	return invites, rows.Err()
}

// MarkAccepted flips a live invite to accepted. The guard on accepted and
// expires_at makes the invite single-use under concurrent redemption.
func (s *InviteStore) MarkAccepted(ctx context.Context, token string, now time.Time) (Invite, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s SET accepted = TRUE
        WHERE token = $1 AND accepted = FALSE AND expires_at > $2
        RETURNING %s
    `, InvitesTable, inviteColumns), token, now)

	invite, err := scanInvite(row)
	if err == nil {
		return invite, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Invite{}, err
	}

	if _, getErr := s.GetInviteByToken(ctx, token); getErr != nil {
		return Invite{}, getErr
	}
	return Invite{}, ErrInviteConflict
}

// DeleteInvite removes an invite by identifier.
func (s *InviteStore) DeleteInvite(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE invite_id = $1`, InvitesTable), id)
	if err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}
	return nil
}

func scanInvite(row pgx.Row) (Invite, error) {
	var i Invite
	if err := row.Scan(&i.InviteID, &i.Token, &i.Email, &i.LeaseID, &i.Accepted, &i.ExpiresAt, &i.CreatedAt); err != nil {
		return Invite{}, err
	}
	return i, nil
}
