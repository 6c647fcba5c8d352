package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// InvitationRepo implements InvitationRepository using PostgreSQL.
type InvitationRepo struct{ q querier }

// NewInvitationRepo constructs an invitation repository.
func NewInvitationRepo(db *DB) *InvitationRepo { return &InvitationRepo{q: db.Pool} }

const invitationCols = `id, household_id, email, phone_lookup_hash, invited_identifier, token_hash, status,
invited_by_id, accepted_by_id, expires_at, accepted_at, created_at`

func scanInvitation(row pgx.Row) (*model.Invitation, error) {
	var (
		inv    model.Invitation
		status string
	)
	if err := row.Scan(&inv.ID, &inv.HouseholdID, &inv.Email, &inv.PhoneLookupHash, &inv.InvitedIdentifier,
		&inv.TokenHash, &status, &inv.InvitedByID, &inv.AcceptedByID, &inv.ExpiresAt, &inv.AcceptedAt,
		&inv.CreatedAt); err != nil {
		return nil, err
	}
	inv.Status = model.InvitationStatus(status)
	return &inv, nil
}

func (r *InvitationRepo) queryInvitations(ctx context.Context, q string, args ...any) ([]model.Invitation, error) {
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// Create inserts a pending invitation.
func (r *InvitationRepo) Create(ctx context.Context, inv *model.Invitation) error {
	const q = `
INSERT INTO household_invitations
  (id, household_id, email, phone_lookup_hash, invited_identifier, token_hash, status, invited_by_id, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8)
RETURNING created_at`
	err := r.q.QueryRow(ctx, q, inv.ID, inv.HouseholdID, inv.Email, inv.PhoneLookupHash, inv.InvitedIdentifier,
		inv.TokenHash, inv.InvitedByID, inv.ExpiresAt).Scan(&inv.CreatedAt)
	if isUniqueViolation(err) {
		// household_invitations_pending_{email,phone}_uq; anything else is a token clash
		if strings.Contains(constraintName(err), "_pending_") {
			return errs.ErrDuplicatePendingInvitation
		}
		return errs.ErrConflict
	}
	if err != nil {
		return err
	}
	inv.Status = model.InvitationPending
	return nil
}

// GetByID selects an invitation.
func (r *InvitationRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Invitation, error) {
	inv, err := scanInvitation(r.q.QueryRow(ctx, `SELECT `+invitationCols+` FROM household_invitations WHERE id=$1`, id))
	return inv, notFound(err)
}

// GetByTokenHash selects an invitation by token hash.
func (r *InvitationRepo) GetByTokenHash(ctx context.Context, hash string) (*model.Invitation, error) {
	inv, err := scanInvitation(r.q.QueryRow(ctx, `SELECT `+invitationCols+` FROM household_invitations WHERE token_hash=$1`, hash))
	return inv, notFound(err)
}

// FindPendingByEmail lists pending, unexpired invitations for an email.
func (r *InvitationRepo) FindPendingByEmail(ctx context.Context, email string, now time.Time, limit int) ([]model.Invitation, error) {
	const q = `SELECT ` + invitationCols + `
FROM household_invitations
WHERE email=$1 AND status='pending' AND (expires_at IS NULL OR expires_at > $2)
ORDER BY created_at ASC
LIMIT $3`
	return r.queryInvitations(ctx, q, email, now, limit)
}

// FindPendingByPhoneHash lists pending, unexpired invitations for a phone hash.
func (r *InvitationRepo) FindPendingByPhoneHash(ctx context.Context, hash string, now time.Time, limit int) ([]model.Invitation, error) {
	const q = `SELECT ` + invitationCols + `
FROM household_invitations
WHERE phone_lookup_hash=$1 AND status='pending' AND (expires_at IS NULL OR expires_at > $2)
ORDER BY created_at ASC
LIMIT $3`
	return r.queryInvitations(ctx, q, hash, now, limit)
}

// MarkAccepted records acceptance of a pending invitation.
func (r *InvitationRepo) MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	const q = `
UPDATE household_invitations
SET status='accepted', accepted_at=$3, accepted_by_id=$2, updated_at=now()
WHERE id=$1 AND status='pending'`
	tag, err := r.q.Exec(ctx, q, id, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrInvitationNotPending
	}
	return nil
}

// SetStatus moves a pending invitation to a terminal status.
func (r *InvitationRepo) SetStatus(ctx context.Context, id uuid.UUID, status model.InvitationStatus) error {
	const q = `UPDATE household_invitations SET status=$2, updated_at=now() WHERE id=$1 AND status='pending'`
	tag, err := r.q.Exec(ctx, q, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrInvitationNotPending
	}
	return nil
}

// ExpireOverdue flips overdue pending invitations of a household to expired.
func (r *InvitationRepo) ExpireOverdue(ctx context.Context, householdID uuid.UUID, now time.Time) (int64, error) {
	const q = `
UPDATE household_invitations
SET status='expired', updated_at=now()
WHERE household_id=$1 AND status='pending' AND expires_at IS NOT NULL AND expires_at <= $2`
	tag, err := r.q.Exec(ctx, q, householdID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListByHousehold lists invitations newest first.
func (r *InvitationRepo) ListByHousehold(ctx context.Context, householdID uuid.UUID) ([]model.Invitation, error) {
	const q = `SELECT ` + invitationCols + ` FROM household_invitations WHERE household_id=$1 ORDER BY created_at DESC`
	return r.queryInvitations(ctx, q, householdID)
}
