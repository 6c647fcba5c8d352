package postgres

import (
	"context"
	"time"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ q querier }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{q: db.Pool} }

const sessionCols = `id, user_id, refresh_token_hash, previous_refresh_token_hash, refresh_token_expires_at, rotated_at, revoked_at, created_at`

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.PreviousRefreshTokenHash,
		&s.ExpiresAt, &s.RotatedAt, &s.RevokedAt, &s.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// Create inserts a session row.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `
INSERT INTO auth_sessions (id, user_id, refresh_token_hash, refresh_token_expires_at)
VALUES ($1, $2, $3, $4)
RETURNING created_at`
	err := r.q.QueryRow(ctx, q, s.ID, s.UserID, s.RefreshTokenHash, s.ExpiresAt).Scan(&s.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// GetByID selects a session by ID.
func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.q.QueryRow(ctx, `SELECT `+sessionCols+` FROM auth_sessions WHERE id=$1`, id))
}

// FindByRefreshHash matches the current or the previous token hash.
func (r *SessionRepo) FindByRefreshHash(ctx context.Context, hash string) (*model.Session, error) {
	const q = `SELECT ` + sessionCols + `
FROM auth_sessions
WHERE refresh_token_hash=$1 OR previous_refresh_token_hash=$1
ORDER BY (refresh_token_hash=$1) DESC
LIMIT 1`
	return scanSession(r.q.QueryRow(ctx, q, hash))
}

// Rotate is a compare-and-swap on the current refresh hash.
func (r *SessionRepo) Rotate(ctx context.Context, id uuid.UUID, oldHash, newHash string, rotatedAt, expiresAt time.Time) error {
	const q = `
UPDATE auth_sessions
SET previous_refresh_token_hash=refresh_token_hash,
    refresh_token_hash=$3,
    rotated_at=$4,
    refresh_token_expires_at=$5,
    updated_at=now()
WHERE id=$1 AND refresh_token_hash=$2 AND revoked_at IS NULL`
	tag, err := r.q.Exec(ctx, q, id, oldHash, newHash, rotatedAt, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrConflict
	}
	return nil
}

// Revoke sets revoked_at once; later calls are no-ops.
func (r *SessionRepo) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE auth_sessions SET revoked_at=$2, updated_at=now() WHERE id=$1 AND revoked_at IS NULL`
	_, err := r.q.Exec(ctx, q, id, at)
	return err
}
