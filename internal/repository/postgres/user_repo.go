package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ q querier }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{q: db.Pool} }

const userCols = `id, email, phone_encrypted, phone_lookup_hash, display_name, password_hash, primary_household_id, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.PhoneEncrypted, &u.PhoneLookupHash, &u.DisplayName,
		&u.PasswordHash, &u.PrimaryHouseholdID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// mapUserConflict turns unique violations into the specific identifier conflict.
func mapUserConflict(err error) error {
	if !isUniqueViolation(err) {
		return err
	}
	if strings.Contains(constraintName(err), "phone") {
		return errs.ErrPhoneTaken
	}
	return errs.ErrEmailTaken
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, email, phone_encrypted, phone_lookup_hash, display_name, password_hash, primary_household_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at`
	err := r.q.QueryRow(ctx, q, u.ID, u.Email, u.PhoneEncrypted, u.PhoneLookupHash, u.DisplayName,
		u.PasswordHash, u.PrimaryHouseholdID).Scan(&u.CreatedAt, &u.UpdatedAt)
	return mapUserConflict(err)
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

// GetByEmail selects a user by normalised email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
}

// GetByPhoneHash selects a user by phone lookup hash.
func (r *UserRepo) GetByPhoneHash(ctx context.Context, hash string) (*model.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE phone_lookup_hash=$1`, hash))
}

// EmailTaken reports whether another account uses the email.
func (r *UserRepo) EmailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1 AND id<>$2)`
	var ok bool
	err := r.q.QueryRow(ctx, q, email, except).Scan(&ok)
	return ok, err
}

// PhoneTaken reports whether another account uses the phone hash.
func (r *UserRepo) PhoneTaken(ctx context.Context, hash string, except uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE phone_lookup_hash=$1 AND id<>$2)`
	var ok bool
	err := r.q.QueryRow(ctx, q, hash, except).Scan(&ok)
	return ok, err
}

// UpdateProfile writes identity columns.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *model.User) error {
	const q = `
UPDATE users
SET display_name=$2, email=$3, phone_encrypted=$4, phone_lookup_hash=$5, updated_at=now()
WHERE id=$1`
	tag, err := r.q.Exec(ctx, q, u.ID, u.DisplayName, u.Email, u.PhoneEncrypted, u.PhoneLookupHash)
	if err != nil {
		return mapUserConflict(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	const q = `UPDATE users SET password_hash=$2, updated_at=now() WHERE id=$1`
	tag, err := r.q.Exec(ctx, q, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetPrimaryHousehold updates primary_household_id.
func (r *UserRepo) SetPrimaryHousehold(ctx context.Context, userID uuid.UUID, householdID *uuid.UUID) error {
	const q = `UPDATE users SET primary_household_id=$2, updated_at=now() WHERE id=$1`
	if _, err := r.q.Exec(ctx, q, userID, householdID); err != nil {
		return fmt.Errorf("set primary household: %w", err)
	}
	return nil
}

// ResetPrimaryToEarliest fills empty primaries from the earliest remaining membership.
func (r *UserRepo) ResetPrimaryToEarliest(ctx context.Context, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	const q = `
UPDATE users u
SET primary_household_id = (
  SELECT m.household_id FROM household_members m
  WHERE m.user_id = u.id
  ORDER BY m.created_at ASC, m.id ASC
  LIMIT 1
), updated_at = now()
WHERE u.id = ANY($1::uuid[]) AND u.primary_household_id IS NULL`
	_, err := r.q.Exec(ctx, q, uuidStrings(userIDs))
	return err
}
