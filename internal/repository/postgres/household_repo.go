package postgres

import (
	"context"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// HouseholdRepo implements HouseholdRepository using PostgreSQL.
type HouseholdRepo struct{ q querier }

// NewHouseholdRepo constructs a household repository.
func NewHouseholdRepo(db *DB) *HouseholdRepo { return &HouseholdRepo{q: db.Pool} }

// Create inserts a household.
func (r *HouseholdRepo) Create(ctx context.Context, h *model.Household) error {
	const q = `
INSERT INTO households (id, name, currency)
VALUES ($1, $2, $3)
RETURNING created_at, updated_at`
	return r.q.QueryRow(ctx, q, h.ID, h.Name, h.Currency).Scan(&h.CreatedAt, &h.UpdatedAt)
}

// GetByID selects a household.
func (r *HouseholdRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Household, error) {
	const q = `SELECT id, name, currency, created_at, updated_at FROM households WHERE id=$1`
	var h model.Household
	if err := r.q.QueryRow(ctx, q, id).Scan(&h.ID, &h.Name, &h.Currency, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &h, nil
}

// Update writes name and currency.
func (r *HouseholdRepo) Update(ctx context.Context, h *model.Household) error {
	const q = `UPDATE households SET name=$2, currency=$3, updated_at=now() WHERE id=$1 RETURNING updated_at`
	return notFound(r.q.QueryRow(ctx, q, h.ID, h.Name, h.Currency).Scan(&h.UpdatedAt))
}

// Delete removes a household.
func (r *HouseholdRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM households WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// AddMember inserts a membership if the pair is new.
func (r *HouseholdRepo) AddMember(ctx context.Context, m *model.Membership) (bool, error) {
	const q = `
INSERT INTO household_members (id, household_id, user_id, role)
VALUES ($1, $2, $3, $4)
ON CONFLICT (household_id, user_id) DO NOTHING`
	tag, err := r.q.Exec(ctx, q, m.ID, m.HouseholdID, m.UserID, string(m.Role))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const membershipCols = `id, household_id, user_id, role, created_at`

func scanMembership(row pgx.Row) (*model.Membership, error) {
	var (
		m    model.Membership
		role string
	)
	if err := row.Scan(&m.ID, &m.HouseholdID, &m.UserID, &role, &m.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	m.Role = model.Role(role)
	return &m, nil
}

// GetMembership selects one membership.
func (r *HouseholdRepo) GetMembership(ctx context.Context, householdID, userID uuid.UUID) (*model.Membership, error) {
	const q = `SELECT ` + membershipCols + ` FROM household_members WHERE household_id=$1 AND user_id=$2`
	return scanMembership(r.q.QueryRow(ctx, q, householdID, userID))
}

// EarliestMembershipOf selects the oldest membership of a user.
func (r *HouseholdRepo) EarliestMembershipOf(ctx context.Context, userID uuid.UUID) (*model.Membership, error) {
	const q = `SELECT ` + membershipCols + ` FROM household_members WHERE user_id=$1 ORDER BY created_at ASC, id ASC LIMIT 1`
	return scanMembership(r.q.QueryRow(ctx, q, userID))
}

// EarliestMemberOf selects the oldest membership of a household.
func (r *HouseholdRepo) EarliestMemberOf(ctx context.Context, householdID uuid.UUID) (*model.Membership, error) {
	const q = `SELECT ` + membershipCols + ` FROM household_members WHERE household_id=$1 ORDER BY created_at ASC, id ASC LIMIT 1`
	return scanMembership(r.q.QueryRow(ctx, q, householdID))
}

// CountOwners counts owners.
func (r *HouseholdRepo) CountOwners(ctx context.Context, householdID uuid.UUID) (int, error) {
	const q = `SELECT count(*) FROM household_members WHERE household_id=$1 AND role='owner'`
	var n int
	err := r.q.QueryRow(ctx, q, householdID).Scan(&n)
	return n, err
}

// SetRole updates a member's role.
func (r *HouseholdRepo) SetRole(ctx context.Context, householdID, userID uuid.UUID, role model.Role) error {
	const q = `UPDATE household_members SET role=$3 WHERE household_id=$1 AND user_id=$2`
	tag, err := r.q.Exec(ctx, q, householdID, userID, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// RemoveMember deletes a membership.
func (r *HouseholdRepo) RemoveMember(ctx context.Context, householdID, userID uuid.UUID) error {
	const q = `DELETE FROM household_members WHERE household_id=$1 AND user_id=$2`
	tag, err := r.q.Exec(ctx, q, householdID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListMembers returns members with user data ordered by display name.
func (r *HouseholdRepo) ListMembers(ctx context.Context, householdID uuid.UUID) ([]model.MemberView, error) {
	const q = `
SELECT u.id, u.email, u.display_name, m.role
FROM household_members m
JOIN users u ON u.id = m.user_id
WHERE m.household_id=$1
ORDER BY u.display_name ASC, u.id ASC`
	rows, err := r.q.Query(ctx, q, householdID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.MemberView{}
	for rows.Next() {
		var (
			v    model.MemberView
			role string
		)
		if err := rows.Scan(&v.UserID, &v.Email, &v.DisplayName, &role); err != nil {
			return nil, err
		}
		v.Role = model.Role(role)
		out = append(out, v)
	}
	return out, rows.Err()
}

// MemberIDs returns member user ids.
func (r *HouseholdRepo) MemberIDs(ctx context.Context, householdID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `SELECT user_id FROM household_members WHERE household_id=$1`, householdID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListForUser returns the user's households with role and primary flag.
func (r *HouseholdRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.MyHousehold, error) {
	const q = `
SELECT h.id, h.name, h.currency, m.role, (u.primary_household_id IS NOT DISTINCT FROM h.id) AS is_primary
FROM household_members m
JOIN households h ON h.id = m.household_id
JOIN users u ON u.id = m.user_id
WHERE m.user_id=$1
ORDER BY m.created_at ASC, m.id ASC`
	rows, err := r.q.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.MyHousehold{}
	for rows.Next() {
		var (
			h    model.MyHousehold
			role string
		)
		if err := rows.Scan(&h.ID, &h.Name, &h.Currency, &role, &h.IsPrimary); err != nil {
			return nil, err
		}
		h.Role = model.Role(role)
		out = append(out, h)
	}
	return out, rows.Err()
}
