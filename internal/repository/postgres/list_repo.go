package postgres

import (
	"context"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ListRepo implements ListRepository using PostgreSQL.
type ListRepo struct{ q querier }

// NewListRepo constructs a shopping list repository.
func NewListRepo(db *DB) *ListRepo { return &ListRepo{q: db.Pool} }

const listCols = `id, household_id, name, created_by_id, owner_id, created_at, updated_at`

// ListVisible returns shared lists and the caller's personal lists.
func (r *ListRepo) ListVisible(ctx context.Context, householdID, userID uuid.UUID) ([]model.ShoppingList, error) {
	const q = `SELECT ` + listCols + `
FROM shopping_lists
WHERE household_id=$1 AND (owner_id IS NULL OR owner_id=$2)
ORDER BY created_at ASC, id ASC`
	rows, err := r.q.Query(ctx, q, householdID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ShoppingList{}
	for rows.Next() {
		var l model.ShoppingList
		if err := rows.Scan(&l.ID, &l.HouseholdID, &l.Name, &l.CreatedByID, &l.OwnerID, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetVisible loads a list the caller may see.
func (r *ListRepo) GetVisible(ctx context.Context, householdID, userID, listID uuid.UUID) (*model.ShoppingList, error) {
	const q = `SELECT ` + listCols + `
FROM shopping_lists
WHERE id=$1 AND household_id=$2 AND (owner_id IS NULL OR owner_id=$3)`
	var l model.ShoppingList
	if err := r.q.QueryRow(ctx, q, listID, householdID, userID).
		Scan(&l.ID, &l.HouseholdID, &l.Name, &l.CreatedByID, &l.OwnerID, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

// Create inserts a list.
func (r *ListRepo) Create(ctx context.Context, l *model.ShoppingList) error {
	const q = `
INSERT INTO shopping_lists (id, household_id, name, created_by_id, owner_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`
	return r.q.QueryRow(ctx, q, l.ID, l.HouseholdID, l.Name, l.CreatedByID, l.OwnerID).Scan(&l.CreatedAt, &l.UpdatedAt)
}

// Rename updates the list name.
func (r *ListRepo) Rename(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := r.q.Exec(ctx, `UPDATE shopping_lists SET name=$2, updated_at=now() WHERE id=$1`, id, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a list.
func (r *ListRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM shopping_lists WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
