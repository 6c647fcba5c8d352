package postgres

import (
	"context"
	"time"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ItemRepo implements ItemRepository using PostgreSQL.
type ItemRepo struct{ q querier }

// NewItemRepo constructs an item repository.
func NewItemRepo(db *DB) *ItemRepo { return &ItemRepo{q: db.Pool} }

const itemCols = `i.id, i.list_id, i.name, i.amount, i.price, i.category, i.purchased, i.purchased_at, i.purchased_by_id, i.created_at, i.updated_at`

func scanItem(row pgx.Row, extra ...any) (*model.Item, error) {
	var it model.Item
	dest := []any{&it.ID, &it.ListID, &it.Name, &it.Amount, &it.Price, &it.Category, &it.Purchased,
		&it.PurchasedAt, &it.PurchasedByID, &it.CreatedAt, &it.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &it, nil
}

// Create inserts an item.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	const q = `
INSERT INTO shopping_items (id, list_id, name, amount, price, category)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at, updated_at`
	return r.q.QueryRow(ctx, q, it.ID, it.ListID, it.Name, it.Amount, it.Price, it.Category).Scan(&it.CreatedAt, &it.UpdatedAt)
}

// Get returns a single item of a list.
func (r *ItemRepo) Get(ctx context.Context, listID, itemID uuid.UUID) (*model.Item, error) {
	const q = `SELECT ` + itemCols + ` FROM shopping_items i WHERE i.list_id=$1 AND i.id=$2`
	it, err := scanItem(r.q.QueryRow(ctx, q, listID, itemID))
	return it, notFound(err)
}

// Update writes the editable fields.
func (r *ItemRepo) Update(ctx context.Context, it *model.Item) error {
	const q = `
UPDATE shopping_items
SET name=$2, amount=$3, price=$4, category=$5, updated_at=now()
WHERE id=$1
RETURNING updated_at`
	return notFound(r.q.QueryRow(ctx, q, it.ID, it.Name, it.Amount, it.Price, it.Category).Scan(&it.UpdatedAt))
}

// Delete removes an item.
func (r *ItemRepo) Delete(ctx context.Context, itemID uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM shopping_items WHERE id=$1`, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetPurchased writes the purchase flag and metadata.
func (r *ItemRepo) SetPurchased(ctx context.Context, itemID uuid.UUID, purchased bool, at *time.Time, by *uuid.UUID) error {
	const q = `
UPDATE shopping_items
SET purchased=$2, purchased_at=$3, purchased_by_id=$4, updated_at=now()
WHERE id=$1`
	tag, err := r.q.Exec(ctx, q, itemID, purchased, at, by)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Pending returns the next page of unpurchased items after the cursor.
func (r *ItemRepo) Pending(ctx context.Context, listID uuid.UUID, after *model.ItemCursor, limit int) ([]model.Item, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		const q = `SELECT ` + itemCols + `
FROM shopping_items i
WHERE i.list_id=$1 AND i.purchased=false
ORDER BY i.created_at ASC, i.id ASC
LIMIT $2`
		rows, err = r.q.Query(ctx, q, listID, limit)
	} else {
		const q = `SELECT ` + itemCols + `
FROM shopping_items i
WHERE i.list_id=$1 AND i.purchased=false AND (i.created_at, i.id) > ($2, $3)
ORDER BY i.created_at ASC, i.id ASC
LIMIT $4`
		rows, err = r.q.Query(ctx, q, listID, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// PendingStats counts pending items and sums amount*price.
func (r *ItemRepo) PendingStats(ctx context.Context, listID uuid.UUID) (int64, model.Fixed, error) {
	const q = `
SELECT count(*), COALESCE(SUM(amount * price), 0)
FROM shopping_items
WHERE list_id=$1 AND purchased=false`
	var (
		n     int64
		total model.Fixed
	)
	err := r.q.QueryRow(ctx, q, listID).Scan(&n, &total)
	return n, total, err
}

// History returns the next page of purchased items before the cursor.
func (r *ItemRepo) History(ctx context.Context, listID uuid.UUID, p model.Period, after *model.HistoryCursor, limit int) ([]model.Item, error) {
	var afterAt *time.Time
	var afterID *uuid.UUID
	if after != nil {
		afterAt, afterID = &after.PurchasedAt, &after.ID
	}
	const q = `SELECT ` + itemCols + `, u.display_name
FROM shopping_items i
LEFT JOIN users u ON u.id = i.purchased_by_id
WHERE i.list_id=$1 AND i.purchased=true AND i.purchased_at IS NOT NULL
  AND ($2::timestamptz IS NULL OR i.purchased_at >= $2)
  AND ($3::timestamptz IS NULL OR i.purchased_at <= $3)
  AND ($4::timestamptz IS NULL OR (i.purchased_at, i.id) < ($4, $5::uuid))
ORDER BY i.purchased_at DESC, i.id DESC
LIMIT $6`
	rows, err := r.q.Query(ctx, q, listID, p.From, p.To, afterAt, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Item{}
	for rows.Next() {
		var name *string
		it, err := scanItem(rows, &name)
		if err != nil {
			return nil, err
		}
		it.PurchasedByName = name
		out = append(out, *it)
	}
	return out, rows.Err()
}

// HistoryCount counts purchased items in the period.
func (r *ItemRepo) HistoryCount(ctx context.Context, listID uuid.UUID, p model.Period) (int64, error) {
	const q = `
SELECT count(*)
FROM shopping_items
WHERE list_id=$1 AND purchased=true AND purchased_at IS NOT NULL
  AND ($2::timestamptz IS NULL OR purchased_at >= $2)
  AND ($3::timestamptz IS NULL OR purchased_at <= $3)`
	var n int64
	err := r.q.QueryRow(ctx, q, listID, p.From, p.To).Scan(&n)
	return n, err
}
