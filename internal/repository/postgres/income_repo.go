package postgres

import (
	"context"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// IncomeRepo implements IncomeRepository using PostgreSQL.
type IncomeRepo struct{ q querier }

// NewIncomeRepo constructs an income repository.
func NewIncomeRepo(db *DB) *IncomeRepo { return &IncomeRepo{q: db.Pool} }

const incomeCols = `id, owner_id, amount, currency, description, category, source, occurred_at, created_at`

func scanIncome(row pgx.Row) (*model.Income, error) {
	var (
		in     model.Income
		source string
	)
	if err := row.Scan(&in.ID, &in.OwnerID, &in.Amount, &in.Currency, &in.Description, &in.Category,
		&source, &in.OccurredAt, &in.CreatedAt); err != nil {
		return nil, err
	}
	in.Source = model.IncomeSource(source)
	return &in, nil
}

func incomeWhere(f model.IncomeFilter) *where {
	w := &where{}
	w.add("owner_id = ?", f.OwnerID)
	if f.From != nil {
		w.add("occurred_at >= ?", *f.From)
	}
	if f.To != nil {
		w.add("occurred_at <= ?", *f.To)
	}
	if f.Category != nil {
		w.add("category = ?", *f.Category)
	}
	if f.Source != nil {
		w.add("source = ?", string(*f.Source))
	}
	return w
}

// Create inserts an income.
func (r *IncomeRepo) Create(ctx context.Context, in *model.Income) error {
	const q = `
INSERT INTO incomes (id, owner_id, amount, currency, description, category, source, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at`
	return r.q.QueryRow(ctx, q, in.ID, in.OwnerID, in.Amount, in.Currency, in.Description, in.Category,
		string(in.Source), in.OccurredAt).Scan(&in.CreatedAt)
}

// Get selects an income of its owner.
func (r *IncomeRepo) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Income, error) {
	const q = `SELECT ` + incomeCols + ` FROM incomes WHERE owner_id=$1 AND id=$2`
	in, err := scanIncome(r.q.QueryRow(ctx, q, ownerID, id))
	return in, notFound(err)
}

// Update writes all mutable fields.
func (r *IncomeRepo) Update(ctx context.Context, in *model.Income) error {
	const q = `
UPDATE incomes
SET amount=$3, currency=$4, description=$5, category=$6, source=$7, occurred_at=$8
WHERE owner_id=$1 AND id=$2`
	tag, err := r.q.Exec(ctx, q, in.OwnerID, in.ID, in.Amount, in.Currency, in.Description, in.Category,
		string(in.Source), in.OccurredAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes an income of its owner.
func (r *IncomeRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM incomes WHERE owner_id=$1 AND id=$2`, ownerID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// List returns a page of incomes and the number of matching rows.
func (r *IncomeRepo) List(ctx context.Context, f model.IncomeFilter) ([]model.Income, int64, error) {
	w := incomeWhere(f)

	var total int64
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM incomes WHERE `+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "DESC"
	if f.Order == model.OrderAsc {
		order = "ASC"
	}
	q := `SELECT ` + incomeCols + ` FROM incomes WHERE ` + w.String() +
		` ORDER BY occurred_at ` + order + `, id ` + order
	q += ` LIMIT ` + w.next(f.Limit) + ` OFFSET ` + w.next(f.Offset)

	rows, err := r.q.Query(ctx, q, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.Income{}
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *in)
	}
	return out, total, rows.Err()
}

// Sum totals matching incomes.
func (r *IncomeRepo) Sum(ctx context.Context, f model.IncomeFilter) (model.Fixed, int64, error) {
	w := incomeWhere(f)
	var (
		total model.Fixed
		n     int64
	)
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0), count(*) FROM incomes WHERE `+w.String(), w.args...).Scan(&total, &n)
	return total, n, err
}
