package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ExpenseRepo implements ExpenseRepository using PostgreSQL.
type ExpenseRepo struct{ q querier }

// NewExpenseRepo constructs an expense repository.
func NewExpenseRepo(db *DB) *ExpenseRepo { return &ExpenseRepo{q: db.Pool} }

// where accumulates AND-ed predicates with positional arguments.
type where struct {
	parts []string
	args  []any
}

func (w *where) add(pred string, arg any) {
	w.args = append(w.args, arg)
	w.parts = append(w.parts, strings.ReplaceAll(pred, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) raw(pred string) { w.parts = append(w.parts, pred) }

func (w *where) String() string { return strings.Join(w.parts, " AND ") }

// next returns the placeholder for the next appended argument.
func (w *where) next(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

const expenseFrom = `
FROM expenses e
JOIN users p ON p.id = e.payer_id`

const expenseScopeJoin = `
JOIN shopping_items si ON si.id = e.source_id
JOIN shopping_lists sl ON sl.id = si.list_id`

func expenseWhere(f model.ExpenseFilter, scope *repository.ListScopeFilter) (string, *where) {
	w := &where{}
	w.add("e.household_id = ?", f.HouseholdID)
	from := expenseFrom
	if scope != nil {
		from += expenseScopeJoin
		w.raw("e.source_type = 'shopping_item'")
		if scope.Scope == model.ScopePersonal {
			w.add("sl.owner_id = ?", scope.OwnerID)
		} else {
			w.raw("sl.owner_id IS NULL")
		}
	}
	if f.From != nil {
		w.add("e.occurred_at >= ?", *f.From)
	}
	if f.To != nil {
		w.add("e.occurred_at <= ?", *f.To)
	}
	if f.PayerID != nil {
		w.add("e.payer_id = ?", *f.PayerID)
	}
	if f.Category != nil {
		w.add("e.category = ?", *f.Category)
	}
	if f.SourceType != nil {
		w.add("e.source_type = ?", *f.SourceType)
	}
	return from, w
}

// Create inserts an expense.
func (r *ExpenseRepo) Create(ctx context.Context, e *model.Expense) error {
	const q = `
INSERT INTO expenses (id, household_id, payer_id, amount, currency, description, category, occurred_at, source_type, source_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at`
	err := r.q.QueryRow(ctx, q, e.ID, e.HouseholdID, e.PayerID, e.Amount, e.Currency, e.Description,
		e.Category, e.OccurredAt, e.SourceType, e.SourceID).Scan(&e.CreatedAt)
	if isUniqueViolation(err) {
		return errs.Newf(errs.ErrConflict, "expense for %s already exists", e.SourceType)
	}
	return err
}

const expenseCols = `e.id, e.household_id, e.payer_id, p.display_name, e.amount, e.currency, e.description, e.category, e.occurred_at, e.source_type, e.source_id, e.created_at`

func scanExpense(row pgx.Row) (*model.Expense, error) {
	var e model.Expense
	if err := row.Scan(&e.ID, &e.HouseholdID, &e.PayerID, &e.PayerName, &e.Amount, &e.Currency, &e.Description,
		&e.Category, &e.OccurredAt, &e.SourceType, &e.SourceID, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// Get selects one expense of a household.
func (r *ExpenseRepo) Get(ctx context.Context, householdID, id uuid.UUID) (*model.Expense, error) {
	q := `SELECT ` + expenseCols + expenseFrom + `
WHERE e.household_id=$1 AND e.id=$2`
	e, err := scanExpense(r.q.QueryRow(ctx, q, householdID, id))
	return e, notFound(err)
}

// Delete removes an expense.
func (r *ExpenseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM expenses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// DeleteBySource removes the derived expense of a source if present.
func (r *ExpenseRepo) DeleteBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `DELETE FROM expenses WHERE source_type=$1 AND source_id=$2`, sourceType, sourceID)
	return err
}

// List returns a page of expenses and the number of matching rows.
func (r *ExpenseRepo) List(ctx context.Context, f model.ExpenseFilter, scope *repository.ListScopeFilter) ([]model.Expense, int64, error) {
	from, w := expenseWhere(f, scope)

	var total int64
	if err := r.q.QueryRow(ctx, `SELECT count(*)`+from+` WHERE `+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "DESC"
	if f.Order == model.OrderAsc {
		order = "ASC"
	}
	q := `SELECT ` + expenseCols + from + ` WHERE ` + w.String() +
		` ORDER BY e.occurred_at ` + order + `, e.id ` + order
	q += ` LIMIT ` + w.next(f.Limit) + ` OFFSET ` + w.next(f.Offset)

	rows, err := r.q.Query(ctx, q, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

// Sum totals matching expenses.
func (r *ExpenseRepo) Sum(ctx context.Context, f model.ExpenseFilter, scope *repository.ListScopeFilter) (model.Fixed, int64, error) {
	from, w := expenseWhere(f, scope)
	var (
		total model.Fixed
		n     int64
	)
	q := `SELECT COALESCE(SUM(e.amount), 0), count(*)` + from + ` WHERE ` + w.String()
	err := r.q.QueryRow(ctx, q, w.args...).Scan(&total, &n)
	return total, n, err
}

// TotalsByPayer sums shared-list purchases per payer, largest first.
func (r *ExpenseRepo) TotalsByPayer(ctx context.Context, householdID uuid.UUID, p model.Period) ([]model.PayerTotal, error) {
	const q = `
SELECT e.payer_id, p.display_name, SUM(e.amount)
FROM expenses e
JOIN users p ON p.id = e.payer_id
JOIN shopping_items si ON si.id = e.source_id
JOIN shopping_lists sl ON sl.id = si.list_id
WHERE e.household_id=$1 AND e.source_type='shopping_item' AND sl.owner_id IS NULL
  AND ($2::timestamptz IS NULL OR e.occurred_at >= $2)
  AND ($3::timestamptz IS NULL OR e.occurred_at <= $3)
GROUP BY e.payer_id, p.display_name
ORDER BY SUM(e.amount) DESC`
	rows, err := r.q.Query(ctx, q, householdID, p.From, p.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PayerTotal{}
	for rows.Next() {
		var t model.PayerTotal
		if err := rows.Scan(&t.PayerID, &t.DisplayName, &t.Total); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TotalsByCategory sums shared-list purchases per category; NULL becomes "".
func (r *ExpenseRepo) TotalsByCategory(ctx context.Context, householdID uuid.UUID, p model.Period) ([]model.CategoryTotal, error) {
	const q = `
SELECT COALESCE(e.category, ''), SUM(e.amount)
FROM expenses e
JOIN shopping_items si ON si.id = e.source_id
JOIN shopping_lists sl ON sl.id = si.list_id
WHERE e.household_id=$1 AND e.source_type='shopping_item' AND sl.owner_id IS NULL
  AND ($2::timestamptz IS NULL OR e.occurred_at >= $2)
  AND ($3::timestamptz IS NULL OR e.occurred_at <= $3)
GROUP BY COALESCE(e.category, '')
ORDER BY SUM(e.amount) DESC`
	rows, err := r.q.Query(ctx, q, householdID, p.From, p.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CategoryTotal{}
	for rows.Next() {
		var t model.CategoryTotal
		if err := rows.Scan(&t.Category, &t.Total); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
