package repository

import (
	"context"
	"time"

	"github.com/and161185/hogar/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ListRepository provides access to shopping lists.
type ListRepository interface {
	// ListVisible returns shared lists of the household plus lists owned by userID.
	ListVisible(ctx context.Context, householdID, userID uuid.UUID) ([]model.ShoppingList, error)
	// GetVisible loads one list if it is visible to userID in the household.
	GetVisible(ctx context.Context, householdID, userID, listID uuid.UUID) (*model.ShoppingList, error)
	// Create inserts a list.
	Create(ctx context.Context, l *model.ShoppingList) error
	// Rename changes the list name.
	Rename(ctx context.Context, id uuid.UUID, name string) error
	// Delete removes the list and its items.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ItemRepository provides access to shopping items and their keyset pages.
type ItemRepository interface {
	// Create inserts an item.
	Create(ctx context.Context, it *model.Item) error
	// Get loads an item of a list.
	Get(ctx context.Context, listID, itemID uuid.UUID) (*model.Item, error)
	// Update writes name, amount, price and category.
	Update(ctx context.Context, it *model.Item) error
	// Delete removes an item.
	Delete(ctx context.Context, itemID uuid.UUID) error
	// SetPurchased writes the purchase flag and its metadata.
	SetPurchased(ctx context.Context, itemID uuid.UUID, purchased bool, at *time.Time, by *uuid.UUID) error

	// Pending returns up to limit unpurchased items after the cursor ordered by (created_at, id).
	Pending(ctx context.Context, listID uuid.UUID, after *model.ItemCursor, limit int) ([]model.Item, error)
	// PendingStats returns the pending count and the sum of amount*price.
	PendingStats(ctx context.Context, listID uuid.UUID) (int64, model.Fixed, error)
	// History returns up to limit purchased items before the cursor ordered by (purchased_at, id) descending.
	History(ctx context.Context, listID uuid.UUID, p model.Period, after *model.HistoryCursor, limit int) ([]model.Item, error)
	// HistoryCount counts purchased items in the period.
	HistoryCount(ctx context.Context, listID uuid.UUID, p model.Period) (int64, error)
}

// ExpenseRepository persists expenses.
type ExpenseRepository interface {
	// Create inserts an expense; a second expense for the same source returns a Conflict.
	Create(ctx context.Context, e *model.Expense) error
	// Get loads an expense of the household.
	Get(ctx context.Context, householdID, id uuid.UUID) (*model.Expense, error)
	// Delete removes an expense.
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteBySource removes the expense derived from a source, if any.
	DeleteBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) error
	// List returns one page of expenses with payer names and the total row count.
	List(ctx context.Context, f model.ExpenseFilter, scope *ListScopeFilter) ([]model.Expense, int64, error)
	// Sum returns total amount and count of matching expenses.
	Sum(ctx context.Context, f model.ExpenseFilter, scope *ListScopeFilter) (model.Fixed, int64, error)
	// TotalsByPayer sums shared-list purchase expenses per payer.
	TotalsByPayer(ctx context.Context, householdID uuid.UUID, p model.Period) ([]model.PayerTotal, error)
	// TotalsByCategory sums shared-list purchase expenses per category.
	TotalsByCategory(ctx context.Context, householdID uuid.UUID, p model.Period) ([]model.CategoryTotal, error)
}

// ListScopeFilter restricts expenses to purchases from shared lists or from
// lists owned by OwnerID.
type ListScopeFilter struct {
	Scope   model.ListScope
	OwnerID uuid.UUID
}

// IncomeRepository persists personal incomes.
type IncomeRepository interface {
	// Create inserts an income.
	Create(ctx context.Context, in *model.Income) error
	// Get loads an income of its owner.
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Income, error)
	// Update writes all mutable fields.
	Update(ctx context.Context, in *model.Income) error
	// Delete removes an income of its owner.
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	// List returns a page of incomes and the total row count.
	List(ctx context.Context, f model.IncomeFilter) ([]model.Income, int64, error)
	// Sum returns the total and count of matching incomes.
	Sum(ctx context.Context, f model.IncomeFilter) (model.Fixed, int64, error)
}
