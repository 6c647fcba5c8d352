package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// ListScope tells shared lists (no owner) from personal ones.
type ListScope string

const (
	ScopeShared   ListScope = "shared"
	ScopePersonal ListScope = "personal"
)

// ShoppingList belongs to a household; OwnerID is set only for personal lists.
type ShoppingList struct {
	ID          uuid.UUID  `json:"id"`
	HouseholdID uuid.UUID  `json:"householdId"`
	Name        string     `json:"name"`
	CreatedByID uuid.UUID  `json:"createdById"`
	OwnerID     *uuid.UUID `json:"ownerId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Scope reports whether the list is shared or personal.
func (l *ShoppingList) Scope() ListScope {
	if l.OwnerID == nil {
		return ScopeShared
	}
	return ScopePersonal
}

// Item is one shopping-list entry.
type Item struct {
	ID              uuid.UUID  `json:"id"`
	ListID          uuid.UUID  `json:"listId"`
	Name            string     `json:"name"`
	Amount          Fixed      `json:"amount"`
	Price           Fixed      `json:"price"`
	Category        *string    `json:"category"`
	Purchased       bool       `json:"purchased"`
	PurchasedAt     *time.Time `json:"purchasedAt"`
	PurchasedByID   *uuid.UUID `json:"purchasedById"`
	PurchasedByName *string    `json:"purchasedByName,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Total is amount times price rounded to two decimals.
func (i *Item) Total() Fixed { return i.Amount.Mul(i.Price) }

// ItemCursor is the keyset position of the pending-items page.
type ItemCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        uuid.UUID `json:"id"`
}

// HistoryCursor is the keyset position of the purchase-history page.
type HistoryCursor struct {
	PurchasedAt time.Time `json:"purchasedAt"`
	ID          uuid.UUID `json:"id"`
}

// ItemsPage is one page of pending items.
type ItemsPage struct {
	Items       []Item  `json:"items"`
	NextCursor  *string `json:"nextCursor"`
	Total       int64   `json:"total"`
	TotalAmount Fixed   `json:"totalAmount"`
}

// HistoryPage is one page of purchased items.
type HistoryPage struct {
	Items      []Item  `json:"items"`
	NextCursor *string `json:"nextCursor"`
	Total      int64   `json:"total"`
}

// Expense source types.
const (
	SourceShoppingItem = "shopping_item"
	SourceManual       = "manual"
)

// Expense is money paid by a member on behalf of the household.
type Expense struct {
	ID          uuid.UUID  `json:"id"`
	HouseholdID uuid.UUID  `json:"householdId"`
	PayerID     uuid.UUID  `json:"payerId"`
	PayerName   string     `json:"payerName,omitempty"`
	Amount      Fixed      `json:"amount"`
	Currency    string     `json:"currency"`
	Description string     `json:"description"`
	Category    *string    `json:"category"`
	OccurredAt  time.Time  `json:"occurredAt"`
	SourceType  string     `json:"sourceType"`
	SourceID    *uuid.UUID `json:"sourceId"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Order is a sort direction for ledger listings.
type Order string

const (
	OrderAsc  Order = "ASC"
	OrderDesc Order = "DESC"
)

// ExpenseFilter narrows expense listings and sums.
type ExpenseFilter struct {
	HouseholdID uuid.UUID
	From        *time.Time
	To          *time.Time
	PayerID     *uuid.UUID
	Category    *string
	SourceType  *string
	Offset      int
	Limit       int
	Order       Order
}

// Page is an offset-paginated listing with its total count.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

// Summary is a total with its currency.
type Summary struct {
	Total    Fixed  `json:"total"`
	Currency string `json:"currency"`
	Count    int64  `json:"count"`
}

// IncomeSource classifies an income.
type IncomeSource string

const (
	IncomeSalary IncomeSource = "salary"
	IncomeGift   IncomeSource = "gift"
	IncomeRefund IncomeSource = "refund"
	IncomeOther  IncomeSource = "other"
)

// Valid reports whether s is a known income source.
func (s IncomeSource) Valid() bool {
	switch s {
	case IncomeSalary, IncomeGift, IncomeRefund, IncomeOther:
		return true
	}
	return false
}

// Income is personal to its owner.
type Income struct {
	ID          uuid.UUID    `json:"id"`
	OwnerID     uuid.UUID    `json:"ownerId"`
	Amount      Fixed        `json:"amount"`
	Currency    string       `json:"currency"`
	Description string       `json:"description"`
	Category    *string      `json:"category"`
	Source      IncomeSource `json:"source"`
	OccurredAt  time.Time    `json:"occurredAt"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// IncomeFilter narrows income listings and sums.
type IncomeFilter struct {
	OwnerID  uuid.UUID
	From     *time.Time
	To       *time.Time
	Category *string
	Source   *IncomeSource
	Offset   int
	Limit    int
	Order    Order
}

// PayerTotal is one row of the by-payer report.
type PayerTotal struct {
	PayerID     uuid.UUID `json:"payerId"`
	DisplayName string    `json:"displayName"`
	Total       Fixed     `json:"total"`
}

// CategoryTotal is one row of the by-category report.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    Fixed  `json:"total"`
}

// Balance is income minus expense over a period.
type Balance struct {
	Income   Fixed  `json:"income"`
	Expense  Fixed  `json:"expense"`
	Balance  Fixed  `json:"balance"`
	Currency string `json:"currency"`
}

// Period bounds a report; nil means open.
type Period struct {
	From *time.Time
	To   *time.Time
}
