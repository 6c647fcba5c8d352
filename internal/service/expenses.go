package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/repository"
	"github.com/gofrs/uuid/v5"
)

const (
	defaultLedgerPage = 50
	maxLedgerPage     = 200
)

// ExpenseQuery carries listing filters and paging.
type ExpenseQuery struct {
	From       *time.Time
	To         *time.Time
	PayerID    *uuid.UUID
	Category   *string
	SourceType *string
	Offset     int
	Limit      int
	Order      model.Order
}

// ManualExpenseInput describes an expense entered by hand.
type ManualExpenseInput struct {
	PayerID     *uuid.UUID
	Amount      model.Fixed
	Currency    *string
	Description string
	Category    *string
	OccurredAt  *time.Time
}

// ExpenseService exposes the household expense ledger.
type ExpenseService interface {
	List(ctx context.Context, userID uuid.UUID, q ExpenseQuery) (*model.Page[model.Expense], error)
	Summary(ctx context.Context, userID uuid.UUID, p model.Period) (*model.Summary, error)
	// SharedSummary sums purchases from shared lists.
	SharedSummary(ctx context.Context, userID uuid.UUID, p model.Period) (*model.Summary, error)
	// PersonalSummary sums purchases from the caller's personal lists.
	PersonalSummary(ctx context.Context, userID uuid.UUID, p model.Period) (*model.Summary, error)
	// MineSummary sums everything the caller paid.
	MineSummary(ctx context.Context, userID uuid.UUID, p model.Period) (*model.Summary, error)
	SharedHistory(ctx context.Context, userID uuid.UUID, q ExpenseQuery) (*model.Page[model.Expense], error)
	PersonalHistory(ctx context.Context, userID uuid.UUID, q ExpenseQuery) (*model.Page[model.Expense], error)
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Expense, error)
	// CreateManual records an expense paid by the caller or another member.
	CreateManual(ctx context.Context, userID uuid.UUID, in ManualExpenseInput) (*model.Expense, error)
	// DeleteManual removes a manual expense; derived ones follow their item.
	DeleteManual(ctx context.Context, userID, id uuid.UUID) error
}

type ExpenseServiceImpl struct {
	store repository.Store
	now   func() time.Time
}

// NewExpenseService constructs ExpenseService.
func NewExpenseService(store repository.Store) *ExpenseServiceImpl {
	return &ExpenseServiceImpl{store: store, now: time.Now}
}

func (s *ExpenseServiceImpl) List(ctx context.Context, userID uuid.UUID, q ExpenseQuery) (*model.Page[model.Expense], error) {
	return s.page(ctx, userID, q, nil)
}

func (s *ExpenseServiceImpl) SharedHistory(ctx context.Context, userID uuid.UUID, q ExpenseQuery) (*model.Page[model.Expense], error) {
	return s.page(ctx, userID, q, &repository.ListScopeFilter{Scope: model.ScopeShared})
}

func (s *ExpenseServiceImpl) PersonalHistory(ctx context.Context, userID uuid.UUID, q ExpenseQuery) (*model.Page[model.Expense], error) {
	return s.page(ctx, userID, q, &repository.ListScopeFilter{Scope: model.ScopePersonal, OwnerID: userID})
}

func (s *ExpenseServiceImpl) page(ctx context.Context, userID uuid.UUID, q ExpenseQuery, scope *repository.ListScopeFilter) (*model.Page[model.Expense], error) {
	r := s.store.Repos()
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	f := model.ExpenseFilter{
		HouseholdID: h.ID,
		From:        q.From,
		To:          q.To,
		PayerID:     q.PayerID,
		Category:    q.Category,
		SourceType:  q.SourceType,
		Offset:      max(q.Offset, 0),
		Limit:       clampLimit(q.Limit, defaultLedgerPage, maxLedgerPage),
		Order:       normalizeOrder(q.Order),
	}
	items, total, err := r.Expenses.List(ctx, f, scope)
	if err != nil {
		return nil, err
	}
	return &model.Page[model.Expense]{Items: items, Total: total}, nil
}

func (s *ExpenseServiceImpl) Summary(ctx context.Context, userID uuid.UUID, p model.Period) (*model.Summary, error) {
	return s.sum(ctx, userID, p, false, nil)
}

func (s *ExpenseServiceImpl) SharedSummary(ctx context.Context, userID uuid.UUID, p model.Period) (*model.Summary, error) {
	return s.sum(ctx, userID, p, false, &repository.ListScopeFilter{Scope: model.ScopeShared})
}

func (s *ExpenseServiceImpl) PersonalSummary(ctx context.Context, userID uuid.UUID, p model.Period) (*model.Summary, error) {
	return s.sum(ctx, userID, p, false, &repository.ListScopeFilter{Scope: model.ScopePersonal, OwnerID: userID})
}

func (s *ExpenseServiceImpl) MineSummary(ctx context.Context, userID uuid.UUID, p model.Period) (*model.Summary, error) {
	return s.sum(ctx, userID, p, true, nil)
}

func (s *ExpenseServiceImpl) sum(ctx context.Context, userID uuid.UUID, p model.Period, mine bool, scope *repository.ListScopeFilter) (*model.Summary, error) {
	r := s.store.Repos()
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	f := model.ExpenseFilter{HouseholdID: h.ID, From: p.From, To: p.To}
	if mine {
		f.PayerID = &userID
	}
	total, n, err := r.Expenses.Sum(ctx, f, scope)
	if err != nil {
		return nil, err
	}
	return &model.Summary{Total: total, Currency: h.Currency, Count: n}, nil
}

func (s *ExpenseServiceImpl) Get(ctx context.Context, userID, id uuid.UUID) (*model.Expense, error) {
	r := s.store.Repos()
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	return r.Expenses.Get(ctx, h.ID, id)
}

func (s *ExpenseServiceImpl) CreateManual(ctx context.Context, userID uuid.UUID, in ManualExpenseInput) (*model.Expense, error) {
	if in.Amount <= 0 {
		return nil, errs.New(errs.ErrBadRequest, "amount must be positive")
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, errs.New(errs.ErrBadRequest, "description is required")
	}
	r := s.store.Repos()
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	payer := userID
	if in.PayerID != nil && *in.PayerID != userID {
		if _, err := requireMembership(ctx, r, h.ID, *in.PayerID); err != nil {
			if errors.Is(err, errs.ErrNotMember) {
				return nil, errs.ErrPayerNotMember
			}
			return nil, err
		}
		payer = *in.PayerID
	}
	e := &model.Expense{
		ID:          newID(),
		HouseholdID: h.ID,
		PayerID:     payer,
		Amount:      in.Amount,
		Currency:    h.Currency,
		Description: truncateRunes(desc, maxExpenseDescLen),
		OccurredAt:  s.now(),
		SourceType:  model.SourceManual,
	}
	if c := strings.ToUpper(derefTrim(in.Currency)); c != "" {
		e.Currency = c
	}
	if c := derefTrim(in.Category); c != "" {
		e.Category = &c
	}
	if in.OccurredAt != nil {
		e.OccurredAt = *in.OccurredAt
	}
	if err := r.Expenses.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *ExpenseServiceImpl) DeleteManual(ctx context.Context, userID, id uuid.UUID) error {
	r := s.store.Repos()
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return err
	}
	e, err := r.Expenses.Get(ctx, h.ID, id)
	if err != nil {
		return err
	}
	if e.SourceType != model.SourceManual {
		return errs.ErrNotManualExpense
	}
	return r.Expenses.Delete(ctx, e.ID)
}

func normalizeOrder(o model.Order) model.Order {
	if strings.EqualFold(string(o), string(model.OrderAsc)) {
		return model.OrderAsc
	}
	return model.OrderDesc
}
