package service

import (
	"context"

	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// Uncategorized labels expenses without a category in reports.
const Uncategorized = "(uncategorized)"

// ReportService aggregates the ledger of the caller's household.
type ReportService interface {
	// ExpensesByPayer sums shared-list purchases per payer.
	ExpensesByPayer(ctx context.Context, userID uuid.UUID, p model.Period) ([]model.PayerTotal, error)
	// ExpensesByCategory sums shared-list purchases per category.
	ExpensesByCategory(ctx context.Context, userID uuid.UUID, p model.Period) ([]model.CategoryTotal, error)
	// Balance is the caller's income minus what they paid in the household.
	Balance(ctx context.Context, userID uuid.UUID, p model.Period) (*model.Balance, error)
}

type ReportServiceImpl struct {
	store repository.Store
}

// NewReportService constructs ReportService.
func NewReportService(store repository.Store) *ReportServiceImpl {
	return &ReportServiceImpl{store: store}
}

func (s *ReportServiceImpl) ExpensesByPayer(ctx context.Context, userID uuid.UUID, p model.Period) ([]model.PayerTotal, error) {
	r := s.store.Repos()
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	return r.Expenses.TotalsByPayer(ctx, h.ID, p)
}

func (s *ReportServiceImpl) ExpensesByCategory(ctx context.Context, userID uuid.UUID, p model.Period) ([]model.CategoryTotal, error) {
	r := s.store.Repos()
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	rows, err := r.Expenses.TotalsByCategory(ctx, h.ID, p)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Category == "" {
			rows[i].Category = Uncategorized
		}
	}
	return rows, nil
}

func (s *ReportServiceImpl) Balance(ctx context.Context, userID uuid.UUID, p model.Period) (*model.Balance, error) {
	r := s.store.Repos()
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	income, _, err := r.Incomes.Sum(ctx, model.IncomeFilter{OwnerID: userID, From: p.From, To: p.To})
	if err != nil {
		return nil, err
	}
	expense, _, err := r.Expenses.Sum(ctx, model.ExpenseFilter{
		HouseholdID: h.ID, From: p.From, To: p.To, PayerID: &userID,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &model.Balance{
		Income:   income,
		Expense:  expense,
		Balance:  income - expense,
		Currency: h.Currency,
	}, nil
}
