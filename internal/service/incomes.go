package service

import (
	"context"
	"strings"
	"time"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// IncomeInput holds income fields; nil leaves a field unchanged on update.
type IncomeInput struct {
	Amount      *model.Fixed
	Currency    *string
	Description *string
	Category    *string
	Source      *model.IncomeSource
	OccurredAt  *time.Time
}

// IncomeQuery carries listing filters and paging.
type IncomeQuery struct {
	From     *time.Time
	To       *time.Time
	Category *string
	Source   *model.IncomeSource
	Offset   int
	Limit    int
	Order    model.Order
}

// IncomeService manages personal incomes.
type IncomeService interface {
	Create(ctx context.Context, userID uuid.UUID, in IncomeInput) (*model.Income, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Income, error)
	Update(ctx context.Context, userID, id uuid.UUID, in IncomeInput) (*model.Income, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID, q IncomeQuery) (*model.Page[model.Income], error)
	Summary(ctx context.Context, userID uuid.UUID, p model.Period) (*model.Summary, error)
}

type IncomeServiceImpl struct {
	store           repository.Store
	defaultCurrency string
	now             func() time.Time
}

// NewIncomeService constructs IncomeService.
func NewIncomeService(store repository.Store, defaultCurrency string) *IncomeServiceImpl {
	if defaultCurrency == "" {
		defaultCurrency = "CUP"
	}
	return &IncomeServiceImpl{store: store, defaultCurrency: strings.ToUpper(defaultCurrency), now: time.Now}
}

// Create takes the currency from the input, else the resolved household.
func (s *IncomeServiceImpl) Create(ctx context.Context, userID uuid.UUID, in IncomeInput) (*model.Income, error) {
	if in.Amount == nil {
		return nil, errs.New(errs.ErrBadRequest, "amount is required")
	}
	r := s.store.Repos()
	inc := &model.Income{
		ID:         newID(),
		OwnerID:    userID,
		Source:     model.IncomeOther,
		OccurredAt: s.now(),
	}
	if err := applyIncomeInput(inc, in); err != nil {
		return nil, err
	}
	if inc.Currency == "" {
		cur, err := s.currency(ctx, r, userID)
		if err != nil {
			return nil, err
		}
		inc.Currency = cur
	}
	if err := r.Incomes.Create(ctx, inc); err != nil {
		return nil, err
	}
	return inc, nil
}

func (s *IncomeServiceImpl) Get(ctx context.Context, userID, id uuid.UUID) (*model.Income, error) {
	return s.store.Repos().Incomes.Get(ctx, userID, id)
}

func (s *IncomeServiceImpl) Update(ctx context.Context, userID, id uuid.UUID, in IncomeInput) (*model.Income, error) {
	r := s.store.Repos()
	inc, err := r.Incomes.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := applyIncomeInput(inc, in); err != nil {
		return nil, err
	}
	if err := r.Incomes.Update(ctx, inc); err != nil {
		return nil, err
	}
	return inc, nil
}

func (s *IncomeServiceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.Repos().Incomes.Delete(ctx, userID, id)
}

func (s *IncomeServiceImpl) List(ctx context.Context, userID uuid.UUID, q IncomeQuery) (*model.Page[model.Income], error) {
	if q.Source != nil && !q.Source.Valid() {
		return nil, errs.Newf(errs.ErrBadRequest, "unknown income source %q", *q.Source)
	}
	items, total, err := s.store.Repos().Incomes.List(ctx, model.IncomeFilter{
		OwnerID:  userID,
		From:     q.From,
		To:       q.To,
		Category: q.Category,
		Source:   q.Source,
		Offset:   max(q.Offset, 0),
		Limit:    clampLimit(q.Limit, defaultLedgerPage, maxLedgerPage),
		Order:    normalizeOrder(q.Order),
	})
	if err != nil {
		return nil, err
	}
	return &model.Page[model.Income]{Items: items, Total: total}, nil
}

func (s *IncomeServiceImpl) Summary(ctx context.Context, userID uuid.UUID, p model.Period) (*model.Summary, error) {
	r := s.store.Repos()
	total, n, err := r.Incomes.Sum(ctx, model.IncomeFilter{OwnerID: userID, From: p.From, To: p.To})
	if err != nil {
		return nil, err
	}
	cur, err := s.currency(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	return &model.Summary{Total: total, Currency: cur, Count: n}, nil
}

// currency is the resolved household's currency or the configured default.
func (s *IncomeServiceImpl) currency(ctx context.Context, r repository.Repos, userID uuid.UUID) (string, error) {
	h, err := resolveHousehold(ctx, r, userID)
	if err != nil {
		return "", err
	}
	if h == nil {
		return s.defaultCurrency, nil
	}
	return h.Currency, nil
}

func applyIncomeInput(inc *model.Income, in IncomeInput) error {
	if in.Amount != nil {
		if *in.Amount <= 0 {
			return errs.New(errs.ErrBadRequest, "amount must be positive")
		}
		inc.Amount = *in.Amount
	}
	if c := strings.ToUpper(derefTrim(in.Currency)); c != "" {
		inc.Currency = c
	}
	if in.Description != nil {
		inc.Description = truncateRunes(strings.TrimSpace(*in.Description), maxExpenseDescLen)
	}
	if in.Category != nil {
		if c := strings.TrimSpace(*in.Category); c != "" {
			inc.Category = &c
		} else {
			inc.Category = nil
		}
	}
	if in.Source != nil {
		if !in.Source.Valid() {
			return errs.Newf(errs.ErrBadRequest, "unknown income source %q", *in.Source)
		}
		inc.Source = *in.Source
	}
	if in.OccurredAt != nil {
		inc.OccurredAt = *in.OccurredAt
	}
	return nil
}
