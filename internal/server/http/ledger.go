package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/service"
	"github.com/gofrs/uuid/v5"
)

type expenseRequest struct {
	PayerID     *uuid.UUID  `json:"payerId"`
	Amount      model.Fixed `json:"amount" validate:"gt=0"`
	Currency    *string     `json:"currency" validate:"omitempty,len=3,alpha"`
	Description string      `json:"description" validate:"required,max=500"`
	Category    *string     `json:"category" validate:"omitempty,max=60"`
	OccurredAt  *time.Time  `json:"occurredAt"`
}

type incomeRequest struct {
	Amount      *model.Fixed        `json:"amount" validate:"omitempty,gt=0"`
	Currency    *string             `json:"currency" validate:"omitempty,len=3,alpha"`
	Description *string             `json:"description" validate:"omitempty,max=500"`
	Category    *string             `json:"category" validate:"omitempty,max=60"`
	Source      *model.IncomeSource `json:"source" validate:"omitempty,oneof=salary gift refund other"`
	OccurredAt  *time.Time          `json:"occurredAt"`
}

func (req incomeRequest) input() service.IncomeInput {
	return service.IncomeInput{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: cleanPtr(req.Description),
		Category:    cleanPtr(req.Category),
		Source:      req.Source,
		OccurredAt:  req.OccurredAt,
	}
}

// paging reads offset, limit and order shared by ledger listings.
func paging(r *http.Request) (offset, limit int, order model.Order, err error) {
	if offset, err = queryInt(r, "offset"); err != nil {
		return
	}
	if limit, err = queryInt(r, "limit"); err != nil {
		return
	}
	switch o := strings.ToUpper(r.URL.Query().Get("order")); o {
	case "", string(model.OrderAsc), string(model.OrderDesc):
		order = model.Order(o)
	default:
		err = errs.New(errs.ErrBadRequest, "order must be asc or desc")
	}
	return
}

func expenseQuery(r *http.Request) (service.ExpenseQuery, error) {
	var q service.ExpenseQuery
	p, err := queryPeriod(r)
	if err != nil {
		return q, err
	}
	q.From, q.To = p.From, p.To
	if q.PayerID, err = queryUUID(r, "payerId"); err != nil {
		return q, err
	}
	q.Category = queryString(r, "category")
	q.SourceType = queryString(r, "sourceType")
	q.Offset, q.Limit, q.Order, err = paging(r)
	return q, err
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	h.expensePage(w, r, h.svc.Expenses.List)
}

func (h *Handler) sharedHistory(w http.ResponseWriter, r *http.Request) {
	h.expensePage(w, r, h.svc.Expenses.SharedHistory)
}

func (h *Handler) personalHistory(w http.ResponseWriter, r *http.Request) {
	h.expensePage(w, r, h.svc.Expenses.PersonalHistory)
}

type expenseLister func(context.Context, uuid.UUID, service.ExpenseQuery) (*model.Page[model.Expense], error)

func (h *Handler) expensePage(w http.ResponseWriter, r *http.Request, list expenseLister) {
	q, err := expenseQuery(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	page, err := list(r.Context(), userID(r), q)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	page.Items = nonNil(page.Items)
	respondJSON(w, http.StatusOK, page)
}

type summarizer func(context.Context, uuid.UUID, model.Period) (*model.Summary, error)

func (h *Handler) summary(w http.ResponseWriter, r *http.Request, sum summarizer) {
	p, err := queryPeriod(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	s, err := sum(r.Context(), userID(r), p)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

func (h *Handler) expenseSummary(w http.ResponseWriter, r *http.Request) {
	h.summary(w, r, h.svc.Expenses.Summary)
}

func (h *Handler) sharedSummary(w http.ResponseWriter, r *http.Request) {
	h.summary(w, r, h.svc.Expenses.SharedSummary)
}

func (h *Handler) personalSummary(w http.ResponseWriter, r *http.Request) {
	h.summary(w, r, h.svc.Expenses.PersonalSummary)
}

func (h *Handler) mineSummary(w http.ResponseWriter, r *http.Request) {
	h.summary(w, r, h.svc.Expenses.MineSummary)
}

func (h *Handler) incomeSummary(w http.ResponseWriter, r *http.Request) {
	h.summary(w, r, h.svc.Incomes.Summary)
}

func (h *Handler) getExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	e, err := h.svc.Expenses.Get(r.Context(), userID(r), id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	e, err := h.svc.Expenses.CreateManual(r.Context(), userID(r), service.ManualExpenseInput{
		PayerID:     req.PayerID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: clean(req.Description),
		Category:    cleanPtr(req.Category),
		OccurredAt:  req.OccurredAt,
	})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.svc.Expenses.DeleteManual(r.Context(), userID(r), id); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondNoContent(w)
}

func (h *Handler) listIncomes(w http.ResponseWriter, r *http.Request) {
	p, err := queryPeriod(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	q := service.IncomeQuery{From: p.From, To: p.To, Category: queryString(r, "category")}
	if src := queryString(r, "source"); src != nil {
		s := model.IncomeSource(*src)
		q.Source = &s
	}
	if q.Offset, q.Limit, q.Order, err = paging(r); err != nil {
		respondError(w, h.log, err)
		return
	}
	page, err := h.svc.Incomes.List(r.Context(), userID(r), q)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	page.Items = nonNil(page.Items)
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) createIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	if req.Amount == nil {
		respondError(w, h.log, errs.New(errs.ErrBadRequest, "amount: failed required"))
		return
	}
	inc, err := h.svc.Incomes.Create(r.Context(), userID(r), req.input())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, inc)
}

func (h *Handler) getIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	inc, err := h.svc.Incomes.Get(r.Context(), userID(r), id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, inc)
}

func (h *Handler) updateIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req incomeRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	inc, err := h.svc.Incomes.Update(r.Context(), userID(r), id, req.input())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, inc)
}

func (h *Handler) deleteIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.svc.Incomes.Delete(r.Context(), userID(r), id); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondNoContent(w)
}

func (h *Handler) expensesByPayer(w http.ResponseWriter, r *http.Request) {
	p, err := queryPeriod(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	rows, err := h.svc.Reports.ExpensesByPayer(r.Context(), userID(r), p)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(rows))
}

func (h *Handler) expensesByCategory(w http.ResponseWriter, r *http.Request) {
	p, err := queryPeriod(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	rows, err := h.svc.Reports.ExpensesByCategory(r.Context(), userID(r), p)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(rows))
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	p, err := queryPeriod(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	b, err := h.svc.Reports.Balance(r.Context(), userID(r), p)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}
