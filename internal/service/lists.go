package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/repository"
	"github.com/gofrs/uuid/v5"
)

const (
	defaultPageSize   = 30
	maxPageSize       = 100
	maxExpenseDescLen = 120
)

// ItemInput holds optional item fields. Nil leaves a field unchanged.
type ItemInput struct {
	Name     *string
	Amount   *model.Fixed
	Price    *model.Fixed
	Category *string
}

// ListNotifier receives shared-list activity. It must not block.
type ListNotifier interface {
	NotifyListEvent(ev model.ListEvent)
}

type noopNotifier struct{}

func (noopNotifier) NotifyListEvent(model.ListEvent) {}

// ListService defines shopping-list operations scoped to the caller's household.
type ListService interface {
	// ListLists returns shared lists plus the caller's personal lists.
	ListLists(ctx context.Context, userID uuid.UUID) ([]model.ShoppingList, error)
	// CreateList creates a shared or personal list.
	CreateList(ctx context.Context, userID uuid.UUID, name string, scope model.ListScope) (*model.ShoppingList, error)
	// GetList loads a visible list.
	GetList(ctx context.Context, userID, listID uuid.UUID) (*model.ShoppingList, error)
	// UpdateList renames a visible list.
	UpdateList(ctx context.Context, userID, listID uuid.UUID, name string) (*model.ShoppingList, error)
	// DeleteList removes a visible list with its items.
	DeleteList(ctx context.Context, userID, listID uuid.UUID) error
	// PendingItems returns one keyset page of unpurchased items.
	PendingItems(ctx context.Context, userID, listID uuid.UUID, limit int, cursor string) (*model.ItemsPage, error)
	// History returns one keyset page of purchased items, newest first.
	History(ctx context.Context, userID, listID uuid.UUID, p model.Period, limit int, cursor string) (*model.HistoryPage, error)
	// AddItem adds an item to a visible list.
	AddItem(ctx context.Context, userID, listID uuid.UUID, in ItemInput) (*model.Item, error)
	// UpdateItem changes item fields.
	UpdateItem(ctx context.Context, userID, listID, itemID uuid.UUID, in ItemInput) (*model.Item, error)
	// DeleteItem removes an item and its derived expense.
	DeleteItem(ctx context.Context, userID, listID, itemID uuid.UUID) error
	// SetPurchased toggles the purchase flag and keeps the derived expense in step.
	SetPurchased(ctx context.Context, userID, listID, itemID uuid.UUID, purchased bool) (*model.Item, error)
}

type ListServiceImpl struct {
	store  repository.Store
	notify ListNotifier
	now    func() time.Time
}

// NewListService constructs ListService. A nil notifier disables notifications.
func NewListService(store repository.Store, notify ListNotifier) *ListServiceImpl {
	if notify == nil {
		notify = noopNotifier{}
	}
	return &ListServiceImpl{store: store, notify: notify, now: time.Now}
}

func (s *ListServiceImpl) ListLists(ctx context.Context, userID uuid.UUID) ([]model.ShoppingList, error) {
	r := s.store.Repos()
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	return r.Lists.ListVisible(ctx, h.ID, userID)
}

// CreateList defaults to a shared list.
func (s *ListServiceImpl) CreateList(ctx context.Context, userID uuid.UUID, name string, scope model.ListScope) (*model.ShoppingList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.New(errs.ErrBadRequest, "name is required")
	}
	r := s.store.Repos()
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	l := &model.ShoppingList{ID: newID(), HouseholdID: h.ID, Name: name, CreatedByID: userID}
	switch scope {
	case "", model.ScopeShared:
	case model.ScopePersonal:
		l.OwnerID = &userID
	default:
		return nil, errs.Newf(errs.ErrBadRequest, "unknown scope %q", scope)
	}
	if err := r.Lists.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *ListServiceImpl) GetList(ctx context.Context, userID, listID uuid.UUID) (*model.ShoppingList, error) {
	_, l, err := s.visible(ctx, s.store.Repos(), userID, listID)
	return l, err
}

func (s *ListServiceImpl) UpdateList(ctx context.Context, userID, listID uuid.UUID, name string) (*model.ShoppingList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.New(errs.ErrBadRequest, "name is required")
	}
	r := s.store.Repos()
	_, l, err := s.visible(ctx, r, userID, listID)
	if err != nil {
		return nil, err
	}
	if err := r.Lists.Rename(ctx, l.ID, name); err != nil {
		return nil, err
	}
	l.Name = name
	return l, nil
}

func (s *ListServiceImpl) DeleteList(ctx context.Context, userID, listID uuid.UUID) error {
	r := s.store.Repos()
	_, l, err := s.visible(ctx, r, userID, listID)
	if err != nil {
		return err
	}
	return r.Lists.Delete(ctx, l.ID)
}

// PendingItems fetches one extra row to decide whether a next page exists.
func (s *ListServiceImpl) PendingItems(ctx context.Context, userID, listID uuid.UUID, limit int, cursor string) (*model.ItemsPage, error) {
	r := s.store.Repos()
	_, l, err := s.visible(ctx, r, userID, listID)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, defaultPageSize, maxPageSize)
	var after *model.ItemCursor
	if c := (model.ItemCursor{}); decodeCursor(cursor, &c) && c.ID != uuid.Nil {
		after = &c
	}
	items, err := r.Items.Pending(ctx, l.ID, after, limit+1)
	if err != nil {
		return nil, err
	}
	page := &model.ItemsPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1]
		page.NextCursor = encodeCursor(model.ItemCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	page.Total, page.TotalAmount, err = r.Items.PendingStats(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *ListServiceImpl) History(ctx context.Context, userID, listID uuid.UUID, p model.Period, limit int, cursor string) (*model.HistoryPage, error) {
	r := s.store.Repos()
	_, l, err := s.visible(ctx, r, userID, listID)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit, defaultPageSize, maxPageSize)
	var after *model.HistoryCursor
	if c := (model.HistoryCursor{}); decodeCursor(cursor, &c) && c.ID != uuid.Nil {
		after = &c
	}
	items, err := r.Items.History(ctx, l.ID, p, after, limit+1)
	if err != nil {
		return nil, err
	}
	page := &model.HistoryPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1]
		if last.PurchasedAt != nil {
			page.NextCursor = encodeCursor(model.HistoryCursor{PurchasedAt: *last.PurchasedAt, ID: last.ID})
		}
	}
	page.Total, err = r.Items.HistoryCount(ctx, l.ID, p)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// AddItem defaults amount to 1 and price to 0.
func (s *ListServiceImpl) AddItem(ctx context.Context, userID, listID uuid.UUID, in ItemInput) (*model.Item, error) {
	name := derefTrim(in.Name)
	if name == "" {
		return nil, errs.New(errs.ErrBadRequest, "name is required")
	}
	it := &model.Item{ID: newID(), ListID: listID, Name: name, Amount: 100}
	if err := applyItemInput(it, ItemInput{Amount: in.Amount, Price: in.Price, Category: in.Category}); err != nil {
		return nil, err
	}
	r := s.store.Repos()
	h, l, err := s.visible(ctx, r, userID, listID)
	if err != nil {
		return nil, err
	}
	if err := r.Items.Create(ctx, it); err != nil {
		return nil, err
	}
	s.announce(ctx, r, model.ActionItemAdded, h, l, userID, it.Name)
	return it, nil
}

func (s *ListServiceImpl) UpdateItem(ctx context.Context, userID, listID, itemID uuid.UUID, in ItemInput) (*model.Item, error) {
	r := s.store.Repos()
	_, l, err := s.visible(ctx, r, userID, listID)
	if err != nil {
		return nil, err
	}
	it, err := r.Items.Get(ctx, l.ID, itemID)
	if err != nil {
		return nil, err
	}
	if err := applyItemInput(it, in); err != nil {
		return nil, err
	}
	if err := r.Items.Update(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

// DeleteItem drops the derived expense in the same transaction.
func (s *ListServiceImpl) DeleteItem(ctx context.Context, userID, listID, itemID uuid.UUID) error {
	var (
		h    *model.Household
		l    *model.ShoppingList
		name string
	)
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		var err error
		if h, l, err = s.visible(ctx, r, userID, listID); err != nil {
			return err
		}
		it, err := r.Items.Get(ctx, l.ID, itemID)
		if err != nil {
			return err
		}
		name = it.Name
		if it.Purchased {
			if err := r.Expenses.DeleteBySource(ctx, model.SourceShoppingItem, it.ID); err != nil {
				return err
			}
		}
		return r.Items.Delete(ctx, it.ID)
	})
	if err != nil {
		return err
	}
	s.announce(ctx, s.store.Repos(), model.ActionItemDeleted, h, l, userID, name)
	return nil
}

// SetPurchased is idempotent. Purchasing records a shopping expense paid by the
// caller; un-purchasing removes it.
func (s *ListServiceImpl) SetPurchased(ctx context.Context, userID, listID, itemID uuid.UUID, purchased bool) (*model.Item, error) {
	var (
		h       *model.Household
		l       *model.ShoppingList
		it      *model.Item
		changed bool
	)
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		var err error
		if h, l, err = s.visible(ctx, r, userID, listID); err != nil {
			return err
		}
		if it, err = r.Items.Get(ctx, l.ID, itemID); err != nil {
			return err
		}
		if it.Purchased == purchased {
			return nil
		}
		changed = true
		if !purchased {
			it.Purchased, it.PurchasedAt, it.PurchasedByID = false, nil, nil
			if err := r.Items.SetPurchased(ctx, it.ID, false, nil, nil); err != nil {
				return err
			}
			return r.Expenses.DeleteBySource(ctx, model.SourceShoppingItem, it.ID)
		}
		now := s.now()
		it.Purchased, it.PurchasedAt, it.PurchasedByID = true, &now, &userID
		if err := r.Items.SetPurchased(ctx, it.ID, true, &now, &userID); err != nil {
			return err
		}
		src := it.ID
		return r.Expenses.Create(ctx, &model.Expense{
			ID:          newID(),
			HouseholdID: h.ID,
			PayerID:     userID,
			Amount:      it.Total(),
			Currency:    h.Currency,
			Description: truncateRunes("Compra: "+it.Name, maxExpenseDescLen),
			Category:    it.Category,
			OccurredAt:  now,
			SourceType:  model.SourceShoppingItem,
			SourceID:    &src,
		})
	})
	if err != nil {
		return nil, err
	}
	if changed && purchased {
		s.announce(ctx, s.store.Repos(), model.ActionItemCompleted, h, l, userID, it.Name)
	}
	return it, nil
}

// visible resolves the caller's household and a list visible to them in it.
func (s *ListServiceImpl) visible(ctx context.Context, r repository.Repos, userID, listID uuid.UUID) (*model.Household, *model.ShoppingList, error) {
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return nil, nil, err
	}
	l, err := r.Lists.GetVisible(ctx, h.ID, userID, listID)
	if err != nil {
		return nil, nil, err
	}
	return h, l, nil
}

// announce hands shared-list activity to the notifier.
func (s *ListServiceImpl) announce(ctx context.Context, r repository.Repos, action model.ListAction, h *model.Household, l *model.ShoppingList, userID uuid.UUID, item string) {
	if l.Scope() != model.ScopeShared {
		return
	}
	ev := model.ListEvent{
		Action:      action,
		HouseholdID: h.ID,
		ListID:      l.ID,
		UserID:      userID,
		ItemName:    item,
	}
	if u, err := r.Users.GetByID(ctx, userID); err == nil {
		ev.UserName = u.DisplayName
	}
	s.notify.NotifyListEvent(ev)
}

func applyItemInput(it *model.Item, in ItemInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return errs.New(errs.ErrBadRequest, "name is required")
		}
		it.Name = name
	}
	if in.Amount != nil {
		if *in.Amount <= 0 {
			return errs.New(errs.ErrBadRequest, "amount must be positive")
		}
		it.Amount = *in.Amount
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return errs.New(errs.ErrBadRequest, "price must not be negative")
		}
		it.Price = *in.Price
	}
	if in.Category != nil {
		if c := strings.TrimSpace(*in.Category); c != "" {
			it.Category = &c
		} else {
			it.Category = nil
		}
	}
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func encodeCursor(v any) *string {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	c := base64.RawURLEncoding.EncodeToString(b)
	return &c
}

// decodeCursor reports false for empty or malformed cursors.
func decodeCursor(c string, v any) bool {
	if c == "" {
		return false
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(c, "="))
	if err != nil {
		return false
	}
	return json.Unmarshal(b, v) == nil
}
