package service

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// memStore is an in-memory Store. InTx restores a snapshot when fn fails.
type memStore struct {
	mu    sync.Mutex
	clock time.Time

	users       map[uuid.UUID]*model.User
	sessions    map[uuid.UUID]*model.Session
	households  map[uuid.UUID]*model.Household
	members     []*model.Membership
	invitations map[uuid.UUID]*model.Invitation
	lists       map[uuid.UUID]*model.ShoppingList
	items       map[uuid.UUID]*model.Item
	expenses    map[uuid.UUID]*model.Expense
	incomes     map[uuid.UUID]*model.Income
	tokens      map[string]*model.PushToken

	txCalls int
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		clock:       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		users:       map[uuid.UUID]*model.User{},
		sessions:    map[uuid.UUID]*model.Session{},
		households:  map[uuid.UUID]*model.Household{},
		invitations: map[uuid.UUID]*model.Invitation{},
		lists:       map[uuid.UUID]*model.ShoppingList{},
		items:       map[uuid.UUID]*model.Item{},
		expenses:    map[uuid.UUID]*model.Expense{},
		incomes:     map[uuid.UUID]*model.Income{},
		tokens:      map[string]*model.PushToken{},
	}
}

// tick returns a strictly increasing timestamp. Callers hold mu.
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) Repos() repository.Repos {
	return repository.Repos{
		Users:       memUsers{s},
		Sessions:    memSessions{s},
		Households:  memHouseholds{s},
		Invitations: memInvitations{s},
		Lists:       memLists{s},
		Items:       memItems{s},
		Expenses:    memExpenses{s},
		Incomes:     memIncomes{s},
		PushTokens:  memTokens{s},
	}
}

func (s *memStore) InTx(_ context.Context, fn func(r repository.Repos) error) error {
	s.mu.Lock()
	s.txCalls++
	snap := s.snapshot()
	s.mu.Unlock()
	if err := fn(s.Repos()); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

// memState holds copies of every row. The clock is not rolled back.
type memState struct {
	users       map[uuid.UUID]*model.User
	sessions    map[uuid.UUID]*model.Session
	households  map[uuid.UUID]*model.Household
	members     []*model.Membership
	invitations map[uuid.UUID]*model.Invitation
	lists       map[uuid.UUID]*model.ShoppingList
	items       map[uuid.UUID]*model.Item
	expenses    map[uuid.UUID]*model.Expense
	incomes     map[uuid.UUID]*model.Income
	tokens      map[string]*model.PushToken
}

func cloneRows[K comparable, V any](m map[K]*V) map[K]*V {
	out := make(map[K]*V, len(m))
	for k, v := range m {
		cp := *v
		out[k] = &cp
	}
	return out
}

// snapshot copies the rows. Callers hold mu.
func (s *memStore) snapshot() memState {
	members := make([]*model.Membership, len(s.members))
	for i, m := range s.members {
		cp := *m
		members[i] = &cp
	}
	return memState{
		users:       cloneRows(s.users),
		sessions:    cloneRows(s.sessions),
		households:  cloneRows(s.households),
		members:     members,
		invitations: cloneRows(s.invitations),
		lists:       cloneRows(s.lists),
		items:       cloneRows(s.items),
		expenses:    cloneRows(s.expenses),
		incomes:     cloneRows(s.incomes),
		tokens:      cloneRows(s.tokens),
	}
}

// restore puts a snapshot back. Callers hold mu.
func (s *memStore) restore(st memState) {
	s.users, s.sessions, s.households, s.members = st.users, st.sessions, st.households, st.members
	s.invitations, s.lists, s.items = st.invitations, st.lists, st.items
	s.expenses, s.incomes, s.tokens = st.expenses, st.incomes, st.tokens
}

func idLess(a, b uuid.UUID) bool { return bytes.Compare(a[:], b[:]) < 0 }

// ---- users ----

type memUsers struct{ s *memStore }

var _ repository.UserRepository = memUsers{}

func (m memUsers) Create(_ context.Context, u *model.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, o := range m.s.users {
		if u.Email != nil && o.Email != nil && *u.Email == *o.Email {
			return errs.ErrEmailTaken
		}
		if u.PhoneLookupHash != nil && o.PhoneLookupHash != nil && *u.PhoneLookupHash == *o.PhoneLookupHash {
			return errs.ErrPhoneTaken
		}
	}
	u.CreatedAt = m.s.tick()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.s.users[u.ID] = &cp
	return nil
}

func (m memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m memUsers) find(match func(*model.User) bool) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email != nil && *u.Email == email })
}

func (m memUsers) GetByPhoneHash(_ context.Context, hash string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.PhoneLookupHash != nil && *u.PhoneLookupHash == hash })
}

func (m memUsers) EmailTaken(_ context.Context, email string, except uuid.UUID) (bool, error) {
	_, err := m.find(func(u *model.User) bool { return u.ID != except && u.Email != nil && *u.Email == email })
	return err == nil, nil
}

func (m memUsers) PhoneTaken(_ context.Context, hash string, except uuid.UUID) (bool, error) {
	_, err := m.find(func(u *model.User) bool {
		return u.ID != except && u.PhoneLookupHash != nil && *u.PhoneLookupHash == hash
	})
	return err == nil, nil
}

func (m memUsers) UpdateProfile(_ context.Context, u *model.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.users[u.ID]
	if !ok {
		return errs.ErrNotFound
	}
	cur.DisplayName, cur.Email = u.DisplayName, u.Email
	cur.PhoneEncrypted, cur.PhoneLookupHash = u.PhoneEncrypted, u.PhoneLookupHash
	return nil
}

func (m memUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m memUsers) SetPrimaryHousehold(_ context.Context, userID uuid.UUID, householdID *uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[userID]
	if !ok {
		return errs.ErrNotFound
	}
	if householdID == nil {
		u.PrimaryHouseholdID = nil
		return nil
	}
	hid := *householdID
	u.PrimaryHouseholdID = &hid
	return nil
}

func (m memUsers) ResetPrimaryToEarliest(_ context.Context, userIDs []uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, id := range userIDs {
		u, ok := m.s.users[id]
		if !ok || u.PrimaryHouseholdID != nil {
			continue
		}
		for _, ms := range m.s.members {
			if ms.UserID == id {
				hid := ms.HouseholdID
				u.PrimaryHouseholdID = &hid
				break
			}
		}
	}
	return nil
}

// ---- sessions ----

type memSessions struct{ s *memStore }

var _ repository.SessionRepository = memSessions{}

func (m memSessions) Create(_ context.Context, ss *model.Session) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ss.CreatedAt = m.s.tick()
	cp := *ss
	m.s.sessions[ss.ID] = &cp
	return nil
}

func (m memSessions) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ss, ok := m.s.sessions[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *ss
	return &cp, nil
}

func (m memSessions) FindByRefreshHash(_ context.Context, hash string) (*model.Session, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, ss := range m.s.sessions {
		if ss.RefreshTokenHash == hash || (ss.PreviousRefreshTokenHash != nil && *ss.PreviousRefreshTokenHash == hash) {
			cp := *ss
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m memSessions) Rotate(_ context.Context, id uuid.UUID, oldHash, newHash string, rotatedAt, expiresAt time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ss, ok := m.s.sessions[id]
	if !ok || ss.RefreshTokenHash != oldHash || ss.RevokedAt != nil {
		return errs.ErrConflict
	}
	prev := ss.RefreshTokenHash
	ss.PreviousRefreshTokenHash = &prev
	ss.RefreshTokenHash = newHash
	ss.RotatedAt = &rotatedAt
	ss.ExpiresAt = expiresAt
	return nil
}

func (m memSessions) Revoke(_ context.Context, id uuid.UUID, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if ss, ok := m.s.sessions[id]; ok && ss.RevokedAt == nil {
		ss.RevokedAt = &at
	}
	return nil
}

// ---- households ----

type memHouseholds struct{ s *memStore }

var _ repository.HouseholdRepository = memHouseholds{}

func (m memHouseholds) Create(_ context.Context, h *model.Household) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	h.CreatedAt = m.s.tick()
	h.UpdatedAt = h.CreatedAt
	cp := *h
	m.s.households[h.ID] = &cp
	return nil
}

func (m memHouseholds) GetByID(_ context.Context, id uuid.UUID) (*model.Household, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	h, ok := m.s.households[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (m memHouseholds) Update(_ context.Context, h *model.Household) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.households[h.ID]
	if !ok {
		return errs.ErrNotFound
	}
	cur.Name, cur.Currency = h.Name, h.Currency
	return nil
}

// Delete mirrors the cascades and SET NULL rules of the schema.
func (m memHouseholds) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.households[id]; !ok {
		return errs.ErrNotFound
	}
	delete(m.s.households, id)
	kept := m.s.members[:0]
	for _, ms := range m.s.members {
		if ms.HouseholdID != id {
			kept = append(kept, ms)
		}
	}
	m.s.members = kept
	for _, u := range m.s.users {
		if u.PrimaryHouseholdID != nil && *u.PrimaryHouseholdID == id {
			u.PrimaryHouseholdID = nil
		}
	}
	for lid, l := range m.s.lists {
		if l.HouseholdID == id {
			delete(m.s.lists, lid)
			for iid, it := range m.s.items {
				if it.ListID == lid {
					delete(m.s.items, iid)
				}
			}
		}
	}
	for eid, e := range m.s.expenses {
		if e.HouseholdID == id {
			delete(m.s.expenses, eid)
		}
	}
	for iid, inv := range m.s.invitations {
		if inv.HouseholdID == id {
			delete(m.s.invitations, iid)
		}
	}
	return nil
}

func (m memHouseholds) AddMember(_ context.Context, ms *model.Membership) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, o := range m.s.members {
		if o.HouseholdID == ms.HouseholdID && o.UserID == ms.UserID {
			return false, nil
		}
	}
	ms.CreatedAt = m.s.tick()
	cp := *ms
	m.s.members = append(m.s.members, &cp)
	return true, nil
}

func (m memHouseholds) GetMembership(_ context.Context, householdID, userID uuid.UUID) (*model.Membership, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, ms := range m.s.members {
		if ms.HouseholdID == householdID && ms.UserID == userID {
			cp := *ms
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m memHouseholds) EarliestMembershipOf(_ context.Context, userID uuid.UUID) (*model.Membership, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, ms := range m.s.members {
		if ms.UserID == userID {
			cp := *ms
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m memHouseholds) EarliestMemberOf(_ context.Context, householdID uuid.UUID) (*model.Membership, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, ms := range m.s.members {
		if ms.HouseholdID == householdID {
			cp := *ms
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m memHouseholds) CountOwners(_ context.Context, householdID uuid.UUID) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n := 0
	for _, ms := range m.s.members {
		if ms.HouseholdID == householdID && ms.Role == model.RoleOwner {
			n++
		}
	}
	return n, nil
}

func (m memHouseholds) SetRole(_ context.Context, householdID, userID uuid.UUID, role model.Role) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, ms := range m.s.members {
		if ms.HouseholdID == householdID && ms.UserID == userID {
			ms.Role = role
			return nil
		}
	}
	return errs.ErrNotFound
}

func (m memHouseholds) RemoveMember(_ context.Context, householdID, userID uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i, ms := range m.s.members {
		if ms.HouseholdID == householdID && ms.UserID == userID {
			m.s.members = append(m.s.members[:i], m.s.members[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (m memHouseholds) ListMembers(_ context.Context, householdID uuid.UUID) ([]model.MemberView, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []model.MemberView{}
	for _, ms := range m.s.members {
		if ms.HouseholdID != householdID {
			continue
		}
		u := m.s.users[ms.UserID]
		out = append(out, model.MemberView{UserID: u.ID, Email: u.Email, DisplayName: u.DisplayName, Role: ms.Role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (m memHouseholds) MemberIDs(_ context.Context, householdID uuid.UUID) ([]uuid.UUID, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []uuid.UUID
	for _, ms := range m.s.members {
		if ms.HouseholdID == householdID {
			out = append(out, ms.UserID)
		}
	}
	return out, nil
}

func (m memHouseholds) ListForUser(_ context.Context, userID uuid.UUID) ([]model.MyHousehold, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u := m.s.users[userID]
	out := []model.MyHousehold{}
	for _, ms := range m.s.members {
		if ms.UserID != userID {
			continue
		}
		h := m.s.households[ms.HouseholdID]
		out = append(out, model.MyHousehold{
			ID: h.ID, Name: h.Name, Currency: h.Currency, Role: ms.Role,
			IsPrimary: u != nil && u.PrimaryHouseholdID != nil && *u.PrimaryHouseholdID == h.ID,
		})
	}
	return out, nil
}

// ---- invitations ----

type memInvitations struct{ s *memStore }

var _ repository.InvitationRepository = memInvitations{}

func (m memInvitations) Create(_ context.Context, inv *model.Invitation) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, o := range m.s.invitations {
		if o.HouseholdID != inv.HouseholdID || o.Status != model.InvitationPending {
			continue
		}
		if inv.Email != nil && o.Email != nil && *inv.Email == *o.Email {
			return errs.ErrDuplicatePendingInvitation
		}
		if inv.PhoneLookupHash != nil && o.PhoneLookupHash != nil && *inv.PhoneLookupHash == *o.PhoneLookupHash {
			return errs.ErrDuplicatePendingInvitation
		}
	}
	inv.CreatedAt = m.s.tick()
	if inv.Status == "" {
		inv.Status = model.InvitationPending
	}
	cp := *inv
	m.s.invitations[inv.ID] = &cp
	return nil
}

func (m memInvitations) get(match func(*model.Invitation) bool) (*model.Invitation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, inv := range m.s.invitations {
		if match(inv) {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m memInvitations) GetByID(_ context.Context, id uuid.UUID) (*model.Invitation, error) {
	return m.get(func(i *model.Invitation) bool { return i.ID == id })
}

func (m memInvitations) GetByTokenHash(_ context.Context, hash string) (*model.Invitation, error) {
	return m.get(func(i *model.Invitation) bool { return i.TokenHash == hash })
}

func (m memInvitations) pending(now time.Time, limit int, match func(*model.Invitation) bool) []model.Invitation {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []model.Invitation{}
	for _, inv := range m.s.invitations {
		if inv.Status == model.InvitationPending && !inv.ExpiredAt(now) && match(inv) {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m memInvitations) FindPendingByEmail(_ context.Context, email string, now time.Time, limit int) ([]model.Invitation, error) {
	return m.pending(now, limit, func(i *model.Invitation) bool { return i.Email != nil && *i.Email == email }), nil
}

func (m memInvitations) FindPendingByPhoneHash(_ context.Context, hash string, now time.Time, limit int) ([]model.Invitation, error) {
	return m.pending(now, limit, func(i *model.Invitation) bool {
		return i.PhoneLookupHash != nil && *i.PhoneLookupHash == hash
	}), nil
}

func (m memInvitations) MarkAccepted(_ context.Context, id, userID uuid.UUID, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	inv, ok := m.s.invitations[id]
	if !ok || inv.Status != model.InvitationPending {
		return errs.ErrInvitationNotPending
	}
	inv.Status, inv.AcceptedByID, inv.AcceptedAt = model.InvitationAccepted, &userID, &at
	return nil
}

func (m memInvitations) SetStatus(_ context.Context, id uuid.UUID, status model.InvitationStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	inv, ok := m.s.invitations[id]
	if !ok || inv.Status != model.InvitationPending {
		return errs.ErrInvitationNotPending
	}
	inv.Status = status
	return nil
}

func (m memInvitations) ExpireOverdue(_ context.Context, householdID uuid.UUID, now time.Time) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, inv := range m.s.invitations {
		if inv.HouseholdID == householdID && inv.Status == model.InvitationPending && inv.ExpiredAt(now) {
			inv.Status = model.InvitationExpired
			n++
		}
	}
	return n, nil
}

func (m memInvitations) ListByHousehold(_ context.Context, householdID uuid.UUID) ([]model.Invitation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []model.Invitation{}
	for _, inv := range m.s.invitations {
		if inv.HouseholdID == householdID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ---- lists and items ----

type memLists struct{ s *memStore }

var _ repository.ListRepository = memLists{}

func visibleTo(l *model.ShoppingList, householdID, userID uuid.UUID) bool {
	return l.HouseholdID == householdID && (l.OwnerID == nil || *l.OwnerID == userID)
}

func (m memLists) ListVisible(_ context.Context, householdID, userID uuid.UUID) ([]model.ShoppingList, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []model.ShoppingList{}
	for _, l := range m.s.lists {
		if visibleTo(l, householdID, userID) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m memLists) GetVisible(_ context.Context, householdID, userID, listID uuid.UUID) (*model.ShoppingList, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	l, ok := m.s.lists[listID]
	if !ok || !visibleTo(l, householdID, userID) {
		return nil, errs.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m memLists) Create(_ context.Context, l *model.ShoppingList) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	l.CreatedAt = m.s.tick()
	l.UpdatedAt = l.CreatedAt
	cp := *l
	m.s.lists[l.ID] = &cp
	return nil
}

func (m memLists) Rename(_ context.Context, id uuid.UUID, name string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	l, ok := m.s.lists[id]
	if !ok {
		return errs.ErrNotFound
	}
	l.Name = name
	return nil
}

func (m memLists) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.lists[id]; !ok {
		return errs.ErrNotFound
	}
	delete(m.s.lists, id)
	for iid, it := range m.s.items {
		if it.ListID == id {
			delete(m.s.items, iid)
		}
	}
	return nil
}

type memItems struct{ s *memStore }

var _ repository.ItemRepository = memItems{}

func (m memItems) Create(_ context.Context, it *model.Item) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	it.CreatedAt = m.s.tick()
	it.UpdatedAt = it.CreatedAt
	cp := *it
	m.s.items[it.ID] = &cp
	return nil
}

func (m memItems) Get(_ context.Context, listID, itemID uuid.UUID) (*model.Item, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	it, ok := m.s.items[itemID]
	if !ok || it.ListID != listID {
		return nil, errs.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m memItems) Update(_ context.Context, it *model.Item) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.items[it.ID]
	if !ok {
		return errs.ErrNotFound
	}
	cur.Name, cur.Amount, cur.Price, cur.Category = it.Name, it.Amount, it.Price, it.Category
	return nil
}

func (m memItems) Delete(_ context.Context, itemID uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.items[itemID]; !ok {
		return errs.ErrNotFound
	}
	delete(m.s.items, itemID)
	return nil
}

func (m memItems) SetPurchased(_ context.Context, itemID uuid.UUID, purchased bool, at *time.Time, by *uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	it, ok := m.s.items[itemID]
	if !ok {
		return errs.ErrNotFound
	}
	it.Purchased, it.PurchasedAt, it.PurchasedByID = purchased, at, by
	return nil
}

func (m memItems) Pending(_ context.Context, listID uuid.UUID, after *model.ItemCursor, limit int) ([]model.Item, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []model.Item
	for _, it := range m.s.items {
		if it.ListID == listID && !it.Purchased {
			all = append(all, *it)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return idLess(all[i].ID, all[j].ID)
	})
	out := []model.Item{}
	for _, it := range all {
		if after != nil {
			if it.CreatedAt.Before(after.CreatedAt) ||
				(it.CreatedAt.Equal(after.CreatedAt) && !idLess(after.ID, it.ID)) {
				continue
			}
		}
		if len(out) == limit {
			break
		}
		out = append(out, it)
	}
	return out, nil
}

func (m memItems) PendingStats(_ context.Context, listID uuid.UUID) (int64, model.Fixed, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var (
		n     int64
		total model.Fixed
	)
	for _, it := range m.s.items {
		if it.ListID == listID && !it.Purchased {
			n++
			total += it.Total()
		}
	}
	return n, total, nil
}

func inPeriod(t time.Time, p model.Period) bool {
	if p.From != nil && t.Before(*p.From) {
		return false
	}
	if p.To != nil && t.After(*p.To) {
		return false
	}
	return true
}

func (m memItems) purchased(listID uuid.UUID, p model.Period) []model.Item {
	var out []model.Item
	for _, it := range m.s.items {
		if it.ListID == listID && it.Purchased && it.PurchasedAt != nil && inPeriod(*it.PurchasedAt, p) {
			out = append(out, *it)
		}
	}
	return out
}

func (m memItems) History(_ context.Context, listID uuid.UUID, p model.Period, after *model.HistoryCursor, limit int) ([]model.Item, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	all := m.purchased(listID, p)
	sort.Slice(all, func(i, j int) bool {
		a, b := *all[i].PurchasedAt, *all[j].PurchasedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return idLess(all[j].ID, all[i].ID)
	})
	out := []model.Item{}
	for _, it := range all {
		if after != nil {
			at := *it.PurchasedAt
			if at.After(after.PurchasedAt) || (at.Equal(after.PurchasedAt) && !idLess(it.ID, after.ID)) {
				continue
			}
		}
		if len(out) == limit {
			break
		}
		if u, ok := m.s.users[*it.PurchasedByID]; ok {
			name := u.DisplayName
			it.PurchasedByName = &name
		}
		out = append(out, it)
	}
	return out, nil
}

func (m memItems) HistoryCount(_ context.Context, listID uuid.UUID, p model.Period) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return int64(len(m.purchased(listID, p))), nil
}

// ---- expenses and incomes ----

type memExpenses struct{ s *memStore }

var _ repository.ExpenseRepository = memExpenses{}

func (m memExpenses) Create(_ context.Context, e *model.Expense) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if e.SourceID != nil {
		for _, o := range m.s.expenses {
			if o.SourceType == e.SourceType && o.SourceID != nil && *o.SourceID == *e.SourceID {
				return errs.Newf(errs.ErrConflict, "expense for %s %s already exists", e.SourceType, e.SourceID)
			}
		}
	}
	e.CreatedAt = m.s.tick()
	cp := *e
	m.s.expenses[e.ID] = &cp
	return nil
}

func (m memExpenses) Get(_ context.Context, householdID, id uuid.UUID) (*model.Expense, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.expenses[id]
	if !ok || e.HouseholdID != householdID {
		return nil, errs.ErrNotFound
	}
	cp := *e
	if u, ok := m.s.users[e.PayerID]; ok {
		cp.PayerName = u.DisplayName
	}
	return &cp, nil
}

func (m memExpenses) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.expenses[id]; !ok {
		return errs.ErrNotFound
	}
	delete(m.s.expenses, id)
	return nil
}

func (m memExpenses) DeleteBySource(_ context.Context, sourceType string, sourceID uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, e := range m.s.expenses {
		if e.SourceType == sourceType && e.SourceID != nil && *e.SourceID == sourceID {
			delete(m.s.expenses, id)
		}
	}
	return nil
}

// match applies the filter and the list-scope join. Callers hold mu.
func (m memExpenses) match(e *model.Expense, f model.ExpenseFilter, scope *repository.ListScopeFilter) bool {
	if e.HouseholdID != f.HouseholdID || !inPeriod(e.OccurredAt, model.Period{From: f.From, To: f.To}) {
		return false
	}
	if f.PayerID != nil && e.PayerID != *f.PayerID {
		return false
	}
	if f.Category != nil && (e.Category == nil || *e.Category != *f.Category) {
		return false
	}
	if f.SourceType != nil && e.SourceType != *f.SourceType {
		return false
	}
	if scope == nil {
		return true
	}
	if e.SourceType != model.SourceShoppingItem || e.SourceID == nil {
		return false
	}
	it, ok := m.s.items[*e.SourceID]
	if !ok {
		return false
	}
	l, ok := m.s.lists[it.ListID]
	if !ok {
		return false
	}
	if scope.Scope == model.ScopeShared {
		return l.OwnerID == nil
	}
	return l.OwnerID != nil && *l.OwnerID == scope.OwnerID
}

func (m memExpenses) List(_ context.Context, f model.ExpenseFilter, scope *repository.ListScopeFilter) ([]model.Expense, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []model.Expense
	for _, e := range m.s.expenses {
		if m.match(e, f, scope) {
			cp := *e
			if u, ok := m.s.users[e.PayerID]; ok {
				cp.PayerName = u.DisplayName
			}
			all = append(all, cp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if f.Order == model.OrderAsc {
			return all[i].OccurredAt.Before(all[j].OccurredAt)
		}
		return all[i].OccurredAt.After(all[j].OccurredAt)
	})
	total := int64(len(all))
	if f.Offset >= len(all) {
		return []model.Expense{}, total, nil
	}
	all = all[f.Offset:]
	if len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (m memExpenses) Sum(_ context.Context, f model.ExpenseFilter, scope *repository.ListScopeFilter) (model.Fixed, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var (
		sum model.Fixed
		n   int64
	)
	for _, e := range m.s.expenses {
		if m.match(e, f, scope) {
			sum += e.Amount
			n++
		}
	}
	return sum, n, nil
}

func (m memExpenses) shared(householdID uuid.UUID, p model.Period) []*model.Expense {
	var out []*model.Expense
	f := model.ExpenseFilter{HouseholdID: householdID, From: p.From, To: p.To}
	for _, e := range m.s.expenses {
		if m.match(e, f, &repository.ListScopeFilter{Scope: model.ScopeShared}) {
			out = append(out, e)
		}
	}
	return out
}

func (m memExpenses) TotalsByPayer(_ context.Context, householdID uuid.UUID, p model.Period) ([]model.PayerTotal, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	byPayer := map[uuid.UUID]model.Fixed{}
	for _, e := range m.shared(householdID, p) {
		byPayer[e.PayerID] += e.Amount
	}
	out := []model.PayerTotal{}
	for id, total := range byPayer {
		out = append(out, model.PayerTotal{PayerID: id, DisplayName: m.s.users[id].DisplayName, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out, nil
}

func (m memExpenses) TotalsByCategory(_ context.Context, householdID uuid.UUID, p model.Period) ([]model.CategoryTotal, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	byCat := map[string]model.Fixed{}
	for _, e := range m.shared(householdID, p) {
		c := ""
		if e.Category != nil {
			c = *e.Category
		}
		byCat[c] += e.Amount
	}
	out := []model.CategoryTotal{}
	for c, total := range byCat {
		out = append(out, model.CategoryTotal{Category: c, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out, nil
}

type memIncomes struct{ s *memStore }

var _ repository.IncomeRepository = memIncomes{}

func (m memIncomes) Create(_ context.Context, in *model.Income) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	in.CreatedAt = m.s.tick()
	cp := *in
	m.s.incomes[in.ID] = &cp
	return nil
}

func (m memIncomes) Get(_ context.Context, ownerID, id uuid.UUID) (*model.Income, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	in, ok := m.s.incomes[id]
	if !ok || in.OwnerID != ownerID {
		return nil, errs.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (m memIncomes) Update(_ context.Context, in *model.Income) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.incomes[in.ID]
	if !ok || cur.OwnerID != in.OwnerID {
		return errs.ErrNotFound
	}
	cp := *in
	m.s.incomes[in.ID] = &cp
	return nil
}

func (m memIncomes) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	in, ok := m.s.incomes[id]
	if !ok || in.OwnerID != ownerID {
		return errs.ErrNotFound
	}
	delete(m.s.incomes, id)
	return nil
}

func (m memIncomes) match(in *model.Income, f model.IncomeFilter) bool {
	if in.OwnerID != f.OwnerID || !inPeriod(in.OccurredAt, model.Period{From: f.From, To: f.To}) {
		return false
	}
	if f.Category != nil && (in.Category == nil || *in.Category != *f.Category) {
		return false
	}
	return f.Source == nil || in.Source == *f.Source
}

func (m memIncomes) List(_ context.Context, f model.IncomeFilter) ([]model.Income, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var all []model.Income
	for _, in := range m.s.incomes {
		if m.match(in, f) {
			all = append(all, *in)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if f.Order == model.OrderAsc {
			return all[i].OccurredAt.Before(all[j].OccurredAt)
		}
		return all[i].OccurredAt.After(all[j].OccurredAt)
	})
	total := int64(len(all))
	if f.Offset >= len(all) {
		return []model.Income{}, total, nil
	}
	all = all[f.Offset:]
	if len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (m memIncomes) Sum(_ context.Context, f model.IncomeFilter) (model.Fixed, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var (
		sum model.Fixed
		n   int64
	)
	for _, in := range m.s.incomes {
		if m.match(in, f) {
			sum += in.Amount
			n++
		}
	}
	return sum, n, nil
}

// ---- push tokens ----

type memTokens struct{ s *memStore }

var _ repository.PushTokenRepository = memTokens{}

func (m memTokens) Upsert(_ context.Context, t *model.PushToken) (uuid.UUID, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if cur, ok := m.s.tokens[t.Token]; ok {
		cur.UserID, cur.TokenType, cur.DeviceType, cur.DeviceName = t.UserID, t.TokenType, t.DeviceType, t.DeviceName
		return cur.ID, nil
	}
	t.CreatedAt = m.s.tick()
	cp := *t
	m.s.tokens[t.Token] = &cp
	return t.ID, nil
}

func (m memTokens) Delete(_ context.Context, userID uuid.UUID, token string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.tokens[token]
	if !ok || t.UserID != userID {
		return errs.ErrNotFound
	}
	delete(m.s.tokens, token)
	return nil
}

func (m memTokens) DeleteTokens(_ context.Context, tokens []string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, t := range tokens {
		if _, ok := m.s.tokens[t]; ok {
			delete(m.s.tokens, t)
			n++
		}
	}
	return n, nil
}

func (m memTokens) ListForUsers(_ context.Context, userIDs []uuid.UUID) ([]model.PushToken, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range userIDs {
		want[id] = true
	}
	out := []model.PushToken{}
	for _, t := range m.s.tokens {
		if want[t.UserID] {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}
