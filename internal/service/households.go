package service

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// HouseholdInput holds optional household fields.
type HouseholdInput struct {
	Name     *string
	Currency *string
}

// HouseholdService enforces membership invariants and primary-household bookkeeping.
type HouseholdService interface {
	// Create makes a household owned by the caller.
	Create(ctx context.Context, userID uuid.UUID, in HouseholdInput) (*model.Household, error)
	// Current resolves the caller's household; nil when they have none.
	Current(ctx context.Context, userID uuid.UUID) (*model.Household, error)
	// ListMine lists the caller's households with role and primary flag.
	ListMine(ctx context.Context, userID uuid.UUID) ([]model.MyHousehold, error)
	// SwitchPrimary makes a household the caller's primary.
	SwitchPrimary(ctx context.Context, userID, householdID uuid.UUID) (*model.Household, error)
	// RenameMine renames the caller's resolved household.
	RenameMine(ctx context.Context, userID uuid.UUID, name string) (*model.Household, error)
	// Update changes name or currency of an owned household.
	Update(ctx context.Context, ownerID, householdID uuid.UUID, in HouseholdInput) (*model.Household, error)
	// ListMembers lists members of a household the caller belongs to.
	ListMembers(ctx context.Context, userID, householdID uuid.UUID) ([]model.MemberView, error)
	// ListMyMembers lists members of the caller's resolved household.
	ListMyMembers(ctx context.Context, userID uuid.UUID) ([]model.MemberView, error)
	// RegisterMember provisions an account and adds it to the caller's household.
	RegisterMember(ctx context.Context, ownerID uuid.UUID, in RegisterInput) (model.UserView, error)
	// SetMemberRole changes a member's role; the last owner cannot be downgraded.
	SetMemberRole(ctx context.Context, ownerID, householdID, userID uuid.UUID, role model.Role) error
	// RemoveMember removes someone else from an owned household.
	RemoveMember(ctx context.Context, ownerID, householdID, userID uuid.UUID) error
	// Delete removes an owned household and re-points affected primaries.
	Delete(ctx context.Context, ownerID, householdID uuid.UUID) error
}

type HouseholdServiceImpl struct {
	store           repository.Store
	creds           Credentials
	defaultName     string
	defaultCurrency string
}

// NewHouseholdService constructs a HouseholdService.
func NewHouseholdService(store repository.Store, creds Credentials, defaultName, defaultCurrency string) *HouseholdServiceImpl {
	if defaultName == "" {
		defaultName = "Hogar"
	}
	if defaultCurrency == "" {
		defaultCurrency = "CUP"
	}
	return &HouseholdServiceImpl{
		store:           store,
		creds:           creds,
		defaultName:     defaultName,
		defaultCurrency: strings.ToUpper(defaultCurrency),
	}
}

// Create makes the caller owner; it becomes primary only if they have none.
func (s *HouseholdServiceImpl) Create(ctx context.Context, userID uuid.UUID, in HouseholdInput) (*model.Household, error) {
	h := &model.Household{ID: newID(), Name: s.defaultName, Currency: s.defaultCurrency}
	if n := derefTrim(in.Name); n != "" {
		h.Name = n
	}
	if c := derefTrim(in.Currency); c != "" {
		h.Currency = strings.ToUpper(c)
	}
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		u, err := r.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := r.Households.Create(ctx, h); err != nil {
			return err
		}
		if _, err := r.Households.AddMember(ctx, &model.Membership{
			ID: newID(), HouseholdID: h.ID, UserID: userID, Role: model.RoleOwner,
		}); err != nil {
			return err
		}
		if u.PrimaryHouseholdID == nil {
			return r.Users.SetPrimaryHousehold(ctx, userID, &h.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Current resolves without a transaction.
func (s *HouseholdServiceImpl) Current(ctx context.Context, userID uuid.UUID) (*model.Household, error) {
	return resolveHousehold(ctx, s.store.Repos(), userID)
}

// ListMine orders by membership age.
func (s *HouseholdServiceImpl) ListMine(ctx context.Context, userID uuid.UUID) ([]model.MyHousehold, error) {
	return s.store.Repos().Households.ListForUser(ctx, userID)
}

// SwitchPrimary requires membership.
func (s *HouseholdServiceImpl) SwitchPrimary(ctx context.Context, userID, householdID uuid.UUID) (*model.Household, error) {
	r := s.store.Repos()
	if _, err := requireMembership(ctx, r, householdID, userID); err != nil {
		return nil, err
	}
	if err := r.Users.SetPrimaryHousehold(ctx, userID, &householdID); err != nil {
		return nil, err
	}
	return r.Households.GetByID(ctx, householdID)
}

// RenameMine is open to every member of the resolved household.
func (s *HouseholdServiceImpl) RenameMine(ctx context.Context, userID uuid.UUID, name string) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.New(errs.ErrBadRequest, "name is required")
	}
	r := s.store.Repos()
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	h.Name = name
	if err := r.Households.Update(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Update is owner-only.
func (s *HouseholdServiceImpl) Update(ctx context.Context, ownerID, householdID uuid.UUID, in HouseholdInput) (*model.Household, error) {
	var h *model.Household
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		if err := assertOwner(ctx, r, householdID, ownerID); err != nil {
			return err
		}
		var err error
		if h, err = r.Households.GetByID(ctx, householdID); err != nil {
			return err
		}
		if n := derefTrim(in.Name); n != "" {
			h.Name = n
		}
		if c := derefTrim(in.Currency); c != "" {
			h.Currency = strings.ToUpper(c)
		}
		return r.Households.Update(ctx, h)
	})
	return h, err
}

// ListMembers is member-only.
func (s *HouseholdServiceImpl) ListMembers(ctx context.Context, userID, householdID uuid.UUID) ([]model.MemberView, error) {
	r := s.store.Repos()
	if _, err := requireMembership(ctx, r, householdID, userID); err != nil {
		return nil, err
	}
	return r.Households.ListMembers(ctx, householdID)
}

// ListMyMembers uses the resolved household.
func (s *HouseholdServiceImpl) ListMyMembers(ctx context.Context, userID uuid.UUID) ([]model.MemberView, error) {
	r := s.store.Repos()
	h, err := requireHousehold(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	return r.Households.ListMembers(ctx, h.ID)
}

// RegisterMember creates the account, adds it as member and makes the household
// its primary.
func (s *HouseholdServiceImpl) RegisterMember(ctx context.Context, ownerID uuid.UUID, in RegisterInput) (model.UserView, error) {
	nu, err := s.creds.prepare(in)
	if err != nil {
		return model.UserView{}, err
	}
	err = s.store.InTx(ctx, func(r repository.Repos) error {
		h, err := requireHousehold(ctx, r, ownerID)
		if err != nil {
			return err
		}
		if err := assertOwner(ctx, r, h.ID, ownerID); err != nil {
			return err
		}
		nu.user.PrimaryHouseholdID = &h.ID
		if err := nu.insert(ctx, r); err != nil {
			return err
		}
		_, err = r.Households.AddMember(ctx, &model.Membership{
			ID: newID(), HouseholdID: h.ID, UserID: nu.user.ID, Role: model.RoleMember,
		})
		return err
	})
	if err != nil {
		return model.UserView{}, err
	}
	return s.creds.view(nu.user), nil
}

// SetMemberRole never leaves the household without an owner.
func (s *HouseholdServiceImpl) SetMemberRole(ctx context.Context, ownerID, householdID, userID uuid.UUID, role model.Role) error {
	if !role.Valid() {
		return errs.Newf(errs.ErrBadRequest, "unknown role %q", role)
	}
	return s.store.InTx(ctx, func(r repository.Repos) error {
		if err := assertOwner(ctx, r, householdID, ownerID); err != nil {
			return err
		}
		m, err := r.Households.GetMembership(ctx, householdID, userID)
		if errors.Is(err, errs.ErrNotFound) {
			return errs.New(errs.ErrNotFound, "member not found")
		}
		if err != nil {
			return err
		}
		if m.Role == role {
			return nil
		}
		if m.Role == model.RoleOwner {
			if err := s.keepAnOwner(ctx, r, householdID); err != nil {
				return err
			}
		}
		return r.Households.SetRole(ctx, householdID, userID, role)
	})
}

// RemoveMember rejects self-removal and removing the last owner.
func (s *HouseholdServiceImpl) RemoveMember(ctx context.Context, ownerID, householdID, userID uuid.UUID) error {
	if ownerID == userID {
		return errs.ErrSelfRemoval
	}
	return s.store.InTx(ctx, func(r repository.Repos) error {
		if err := assertOwner(ctx, r, householdID, ownerID); err != nil {
			return err
		}
		m, err := r.Households.GetMembership(ctx, householdID, userID)
		if errors.Is(err, errs.ErrNotFound) {
			return errs.New(errs.ErrNotFound, "member not found")
		}
		if err != nil {
			return err
		}
		if m.Role == model.RoleOwner {
			if err := s.keepAnOwner(ctx, r, householdID); err != nil {
				return err
			}
		}
		if err := r.Households.RemoveMember(ctx, householdID, userID); err != nil {
			return err
		}
		u, err := r.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if u.PrimaryHouseholdID != nil && *u.PrimaryHouseholdID == householdID {
			if err := r.Users.SetPrimaryHousehold(ctx, userID, nil); err != nil {
				return err
			}
			return r.Users.ResetPrimaryToEarliest(ctx, []uuid.UUID{userID})
		}
		return nil
	})
}

// Delete snapshots members, deletes, then re-points emptied primaries.
func (s *HouseholdServiceImpl) Delete(ctx context.Context, ownerID, householdID uuid.UUID) error {
	return s.store.InTx(ctx, func(r repository.Repos) error {
		if err := assertOwner(ctx, r, householdID, ownerID); err != nil {
			return err
		}
		ids, err := r.Households.MemberIDs(ctx, householdID)
		if err != nil {
			return err
		}
		if err := r.Households.Delete(ctx, householdID); err != nil {
			return err
		}
		return r.Users.ResetPrimaryToEarliest(ctx, ids)
	})
}

// keepAnOwner fails when demoting or removing one owner would leave none.
func (s *HouseholdServiceImpl) keepAnOwner(ctx context.Context, r repository.Repos, householdID uuid.UUID) error {
	n, err := r.Households.CountOwners(ctx, householdID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return errs.ErrLastOwner
	}
	return nil
}
