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

// resolveHousehold returns the user's primary household while they still belong
// to it, else their earliest membership, else nil.
func resolveHousehold(ctx context.Context, r repository.Repos, userID uuid.UUID) (*model.Household, error) {
	u, err := r.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.PrimaryHouseholdID != nil {
		_, err := r.Households.GetMembership(ctx, *u.PrimaryHouseholdID, userID)
		switch {
		case err == nil:
			return r.Households.GetByID(ctx, *u.PrimaryHouseholdID)
		case !errors.Is(err, errs.ErrNotFound):
			return nil, err
		}
	}
	m, err := r.Households.EarliestMembershipOf(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.Households.GetByID(ctx, m.HouseholdID)
}

// requireHousehold is resolveHousehold that fails when the user has none.
func requireHousehold(ctx context.Context, r repository.Repos, userID uuid.UUID) (*model.Household, error) {
	h, err := resolveHousehold(ctx, r, userID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errs.ErrNoHousehold
	}
	return h, nil
}

// requireMembership loads the caller's membership or fails with ErrNotMember.
func requireMembership(ctx context.Context, r repository.Repos, householdID, userID uuid.UUID) (*model.Membership, error) {
	m, err := r.Households.GetMembership(ctx, householdID, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrNotMember
	}
	return m, err
}

// assertOwner fails unless userID owns the household. A household left without
// owners promotes its earliest member when that member asks.
func assertOwner(ctx context.Context, r repository.Repos, householdID, userID uuid.UUID) error {
	m, err := requireMembership(ctx, r, householdID, userID)
	if err != nil {
		return err
	}
	if m.Role == model.RoleOwner {
		return nil
	}
	owners, err := r.Households.CountOwners(ctx, householdID)
	if err != nil {
		return err
	}
	if owners == 0 {
		first, err := r.Households.EarliestMemberOf(ctx, householdID)
		if err != nil {
			return err
		}
		if first.UserID == userID {
			return r.Households.SetRole(ctx, householdID, userID, model.RoleOwner)
		}
	}
	return errs.ErrNotOwner
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func derefTrim(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// clampLimit bounds a page size, using def for non-positive input.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func newID() uuid.UUID { return uuid.Must(uuid.NewV4()) }
