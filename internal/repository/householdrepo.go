package repository

import (
	"context"
	"time"

	"github.com/and161185/hogar/internal/model"
	"github.com/gofrs/uuid/v5"
)

// HouseholdRepository manages households and their memberships.
type HouseholdRepository interface {
	// Create inserts a household.
	Create(ctx context.Context, h *model.Household) error
	// GetByID loads a household.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Household, error)
	// Update writes name and currency.
	Update(ctx context.Context, h *model.Household) error
	// Delete removes the household; memberships, lists, expenses and invitations cascade.
	Delete(ctx context.Context, id uuid.UUID) error

	// AddMember inserts a membership unless the pair already exists.
	// It reports whether a row was created.
	AddMember(ctx context.Context, m *model.Membership) (bool, error)
	// GetMembership loads the (household, user) membership.
	GetMembership(ctx context.Context, householdID, userID uuid.UUID) (*model.Membership, error)
	// EarliestMembershipOf returns the user's oldest membership.
	EarliestMembershipOf(ctx context.Context, userID uuid.UUID) (*model.Membership, error)
	// EarliestMemberOf returns the household's oldest membership.
	EarliestMemberOf(ctx context.Context, householdID uuid.UUID) (*model.Membership, error)
	// CountOwners counts owners of the household.
	CountOwners(ctx context.Context, householdID uuid.UUID) (int, error)
	// SetRole changes a member's role.
	SetRole(ctx context.Context, householdID, userID uuid.UUID, role model.Role) error
	// RemoveMember deletes a membership.
	RemoveMember(ctx context.Context, householdID, userID uuid.UUID) error
	// ListMembers returns members ordered by display name.
	ListMembers(ctx context.Context, householdID uuid.UUID) ([]model.MemberView, error)
	// MemberIDs returns all member user ids.
	MemberIDs(ctx context.Context, householdID uuid.UUID) ([]uuid.UUID, error)
	// ListForUser returns the user's households ordered by membership age.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.MyHousehold, error)
}

// InvitationRepository persists household invitations.
type InvitationRepository interface {
	// Create inserts a pending invitation; a pending duplicate returns
	// errs.ErrDuplicatePendingInvitation.
	Create(ctx context.Context, inv *model.Invitation) error
	// GetByID loads an invitation.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Invitation, error)
	// GetByTokenHash loads an invitation by token hash regardless of status.
	GetByTokenHash(ctx context.Context, hash string) (*model.Invitation, error)
	// FindPendingByEmail returns up to limit pending, unexpired invitations for email.
	FindPendingByEmail(ctx context.Context, email string, now time.Time, limit int) ([]model.Invitation, error)
	// FindPendingByPhoneHash returns up to limit pending, unexpired invitations for the phone hash.
	FindPendingByPhoneHash(ctx context.Context, hash string, now time.Time, limit int) ([]model.Invitation, error)
	// MarkAccepted moves a pending invitation to accepted.
	MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	// SetStatus moves a pending invitation to a terminal status.
	SetStatus(ctx context.Context, id uuid.UUID, status model.InvitationStatus) error
	// ExpireOverdue flips pending invitations past their expiry to expired.
	ExpireOverdue(ctx context.Context, householdID uuid.UUID, now time.Time) (int64, error)
	// ListByHousehold returns invitations newest first.
	ListByHousehold(ctx context.Context, householdID uuid.UUID) ([]model.Invitation, error)
}
