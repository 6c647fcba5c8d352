package service

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/hogar/internal/crypto"
	"github.com/and161185/hogar/internal/crypto/phonecrypto"
	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Invitation delivery methods.
const (
	MethodEmail = "email"
	MethodPhone = "phone"
)

// InviteInput names the invitee by email or phone. Email wins when both are set.
type InviteInput struct {
	Email *string
	Phone *string
}

// InvitationService creates and resolves household invitations.
type InvitationService interface {
	// InviteToMine invites into the caller's resolved household.
	InviteToMine(ctx context.Context, inviterID uuid.UUID, in InviteInput) (*model.CreatedInvitation, error)
	// InviteTo invites into a household the caller owns.
	InviteTo(ctx context.Context, ownerID, householdID uuid.UUID, in InviteInput) (*model.CreatedInvitation, error)
	// AcceptByToken joins the household behind the token.
	AcceptByToken(ctx context.Context, userID uuid.UUID, token string) (*model.Household, error)
	// AutoAcceptByEmail accepts the only pending invitation for email, if exactly one exists.
	AutoAcceptByEmail(ctx context.Context, userID uuid.UUID, email string) (*model.Household, error)
	// AutoAcceptByPhone accepts the only pending invitation for phone, if exactly one exists.
	AutoAcceptByPhone(ctx context.Context, userID uuid.UUID, phone string) (*model.Household, error)
	// Revoke cancels a pending invitation of an owned household.
	Revoke(ctx context.Context, ownerID, householdID, invitationID uuid.UUID) error
	// ListForOwner lists invitations of an owned household, newest first.
	ListForOwner(ctx context.Context, ownerID, householdID uuid.UUID) ([]model.InvitationView, error)
	// SearchUser tells whether an identifier can be invited to a household.
	SearchUser(ctx context.Context, userID uuid.UUID, identifier string, householdID *uuid.UUID) (*model.InviteSearch, error)
}

type InvitationServiceImpl struct {
	store repository.Store
	phone *phonecrypto.Cipher
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
}

// NewInvitationService constructs an InvitationService. A zero ttl creates
// invitations that never expire.
func NewInvitationService(store repository.Store, phone *phonecrypto.Cipher, ttl time.Duration, log *zap.Logger) *InvitationServiceImpl {
	return &InvitationServiceImpl{store: store, phone: phone, ttl: ttl, log: log, now: time.Now}
}

// InviteToMine uses the resolved household; any member may invite.
func (s *InvitationServiceImpl) InviteToMine(ctx context.Context, inviterID uuid.UUID, in InviteInput) (*model.CreatedInvitation, error) {
	var out *model.CreatedInvitation
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		h, err := requireHousehold(ctx, r, inviterID)
		if err != nil {
			return err
		}
		out, err = s.create(ctx, r, h.ID, inviterID, in)
		return err
	})
	return out, err
}

// InviteTo requires ownership of the target household.
func (s *InvitationServiceImpl) InviteTo(ctx context.Context, ownerID, householdID uuid.UUID, in InviteInput) (*model.CreatedInvitation, error) {
	var out *model.CreatedInvitation
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		if err := assertOwner(ctx, r, householdID, ownerID); err != nil {
			return err
		}
		var err error
		out, err = s.create(ctx, r, householdID, ownerID, in)
		return err
	})
	return out, err
}

func (s *InvitationServiceImpl) create(ctx context.Context, r repository.Repos, householdID, inviterID uuid.UUID, in InviteInput) (*model.CreatedInvitation, error) {
	inv := &model.Invitation{ID: newID(), HouseholdID: householdID, InvitedByID: &inviterID}
	out := &model.CreatedInvitation{InvitationID: inv.ID}

	var existing *model.User
	var err error
	if email := normalizeEmail(derefTrim(in.Email)); email != "" {
		inv.Email, inv.InvitedIdentifier = &email, email
		out.Email, out.Method = &email, MethodEmail
		existing, err = r.Users.GetByEmail(ctx, email)
	} else if raw := derefTrim(in.Phone); raw != "" {
		norm, _, lookup, perr := s.phone.Protect(raw)
		if perr != nil {
			return nil, perr
		}
		inv.PhoneLookupHash, inv.InvitedIdentifier = &lookup, norm
		out.Phone, out.Method = &norm, MethodPhone
		existing, err = r.Users.GetByPhoneHash(ctx, lookup)
	} else {
		return nil, errs.ErrIdentifierRequired
	}
	switch {
	case err == nil:
		if _, merr := r.Households.GetMembership(ctx, householdID, existing.ID); merr == nil {
			return nil, errs.ErrAlreadyMember
		} else if !errors.Is(merr, errs.ErrNotFound) {
			return nil, merr
		}
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	token, err := pkgcrypto.NewToken()
	if err != nil {
		return nil, err
	}
	inv.TokenHash = pkgcrypto.HashToken(token)
	if s.ttl > 0 {
		exp := s.now().Add(s.ttl)
		inv.ExpiresAt = &exp
	}
	if err := r.Invitations.Create(ctx, inv); err != nil {
		return nil, err
	}
	out.Token = token
	return out, nil
}

// AcceptByToken resolves a token invitation. Accepting an already consumed
// invitation is a no-op for users who are members of its household.
func (s *InvitationServiceImpl) AcceptByToken(ctx context.Context, userID uuid.UUID, token string) (*model.Household, error) {
	var (
		h       *model.Household
		expired bool
	)
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		inv, err := r.Invitations.GetByTokenHash(ctx, pkgcrypto.HashToken(strings.TrimSpace(token)))
		if errors.Is(err, errs.ErrNotFound) {
			return errs.New(errs.ErrNotFound, "invitation not found")
		}
		if err != nil {
			return err
		}
		if inv.Status != model.InvitationPending {
			if _, merr := r.Households.GetMembership(ctx, inv.HouseholdID, userID); merr != nil {
				if errors.Is(merr, errs.ErrNotFound) {
					return errs.ErrInvitationAlreadyUsed
				}
				return merr
			}
			hid := inv.HouseholdID
			if err := r.Users.SetPrimaryHousehold(ctx, userID, &hid); err != nil {
				return err
			}
			h, err = r.Households.GetByID(ctx, hid)
			return err
		}
		if inv.ExpiredAt(s.now()) {
			expired = true
			return r.Invitations.SetStatus(ctx, inv.ID, model.InvitationExpired)
		}
		h, err = s.accept(ctx, r, inv, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, errs.ErrInvitationExpired
	}
	return h, nil
}

// accept adds the membership, points the user's primary at the household and
// closes the invitation.
func (s *InvitationServiceImpl) accept(ctx context.Context, r repository.Repos, inv *model.Invitation, userID uuid.UUID) (*model.Household, error) {
	if _, err := r.Households.AddMember(ctx, &model.Membership{
		ID:          newID(),
		HouseholdID: inv.HouseholdID,
		UserID:      userID,
		Role:        model.RoleMember,
	}); err != nil {
		return nil, err
	}
	hid := inv.HouseholdID
	if err := r.Users.SetPrimaryHousehold(ctx, userID, &hid); err != nil {
		return nil, err
	}
	if err := r.Invitations.MarkAccepted(ctx, inv.ID, userID, s.now()); err != nil {
		return nil, err
	}
	return r.Households.GetByID(ctx, hid)
}

// autoAccept accepts only when exactly one pending invitation matches.
func (s *InvitationServiceImpl) autoAccept(ctx context.Context, r repository.Repos, userID uuid.UUID, email, phoneLookup string) (*model.Household, error) {
	if email != "" {
		found, err := r.Invitations.FindPendingByEmail(ctx, email, s.now(), 2)
		if err != nil {
			return nil, err
		}
		if len(found) == 1 {
			return s.accept(ctx, r, &found[0], userID)
		}
	}
	if phoneLookup != "" {
		found, err := r.Invitations.FindPendingByPhoneHash(ctx, phoneLookup, s.now(), 2)
		if err != nil {
			return nil, err
		}
		if len(found) == 1 {
			return s.accept(ctx, r, &found[0], userID)
		}
	}
	return nil, nil
}

// AutoAcceptByEmail runs the single-match rule for an email.
func (s *InvitationServiceImpl) AutoAcceptByEmail(ctx context.Context, userID uuid.UUID, email string) (*model.Household, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	var h *model.Household
	err := s.store.InTx(ctx, func(r repository.Repos) (err error) {
		h, err = s.autoAccept(ctx, r, userID, email, "")
		return err
	})
	return h, err
}

// AutoAcceptByPhone runs the single-match rule for a phone number.
func (s *InvitationServiceImpl) AutoAcceptByPhone(ctx context.Context, userID uuid.UUID, phone string) (*model.Household, error) {
	norm := phonecrypto.Normalize(phone)
	if norm == "" || !s.phone.Enabled() {
		return nil, nil
	}
	lookup, err := s.phone.LookupHash(norm)
	if err != nil {
		return nil, err
	}
	var h *model.Household
	err = s.store.InTx(ctx, func(r repository.Repos) (err error) {
		h, err = s.autoAccept(ctx, r, userID, "", lookup)
		return err
	})
	return h, err
}

// Revoke moves a pending invitation to revoked. One found past its expiry is
// moved to expired instead and reported as a conflict.
func (s *InvitationServiceImpl) Revoke(ctx context.Context, ownerID, householdID, invitationID uuid.UUID) error {
	var expired bool
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		if err := assertOwner(ctx, r, householdID, ownerID); err != nil {
			return err
		}
		inv, err := r.Invitations.GetByID(ctx, invitationID)
		if err != nil {
			return err
		}
		if inv.HouseholdID != householdID {
			return errs.ErrNotFound
		}
		if inv.Status != model.InvitationPending {
			return errs.ErrInvitationNotPending
		}
		if inv.ExpiredAt(s.now()) {
			expired = true
			return r.Invitations.SetStatus(ctx, inv.ID, model.InvitationExpired)
		}
		return r.Invitations.SetStatus(ctx, inv.ID, model.InvitationRevoked)
	})
	if err != nil {
		return err
	}
	if expired {
		return errs.ErrInvitationExpired
	}
	return nil
}

// ListForOwner expires overdue rows first; that step is best effort.
func (s *InvitationServiceImpl) ListForOwner(ctx context.Context, ownerID, householdID uuid.UUID) ([]model.InvitationView, error) {
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		return assertOwner(ctx, r, householdID, ownerID)
	})
	if err != nil {
		return nil, err
	}

	r := s.store.Repos()
	now := s.now()
	if n, err := r.Invitations.ExpireOverdue(ctx, householdID, now); err != nil {
		s.log.Warn("expire overdue invitations", zap.String("household_id", householdID.String()), zap.Error(err))
	} else if n > 0 {
		s.log.Debug("expired invitations", zap.Int64("count", n))
	}

	list, err := r.Invitations.ListByHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}

	out := make([]model.InvitationView, 0, len(list))
	for i := range list {
		inv := &list[i]
		if inv.Status == model.InvitationPending && inv.ExpiredAt(now) {
			inv.Status = model.InvitationExpired
		}
		v := model.InvitationView{
			ID:                inv.ID,
			InvitedIdentifier: inv.InvitedIdentifier,
			Email:             inv.Email,
			Method:            MethodEmail,
			Status:            inv.Status,
			InvitedByID:       inv.InvitedByID,
			AcceptedByID:      inv.AcceptedByID,
			ExpiresAt:         inv.ExpiresAt,
			AcceptedAt:        inv.AcceptedAt,
			CreatedAt:         inv.CreatedAt,
		}
		if inv.Email == nil {
			v.Method = MethodPhone
		}
		out = append(out, v)
	}
	return out, nil
}

// SearchUser looks an identifier up for the invite dialog.
func (s *InvitationServiceImpl) SearchUser(ctx context.Context, userID uuid.UUID, identifier string, householdID *uuid.UUID) (*model.InviteSearch, error) {
	r := s.store.Repos()

	var hid uuid.UUID
	if householdID != nil {
		hid = *householdID
	} else {
		h, err := requireHousehold(ctx, r, userID)
		if err != nil {
			return nil, err
		}
		hid = h.ID
	}
	if _, err := requireMembership(ctx, r, hid, userID); err != nil {
		return nil, err
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errs.ErrIdentifierRequired
	}
	res := &model.InviteSearch{Method: MethodEmail}

	var (
		u   *model.User
		err error
	)
	if strings.Contains(identifier, "@") {
		u, err = r.Users.GetByEmail(ctx, normalizeEmail(identifier))
	} else {
		res.Method = MethodPhone
		if !s.phone.Enabled() {
			return nil, errs.ErrPhoneAuthUnavailable
		}
		norm := phonecrypto.Normalize(identifier)
		if norm == "" {
			return nil, errs.ErrInvalidPhone
		}
		lookup, lerr := s.phone.LookupHash(norm)
		if lerr != nil {
			return nil, lerr
		}
		u, err = r.Users.GetByPhoneHash(ctx, lookup)
	}
	if errors.Is(err, errs.ErrNotFound) {
		res.CanInvite = true
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	res.Exists = true
	name := u.DisplayName
	res.DisplayName = &name
	_, err = r.Households.GetMembership(ctx, hid, u.ID)
	switch {
	case err == nil:
		res.IsAlreadyMember = true
	case errors.Is(err, errs.ErrNotFound):
		res.CanInvite = true
	default:
		return nil, err
	}
	return res, nil
}
