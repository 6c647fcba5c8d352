// Package service contains the application services behind the REST API.
package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	pkgcrypto "github.com/and161185/hogar/internal/crypto"
	"github.com/and161185/hogar/internal/crypto/phonecrypto"
	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/limiter"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// AuthResult is returned by registration and login.
type AuthResult struct {
	Tokens    model.Tokens
	User      model.UserView
	Household *model.Household
}

// ProfileInput holds optional profile changes. An empty string clears an identifier.
type ProfileInput struct {
	DisplayName *string
	Email       *string
	Phone       *string
}

// AuthService defines account and login operations.
type AuthService interface {
	// Register creates a user, auto-accepts a matching invitation and opens a session.
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	// Login applies rate limiting and authenticates by email or phone.
	Login(ctx context.Context, identifier, password, ip string) (*AuthResult, error)
	// Refresh rotates the refresh token.
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
	// Logout revokes the caller's session.
	Logout(ctx context.Context, userID, sessionID uuid.UUID) error
	// Me returns the caller's profile and resolved household.
	Me(ctx context.Context, userID uuid.UUID) (model.UserView, *model.Household, error)
	// UpdateProfile changes display name and identifiers.
	UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (model.UserView, error)
	// ChangePassword verifies the current password and stores the new one.
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
}

type AuthServiceImpl struct {
	store    repository.Store
	creds    Credentials
	sessions *SessionManagerImpl
	invites  *InvitationServiceImpl
	lim      limiter.Limiter
	log      *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(store repository.Store, creds Credentials, sessions *SessionManagerImpl, invites *InvitationServiceImpl, lim limiter.Limiter, log *zap.Logger) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Noop{}
	}
	return &AuthServiceImpl{store: store, creds: creds, sessions: sessions, invites: invites, lim: lim, log: log}
}

// Register runs user creation, invitation auto-accept and session creation in one transaction.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	nu, err := s.creds.prepare(in)
	if err != nil {
		return nil, err
	}
	res := &AuthResult{}
	err = s.store.InTx(ctx, func(r repository.Repos) error {
		if err := nu.insert(ctx, r); err != nil {
			return err
		}
		h, err := s.invites.autoAccept(ctx, r, nu.user.ID, nu.email, nu.phoneLookup)
		if err != nil {
			return err
		}
		if h != nil {
			nu.user.PrimaryHouseholdID = &h.ID
		}
		res.Household = h
		res.Tokens, err = s.sessions.create(ctx, r, nu.user)
		return err
	})
	if err != nil {
		return nil, err
	}
	res.User = s.creds.view(nu.user)
	return res, nil
}

// Login authenticates with rate limiting by (identifier, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, identifier, password, ip string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, errs.ErrInvalidCredentials
	}
	key, lookup, err := s.loginKey(identifier)
	if err != nil {
		return nil, err
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, key, ipHash)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errs.ErrRateLimited
	}

	r := s.store.Repos()
	u, err := lookup(ctx, r)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if err != nil || !pkgcrypto.VerifyPassword(password, u.PasswordHash) {
		blocked, _, ferr := s.lim.Failure(ctx, key, ipHash)
		if ferr != nil {
			s.log.Warn("limiter failure not recorded", zap.Error(ferr))
		}
		if blocked {
			return nil, errs.ErrRateLimited
		}
		return nil, errs.ErrInvalidCredentials
	}

	if err := s.lim.Success(ctx, key, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}
	tokens, err := s.sessions.create(ctx, r, u)
	if err != nil {
		return nil, err
	}
	h, err := resolveHousehold(ctx, r, u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Tokens: tokens, User: s.creds.view(u), Household: h}, nil
}

// loginKey picks the limiter key and the user lookup for an identifier.
// Phone identifiers need the phone cipher; a phone that cannot be hashed
// never matches a user.
func (s *AuthServiceImpl) loginKey(identifier string) (string, func(context.Context, repository.Repos) (*model.User, error), error) {
	if strings.Contains(identifier, "@") {
		email := normalizeEmail(identifier)
		return email, func(ctx context.Context, r repository.Repos) (*model.User, error) {
			return r.Users.GetByEmail(ctx, email)
		}, nil
	}
	if !s.creds.Phone.Enabled() {
		return "", nil, errs.ErrPhoneAuthUnavailable
	}
	norm := phonecrypto.Normalize(identifier)
	return norm, func(ctx context.Context, r repository.Repos) (*model.User, error) {
		hash, err := s.creds.Phone.LookupHash(norm)
		if err != nil {
			return nil, errs.ErrNotFound
		}
		return r.Users.GetByPhoneHash(ctx, hash)
	}, nil
}

// Refresh delegates to the session manager.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	return s.sessions.Refresh(ctx, refreshToken)
}

// Logout delegates to the session manager.
func (s *AuthServiceImpl) Logout(ctx context.Context, userID, sessionID uuid.UUID) error {
	return s.sessions.Logout(ctx, userID, sessionID)
}

func (s *AuthServiceImpl) Me(ctx context.Context, userID uuid.UUID) (model.UserView, *model.Household, error) {
	r := s.store.Repos()
	u, err := r.Users.GetByID(ctx, userID)
	if err != nil {
		return model.UserView{}, nil, err
	}
	h, err := resolveHousehold(ctx, r, userID)
	if err != nil {
		return model.UserView{}, nil, err
	}
	return s.creds.view(u), h, nil
}

// UpdateProfile keeps at least one identifier on the account.
func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (model.UserView, error) {
	var u *model.User
	err := s.store.InTx(ctx, func(r repository.Repos) error {
		var err error
		if u, err = r.Users.GetByID(ctx, userID); err != nil {
			return err
		}
		if in.DisplayName != nil {
			name, err := displayName(*in.DisplayName)
			if err != nil {
				return err
			}
			u.DisplayName = name
		}
		if in.Email != nil {
			if err := s.applyEmail(ctx, r, u, *in.Email); err != nil {
				return err
			}
		}
		if in.Phone != nil {
			if err := s.applyPhone(ctx, r, u, *in.Phone); err != nil {
				return err
			}
		}
		if u.Email == nil && u.PhoneLookupHash == nil {
			return errs.ErrIdentifierRequired
		}
		return r.Users.UpdateProfile(ctx, u)
	})
	if err != nil {
		return model.UserView{}, err
	}
	return s.creds.view(u), nil
}

func (s *AuthServiceImpl) applyEmail(ctx context.Context, r repository.Repos, u *model.User, raw string) error {
	email := normalizeEmail(raw)
	if email == "" {
		u.Email = nil
		return nil
	}
	taken, err := r.Users.EmailTaken(ctx, email, u.ID)
	if err != nil {
		return err
	}
	if taken {
		return errs.ErrEmailTaken
	}
	u.Email = &email
	return nil
}

func (s *AuthServiceImpl) applyPhone(ctx context.Context, r repository.Repos, u *model.User, raw string) error {
	if strings.TrimSpace(raw) == "" {
		u.PhoneEncrypted, u.PhoneLookupHash = nil, nil
		return nil
	}
	_, enc, lookup, err := s.creds.Phone.Protect(raw)
	if err != nil {
		return err
	}
	taken, err := r.Users.PhoneTaken(ctx, lookup, u.ID)
	if err != nil {
		return err
	}
	if taken {
		return errs.ErrPhoneTaken
	}
	u.PhoneEncrypted, u.PhoneLookupHash = &enc, &lookup
	return nil
}

// ChangePassword leaves existing sessions alive.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if utf8.RuneCountInString(next) < 6 {
		return errs.New(errs.ErrBadRequest, "password must have at least 6 characters")
	}
	r := s.store.Repos()
	u, err := r.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !pkgcrypto.VerifyPassword(current, u.PasswordHash) {
		return errs.ErrInvalidCredentials
	}
	hash, err := pkgcrypto.HashPassword(next, s.creds.BcryptCost)
	if err != nil {
		return err
	}
	return r.Users.UpdatePassword(ctx, userID, hash)
}
