package service

import (
	"context"
	"errors"
	"time"

	pkgcrypto "github.com/and161185/hogar/internal/crypto"
	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenTypeAccess is the typ claim of access tokens.
const TokenTypeAccess = "access"

// AccessClaims is the payload of a signed access token.
type AccessClaims struct {
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	Type      string `json:"typ"`
	jwt.RegisteredClaims
}

// SessionManager issues, rotates and validates refresh-token sessions.
type SessionManager interface {
	// Create opens a session for the user and returns the first token pair.
	Create(ctx context.Context, userID uuid.UUID) (model.Tokens, error)
	// Refresh rotates the refresh token, detecting reuse of superseded tokens.
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
	// Authenticate parses a bearer access token and validates its session.
	Authenticate(ctx context.Context, accessToken string) (model.Identity, error)
	// Validate checks already parsed claims against the session store.
	Validate(ctx context.Context, claims *AccessClaims) (model.Identity, error)
	// Logout revokes the session. Unknown or revoked sessions succeed silently.
	Logout(ctx context.Context, userID, sessionID uuid.UUID) error
}

type SessionManagerImpl struct {
	store      repository.Store
	signKey    []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewSessionManager constructs a SessionManager signing HS256 access tokens.
func NewSessionManager(store repository.Store, signKey []byte, accessTTL, refreshTTL time.Duration, log *zap.Logger) *SessionManagerImpl {
	if refreshTTL <= 0 {
		refreshTTL = 30 * time.Minute
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &SessionManagerImpl{
		store:      store,
		signKey:    signKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		log:        log,
		now:        time.Now,
	}
}

// Create opens a session using pool-bound repositories.
func (m *SessionManagerImpl) Create(ctx context.Context, userID uuid.UUID) (model.Tokens, error) {
	r := m.store.Repos()
	u, err := r.Users.GetByID(ctx, userID)
	if err != nil {
		return model.Tokens{}, err
	}
	return m.create(ctx, r, u)
}

// create inserts the session through r so callers can include it in a transaction.
func (m *SessionManagerImpl) create(ctx context.Context, r repository.Repos, u *model.User) (model.Tokens, error) {
	refresh, err := pkgcrypto.NewToken()
	if err != nil {
		return model.Tokens{}, err
	}
	sid, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, err
	}
	s := &model.Session{
		ID:               sid,
		UserID:           u.ID,
		RefreshTokenHash: pkgcrypto.HashToken(refresh),
		ExpiresAt:        m.now().Add(m.refreshTTL),
	}
	if err := r.Sessions.Create(ctx, s); err != nil {
		return model.Tokens{}, err
	}
	access, exp, err := m.issueAccessToken(u, sid)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

// Refresh implements rotation with reuse detection.
func (m *SessionManagerImpl) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	if refreshToken == "" {
		return model.Tokens{}, errs.ErrInvalidToken
	}
	hash := pkgcrypto.HashToken(refreshToken)
	r := m.store.Repos()

	s, err := r.Sessions.FindByRefreshHash(ctx, hash)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, errs.ErrInvalidToken
	}
	if err != nil {
		return model.Tokens{}, err
	}

	now := m.now()
	if s.RefreshTokenHash != hash {
		// superseded token presented again: the session is burnt
		if err := r.Sessions.Revoke(ctx, s.ID, now); err != nil {
			return model.Tokens{}, err
		}
		m.log.Warn("refresh token reuse detected", zap.String("session_id", s.ID.String()),
			zap.String("user_id", s.UserID.String()))
		return model.Tokens{}, errs.ErrTokenReuse
	}
	if s.Revoked() {
		return model.Tokens{}, errs.ErrSessionRevoked
	}
	if s.Expired(now) {
		return model.Tokens{}, errs.ErrTokenExpired
	}

	u, err := r.Users.GetByID(ctx, s.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, errs.ErrInvalidToken
	}
	if err != nil {
		return model.Tokens{}, err
	}

	next, err := pkgcrypto.NewToken()
	if err != nil {
		return model.Tokens{}, err
	}
	err = r.Sessions.Rotate(ctx, s.ID, hash, pkgcrypto.HashToken(next), now, now.Add(m.refreshTTL))
	if errors.Is(err, errs.ErrConflict) {
		return model.Tokens{}, errs.ErrInvalidToken
	}
	if err != nil {
		return model.Tokens{}, err
	}

	access, exp, err := m.issueAccessToken(u, s.ID)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: next, ExpiresAt: exp}, nil
}

// Authenticate parses and validates a bearer token.
func (m *SessionManagerImpl) Authenticate(ctx context.Context, accessToken string) (model.Identity, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(*jwt.Token) (any, error) {
		return m.signKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return model.Identity{}, errs.ErrInvalidToken
	}
	return m.Validate(ctx, claims)
}

// Validate checks claims type, session ownership and liveness.
func (m *SessionManagerImpl) Validate(ctx context.Context, claims *AccessClaims) (model.Identity, error) {
	if claims == nil || claims.Type != TokenTypeAccess || claims.SessionID == "" {
		return model.Identity{}, errs.ErrInvalidToken
	}
	sid, err := uuid.FromString(claims.SessionID)
	if err != nil {
		return model.Identity{}, errs.ErrInvalidToken
	}
	s, err := m.store.Repos().Sessions.GetByID(ctx, sid)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Identity{}, errs.ErrInvalidToken
	}
	if err != nil {
		return model.Identity{}, err
	}
	if s.UserID.String() != claims.Subject {
		return model.Identity{}, errs.ErrInvalidToken
	}
	if s.Revoked() {
		return model.Identity{}, errs.ErrSessionRevoked
	}
	if s.Expired(m.now()) {
		return model.Identity{}, errs.ErrTokenExpired
	}
	return model.Identity{UserID: s.UserID, Email: claims.Email, SessionID: s.ID}, nil
}

// Logout is idempotent.
func (m *SessionManagerImpl) Logout(ctx context.Context, userID, sessionID uuid.UUID) error {
	r := m.store.Repos()
	s, err := r.Sessions.GetByID(ctx, sessionID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.UserID != userID || s.Revoked() {
		return nil
	}
	return r.Sessions.Revoke(ctx, s.ID, m.now())
}

// issueAccessToken creates a signed HS256 JWT bound to the session.
func (m *SessionManagerImpl) issueAccessToken(u *model.User, sid uuid.UUID) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.accessTTL)
	var email string
	if u.Email != nil {
		email = *u.Email
	}
	claims := AccessClaims{
		Email:     email,
		SessionID: sid.String(),
		Type:      TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.signKey)
	return signed, exp, err
}
