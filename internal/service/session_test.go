package service

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgcrypto "github.com/and161185/hogar/internal/crypto"
	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSession_CreateAndAuthenticate(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	res := e.register(t, "ana@example.com", "Ana")

	id, err := e.sessions.Authenticate(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, id.UserID)
	require.Equal(t, "ana@example.com", id.Email)

	// only the hash of the refresh token is stored
	s, err := e.store.Repos().Sessions.GetByID(ctx, id.SessionID)
	require.NoError(t, err)
	require.Equal(t, pkgcrypto.HashToken(res.Tokens.RefreshToken), s.RefreshTokenHash)
	require.NotEqual(t, res.Tokens.RefreshToken, s.RefreshTokenHash)
}

func TestSession_RefreshRotatesAndDetectsReuse(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	res := e.register(t, "ana@example.com", "Ana")

	next, err := e.sessions.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, res.Tokens.RefreshToken, next.RefreshToken)

	id, err := e.sessions.Authenticate(ctx, next.AccessToken)
	require.NoError(t, err)

	// replaying the superseded token burns the session
	_, err = e.sessions.Refresh(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, errs.ErrTokenReuse)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = e.sessions.Refresh(ctx, next.RefreshToken)
	require.ErrorIs(t, err, errs.ErrSessionRevoked)
	_, err = e.sessions.Authenticate(ctx, next.AccessToken)
	require.ErrorIs(t, err, errs.ErrSessionRevoked)

	s, err := e.store.Repos().Sessions.GetByID(ctx, id.SessionID)
	require.NoError(t, err)
	require.NotNil(t, s.RevokedAt)
}

func TestSession_RefreshUnknownAndExpired(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.sessions.Refresh(ctx, "")
	require.ErrorIs(t, err, errs.ErrInvalidToken)
	_, err = e.sessions.Refresh(ctx, "never-issued")
	require.ErrorIs(t, err, errs.ErrInvalidToken)

	res := e.register(t, "ana@example.com", "Ana")
	e.sessions.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	_, err = e.sessions.Refresh(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, errs.ErrTokenExpired)
}

func TestSession_RefreshSlidesExpiry(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	start := time.Now().Truncate(time.Second)
	now := start
	e.sessions.now = func() time.Time { return now }

	res := e.register(t, "ana@example.com", "Ana")
	s, err := e.store.Repos().Sessions.FindByRefreshHash(ctx, pkgcrypto.HashToken(res.Tokens.RefreshToken))
	require.NoError(t, err)
	require.WithinDuration(t, start.Add(30*time.Minute), s.ExpiresAt, 0)

	expiresAt := func() time.Time {
		t.Helper()
		got, err := e.store.Repos().Sessions.GetByID(ctx, s.ID)
		require.NoError(t, err)
		return got.ExpiresAt
	}

	now = start.Add(20 * time.Minute)
	next, err := e.sessions.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	require.WithinDuration(t, now.Add(30*time.Minute), expiresAt(), 0)

	// failed refreshes leave the window alone
	now = start.Add(25 * time.Minute)
	_, err = e.sessions.Refresh(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, errs.ErrTokenReuse)
	require.WithinDuration(t, start.Add(50*time.Minute), expiresAt(), 0)

	_, err = e.sessions.Refresh(ctx, next.RefreshToken)
	require.ErrorIs(t, err, errs.ErrSessionRevoked)
	require.WithinDuration(t, start.Add(50*time.Minute), expiresAt(), 0)
}

func TestSession_ExpiredRefreshKeepsExpiry(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	start := time.Now().Truncate(time.Second)
	now := start
	e.sessions.now = func() time.Time { return now }
	res := e.register(t, "ana@example.com", "Ana")

	tok, err := e.sessions.Create(ctx, res.User.ID)
	require.NoError(t, err)
	s, err := e.store.Repos().Sessions.FindByRefreshHash(ctx, pkgcrypto.HashToken(tok.RefreshToken))
	require.NoError(t, err)

	now = start.Add(31 * time.Minute)
	_, err = e.sessions.Refresh(ctx, tok.RefreshToken)
	require.ErrorIs(t, err, errs.ErrTokenExpired)

	got, err := e.store.Repos().Sessions.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.WithinDuration(t, start.Add(30*time.Minute), got.ExpiresAt, 0)
	require.Equal(t, s.RefreshTokenHash, got.RefreshTokenHash)
	require.Nil(t, got.RotatedAt)
}

// conflictSessions loses every rotation race.
type conflictSessions struct{ memSessions }

func (conflictSessions) Rotate(context.Context, uuid.UUID, string, string, time.Time, time.Time) error {
	return errs.ErrConflict
}

type racingStore struct{ *memStore }

func (s racingStore) Repos() repository.Repos {
	r := s.memStore.Repos()
	r.Sessions = conflictSessions{memSessions{s.memStore}}
	return r
}

func TestSession_RotateLostRaceIsInvalidToken(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	res := e.register(t, "ana@example.com", "Ana")

	sm := NewSessionManager(racingStore{e.store}, testSignKey, time.Minute, time.Hour, zaptest.NewLogger(t))
	_, err := sm.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.ErrorIs(t, err, errs.ErrInvalidToken)
}

func TestSession_ValidateRejectsForeignTokens(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	res := e.register(t, "ana@example.com", "Ana")
	id, err := e.sessions.Authenticate(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)

	cases := []struct {
		name   string
		claims *AccessClaims
	}{
		{"nil", nil},
		{"wrong type", &AccessClaims{Type: "refresh", SessionID: id.SessionID.String(),
			RegisteredClaims: jwt.RegisteredClaims{Subject: id.UserID.String()}}},
		{"no sid", &AccessClaims{Type: TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{Subject: id.UserID.String()}}},
		{"bad sid", &AccessClaims{Type: TokenTypeAccess, SessionID: "nope",
			RegisteredClaims: jwt.RegisteredClaims{Subject: id.UserID.String()}}},
		{"unknown sid", &AccessClaims{Type: TokenTypeAccess, SessionID: newID().String(),
			RegisteredClaims: jwt.RegisteredClaims{Subject: id.UserID.String()}}},
		{"subject mismatch", &AccessClaims{Type: TokenTypeAccess, SessionID: id.SessionID.String(),
			RegisteredClaims: jwt.RegisteredClaims{Subject: newID().String()}}},
	}
	for _, tc := range cases {
		_, err := e.sessions.Validate(ctx, tc.claims)
		if !errors.Is(err, errs.ErrInvalidToken) {
			t.Fatalf("%s: want ErrInvalidToken, got %v", tc.name, err)
		}
	}

	// other algorithms are refused
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{Type: TokenTypeAccess, SessionID: id.SessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.UserID.String(), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}})
	signed, err := tok.SignedString(testSignKey)
	require.NoError(t, err)
	_, err = e.sessions.Authenticate(ctx, signed)
	require.ErrorIs(t, err, errs.ErrInvalidToken)

	_, err = e.sessions.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, errs.ErrInvalidToken)
}

func TestSession_LogoutIsIdempotent(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	res := e.register(t, "ana@example.com", "Ana")
	id, err := e.sessions.Authenticate(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, e.auth.Logout(ctx, id.UserID, id.SessionID))
	require.NoError(t, e.auth.Logout(ctx, id.UserID, id.SessionID))
	require.NoError(t, e.auth.Logout(ctx, id.UserID, newID()))

	_, err = e.sessions.Authenticate(ctx, res.Tokens.AccessToken)
	require.ErrorIs(t, err, errs.ErrSessionRevoked)
	_, err = e.sessions.Refresh(ctx, res.Tokens.RefreshToken)
	require.ErrorIs(t, err, errs.ErrSessionRevoked)
}
