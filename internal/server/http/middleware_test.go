package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/service"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSessions struct {
	service.SessionManager
	tokens map[string]model.Identity
	err    error
}

var _ service.SessionManager = (*fakeSessions)(nil)

func (f *fakeSessions) Authenticate(_ context.Context, token string) (model.Identity, error) {
	if f.err != nil {
		return model.Identity{}, f.err
	}
	id, ok := f.tokens[token]
	if !ok {
		return model.Identity{}, errs.ErrInvalidToken
	}
	return id, nil
}

func TestRequestLogger_RecordsStatusAndRoute(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	mw := RequestLogger(zap.New(core))

	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/lists?cursor=secret", nil)
	req.Header.Set("Authorization", "Bearer top-secret")
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, zap.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	require.Equal(t, "/lists", fields["route"])
	require.EqualValues(t, http.StatusTeapot, fields["status"])
	for _, v := range fields {
		if s, ok := v.(string); ok {
			require.NotContains(t, s, "secret")
		}
	}
}

func TestRequestLogger_DefaultsToOK(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.EqualValues(t, http.StatusOK, logs.All()[0].ContextMap()["status"])
	require.Equal(t, zap.InfoLevel, logs.All()[0].Level)
}

func TestRecoverer_CatchesPanic(t *testing.T) {
	t.Parallel()
	h := Recoverer(zaptest.NewLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("oh no")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "internal", body.Error)
}

func TestRecoverer_NoPanicPassThrough(t *testing.T) {
	t.Parallel()
	h := Recoverer(zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	SecurityHeaders(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func Test_bearerToken(t *testing.T) {
	t.Parallel()
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"Basic foo", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		got, ok := bearerToken(r)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%q: got=%q ok=%v", tc.header, got, ok)
		}
	}
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()
	ana := model.Identity{UserID: uuid.Must(uuid.NewV4()), SessionID: uuid.Must(uuid.NewV4())}
	sessions := &fakeSessions{tokens: map[string]model.Identity{"good": ana}}

	var seen model.Identity
	h := RequireAuth(sessions, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromCtx(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, header := range []string{"", "Bearer nope", "Token good"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, header)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, unauthorizedMsg, body.Error)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, ana, seen)
}

func TestRequireAuth_RevokedSessionLooksLikeAnyOtherFailure(t *testing.T) {
	t.Parallel()
	h := RequireAuth(&fakeSessions{err: errs.ErrSessionRevoked}, zaptest.NewLogger(t))(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotContains(t, rec.Body.String(), "revoked")
}
