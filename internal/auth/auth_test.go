package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loja/storefront/internal/middleware"
	"github.com/loja/storefront/internal/user"
)

const secret = "test-secret"

type stubUsers struct {
	user *user.User
	err  error
}

func (s stubUsers) Authenticate(_ context.Context, username, password string) (*user.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if username != s.user.Username || password != "segredo1" {
		return nil, user.ErrInvalidCredentials
	}
	return s.user, nil
}

func protectedRouter() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireAuth(secret))
		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(middleware.UserID(r.Context())))
		})
		r.With(middleware.RequireStaff).Get("/admin", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r
}

func login(t *testing.T, u *user.User) *LoginResult {
	t.Helper()
	svc := NewService(stubUsers{user: u}, secret, zap.NewNop())
	res, err := svc.Login(context.Background(), u.Username, "segredo1")
	require.NoError(t, err)
	return res
}

func call(router http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLogin_TokenGrantsAccess(t *testing.T) {
	res := login(t, &user.User{ID: "u1", Username: "ana"})
	assert.WithinDuration(t, time.Now().Add(TokenTTL), res.ExpiresAt, time.Minute)

	router := protectedRouter()
	rec := call(router, "/api/me", res.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())

	assert.Equal(t, http.StatusForbidden, call(router, "/api/admin", res.Token).Code)
}

func TestLogin_StaffToken(t *testing.T) {
	res := login(t, &user.User{ID: "u9", Username: "admin", IsStaff: true})
	assert.Equal(t, http.StatusNoContent, call(protectedRouter(), "/api/admin", res.Token).Code)
}

func TestRequireAuth_Rejects(t *testing.T) {
	router := protectedRouter()
	assert.Equal(t, http.StatusUnauthorized, call(router, "/api/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(router, "/api/me", "not-a-jwt").Code)

	svc := NewService(stubUsers{user: &user.User{ID: "u1", Username: "ana"}}, "other-secret", zap.NewNop())
	res, err := svc.Login(context.Background(), "ana", "segredo1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(router, "/api/me", res.Token).Code)

	svc = NewService(stubUsers{user: &user.User{ID: "u1", Username: "ana"}}, secret, zap.NewNop())
	svc.now = func() time.Time { return time.Now().Add(-2 * TokenTTL) }
	res, err = svc.Login(context.Background(), "ana", "segredo1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(router, "/api/me", res.Token).Code, "expired")
}

func TestHandler_Login(t *testing.T) {
	h := NewHandler(NewService(stubUsers{user: &user.User{ID: "u1", Username: "ana"}}, secret, zap.NewNop()))

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"ana","password":"segredo1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data LoginResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.NotEmpty(t, env.Data.Token)
	assert.Equal(t, "u1", env.Data.User.ID)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"ana","password":"errada"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ana"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_LoginStoreFailure(t *testing.T) {
	h := NewHandler(NewService(stubUsers{err: errors.New("db down")}, secret, zap.NewNop()))

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"ana","password":"segredo1"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
