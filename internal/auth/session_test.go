package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HaiBangi/yumiso-sub003/internal/models"
)

type stubAuthenticator struct{}

func (stubAuthenticator) Authenticate(_ context.Context, username, password string) (*models.User, error) {
	if username == "alice" && password == "pw" {
		return &models.User{ID: 3, Username: "alice", DisplayName: "Alice"}, nil
	}
	return nil, ErrUnauthorised
}

func newManager() *Manager {
	return NewManager(stubAuthenticator{}, []byte("0123456789abcdef0123456789abcdef"), false)
}

func TestMiddleware_RejectsAnonymous(t *testing.T) {
	m := newManager()
	called := false
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plans", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, called)
	require.Contains(t, rec.Body.String(), "login required")
}

func TestAuthenticate_SessionRoundTrip(t *testing.T) {
	m := newManager()

	loginRec := httptest.NewRecorder()
	user, err := m.Authenticate(loginRec, httptest.NewRequest(http.MethodPost, "/api/login", nil), "alice", "pw")
	require.NoError(t, err)
	require.EqualValues(t, 3, user.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
	for _, c := range loginRec.Result().Cookies() {
		req.AddCookie(c)
	}

	var got Identity
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, Identity{ID: 3, Name: "Alice"}, got)
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	m := newManager()
	_, err := m.Authenticate(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/login", nil), "alice", "nope")
	require.Error(t, err)
}
