package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenlist/authcore/internal/auth"
	"github.com/havenlist/authcore/internal/db"
	"github.com/havenlist/authcore/internal/repository/memory"
)

func newSessionFixture(t *testing.T) (*SessionMiddleware, *auth.TokenManager, *db.Identity) {
	t.Helper()

	repo := memory.New()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	identity := &db.Identity{
		ID:           "id-1",
		Email:        "a@x.com",
		DisplayName:  "A",
		PasswordHash: "irrelevant",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), identity))

	return NewSession(tokens, repo), tokens, identity
}

func TestSessionMiddlewareValidToken(t *testing.T) {
	session, tokens, identity := newSessionFixture(t)

	token, err := tokens.Issue(identity.ID, identity.Email)
	require.NoError(t, err)

	var seen *IdentityContext
	handler := session.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, identity.ID, seen.ID)
	assert.Equal(t, identity.Email, seen.Email)
	assert.Equal(t, identity.DisplayName, seen.DisplayName)
}

func TestSessionMiddlewareRejects(t *testing.T) {
	session, tokens, _ := newSessionFixture(t)

	expiredManager := auth.NewTokenManager("test-secret", -time.Minute)
	expiredToken, err := expiredManager.Issue("id-1", "a@x.com")
	require.NoError(t, err)

	// Valid signature, but the subject was never persisted: the
	// freshness check must reject it.
	ghostToken, err := tokens.Issue("ghost-id", "ghost@x.com")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
	}{
		{"missing token", ""},
		{"garbage token", "Bearer not.a.token"},
		{"expired token", "Bearer " + expiredToken},
		{"subject gone", "Bearer " + ghostToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			handler := session.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called, "handler must not run")
		})
	}
}

func TestAuthenticateErrors(t *testing.T) {
	session, tokens, _ := newSessionFixture(t)
	ctx := context.Background()

	_, err := session.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrNoToken)

	ghostToken, err := tokens.Issue("ghost-id", "ghost@x.com")
	require.NoError(t, err)
	_, err = session.Authenticate(ctx, ghostToken)
	assert.ErrorIs(t, err, ErrSubjectGone)

	_, err = session.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}
