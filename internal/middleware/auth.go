package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/havenlist/authcore/internal/auth"
	"github.com/havenlist/authcore/internal/httperr"
	"github.com/havenlist/authcore/internal/logger"
	"github.com/havenlist/authcore/internal/repository"
)

type ContextKey string

const IdentityContextKey ContextKey = "identity"

var (
	ErrNoToken = errors.New("no token")
	// ErrSubjectGone: the token verified but the account behind it no
	// longer exists. This store read is the freshness check that
	// compensates for the absence of a revocation list.
	ErrSubjectGone = errors.New("account no longer exists")
)

// IdentityContext is what downstream handlers see about the caller. The
// raw token and password hash never enter it.
type IdentityContext struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// SessionMiddleware validates bearer tokens on protected routes.
type SessionMiddleware struct {
	tokens     *auth.TokenManager
	identities repository.IdentityRepository
	log        *zap.Logger
}

func NewSession(tokens *auth.TokenManager, identities repository.IdentityRepository) *SessionMiddleware {
	return &SessionMiddleware{
		tokens:     tokens,
		identities: identities,
		log:        logger.Named("session"),
	}
}

// Authenticate resolves a raw bearer token to an identity context.
func (m *SessionMiddleware) Authenticate(ctx context.Context, rawToken string) (*IdentityContext, error) {
	if rawToken == "" {
		return nil, ErrNoToken
	}

	claims, err := m.tokens.Verify(rawToken)
	if err != nil {
		return nil, err
	}

	identity, err := m.identities.GetByID(ctx, claims.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSubjectGone
	}
	if err != nil {
		return nil, err
	}

	return &IdentityContext{
		ID:          identity.ID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
	}, nil
}

func (m *SessionMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, err := m.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			m.writeUnauthorized(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetIdentity returns the authenticated caller, if any.
func GetIdentity(ctx context.Context) (*IdentityContext, bool) {
	ident, ok := ctx.Value(IdentityContextKey).(*IdentityContext)
	return ident, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// writeUnauthorized maps every authentication failure to 401; the detail
// distinguishes expiry for client UX, not for security.
func (m *SessionMiddleware) writeUnauthorized(w http.ResponseWriter, err error) {
	var detail string
	switch {
	case errors.Is(err, ErrNoToken):
		detail = "no token"
	case errors.Is(err, auth.ErrTokenExpired):
		detail = "token expired"
	case errors.Is(err, auth.ErrTokenMalformed):
		detail = "invalid token"
	case errors.Is(err, ErrSubjectGone):
		detail = "account no longer exists"
	default:
		// Store failure or missing secret: not the client's fault.
		m.log.Error("authenticate", zap.Error(err))
		httperr.Write(w, httperr.ErrInternal)
		return
	}
	httperr.Write(w, httperr.ErrUnauthorized.WithDetail(detail))
}
