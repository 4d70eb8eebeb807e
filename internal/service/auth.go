package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/havenlist/authcore/internal/audit"
	"github.com/havenlist/authcore/internal/auth"
	"github.com/havenlist/authcore/internal/db"
	"github.com/havenlist/authcore/internal/logger"
	"github.com/havenlist/authcore/internal/metrics"
	"github.com/havenlist/authcore/internal/repository"
)

// PublicIdentity is the outward view of an account. The password hash
// and external id never appear here.
type PublicIdentity struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	LastLoginAt time.Time `json:"last_login_at"`
}

// LoginResult is a freshly minted session plus the public identity.
type LoginResult struct {
	Token    string
	Identity PublicIdentity
}

// AuthService orchestrates signup, password login and OAuth identity
// linking. It holds no per-request state.
type AuthService struct {
	identities repository.IdentityRepository
	tokens     *auth.TokenManager
	gate       *RegistrationGate
	audit      audit.Logger
	log        *zap.Logger
}

func NewAuthService(identities repository.IdentityRepository, policies repository.PolicyRepository, tokens *auth.TokenManager, auditLog audit.Logger) *AuthService {
	return &AuthService{
		identities: identities,
		tokens:     tokens,
		gate:       NewRegistrationGate(identities, policies),
		audit:      auditLog,
		log:        logger.Named("auth"),
	}
}

// Gate exposes the registration gate for the admin surface.
func (s *AuthService) Gate() *RegistrationGate {
	return s.gate
}

// Signup creates a password account. The very first account may always
// register and closes open registration behind itself.
func (s *AuthService) Signup(ctx context.Context, email, password, displayName string) (*PublicIdentity, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if err := validateDisplayName(displayName); err != nil {
		return nil, err
	}

	if _, err := s.identities.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, s.internal("signup: lookup email", err)
	}

	count, err := s.identities.Count(ctx)
	if err != nil {
		return nil, s.internal("signup: count identities", err)
	}
	open, err := s.gate.CanRegister(ctx)
	if err != nil {
		return nil, s.internal("signup: read registration policy", err)
	}
	if !open {
		return nil, ErrRegistrationClosed
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, s.internal("signup: hash password", err)
	}

	identity := &db.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, s.internal("signup: create identity", err)
	}

	if count == 0 {
		if err := s.gate.OnFirstAccountCreated(ctx); err != nil {
			// The account exists; only the gate write failed. Surface it:
			// leaving registration open after bootstrap is not acceptable
			// silently.
			return nil, s.internal("signup: close registration after bootstrap", err)
		}
	}

	s.audit.Log(audit.Event{
		Timestamp: time.Now().UTC(),
		ActorID:   identity.ID,
		Action:    audit.ActionSignup,
		Resource:  "identity:" + identity.ID,
		Metadata:  map[string]interface{}{"bootstrap": count == 0},
	})

	return publicView(identity), nil
}

// Login verifies password credentials and mints a session token. Unknown
// email, absent password hash and wrong password are indistinguishable to
// the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)

	identity, err := s.identities.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, s.loginFailure(email, "unknown_email", ErrInvalidCredentials)
	}
	if err != nil {
		return nil, s.internal("login: lookup email", err)
	}

	if identity.ExternalID != "" && identity.PasswordHash == "" {
		return nil, s.loginFailure(email, "oauth_only", ErrWrongAuthMethod)
	}
	if identity.PasswordHash == "" {
		return nil, s.loginFailure(email, "no_password", ErrInvalidCredentials)
	}
	if !auth.CheckPasswordHash(password, identity.PasswordHash) {
		return nil, s.loginFailure(email, "bad_password", ErrInvalidCredentials)
	}

	return s.openSession(ctx, identity, audit.ActionLogin)
}

// OAuthLogin resolves a provider identity to an account: the provider
// subject wins when already linked, then the account with the same
// email is linked, then a fresh account is created. At most one account
// ever holds a given external id. Idempotent for returning users.
func (s *AuthService) OAuthLogin(ctx context.Context, externalID, email, displayName, avatarURL string) (*LoginResult, error) {
	if externalID == "" {
		return nil, &ValidationError{Field: "external_id", Reason: "must not be empty"}
	}
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	// Returning user: the provider subject identifies the account even
	// when the provider-side email has changed.
	identity, err := s.identities.GetByExternalID(ctx, externalID)
	if err == nil {
		if avatarURL != "" {
			identity.AvatarURL = avatarURL
		}
		return s.openSession(ctx, identity, audit.ActionOAuthLogin)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, s.internal("oauth: lookup external id", err)
	}

	identity, err = s.identities.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		identity, err = s.createOAuthIdentity(ctx, externalID, email, displayName, avatarURL)
		if err != nil {
			return nil, err
		}

	case err != nil:
		return nil, s.internal("oauth: lookup email", err)

	default:
		// The same-subject case was handled above, so a non-empty
		// external id here belongs to a different provider subject.
		if identity.ExternalID != "" {
			return nil, ErrAlreadyLinked
		}
		identity.ExternalID = externalID
		// Preserve an existing avatar unless the provider supplied one.
		if avatarURL != "" {
			identity.AvatarURL = avatarURL
		}
	}

	return s.openSession(ctx, identity, audit.ActionOAuthLogin)
}

func (s *AuthService) createOAuthIdentity(ctx context.Context, externalID, email, displayName, avatarURL string) (*db.Identity, error) {
	if err := validateDisplayName(displayName); err != nil {
		return nil, err
	}

	count, err := s.identities.Count(ctx)
	if err != nil {
		return nil, s.internal("oauth: count identities", err)
	}
	open, err := s.gate.CanRegister(ctx)
	if err != nil {
		return nil, s.internal("oauth: read registration policy", err)
	}
	if !open {
		return nil, ErrRegistrationClosed
	}

	// A random, never-returned password keeps the account loginable by
	// password later, once the user sets their own.
	pw, err := randomPassword()
	if err != nil {
		return nil, s.internal("oauth: generate password", err)
	}
	hash, err := auth.HashPassword(pw)
	if err != nil {
		return nil, s.internal("oauth: hash password", err)
	}

	identity := &db.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		ExternalID:   externalID,
		AvatarURL:    avatarURL,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrDuplicateExternalID):
			// Lost a race against another login for the same subject.
			return nil, ErrAlreadyLinked
		}
		return nil, s.internal("oauth: create identity", err)
	}

	if count == 0 {
		if err := s.gate.OnFirstAccountCreated(ctx); err != nil {
			return nil, s.internal("oauth: close registration after bootstrap", err)
		}
	}

	return identity, nil
}

// openSession records the login and mints the token. Shared tail of
// Login and OAuthLogin.
func (s *AuthService) openSession(ctx context.Context, identity *db.Identity, action string) (*LoginResult, error) {
	identity.LastLoginAt = time.Now().UTC()
	if err := s.identities.Update(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicateExternalID) {
			return nil, ErrAlreadyLinked
		}
		return nil, s.internal("session: update identity", err)
	}

	token, err := s.tokens.Issue(identity.ID, identity.Email)
	if err != nil {
		// Includes the missing-secret case: a server problem, never a
		// credential one.
		return nil, s.internal("session: issue token", err)
	}

	s.audit.Log(audit.Event{
		Timestamp: time.Now().UTC(),
		ActorID:   identity.ID,
		Action:    action,
		Resource:  "identity:" + identity.ID,
	})

	return &LoginResult{Token: token, Identity: *publicView(identity)}, nil
}

func (s *AuthService) loginFailure(email, reason string, cause error) error {
	metrics.LoginFailuresTotal.WithLabelValues(reason).Inc()
	s.log.Info("login failed", zap.String("email", email), zap.String("reason", reason))
	s.audit.Log(audit.Event{
		Timestamp: time.Now().UTC(),
		Action:    audit.ActionLoginFailed,
		Resource:  "email:" + email,
		Metadata:  map[string]interface{}{"reason": reason},
	})
	return cause
}

// internal logs full detail server-side and returns an opaque wrapper.
func (s *AuthService) internal(op string, err error) error {
	s.log.Error(op, zap.Error(err))
	return fmt.Errorf("%w: %s", ErrInternal, op)
}

func publicView(identity *db.Identity) *PublicIdentity {
	return &PublicIdentity{
		ID:          identity.ID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
		LastLoginAt: identity.LastLoginAt,
	}
}

func randomPassword() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
