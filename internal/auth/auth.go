package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Issuer and Audience are fixed for every token this service mints. A
// token whose claims carry anything else is rejected on verification,
// regardless of signature validity.
const (
	Issuer   = "authcore"
	Audience = "authcore-clients"
)

var (
	ErrNoSigningSecret = errors.New("token signing secret is not configured")
	ErrTokenExpired    = errors.New("token has expired")
	ErrTokenMalformed  = errors.New("token is malformed")
)

// Password Hashing (Bcrypt)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash reports whether password matches hash. A malformed
// hash counts as a mismatch, never an error.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Session Tokens (JWT, HS256)

type TokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret   string
	tokenTTL time.Duration
}

func NewTokenManager(secret string, tokenTTL time.Duration) *TokenManager {
	return &TokenManager{secret: secret, tokenTTL: tokenTTL}
}

// Issue mints a signed session token for the given subject. Expiry is
// always issued-at plus the fixed TTL.
func (m *TokenManager) Issue(subjectID, email string) (string, error) {
	if m.secret == "" {
		return "", ErrNoSigningSecret
	}

	now := time.Now()
	claims := TokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secret))
}

// Verify validates signature, issuer, audience and expiry, and requires
// the subject id and email claims to be present. Expiry is the only
// failure reported distinctly; every other problem is ErrTokenMalformed.
func (m *TokenManager) Verify(tokenStr string) (*TokenClaims, error) {
	if m.secret == "" {
		return nil, ErrNoSigningSecret
	}

	token, err := jwt.ParseWithClaims(tokenStr, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.secret), nil
	}, jwt.WithIssuer(Issuer), jwt.WithAudience(Audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
