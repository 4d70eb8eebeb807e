package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/havenlist/authcore/internal/httperr"
	mw "github.com/havenlist/authcore/internal/middleware"
	"github.com/havenlist/authcore/internal/service"
)

const (
	maxBodySize     = 64 * 1024 // 64KB
	contentTypeJSON = "application/json; charset=utf-8"
)

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type oauthRequest struct {
	ExternalID  string `json:"external_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type sessionResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	service.PublicIdentity
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identity, err := s.authService.Signup(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, identity)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSession(w, result)
}

func (s *Server) handleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req oauthRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.authService.OAuthLogin(r.Context(), req.ExternalID, req.Email, req.DisplayName, req.AvatarURL)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSession(w, result)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ident, ok := mw.GetIdentity(r.Context())
	if !ok {
		httperr.Write(w, httperr.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

// Helpers

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httperr.Write(w, httperr.ErrInvalidJSON)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeSession emits a token response; never cacheable.
func writeSession(w http.ResponseWriter, result *service.LoginResult) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:          result.Token,
		TokenType:      "Bearer",
		PublicIdentity: result.Identity,
	})
}

// writeServiceError maps service failures onto the HTTP error envelope.
// Anything unexpected renders as a generic 500: no collaborator detail
// crosses this boundary.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		httperr.Write(w, httperr.ErrBadRequest.WithDetail(ve.Error()))

	case errors.Is(err, service.ErrEmailTaken):
		httperr.Write(w, httperr.ErrConflict.WithDetail("email already exists"))

	case errors.Is(err, service.ErrRegistrationClosed):
		httperr.Write(w, httperr.ErrForbidden.WithDetail("registration disabled"))

	case errors.Is(err, service.ErrInvalidCredentials):
		httperr.Write(w, httperr.ErrUnauthorized.WithDetail("invalid email or password"))

	case errors.Is(err, service.ErrWrongAuthMethod):
		httperr.Write(w, httperr.ErrUnauthorized.WithDetail("use OAuth sign-in for this account"))

	case errors.Is(err, service.ErrAlreadyLinked):
		httperr.Write(w, httperr.ErrConflict.WithDetail("account linked to another sign-in"))

	default:
		httperr.Write(w, httperr.ErrInternal)
	}
}
