package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/havenlist/authcore/internal/audit"
	"github.com/havenlist/authcore/internal/db"
	"github.com/havenlist/authcore/internal/httperr"
	mw "github.com/havenlist/authcore/internal/middleware"
	"github.com/havenlist/authcore/internal/repository"
)

// Registration policy read/write. There is no role system: the first
// account is the implicit administrator, and with registration disabled
// after bootstrap the session-holder set stays that account until the
// policy is reopened here.

type registrationResponse struct {
	RegistrationEnabled bool `json:"registration_enabled"`
}

type registrationRequest struct {
	RegistrationEnabled bool `json:"registration_enabled"`
}

func (s *Server) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	policy, err := s.policyRepo.GetPolicy(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		// No record yet means registration has never been closed.
		writeJSON(w, http.StatusOK, registrationResponse{RegistrationEnabled: true})
		return
	}
	if err != nil {
		httperr.Write(w, httperr.ErrInternal)
		return
	}
	writeJSON(w, http.StatusOK, registrationResponse{RegistrationEnabled: policy.Enabled})
}

func (s *Server) handlePutRegistration(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := s.policyRepo.SetPolicy(r.Context(), &db.RegistrationPolicy{
		Enabled:   req.RegistrationEnabled,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		httperr.Write(w, httperr.ErrInternal)
		return
	}

	actorID := ""
	if ident, ok := mw.GetIdentity(r.Context()); ok {
		actorID = ident.ID
	}
	s.auditLogger.Log(audit.Event{
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
		Action:    audit.ActionRegistrationToggle,
		Resource:  "registration_policy",
		Metadata:  map[string]interface{}{"enabled": req.RegistrationEnabled},
	})

	writeJSON(w, http.StatusOK, registrationResponse{RegistrationEnabled: req.RegistrationEnabled})
}
