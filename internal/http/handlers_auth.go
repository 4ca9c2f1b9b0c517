package http

import (
	"net/http"

	"cashbook/internal/core"
	"cashbook/internal/identity"
	applog "cashbook/internal/log"
)

type sessionResponse struct {
	Token string        `json:"token"`
	User  core.Identity `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	id, err := s.registry.Register(r.Context(), p.Get("email"), p.Get("name"), p.Get("pin"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "User registered", applog.FieldIdentity, id.Key)
	NewResponse().Status(http.StatusCreated).
		JSON(sessionResponse{Token: s.sessions.Login(id), User: id}).
		Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	id, err := s.registry.Authenticate(r.Context(), p.Get("email"), p.Get("pin"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(sessionResponse{Token: s.sessions.Login(id), User: id}).Write(w)
}

// handleLogout ends the presented session. An unknown token is not an error.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		s.sessions.Logout(token)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResetPIN replaces the PIN of a registered email and ends all of
// that user's sessions.
func (s *Server) handleResetPIN(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	email := identity.NormalizeEmail(p.Get("email"))
	if err := s.registry.ResetPIN(r.Context(), email, p.Get("pin")); err != nil {
		writeError(w, r, err)
		return
	}
	revoked := s.sessions.Revoke(email)
	applog.FromContext(r.Context()).InfoContext(r.Context(), "PIN reset",
		applog.FieldIdentity, email, "sessions_revoked", revoked)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, id core.Identity) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	updated, err := s.registry.UpdateProfile(r.Context(), id.Key, p.Get("name"), p.Get("pin"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.sessions.Refresh(updated)
	NewResponse().JSON(updated).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, id core.Identity) {
	NewResponse().JSON(id).Write(w)
}
