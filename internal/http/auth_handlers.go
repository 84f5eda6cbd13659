package http

import (
	"net/http"
	"time"

	"github.com/kjstillabower/plants-doctor/internal/models"
	"github.com/kjstillabower/plants-doctor/internal/session"
)

// Emptiness is checked by the auth service so each flow keeps its own message.
type signUpRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password" validate:"max=256"`
}

type verifyRequest struct {
	PendingID string `json:"pendingId" validate:"max=64"`
	Code      string `json:"code" validate:"max=16"`
}

type googleRequest struct {
	Credential string `json:"credential" validate:"max=8192"`
}

type pendingResponse struct {
	PendingID string      `json:"pendingId"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type sessionResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func pendingBody(p session.Pending) pendingResponse {
	return pendingResponse{PendingID: p.ID, User: p.User, ExpiresAt: p.ExpiresAt}
}

func sessionBody(s session.Session) sessionResponse {
	return sessionResponse{Token: s.Token, User: s.User, ExpiresAt: s.ExpiresAt}
}

// SignUp handles POST /auth/signup. The response carries the pending login to verify.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	p, err := h.svc.Auth.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, pendingBody(p))
}

// SignIn handles POST /auth/login.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	p, err := h.svc.Auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, pendingBody(p))
}

// Verify handles POST /auth/verify and returns the session token on success.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	sess, err := h.svc.Auth.Verify(r.Context(), req.PendingID, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionBody(sess))
}

// GoogleSignIn handles POST /auth/google with the ID token from the identity provider.
func (h *Handler) GoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	sess, err := h.svc.Auth.GoogleSignIn(r.Context(), req.Credential)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionBody(sess))
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	if err := h.svc.Auth.Logout(r.Context(), sess.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	writeJSON(w, http.StatusOK, sess.User)
}
