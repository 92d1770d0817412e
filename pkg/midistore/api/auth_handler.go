package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/cdbmc/midistore/pkg/midistore"
	"github.com/cdbmc/midistore/pkg/midistore/identity"
)

// AuthHandler handles account and session requests
type AuthHandler struct {
	manager *identity.Manager
	tokens  *jwtauth.JWTAuth
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(manager *identity.Manager, tokens *jwtauth.JWTAuth) *AuthHandler {
	return &AuthHandler{
		manager: manager,
		tokens:  tokens,
	}
}

// Routes returns the routes for accounts and sessions
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.tokens))
		r.Use(jwtauth.Authenticator)

		r.Delete("/account", h.DeleteAccount)
	})

	return r
}

// LoginRequest is the request body for login-or-register
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response body for a successful login
type LoginResponse struct {
	Token    string              `json:"token"`
	Identity *midistore.Identity `json:"identity"`
	Created  bool                `json:"created"`
}

// Login authenticates a user, registering the account on first use
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &midistore.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	ident, created, err := h.manager.LoginOrRegister(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	_, token, err := h.tokens.Encode(map[string]interface{}{"sub": ident.ID})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if created {
		slog.Info("account created", "username", ident.ID)
	}

	render.JSON(w, r, LoginResponse{Token: token, Identity: ident, Created: created})
}

// Logout clears the persisted session slot
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Logout(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccountRequest is the request body for account deletion
type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccount removes the authenticated user's account after
// re-verifying the password
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	username, err := subject(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &midistore.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	if err := h.manager.DeleteAccount(r.Context(), username, req.Password); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("account deleted", "username", username)
	w.WriteHeader(http.StatusNoContent)
}
