package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/cdbmc/midistore/pkg/midistore"
)

// NotificationHandler handles HTTP requests for the like notification log
type NotificationHandler struct {
	service midistore.Service
	tokens  *jwtauth.JWTAuth
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(service midistore.Service, tokens *jwtauth.JWTAuth) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		tokens:  tokens,
	}
}

// Routes returns the routes for notifications
func (h *NotificationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(jwtauth.Verifier(h.tokens))
	r.Use(jwtauth.Authenticator)

	r.Get("/", h.ListNotifications)
	r.Post("/{id}/read", h.MarkRead)

	return r
}

// ListNotifications returns every notification addressed to the
// authenticated user, read or not; filtering is the client's concern.
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	recipient, err := subject(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	notifications, err := h.service.Notifications(r.Context(), recipient)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if notifications == nil {
		notifications = []*midistore.Notification{}
	}

	render.JSON(w, r, notifications)
}

// MarkRead acknowledges a notification. Unknown ids succeed silently.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if _, err := subject(r); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
