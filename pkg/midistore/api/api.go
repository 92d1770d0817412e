// Package api exposes the catalog, notification, and account operations
// over HTTP. Sessions are JWT bearer tokens (HS256) issued by the auth
// handler; the record and notification routes derive the acting identity
// from the verified token.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/cdbmc/midistore/pkg/midistore"
	"github.com/cdbmc/midistore/pkg/midistore/identity"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var ve *midistore.ValidationError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.Is(err, midistore.ErrLoginRequired),
		errors.Is(err, identity.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, midistore.ErrNotOwner),
		errors.Is(err, midistore.ErrSelfLike):
		status = http.StatusForbidden
	case errors.Is(err, midistore.ErrRecordNotFound),
		errors.Is(err, midistore.ErrBlobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, midistore.ErrRecordExists),
		errors.Is(err, midistore.ErrConfirmationDeclined):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error()})
}

// subject extracts the acting identity from the verified JWT.
func subject(r *http.Request) (string, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", midistore.ErrLoginRequired
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", midistore.ErrLoginRequired
	}
	return sub, nil
}
