package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/cdbmc/midistore/pkg/midistore"
)

// Publish accepts up to this much multipart form data in memory before
// spilling to disk.
const multipartMemoryLimit = 32 << 20

// CatalogHandler handles HTTP requests for the published catalog
type CatalogHandler struct {
	service midistore.Service
	tokens  *jwtauth.JWTAuth
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(service midistore.Service, tokens *jwtauth.JWTAuth) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		tokens:  tokens,
	}
}

// Routes returns the routes for the catalog
func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListRecords)
	r.Get("/{id}", h.GetRecord)
	r.Get("/{id}/download/{kind}", h.DownloadPayload)

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.tokens))
		r.Use(jwtauth.Authenticator)

		r.Post("/", h.Publish)
		r.Delete("/{id}", h.DeleteRecord)
		r.Post("/{id}/like", h.ToggleLike)
	})

	return r
}

// ListRecords lists the visible catalog, optionally filtered by ?q=keyword
func (h *CatalogHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")

	var (
		views []*midistore.RecordView
		err   error
	)
	if keyword != "" {
		views, err = h.service.Search(r.Context(), keyword)
	} else {
		views, err = h.service.ListAll(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, views)
}

// GetRecord looks up a single visible record by exact id
func (h *CatalogHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.SearchByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, view)
}

// Publish creates a new record from a multipart form: a "title" field, a
// required "midi" file, and optional "video" and "audio" files.
func (h *CatalogHandler) Publish(w http.ResponseWriter, r *http.Request) {
	owner, err := subject(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeError(w, r, &midistore.ValidationError{Field: "form", Reason: "invalid multipart form"})
		return
	}

	req := midistore.PublishRequest{
		OwnerID: owner,
		Title:   r.FormValue("title"),
	}

	primary, cleanupPrimary, ok := formUpload(r, "midi", midistore.FileKindScore)
	if ok {
		defer cleanupPrimary()
		req.Primary = primary
	}
	for _, kind := range []midistore.FileKind{midistore.FileKindVideo, midistore.FileKindAudio} {
		if upload, cleanup, ok := formUpload(r, string(kind), kind); ok {
			defer cleanup()
			req.Companions = append(req.Companions, upload)
		}
	}

	record, err := h.service.Publish(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("record published", "record_id", record.ID, "owner", owner)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, record)
}

// DeleteRecord deletes a record owned by the authenticated user
func (h *CatalogHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	requester, err := subject(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), requester, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleLike flips the authenticated user's like on a record
func (h *CatalogHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	actor, err := subject(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.ToggleLike(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

// DownloadPayload streams one payload of a record. The download filename
// is rebuilt from the record title and the stored file's extension.
func (h *CatalogHandler) DownloadPayload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	kind := midistore.FileKind(chi.URLParam(r, "kind"))

	record, err := h.service.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if record.Status != midistore.RecordStatusApproved {
		writeError(w, r, midistore.ErrRecordNotFound)
		return
	}

	var key string
	switch kind {
	case midistore.FileKindScore:
		key = record.PrimaryBlobID
	case midistore.FileKindVideo, midistore.FileKindAudio:
		key = record.CompanionBlobIDs[kind]
	}
	if key == "" {
		writeError(w, r, midistore.ErrBlobNotFound)
		return
	}

	rc, info, err := h.service.OpenBlob(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	filename := midistore.DownloadFilename(record.Title, info.FileName, kind)
	w.Header().Set("Content-Type", info.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("payload download aborted", "key", key, "error", err)
	}
}

// formUpload pulls one named file out of the parsed multipart form.
func formUpload(r *http.Request, field string, kind midistore.FileKind) (midistore.FileUpload, func(), bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return midistore.FileUpload{}, nil, false
	}

	upload := midistore.FileUpload{
		Kind: kind,
		Name: header.Filename,
		Size: header.Size,
		Data: file,
	}
	cleanup := func() { _ = file.Close() }
	return upload, cleanup, true
}
