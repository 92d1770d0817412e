package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdbmc/midistore/pkg/midistore"
	"github.com/cdbmc/midistore/pkg/midistore/api"
	"github.com/cdbmc/midistore/pkg/midistore/identity"
	"github.com/cdbmc/midistore/pkg/midistore/repo/memory"
	memorystorage "github.com/cdbmc/midistore/pkg/midistore/storage/memory"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()

	accounts, err := identity.NewManager("")
	require.NoError(t, err)

	svc, err := midistore.New(
		midistore.WithRepository(memory.New()),
		midistore.WithBlobStore("memory", memorystorage.New()),
		midistore.WithIdentityProvider(accounts),
	)
	require.NoError(t, err)

	tokens := jwtauth.New("HS256", []byte("test-secret"), nil)

	r := chi.NewRouter()
	r.Mount("/auth", api.NewAuthHandler(accounts, tokens).Routes())
	r.Mount("/records", api.NewCatalogHandler(svc, tokens).Routes())
	r.Mount("/notifications", api.NewNotificationHandler(svc, tokens).Routes())

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func login(t *testing.T, server *httptest.Server, username, password string) api.LoginResponse {
	t.Helper()

	body, err := json.Marshal(api.LoginRequest{Username: username, Password: password})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp api.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
	require.NotEmpty(t, loginResp.Token)
	return loginResp
}

func doRequest(t *testing.T, method, url, token string, contentType string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func publishForm(t *testing.T, title string, files map[string]string) (string, io.Reader) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", title))
	for field, filename := range files {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("payload for " + filename))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), &buf
}

func publish(t *testing.T, server *httptest.Server, token, title string, files map[string]string) midistore.Record {
	t.Helper()

	contentType, body := publishForm(t, title, files)
	resp := doRequest(t, http.MethodPost, server.URL+"/records", token, contentType, body)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var record midistore.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&record))
	return record
}

func TestLogin(t *testing.T) {
	server := setupServer(t)

	// First login registers.
	created := login(t, server, "alice", "s3cret")
	assert.True(t, created.Created)
	assert.Equal(t, "alice", created.Identity.ID)

	// Second login authenticates.
	again := login(t, server, "alice", "s3cret")
	assert.False(t, again.Created)

	// Wrong password is rejected.
	body, _ := json.Marshal(api.LoginRequest{Username: "alice", Password: "wrong"})
	resp, err := http.Post(server.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPublishRequiresAuth(t *testing.T) {
	server := setupServer(t)

	contentType, body := publishForm(t, "Etude", map[string]string{"midi": "etude.mid"})
	resp := doRequest(t, http.MethodPost, server.URL+"/records", "", contentType, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPublishListAndDownload(t *testing.T) {
	server := setupServer(t)
	session := login(t, server, "alice", "s3cret")

	record := publish(t, server, session.Token, "Etude", map[string]string{
		"midi":  "upload.mid",
		"audio": "render.mp3",
	})
	assert.Equal(t, "alice", record.OwnerID)

	// Listing is public.
	resp := doRequest(t, http.MethodGet, server.URL+"/records", "", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var views []*midistore.RecordView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 1)
	assert.Equal(t, "Etude", views[0].Record.Title)
	assert.False(t, views[0].OwnerRemoved)
	assert.Contains(t, views[0].Companions, midistore.FileKindAudio)

	// Keyword filter.
	resp = doRequest(t, http.MethodGet, server.URL+"/records?q=nocturne", "", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	views = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	assert.Empty(t, views)

	// Exact lookup.
	resp = doRequest(t, http.MethodGet, server.URL+"/records/"+record.ID, "", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Download rebuilds the filename from the record title.
	resp = doRequest(t, http.MethodGet, server.URL+"/records/"+record.ID+"/download/midi", "", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload for upload.mid", string(data))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="Etude.mid"`)

	// Absent companion kind.
	resp = doRequest(t, http.MethodGet, server.URL+"/records/"+record.ID+"/download/video", "", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublishValidationStatus(t *testing.T) {
	server := setupServer(t)
	session := login(t, server, "alice", "s3cret")

	// Wrong extension on the required payload.
	contentType, body := publishForm(t, "Bad", map[string]string{"midi": "notes.txt"})
	resp := doRequest(t, http.MethodPost, server.URL+"/records", session.Token, contentType, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Missing required payload.
	contentType, body = publishForm(t, "Empty", nil)
	resp = doRequest(t, http.MethodPost, server.URL+"/records", session.Token, contentType, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteRecord(t *testing.T) {
	server := setupServer(t)
	owner := login(t, server, "alice", "s3cret")
	other := login(t, server, "bob", "hunter2")

	record := publish(t, server, owner.Token, "Doomed", map[string]string{"midi": "d.mid"})

	// Someone else cannot delete it.
	resp := doRequest(t, http.MethodDelete, server.URL+"/records/"+record.ID, other.Token, "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The owner can.
	resp = doRequest(t, http.MethodDelete, server.URL+"/records/"+record.ID, owner.Token, "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, server.URL+"/records/"+record.ID, "", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLikeAndNotifications(t *testing.T) {
	server := setupServer(t)
	owner := login(t, server, "alice", "s3cret")
	fan := login(t, server, "bob", "hunter2")

	record := publish(t, server, owner.Token, "Likable", map[string]string{"midi": "l.mid"})

	// Owners cannot like their own records.
	resp := doRequest(t, http.MethodPost, server.URL+"/records/"+record.ID+"/like", owner.Token, "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// A fan can.
	resp = doRequest(t, http.MethodPost, server.URL+"/records/"+record.ID+"/like", fan.Token, "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result midistore.LikeResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Liked)
	assert.Equal(t, []string{"bob"}, result.LikedBy)

	// The owner sees the notification.
	resp = doRequest(t, http.MethodGet, server.URL+"/notifications", owner.Token, "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var notes []*midistore.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "bob", notes[0].ActorID)
	assert.Equal(t, "Likable", notes[0].SubjectTitle)

	// And can acknowledge it.
	resp = doRequest(t, http.MethodPost, server.URL+"/notifications/"+notes[0].ID+"/read", owner.Token, "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The fan's own feed is empty, not null.
	resp = doRequest(t, http.MethodGet, server.URL+"/notifications", fan.Token, "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(raw)))
}

func TestNotificationsRequireAuth(t *testing.T) {
	server := setupServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/notifications", "", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeleteAccount(t *testing.T) {
	server := setupServer(t)
	session := login(t, server, "alice", "s3cret")

	publish(t, server, session.Token, "Orphaned soon", map[string]string{"midi": "o.mid"})

	// Wrong password is rejected.
	body, _ := json.Marshal(api.DeleteAccountRequest{Password: "wrong"})
	resp := doRequest(t, http.MethodDelete, server.URL+"/auth/account", session.Token, "application/json", bytes.NewReader(body))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body, _ = json.Marshal(api.DeleteAccountRequest{Password: "s3cret"})
	resp = doRequest(t, http.MethodDelete, server.URL+"/auth/account", session.Token, "application/json", bytes.NewReader(body))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The record stays listed but is flagged as ownerless.
	resp = doRequest(t, http.MethodGet, server.URL+"/records", "", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var views []*midistore.RecordView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 1)
	assert.True(t, views[0].OwnerRemoved)
}
