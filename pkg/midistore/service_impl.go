package midistore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// service implements the Service interface
type service struct {
	repository Repository
	blobs      BlobStore
	blobsName  string
	identities IdentityProvider
	confirmer  Confirmer
	logger     *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend. The name appears in
// storage errors to identify the failing backend.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.blobsName = name
		s.blobs = store
	}
}

// WithIdentityProvider sets the optional identity collaborator, used to
// flag records whose owner no longer exists.
func WithIdentityProvider(provider IdentityProvider) Option {
	return func(s *service) {
		s.identities = provider
	}
}

// WithConfirmer sets the confirmation port consulted before destructive
// actions. Without one, destructive actions proceed unprompted.
func WithConfirmer(confirmer Confirmer) Option {
	return func(s *service) {
		s.confirmer = confirmer
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.blobsName == "" {
		s.blobsName = "blobs"
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s, nil
}

// Lifecycle operations

func (s *service) Publish(ctx context.Context, req PublishRequest) (*Record, error) {
	if req.OwnerID == "" {
		return nil, ErrLoginRequired
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "title is required"}
	}
	if req.Primary.Name == "" || req.Primary.Data == nil {
		return nil, &ValidationError{Field: "primary", Reason: "primary payload is required"}
	}

	primary := req.Primary
	if primary.Kind == "" {
		primary.Kind = FileKindScore
	}
	if primary.Kind != FileKindScore {
		return nil, &ValidationError{Field: "primary", Reason: fmt.Sprintf("primary payload must be of kind %q", FileKindScore)}
	}
	if err := ValidateFile("primary", primary); err != nil {
		return nil, err
	}

	seen := make(map[FileKind]bool, len(req.Companions))
	for _, companion := range req.Companions {
		field := string(companion.Kind)
		if field == "" {
			field = "companion"
		}
		if companion.Kind == FileKindScore {
			return nil, &ValidationError{Field: field, Reason: "companions cannot carry the primary kind"}
		}
		if seen[companion.Kind] {
			return nil, &ValidationError{Field: field, Reason: "at most one companion per kind"}
		}
		seen[companion.Kind] = true
		if err := ValidateFile(field, companion); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	id, err := s.uniqueRecordID(ctx, now)
	if err != nil {
		return nil, err
	}

	record := &Record{
		ID:            id,
		Title:         req.Title,
		OwnerID:       req.OwnerID,
		PrimaryBlobID: blobKey(id, FileKindScore),
		LikedBy:       []string{},
		CreatedAt:     now,
		Status:        RecordStatusApproved,
	}

	if err := s.putBlob(ctx, record.PrimaryBlobID, primary); err != nil {
		return nil, err
	}
	for _, companion := range req.Companions {
		key := blobKey(id, companion.Kind)
		if err := s.putBlob(ctx, key, companion); err != nil {
			return nil, err
		}
		if record.CompanionBlobIDs == nil {
			record.CompanionBlobIDs = make(map[FileKind]string)
		}
		record.CompanionBlobIDs[companion.Kind] = key
	}

	// The blobs are committed at this point. If the append fails they stay
	// orphaned; the failure is surfaced once and never retried.
	if err := s.repository.AppendRecord(ctx, record); err != nil {
		return nil, &RecordError{RecordID: id, Op: "publish", Err: err}
	}

	return record, nil
}

func (s *service) Delete(ctx context.Context, requesterID, recordID string) error {
	record, err := s.repository.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if record.OwnerID != requesterID {
		return ErrNotOwner
	}

	if s.confirmer != nil {
		ok, err := s.confirmer.Confirm(ctx, fmt.Sprintf("delete record %s (%s)", record.ID, record.Title))
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return ErrConfirmationDeclined
		}
	}

	// Blobs go first. A failure here aborts before the index is touched,
	// leaving the record listed with payloads partially gone; the read
	// paths skip such records.
	for _, key := range record.BlobIDs() {
		if err := s.blobs.Delete(ctx, key); err != nil {
			return &StorageError{Backend: s.blobsName, Key: key, Op: "delete", Err: err}
		}
	}

	if err := s.repository.RemoveRecord(ctx, recordID); err != nil {
		return &RecordError{RecordID: recordID, Op: "delete", Err: err}
	}

	return nil
}

func (s *service) ToggleLike(ctx context.Context, actorID, recordID string) (*LikeResult, error) {
	if actorID == "" {
		return nil, ErrLoginRequired
	}

	record, err := s.repository.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.OwnerID == actorID {
		return nil, ErrSelfLike
	}

	liked := false
	if record.LikedByUser(actorID) {
		kept := record.LikedBy[:0]
		for _, u := range record.LikedBy {
			if u != actorID {
				kept = append(kept, u)
			}
		}
		record.LikedBy = kept
	} else {
		record.LikedBy = append(record.LikedBy, actorID)
		liked = true
	}

	if err := s.repository.UpdateRecord(ctx, record); err != nil {
		return nil, &RecordError{RecordID: recordID, Op: "toggle_like", Err: err}
	}

	if liked {
		now := time.Now().UTC()
		notification := &Notification{
			ID:           newNotificationID(now),
			RecipientID:  record.OwnerID,
			ActorID:      actorID,
			SubjectTitle: record.Title,
			CreatedAt:    now,
		}
		if err := s.repository.AppendNotification(ctx, notification); err != nil {
			// The like itself is already persisted; losing the
			// notification is not worth failing the toggle.
			s.logger.Error("failed to append like notification",
				"record_id", recordID, "recipient", record.OwnerID, "error", err)
		}
	}

	result := &LikeResult{Liked: liked, LikedBy: append([]string{}, record.LikedBy...)}
	return result, nil
}

// Read paths

func (s *service) ListAll(ctx context.Context) ([]*RecordView, error) {
	return s.listViews(ctx, func(*Record) bool { return true })
}

func (s *service) Search(ctx context.Context, keyword string) ([]*RecordView, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return s.ListAll(ctx)
	}

	needle := strings.ToLower(keyword)
	return s.listViews(ctx, func(r *Record) bool {
		return strings.Contains(strings.ToLower(r.Title), needle)
	})
}

func (s *service) SearchByID(ctx context.Context, id string) (*RecordView, error) {
	record, err := s.repository.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != RecordStatusApproved {
		return nil, ErrRecordNotFound
	}

	view, ok, err := s.resolveView(ctx, record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRecordNotFound
	}
	return view, nil
}

func (s *service) GetRecord(ctx context.Context, id string) (*Record, error) {
	return s.repository.GetRecord(ctx, id)
}

func (s *service) OpenBlob(ctx context.Context, key string) (io.ReadCloser, BlobInfo, error) {
	rc, info, ok, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, BlobInfo{}, &StorageError{Backend: s.blobsName, Key: key, Op: "get", Err: err}
	}
	if !ok {
		return nil, BlobInfo{}, ErrBlobNotFound
	}
	return rc, info, nil
}

// Notification operations

func (s *service) Notifications(ctx context.Context, recipientID string) ([]*Notification, error) {
	return s.repository.ListNotificationsFor(ctx, recipientID)
}

func (s *service) MarkNotificationRead(ctx context.Context, id string) error {
	return s.repository.MarkNotificationRead(ctx, id)
}

// Helper methods

// uniqueRecordID generates ids until one does not collide with the index.
func (s *service) uniqueRecordID(ctx context.Context, now time.Time) (string, error) {
	for {
		id := newRecordID(now)
		_, err := s.repository.GetRecord(ctx, id)
		if errors.Is(err, ErrRecordNotFound) {
			return id, nil
		}
		if err != nil {
			return "", &RecordError{RecordID: id, Op: "generate_id", Err: err}
		}
	}
}

func (s *service) putBlob(ctx context.Context, key string, upload FileUpload) error {
	info := BlobInfo{
		Key:      key,
		Size:     upload.Size,
		FileName: upload.Name,
		MimeType: mimeTypeFor(upload.Name),
	}
	if err := s.blobs.Put(ctx, key, upload.Data, info); err != nil {
		return &StorageError{Backend: s.blobsName, Key: key, Op: "put", Err: err}
	}
	return nil
}

// listViews loads the index, keeps approved records matching the filter,
// sorts newest first, and resolves each against the blob store. Records
// whose primary payload is gone are silently skipped.
func (s *service) listViews(ctx context.Context, match func(*Record) bool) ([]*RecordView, error) {
	records, err := s.repository.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]*Record, 0, len(records))
	for _, record := range records {
		if record.Status != RecordStatusApproved {
			continue
		}
		if match(record) {
			visible = append(visible, record)
		}
	}

	// Display order is always newest first, computed at read time.
	sort.Slice(visible, func(i, j int) bool {
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})

	views := make([]*RecordView, 0, len(visible))
	for _, record := range visible {
		view, ok, err := s.resolveView(ctx, record)
		if err != nil {
			return nil, err
		}
		if ok {
			views = append(views, view)
		}
	}

	return views, nil
}

// resolveView composes a record with its payload metadata. ok is false
// when the required primary payload is absent.
func (s *service) resolveView(ctx context.Context, record *Record) (*RecordView, bool, error) {
	primary, ok, err := s.blobs.Stat(ctx, record.PrimaryBlobID)
	if err != nil {
		return nil, false, &StorageError{Backend: s.blobsName, Key: record.PrimaryBlobID, Op: "stat", Err: err}
	}
	if !ok {
		return nil, false, nil
	}

	view := &RecordView{Record: record, Primary: primary}

	for kind, key := range record.CompanionBlobIDs {
		info, ok, err := s.blobs.Stat(ctx, key)
		if err != nil {
			return nil, false, &StorageError{Backend: s.blobsName, Key: key, Op: "stat", Err: err}
		}
		if !ok {
			continue
		}
		if view.Companions == nil {
			view.Companions = make(map[FileKind]BlobInfo)
		}
		view.Companions[kind] = info
	}

	if s.identities != nil {
		exists, err := s.identities.Exists(ctx, record.OwnerID)
		if err != nil {
			return nil, false, fmt.Errorf("identity lookup for %s: %w", record.OwnerID, err)
		}
		view.OwnerRemoved = !exists
	}

	return view, true, nil
}

func mimeTypeFor(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
