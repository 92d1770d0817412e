package midistore

import (
	"context"
	"io"
)

// BlobStore defines the interface for binary payload storage backends.
// Keys form a single flat keyspace; each Put and Delete commits
// independently and durably before returning. A BlobStore has no knowledge
// of record semantics.
type BlobStore interface {
	// Put stores a payload under key, silently overwriting any existing
	// payload with the same key.
	Put(ctx context.Context, key string, reader io.Reader, info BlobInfo) error

	// Get opens the payload stored under key. A missing key is reported as
	// ok == false, not as an error.
	Get(ctx context.Context, key string) (rc io.ReadCloser, info BlobInfo, ok bool, err error)

	// Stat returns payload metadata without opening the payload. A missing
	// key is reported as ok == false, not as an error.
	Stat(ctx context.Context, key string) (info BlobInfo, ok bool, err error)

	// Delete removes the payload stored under key. Deleting a missing key
	// is a no-op.
	Delete(ctx context.Context, key string) error
}

// Repository defines the interface for record and notification persistence.
// Implementations own the serialized form of both collections and apply
// duplicate-id reconciliation before records are handed out.
type Repository interface {
	// Record operations
	ListRecords(ctx context.Context) ([]*Record, error)
	GetRecord(ctx context.Context, id string) (*Record, error)
	AppendRecord(ctx context.Context, record *Record) error
	UpdateRecord(ctx context.Context, record *Record) error
	RemoveRecord(ctx context.Context, id string) error

	// Notification operations
	AppendNotification(ctx context.Context, n *Notification) error
	ListNotificationsFor(ctx context.Context, recipientID string) ([]*Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// IdentityProvider is the external identity collaborator: it answers who is
// acting right now and whether a given identity still exists (used to
// render "account removed" placeholders for orphaned records).
type IdentityProvider interface {
	Current(ctx context.Context) (*Identity, bool, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Confirmer is a confirmation port for destructive actions. Callers inject
// an implementation (interactive prompt, policy check, test stub); the
// service asks before deleting and proceeds only on approval.
type Confirmer interface {
	Confirm(ctx context.Context, action string) (bool, error)
}
