package midistore

import (
	"context"
	"io"
)

// Service defines the main interface for the midistore library
type Service interface {
	// Lifecycle operations
	Publish(ctx context.Context, req PublishRequest) (*Record, error)
	Delete(ctx context.Context, requesterID, recordID string) error
	ToggleLike(ctx context.Context, actorID, recordID string) (*LikeResult, error)

	// Read paths
	ListAll(ctx context.Context) ([]*RecordView, error)
	Search(ctx context.Context, keyword string) ([]*RecordView, error)
	SearchByID(ctx context.Context, id string) (*RecordView, error)
	GetRecord(ctx context.Context, id string) (*Record, error)

	// Payload download
	OpenBlob(ctx context.Context, key string) (io.ReadCloser, BlobInfo, error)

	// Notification operations
	Notifications(ctx context.Context, recipientID string) ([]*Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}
