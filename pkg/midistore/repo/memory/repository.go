package memory

import (
	"context"
	"sync"

	"github.com/cdbmc/midistore/pkg/midistore"
)

// Repository implements midistore.Repository using in-memory storage.
// Records keep their append order; notifications keep their insertion
// order. Everything is copied on the way in and out so callers cannot
// mutate stored state.
type Repository struct {
	mu            sync.RWMutex
	records       []*midistore.Record
	recordsByID   map[string]int
	notifications []*midistore.Notification
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		recordsByID: make(map[string]int),
	}
}

// Record operations

func (r *Repository) ListRecords(ctx context.Context) ([]*midistore.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*midistore.Record, 0, len(r.records))
	for _, record := range r.records {
		result = append(result, copyRecord(record))
	}
	return result, nil
}

func (r *Repository) GetRecord(ctx context.Context, id string) (*midistore.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	at, exists := r.recordsByID[id]
	if !exists {
		return nil, midistore.ErrRecordNotFound
	}
	return copyRecord(r.records[at]), nil
}

func (r *Repository) AppendRecord(ctx context.Context, record *midistore.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.recordsByID[record.ID]; exists {
		return midistore.ErrRecordExists
	}

	r.recordsByID[record.ID] = len(r.records)
	r.records = append(r.records, copyRecord(record))
	return nil
}

func (r *Repository) UpdateRecord(ctx context.Context, record *midistore.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at, exists := r.recordsByID[record.ID]
	if !exists {
		return midistore.ErrRecordNotFound
	}

	r.records[at] = copyRecord(record)
	return nil
}

func (r *Repository) RemoveRecord(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at, exists := r.recordsByID[id]
	if !exists {
		return midistore.ErrRecordNotFound
	}

	r.records = append(r.records[:at], r.records[at+1:]...)
	delete(r.recordsByID, id)
	for i := at; i < len(r.records); i++ {
		r.recordsByID[r.records[i].ID] = i
	}
	return nil
}

// Notification operations

func (r *Repository) AppendNotification(ctx context.Context, n *midistore.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	notificationCopy := *n
	r.notifications = append(r.notifications, &notificationCopy)
	return nil
}

func (r *Repository) ListNotificationsFor(ctx context.Context, recipientID string) ([]*midistore.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*midistore.Notification
	for _, n := range r.notifications {
		if n.RecipientID == recipientID {
			notificationCopy := *n
			result = append(result, &notificationCopy)
		}
	}
	return result, nil
}

func (r *Repository) MarkNotificationRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range r.notifications {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	// Unknown ids are a no-op.
	return nil
}

func copyRecord(record *midistore.Record) *midistore.Record {
	recordCopy := *record
	recordCopy.LikedBy = append([]string{}, record.LikedBy...)
	if record.CompanionBlobIDs != nil {
		recordCopy.CompanionBlobIDs = make(map[midistore.FileKind]string, len(record.CompanionBlobIDs))
		for k, v := range record.CompanionBlobIDs {
			recordCopy.CompanionBlobIDs[k] = v
		}
	}
	return &recordCopy
}
