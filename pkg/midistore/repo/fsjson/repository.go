// Package fsjson persists the record index and the notification log as two
// JSON slot files. Every mutation rewrites its whole slot, so the last
// writer wins at the persistence layer; writes go through a temp file and
// a rename so a slot is never observed half-written.
package fsjson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cdbmc/midistore/pkg/midistore"
)

const (
	recordsSlot       = "records.json"
	notificationsSlot = "notifications.json"
)

// Repository implements midistore.Repository on top of JSON slot files.
type Repository struct {
	mu            sync.RWMutex
	dir           string
	records       []*midistore.Record
	notifications []*midistore.Notification
}

// New opens (or creates) the repository rooted at dir. Records read from
// disk pass through duplicate-id reconciliation: the earliest-created copy
// of each id survives. The reconciled list is what every subsequent
// operation sees and what the next persist writes back.
func New(dir string) (*Repository, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repository directory: %w", err)
	}

	r := &Repository{dir: dir}

	if err := readSlot(filepath.Join(dir, recordsSlot), &r.records); err != nil {
		return nil, fmt.Errorf("failed to load records slot: %w", err)
	}
	r.records = midistore.DedupRecords(r.records)

	if err := readSlot(filepath.Join(dir, notificationsSlot), &r.notifications); err != nil {
		return nil, fmt.Errorf("failed to load notifications slot: %w", err)
	}

	return r, nil
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

	for _, record := range r.records {
		if record.ID == id {
			return copyRecord(record), nil
		}
	}
	return nil, midistore.ErrRecordNotFound
}

func (r *Repository) AppendRecord(ctx context.Context, record *midistore.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.ID == record.ID {
			return midistore.ErrRecordExists
		}
	}

	r.records = append(r.records, copyRecord(record))
	return r.persistRecords()
}

func (r *Repository) UpdateRecord(ctx context.Context, record *midistore.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.records {
		if existing.ID == record.ID {
			r.records[i] = copyRecord(record)
			return r.persistRecords()
		}
	}
	return midistore.ErrRecordNotFound
}

func (r *Repository) RemoveRecord(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.records {
		if existing.ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return r.persistRecords()
		}
	}
	return midistore.ErrRecordNotFound
}

// Notification operations

func (r *Repository) AppendNotification(ctx context.Context, n *midistore.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	notificationCopy := *n
	r.notifications = append(r.notifications, &notificationCopy)
	return r.persistNotifications()
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
			return r.persistNotifications()
		}
	}
	// Unknown ids are a no-op.
	return nil
}

// Persistence helpers

func (r *Repository) persistRecords() error {
	return writeSlot(filepath.Join(r.dir, recordsSlot), r.records)
}

func (r *Repository) persistNotifications() error {
	return writeSlot(filepath.Join(r.dir, notificationsSlot), r.notifications)
}

func readSlot(path string, out interface{}) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func writeSlot(path string, value interface{}) error {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode slot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".slot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp slot: %w", err)
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(raw)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write slot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize slot: %w", err)
	}
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
