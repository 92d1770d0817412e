package midistore

import (
	"time"
)

// RecordStatus is the domain type for record moderation states.
type RecordStatus string

// Record status constants (typed). Publish always produces
// RecordStatusApproved; the other values are reserved for a future
// moderation workflow and must round-trip through storage unchanged.
const (
	RecordStatusApproved RecordStatus = "approved"
	RecordStatusPending  RecordStatus = "pending"
	RecordStatusRejected RecordStatus = "rejected"
)

// FileKind identifies the role of a payload within a published bundle.
type FileKind string

// File kind constants (typed).
const (
	FileKindScore FileKind = "midi"
	FileKindVideo FileKind = "video"
	FileKindAudio FileKind = "audio"
)

// Record represents a published catalog entry. All fields except LikedBy
// are immutable after publish; LikedBy is mutated only by like toggling.
type Record struct {
	ID               string              `json:"id"`
	Title            string              `json:"title"`
	OwnerID          string              `json:"owner_id"`
	PrimaryBlobID    string              `json:"primary_blob_id"`
	CompanionBlobIDs map[FileKind]string `json:"companion_blob_ids,omitempty"`
	LikedBy          []string            `json:"liked_by"`
	CreatedAt        time.Time           `json:"created_at"`
	Status           RecordStatus        `json:"status"`
}

// LikedByUser reports whether userID is a member of the LikedBy set.
func (r *Record) LikedByUser(userID string) bool {
	for _, u := range r.LikedBy {
		if u == userID {
			return true
		}
	}
	return false
}

// BlobIDs returns every blob id the record references, primary first.
func (r *Record) BlobIDs() []string {
	ids := []string{r.PrimaryBlobID}
	for _, kind := range []FileKind{FileKindVideo, FileKindAudio} {
		if id, ok := r.CompanionBlobIDs[kind]; ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Notification records a single like event addressed to a record's owner.
// SubjectTitle is a denormalized copy of the record title taken at like
// time so the notification survives deletion of the record.
type Notification struct {
	ID           string    `json:"id"`
	RecipientID  string    `json:"recipient_id"`
	ActorID      string    `json:"actor_id"`
	SubjectTitle string    `json:"subject_title"`
	CreatedAt    time.Time `json:"created_at"`
	Read         bool      `json:"read"`
}

// Identity is the acting user's handle as supplied by the identity
// collaborator. ID doubles as the username.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BlobInfo describes a stored payload: its derived key, size, and the
// original filename/MIME hint needed to reconstruct a download filename.
type BlobInfo struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// RecordView is a record composed with its resolved payload metadata for
// presentation. Records whose primary payload cannot be resolved are never
// returned as views; companions that cannot be resolved are dropped.
type RecordView struct {
	Record       *Record               `json:"record"`
	Primary      BlobInfo              `json:"primary"`
	Companions   map[FileKind]BlobInfo `json:"companions,omitempty"`
	OwnerRemoved bool                  `json:"owner_removed"`
}
