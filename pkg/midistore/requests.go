package midistore

import "io"

// Request/Response DTOs

// FileUpload carries one payload into Publish. Size must be the payload's
// byte length; validation checks it against the per-kind ceiling before
// any bytes are read from Data.
type FileUpload struct {
	Kind FileKind
	Name string
	Size int64
	Data io.Reader
}

// PublishRequest contains parameters for publishing a bundle. Primary is
// the mandatory score payload; Companions are optional, at most one per
// companion kind.
type PublishRequest struct {
	OwnerID    string
	Title      string
	Primary    FileUpload
	Companions []FileUpload
}

// LikeResult reports the outcome of a like toggle.
type LikeResult struct {
	Liked   bool     `json:"liked"`
	LikedBy []string `json:"liked_by"`
}
