package midistore

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrRecordNotFound indicates a record was not found in the index
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordExists indicates an append collided with an existing record id
	ErrRecordExists = errors.New("record already exists")

	// ErrBlobNotFound indicates a blob was not found in the blob store
	ErrBlobNotFound = errors.New("blob not found")

	// ErrLoginRequired indicates the operation needs an active identity
	ErrLoginRequired = errors.New("login required")

	// ErrNotOwner indicates the actor does not own the record
	ErrNotOwner = errors.New("not the record owner")

	// ErrSelfLike indicates an actor tried to like their own record
	ErrSelfLike = errors.New("cannot like your own record")

	// ErrConfirmationDeclined indicates the confirmation port rejected a
	// destructive action; nothing was mutated
	ErrConfirmationDeclined = errors.New("confirmation declined")
)

// ValidationError reports bad publish input: shape, size, or extension.
// Nothing is mutated when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RecordError represents an error related to record index operations
type RecordError struct {
	RecordID string
	Op       string
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record operation %s failed for record %s: %v", e.Op, e.RecordID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
