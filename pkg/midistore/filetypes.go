package midistore

import (
	"fmt"
	"strings"
)

// FileRule is the validation rule for one file kind: an extension
// allow-list and an inclusive size ceiling.
type FileRule struct {
	Extensions []string
	MaxBytes   int64
}

// Per-kind rules. Extension checks are case-insensitive suffix matches on
// the filename, not content sniffing. The ceiling is inclusive: a payload
// exactly at the limit passes.
var fileRules = map[FileKind]FileRule{
	FileKindScore: {Extensions: []string{".mid", ".zip", ".rar"}, MaxBytes: 150 << 20},
	FileKindVideo: {Extensions: []string{".mp4", ".mov", ".webm"}, MaxBytes: 150 << 20},
	FileKindAudio: {Extensions: []string{".mp3", ".wav", ".flac"}, MaxBytes: 50 << 20},
}

// RuleFor returns the validation rule for kind.
func RuleFor(kind FileKind) (FileRule, bool) {
	rule, ok := fileRules[kind]
	return rule, ok
}

// ValidateFile checks an upload's kind, extension, and size against the
// per-kind rule. The field name appears in the returned ValidationError so
// callers can point at the offending input.
func ValidateFile(field string, upload FileUpload) error {
	rule, ok := fileRules[upload.Kind]
	if !ok {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("unknown file kind %q", upload.Kind)}
	}

	if !HasAllowedExtension(upload.Name, rule.Extensions) {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("extension must be one of %s", strings.Join(rule.Extensions, ", ")),
		}
	}

	if upload.Size > rule.MaxBytes {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("file exceeds %d MB limit", rule.MaxBytes>>20),
		}
	}

	return nil
}

// HasAllowedExtension reports whether name ends with one of the allowed
// extensions, ignoring case.
func HasAllowedExtension(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// DownloadFilename reconstructs the filename offered for a payload
// download: the record title plus the stored file's extension. If the
// title already carries a recognized extension for the kind it is used
// as-is.
func DownloadFilename(title, storedName string, kind FileKind) string {
	rule := fileRules[kind]
	if HasAllowedExtension(title, rule.Extensions) {
		return title
	}

	lower := strings.ToLower(storedName)
	for _, ext := range rule.Extensions {
		if strings.HasSuffix(lower, ext) {
			return title + ext
		}
	}
	if len(rule.Extensions) > 0 {
		return title + rule.Extensions[0]
	}
	return title
}
