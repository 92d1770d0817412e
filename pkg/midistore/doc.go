// Package midistore provides a local content store for published MIDI
// bundles: a required score payload plus optional companion video/audio
// tracks, tied to a title and an owning identity.
//
// It exposes a single Service interface that orchestrates publishing,
// owner-initiated deletion, like toggling with owner notifications, and the
// catalog read paths (list, keyword search, lookup by id). Record metadata
// and binary payloads live in two independent stores: a Repository holding
// the ordered record list and the notification log, and a BlobStore holding
// opaque payload bytes keyed by derived blob ids. Implementations of both
// (memory, filesystem JSON slots, S3-compatible blob storage) are provided
// under subpackages.
//
// The two stores commit independently; publish and delete are two-phase
// (blobs first, then metadata). A metadata failure after successful blob
// writes leaves orphaned blobs, and a partial delete can leave a record
// whose payloads are gone. Both are accepted steady states: the read paths
// skip records whose required payload cannot be resolved instead of failing
// the whole listing.
package midistore
