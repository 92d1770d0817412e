package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/cdbmc/midistore/pkg/midistore"
)

// Backend is an in-memory implementation of the midistore.BlobStore
// interface, intended for tests and single-process use.
type Backend struct {
	mu    sync.RWMutex
	blobs map[string]entry
}

type entry struct {
	data []byte
	info midistore.BlobInfo
}

// New creates a new in-memory storage backend
func New() midistore.BlobStore {
	return &Backend{
		blobs: make(map[string]entry),
	}
}

// Put stores a payload, overwriting any existing payload with the same key
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, info midistore.BlobInfo) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	info.Key = key
	info.Size = int64(len(data))
	if info.MimeType == "" {
		info.MimeType = "application/octet-stream"
	}
	b.blobs[key] = entry{data: data, info: info}
	return nil
}

// Get opens the payload stored under key
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, midistore.BlobInfo, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.blobs[key]
	if !ok {
		return nil, midistore.BlobInfo{}, false, nil
	}

	return io.NopCloser(bytes.NewReader(e.data)), e.info, true, nil
}

// Stat returns payload metadata without opening the payload
func (b *Backend) Stat(ctx context.Context, key string) (midistore.BlobInfo, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.blobs[key]
	if !ok {
		return midistore.BlobInfo{}, false, nil
	}
	return e.info, true, nil
}

// Delete removes the payload stored under key; missing keys are a no-op
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.blobs, key)
	return nil
}
