package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/cdbmc/midistore/pkg/midistore"
)

const (
	tempDirName  = ".tmp"
	dataFileName = "data"
	metaFileName = "meta.json"
)

// ErrInvalidKey is returned for keys that cannot be mapped to a directory.
var ErrInvalidKey = errors.New("key contains invalid characters")

// Backend is a filesystem implementation of the midistore.BlobStore
// interface. Each payload lives in its own directory under the base dir as
// a data file plus a sidecar meta.json, so metadata queries never touch
// the payload bytes. Writes go through a temp file and a rename, making
// each Put atomic: a payload is either fully present or absent.
type Backend struct {
	mu       sync.RWMutex
	baseDir  string
	compress bool
}

// Config options for the filesystem backend
type Config struct {
	BaseDir  string // Base directory for storing payloads
	Compress bool   // Gzip payloads on disk
}

// meta is the persisted sidecar: the public BlobInfo plus storage details.
type meta struct {
	midistore.BlobInfo
	Compressed bool `json:"compressed"`
}

// New creates a new filesystem storage backend
func New(config Config) (midistore.BlobStore, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(filepath.Join(config.BaseDir, tempDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:  config.BaseDir,
		compress: config.Compress,
	}, nil
}

// Put stores a payload, overwriting any existing payload with the same key
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, info midistore.BlobInfo) error {
	dir, err := b.blobDir(key)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Join(b.baseDir, tempDirName), "put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	var size int64
	if b.compress {
		zw := gzip.NewWriter(tmp)
		size, err = io.Copy(zw, reader)
		if err == nil {
			err = zw.Close()
		}
	} else {
		size, err = io.Copy(tmp, reader)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}

	info.Key = key
	info.Size = size
	if info.MimeType == "" {
		info.MimeType = "application/octet-stream"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	metaBytes, err := json.Marshal(meta{BlobInfo: info, Compressed: b.compress})
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFileName), metaBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, dataFileName)); err != nil {
		return fmt.Errorf("failed to finalize payload: %w", err)
	}

	return nil
}

// Get opens the payload stored under key
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, midistore.BlobInfo, bool, error) {
	dir, err := b.blobDir(key)
	if err != nil {
		return nil, midistore.BlobInfo{}, false, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	m, ok, err := b.readMeta(dir)
	if err != nil || !ok {
		return nil, midistore.BlobInfo{}, false, err
	}

	file, err := os.Open(filepath.Join(dir, dataFileName))
	if os.IsNotExist(err) {
		return nil, midistore.BlobInfo{}, false, nil
	} else if err != nil {
		return nil, midistore.BlobInfo{}, false, fmt.Errorf("failed to open payload: %w", err)
	}

	if !m.Compressed {
		return file, m.BlobInfo, true, nil
	}

	zr, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, midistore.BlobInfo{}, false, fmt.Errorf("failed to open compressed payload: %w", err)
	}
	return &gzipReadCloser{zr: zr, file: file}, m.BlobInfo, true, nil
}

// Stat returns payload metadata from the sidecar without opening the payload
func (b *Backend) Stat(ctx context.Context, key string) (midistore.BlobInfo, bool, error) {
	dir, err := b.blobDir(key)
	if err != nil {
		return midistore.BlobInfo{}, false, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	m, ok, err := b.readMeta(dir)
	if err != nil || !ok {
		return midistore.BlobInfo{}, false, err
	}
	return m.BlobInfo, true, nil
}

// Delete removes the payload stored under key; missing keys are a no-op
func (b *Backend) Delete(ctx context.Context, key string) error {
	dir, err := b.blobDir(key)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete payload: %w", err)
	}
	return nil
}

func (b *Backend) blobDir(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(b.baseDir, key), nil
}

func (b *Backend) readMeta(dir string) (meta, bool, error) {
	raw, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if os.IsNotExist(err) {
		return meta{}, false, nil
	} else if err != nil {
		return meta{}, false, fmt.Errorf("failed to read metadata: %w", err)
	}

	var m meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return meta{}, false, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return m, true, nil
}

// gzipReadCloser closes both the gzip stream and the underlying file.
type gzipReadCloser struct {
	zr   *gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.zr.Read(p)
}

func (g *gzipReadCloser) Close() error {
	err := g.zr.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}
