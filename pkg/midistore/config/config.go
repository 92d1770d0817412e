// Package config builds a runnable midistore stack from environment
// configuration: repository (memory or JSON slots on disk), blob storage
// backend (memory, filesystem, or S3-compatible), and identity manager.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/cdbmc/midistore/pkg/midistore"
	"github.com/cdbmc/midistore/pkg/midistore/identity"
	fsjsonrepo "github.com/cdbmc/midistore/pkg/midistore/repo/fsjson"
	memoryrepo "github.com/cdbmc/midistore/pkg/midistore/repo/memory"
	fsstorage "github.com/cdbmc/midistore/pkg/midistore/storage/fs"
	memorystorage "github.com/cdbmc/midistore/pkg/midistore/storage/memory"
	s3storage "github.com/cdbmc/midistore/pkg/midistore/storage/s3"
)

// ServerConfig represents server configuration for the midistore service
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	// DataDir selects where the record index, notification log, and
	// account slots live. Empty means everything stays in memory.
	DataDir string `env:"DATA_DIR" env-default:""`

	// StorageURL selects the blob backend:
	//   memory://            - in-memory (default)
	//   file:///path/to/dir  - filesystem, ?compress=1 to gzip payloads
	//   s3://bucket          - S3-compatible, ?region=...&endpoint=...
	StorageURL string `env:"STORAGE_URL" env-default:"memory://"`

	// JWTSecret signs the HS256 session tokens issued by the auth routes.
	JWTSecret string `env:"JWT_SECRET" env-default:"dev-secret-change-me"`

	S3 S3Config
}

// S3Config carries credentials for the s3:// storage scheme
type S3Config struct {
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:""`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// Load reads the server configuration from the environment
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if _, _, err := c.storageScheme(); err != nil {
		return err
	}
	return nil
}

// BuildRepository creates the record/notification repository
func (c *ServerConfig) BuildRepository() (midistore.Repository, error) {
	if c.DataDir == "" {
		return memoryrepo.New(), nil
	}
	return fsjsonrepo.New(filepath.Join(c.DataDir, "index"))
}

// BuildBlobStore creates the blob storage backend named by StorageURL.
// The returned name identifies the backend in storage errors.
func (c *ServerConfig) BuildBlobStore() (string, midistore.BlobStore, error) {
	u, scheme, err := c.storageScheme()
	if err != nil {
		return "", nil, err
	}

	switch scheme {
	case "memory":
		store := memorystorage.New()
		return "memory", store, nil

	case "file":
		dir := u.Path
		if dir == "" {
			dir = filepath.Join(c.DataDir, "blobs")
		}
		if dir == "" {
			return "", nil, errors.New("file:// storage needs a path or DATA_DIR")
		}
		store, err := fsstorage.New(fsstorage.Config{
			BaseDir:  dir,
			Compress: u.Query().Get("compress") == "1",
		})
		if err != nil {
			return "", nil, err
		}
		return "fs", store, nil

	case "s3":
		store, err := s3storage.New(s3storage.Config{
			Bucket:                 u.Host,
			Region:                 u.Query().Get("region"),
			Endpoint:               u.Query().Get("endpoint"),
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			UsePathStyle:           c.S3.UsePathStyle,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})
		if err != nil {
			return "", nil, err
		}
		return "s3", store, nil
	}

	return "", nil, fmt.Errorf("unsupported storage scheme %q", scheme)
}

// BuildIdentity creates the identity manager, persisted under DataDir
// when one is configured.
func (c *ServerConfig) BuildIdentity() (*identity.Manager, error) {
	dir := ""
	if c.DataDir != "" {
		dir = filepath.Join(c.DataDir, "accounts")
	}
	return identity.NewManager(dir)
}

// BuildService assembles the catalog service and its collaborators
func (c *ServerConfig) BuildService() (midistore.Service, *identity.Manager, error) {
	repo, err := c.BuildRepository()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}

	name, blobs, err := c.BuildBlobStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	accounts, err := c.BuildIdentity()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build identity manager: %w", err)
	}

	// HTTP callers confirm destructive actions client-side, so the server
	// build approves them unconditionally.
	svc, err := midistore.New(
		midistore.WithRepository(repo),
		midistore.WithBlobStore(name, blobs),
		midistore.WithIdentityProvider(accounts),
		midistore.WithConfirmer(midistore.NewAutoConfirmer()),
	)
	if err != nil {
		return nil, nil, err
	}

	return svc, accounts, nil
}

func (c *ServerConfig) storageScheme() (*url.URL, string, error) {
	u, err := url.Parse(c.StorageURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	switch u.Scheme {
	case "memory", "file", "s3":
		return u, u.Scheme, nil
	}
	return nil, "", fmt.Errorf("unsupported STORAGE_URL scheme %q (use memory, file, or s3)", u.Scheme)
}
