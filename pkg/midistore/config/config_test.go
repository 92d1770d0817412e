package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdbmc/midistore/pkg/midistore/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory://", cfg.StorageURL)
	assert.Empty(t, cfg.DataDir)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATA_DIR", "/var/lib/midistore")
	t.Setenv("STORAGE_URL", "file:///var/lib/midistore/blobs?compress=1")
	t.Setenv("JWT_SECRET", "prod-secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "/var/lib/midistore", cfg.DataDir)
	assert.Equal(t, "prod-secret", cfg.JWTSecret)
}

func TestValidateRejectsBadStorageURL(t *testing.T) {
	cfg := &config.ServerConfig{
		Port:       "8080",
		JWTSecret:  "s",
		StorageURL: "redis://nope",
	}
	assert.Error(t, cfg.Validate())

	cfg.StorageURL = "memory://"
	assert.NoError(t, cfg.Validate())
}

func TestBuildRepository(t *testing.T) {
	cfg := &config.ServerConfig{}
	repo, err := cfg.BuildRepository()
	require.NoError(t, err)
	assert.NotNil(t, repo)

	cfg.DataDir = t.TempDir()
	repo, err = cfg.BuildRepository()
	require.NoError(t, err)
	assert.NotNil(t, repo)
}

func TestBuildBlobStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := &config.ServerConfig{StorageURL: "memory://"}
		name, store, err := cfg.BuildBlobStore()
		require.NoError(t, err)
		assert.Equal(t, "memory", name)
		assert.NotNil(t, store)
	})

	t.Run("file with explicit path", func(t *testing.T) {
		dir := t.TempDir()
		cfg := &config.ServerConfig{StorageURL: "file://" + dir}
		name, store, err := cfg.BuildBlobStore()
		require.NoError(t, err)
		assert.Equal(t, "fs", name)
		assert.NotNil(t, store)
	})

	t.Run("file falls back to data dir", func(t *testing.T) {
		dir := t.TempDir()
		cfg := &config.ServerConfig{StorageURL: "file://", DataDir: dir}
		name, store, err := cfg.BuildBlobStore()
		require.NoError(t, err)
		assert.Equal(t, "fs", name)
		assert.NotNil(t, store)
		assert.DirExists(t, filepath.Join(dir, "blobs"))
	})

	t.Run("file without any path", func(t *testing.T) {
		cfg := &config.ServerConfig{StorageURL: "file://"}
		_, _, err := cfg.BuildBlobStore()
		assert.Error(t, err)
	})

	t.Run("unknown scheme", func(t *testing.T) {
		cfg := &config.ServerConfig{StorageURL: "ftp://host"}
		_, _, err := cfg.BuildBlobStore()
		assert.Error(t, err)
	})
}

func TestBuildService(t *testing.T) {
	cfg := &config.ServerConfig{
		Port:       "8080",
		JWTSecret:  "s",
		StorageURL: "memory://",
	}

	svc, accounts, err := cfg.BuildService()
	require.NoError(t, err)
	assert.NotNil(t, svc)
	assert.NotNil(t, accounts)
}
