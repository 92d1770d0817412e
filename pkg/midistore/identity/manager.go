// Package identity implements the identity collaborator for the catalog:
// a local account registry with login-or-register semantics, a persisted
// current-identity slot, and owner-existence lookups. Passwords are stored
// as bcrypt hashes and are not recoverable.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cdbmc/midistore/pkg/midistore"
)

const (
	usersSlot   = "users.json"
	sessionSlot = "session.json"
)

// ErrInvalidCredentials indicates a password mismatch or unknown account
var ErrInvalidCredentials = errors.New("invalid credentials")

// user is the persisted account entry, keyed by username in the users slot.
type user struct {
	PasswordHash string    `json:"password_hash"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Manager holds the account registry and the current session. It
// implements midistore.IdentityProvider. With an empty dir everything is
// in-memory; otherwise users and session live in JSON slot files under dir.
type Manager struct {
	mu        sync.RWMutex
	dir       string
	users     map[string]user
	current   *midistore.Identity
	confirmer midistore.Confirmer
}

// Option configures a Manager
type Option func(*Manager)

// WithConfirmer sets the confirmation port consulted before account
// creation and account deletion.
func WithConfirmer(c midistore.Confirmer) Option {
	return func(m *Manager) {
		m.confirmer = c
	}
}

// NewManager opens (or creates) the identity manager. dir may be empty for
// in-memory operation.
func NewManager(dir string, opts ...Option) (*Manager, error) {
	m := &Manager{
		dir:   dir,
		users: make(map[string]user),
	}
	for _, opt := range opts {
		opt(m)
	}

	if dir == "" {
		return m, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create identity directory: %w", err)
	}
	if err := loadJSON(filepath.Join(dir, usersSlot), &m.users); err != nil {
		return nil, fmt.Errorf("failed to load users slot: %w", err)
	}
	if err := loadJSON(filepath.Join(dir, sessionSlot), &m.current); err != nil {
		return nil, fmt.Errorf("failed to load session slot: %w", err)
	}

	return m, nil
}

// LoginOrRegister authenticates username, creating the account when it does
// not exist yet. Account creation runs through the confirmation port when
// one is configured; a declined confirmation creates nothing. The second
// return value reports whether a new account was created.
func (m *Manager) LoginOrRegister(ctx context.Context, username, password string) (*midistore.Identity, bool, error) {
	if username == "" || password == "" {
		return nil, false, ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.users[username]
	if exists {
		if bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash), []byte(password)) != nil {
			return nil, false, ErrInvalidCredentials
		}
		identity := &midistore.Identity{ID: username, Email: existing.Email, CreatedAt: existing.CreatedAt}
		if err := m.setCurrent(identity); err != nil {
			return nil, false, err
		}
		return identity, false, nil
	}

	if m.confirmer != nil {
		ok, err := m.confirmer.Confirm(ctx, fmt.Sprintf("create account %q (passwords cannot be recovered)", username))
		if err != nil {
			return nil, false, fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return nil, false, midistore.ErrConfirmationDeclined
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}

	created := user{PasswordHash: string(hash), CreatedAt: time.Now().UTC()}
	m.users[username] = created
	if err := m.persistUsers(); err != nil {
		delete(m.users, username)
		return nil, false, err
	}

	identity := &midistore.Identity{ID: username, CreatedAt: created.CreatedAt}
	if err := m.setCurrent(identity); err != nil {
		return nil, false, err
	}
	return identity, true, nil
}

// Logout clears the current session. Logging out without a session is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCurrent(nil)
}

// DeleteAccount removes an account after re-verifying its password and
// consulting the confirmation port. When the deleted account is the
// current session, the session is cleared too.
func (m *Manager) DeleteAccount(ctx context.Context, username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, exists := m.users[username]
	if !exists {
		return ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}

	if m.confirmer != nil {
		ok, err := m.confirmer.Confirm(ctx, fmt.Sprintf("delete account %q (this cannot be undone)", username))
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return midistore.ErrConfirmationDeclined
		}
	}

	delete(m.users, username)
	if err := m.persistUsers(); err != nil {
		m.users[username] = account
		return err
	}

	if m.current != nil && m.current.ID == username {
		return m.setCurrent(nil)
	}
	return nil
}

// Current returns the active identity, if any. Implements
// midistore.IdentityProvider.
func (m *Manager) Current(ctx context.Context) (*midistore.Identity, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil, false, nil
	}
	identityCopy := *m.current
	return &identityCopy, true, nil
}

// Exists reports whether the identity is still registered. Implements
// midistore.IdentityProvider.
func (m *Manager) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.users[id]
	return exists, nil
}

// Authenticate verifies a username/password pair without touching the
// session. Used by transport layers that carry their own session tokens.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (*midistore.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, exists := m.users[username]
	if !exists {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &midistore.Identity{ID: username, Email: account.Email, CreatedAt: account.CreatedAt}, nil
}

// Persistence helpers. Callers hold the write lock.

func (m *Manager) setCurrent(identity *midistore.Identity) error {
	m.current = identity
	if m.dir == "" {
		return nil
	}
	return saveJSON(filepath.Join(m.dir, sessionSlot), m.current)
}

func (m *Manager) persistUsers() error {
	if m.dir == "" {
		return nil
	}
	return saveJSON(filepath.Join(m.dir, usersSlot), m.users)
}

func loadJSON(path string, out interface{}) error {
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

func saveJSON(path string, value interface{}) error {
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
