package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdbmc/midistore/pkg/midistore"
	"github.com/cdbmc/midistore/pkg/midistore/identity"
)

func TestLoginOrRegister(t *testing.T) {
	ctx := context.Background()
	m, err := identity.NewManager("")
	require.NoError(t, err)

	// First login creates the account and opens a session.
	ident, created, err := m.LoginOrRegister(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice", ident.ID)

	current, ok, err := m.Current(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", current.ID)

	// Second login with the right password is a plain login.
	ident, created, err = m.LoginOrRegister(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "alice", ident.ID)

	// Wrong password is rejected, not treated as a new account.
	_, _, err = m.LoginOrRegister(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	// Blank credentials never authenticate.
	_, _, err = m.LoginOrRegister(ctx, "", "x")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	_, _, err = m.LoginOrRegister(ctx, "bob", "")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	m, err := identity.NewManager("")
	require.NoError(t, err)

	_, _, err = m.LoginOrRegister(ctx, "alice", "s3cret")
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx))
	_, ok, err := m.Current(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Logging out twice is harmless.
	assert.NoError(t, m.Logout(ctx))
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	m, err := identity.NewManager("")
	require.NoError(t, err)

	_, _, err = m.LoginOrRegister(ctx, "alice", "s3cret")
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx))

	// Authenticate verifies credentials without opening a session.
	ident, err := m.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", ident.ID)

	_, ok, err := m.Current(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	_, err = m.Authenticate(ctx, "nobody", "x")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	m, err := identity.NewManager("")
	require.NoError(t, err)

	_, _, err = m.LoginOrRegister(ctx, "alice", "s3cret")
	require.NoError(t, err)

	// The password is re-verified even with an open session.
	assert.ErrorIs(t, m.DeleteAccount(ctx, "alice", "wrong"), identity.ErrInvalidCredentials)
	assert.ErrorIs(t, m.DeleteAccount(ctx, "nobody", "x"), identity.ErrInvalidCredentials)

	require.NoError(t, m.DeleteAccount(ctx, "alice", "s3cret"))

	exists, err := m.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting the current account also ends the session.
	_, ok, err := m.Current(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteAccountKeepsOtherSession(t *testing.T) {
	ctx := context.Background()
	m, err := identity.NewManager("")
	require.NoError(t, err)

	_, _, err = m.LoginOrRegister(ctx, "victim", "pw1")
	require.NoError(t, err)
	_, _, err = m.LoginOrRegister(ctx, "admin", "pw2")
	require.NoError(t, err)

	require.NoError(t, m.DeleteAccount(ctx, "victim", "pw1"))

	current, ok, err := m.Current(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "admin", current.ID)
}

// switchConfirmer approves or declines based on its current setting.
type switchConfirmer struct {
	approve bool
}

func (c *switchConfirmer) Confirm(ctx context.Context, action string) (bool, error) {
	return c.approve, nil
}

func TestConfirmerGatesDestructiveActions(t *testing.T) {
	ctx := context.Background()
	confirm := &switchConfirmer{}
	m, err := identity.NewManager("", identity.WithConfirmer(confirm))
	require.NoError(t, err)

	// Declined confirmation blocks registration entirely.
	_, _, err = m.LoginOrRegister(ctx, "alice", "s3cret")
	assert.ErrorIs(t, err, midistore.ErrConfirmationDeclined)
	exists, err := m.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	confirm.approve = true
	_, created, err := m.LoginOrRegister(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, created)

	// Declined confirmation blocks deletion; the account stays.
	confirm.approve = false
	assert.ErrorIs(t, m.DeleteAccount(ctx, "alice", "s3cret"), midistore.ErrConfirmationDeclined)
	exists, err = m.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	confirm.approve = true
	require.NoError(t, m.DeleteAccount(ctx, "alice", "s3cret"))
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	m, err := identity.NewManager(dir)
	require.NoError(t, err)
	_, created, err := m.LoginOrRegister(ctx, "alice", "s3cret")
	require.NoError(t, err)
	require.True(t, created)

	reopened, err := identity.NewManager(dir)
	require.NoError(t, err)

	// Account and session both survive the restart.
	exists, err := reopened.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	current, ok, err := reopened.Current(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", current.ID)

	// And the password still verifies against the stored hash.
	_, _, err = reopened.LoginOrRegister(ctx, "alice", "s3cret")
	assert.NoError(t, err)
	_, _, err = reopened.LoginOrRegister(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}
