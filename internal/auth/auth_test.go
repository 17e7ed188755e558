package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentascan/dentascan-go/internal/conf"
	"github.com/dentascan/dentascan-go/internal/datastore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	settings := &conf.Settings{}
	settings.Main.DataRoot = t.TempDir()
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = "test.db"

	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() {
		assert.NoError(t, ds.Close())
	})

	return NewService(ds)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := newTestService(t)

	userID, err := svc.Register("alice", "pw1")
	require.NoError(t, err)
	require.NotZero(t, userID)

	gotID, err := svc.Authenticate("alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register("alice", "pw1")
	require.NoError(t, err)

	// same username with a different password is still a conflict
	_, err = svc.Register("alice", "pw2")
	require.Error(t, err)
	assert.ErrorIs(t, err, datastore.ErrDuplicateUsername)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register("alice", "pw1")
	require.NoError(t, err)

	_, err = svc.Authenticate("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Authenticate("nobody", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRejectsEmptyFields(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register("", "pw")
	require.Error(t, err)

	_, err = svc.Register("alice", "")
	require.Error(t, err)
}

func TestCredentialNotStoredInPlaintext(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register("alice", "pw1")
	require.NoError(t, err)

	user, err := svc.ds.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", user.CredentialHash)
	assert.NotContains(t, user.CredentialHash, "pw1")
}
