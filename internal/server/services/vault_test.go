package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, t.TempDir())

	ok, err := v.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	e, err := v.Enroll(ctx, "alice")
	require.NoError(t, err)

	ok, err = v.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(ctx, "alice", codeAt(t, e.Secret, fixedNow))
	require.NoError(t, err)
	assert.True(t, ok)

	good := codeAt(t, e.Secret, fixedNow)
	wrong := string('0'+(good[0]-'0'+1)%10) + good[1:]
	ok, err = v.Verify(ctx, "alice", wrong)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v.AddPassword(ctx, "alice", "GitHub", "alice@example.com", "gh"))
	require.NoError(t, v.AddPassword(ctx, "alice", "GitLab", "alice@example.com", "gl"))

	creds, err := v.GetPasswords(ctx, "alice", "hub")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "GitHub", creds[0].Service)
	assert.Equal(t, "alice@example.com", creds[0].ServiceUsername)
	assert.Equal(t, "gh", creds[0].Password)
	assert.False(t, creds[0].LastRotated.IsZero())
}

func TestVaultService_UnknownUser(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, t.TempDir())

	err := v.AddPassword(ctx, "ghost", "GitHub", "g", "p")
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	_, err = v.GetPasswords(ctx, "ghost", "")
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	_, err = v.Verify(ctx, "ghost", "123456")
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	err = v.AddPassword(ctx, "", "GitHub", "g", "p")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestVaultService_DuplicateEnroll(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, t.TempDir())

	_, err := v.Enroll(ctx, "alice")
	require.NoError(t, err)
	_, err = v.Enroll(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrDuplicateUser)
}

func TestVaultService_ScopedByAppUser(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t, t.TempDir())

	for _, u := range []string{"alice", "bob"} {
		_, err := v.Enroll(ctx, u)
		require.NoError(t, err)
	}
	require.NoError(t, v.AddPassword(ctx, "alice", "GitHub", "a", "alice-secret"))

	creds, err := v.GetPasswords(ctx, "bob", "")
	require.NoError(t, err)
	assert.Empty(t, creds)
}
