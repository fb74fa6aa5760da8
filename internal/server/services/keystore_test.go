package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyStore_CreatesOnceAndCaches(t *testing.T) {
	repo := &fakeKeyRepo{}
	ks := NewKeyStore(repo, nil)

	k1, err := ks.GetOrCreateKey(context.Background())
	require.NoError(t, err)
	require.Len(t, k1, cryptox.KeySize)

	k2, err := ks.GetOrCreateKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Equal(t, 1, repo.gets)
	assert.Equal(t, 1, repo.creates)
}

func TestKeyStore_ReturnsExistingKey(t *testing.T) {
	existing, err := cryptox.GenerateKey()
	require.NoError(t, err)
	repo := &fakeKeyRepo{stored: existing}

	got, err := NewKeyStore(repo, nil).GetOrCreateKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, existing, got)
	assert.Zero(t, repo.creates)
}

func TestKeyStore_LostRaceAdoptsWinner(t *testing.T) {
	winner, err := cryptox.GenerateKey()
	require.NoError(t, err)
	repo := &fakeKeyRepo{winner: winner}

	got, err := NewKeyStore(repo, nil).GetOrCreateKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, winner, got)
}

func TestKeyStore_StorageErrors(t *testing.T) {
	boom := errors.New("disk gone")

	_, err := NewKeyStore(&fakeKeyRepo{getErr: boom}, nil).GetOrCreateKey(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = NewKeyStore(&fakeKeyRepo{createErr: boom}, nil).GetOrCreateKey(context.Background())
	assert.ErrorIs(t, err, boom)

	ks := NewKeyStore(&fakeKeyRepo{}, nil)
	ks.newKey = func() ([]byte, error) { return nil, boom }
	_, err = ks.GetOrCreateKey(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestKeyStore_WrongLengthKeyIsMalformed(t *testing.T) {
	_, err := NewKeyStore(&fakeKeyRepo{stored: []byte("short")}, nil).GetOrCreateKey(context.Background())
	assert.ErrorIs(t, err, common.ErrMalformedRecord)
	assert.ErrorIs(t, err, common.ErrInvalidKey)
}

func TestKeyStore_ConcurrentStoresShareOneKey(t *testing.T) {
	dir := t.TempDir()

	const n = 16
	keys := make([][]byte, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// separate stores stand in for separate processes
			ks := NewKeyStore(openFileStore(t, dir).Keys(), nil)
			k, err := ks.GetOrCreateKey(context.Background())
			assert.NoError(t, err)
			keys[i] = k
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, keys[0], keys[i])
	}
}

func TestKeyStore_CipherRoundTrip(t *testing.T) {
	ks := NewKeyStore(&fakeKeyRepo{}, nil)
	c, err := ks.Cipher(context.Background())
	require.NoError(t, err)

	tok, err := c.EncryptString("hunter2")
	require.NoError(t, err)
	plain, err := c.DecryptString(tok)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}
