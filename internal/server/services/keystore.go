// Package services contains the vault's business logic: the key store, the
// TOTP second-factor registry, the encrypted credential store and the
// VaultService facade the transports call.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
)

// KeyStore hands out the single vault key, creating it on first use.
// The key never changes once persisted, so it is cached after the first
// successful load.
type KeyStore struct {
	repo   repositories.KeyRepository
	log    logging.Logger
	newKey func() ([]byte, error)

	mu     sync.Mutex
	key    []byte
	cipher *cryptox.Cipher
}

func NewKeyStore(repo repositories.KeyRepository, log logging.Logger) *KeyStore {
	return &KeyStore{
		repo:   repo,
		log:    logging.OrNop(log).With("module", "keystore"),
		newKey: cryptox.GenerateKey,
	}
}

// GetOrCreateKey returns the persisted key, generating and storing one when
// none exists. Concurrent first calls, in this process or others sharing
// the storage, all end up with the same key.
func (k *KeyStore) GetOrCreateKey(ctx context.Context) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.key != nil {
		return k.key, nil
	}

	key, err := k.repo.Get(ctx)
	if errors.Is(err, common.ErrorNotFound) {
		key, err = k.create(ctx)
	}
	if err != nil {
		return nil, err
	}

	c, err := cryptox.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMalformedRecord, err)
	}
	k.key, k.cipher = key, c
	return key, nil
}

// Cipher returns a Cipher bound to the vault key.
func (k *KeyStore) Cipher(ctx context.Context) (*cryptox.Cipher, error) {
	if _, err := k.GetOrCreateKey(ctx); err != nil {
		return nil, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cipher, nil
}

func (k *KeyStore) create(ctx context.Context) ([]byte, error) {
	fresh, err := k.newKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	stored, err := k.repo.CreateIfAbsent(ctx, fresh)
	if err != nil {
		return nil, err
	}

	if string(stored) == string(fresh) {
		k.log.Info(ctx, "generated new vault encryption key")
	} else {
		common.WipeByteArray(fresh)
		k.log.Debug(ctx, "another writer created the vault key first")
	}
	return stored, nil
}
