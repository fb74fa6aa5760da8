package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
)

// VaultService is the entry point used by the transports and vaultctl.
//
// Password operations require the app user to be enrolled but, matching the
// established API, do not require a verified second factor; transports can
// add that gate (see config.RequireVerifiedSession).
type VaultService struct {
	Keys        *KeyStore
	Factors     *SecondFactorRegistry
	Credentials *CredentialStore
}

// NewVaultService wires the services over one storage backend.
func NewVaultService(store repositories.Store, cfg *config.Config, log logging.Logger) *VaultService {
	keys := NewKeyStore(store.Keys(), log)
	return &VaultService{
		Keys:        keys,
		Factors:     NewSecondFactorRegistry(store.Accounts(), cfg.TOTPIssuer, cfg.TOTPSkew, log),
		Credentials: NewCredentialStore(store.Passwords(), keys, log),
	}
}

// Enroll registers username and returns its TOTP enrollment.
func (v *VaultService) Enroll(ctx context.Context, username string) (*models.Enrollment, error) {
	return v.Factors.Enroll(ctx, username)
}

// Verify checks a TOTP code for username.
func (v *VaultService) Verify(ctx context.Context, username, code string) (bool, error) {
	return v.Factors.Verify(ctx, username, code)
}

// UserExists reports whether username is enrolled.
func (v *VaultService) UserExists(ctx context.Context, username string) (bool, error) {
	return v.Factors.Exists(ctx, username)
}

// AddPassword stores a password for an enrolled app user.
func (v *VaultService) AddPassword(ctx context.Context, appUsername, service, serviceUsername, password string) error {
	if err := v.requireUser(ctx, appUsername); err != nil {
		return err
	}
	return v.Credentials.Add(ctx, appUsername, service, serviceUsername, password)
}

// GetPasswords returns the decrypted credentials of an enrolled app user
// whose service contains query.
func (v *VaultService) GetPasswords(ctx context.Context, appUsername, query string) ([]models.Credential, error) {
	if err := v.requireUser(ctx, appUsername); err != nil {
		return nil, err
	}
	return v.Credentials.Find(ctx, appUsername, query)
}

func (v *VaultService) requireUser(ctx context.Context, appUsername string) error {
	if appUsername == "" {
		return fmt.Errorf("%w: empty app username", common.ErrValidation)
	}
	ok, err := v.Factors.Exists(ctx, appUsername)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", common.ErrUserNotFound, appUsername)
	}
	return nil
}
