package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
	"github.com/dmitrijs2005/gophvault/internal/timex"
)

// CredentialStore encrypts service passwords on the way in and decrypts
// them on the way out. Plaintext is never persisted.
type CredentialStore struct {
	passwords repositories.PasswordRepository
	keys      *KeyStore
	now       timex.Clock
	log       logging.Logger
}

func NewCredentialStore(passwords repositories.PasswordRepository, keys *KeyStore, log logging.Logger) *CredentialStore {
	return &CredentialStore{
		passwords: passwords,
		keys:      keys,
		now:       time.Now,
		log:       logging.OrNop(log).With("module", "credentials"),
	}
}

// Add stores password for (appUsername, service, serviceUsername), replacing
// any previous password of that triple and stamping it as rotated now.
func (s *CredentialStore) Add(ctx context.Context, appUsername, service, serviceUsername, password string) error {
	key := models.RecordKey{AppUsername: appUsername, Service: service, ServiceUsername: serviceUsername}
	if err := key.Validate(); err != nil {
		return err
	}

	cipher, err := s.keys.Cipher(ctx)
	if err != nil {
		return err
	}
	token, err := cipher.EncryptString(password)
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}

	rec := &models.PasswordRecord{
		AppUsername:       appUsername,
		Service:           service,
		ServiceUsername:   serviceUsername,
		EncryptedPassword: token,
		LastRotated:       timex.Normalize(s.now()),
	}
	if err := s.passwords.Upsert(ctx, rec); err != nil {
		return err
	}

	s.log.Debug(ctx, "password stored", "app_username", appUsername, "service", service)
	return nil
}

// Find returns the decrypted credentials of appUsername whose service
// contains query, ignoring case. If any matching record fails to decrypt
// the whole call fails with common.ErrDecryptionFailed; records are never
// dropped silently.
func (s *CredentialStore) Find(ctx context.Context, appUsername, query string) ([]models.Credential, error) {
	recs, err := s.passwords.FindByApp(ctx, appUsername, query)
	if err != nil {
		return nil, err
	}

	out := make([]models.Credential, 0, len(recs))
	if len(recs) == 0 {
		return out, nil
	}

	cipher, err := s.keys.Cipher(ctx)
	if err != nil {
		return nil, err
	}

	for _, rec := range recs {
		plain, err := cipher.DecryptString(rec.EncryptedPassword)
		if err != nil {
			s.log.Error(ctx, "stored password does not decrypt",
				"app_username", appUsername, "service", rec.Service, "service_username", rec.ServiceUsername)
			return nil, fmt.Errorf("%w: %s/%s: %w", common.ErrDecryptionFailed, rec.Service, rec.ServiceUsername, err)
		}
		out = append(out, models.Credential{
			Service:         rec.Service,
			ServiceUsername: rec.ServiceUsername,
			Password:        plain,
			LastRotated:     rec.LastRotated,
		})
	}
	return out, nil
}
