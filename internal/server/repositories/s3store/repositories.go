package s3store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
	"github.com/dmitrijs2005/gophvault/internal/timex"
)

type KeyRepository struct {
	s *Store
}

func (r *KeyRepository) Get(ctx context.Context) ([]byte, error) {
	data, found, err := r.s.get(ctx, r.s.keyObject())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrorNotFound
	}
	key, err := cryptox.DecodeKey(string(data))
	if err != nil {
		return nil, repositories.Malformed("encryption key object", err)
	}
	return key, nil
}

// CreateIfAbsent puts the key conditionally; losing the race means another
// writer got there first, so its key is read back.
func (r *KeyRepository) CreateIfAbsent(ctx context.Context, key []byte) ([]byte, error) {
	err := r.s.put(ctx, r.s.keyObject(), []byte(cryptox.EncodeKey(key)), "text/plain", true)
	switch {
	case err == nil:
		r.s.log.Info(ctx, "encryption key created")
		return key, nil
	case errors.Is(err, errPreconditionFailed):
		return r.Get(ctx)
	default:
		return nil, err
	}
}

type AccountRepository struct {
	s *Store
}

type accountObject struct {
	Username     string    `json:"username"`
	TOTPSecret   string    `json:"totp_secret"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}

	obj := accountObject{
		Username:     account.Username,
		TOTPSecret:   account.TOTPSecret,
		RegisteredAt: timex.Normalize(account.RegisteredAt),
	}
	err := r.s.putJSON(ctx, r.s.accountObject(account.Username), obj, true)
	if errors.Is(err, errPreconditionFailed) {
		return fmt.Errorf("%w: %q", common.ErrDuplicateUser, account.Username)
	}
	return err
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	key := r.s.accountObject(username)
	data, found, err := r.s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrorNotFound
	}

	var obj accountObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, repositories.Malformed(key, err)
	}
	a := &models.Account{
		Username:     obj.Username,
		TOTPSecret:   obj.TOTPSecret,
		RegisteredAt: timex.Normalize(obj.RegisteredAt),
	}
	if a.Username != username {
		return nil, repositories.Malformed(key, fmt.Errorf("object holds user %q", a.Username))
	}
	if err := a.Validate(); err != nil {
		return nil, repositories.Malformed(key, err)
	}
	return a, nil
}

type PasswordRepository struct {
	s *Store
}

type passwordObject struct {
	AppUsername       string    `json:"app_username"`
	Service           string    `json:"service"`
	ServiceUsername   string    `json:"service_username"`
	EncryptedPassword string    `json:"encrypted_password"`
	LastRotated       time.Time `json:"last_rotated"`
}

func (r *PasswordRepository) Upsert(ctx context.Context, rec *models.PasswordRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	obj := passwordObject{
		AppUsername:       rec.AppUsername,
		Service:           rec.Service,
		ServiceUsername:   rec.ServiceUsername,
		EncryptedPassword: rec.EncryptedPassword,
		LastRotated:       timex.Normalize(rec.LastRotated),
	}
	return r.s.putJSON(ctx, r.s.passwordObject(rec.AppUsername, rec.Service, rec.ServiceUsername), obj, false)
}

func (r *PasswordRepository) FindByApp(ctx context.Context, appUsername, query string) ([]models.PasswordRecord, error) {
	keys, err := r.s.list(ctx, r.s.passwordsPrefix(appUsername))
	if err != nil {
		return nil, err
	}

	recs := make([]models.PasswordRecord, 0, len(keys))
	for _, key := range keys {
		data, found, err := r.s.get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			// gone between list and get
			continue
		}

		var obj passwordObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, repositories.Malformed(key, err)
		}
		rec := models.PasswordRecord{
			AppUsername:       obj.AppUsername,
			Service:           obj.Service,
			ServiceUsername:   obj.ServiceUsername,
			EncryptedPassword: obj.EncryptedPassword,
			LastRotated:       timex.Normalize(obj.LastRotated),
		}
		if err := rec.Validate(); err != nil {
			return nil, repositories.Malformed(key, err)
		}
		if rec.AppUsername != appUsername {
			return nil, repositories.Malformed(key, fmt.Errorf("object belongs to %q", rec.AppUsername))
		}
		recs = append(recs, rec)
	}

	return repositories.FilterAndSort(recs, query), nil
}
