package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
	"github.com/dmitrijs2005/gophvault/internal/timex"
)

type AccountRepository struct {
	s *Store
}

// userEntry is the value stored per username in users.json.
type userEntry struct {
	TOTPSecret   string    `json:"totp_secret"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}

	return r.s.withWrite(ctx, func() error {
		users, err := r.load()
		if err != nil {
			return err
		}
		if _, ok := users[account.Username]; ok {
			return fmt.Errorf("%w: %q", common.ErrDuplicateUser, account.Username)
		}

		users[account.Username] = userEntry{
			TOTPSecret:   account.TOTPSecret,
			RegisteredAt: timex.Normalize(account.RegisteredAt),
		}

		data, err := json.MarshalIndent(users, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", UsersFile, err)
		}
		if err := filex.WriteFileAtomic(r.s.path(UsersFile), data, filePerm); err != nil {
			return repositories.Unavailable("write "+UsersFile, err)
		}
		return nil
	})
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account *models.Account
	err := r.s.withRead(ctx, func() error {
		users, err := r.load()
		if err != nil {
			return err
		}
		u, ok := users[username]
		if !ok {
			return common.ErrorNotFound
		}

		account = &models.Account{
			Username:     username,
			TOTPSecret:   u.TOTPSecret,
			RegisteredAt: timex.Normalize(u.RegisteredAt),
		}
		if err := account.Validate(); err != nil {
			return repositories.Malformed(UsersFile+" entry "+username, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// load reads users.json; a missing file is an empty vault.
func (r *AccountRepository) load() (map[string]userEntry, error) {
	data, ok, err := filex.ReadFileIfExists(r.s.path(UsersFile))
	if err != nil {
		return nil, repositories.Unavailable("read "+UsersFile, err)
	}

	users := map[string]userEntry{}
	if !ok || len(data) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, repositories.Malformed(UsersFile, err)
	}
	if users == nil {
		return nil, repositories.Malformed(UsersFile, errors.New("not a JSON object"))
	}
	return users, nil
}
