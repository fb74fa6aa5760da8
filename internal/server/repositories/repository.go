// Package repositories declares the persistence contracts of the vault.
// Backends live in subpackages (filestore, sqlstore, s3store) and are chosen
// at startup by repomanager.
package repositories

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
)

// KeyRepository persists the single vault encryption key.
type KeyRepository interface {
	// Get returns the stored key or common.ErrorNotFound.
	Get(ctx context.Context) ([]byte, error)
	// CreateIfAbsent stores key unless a key already exists, and returns
	// whichever key is persisted afterwards. Concurrent callers all observe
	// the same winner.
	CreateIfAbsent(ctx context.Context, key []byte) ([]byte, error)
}

// AccountRepository persists enrolled users.
type AccountRepository interface {
	// Create inserts a new account, failing with common.ErrDuplicateUser if
	// the username is taken. It is the authoritative uniqueness check.
	Create(ctx context.Context, account *models.Account) error
	// GetByUsername returns the account or common.ErrorNotFound.
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
}

// PasswordRepository persists encrypted service credentials.
type PasswordRepository interface {
	// Upsert inserts the record or, when its identity triple exists, replaces
	// the ciphertext and rotation time in one atomic step.
	Upsert(ctx context.Context, rec *models.PasswordRecord) error
	// FindByApp returns the records of appUsername whose service contains
	// query (case-insensitive), ordered by service then service username.
	FindByApp(ctx context.Context, appUsername, query string) ([]models.PasswordRecord, error)
}

// Store bundles the repositories of one backend.
type Store interface {
	Keys() KeyRepository
	Accounts() AccountRepository
	Passwords() PasswordRepository
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Unavailable wraps a backend failure so callers can match
// common.ErrStorageUnavailable and still see the cause.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageUnavailable, err)
}

// Malformed reports persisted data that does not fit the record schema.
func Malformed(what string, err error) error {
	return fmt.Errorf("%s: %w: %w", what, common.ErrMalformedRecord, err)
}

// FilterAndSort keeps the records matching query and orders them the way
// FindByApp promises. The input slice is reused.
func FilterAndSort(recs []models.PasswordRecord, query string) []models.PasswordRecord {
	out := recs[:0]
	for _, r := range recs {
		if models.MatchService(r.Service, query) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b models.PasswordRecord) int {
		if c := cmp.Compare(a.Service, b.Service); c != 0 {
			return c
		}
		return cmp.Compare(a.ServiceUsername, b.ServiceUsername)
	})
	return out
}
