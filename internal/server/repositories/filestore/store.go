// Package filestore is the flat-file vault backend. One directory holds the
// whole vault:
//
//	encryption_key.key   base64 vault key
//	users.json           {"<username>": {"totp_secret": ..., "registered_at": ...}}
//	passwords.csv        app_username,service,service_username,encrypted_password,last_rotated
//	.vault.lock          advisory lock file
//
// Writers hold an exclusive lock on .vault.lock for the whole
// read-modify-write cycle and replace files atomically, so concurrent
// processes sharing the directory never lose updates and readers never see a
// torn file.
package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
	"github.com/gofrs/flock"
)

const (
	KeyFile       = "encryption_key.key"
	UsersFile     = "users.json"
	PasswordsFile = "passwords.csv"
	LockFile      = ".vault.lock"

	filePerm = 0o600
)

// ErrLockTimeout is returned when the vault lock cannot be taken before the
// context is done.
var ErrLockTimeout = errors.New("vault lock not acquired")

type Store struct {
	dir       string
	mu        sync.RWMutex
	lockRetry time.Duration
	log       logging.Logger

	keys      *KeyRepository
	accounts  *AccountRepository
	passwords *PasswordRepository
}

var _ repositories.Store = (*Store)(nil)

// Open prepares dir (creating it when needed) and returns a Store on it.
func Open(dir string, log logging.Logger) (*Store, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, repositories.Unavailable("open vault dir", err)
	}

	s := &Store{
		dir:       abs,
		lockRetry: 10 * time.Millisecond,
		log:       logging.OrNop(log).With("module", "filestore", "dir", abs),
	}
	s.keys = &KeyRepository{s: s}
	s.accounts = &AccountRepository{s: s}
	s.passwords = &PasswordRepository{s: s}
	return s, nil
}

func (s *Store) Keys() repositories.KeyRepository           { return s.keys }
func (s *Store) Accounts() repositories.AccountRepository   { return s.accounts }
func (s *Store) Passwords() repositories.PasswordRepository { return s.passwords }

// Ping checks the vault directory is still there.
func (s *Store) Ping(context.Context) error {
	fi, err := os.Stat(s.dir)
	if err != nil {
		return repositories.Unavailable("stat vault dir", err)
	}
	if !fi.IsDir() {
		return repositories.Unavailable("stat vault dir", errors.New(s.dir+" is not a directory"))
	}
	return nil
}

func (s *Store) Close() error { return nil }

// Dir returns the absolute vault directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// withWrite runs fn holding the in-process write lock and the exclusive
// file lock.
func (s *Store) withWrite(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fl := flock.New(s.path(LockFile))
	ok, err := fl.TryLockContext(ctx, s.lockRetry)
	if err != nil {
		return repositories.Unavailable("lock vault", errors.Join(ErrLockTimeout, err))
	}
	if !ok {
		return repositories.Unavailable("lock vault", ErrLockTimeout)
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			s.log.Warn(ctx, "unlock vault", "error", err)
		}
	}()

	return fn()
}

// withRead runs fn holding the in-process read lock and a shared file lock.
// Each call opens its own lock handle, so shared locks of concurrent readers
// are independent of each other.
func (s *Store) withRead(ctx context.Context, fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fl := flock.New(s.path(LockFile))
	ok, err := fl.TryRLockContext(ctx, s.lockRetry)
	if err != nil {
		return repositories.Unavailable("lock vault", errors.Join(ErrLockTimeout, err))
	}
	if !ok {
		return repositories.Unavailable("lock vault", ErrLockTimeout)
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			s.log.Warn(ctx, "unlock vault", "error", err)
		}
	}()

	return fn()
}
