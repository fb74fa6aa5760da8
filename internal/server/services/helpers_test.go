package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/filestore"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

// fixedNow sits in the middle of a 30 second TOTP step.
var fixedNow = time.Unix(1_700_000_010+15, 0).UTC()

func openFileStore(t *testing.T, dir string) *filestore.Store {
	t.Helper()
	s, err := filestore.Open(dir, nil)
	require.NoError(t, err)
	return s
}

func newTestVault(t *testing.T, dir string) *VaultService {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	v := NewVaultService(openFileStore(t, dir), cfg, nil)
	v.Factors.now = func() time.Time { return fixedNow }
	return v
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

type fakeKeyRepo struct {
	stored    []byte
	getErr    error
	createErr error
	// winner, when set, is returned by CreateIfAbsent instead of the
	// caller's key, simulating a lost race.
	winner  []byte
	gets    int
	creates int
}

func (f *fakeKeyRepo) Get(context.Context) ([]byte, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.stored == nil {
		return nil, common.ErrorNotFound
	}
	return f.stored, nil
}

func (f *fakeKeyRepo) CreateIfAbsent(_ context.Context, key []byte) ([]byte, error) {
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.winner != nil {
		f.stored = f.winner
	} else if f.stored == nil {
		f.stored = append([]byte(nil), key...)
	}
	return f.stored, nil
}

type fakeAccountRepo struct {
	accounts  map[string]*models.Account
	getErr    error
	createErr error
}

func (f *fakeAccountRepo) Create(_ context.Context, a *models.Account) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.accounts == nil {
		f.accounts = map[string]*models.Account{}
	}
	if _, ok := f.accounts[a.Username]; ok {
		return common.ErrDuplicateUser
	}
	f.accounts[a.Username] = a
	return nil
}

func (f *fakeAccountRepo) GetByUsername(_ context.Context, username string) (*models.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.accounts[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return a, nil
}

type fakePasswordRepo struct {
	recs      []models.PasswordRecord
	upsertErr error
	findErr   error
}

func (f *fakePasswordRepo) Upsert(_ context.Context, rec *models.PasswordRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.recs = append(f.recs, *rec)
	return nil
}

func (f *fakePasswordRepo) FindByApp(_ context.Context, app, _ string) ([]models.PasswordRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.PasswordRecord
	for _, r := range f.recs {
		if r.AppUsername == app {
			out = append(out, r)
		}
	}
	return out, nil
}
