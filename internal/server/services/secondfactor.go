package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
	"github.com/dmitrijs2005/gophvault/internal/timex"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

const (
	totpPeriod     = 30
	totpSecretSize = 20
	qrImageSize    = 256
)

// SecondFactorRegistry enrolls users with a TOTP secret and checks codes.
// An account moves from unregistered to registered exactly once.
type SecondFactorRegistry struct {
	accounts repositories.AccountRepository
	issuer   string
	skew     uint
	now      timex.Clock
	log      logging.Logger
}

// NewSecondFactorRegistry builds a registry. skew is the number of 30-second
// steps accepted on either side of the current one.
func NewSecondFactorRegistry(accounts repositories.AccountRepository, issuer string, skew uint, log logging.Logger) *SecondFactorRegistry {
	if issuer == "" {
		issuer = common.DefaultIssuer
	}
	return &SecondFactorRegistry{
		accounts: accounts,
		issuer:   issuer,
		skew:     skew,
		now:      time.Now,
		log:      logging.OrNop(log).With("module", "secondfactor"),
	}
}

// Enroll creates the account for username with a fresh 160-bit secret and
// returns what an authenticator app needs. A taken username yields
// common.ErrDuplicateUser.
func (r *SecondFactorRegistry) Enroll(ctx context.Context, username string) (*models.Enrollment, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", common.ErrValidation)
	}

	// Cheap early answer; the insert below is what actually guarantees
	// uniqueness.
	exists, err := r.Exists(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %q", common.ErrDuplicateUser, username)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      r.issuer,
		AccountName: username,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}

	account := &models.Account{
		Username:     username,
		TOTPSecret:   key.Secret(),
		RegisteredAt: timex.Normalize(r.now()),
	}
	if err := r.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	r.log.Info(ctx, "user enrolled", "username", username)

	return &models.Enrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRImage:         png,
	}, nil
}

// Verify checks code against the user's secret at the current time. A wrong
// or malformed code is (false, nil); an unknown user is
// common.ErrUserNotFound.
func (r *SecondFactorRegistry) Verify(ctx context.Context, username, code string) (bool, error) {
	account, err := r.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, fmt.Errorf("%w: %q", common.ErrUserNotFound, username)
		}
		return false, err
	}

	ok, err := totp.ValidateCustom(strings.TrimSpace(code), account.TOTPSecret, r.now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      r.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		if errors.Is(err, otp.ErrValidateInputInvalidLength) {
			return false, nil
		}
		return false, fmt.Errorf("%w: totp secret of %q: %w", common.ErrMalformedRecord, username, err)
	}

	r.log.Debug(ctx, "totp checked", "username", username, "valid", ok)
	return ok, nil
}

// Exists reports whether username is enrolled.
func (r *SecondFactorRegistry) Exists(ctx context.Context, username string) (bool, error) {
	_, err := r.accounts.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrorNotFound):
		return false, nil
	default:
		return false, err
	}
}
