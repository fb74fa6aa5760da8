// Package models defines the records the vault persists and returns.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// Account is an enrolled vault user. Usernames are unique and case-sensitive;
// an account is never updated or deleted once created.
type Account struct {
	Username     string    `json:"username"`
	TOTPSecret   string    `json:"totp_secret"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (a *Account) Validate() error {
	switch {
	case a.Username == "":
		return fmt.Errorf("%w: empty username", common.ErrValidation)
	case a.TOTPSecret == "":
		return fmt.Errorf("%w: empty totp secret for %q", common.ErrValidation, a.Username)
	case a.RegisteredAt.IsZero():
		return fmt.Errorf("%w: missing registration time for %q", common.ErrValidation, a.Username)
	}
	return nil
}

// Enrollment is what a new user needs to set up an authenticator app.
type Enrollment struct {
	// Secret is the base32 shared secret for manual entry.
	Secret string
	// ProvisioningURI is the otpauth:// URI encoded in the QR code.
	ProvisioningURI string
	// QRImage is a PNG rendering of ProvisioningURI.
	QRImage []byte
}

// MatchService reports whether query occurs in service, ignoring case.
// An empty query matches every service.
func MatchService(service, query string) bool {
	return strings.Contains(strings.ToLower(service), strings.ToLower(query))
}
