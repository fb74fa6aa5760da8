package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// PasswordRecord is one stored service credential. The triple
// (AppUsername, Service, ServiceUsername) identifies it; writing the same
// triple again replaces EncryptedPassword and LastRotated.
type PasswordRecord struct {
	// ID is a surrogate key used only by the relational backend.
	ID                string
	AppUsername       string
	Service           string
	ServiceUsername   string
	EncryptedPassword string
	LastRotated       time.Time
}

// Key returns the identity triple.
func (r *PasswordRecord) Key() RecordKey {
	return RecordKey{AppUsername: r.AppUsername, Service: r.Service, ServiceUsername: r.ServiceUsername}
}

func (r *PasswordRecord) Validate() error {
	if err := r.Key().Validate(); err != nil {
		return err
	}
	if r.EncryptedPassword == "" {
		return fmt.Errorf("%w: empty ciphertext for %s", common.ErrValidation, r.Key())
	}
	if r.LastRotated.IsZero() {
		return fmt.Errorf("%w: missing rotation time for %s", common.ErrValidation, r.Key())
	}
	return nil
}

// RecordKey is the identity of a PasswordRecord.
type RecordKey struct {
	AppUsername     string
	Service         string
	ServiceUsername string
}

func (k RecordKey) Validate() error {
	switch {
	case k.AppUsername == "":
		return fmt.Errorf("%w: empty app username", common.ErrValidation)
	case k.Service == "":
		return fmt.Errorf("%w: empty service", common.ErrValidation)
	case k.ServiceUsername == "":
		return fmt.Errorf("%w: empty service username", common.ErrValidation)
	}
	return nil
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.AppUsername, k.Service, k.ServiceUsername)
}

// Credential is a decrypted PasswordRecord as handed back to callers.
type Credential struct {
	Service         string    `json:"service"`
	ServiceUsername string    `json:"username"`
	Password        string    `json:"password"`
	LastRotated     time.Time `json:"last_rotated"`
}
