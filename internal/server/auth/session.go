package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// Sessions issues access tokens after a successful TOTP check and
// authorizes later requests against them.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

func NewSessions(secretKey string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secretKey), ttl: ttl}
}

// Issue returns a token proving username passed its second factor.
func (s *Sessions) Issue(username string) (string, error) {
	return GenerateToken(username, s.secret, s.ttl)
}

// Authorize checks that token is valid and was issued to appUsername.
func (s *Sessions) Authorize(token, appUsername string) error {
	if token == "" {
		return fmt.Errorf("%w: missing access token", common.ErrorUnauthorized)
	}
	username, err := GetUsernameFromToken(token, s.secret)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	if username != appUsername {
		return fmt.Errorf("%w: token belongs to another user", common.ErrorUnauthorized)
	}
	return nil
}
