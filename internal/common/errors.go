// Package common defines shared constants and sentinel errors used across
// the vault core, its storage backends and the transports. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrMalformedRecord is returned when persisted data does not match the
	// fixed record schema. Partial rows are never handed to callers.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrStorageUnavailable wraps every failure to read or write the
	// persistence medium (disk, database, object storage).
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Service-level errors.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrValidation     = errors.New("validation error")

	// Second factor errors.
	ErrDuplicateUser = errors.New("username already registered")
	ErrUserNotFound  = errors.New("user not found")

	// Crypto errors. ErrInvalidCiphertext comes from the cipher itself,
	// ErrDecryptionFailed is what the credential store reports for a stored
	// record that did not verify.
	ErrInvalidKey        = errors.New("invalid encryption key")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
