// Package cryptox implements the authenticated symmetric cipher that protects
// stored service passwords.
//
// Ciphertexts are self-contained text tokens:
//
//	base64url( version(1) || nonce(24) || XChaCha20-Poly1305(plaintext) )
//
// A fresh random nonce is drawn for every message, so encrypting the same
// plaintext twice yields different tokens.
package cryptox

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required key length in bytes.
const KeySize = chacha20poly1305.KeySize

const formatVersion byte = 1

var encoding = base64.RawURLEncoding

// Cipher encrypts and decrypts with one immutable key. It is safe for
// concurrent use and keeps no plaintext.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher binds a Cipher to key, which must be KeySize bytes long.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", common.ErrInvalidKey, len(key), KeySize)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidKey, err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns the text token.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonceSize := c.aead.NonceSize()

	buf := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+c.aead.Overhead())
	buf[0] = formatVersion
	if _, err := rand.Read(buf[1:]); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	buf = c.aead.Seal(buf, buf[1:1+nonceSize], plaintext, buf[:1])
	return encoding.EncodeToString(buf), nil
}

// Decrypt opens a token produced by Encrypt with the same key. Malformed,
// truncated or tampered input and a wrong key all yield
// common.ErrInvalidCiphertext.
func (c *Cipher) Decrypt(token string) ([]byte, error) {
	raw, err := encoding.DecodeString(token)
	if err != nil {
		return nil, common.ErrInvalidCiphertext
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < 1+nonceSize+c.aead.Overhead() || raw[0] != formatVersion {
		return nil, common.ErrInvalidCiphertext
	}

	plaintext, err := c.aead.Open(nil, raw[1:1+nonceSize], raw[1+nonceSize:], raw[:1])
	if err != nil {
		return nil, common.ErrInvalidCiphertext
	}
	return plaintext, nil
}

// EncryptString is Encrypt for string plaintexts.
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	return c.Encrypt([]byte(plaintext))
}

// DecryptString is Decrypt returning a string.
func (c *Cipher) DecryptString(token string) (string, error) {
	b, err := c.Decrypt(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GenerateKey returns a fresh random key of KeySize bytes.
func GenerateKey() ([]byte, error) {
	return common.GenerateRandByteArray(KeySize)
}

// EncodeKey renders a key for text storage (standard base64).
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKey parses a key produced by EncodeKey and checks its length.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", common.ErrInvalidKey, len(key), KeySize)
	}
	return key, nil
}
