package cryptox

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	c, err := NewCipher(key)
	require.NoError(t, err)
	return c
}

func TestCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plain := range []string{"hunter2", "", "пароль-🔑", strings.Repeat("x", 4096)} {
		token, err := c.EncryptString(plain)
		require.NoError(t, err)

		got, err := c.DecryptString(token)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestCipher_FreshNoncePerMessage(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.EncryptString("same")
	require.NoError(t, err)
	b, err := c.EncryptString("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCipher_TokenIsURLSafeText(t *testing.T) {
	c := newTestCipher(t)
	token, err := c.EncryptString("pw")
	require.NoError(t, err)

	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")
}

func TestCipher_TamperedTokenRejected(t *testing.T) {
	c := newTestCipher(t)
	token, err := c.EncryptString("secret")
	require.NoError(t, err)

	raw, err := encoding.DecodeString(token)
	require.NoError(t, err)

	for i := range raw {
		flipped := bytes.Clone(raw)
		flipped[i] ^= 0x01
		_, err := c.Decrypt(encoding.EncodeToString(flipped))
		require.ErrorIs(t, err, common.ErrInvalidCiphertext, "byte %d", i)
	}
}

func TestCipher_WrongKeyRejected(t *testing.T) {
	a := newTestCipher(t)
	b := newTestCipher(t)

	token, err := a.EncryptString("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(token)
	require.ErrorIs(t, err, common.ErrInvalidCiphertext)
}

func TestCipher_MalformedInput(t *testing.T) {
	c := newTestCipher(t)

	for _, in := range []string{"", "not base64 !!", "AQ", encoding.EncodeToString(make([]byte, 40))} {
		_, err := c.Decrypt(in)
		require.ErrorIs(t, err, common.ErrInvalidCiphertext, "input %q", in)
	}
}

func TestNewCipher_KeyLength(t *testing.T) {
	_, err := NewCipher(make([]byte, 16))
	require.ErrorIs(t, err, common.ErrInvalidKey)

	_, err = NewCipher(make([]byte, KeySize))
	require.NoError(t, err)
}

func TestEncodeDecodeKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	got, err := DecodeKey(EncodeKey(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = DecodeKey("%%%")
	require.ErrorIs(t, err, common.ErrInvalidKey)

	_, err = DecodeKey(EncodeKey([]byte("short")))
	require.ErrorIs(t, err, common.ErrInvalidKey)
}
