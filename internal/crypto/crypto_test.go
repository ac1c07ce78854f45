package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	encrypted, err := e.Encrypt("sk-secret-credential")
	require.NoError(t, err)
	assert.NotEqual(t, "sk-secret-credential", encrypted)

	decrypted, err := e.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-credential", decrypted)
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	first, err := e.Encrypt("same input")
	require.NoError(t, err)
	second, err := e.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestNewEncryptorInvalidKey(t *testing.T) {
	_, err := NewEncryptor("too-short")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPassThroughWithoutKey(t *testing.T) {
	e, err := NewEncryptor("")
	require.NoError(t, err)

	encrypted, err := e.Encrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", encrypted)

	decrypted, err := e.Decrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", decrypted)
}

func TestDecryptLegacyPlaintext(t *testing.T) {
	e, err := NewEncryptor(testKey)
	require.NoError(t, err)

	// Data stored before encryption was enabled comes back unchanged.
	decrypted, err := e.Decrypt("not-base64!!")
	require.NoError(t, err)
	assert.Equal(t, "not-base64!!", decrypted)
}
