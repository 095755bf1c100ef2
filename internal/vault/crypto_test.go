package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyAndNonce(t *testing.T) ([]byte, []byte) {
	t.Helper()

	key, err := GenerateSecureRandomBytes(KeyLength)
	require.NoError(t, err)
	nonce, err := GenerateSecureRandomBytes(NonceLength)
	require.NoError(t, err)
	return key, nonce
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key, nonce := testKeyAndNonce(t)
	plaintext := []byte(`{"schema_version":1,"tables":[]}`)
	associatedData := []byte("header bytes bound into the tag")

	ciphertext, err := Seal(key, nonce, plaintext, associatedData)
	require.NoError(t, err)
	assert.Len(t, ciphertext, len(plaintext)+TagLength)
	assert.NotContains(t, string(ciphertext), "schema_version")

	opened, err := Open(key, nonce, ciphertext, associatedData)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpen_WrongKey(t *testing.T) {
	key, nonce := testKeyAndNonce(t)
	ciphertext, err := Seal(key, nonce, []byte("payload"), []byte("aad"))
	require.NoError(t, err)

	wrongKey, err := GenerateSecureRandomBytes(KeyLength)
	require.NoError(t, err)

	plaintext, err := Open(wrongKey, nonce, ciphertext, []byte("aad"))
	assert.Nil(t, plaintext)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeAuthentication))
}

func TestOpen_TamperedCiphertext(t *testing.T) {
	key, nonce := testKeyAndNonce(t)
	ciphertext, err := Seal(key, nonce, []byte("sensitive payload"), []byte("aad"))
	require.NoError(t, err)

	// Any single flipped bit, tag bytes included, must fail authentication
	for i := range ciphertext {
		tampered := make([]byte, len(ciphertext))
		copy(tampered, ciphertext)
		tampered[i] ^= 0x01

		plaintext, err := Open(key, nonce, tampered, []byte("aad"))
		assert.Nil(t, plaintext, "byte %d", i)
		assert.True(t, IsType(err, ErrorTypeAuthentication), "byte %d: %v", i, err)
	}
}

func TestOpen_TamperedAssociatedData(t *testing.T) {
	key, nonce := testKeyAndNonce(t)
	ciphertext, err := Seal(key, nonce, []byte("payload"), []byte("original header"))
	require.NoError(t, err)

	_, err = Open(key, nonce, ciphertext, []byte("altered header!"))
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeAuthentication))
}

func TestSeal_InvalidLengths(t *testing.T) {
	key, nonce := testKeyAndNonce(t)

	t.Run("short key", func(t *testing.T) {
		_, err := Seal(key[:16], nonce, []byte("data"), nil)
		require.Error(t, err)
		assert.True(t, IsType(err, ErrorTypeEncryption))
	})

	t.Run("short nonce", func(t *testing.T) {
		_, err := Seal(key, nonce[:8], []byte("data"), nil)
		require.Error(t, err)
		assert.True(t, IsType(err, ErrorTypeEncryption))
	})
}

func TestSeal_EmptyPlaintext(t *testing.T) {
	key, nonce := testKeyAndNonce(t)

	ciphertext, err := Seal(key, nonce, nil, []byte("aad"))
	require.NoError(t, err)
	assert.Len(t, ciphertext, TagLength)

	opened, err := Open(key, nonce, ciphertext, []byte("aad"))
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestGenerateSecureRandomBytes(t *testing.T) {
	first, err := GenerateSecureRandomBytes(SaltLength)
	require.NoError(t, err)
	assert.Len(t, first, SaltLength)

	second, err := GenerateSecureRandomBytes(SaltLength)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestZeroBytes(t *testing.T) {
	buf := []byte("sensitive key material")
	ZeroBytes(buf)

	for i, b := range buf {
		assert.Zero(t, b, "byte %d not scrubbed", i)
	}
}
