package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"runtime"
)

const (
	// NonceLength is the GCM nonce size carried in the artifact header
	NonceLength = 12

	// TagLength is the GCM authentication tag trailing the ciphertext
	TagLength = 16
)

// Seal encrypts plaintext under key with AES-256-GCM. The associated data
// (the full artifact header) is bound into the authentication tag, so
// flipping any header byte invalidates the artifact.
func Seal(key, nonce, plaintext, associatedData []byte) ([]byte, error) {
	gcm, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, associatedData), nil
}

// Open authenticates and decrypts a sealed payload. It fails with an
// AuthenticationError whenever the tag does not verify; a wrong password and
// a tampered artifact are indistinguishable here, and no plaintext, partial
// or otherwise, is ever returned on that path.
func Open(key, nonce, ciphertext, associatedData []byte) ([]byte, error) {
	gcm, err := newGCM(key, nonce)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, NewAuthenticationError(
			"artifact failed authentication: wrong password or corrupted file", err)
	}
	return plaintext, nil
}

func newGCM(key, nonce []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, NewEncryptionError(
			fmt.Sprintf("key must be %d bytes, got %d", KeyLength, len(key)), nil)
	}
	if len(nonce) != NonceLength {
		return nil, NewEncryptionError(
			fmt.Sprintf("nonce must be %d bytes, got %d", NonceLength, len(nonce)), nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewEncryptionError("failed to initialize cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewEncryptionError("failed to initialize GCM", err)
	}
	return gcm, nil
}

// GenerateSecureRandomBytes returns n cryptographically secure random bytes
func GenerateSecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate %d random bytes: %w", n, err)
	}
	return b, nil
}

// ZeroBytes overwrites b in place. Keys, passwords, and intermediate
// plaintext buffers go through here as soon as their consuming stage
// completes.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
