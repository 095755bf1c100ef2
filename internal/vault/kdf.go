package vault

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// SaltLength is the fixed salt size carried in the artifact header
	SaltLength = 16

	// KeyLength is the derived key size, matching a 256-bit cipher
	KeyLength = 32

	// DefaultMaxKDFMemoryMiB caps the memory cost an imported artifact may
	// demand before derivation is refused
	DefaultMaxKDFMemoryMiB uint32 = 1024

	kdfParamBlockLength = 4
)

// DefaultKDFParams returns the cost parameters used for new exports
func DefaultKDFParams() KDFParams {
	return KDFParams{
		TimeCost:    3,
		MemoryMiB:   64,
		Parallelism: 4,
	}
}

// KDFParams are the Argon2id cost parameters. They pack into four header
// bytes and travel with the artifact, so older artifacts stay decryptable
// after the defaults are retuned.
type KDFParams struct {
	TimeCost    uint8  `json:"time_cost" yaml:"time_cost"`
	MemoryMiB   uint16 `json:"memory_mib" yaml:"memory_mib"`
	Parallelism uint8  `json:"parallelism" yaml:"parallelism"`
}

// Validate checks the parameters are usable
func (p KDFParams) Validate() error {
	if p.TimeCost == 0 {
		return NewValidationError("kdf time cost must be at least 1", nil)
	}
	if p.MemoryMiB == 0 {
		return NewValidationError("kdf memory cost must be at least 1 MiB", nil)
	}
	if p.Parallelism == 0 {
		return NewValidationError("kdf parallelism must be at least 1", nil)
	}
	return nil
}

// Pack serializes the parameters into the fixed-width header block:
// time cost, memory cost in MiB (big-endian uint16), parallelism
func (p KDFParams) Pack() [kdfParamBlockLength]byte {
	var block [kdfParamBlockLength]byte
	block[0] = p.TimeCost
	binary.BigEndian.PutUint16(block[1:3], p.MemoryMiB)
	block[3] = p.Parallelism
	return block
}

// UnpackKDFParams parses a header parameter block
func UnpackKDFParams(block [kdfParamBlockLength]byte) (KDFParams, error) {
	params := KDFParams{
		TimeCost:    block[0],
		MemoryMiB:   binary.BigEndian.Uint16(block[1:3]),
		Parallelism: block[3],
	}
	if err := params.Validate(); err != nil {
		return KDFParams{}, err
	}
	return params, nil
}

// KeyDeriver turns a password and salt into a fixed-length symmetric key
// using Argon2id. Incorrect passwords are not detectable here; they surface
// later as authentication failures.
type KeyDeriver struct {
	maxMemoryMiB uint32
}

// NewKeyDeriver creates a key deriver. maxMemoryMiB caps the memory cost an
// artifact header may request; zero means no ceiling.
func NewKeyDeriver(maxMemoryMiB uint32) *KeyDeriver {
	return &KeyDeriver{maxMemoryMiB: maxMemoryMiB}
}

// DeriveKey derives a KeyLength-byte key. The caller owns the returned slice
// and must zero it once the consuming stage completes.
func (kd *KeyDeriver) DeriveKey(password []byte, salt []byte, params KDFParams) ([]byte, error) {
	if len(password) == 0 {
		return nil, NewValidationError("password must not be empty", nil)
	}
	if len(salt) != SaltLength {
		return nil, NewValidationError(
			fmt.Sprintf("salt must be %d bytes, got %d", SaltLength, len(salt)), nil)
	}
	if err := params.Validate(); err != nil {
		return nil, NewKeyDerivationError("invalid key derivation parameters", err)
	}
	// The ceiling converts a hopeless allocation into a clean failure before
	// Argon2 attempts it.
	if kd.maxMemoryMiB > 0 && uint32(params.MemoryMiB) > kd.maxMemoryMiB {
		return nil, NewKeyDerivationError(
			fmt.Sprintf("artifact requests %d MiB for key derivation, ceiling is %d MiB",
				params.MemoryMiB, kd.maxMemoryMiB), nil).
			WithContext("memory_mib", params.MemoryMiB).
			WithContext("max_memory_mib", kd.maxMemoryMiB)
	}

	key := argon2.IDKey(password, salt,
		uint32(params.TimeCost),
		uint32(params.MemoryMiB)*1024,
		params.Parallelism,
		KeyLength)
	return key, nil
}
