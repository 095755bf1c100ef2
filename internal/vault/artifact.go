package vault

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// ArtifactMagic identifies an encrypted backup artifact
	ArtifactMagic = "HRCB"

	// FormatVersion is the container version this engine writes and the
	// newest one it reads
	FormatVersion uint8 = 1

	// HeaderLength is the fixed byte length of the artifact header:
	// magic, format version, salt, nonce, KDF parameter block
	HeaderLength = 4 + 1 + SaltLength + NonceLength + kdfParamBlockLength

	// ArtifactExtension is the file extension backups are written with.
	// Retention pruning only ever touches files carrying it.
	ArtifactExtension = ".hrvault"

	tempFilePattern = ".hrvault-*.tmp"
)

// Header is the fixed-width artifact preamble. Its marshaled bytes double as
// the AEAD associated data, binding the ciphertext to the exact container
// that framed it.
type Header struct {
	FormatVersion uint8
	Salt          []byte
	Nonce         []byte
	KDF           KDFParams
}

// NewHeader builds a current-version header from freshly generated material
func NewHeader(salt, nonce []byte, params KDFParams) (*Header, error) {
	if len(salt) != SaltLength {
		return nil, NewValidationError(
			fmt.Sprintf("salt must be %d bytes, got %d", SaltLength, len(salt)), nil)
	}
	if len(nonce) != NonceLength {
		return nil, NewValidationError(
			fmt.Sprintf("nonce must be %d bytes, got %d", NonceLength, len(nonce)), nil)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Header{
		FormatVersion: FormatVersion,
		Salt:          salt,
		Nonce:         nonce,
		KDF:           params,
	}, nil
}

// MarshalBinary renders the fixed HeaderLength-byte form
func (h *Header) MarshalBinary() []byte {
	buf := make([]byte, 0, HeaderLength)
	buf = append(buf, ArtifactMagic...)
	buf = append(buf, h.FormatVersion)
	buf = append(buf, h.Salt...)
	buf = append(buf, h.Nonce...)
	block := h.KDF.Pack()
	buf = append(buf, block[:]...)
	return buf
}

// ParseHeader parses and validates the fixed header fields. Unknown magic and
// unsupported format versions are rejected here, before any cryptographic
// work happens.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderLength {
		return nil, NewFormatError(
			fmt.Sprintf("file is %d bytes, too short to be a backup artifact", len(data)), nil)
	}
	if !bytes.Equal(data[:4], []byte(ArtifactMagic)) {
		return nil, NewFormatError("file is not a backup artifact", nil)
	}
	version := data[4]
	if version == 0 || version > FormatVersion {
		return nil, NewFormatError(
			fmt.Sprintf("unsupported artifact format version %d (newest supported is %d)",
				version, FormatVersion), nil).
			WithContext("format_version", version)
	}

	salt := make([]byte, SaltLength)
	copy(salt, data[5:5+SaltLength])
	nonce := make([]byte, NonceLength)
	copy(nonce, data[5+SaltLength:5+SaltLength+NonceLength])

	var block [kdfParamBlockLength]byte
	copy(block[:], data[HeaderLength-kdfParamBlockLength:HeaderLength])
	params, err := UnpackKDFParams(block)
	if err != nil {
		return nil, NewFormatError("invalid key derivation parameter block", err)
	}

	return &Header{
		FormatVersion: version,
		Salt:          salt,
		Nonce:         nonce,
		KDF:           params,
	}, nil
}

// ArtifactWriter persists a framed artifact as a single file
type ArtifactWriter struct{}

// NewArtifactWriter creates an artifact writer
func NewArtifactWriter() *ArtifactWriter {
	return &ArtifactWriter{}
}

// Write stages the artifact in a temporary file beside the destination and
// renames it into place only once every byte, trailing tag included, is on
// disk. Failure or cancellation removes the temporary file; the destination
// path never holds a half-written artifact.
func (w *ArtifactWriter) Write(ctx context.Context, path string, header *Header, ciphertext []byte) (int64, error) {
	if path == "" {
		return 0, NewValidationError("destination path must not be empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, NewIoError("failed to create destination directory", err).
			WithContext("path", dir)
	}

	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return 0, NewIoError("failed to create temporary artifact file", err).
			WithContext("path", dir)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	headerBytes := header.MarshalBinary()
	if _, err := tmp.Write(headerBytes); err != nil {
		tmp.Close()
		return 0, NewIoError("failed to write artifact header", err).
			WithContext("path", tmpPath)
	}
	if _, err := tmp.Write(ciphertext); err != nil {
		tmp.Close()
		return 0, NewIoError("failed to write artifact payload", err).
			WithContext("path", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, NewIoError("failed to flush artifact to disk", err).
			WithContext("path", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return 0, NewIoError("failed to close temporary artifact file", err).
			WithContext("path", tmpPath)
	}

	// A cancellation arriving before the rename still discards everything
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return 0, NewIoError("failed to move artifact into place", err).
			WithContext("path", path)
	}

	return int64(len(headerBytes) + len(ciphertext)), nil
}

// ArtifactReader loads and frames an artifact file
type ArtifactReader struct{}

// NewArtifactReader creates an artifact reader
func NewArtifactReader() *ArtifactReader {
	return &ArtifactReader{}
}

// Read loads the whole artifact, validates the header, and hands back the
// parsed header, the raw header bytes (the AEAD associated data), and the
// ciphertext.
func (r *ArtifactReader) Read(path string) (*Header, []byte, []byte, error) {
	if path == "" {
		return nil, nil, nil, NewValidationError("source path must not be empty", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, NewIoError("failed to read artifact", err).
			WithContext("path", path)
	}

	header, err := ParseHeader(data)
	if err != nil {
		return nil, nil, nil, err
	}

	if len(data) < HeaderLength+TagLength {
		return nil, nil, nil, NewFormatError(
			"artifact is too short to hold an authentication tag", nil)
	}

	return header, data[:HeaderLength], data[HeaderLength:], nil
}
