package vault

import (
	"errors"
	"fmt"
)

// VaultError represents errors that occur during export and import operations
type VaultError struct {
	Type    VaultErrorType         `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *VaultError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *VaultError) Unwrap() error {
	return e.Cause
}

// VaultErrorType represents different types of vault errors
type VaultErrorType string

const (
	ErrorTypeValidation         VaultErrorType = "VALIDATION_ERROR"
	ErrorTypeIo                 VaultErrorType = "IO_ERROR"
	ErrorTypeCollection         VaultErrorType = "COLLECTION_ERROR"
	ErrorTypeCompression        VaultErrorType = "COMPRESSION_ERROR"
	ErrorTypeCorruption         VaultErrorType = "CORRUPTION_ERROR"
	ErrorTypeKeyDerivation      VaultErrorType = "KEY_DERIVATION_ERROR"
	ErrorTypeEncryption         VaultErrorType = "ENCRYPTION_ERROR"
	ErrorTypeAuthentication     VaultErrorType = "AUTHENTICATION_ERROR"
	ErrorTypeFormat             VaultErrorType = "FORMAT_ERROR"
	ErrorTypeUnsupportedVersion VaultErrorType = "UNSUPPORTED_VERSION_ERROR"
	ErrorTypeRestore            VaultErrorType = "RESTORE_ERROR"
	ErrorTypeBusy               VaultErrorType = "BUSY_ERROR"
)

// NewVaultError creates a new VaultError
func NewVaultError(errorType VaultErrorType, message string, cause error) *VaultError {
	return &VaultError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *VaultError) WithContext(key string, value interface{}) *VaultError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Common error constructors
func NewValidationError(message string, cause error) *VaultError {
	return NewVaultError(ErrorTypeValidation, message, cause)
}

func NewIoError(message string, cause error) *VaultError {
	return NewVaultError(ErrorTypeIo, message, cause)
}

func NewCollectionError(message string, cause error) *VaultError {
	return NewVaultError(ErrorTypeCollection, message, cause)
}

func NewCompressionError(message string, cause error) *VaultError {
	return NewVaultError(ErrorTypeCompression, message, cause)
}

func NewCorruptionError(message string, cause error) *VaultError {
	return NewVaultError(ErrorTypeCorruption, message, cause)
}

func NewKeyDerivationError(message string, cause error) *VaultError {
	return NewVaultError(ErrorTypeKeyDerivation, message, cause)
}

func NewEncryptionError(message string, cause error) *VaultError {
	return NewVaultError(ErrorTypeEncryption, message, cause)
}

func NewAuthenticationError(message string, cause error) *VaultError {
	return NewVaultError(ErrorTypeAuthentication, message, cause)
}

func NewFormatError(message string, cause error) *VaultError {
	return NewVaultError(ErrorTypeFormat, message, cause)
}

func NewUnsupportedVersionError(message string, cause error) *VaultError {
	return NewVaultError(ErrorTypeUnsupportedVersion, message, cause)
}

func NewRestoreError(message string, cause error) *VaultError {
	return NewVaultError(ErrorTypeRestore, message, cause)
}

func NewBusyError(message string, cause error) *VaultError {
	return NewVaultError(ErrorTypeBusy, message, cause)
}

// TypeOf returns the vault error type of err, unwrapping as needed.
// It returns an empty type when err is not a VaultError.
func TypeOf(err error) VaultErrorType {
	var vaultErr *VaultError
	if errors.As(err, &vaultErr) {
		return vaultErr.Type
	}
	return ""
}

// IsType reports whether err is a VaultError of the given type
func IsType(err error, errorType VaultErrorType) bool {
	return TypeOf(err) == errorType
}

// IsRetryable determines if an error is worth retrying
func IsRetryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeIo, ErrorTypeCollection, ErrorTypeBusy:
		return true
	default:
		return false
	}
}

// IsPermanent determines if an error is permanent and should not be retried
func IsPermanent(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeValidation, ErrorTypeAuthentication, ErrorTypeFormat,
		ErrorTypeUnsupportedVersion, ErrorTypeCorruption:
		return true
	default:
		return false
	}
}
