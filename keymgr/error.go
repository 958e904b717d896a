package keymgr

import (
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific KeyringError.
const (
	// ErrNilArgument indicates a required argument was nil.
	ErrNilArgument ErrorCode = iota

	// ErrInvalidArgument indicates an argument was present but
	// malformed, such as a zero-length passphrase or entropy buffer.
	ErrInvalidArgument

	// ErrAllocFailed indicates an operation would exceed the codec's
	// hard size limits and the required buffer cannot be produced.
	ErrAllocFailed

	// ErrWrongPassphrase indicates the passphrase callback declined to
	// provide a passphrase, or the provided passphrase failed to
	// authenticate the stored ciphertext.  A wrong passphrase and a
	// tampered ciphertext are indistinguishable at this layer.
	ErrWrongPassphrase

	// ErrInvalidMagic indicates a serialized envelope did not start with
	// the expected magic marker and is not one of ours.
	ErrInvalidMagic

	// ErrDecode indicates a serialized envelope was structurally
	// malformed: an unsupported version, an unknown variant tag, or a
	// truncated field.
	ErrDecode

	// ErrOutOfBounds indicates a serialized envelope declared a
	// ciphertext length extending past the end of the supplied buffer.
	ErrOutOfBounds

	// ErrChecksumMismatch indicates a structurally valid envelope failed
	// its trailing integrity checksum.
	ErrChecksumMismatch

	// ErrCrypto indicates a generic failure in one of the underlying
	// cryptographic primitives.
	ErrCrypto
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errCodeStrings = map[ErrorCode]string{
	ErrNilArgument:      "ErrNilArgument",
	ErrInvalidArgument:  "ErrInvalidArgument",
	ErrAllocFailed:      "ErrAllocFailed",
	ErrWrongPassphrase:  "ErrWrongPassphrase",
	ErrInvalidMagic:     "ErrInvalidMagic",
	ErrDecode:           "ErrDecode",
	ErrOutOfBounds:      "ErrOutOfBounds",
	ErrChecksumMismatch: "ErrChecksumMismatch",
	ErrCrypto:           "ErrCrypto",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// KeyringError provides a single type for errors that can occur in the
// keymgr package.  The ErrorCode field can be inspected by callers to
// determine the specific reason for the error, which matters for the
// envelope codec where "not our format", "corrupted file", and "wrong
// password" call for different remediation.
type KeyringError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e KeyringError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e KeyringError) Unwrap() error {
	return e.Err
}

// keyringError creates a KeyringError given a set of arguments.
func keyringError(c ErrorCode, desc string, err error) KeyringError {
	return KeyringError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a KeyringError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	e, ok := err.(KeyringError)
	return ok && e.ErrorCode == code
}