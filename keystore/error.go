package keystore

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific StoreError.
const (
	// ErrDatabase indicates a generic error from the underlying
	// database.
	ErrDatabase ErrorCode = iota

	// ErrNotFound indicates no envelope is stored under the requested
	// name.
	ErrNotFound

	// ErrAlreadyExists indicates an envelope is already stored under the
	// requested name.
	ErrAlreadyExists

	// ErrInvalidName indicates an empty handler name.
	ErrInvalidName
)

var errCodeStrings = map[ErrorCode]string{
	ErrDatabase:      "ErrDatabase",
	ErrNotFound:      "ErrNotFound",
	ErrAlreadyExists: "ErrAlreadyExists",
	ErrInvalidName:   "ErrInvalidName",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// StoreError provides a single type for errors that can occur in the
// keystore package.
type StoreError struct {
	ErrorCode   ErrorCode
	Description string
	Err         error
}

// Error satisfies the error interface and prints human-readable errors.
func (e StoreError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e StoreError) Unwrap() error {
	return e.Err
}

// storeError creates a StoreError given a set of arguments.
func storeError(c ErrorCode, desc string, err error) StoreError {
	return StoreError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a StoreError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	e, ok := err.(StoreError)
	return ok && e.ErrorCode == code
}

// maybeConvertDbError converts the passed error to a StoreError with an
// error code of ErrDatabase if it is not already a StoreError.  This is
// useful for potential errors returned from managed database transactions.
func maybeConvertDbError(err error) error {
	if _, ok := err.(StoreError); ok {
		return err
	}
	return storeError(ErrDatabase, err.Error(), err)
}
