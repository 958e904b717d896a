package keysvc

import (
	"github.com/adasuite/adawallet/keymgr"
	"github.com/adasuite/adawallet/keystore"
)

// RPCError is the error payload of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error satisfies the error interface.
func (e *RPCError) Error() string {
	return e.Message
}

// JSON-RPC error codes, following the reference wallet numbering.
const (
	ErrRPCInvalidRequest   = -32600
	ErrRPCMethodNotFound   = -32601
	ErrRPCInvalidParameter = -8
	ErrRPCWallet           = -4
	ErrRPCWalletPassphrase = -14
	ErrRPCDeserialization  = -22
)

var errInvalidRequest = &RPCError{
	Code:    ErrRPCInvalidRequest,
	Message: "Invalid request",
}

var errMethodNotFound = &RPCError{
	Code:    ErrRPCMethodNotFound,
	Message: "Method not found",
}

// convertError maps errors from the key handler and the keystore onto
// JSON-RPC errors so clients can pattern-match on the code: wrong
// passphrase, malformed envelope, and missing handler are three different
// remediation paths.
func convertError(err error) *RPCError {
	if rpcErr, ok := err.(*RPCError); ok {
		return rpcErr
	}

	if keyErr, ok := err.(keymgr.KeyringError); ok {
		switch keyErr.ErrorCode {
		case keymgr.ErrWrongPassphrase:
			return &RPCError{
				Code:    ErrRPCWalletPassphrase,
				Message: "The key handler passphrase entered was incorrect",
			}
		case keymgr.ErrNilArgument, keymgr.ErrInvalidArgument:
			return &RPCError{
				Code:    ErrRPCInvalidParameter,
				Message: keyErr.Error(),
			}
		case keymgr.ErrInvalidMagic, keymgr.ErrDecode,
			keymgr.ErrOutOfBounds, keymgr.ErrChecksumMismatch:

			return &RPCError{
				Code:    ErrRPCDeserialization,
				Message: keyErr.Error(),
			}
		}
	}

	if storeErr, ok := err.(keystore.StoreError); ok {
		return &RPCError{
			Code:    ErrRPCWallet,
			Message: storeErr.Error(),
		}
	}

	return &RPCError{Code: ErrRPCWallet, Message: err.Error()}
}
