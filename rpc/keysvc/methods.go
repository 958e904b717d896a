package keysvc

import (
	"encoding/hex"
	"encoding/json"

	"github.com/adasuite/adawallet/keymgr"
	"github.com/adasuite/adawallet/tx"
)

// requestHandler is a handler function to handle an unmarshaled and parsed
// request into a marshalable response.  If the error is a *RPCError, the
// error is returned to the client as-is, otherwise it is converted by
// convertError.
type requestHandler func(json.RawMessage, *Server) (interface{}, *RPCError)

var rpcHandlers = map[string]requestHandler{
	"createhandler":    createHandler,
	"deletehandler":    deleteHandler,
	"exporthandler":    exportHandler,
	"getaccountpubkey": getAccountPubKey,
	"importhandler":    importHandler,
	"listhandlers":     listHandlers,
	"signtransaction":  signTransaction,
}

// CreateHandlerRequest are the parameters of the createhandler method.
type CreateHandlerRequest struct {
	Name       string `json:"name"`
	Entropy    string `json:"entropy"`
	Passphrase string `json:"passphrase"`
}

// ImportHandlerRequest are the parameters of the importhandler method.
type ImportHandlerRequest struct {
	Name     string `json:"name"`
	Envelope string `json:"envelope"`
}

// NamedHandlerRequest are the parameters of methods addressing a stored
// handler by name alone.
type NamedHandlerRequest struct {
	Name string `json:"name"`
}

// ExportHandlerResponse is the result of the exporthandler method.
type ExportHandlerResponse struct {
	Envelope string `json:"envelope"`
}

// HandlerEntry is one stored handler in the listhandlers result.
type HandlerEntry struct {
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdat"`
}

// AccountPubKeyRequest are the parameters of the getaccountpubkey method.
type AccountPubKeyRequest struct {
	Name       string `json:"name"`
	Passphrase string `json:"passphrase"`
	Purpose    uint32 `json:"purpose"`
	CoinType   uint32 `json:"cointype"`
	Account    uint32 `json:"account"`
}

// AccountPubKeyResponse is the result of the getaccountpubkey method.
type AccountPubKeyResponse struct {
	ExtendedPublicKey string `json:"extendedpublickey"`
}

// SignPath is one derivation path of a signtransaction request.
type SignPath struct {
	Purpose  uint32 `json:"purpose"`
	CoinType uint32 `json:"cointype"`
	Account  uint32 `json:"account"`
	Role     uint32 `json:"role"`
	Index    uint32 `json:"index"`
}

// SignTransactionRequest are the parameters of the signtransaction method.
// Paths is ignored for handlers holding a single Ed25519 key.
type SignTransactionRequest struct {
	Name        string     `json:"name"`
	Passphrase  string     `json:"passphrase"`
	Transaction string     `json:"transaction"`
	Paths       []SignPath `json:"paths"`
}

// WitnessEntry is one verification key witness of a signtransaction
// result.
type WitnessEntry struct {
	PublicKey string `json:"publickey"`
	Signature string `json:"signature"`
}

// SignTransactionResponse is the result of the signtransaction method.
type SignTransactionResponse struct {
	TransactionID string         `json:"transactionid"`
	Witnesses     []WitnessEntry `json:"witnesses"`
}

// unmarshalParams decodes the raw parameter payload into the
// method-specific parameter struct.
func unmarshalParams(params json.RawMessage, req interface{}) *RPCError {
	if len(params) == 0 {
		return errInvalidRequest
	}
	if err := json.Unmarshal(params, req); err != nil {
		return &RPCError{
			Code:    ErrRPCInvalidParameter,
			Message: "malformed parameters: " + err.Error(),
		}
	}
	return nil
}

// provider wraps a request passphrase into a passphrase callback.
func provider(passphrase string) keymgr.PassphraseFunc {
	return func(buf []byte) (int, error) {
		return copy(buf, passphrase), nil
	}
}

// loadHandler fetches a stored envelope by name and deserializes it with
// the given passphrase callback.  Callers must Close the handler.
func loadHandler(s *Server, name string,
	fetch keymgr.PassphraseFunc) (*keymgr.KeyHandler, *RPCError) {

	envelope, err := s.store.Fetch(name)
	if err != nil {
		return nil, convertError(err)
	}

	handler, err := keymgr.Deserialize(envelope, fetch)
	if err != nil {
		return nil, convertError(err)
	}
	return handler, nil
}

// listHandlers handles the listhandlers method by returning the names and
// creation timestamps of all stored handlers.
func listHandlers(_ json.RawMessage, s *Server) (interface{}, *RPCError) {
	infos, err := s.store.List()
	if err != nil {
		return nil, convertError(err)
	}

	entries := make([]HandlerEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, HandlerEntry{
			Name:      info.Name,
			CreatedAt: info.CreatedAt.Unix(),
		})
	}
	return entries, nil
}

// createHandler handles the createhandler method by constructing a new
// hierarchical handler from hex wallet entropy, serializing it, and
// storing the envelope under the request name.
func createHandler(params json.RawMessage, s *Server) (interface{}, *RPCError) {
	var req CreateHandlerRequest
	if rpcErr := unmarshalParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}

	entropy, err := hex.DecodeString(req.Entropy)
	if err != nil {
		return nil, &RPCError{
			Code:    ErrRPCInvalidParameter,
			Message: "entropy is not valid hex: " + err.Error(),
		}
	}

	handler, err := keymgr.NewBip32(entropy, []byte(req.Passphrase),
		provider(req.Passphrase))
	if err != nil {
		return nil, convertError(err)
	}
	defer handler.Close()

	envelope, err := handler.Serialize()
	if err != nil {
		return nil, convertError(err)
	}

	if err := s.store.Put(req.Name, envelope); err != nil {
		return nil, convertError(err)
	}
	return nil, nil
}

// importHandler handles the importhandler method.  The hex envelope is
// structurally validated before it is stored; no passphrase is needed
// because validation never decrypts.
func importHandler(params json.RawMessage, s *Server) (interface{}, *RPCError) {
	var req ImportHandlerRequest
	if rpcErr := unmarshalParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}

	envelope, err := hex.DecodeString(req.Envelope)
	if err != nil {
		return nil, &RPCError{
			Code:    ErrRPCInvalidParameter,
			Message: "envelope is not valid hex: " + err.Error(),
		}
	}

	handler, err := keymgr.Deserialize(envelope, provider(""))
	if err != nil {
		return nil, convertError(err)
	}
	handler.Close()

	if err := s.store.Put(req.Name, envelope); err != nil {
		return nil, convertError(err)
	}
	return nil, nil
}

// exportHandler handles the exporthandler method by returning the stored
// envelope as hex.  The envelope is ciphertext; exporting it exposes no
// key material.
func exportHandler(params json.RawMessage, s *Server) (interface{}, *RPCError) {
	var req NamedHandlerRequest
	if rpcErr := unmarshalParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}

	envelope, err := s.store.Fetch(req.Name)
	if err != nil {
		return nil, convertError(err)
	}
	return ExportHandlerResponse{
		Envelope: hex.EncodeToString(envelope),
	}, nil
}

// deleteHandler handles the deletehandler method.
func deleteHandler(params json.RawMessage, s *Server) (interface{}, *RPCError) {
	var req NamedHandlerRequest
	if rpcErr := unmarshalParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}

	if err := s.store.Delete(req.Name); err != nil {
		return nil, convertError(err)
	}
	return nil, nil
}

// getAccountPubKey handles the getaccountpubkey method by deriving the
// account-level extended public key of a stored hierarchical handler.
func getAccountPubKey(params json.RawMessage, s *Server) (interface{}, *RPCError) {
	var req AccountPubKeyRequest
	if rpcErr := unmarshalParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}

	handler, rpcErr := loadHandler(s, req.Name, provider(req.Passphrase))
	if rpcErr != nil {
		return nil, rpcErr
	}
	defer handler.Close()

	accountPub, err := handler.AccountPublicKey(keymgr.AccountPath{
		Purpose:  req.Purpose,
		CoinType: req.CoinType,
		Account:  req.Account,
	})
	if err != nil {
		return nil, convertError(err)
	}
	return AccountPubKeyResponse{
		ExtendedPublicKey: hex.EncodeToString(accountPub.Bytes()),
	}, nil
}

// signTransaction handles the signtransaction method.  The hex
// transaction body is hashed, signed by the stored handler, and the
// resulting verification key witnesses are returned as hex pairs.  The
// handler variant selects the signing strategy: hierarchical handlers
// sign once per request path, single-key handlers produce exactly one
// witness.
func signTransaction(params json.RawMessage, s *Server) (interface{}, *RPCError) {
	var req SignTransactionRequest
	if rpcErr := unmarshalParams(params, &req); rpcErr != nil {
		return nil, rpcErr
	}

	body, err := hex.DecodeString(req.Transaction)
	if err != nil {
		return nil, &RPCError{
			Code:    ErrRPCInvalidParameter,
			Message: "transaction is not valid hex: " + err.Error(),
		}
	}

	handler, rpcErr := loadHandler(s, req.Name, provider(req.Passphrase))
	if rpcErr != nil {
		return nil, rpcErr
	}
	defer handler.Close()

	transaction := tx.NewRawTransaction(body)

	var set *tx.VKeyWitnessSet
	if handler.Variant() == keymgr.VariantBip32 {
		paths := make([]keymgr.DerivationPath, 0, len(req.Paths))
		for _, p := range req.Paths {
			paths = append(paths, keymgr.DerivationPath{
				Purpose:  p.Purpose,
				CoinType: p.CoinType,
				Account:  p.Account,
				Role:     p.Role,
				Index:    p.Index,
			})
		}
		set, err = handler.SignBip32(transaction, paths)
	} else {
		set, err = handler.SignEd25519(transaction)
	}
	if err != nil {
		return nil, convertError(err)
	}

	id, err := transaction.ID()
	if err != nil {
		return nil, convertError(err)
	}

	witnesses := make([]WitnessEntry, 0, set.Len())
	for i := 0; i < set.Len(); i++ {
		w := set.At(i)
		witnesses = append(witnesses, WitnessEntry{
			PublicKey: hex.EncodeToString(w.PubKey),
			Signature: hex.EncodeToString(w.Signature),
		})
	}
	return SignTransactionResponse{
		TransactionID: hex.EncodeToString(id[:]),
		Witnesses:     witnesses,
	}, nil
}
