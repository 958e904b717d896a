package keysvc

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/adasuite/adawallet/keymgr"
	"github.com/adasuite/adawallet/keystore"
)

var testEntropyHex = hex.EncodeToString(bytes.Repeat([]byte{0x5a}, 33))

func testServer(t *testing.T) *Server {
	t.Helper()

	store, err := keystore.Open(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return NewServer(store)
}

func marshalParams(t *testing.T, req interface{}) json.RawMessage {
	t.Helper()

	params, err := json.Marshal(req)
	require.NoError(t, err)
	return params
}

func createTestHandler(t *testing.T, s *Server, name string) {
	t.Helper()

	params := marshalParams(t, CreateHandlerRequest{
		Name:       name,
		Entropy:    testEntropyHex,
		Passphrase: "hunter2",
	})
	_, rpcErr := createHandler(params, s)
	require.Nil(t, rpcErr)
}

func TestCreateAndListHandlers(t *testing.T) {
	s := testServer(t)

	createTestHandler(t, s, "payments")
	createTestHandler(t, s, "staking")

	result, rpcErr := listHandlers(nil, s)
	require.Nil(t, rpcErr)

	entries := result.([]HandlerEntry)
	require.Len(t, entries, 2)
	require.Equal(t, "payments", entries[0].Name)
	require.Equal(t, "staking", entries[1].Name)
}

func TestCreateHandlerBadEntropy(t *testing.T) {
	s := testServer(t)

	params := marshalParams(t, CreateHandlerRequest{
		Name:       "bad",
		Entropy:    "not hex",
		Passphrase: "hunter2",
	})
	_, rpcErr := createHandler(params, s)
	require.NotNil(t, rpcErr)
	require.Equal(t, ErrRPCInvalidParameter, rpcErr.Code)
}

func TestCreateHandlerDuplicateName(t *testing.T) {
	s := testServer(t)

	createTestHandler(t, s, "payments")

	params := marshalParams(t, CreateHandlerRequest{
		Name:       "payments",
		Entropy:    testEntropyHex,
		Passphrase: "hunter2",
	})
	_, rpcErr := createHandler(params, s)
	require.NotNil(t, rpcErr)
	require.Equal(t, ErrRPCWallet, rpcErr.Code)
}

func TestExportImportRoundTrip(t *testing.T) {
	s := testServer(t)

	createTestHandler(t, s, "payments")

	result, rpcErr := exportHandler(marshalParams(t, NamedHandlerRequest{
		Name: "payments",
	}), s)
	require.Nil(t, rpcErr)
	envelope := result.(ExportHandlerResponse).Envelope

	_, rpcErr = importHandler(marshalParams(t, ImportHandlerRequest{
		Name:     "restored",
		Envelope: envelope,
	}), s)
	require.Nil(t, rpcErr)

	// The restored handler must answer the same account public key as
	// the original.
	pubReq := AccountPubKeyRequest{
		Name:       "payments",
		Passphrase: "hunter2",
		Purpose:    keymgr.PurposeStandard,
		CoinType:   keymgr.CoinTypeADA,
		Account:    0,
	}
	orig, rpcErr := getAccountPubKey(marshalParams(t, pubReq), s)
	require.Nil(t, rpcErr)

	pubReq.Name = "restored"
	restored, rpcErr := getAccountPubKey(marshalParams(t, pubReq), s)
	require.Nil(t, rpcErr)

	require.Equal(t, orig.(AccountPubKeyResponse).ExtendedPublicKey,
		restored.(AccountPubKeyResponse).ExtendedPublicKey)
}

func TestImportHandlerRejectsTampered(t *testing.T) {
	s := testServer(t)

	createTestHandler(t, s, "payments")

	result, rpcErr := exportHandler(marshalParams(t, NamedHandlerRequest{
		Name: "payments",
	}), s)
	require.Nil(t, rpcErr)

	envelope, err := hex.DecodeString(result.(ExportHandlerResponse).Envelope)
	require.NoError(t, err)
	envelope[len(envelope)/2] ^= 0x01

	_, rpcErr = importHandler(marshalParams(t, ImportHandlerRequest{
		Name:     "tampered",
		Envelope: hex.EncodeToString(envelope),
	}), s)
	require.NotNil(t, rpcErr)
	require.Equal(t, ErrRPCDeserialization, rpcErr.Code)
}

func TestDeleteHandler(t *testing.T) {
	s := testServer(t)

	createTestHandler(t, s, "payments")

	_, rpcErr := deleteHandler(marshalParams(t, NamedHandlerRequest{
		Name: "payments",
	}), s)
	require.Nil(t, rpcErr)

	_, rpcErr = exportHandler(marshalParams(t, NamedHandlerRequest{
		Name: "payments",
	}), s)
	require.NotNil(t, rpcErr)
	require.Equal(t, ErrRPCWallet, rpcErr.Code)
}

func TestGetAccountPubKeyWrongPassphrase(t *testing.T) {
	s := testServer(t)

	createTestHandler(t, s, "payments")

	_, rpcErr := getAccountPubKey(marshalParams(t, AccountPubKeyRequest{
		Name:       "payments",
		Passphrase: "wrong",
		Purpose:    keymgr.PurposeStandard,
		CoinType:   keymgr.CoinTypeADA,
	}), s)
	require.NotNil(t, rpcErr)
	require.Equal(t, ErrRPCWalletPassphrase, rpcErr.Code)
}

func TestSignTransactionBip32(t *testing.T) {
	s := testServer(t)

	createTestHandler(t, s, "payments")

	body := hex.EncodeToString([]byte("transaction body"))
	result, rpcErr := signTransaction(marshalParams(t, SignTransactionRequest{
		Name:        "payments",
		Passphrase:  "hunter2",
		Transaction: body,
		Paths: []SignPath{
			{
				Purpose:  keymgr.PurposeStandard,
				CoinType: keymgr.CoinTypeADA,
				Role:     keymgr.RoleExternal,
			},
			{
				Purpose:  keymgr.PurposeStandard,
				CoinType: keymgr.CoinTypeADA,
				Role:     keymgr.RoleStaking,
			},
		},
	}), s)
	require.Nil(t, rpcErr)

	resp := result.(SignTransactionResponse)
	require.Len(t, resp.Witnesses, 2)
	require.NotEqual(t, resp.Witnesses[0].PublicKey,
		resp.Witnesses[1].PublicKey)

	id, err := hex.DecodeString(resp.TransactionID)
	require.NoError(t, err)

	for _, w := range resp.Witnesses {
		pubKey, err := hex.DecodeString(w.PublicKey)
		require.NoError(t, err)
		sig, err := hex.DecodeString(w.Signature)
		require.NoError(t, err)
		require.True(t, ed25519.Verify(pubKey, id, sig))
	}
}

func TestSignTransactionEd25519(t *testing.T) {
	s := testServer(t)

	// Store a single-key handler directly; the RPC surface only creates
	// hierarchical ones.
	seed := bytes.Repeat([]byte{0x11}, ed25519.SeedSize)
	handler, err := keymgr.NewEd25519(seed, []byte("hunter2"),
		provider("hunter2"))
	require.NoError(t, err)
	envelope, err := handler.Serialize()
	require.NoError(t, err)
	handler.Close()
	require.NoError(t, s.store.Put("single", envelope))

	body := hex.EncodeToString([]byte("transaction body"))
	result, rpcErr := signTransaction(marshalParams(t, SignTransactionRequest{
		Name:        "single",
		Passphrase:  "hunter2",
		Transaction: body,
	}), s)
	require.Nil(t, rpcErr)

	resp := result.(SignTransactionResponse)
	require.Len(t, resp.Witnesses, 1)

	id, err := hex.DecodeString(resp.TransactionID)
	require.NoError(t, err)
	pubKey, err := hex.DecodeString(resp.Witnesses[0].PublicKey)
	require.NoError(t, err)
	sig, err := hex.DecodeString(resp.Witnesses[0].Signature)
	require.NoError(t, err)
	require.True(t, ed25519.Verify(pubKey, id, sig))
}

func TestSignTransactionWrongPassphrase(t *testing.T) {
	s := testServer(t)

	createTestHandler(t, s, "payments")

	_, rpcErr := signTransaction(marshalParams(t, SignTransactionRequest{
		Name:        "payments",
		Passphrase:  "wrong",
		Transaction: "00",
		Paths: []SignPath{{
			Purpose:  keymgr.PurposeStandard,
			CoinType: keymgr.CoinTypeADA,
		}},
	}), s)
	require.NotNil(t, rpcErr)
	require.Equal(t, ErrRPCWalletPassphrase, rpcErr.Code)
}

func TestHandleRequestMethodNotFound(t *testing.T) {
	s := testServer(t)

	resp := s.handleRequest([]byte(`{"id":1,"method":"nosuchmethod"}`))
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrRPCMethodNotFound, resp.Error.Code)
}

func TestHandleRequestMalformed(t *testing.T) {
	s := testServer(t)

	resp := s.handleRequest([]byte(`{`))
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrRPCInvalidRequest, resp.Error.Code)
}

func TestWebsocketRoundTrip(t *testing.T) {
	s := testServer(t)
	defer s.Stop()

	createTestHandler(t, s, "payments")

	httpServer := httptest.NewServer(s)
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	err = conn.WriteJSON(request{ID: 1, Method: "listhandlers"})
	require.NoError(t, err)

	var resp struct {
		ID     interface{}    `json:"id"`
		Result []HandlerEntry `json:"result"`
		Error  *RPCError      `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&resp))
	require.Nil(t, resp.Error)
	require.Len(t, resp.Result, 1)
	require.Equal(t, "payments", resp.Result[0].Name)
}
