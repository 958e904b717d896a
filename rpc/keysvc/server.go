// Package keysvc exposes the key handler store over a websocket JSON-RPC
// interface: importing and exporting serialized envelopes, querying
// account public keys, and signing transaction identifiers.  Secrets are
// never returned; the service only hands out ciphertext envelopes, public
// keys, and witnesses.
package keysvc

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/adasuite/adawallet/keystore"
)

// request is an unmarshaled JSON-RPC request.
type request struct {
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// response is a marshalable JSON-RPC response.
type response struct {
	ID     interface{} `json:"id"`
	Result interface{} `json:"result"`
	Error  *RPCError   `json:"error"`
}

// Server dispatches JSON-RPC requests over websocket connections against a
// keystore of serialized handler envelopes.
type Server struct {
	store    *keystore.Store
	upgrader websocket.Upgrader

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewServer returns a server answering requests against the given store.
func NewServer(store *keystore.Store) *Server {
	return &Server{
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		quit: make(chan struct{}),
	}
}

// Stop signals all connection handlers to exit and waits for them.
func (s *Server) Stop() {
	close(s.quit)
	s.wg.Wait()
}

// ServeHTTP upgrades the request to a websocket connection and services
// JSON-RPC requests on it until the client disconnects or the server
// stops.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("Cannot upgrade websocket client %s: %v",
			r.RemoteAddr, err)
		return
	}

	s.wg.Add(1)
	go s.websocketClient(conn)
}

// websocketClient reads requests off a single websocket connection,
// dispatches them, and writes responses in request order.
func (s *Server) websocketClient(conn *websocket.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	log.Infof("New websocket client %s", conn.RemoteAddr())

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {

				log.Warnf("Websocket client %s: %v",
					conn.RemoteAddr(), err)
			}
			return
		}

		resp := s.handleRequest(payload)
		out, err := json.Marshal(resp)
		if err != nil {
			log.Errorf("Cannot marshal response: %v", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}

// handleRequest unmarshals and dispatches a single JSON-RPC request.
func (s *Server) handleRequest(payload []byte) response {
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		return response{Error: errInvalidRequest}
	}

	handler, ok := rpcHandlers[req.Method]
	if !ok {
		return response{ID: req.ID, Error: errMethodNotFound}
	}

	result, rpcErr := handler(req.Params, s)
	if rpcErr != nil {
		log.Debugf("Method %q failed: %v", req.Method, rpcErr)
		return response{ID: req.ID, Error: rpcErr}
	}
	return response{ID: req.ID, Result: result}
}
