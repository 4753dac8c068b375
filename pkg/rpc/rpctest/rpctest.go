// Package rpctest provides an in-process JSON-RPC node for tests.
package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/agenthub-iot/agenthub-go/pkg/rpc"
)

// Handler answers one method. Returning a non-nil *rpc.RPCError produces an
// error response.
type Handler func(params []json.RawMessage) (any, *rpc.RPCError)

// Node is a fake Ethereum JSON-RPC endpoint backed by httptest.Server.
type Node struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string][][]json.RawMessage
}

// NewNode starts a node. Unknown methods get -32601.
func NewNode() *Node {
	n := &Node{
		handlers: make(map[string]Handler),
		calls:    make(map[string][][]json.RawMessage),
	}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	return n
}

// Handle registers h for method, replacing any previous handler.
func (n *Node) Handle(method string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

// Handler returns the handler registered for method, or nil.
func (n *Node) Handler(method string) Handler {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.handlers[method]
}

// Result registers a handler that always returns v.
func (n *Node) Result(method string, v any) {
	n.Handle(method, func([]json.RawMessage) (any, *rpc.RPCError) { return v, nil })
}

// Calls returns the params of every call made to method.
func (n *Node) Calls(method string) [][]json.RawMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]json.RawMessage(nil), n.calls[method]...)
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
		ID     json.RawMessage   `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	h, ok := n.handlers[req.Method]
	n.calls[req.Method] = append(n.calls[req.Method], req.Params)
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = &rpc.RPCError{Code: -32601, Message: "the method " + req.Method + " does not exist/is not available"}
	} else if result, rpcErr := h(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
