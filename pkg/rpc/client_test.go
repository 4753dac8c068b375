package rpc_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthub-iot/agenthub-go/pkg/rpc"
	"github.com/agenthub-iot/agenthub-go/pkg/rpc/rpctest"
)

func newClient(t *testing.T, url string) *rpc.Client {
	t.Helper()
	c, err := rpc.NewClient(url)
	require.NoError(t, err)
	return c
}

// rawServer replies with body and status regardless of the request.
func rawServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_EthMethods(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()

	node.Result("eth_chainId", "0xa869")
	node.Result("eth_getTransactionCount", "0x7")
	node.Result("eth_gasPrice", "0x5d21dba00")
	node.Result("eth_maxPriorityFeePerGas", "0x3b9aca00")
	node.Result("eth_estimateGas", "0x5208")
	node.Result("eth_sendRawTransaction", "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b")
	node.Result("eth_call", "0x0000000000000000000000000000000000000000000000000000000000000001")

	c := newClient(t, node.URL)
	ctx := context.Background()
	addr := common.HexToAddress("0x970E8128AB834E8EAC17Ab8E3812F010678CF791")

	chainID, err := c.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(43113), chainID)

	nonce, err := c.PendingNonce(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), nonce)
	params := node.Calls("eth_getTransactionCount")[0]
	assert.JSONEq(t, `"0x970e8128ab834e8eac17ab8e3812f010678cf791"`, string(params[0]))
	assert.JSONEq(t, `"pending"`, string(params[1]))

	price, err := c.GasPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(25_000_000_000), price)

	tip, err := c.MaxPriorityFee(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000_000), tip)

	gas, err := c.EstimateGas(ctx, rpc.CallMsg{From: &addr, To: addr})
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), gas)

	hash, err := c.SendRawTransaction(ctx, []byte{0xf8, 0x01})
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"), hash)
	assert.JSONEq(t, `"0xf801"`, string(node.Calls("eth_sendRawTransaction")[0][0]))

	out, err := c.CallContract(ctx, addr, []byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)
	assert.Len(t, out, 32)
	callParams := node.Calls("eth_call")[0]
	assert.JSONEq(t, `{"to":"0x970e8128ab834e8eac17ab8e3812f010678cf791","data":"0xdeadbeef"}`, string(callParams[0]))
	assert.JSONEq(t, `"latest"`, string(callParams[1]))
}

func TestClient_RPCError(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()
	node.Handle("eth_sendRawTransaction", func([]json.RawMessage) (any, *rpc.RPCError) {
		return nil, &rpc.RPCError{Code: -32000, Message: "nonce too low"}
	})

	_, err := newClient(t, node.URL).SendRawTransaction(context.Background(), []byte{0x01})

	var rpcErr *rpc.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)
	assert.Equal(t, "nonce too low", rpcErr.Message)
}

func TestClient_UnknownMethod(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()

	_, err := newClient(t, node.URL).Call(context.Background(), "eth_nope")

	var rpcErr *rpc.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestClient_MalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>gateway</html>"},
		{"no result", `{"jsonrpc":"2.0","id":1}`},
		{"nested result", `{"jsonrpc":"2.0","id":1,"data":{"result":"0x1"}}`},
		{"wrong id", `{"jsonrpc":"2.0","id":99,"result":"0x1"}`},
		{"array", `[{"jsonrpc":"2.0","id":1,"result":"0x1"}]`},
		{"bad error object", `{"jsonrpc":"2.0","id":1,"error":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rawServer(t, http.StatusOK, tt.body)
			_, err := newClient(t, srv.URL).Call(context.Background(), "eth_chainId")
			assert.ErrorIs(t, err, rpc.ErrMalformedResponse)
		})
	}
}

func TestClient_ResultTypeMismatch(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()
	node.Result("eth_chainId", nil)
	node.Result("eth_gasPrice", 12)

	c := newClient(t, node.URL)
	_, err := c.ChainID(context.Background())
	assert.ErrorIs(t, err, rpc.ErrMalformedResponse)

	_, err = c.GasPrice(context.Background())
	assert.ErrorIs(t, err, rpc.ErrMalformedResponse)
}

func TestClient_StatusErrorPassthrough(t *testing.T) {
	srv := rawServer(t, http.StatusTooManyRequests, `{"message":"rate limited"}`)

	_, err := newClient(t, srv.URL).ChainID(context.Background())

	var statusErr *rpc.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, `{"message":"rate limited"}`, string(statusErr.Body))
}

func TestClient_Headers(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`))
	}))
	defer srv.Close()

	c, err := rpc.NewClient(srv.URL, rpc.WithHeader("X-Api-Key", "k"))
	require.NoError(t, err)
	_, err = c.Call(context.Background(), "eth_chainId")
	require.NoError(t, err)

	assert.Equal(t, "k", got.Get("X-Api-Key"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
}

func TestClient_IDsAreUnique(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[uint64]bool)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID uint64 `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		seen[req.ID] = true
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "0x1"})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Call(context.Background(), "eth_chainId")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
}

func TestClient_ContextCancelled(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newClient(t, node.URL).ChainID(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClient_EmptyURL(t *testing.T) {
	_, err := rpc.NewClient("")
	assert.Error(t, err)
}
