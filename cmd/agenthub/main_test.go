// Copyright (C) 2025 SAGE-X Project
//
// This file is part of agenthub-go.
//
// agenthub-go is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// agenthub-go is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with agenthub-go.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthub-iot/agenthub-go/pkg/payment"
	"github.com/agenthub-iot/agenthub-go/pkg/rpc"
	"github.com/agenthub-iot/agenthub-go/pkg/rpc/rpctest"
)

const testSecret = "0x0101010101010101010101010101010101010101010101010101010101010101"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"agenthub"}, args...))
	return out.String(), err
}

func deviceEnv(t *testing.T, rpcURL string) {
	t.Helper()
	t.Setenv("AGENTHUB_PRIVATE_KEY", testSecret)
	t.Setenv("AGENTHUB_AGENT_NAME", "sensor-42")
	t.Setenv("AGENTHUB_RPC_URL", rpcURL)
	t.Setenv("AGENTHUB_CHAIN_ID", "43113")
}

func TestIdentityCommand(t *testing.T) {
	deviceEnv(t, "http://127.0.0.1:1")

	out, err := run(t, "identity", "--json")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "sensor-42", got["name"])
	assert.Equal(t, "keccak256", got["hashFunction"])
	assert.Equal(t, "did:sage:fuji:"+strings.ToLower(got["address"]), got["did"])
}

func TestIdentityCommand_NoKey(t *testing.T) {
	deviceEnv(t, "http://127.0.0.1:1")
	t.Setenv("AGENTHUB_PRIVATE_KEY", "")

	_, err := run(t, "identity")
	assert.ErrorContains(t, err, "no private key")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, `"version"`)
	assert.Contains(t, out, `"paymentMessageVersion": 1`)
}

func TestRegisterCommand(t *testing.T) {
	node := rpctest.NewNode()
	defer node.Close()
	node.Result("eth_chainId", "0xa869")
	node.Result("eth_getTransactionCount", "0x0")
	node.Result("eth_gasPrice", "0x5d21dba00")
	node.Result("eth_call", hexutil.Encode(make([]byte, 32)))
	node.Handle("eth_sendRawTransaction", func(params []json.RawMessage) (any, *rpc.RPCError) {
		var raw hexutil.Bytes
		if err := json.Unmarshal(params[0], &raw); err != nil {
			return nil, &rpc.RPCError{Code: -32602, Message: err.Error()}
		}
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, &rpc.RPCError{Code: -32000, Message: err.Error()}
		}
		return tx.Hash(), nil
	})
	deviceEnv(t, node.URL)

	_, err := run(t, "register")
	assert.ErrorContains(t, err, "metadata URI is required")

	out, err := run(t, "register", "--metadata", "ipfs://QmMetadata", "--stake", "0.02")
	require.NoError(t, err)
	assert.Len(t, out, len("0x")+64+1)
	assert.Len(t, node.Calls("eth_sendRawTransaction"), 1)
	assert.Len(t, node.Calls("eth_call"), 1)
}

func TestPayCommand(t *testing.T) {
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get(payment.HeaderName)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()
	deviceEnv(t, "http://127.0.0.1:1")

	out, err := run(t, "pay", "--tier", "premium", "--data", `{"q":"status"}`, srv.URL+"/analyze")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, out)

	h, err := payment.ParseHeader(header)
	require.NoError(t, err)
	assert.Equal(t, "0.15", h.Amount)
	assert.Equal(t, "premium", h.Tier)
	assert.Equal(t, srv.URL+"/analyze", h.ResourceURL)
}

func TestSensorCommand_RejectsInvalidJSON(t *testing.T) {
	deviceEnv(t, "http://127.0.0.1:1")

	_, err := run(t, "sensor", "--data", "{", "https://hub.example.com/sensors")
	assert.ErrorContains(t, err, "not valid JSON")

	_, err = run(t, "sensor", "https://hub.example.com/sensors")
	assert.ErrorContains(t, err, "--data is required")
}

func TestMetadataCommand_A2A(t *testing.T) {
	deviceEnv(t, "http://127.0.0.1:1")

	out, err := run(t, "metadata", "--a2a", "--endpoint", "https://hub.example.com/agents/sensor-42", "--capability", "temperature")
	require.NoError(t, err)

	var card map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &card))
	assert.Equal(t, "sensor-42", card["name"])
	assert.Equal(t, "https://hub.example.com/agents/sensor-42", card["url"])
}
