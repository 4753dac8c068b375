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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sage-x-project/sage/pkg/agent/did"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthub-iot/agenthub-go/pkg/identity"
	"github.com/agenthub-iot/agenthub-go/pkg/keystore"
	"github.com/agenthub-iot/agenthub-go/pkg/payment"
	"github.com/agenthub-iot/agenthub-go/pkg/signer"
	"github.com/agenthub-iot/agenthub-go/pkg/verifier"
)

const testSecret = "0x0101010101010101010101010101010101010101010101010101010101010101"

func testKeyStore(t *testing.T) *keystore.KeyStore {
	t.Helper()
	ks, err := keystore.FromHex(testSecret)
	require.NoError(t, err)
	return ks
}

// mockDIDVerifier for testing
type mockDIDVerifier struct {
	extractedDID did.AgentDID
	err          error
}

func (m *mockDIDVerifier) VerifyHTTPSignature(ctx context.Context, req *http.Request, agentDID did.AgentDID) error {
	return m.err
}

func (m *mockDIDVerifier) VerifyHTTPSignatureWithKeyID(ctx context.Context, req *http.Request) (did.AgentDID, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.extractedDID, nil
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestDIDAuthMiddleware_RealSignature(t *testing.T) {
	// Setup
	ks := testKeyStore(t)
	addr, err := ks.Address()
	require.NoError(t, err)
	agentDID := identity.DID("fuji", addr)

	var gotDID did.AgentDID
	var gotBody []byte
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDID, _ = GetAgentDIDFromContext(r.Context())
		gotBody, _ = io.ReadAll(r.Body)
	})
	srv := httptest.NewServer(NewDIDAuthMiddleware().Wrap(handler))
	defer srv.Close()

	body := []byte(`{"temperature":21.5}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/sensors", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(signer.HeaderContentDigest, signer.ContentDigest(body))
	require.NoError(t, signer.NewHTTPSigner().SignRequestWithOptions(context.Background(), req, agentDID, ks.KeyPair("device"),
		&signer.SigningOptions{Components: []string{"@method", "@target-uri", "content-digest"}}))

	// Execute
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	// Assert
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, agentDID, gotDID)
	assert.Equal(t, body, gotBody)
}

func TestDIDAuthMiddleware_MissingSignature(t *testing.T) {
	called := false
	rr := httptest.NewRecorder()
	NewDIDAuthMiddleware().Wrap(okHandler(&called)).ServeHTTP(rr, httptest.NewRequest("POST", "/test", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing signature headers")
}

func TestDIDAuthMiddleware_InvalidSignature(t *testing.T) {
	called := false
	m := NewDIDAuthMiddlewareWithVerifier(&mockDIDVerifier{err: errors.New("bad sig")})

	req := httptest.NewRequest("POST", "/test", nil)
	req.Header.Set(signer.HeaderSignature, "sig1=:AA==:")
	req.Header.Set(signer.HeaderSignatureInput, `sig1=();keyid="did:sage:fuji:0x00"`)
	rr := httptest.NewRecorder()
	m.Wrap(okHandler(&called)).ServeHTTP(rr, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "bad sig")
}

func TestDIDAuthMiddleware_CustomErrorHandler(t *testing.T) {
	m := NewDIDAuthMiddleware()
	m.SetErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
		http.Error(w, "go away", http.StatusForbidden)
	})

	rr := httptest.NewRecorder()
	called := false
	m.Wrap(okHandler(&called)).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "go away\n", rr.Body.String())
}

func TestDIDAuthMiddleware_Optional(t *testing.T) {
	m := NewDIDAuthMiddlewareWithVerifier(&mockDIDVerifier{extractedDID: "did:sage:fuji:0x01"})
	m.SetOptional(true)

	var hasDID bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDID = GetAgentDIDFromContext(r.Context())
	})

	rr := httptest.NewRecorder()
	m.Wrap(handler).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, hasDID)
}

func TestDIDAuthMiddleware_OptionsRequest(t *testing.T) {
	called := false
	rr := httptest.NewRecorder()
	NewDIDAuthMiddleware().Wrap(okHandler(&called)).ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.True(t, called)
}

func TestGetAgentDIDFromContext_Missing(t *testing.T) {
	_, ok := GetAgentDIDFromContext(context.Background())
	assert.False(t, ok)
}

// paidServer runs a premium-priced endpoint and returns its URL.
func paidServer(t *testing.T) string {
	t.Helper()
	pv, err := verifier.NewPaymentVerifier()
	require.NoError(t, err)
	price, err := PriceForTier(payment.TierPremium)
	require.NoError(t, err)
	m, err := NewPaymentMiddleware(pv, price, WithChainID(43113))
	require.NoError(t, err)

	srv := httptest.NewServer(m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, ok := GetPaymentFromContext(r.Context())
		if !assert.True(t, ok) {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"payer": v.Payer.Hex()})
	})))
	t.Cleanup(srv.Close)
	return srv.URL + "/weather"
}

func pay(t *testing.T, url, header string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	if header != "" {
		req.Header.Set(payment.HeaderName, header)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func authorize(t *testing.T, url, amount, tier string) string {
	t.Helper()
	auth, err := payment.NewAuthorizer().Authorize(url, amount, "USDC", tier, testKeyStore(t))
	require.NoError(t, err)
	value, err := auth.Consume(time.Now())
	require.NoError(t, err)
	return value
}

func TestPaymentMiddleware_Challenge(t *testing.T) {
	url := paidServer(t)

	resp := pay(t, url, "")

	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "USDC", resp.Header.Get(HeaderAcceptPayment))
	assert.Equal(t, "0.15", resp.Header.Get(HeaderPaymentAmount))
	assert.Equal(t, "premium", resp.Header.Get(HeaderPaymentTier))
	assert.Equal(t, "43113", resp.Header.Get(HeaderPaymentChain))

	var body challengeBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "payment_required", body.Error)
	assert.Equal(t, uint64(43113), body.ChainID)
}

func TestPaymentMiddleware_Accepts(t *testing.T) {
	url := paidServer(t)
	addr, err := testKeyStore(t).Address()
	require.NoError(t, err)

	resp := pay(t, url, authorize(t, url, "0.15", "premium"))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, addr.Hex(), body["payer"])
}

func TestPaymentMiddleware_Rejects(t *testing.T) {
	url := paidServer(t)

	tests := []struct {
		name   string
		header func() string
	}{
		{"underpaid", func() string { return authorize(t, url, "0.14", "premium") }},
		{"wrong tier", func() string { return authorize(t, url, "0.15", "basic") }},
		{"other resource", func() string { return authorize(t, url+"/other", "0.15", "premium") }},
		{"garbage", func() string { return "garbage" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := pay(t, url, tt.header())
			assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
		})
	}
}

func TestPaymentMiddleware_Replay(t *testing.T) {
	url := paidServer(t)
	header := authorize(t, url, "0.15", "premium")

	assert.Equal(t, http.StatusOK, pay(t, url, header).StatusCode)
	assert.Equal(t, http.StatusPaymentRequired, pay(t, url, header).StatusCode)
}

func TestNewPaymentMiddleware_Errors(t *testing.T) {
	pv, err := verifier.NewPaymentVerifier()
	require.NoError(t, err)

	_, err = NewPaymentMiddleware(nil, Price{Amount: "1", Token: "USDC", Tier: "basic"})
	assert.Error(t, err)

	_, err = NewPaymentMiddleware(pv, Price{Amount: "one", Token: "USDC", Tier: "basic"})
	assert.Error(t, err)

	_, err = NewPaymentMiddleware(pv, Price{Amount: "0.0000001", Token: "USDC", Tier: "basic"})
	assert.Error(t, err)

	_, err = NewPaymentMiddleware(pv, Price{Amount: "1"})
	assert.Error(t, err)

	_, err = PriceForTier("gold")
	assert.ErrorIs(t, err, payment.ErrInvalidInput)
}
