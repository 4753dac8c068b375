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

package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sage-x-project/sage/pkg/agent/did"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthub-iot/agenthub-go/pkg/identity"
	"github.com/agenthub-iot/agenthub-go/pkg/keystore"
	"github.com/agenthub-iot/agenthub-go/pkg/payment"
	"github.com/agenthub-iot/agenthub-go/pkg/verifier"
)

const testSecret = "0x0101010101010101010101010101010101010101010101010101010101010101"

type fixture struct {
	ks       *keystore.KeyStore
	agentDID did.AgentDID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ks, err := keystore.FromHex(testSecret)
	require.NoError(t, err)
	addr, err := ks.Address()
	require.NoError(t, err)
	return fixture{ks: ks, agentDID: identity.DID("fuji", addr)}
}

func (f fixture) relay(opts ...Option) *Relay {
	return New(f.agentDID, f.ks.KeyPair("device"), opts...)
}

func (f fixture) authorize(t *testing.T, url string) *payment.Authorization {
	t.Helper()
	auth, err := payment.NewAuthorizer(payment.WithAgentID("sensor-42")).
		Authorize(url, "0.01", "USDC", "basic", f.ks)
	require.NoError(t, err)
	return auth
}

func TestRelay_Pay(t *testing.T) {
	// Setup
	f := newFixture(t)
	pv, err := verifier.NewPaymentVerifier()
	require.NoError(t, err)

	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := pv.Verify(r.Context(), r.Header.Get(payment.HeaderName), "http://"+r.Host+r.URL.Path); err != nil {
			http.Error(w, err.Error(), http.StatusPaymentRequired)
			return
		}
		assert.Equal(t, "sensor-42", r.Header.Get(HeaderAgentID))
		_, err := uuid.Parse(r.Header.Get(HeaderRequestID))
		assert.NoError(t, err)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"data":"premium"}`))
	}))
	defer srv.Close()

	url := srv.URL + "/weather"
	auth := f.authorize(t, url)

	// Execute
	body, err := f.relay().Pay(context.Background(), url, auth, nil)

	// Assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":"premium"}`, string(body))
	assert.Equal(t, "{}", gotBody)
	assert.Equal(t, payment.StateConsumed, auth.State())
}

func TestRelay_Pay_ConsumesOnce(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := f.relay()
	auth := f.authorize(t, srv.URL)

	_, err := r.Pay(context.Background(), srv.URL, auth, []byte(`{"q":1}`))
	require.NoError(t, err)

	_, err = r.Pay(context.Background(), srv.URL, auth, []byte(`{"q":1}`))
	assert.ErrorIs(t, err, payment.ErrConsumed)
}

func TestRelay_Pay_Expired(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("expired authorization must not be sent")
	}))
	defer srv.Close()

	later := func() time.Time { return time.Now().Add(payment.DefaultMaxAge + time.Minute) }
	_, err := f.relay(WithClock(later)).Pay(context.Background(), srv.URL, f.authorize(t, srv.URL), nil)
	assert.ErrorIs(t, err, payment.ErrExpired)
}

func TestRelay_Pay_StatusPassthrough(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderAcceptPayment, "USDC")
		w.Header().Set(HeaderPaymentAmount, "0.15")
		w.Header().Set(HeaderPaymentTier, "premium")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	_, err := f.relay().Pay(context.Background(), srv.URL, f.authorize(t, srv.URL), nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.PaymentRequired())
	assert.Equal(t, "not json at all", string(se.Body))
	assert.Equal(t, "0.15", se.Header.Get(HeaderPaymentAmount))
}

func TestRelay_SendSensorData(t *testing.T) {
	f := newFixture(t)
	dv := verifier.NewDefaultDIDVerifier(verifier.WithRequiredComponents("@method", "@target-uri", "content-digest"))

	var verified did.AgentDID
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, err := dv.VerifyHTTPSignatureWithKeyID(r.Context(), r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		verified = got
		assert.Equal(t, "sensor-42", r.Header.Get(HeaderAgentID))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	_, err := f.relay(WithAgentID("sensor-42")).
		SendSensorData(context.Background(), srv.URL+"/api/sensors", []byte(`{"temperature":21.5}`))

	require.NoError(t, err)
	assert.Equal(t, f.agentDID, verified)
}

func TestRelay_SendSensorData_Empty(t *testing.T) {
	_, err := newFixture(t).relay().SendSensorData(context.Background(), "http://127.0.0.1:1", nil)
	assert.Error(t, err)
}

func TestRelay_Unsigned(t *testing.T) {
	var sig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig = r.Header.Get("Signature")
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := New("", nil).Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, sig)
}

func TestRelay_RateLimit(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	r := f.relay(WithRateLimit(0.001, 1))
	_, err := r.SendSensorData(context.Background(), srv.URL, []byte(`{}`))
	require.NoError(t, err)

	// The bucket is empty and refills far beyond the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = r.SendSensorData(ctx, srv.URL, []byte(`{}`))
	assert.ErrorContains(t, err, "rate limit")
}

func TestRelay_ContextCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.relay().Pay(ctx, "http://127.0.0.1:1", f.authorize(t, "http://127.0.0.1:1"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
