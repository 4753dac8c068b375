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

package verifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthub-iot/agenthub-go/pkg/keystore"
	"github.com/agenthub-iot/agenthub-go/pkg/payment"
)

const testSecret = "0x0101010101010101010101010101010101010101010101010101010101010101"

var issued = time.UnixMilli(1700000000000)

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newKeyStore(t *testing.T) *keystore.KeyStore {
	t.Helper()
	ks, err := keystore.FromHex(testSecret)
	require.NoError(t, err)
	return ks
}

func signedHeader(t *testing.T, ks *keystore.KeyStore, url string) string {
	t.Helper()
	auth, err := payment.NewAuthorizer(payment.WithClock(clockAt(issued))).
		Authorize(url, "0.01", "USDC", "basic", ks)
	require.NoError(t, err)
	value, err := auth.Consume(issued)
	require.NoError(t, err)
	return value
}

func TestPaymentVerifier_Accepts(t *testing.T) {
	// Setup
	ks := newKeyStore(t)
	header := signedHeader(t, ks, "https://svc/x")
	pv, err := NewPaymentVerifier(WithClock(clockAt(issued.Add(10 * time.Second))))
	require.NoError(t, err)

	// Execute
	v, err := pv.Verify(context.Background(), header, "https://svc/x")

	// Assert
	require.NoError(t, err)
	addr, err := ks.Address()
	require.NoError(t, err)
	assert.Equal(t, addr, v.Payer)
	assert.Equal(t, "0.01", v.Header.Amount)
	assert.True(t, v.IssuedAt.Equal(issued))
}

func TestPaymentVerifier_Replay(t *testing.T) {
	ks := newKeyStore(t)
	header := signedHeader(t, ks, "https://svc/x")
	pv, err := NewPaymentVerifier(WithClock(clockAt(issued)))
	require.NoError(t, err)

	_, err = pv.Verify(context.Background(), header, "https://svc/x")
	require.NoError(t, err)

	_, err = pv.Verify(context.Background(), header, "https://svc/x")
	assert.ErrorIs(t, err, ErrReplay)
}

func TestPaymentVerifier_Rejects(t *testing.T) {
	ks := newKeyStore(t)
	good := signedHeader(t, ks, "https://svc/x")

	tamper := func(fn func(h *payment.Header)) string {
		h, err := payment.ParseHeader(good)
		require.NoError(t, err)
		fn(h)
		v, err := h.Encode()
		require.NoError(t, err)
		return v
	}

	tests := []struct {
		name     string
		header   string
		resource string
		now      time.Time
		wantErr  error
	}{
		{"garbage", "not json", "https://svc/x", issued, ErrMalformedPayment},
		{"other resource", good, "https://svc/y", issued, ErrResourceMismatch},
		{"amount changed", tamper(func(h *payment.Header) { h.Amount = "0.001" }), "", issued, ErrSignerMismatch},
		{"timestamp changed", tamper(func(h *payment.Header) { h.Timestamp++ }), "", issued, ErrSignerMismatch},
		{"signer changed", tamper(func(h *payment.Header) {
			h.Signer = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
		}), "", issued, ErrSignerMismatch},
		{"short signature", tamper(func(h *payment.Header) { h.Signature = "0x0102" }), "", issued, ErrBadSignature},
		{"signature not hex", tamper(func(h *payment.Header) { h.Signature = "zz" }), "", issued, ErrBadSignature},
		{"stale", good, "https://svc/x", issued.Add(DefaultMaxAge + time.Second), ErrStale},
		{"from future", good, "https://svc/x", issued.Add(-time.Minute), ErrFromFuture},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pv, err := NewPaymentVerifier(WithClock(clockAt(tt.now)))
			require.NoError(t, err)
			_, err = pv.Verify(context.Background(), tt.header, tt.resource)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPaymentVerifier_AllowFunc(t *testing.T) {
	ks := newKeyStore(t)
	addr, err := ks.Address()
	require.NoError(t, err)

	var called common.Address
	pv, err := NewPaymentVerifier(
		WithClock(clockAt(issued)),
		WithAllowFunc(func(_ context.Context, payer common.Address, _ *payment.Header) error {
			called = payer
			return errors.New("agent not registered")
		}),
	)
	require.NoError(t, err)

	_, err = pv.Verify(context.Background(), signedHeader(t, ks, "https://svc/x"), "")
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.True(t, strings.Contains(err.Error(), "agent not registered"))
	assert.Equal(t, addr, called)
}

func TestPaymentVerifier_RejectedPaymentNotRemembered(t *testing.T) {
	ks := newKeyStore(t)
	header := signedHeader(t, ks, "https://svc/x")
	deny := true
	pv, err := NewPaymentVerifier(
		WithClock(clockAt(issued)),
		WithAllowFunc(func(context.Context, common.Address, *payment.Header) error {
			if deny {
				return errors.New("denied")
			}
			return nil
		}),
	)
	require.NoError(t, err)

	_, err = pv.Verify(context.Background(), header, "")
	require.ErrorIs(t, err, ErrNotAllowed)

	deny = false
	_, err = pv.Verify(context.Background(), header, "")
	assert.NoError(t, err)
}

func TestNewPaymentVerifier_Errors(t *testing.T) {
	_, err := NewPaymentVerifier(WithMaxAge(0))
	assert.Error(t, err)

	_, err = NewPaymentVerifier(WithReplayCacheSize(0))
	assert.Error(t, err)
}

func TestPaymentVerifier_CancelledContext(t *testing.T) {
	pv, err := NewPaymentVerifier()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pv.Verify(ctx, "{}", "")
	assert.ErrorIs(t, err, context.Canceled)
}
