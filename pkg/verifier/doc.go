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

// Package verifier checks what agents send to resource servers.
//
// # Payments
//
// PaymentVerifier rebuilds the canonical payment message from an X-PAYMENT
// header, recovers the payer from the EIP-191 signature and enforces
// resource binding, a freshness window and single use:
//
//	pv, err := verifier.NewPaymentVerifier(
//	    verifier.WithMaxAge(5*time.Minute),
//	    verifier.WithAllowFunc(onlyRegisteredAgents),
//	)
//	v, err := pv.Verify(ctx, r.Header.Get(payment.HeaderName), "https://api.example.com/x")
//
// Replay protection keeps recent message digests in an LRU cache. Messages
// outside the window are rejected as stale before the cache is consulted, so
// the cache only has to hold one window of traffic.
//
// # Request Signatures
//
// DefaultDIDVerifier checks RFC9421 signatures made by the signer package.
// The keyid is a did:sage DID that embeds an address; the verifier recovers
// the signing address from the ES256K signature and compares the two, so no
// registry round trip is needed:
//
//	dv := verifier.NewDefaultDIDVerifier()
//	agentDID, err := dv.VerifyHTTPSignatureWithKeyID(ctx, r)
//
// When content-digest is covered the body is hashed and compared as well.
package verifier
