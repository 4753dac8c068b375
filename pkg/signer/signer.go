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

package signer

import (
	"context"
	"net/http"

	"github.com/sage-x-project/sage/pkg/agent/crypto"
	"github.com/sage-x-project/sage/pkg/agent/did"
)

const (
	HeaderSignature      = "Signature"
	HeaderSignatureInput = "Signature-Input"
	HeaderContentDigest  = "Content-Digest"

	// Label is the signature label used in both headers.
	Label = "sig1"

	AlgES256K = "ES256K"
	AlgEdDSA  = "EdDSA"
)

// DefaultComponents are signed when no components are given.
var DefaultComponents = []string{"@method", "@target-uri"}

// RequestSigner signs HTTP requests with an agent DID as the keyid.
type RequestSigner interface {
	SignRequest(ctx context.Context, req *http.Request, agentDID did.AgentDID, keyPair crypto.KeyPair) error
	SignRequestWithOptions(ctx context.Context, req *http.Request, agentDID did.AgentDID, keyPair crypto.KeyPair, opts *SigningOptions) error
}

// SigningOptions controls which parts of a request are covered and which
// parameters go into Signature-Input.
type SigningOptions struct {
	// Components lists covered components: derived ones such as "@method",
	// "@target-uri" and "@authority", or header names. A listed header that
	// is absent from the request is an error.
	Components []string

	// Created and Expires are Unix seconds. Created defaults to now; a zero
	// Expires is omitted.
	Created int64
	Expires int64

	Nonce string

	// Algorithm overrides the alg parameter derived from the key type.
	Algorithm string
}
