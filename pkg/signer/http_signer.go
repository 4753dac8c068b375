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
	"fmt"
	"net/http"
	"time"

	"github.com/sage-x-project/sage/pkg/agent/crypto"
	"github.com/sage-x-project/sage/pkg/agent/did"
)

// HTTPSigner implements RequestSigner with RFC9421 HTTP Message Signatures.
type HTTPSigner struct {
	now func() time.Time
}

// NewHTTPSigner creates a signer using the wall clock.
func NewHTTPSigner() *HTTPSigner {
	return &HTTPSigner{now: time.Now}
}

// SignRequest signs method and target URI.
func (s *HTTPSigner) SignRequest(ctx context.Context, req *http.Request, agentDID did.AgentDID, keyPair crypto.KeyPair) error {
	return s.SignRequestWithOptions(ctx, req, agentDID, keyPair, nil)
}

// SignRequestWithOptions signs req and sets the Signature and
// Signature-Input headers.
func (s *HTTPSigner) SignRequestWithOptions(ctx context.Context, req *http.Request, agentDID did.AgentDID, keyPair crypto.KeyPair, opts *SigningOptions) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if keyPair == nil {
		return fmt.Errorf("key pair cannot be nil")
	}
	if agentDID == "" {
		return fmt.Errorf("DID cannot be empty")
	}

	if opts == nil {
		opts = &SigningOptions{}
	}
	components := opts.Components
	if len(components) == 0 {
		components = DefaultComponents
	}
	created := opts.Created
	if created == 0 {
		created = s.now().Unix()
	}
	alg := opts.Algorithm
	if alg == "" {
		alg = Algorithm(keyPair.Type())
	}

	params := buildParams(components, string(agentDID), alg, created, opts.Expires, opts.Nonce)
	base, err := BuildSignatureBase(req, components, params)
	if err != nil {
		return fmt.Errorf("failed to build signature base: %w", err)
	}

	signature, err := keyPair.Sign([]byte(base))
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}

	req.Header.Set(HeaderSignatureInput, Label+"="+params)
	req.Header.Set(HeaderSignature, buildSignatureHeader(signature))
	return nil
}

// Algorithm returns the alg parameter for a key type, or "" if unknown.
func Algorithm(keyType crypto.KeyType) string {
	switch keyType {
	case crypto.KeyTypeSecp256k1:
		return AlgES256K
	case crypto.KeyTypeEd25519:
		return AlgEdDSA
	default:
		return ""
	}
}
