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
	"context"
	"fmt"
	"net/http"

	"github.com/sage-x-project/sage/pkg/agent/did"

	"github.com/agenthub-iot/agenthub-go/pkg/signer"
	"github.com/agenthub-iot/agenthub-go/pkg/verifier"
)

type contextKey string

const (
	agentDIDKey contextKey = "agentDID"
	paymentKey  contextKey = "payment"
)

// ErrorHandler handles verification errors
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// DIDAuthMiddleware rejects requests without a valid agent DID signature.
type DIDAuthMiddleware struct {
	verifier     verifier.DIDVerifier
	errorHandler ErrorHandler
	optional     bool
}

// NewDIDAuthMiddleware creates the middleware with the default
// address-recovering verifier.
func NewDIDAuthMiddleware(opts ...verifier.DIDOption) *DIDAuthMiddleware {
	return NewDIDAuthMiddlewareWithVerifier(verifier.NewDefaultDIDVerifier(opts...))
}

// NewDIDAuthMiddlewareWithVerifier creates middleware with a custom verifier
func NewDIDAuthMiddlewareWithVerifier(didVerifier verifier.DIDVerifier) *DIDAuthMiddleware {
	return &DIDAuthMiddleware{
		verifier:     didVerifier,
		errorHandler: defaultErrorHandler,
	}
}

// SetErrorHandler sets a custom error handler
func (m *DIDAuthMiddleware) SetErrorHandler(handler ErrorHandler) {
	m.errorHandler = handler
}

// SetOptional lets unsigned requests through without a DID in the context.
// Requests that carry a signature are still verified.
func (m *DIDAuthMiddleware) SetOptional(optional bool) {
	m.optional = optional
}

// Wrap wraps an HTTP handler with DID authentication
func (m *DIDAuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS preflight
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get(signer.HeaderSignatureInput) == "" || r.Header.Get(signer.HeaderSignature) == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			m.errorHandler(w, r, verifier.ErrMissingSignature)
			return
		}

		agentDID, err := m.verifier.VerifyHTTPSignatureWithKeyID(r.Context(), r)
		if err != nil {
			m.errorHandler(w, r, fmt.Errorf("signature verification failed: %w", err))
			return
		}

		ctx := context.WithValue(r.Context(), agentDIDKey, agentDID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAgentDIDFromContext extracts the agent DID from request context
func GetAgentDIDFromContext(ctx context.Context) (did.AgentDID, bool) {
	agentDID, ok := ctx.Value(agentDIDKey).(did.AgentDID)
	return agentDID, ok
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	http.Error(w, fmt.Sprintf("Unauthorized: %s", err.Error()), http.StatusUnauthorized)
}
