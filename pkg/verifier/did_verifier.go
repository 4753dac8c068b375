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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sage-x-project/sage/pkg/agent/did"

	"github.com/agenthub-iot/agenthub-go/pkg/identity"
	"github.com/agenthub-iot/agenthub-go/pkg/keystore"
	"github.com/agenthub-iot/agenthub-go/pkg/signer"
)

var (
	ErrMissingSignature     = errors.New("verifier: missing signature headers")
	ErrKeyIDMismatch        = errors.New("verifier: keyid mismatch")
	ErrUnsupportedAlgorithm = errors.New("verifier: unsupported algorithm")
	ErrSignatureExpired     = errors.New("verifier: signature outside validity window")
	ErrSignatureInvalid     = errors.New("verifier: signature verification failed")
	ErrDigestMismatch       = errors.New("verifier: content digest mismatch")
)

// maxBodyBytes caps how much of a request body is read to check its digest.
const maxBodyBytes = 1 << 20

// DIDVerifier verifies HTTP signatures using SAGE DIDs
type DIDVerifier interface {
	// VerifyHTTPSignature verifies the request was signed by agentDID.
	VerifyHTTPSignature(ctx context.Context, req *http.Request, agentDID did.AgentDID) error

	// VerifyHTTPSignatureWithKeyID verifies the signature and returns the DID
	// taken from the keyid parameter.
	VerifyHTTPSignatureWithKeyID(ctx context.Context, req *http.Request) (did.AgentDID, error)
}

// DefaultDIDVerifier verifies ES256K request signatures by recovering the
// signer address and comparing it with the address in the keyid DID. No
// registry lookup is needed.
type DefaultDIDVerifier struct {
	now            func() time.Time
	maxAge         time.Duration
	requireCovered []string
	logger         *slog.Logger
}

// DIDOption configures a DefaultDIDVerifier.
type DIDOption func(*DefaultDIDVerifier)

// WithSignatureMaxAge rejects signatures whose created parameter is older
// than d. Zero disables the check.
func WithSignatureMaxAge(d time.Duration) DIDOption {
	return func(v *DefaultDIDVerifier) { v.maxAge = d }
}

// WithRequiredComponents rejects signatures that do not cover every listed
// component.
func WithRequiredComponents(components ...string) DIDOption {
	return func(v *DefaultDIDVerifier) { v.requireCovered = components }
}

// WithDIDClock overrides time.Now for signature freshness checks.
func WithDIDClock(now func() time.Time) DIDOption {
	return func(v *DefaultDIDVerifier) { v.now = now }
}

// WithDIDLogger sets the verifier logger.
func WithDIDLogger(l *slog.Logger) DIDOption {
	return func(v *DefaultDIDVerifier) { v.logger = l }
}

// NewDefaultDIDVerifier creates a DIDVerifier backed by an in-memory key set.
func NewDefaultDIDVerifier(opts ...DIDOption) *DefaultDIDVerifier {
	v := &DefaultDIDVerifier{
		now:            time.Now,
		maxAge:         DefaultMaxAge,
		requireCovered: signer.DefaultComponents,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyHTTPSignature verifies the HTTP signature in the request.
func (v *DefaultDIDVerifier) VerifyHTTPSignature(ctx context.Context, req *http.Request, agentDID did.AgentDID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	sigInput := req.Header.Get(signer.HeaderSignatureInput)
	sigValue := req.Header.Get(signer.HeaderSignature)
	if sigInput == "" || sigValue == "" {
		return ErrMissingSignature
	}

	input, err := signer.ParseSignatureInput(sigInput)
	if err != nil {
		return err
	}
	if !isValidDID(input.KeyID) {
		return fmt.Errorf("invalid DID format in keyid: %s", input.KeyID)
	}
	if input.KeyID != string(agentDID) {
		return fmt.Errorf("%w: expected %s, got %s", ErrKeyIDMismatch, agentDID, input.KeyID)
	}
	if input.Alg != signer.AlgES256K {
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, input.Alg)
	}
	for _, c := range v.requireCovered {
		if !slices.Contains(input.Components, strings.ToLower(c)) {
			return fmt.Errorf("%w: %s not covered", ErrSignatureInvalid, c)
		}
	}
	if err := v.checkWindow(input); err != nil {
		return err
	}
	if slices.Contains(input.Components, strings.ToLower(signer.HeaderContentDigest)) {
		if err := checkContentDigest(req); err != nil {
			return err
		}
	}

	_, want, err := identity.AddressFromDID(agentDID)
	if err != nil {
		return fmt.Errorf("invalid DID format in keyid: %w", err)
	}

	raw, err := signer.ParseSignature(sigValue, input.Label)
	if err != nil {
		return err
	}
	sig, err := keystore.SignatureFromBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	base, err := signer.BuildSignatureBase(req, input.Components, input.Params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	got, err := keystore.RecoverAddress(crypto.Keccak256Hash([]byte(base)), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if got != want {
		return fmt.Errorf("%w: recovered %s", ErrSignatureInvalid, got.Hex())
	}

	v.logger.Debug("request signature verified", "did", string(agentDID))
	return nil
}

// VerifyHTTPSignatureWithKeyID extracts DID from keyid and verifies the signature.
func (v *DefaultDIDVerifier) VerifyHTTPSignatureWithKeyID(ctx context.Context, req *http.Request) (did.AgentDID, error) {
	sigInput := req.Header.Get(signer.HeaderSignatureInput)
	if sigInput == "" {
		return "", ErrMissingSignature
	}
	input, err := signer.ParseSignatureInput(sigInput)
	if err != nil {
		return "", err
	}
	agentDID := did.AgentDID(input.KeyID)
	if err := v.VerifyHTTPSignature(ctx, req, agentDID); err != nil {
		return "", err
	}
	return agentDID, nil
}

func (v *DefaultDIDVerifier) checkWindow(in *signer.SignatureInput) error {
	now := v.now()
	if in.Expires > 0 && now.Unix() > in.Expires {
		return fmt.Errorf("%w: expired at %d", ErrSignatureExpired, in.Expires)
	}
	if v.maxAge <= 0 {
		return nil
	}
	if in.Created == 0 {
		return fmt.Errorf("%w: created missing", ErrSignatureExpired)
	}
	created := time.Unix(in.Created, 0)
	if now.Sub(created) > v.maxAge || created.Sub(now) > DefaultMaxSkew {
		return fmt.Errorf("%w: created %d", ErrSignatureExpired, in.Created)
	}
	return nil
}

// checkContentDigest compares Content-Digest with the body and restores the
// body for the next handler.
func checkContentDigest(req *http.Request) error {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes+1))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if len(b) > maxBodyBytes {
			return fmt.Errorf("%w: body too large", ErrDigestMismatch)
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(b))
		body = b
	}
	if req.Header.Get(signer.HeaderContentDigest) != signer.ContentDigest(body) {
		return ErrDigestMismatch
	}
	return nil
}

func isValidDID(s string) bool {
	return strings.HasPrefix(s, identity.DIDPrefix)
}
