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

package metadata

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gowebpki/jcs"
	sagecrypto "github.com/sage-x-project/sage/pkg/agent/crypto"
	"github.com/sage-x-project/sage/pkg/agent/did"

	"github.com/agenthub-iot/agenthub-go/pkg/identity"
	"github.com/agenthub-iot/agenthub-go/pkg/keystore"
)

// AlgES256K is the JWS algorithm. Signatures are the 65-byte recoverable
// R||S||V form over keccak256 of the signing input.
const AlgES256K = "ES256K"

var (
	ErrInvalidJWS       = errors.New("metadata: invalid JWS")
	ErrSignatureInvalid = errors.New("metadata: signature verification failed")
	ErrPayloadMismatch  = errors.New("metadata: payload does not match document")
	ErrExpired          = errors.New("metadata: document expired")
)

// SignedDocument is a document with its detached-payload JWS.
type SignedDocument struct {
	Document *Document `json:"document"`

	// Signature is the JWS compact serialization over the JCS canonical form
	// of Document.
	Signature string `json:"signature"`

	SignedAt int64 `json:"signedAt"`
}

type jwsHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid,omitempty"`
}

// Canonical returns the RFC 8785 (JCS) form of doc.
func Canonical(doc *Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return jcs.Transform(raw)
}

// Sign validates doc and signs its canonical form. keyPair must be a
// secp256k1 key that produces recoverable signatures, such as the keystore
// adapter.
func Sign(ctx context.Context, doc *Document, keyPair sagecrypto.KeyPair) (*SignedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document cannot be nil")
	}
	if keyPair == nil {
		return nil, fmt.Errorf("keyPair cannot be nil")
	}
	if keyPair.Type() != sagecrypto.KeyTypeSecp256k1 {
		return nil, fmt.Errorf("unsupported key type: %s", keyPair.Type())
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	payload, err := Canonical(doc)
	if err != nil {
		return nil, err
	}
	header, err := json.Marshal(jwsHeader{Alg: AlgES256K, Typ: "JWT", Kid: doc.DID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JWS header: %w", err)
	}

	signingInput := b64(header) + "." + b64(payload)
	signature, err := keyPair.Sign([]byte(signingInput))
	if err != nil {
		return nil, fmt.Errorf("failed to sign document: %w", err)
	}

	return &SignedDocument{
		Document:  doc,
		Signature: signingInput + "." + b64(signature),
		SignedAt:  time.Now().Unix(),
	}, nil
}

// Verify checks that the JWS was made by the address in the document's DID
// and that its payload is the document.
func Verify(ctx context.Context, signed *SignedDocument) error {
	if signed == nil || signed.Document == nil {
		return fmt.Errorf("document cannot be nil")
	}
	_, addr, err := identity.AddressFromDID(did.AgentDID(signed.Document.DID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return verifyAddress(ctx, signed, addr)
}

// VerifyWithKey checks the JWS against a known public key.
func VerifyWithKey(ctx context.Context, signed *SignedDocument, pub *ecdsa.PublicKey) error {
	if pub == nil {
		return fmt.Errorf("publicKey cannot be nil")
	}
	if signed == nil || signed.Document == nil {
		return fmt.Errorf("document cannot be nil")
	}
	return verifyAddress(ctx, signed, crypto.PubkeyToAddress(*pub))
}

func verifyAddress(ctx context.Context, signed *SignedDocument, want common.Address) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	parts := strings.Split(signed.Signature, ".")
	if len(parts) != 3 {
		return fmt.Errorf("%w: expected 3 parts, got %d", ErrInvalidJWS, len(parts))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return fmt.Errorf("%w: header: %v", ErrInvalidJWS, err)
	}
	var header jwsHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return fmt.Errorf("%w: header: %v", ErrInvalidJWS, err)
	}
	if header.Alg != AlgES256K {
		return fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidJWS, header.Alg)
	}

	rawSig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("%w: signature: %v", ErrInvalidJWS, err)
	}
	sig, err := keystore.SignatureFromBytes(rawSig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJWS, err)
	}

	digest := crypto.Keccak256Hash([]byte(parts[0] + "." + parts[1]))
	got, err := keystore.RecoverAddress(digest, sig)
	if err != nil || got != want {
		return ErrSignatureInvalid
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("%w: payload: %v", ErrInvalidJWS, err)
	}
	expected, err := Canonical(signed.Document)
	if err != nil {
		return err
	}
	if string(payload) != string(expected) {
		return ErrPayloadMismatch
	}

	if signed.Document.IsExpired(time.Now()) {
		return ErrExpired
	}
	return nil
}

func b64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
