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

package keystore

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrNotInitialized is returned when the store is used before key material was supplied.
	ErrNotInitialized = errors.New("keystore: not initialized")

	// ErrInvalidKey is returned for malformed or out-of-range secrets.
	ErrInvalidKey = errors.New("keystore: invalid key")

	// ErrInvalidDigest is returned when a digest is not exactly 32 bytes.
	ErrInvalidDigest = errors.New("keystore: digest must be 32 bytes")

	// ErrSigningFailure is returned when the curve operation rejects the digest.
	ErrSigningFailure = errors.New("keystore: signing failure")
)

// KeyStore holds one secp256k1 signing key in memory.
//
// The zero value is a valid, uninitialized store. All methods are safe for
// concurrent use; signing calls are serialized by an internal mutex.
type KeyStore struct {
	mu      sync.Mutex
	key     *ecdsa.PrivateKey
	pub     [64]byte
	address common.Address
}

// New returns an uninitialized KeyStore.
func New() *KeyStore {
	return &KeyStore{}
}

// FromHex creates a KeyStore and initializes it with a hex-encoded secret.
func FromHex(secret string) (*KeyStore, error) {
	ks := New()
	if err := ks.Initialize(secret); err != nil {
		return nil, err
	}
	return ks, nil
}

// Initialize loads a hex-encoded 32-byte secret, with or without a 0x prefix.
// Any previously loaded key is zeroized first.
func (ks *KeyStore) Initialize(secret string) error {
	raw, err := decodeSecret(secret)
	if err != nil {
		return err
	}
	defer wipe(raw)

	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(raw)
	zero := scalar.IsZero()
	scalar.Zero()
	if overflow {
		return fmt.Errorf("%w: scalar exceeds curve order", ErrInvalidKey)
	}
	if zero {
		return fmt.Errorf("%w: scalar is zero", ErrInvalidKey)
	}

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.destroyLocked()
	ks.key = key
	copy(ks.pub[:], crypto.FromECDSAPub(&key.PublicKey)[1:])
	ks.address = crypto.PubkeyToAddress(key.PublicKey)
	return nil
}

// Initialized reports whether key material has been loaded.
func (ks *KeyStore) Initialized() bool {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.key != nil
}

// Sign produces a deterministic (RFC6979) low-s ECDSA signature over digest.
func (ks *KeyStore) Sign(digest [32]byte) (Signature, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.key == nil {
		return Signature{}, ErrNotInitialized
	}

	sig, err := crypto.Sign(digest[:], ks.key)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	out, err := SignatureFromBytes(sig)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	if !out.IsLowS() {
		return Signature{}, fmt.Errorf("%w: non-canonical s value", ErrSigningFailure)
	}
	return out, nil
}

// SignBytes is Sign for callers holding the digest as a slice.
func (ks *KeyStore) SignBytes(digest []byte) (Signature, error) {
	if len(digest) != 32 {
		return Signature{}, ErrInvalidDigest
	}
	var d [32]byte
	copy(d[:], digest)
	return ks.Sign(d)
}

// Verify checks sig against digest and the store's own public key.
func (ks *KeyStore) Verify(digest [32]byte, sig Signature) (bool, error) {
	pub, err := ks.PublicKey()
	if err != nil {
		return false, err
	}
	return VerifySignature(pub, digest, sig), nil
}

// PublicKey returns the uncompressed public key as X||Y (64 bytes).
func (ks *KeyStore) PublicKey() ([64]byte, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.key == nil {
		return [64]byte{}, ErrNotInitialized
	}
	return ks.pub, nil
}

// Address returns the 20-byte chain address derived from the public key.
func (ks *KeyStore) Address() (common.Address, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.key == nil {
		return common.Address{}, ErrNotInitialized
	}
	return ks.address, nil
}

// Destroy zeroizes the key. The store can be initialized again afterwards.
func (ks *KeyStore) Destroy() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.destroyLocked()
}

func (ks *KeyStore) destroyLocked() {
	if ks.key == nil {
		return
	}
	if ks.key.D != nil {
		words := ks.key.D.Bits()
		for i := range words {
			words[i] = 0
		}
		ks.key.D.SetInt64(0)
	}
	ks.key = nil
	ks.pub = [64]byte{}
	ks.address = common.Address{}
}

// String never includes key material.
func (ks *KeyStore) String() string {
	addr, err := ks.Address()
	if err != nil {
		return "KeyStore(uninitialized)"
	}
	return "KeyStore(" + addr.Hex() + ")"
}

// GoString keeps %#v from dumping the private scalar.
func (ks *KeyStore) GoString() string {
	return ks.String()
}

// LogValue implements slog.LogValuer.
func (ks *KeyStore) LogValue() slog.Value {
	addr, err := ks.Address()
	if err != nil {
		return slog.StringValue("uninitialized")
	}
	return slog.StringValue(addr.Hex())
}

// VerifySignature checks a signature against a 64-byte X||Y public key.
// High-s signatures are rejected.
func VerifySignature(pub [64]byte, digest [32]byte, sig Signature) bool {
	uncompressed := make([]byte, 65)
	uncompressed[0] = 0x04
	copy(uncompressed[1:], pub[:])
	return crypto.VerifySignature(uncompressed, digest[:], sig.Bytes()[:64])
}

// RecoverAddress returns the address that produced sig over digest.
func RecoverAddress(digest [32]byte, sig Signature) (common.Address, error) {
	pub, err := crypto.SigToPub(digest[:], sig.Bytes())
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.TrimSpace(secret)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s) != 64 {
		return nil, fmt.Errorf("%w: expected 64 hex characters, got %d", ErrInvalidKey, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: not hex", ErrInvalidKey)
	}
	return raw, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
