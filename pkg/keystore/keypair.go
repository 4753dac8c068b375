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
	stdcrypto "crypto"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	sagecrypto "github.com/sage-x-project/sage/pkg/agent/crypto"
)

// ErrSignatureMismatch is returned by KeyPair.Verify when the signature does
// not verify against the store's key.
var ErrSignatureMismatch = errors.New("keystore: signature does not match key")

// KeyPair adapts a KeyStore to the sage crypto.KeyPair interface so that
// request signers written against sage can use the store.
//
// Messages are hashed with keccak256 before signing. PrivateKey always
// returns nil.
type KeyPair struct {
	id    string
	store *KeyStore
}

// KeyPair returns a sage-compatible view of the store.
func (ks *KeyStore) KeyPair(id string) *KeyPair {
	return &KeyPair{id: id, store: ks}
}

// ID returns the key identifier given at construction.
func (k *KeyPair) ID() string {
	return k.id
}

// PublicKey returns the *ecdsa.PublicKey, or nil when the store is empty.
func (k *KeyPair) PublicKey() stdcrypto.PublicKey {
	pub, err := k.store.PublicKey()
	if err != nil {
		return nil
	}
	uncompressed := append([]byte{0x04}, pub[:]...)
	key, err := crypto.UnmarshalPubkey(uncompressed)
	if err != nil {
		return nil
	}
	return key
}

// PrivateKey is never exposed.
func (k *KeyPair) PrivateKey() stdcrypto.PrivateKey {
	return nil
}

// Type reports secp256k1.
func (k *KeyPair) Type() sagecrypto.KeyType {
	return sagecrypto.KeyTypeSecp256k1
}

// Sign returns a 65-byte recoverable signature over keccak256(message).
func (k *KeyPair) Sign(message []byte) ([]byte, error) {
	sig, err := k.store.Sign(crypto.Keccak256Hash(message))
	if err != nil {
		return nil, err
	}
	return sig.Bytes(), nil
}

// Verify checks a signature produced by Sign.
func (k *KeyPair) Verify(message, signature []byte) error {
	sig, err := SignatureFromBytes(signature)
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}
	ok, err := k.store.Verify(crypto.Keccak256Hash(message), sig)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSignatureMismatch
	}
	return nil
}
