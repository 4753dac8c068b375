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
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SignatureLength is the size of a recoverable signature in R||S||V form.
const SignatureLength = 65

// Signature is a recoverable secp256k1 ECDSA signature.
// V is the recovery id, 0 or 1.
type Signature struct {
	R [32]byte
	S [32]byte
	V byte
}

// SignatureFromBytes parses a 65-byte R||S||V signature.
// V may be given as 0/1 or in the 27/28 Ethereum message convention.
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != SignatureLength {
		return Signature{}, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(b))
	}
	var sig Signature
	copy(sig.R[:], b[:32])
	copy(sig.S[:], b[32:64])
	v := b[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return Signature{}, fmt.Errorf("invalid recovery id %d", b[64])
	}
	sig.V = v
	return sig, nil
}

// Bytes returns R||S||V with V in {0,1}.
func (s Signature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// EthereumBytes returns R||S||V with V in {27,28}, the form used by
// personal_sign and most off-chain verifiers.
func (s Signature) EthereumBytes() []byte {
	out := s.Bytes()
	out[64] += 27
	return out
}

// Hex returns the 0x-prefixed hex of Bytes.
func (s Signature) Hex() string {
	return hexutil.Encode(s.Bytes())
}

// IsLowS reports whether S is in the lower half of the curve order.
func (s Signature) IsLowS() bool {
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetBytes(&s.S); overflow != 0 {
		return false
	}
	return !scalar.IsOverHalfOrder()
}
