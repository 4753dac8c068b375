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

package identity

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// Hasher turns an agent name into a 32-byte identity hash.
type Hasher interface {
	Name() string
	Sum(data []byte) common.Hash
}

// Hash strategy names accepted by HasherByName.
const (
	HashKeccak256 = "keccak256"
	HashSHA3256   = "sha3-256"
	HashSHA256    = "sha256"
)

var (
	// Keccak256 is the Ethereum hash and the one the registry contract
	// recomputes: keccak256(bytes(name)), same as ethers id(name).
	Keccak256 Hasher = keccak256Hasher{}

	// SHA3256 is NIST SHA3-256. It differs from Keccak256 in padding and does
	// not match the registry. Kept to reproduce hashes from older SDK builds.
	SHA3256 Hasher = sha3Hasher{}

	// SHA256 reproduces the identity hashes of early firmware. Not registry
	// compatible.
	SHA256 Hasher = sha256Hasher{}

	// Default is the registry-compatible strategy.
	Default = Keccak256
)

type keccak256Hasher struct{}

func (keccak256Hasher) Name() string { return HashKeccak256 }

func (keccak256Hasher) Sum(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}

type sha3Hasher struct{}

func (sha3Hasher) Name() string { return HashSHA3256 }

func (sha3Hasher) Sum(data []byte) common.Hash {
	return common.Hash(sha3.Sum256(data))
}

type sha256Hasher struct{}

func (sha256Hasher) Name() string { return HashSHA256 }

func (sha256Hasher) Sum(data []byte) common.Hash {
	return common.Hash(sha256.Sum256(data))
}

// HasherByName resolves a strategy name. The empty string selects Default.
func HasherByName(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", HashKeccak256, "keccak":
		return Keccak256, nil
	case HashSHA3256, "sha3":
		return SHA3256, nil
	case HashSHA256:
		return SHA256, nil
	default:
		return nil, fmt.Errorf("unknown identity hash %q", name)
	}
}

// RegistryCompatible reports whether h produces hashes the on-chain registry
// will recompute.
func RegistryCompatible(h Hasher) bool {
	return h != nil && h.Name() == HashKeccak256
}
