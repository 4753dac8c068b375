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
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyName is returned for an empty agent name.
	ErrEmptyName = errors.New("identity: agent name is empty")

	// ErrInvalidName is returned for names that are not valid UTF-8, or not
	// NFC when normalization checking is enabled.
	ErrInvalidName = errors.New("identity: invalid agent name")
)

// Derive returns Default.Sum of the UTF-8 bytes of name.
func Derive(name string) common.Hash {
	return DeriveWith(Default, name)
}

// DeriveWith hashes name with the given strategy.
func DeriveWith(h Hasher, name string) common.Hash {
	return h.Sum([]byte(name))
}

// AgentIdentity is an agent name and its identity hash. It is computed once
// and never changes.
type AgentIdentity struct {
	name   string
	hash   common.Hash
	hasher string
}

// Option configures NewAgentIdentity.
type Option func(*options)

type options struct {
	hasher     Hasher
	requireNFC bool
}

// WithHasher selects a hash strategy other than Default.
func WithHasher(h Hasher) Option {
	return func(o *options) {
		if h != nil {
			o.hasher = h
		}
	}
}

// WithNFCCheck rejects names that are not in Unicode NFC form. The name is
// never rewritten, since the registry hashes the exact bytes it is given.
func WithNFCCheck() Option {
	return func(o *options) {
		o.requireNFC = true
	}
}

// NewAgentIdentity validates name and derives its hash.
func NewAgentIdentity(name string, opts ...Option) (AgentIdentity, error) {
	o := options{hasher: Default}
	for _, opt := range opts {
		opt(&o)
	}

	if name == "" {
		return AgentIdentity{}, ErrEmptyName
	}
	if !utf8.ValidString(name) {
		return AgentIdentity{}, fmt.Errorf("%w: not valid UTF-8", ErrInvalidName)
	}
	if o.requireNFC && !norm.NFC.IsNormalString(name) {
		return AgentIdentity{}, fmt.Errorf("%w: not NFC normalized", ErrInvalidName)
	}

	return AgentIdentity{
		name:   name,
		hash:   DeriveWith(o.hasher, name),
		hasher: o.hasher.Name(),
	}, nil
}

// Name returns the human-assigned agent name.
func (id AgentIdentity) Name() string { return id.name }

// Hash returns the identity hash.
func (id AgentIdentity) Hash() common.Hash { return id.hash }

// HasherName returns the strategy that produced Hash.
func (id AgentIdentity) HasherName() string { return id.hasher }

// IsZero reports whether the identity was never initialized.
func (id AgentIdentity) IsZero() bool { return id.name == "" }

// String returns "name (0xhash)".
func (id AgentIdentity) String() string {
	return fmt.Sprintf("%s (%s)", id.name, id.hash.Hex())
}
