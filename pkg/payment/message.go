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

package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
)

// HeaderName is the HTTP header carrying the serialized authorization.
const HeaderName = "X-PAYMENT"

// MessageVersion is the version of the canonical message layout.
const MessageVersion = 1

// messagePrefix tags v1 messages so a signature can never be replayed as a
// different message format.
const messagePrefix = "x402-v1"

// Separator joins canonical message fields. Fields may not contain it.
const Separator = "|"

// ErrMalformedHeader is returned by ParseHeader for undecodable values.
var ErrMalformedHeader = errors.New("payment: malformed header")

// CanonicalMessage returns the exact bytes that are signed and that the
// verifying server reconstructs:
//
//	"x402-v1|" + url + "|" + amount + "|" + token + "|" + tier + "|" + issuedAtMillis
//
// issuedAtMillis is base-10 ASCII without leading zeros. The message is UTF-8
// with no trailing newline. Callers must validate fields first (see
// ValidateFields); this function does not escape.
func CanonicalMessage(url, amount, token, tier string, issuedAtMillis uint64) []byte {
	var b strings.Builder
	b.Grow(len(messagePrefix) + len(url) + len(amount) + len(token) + len(tier) + 26)
	b.WriteString(messagePrefix)
	for _, field := range []string{url, amount, token, tier} {
		b.WriteString(Separator)
		b.WriteString(field)
	}
	b.WriteString(Separator)
	b.WriteString(strconv.FormatUint(issuedAtMillis, 10))
	return []byte(b.String())
}

// Digest returns the EIP-191 personal_sign hash of a canonical message:
// keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg).
func Digest(msg []byte) common.Hash {
	return common.BytesToHash(accounts.TextHash(msg))
}

// Header is the JSON form of a signed authorization.
type Header struct {
	Version     int    `json:"version"`
	ResourceURL string `json:"resourceUrl"`
	Amount      string `json:"amount"`
	Token       string `json:"token"`
	Tier        string `json:"tier"`
	Timestamp   uint64 `json:"timestamp"`
	Signer      string `json:"signer"`
	Signature   string `json:"signature"`
	AgentID     string `json:"agentId,omitempty"`
}

// Message rebuilds the canonical message from the header fields.
func (h *Header) Message() []byte {
	return CanonicalMessage(h.ResourceURL, h.Amount, h.Token, h.Tier, h.Timestamp)
}

// Encode returns the compact JSON header value.
func (h *Header) Encode() (string, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseHeader decodes an X-PAYMENT header value.
func ParseHeader(value string) (*Header, error) {
	if strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedHeader)
	}
	var h Header
	dec := json.NewDecoder(strings.NewReader(value))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if h.Version != MessageVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedHeader, h.Version)
	}
	if !common.IsHexAddress(h.Signer) {
		return nil, fmt.Errorf("%w: signer is not an address", ErrMalformedHeader)
	}
	if err := ValidateFields(h.ResourceURL, h.Amount, h.Token, h.Tier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	return &h, nil
}
