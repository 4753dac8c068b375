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
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// State is the lifecycle position of an Authorization.
type State int

const (
	// StateIdle is the zero value before any fields are set.
	StateIdle State = iota
	// StateComposing means fields are fixed but no signature exists yet.
	StateComposing
	// StateSigned means the authorization can be attached to one request.
	StateSigned
	// StateConsumed means it was already attached to a request.
	StateConsumed
	// StateExpired means it outlived its max age before being used.
	StateExpired
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateSigned:
		return "signed"
	case StateConsumed:
		return "consumed"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Authorization is a payment authorization bound to one resource request.
// Its fields are fixed once composed; only the state moves.
type Authorization struct {
	mu sync.Mutex

	resourceURL string
	amount      string
	token       string
	tier        string
	issuedAt    uint64
	agentID     string
	maxAge      time.Duration

	signer    common.Address
	signature []byte
	state     State
}

// ResourceURL returns the URL the payment is bound to.
func (a *Authorization) ResourceURL() string { return a.resourceURL }

// Amount returns the decimal amount as signed.
func (a *Authorization) Amount() string { return a.amount }

// Token returns the payment token symbol.
func (a *Authorization) Token() string { return a.token }

// Tier returns the service tier.
func (a *Authorization) Tier() string { return a.tier }

// IssuedAtMillis returns the issue time in Unix milliseconds.
func (a *Authorization) IssuedAtMillis() uint64 { return a.issuedAt }

// AgentID returns the identity the payment is made for, if set.
func (a *Authorization) AgentID() string { return a.agentID }

// IssuedAt returns the issue time.
func (a *Authorization) IssuedAt() time.Time {
	return time.UnixMilli(int64(a.issuedAt))
}

// State returns the current lifecycle state.
func (a *Authorization) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Signer returns the signing address, or the zero address before signing.
func (a *Authorization) Signer() common.Address {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signer
}

// Signature returns a copy of the 65-byte R||S||V signature (V in {27,28}),
// or nil before signing.
func (a *Authorization) Signature() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.signature == nil {
		return nil
	}
	return append([]byte(nil), a.signature...)
}

// Message returns the canonical message bytes.
func (a *Authorization) Message() []byte {
	return a.messageLocked()
}

func (a *Authorization) messageLocked() []byte {
	return CanonicalMessage(a.resourceURL, a.amount, a.token, a.tier, a.issuedAt)
}

// Header returns the header form. It does not change state.
func (a *Authorization) Header() (*Header, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.signature == nil {
		return nil, fmt.Errorf("%w: authorization is not signed", ErrInvalidState)
	}
	return a.headerLocked(), nil
}

func (a *Authorization) headerLocked() *Header {
	return &Header{
		Version:     MessageVersion,
		ResourceURL: a.resourceURL,
		Amount:      a.amount,
		Token:       a.token,
		Tier:        a.tier,
		Timestamp:   a.issuedAt,
		Signer:      a.signer.Hex(),
		Signature:   signatureHex(a.signature),
		AgentID:     a.agentID,
	}
}

// Consume returns the X-PAYMENT header value and moves the authorization to
// StateConsumed. A signed authorization can be consumed once. If it is older
// than its max age at now, it moves to StateExpired instead.
func (a *Authorization) Consume(now time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.state {
	case StateSigned:
	case StateConsumed:
		return "", ErrConsumed
	case StateExpired:
		return "", ErrExpired
	default:
		return "", fmt.Errorf("%w: cannot consume in state %s", ErrInvalidState, a.state)
	}

	if a.maxAge > 0 && now.Sub(time.UnixMilli(int64(a.issuedAt))) > a.maxAge {
		a.state = StateExpired
		return "", ErrExpired
	}

	value, err := a.headerLocked().Encode()
	if err != nil {
		return "", err
	}
	a.state = StateConsumed
	return value, nil
}
