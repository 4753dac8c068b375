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
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/agenthub-iot/agenthub-go/pkg/keystore"
	"github.com/agenthub-iot/agenthub-go/pkg/units"
)

var (
	// ErrInvalidInput is returned for empty or unsafe url, token or tier fields.
	ErrInvalidInput = errors.New("payment: invalid input")

	// ErrInvalidAmount is returned when the amount is not a positive decimal.
	ErrInvalidAmount = errors.New("payment: invalid amount")

	// ErrInvalidState is returned when an operation is not allowed in the
	// authorization's current state.
	ErrInvalidState = errors.New("payment: invalid state")

	// ErrConsumed is returned when a signed authorization is used twice.
	ErrConsumed = errors.New("payment: authorization already consumed")

	// ErrExpired is returned when a signed authorization is older than the
	// configured maximum age.
	ErrExpired = errors.New("payment: authorization expired")

	// ErrSigningFailure is returned when the signer produced an unusable
	// signature.
	ErrSigningFailure = errors.New("payment: signing failure")
)

// DefaultMaxAge is how long a signed authorization may wait before use.
const DefaultMaxAge = 5 * time.Minute

// Signer signs 32-byte digests. *keystore.KeyStore implements it.
type Signer interface {
	Sign(digest [32]byte) (keystore.Signature, error)
	Address() (common.Address, error)
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithClock replaces the wall clock used for issuedAtMillis.
func WithClock(now func() time.Time) Option {
	return func(a *Authorizer) {
		if now != nil {
			a.now = now
		}
	}
}

// WithMaxAge sets how long a signed authorization stays usable. Zero
// disables the client-side expiry check.
func WithMaxAge(d time.Duration) Option {
	return func(a *Authorizer) {
		a.maxAge = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Authorizer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithAgentID attaches an agent identifier to every header. It is carried
// outside the signed message.
func WithAgentID(id string) Option {
	return func(a *Authorizer) {
		a.agentID = id
	}
}

// Authorizer composes and signs payment authorizations.
//
// Timestamps are strictly increasing per Authorizer: two authorizations
// composed within the same millisecond get distinct issuedAtMillis values, so
// their canonical messages and signatures always differ.
type Authorizer struct {
	mu         sync.Mutex
	now        func() time.Time
	maxAge     time.Duration
	agentID    string
	logger     *slog.Logger
	lastIssued uint64
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(opts ...Option) *Authorizer {
	a := &Authorizer{
		now:    time.Now,
		maxAge: DefaultMaxAge,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compose validates the fields and stamps the issue time. The result is in
// StateComposing and carries no signature.
func (a *Authorizer) Compose(resourceURL, amount, token, tier string) (*Authorization, error) {
	if err := ValidateFields(resourceURL, amount, token, tier); err != nil {
		return nil, err
	}

	a.mu.Lock()
	issued := uint64(a.now().UnixMilli())
	if issued <= a.lastIssued {
		issued = a.lastIssued + 1
	}
	a.lastIssued = issued
	a.mu.Unlock()

	return &Authorization{
		resourceURL: resourceURL,
		amount:      amount,
		token:       token,
		tier:        tier,
		issuedAt:    issued,
		agentID:     a.agentID,
		maxAge:      a.maxAge,
		state:       StateComposing,
	}, nil
}

// Sign signs a composed authorization with the EIP-191 digest of its
// canonical message. On failure the authorization stays in StateComposing.
func (a *Authorizer) Sign(auth *Authorization, signer Signer) (*Authorization, error) {
	if auth == nil {
		return nil, fmt.Errorf("%w: authorization cannot be nil", ErrInvalidState)
	}
	if signer == nil {
		return nil, fmt.Errorf("signer cannot be nil")
	}

	auth.mu.Lock()
	defer auth.mu.Unlock()

	if auth.state != StateComposing {
		return nil, fmt.Errorf("%w: cannot sign in state %s", ErrInvalidState, auth.state)
	}

	from, err := signer.Address()
	if err != nil {
		return nil, fmt.Errorf("payment: signer address: %w", err)
	}
	digest := Digest(auth.messageLocked())
	sig, err := signer.Sign(digest)
	if err != nil {
		a.logger.Error("payment signing failed", "from", from, "error", err)
		return nil, fmt.Errorf("payment: sign: %w", err)
	}
	recovered, err := keystore.RecoverAddress(digest, sig)
	if err != nil || recovered != from {
		a.logger.Error("payment signature does not recover to signer", "from", from, "recovered", recovered)
		return nil, ErrSigningFailure
	}

	auth.signature = sig.EthereumBytes()
	auth.signer = from
	auth.state = StateSigned

	a.logger.Debug("payment authorization signed",
		"resource", auth.resourceURL,
		"amount", auth.amount,
		"token", auth.token,
		"tier", auth.tier,
		"issued_at", auth.issuedAt,
		"signer", from.Hex())

	return auth, nil
}

// Authorize composes and signs in one step.
func (a *Authorizer) Authorize(resourceURL, amount, token, tier string, signer Signer) (*Authorization, error) {
	auth, err := a.Compose(resourceURL, amount, token, tier)
	if err != nil {
		return nil, err
	}
	return a.Sign(auth, signer)
}

// ValidateFields checks the fields of a canonical message.
func ValidateFields(resourceURL, amount, token, tier string) error {
	if err := validateURL(resourceURL); err != nil {
		return err
	}
	if !units.IsDecimal(amount) {
		return fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, amount)
	}
	if strings.Trim(strings.ReplaceAll(amount, ".", ""), "0") == "" {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if err := validateField("token", token); err != nil {
		return err
	}
	return validateField("tier", tier)
}

func validateURL(raw string) error {
	if err := validateField("url", raw); err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalidInput, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be absolute http(s)", ErrInvalidInput)
	}
	return nil
}

func validateField(name, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, name)
	}
	if strings.Contains(v, Separator) {
		return fmt.Errorf("%w: %s contains %q", ErrInvalidInput, name, Separator)
	}
	if strings.IndexFunc(v, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: %s contains control characters", ErrInvalidInput, name)
	}
	return nil
}

// signatureHex is the 0x-prefixed lowercase hex form used in headers.
func signatureHex(sig []byte) string {
	return hexutil.Encode(sig)
}
