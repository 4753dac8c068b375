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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	lru "github.com/hashicorp/golang-lru"

	"github.com/agenthub-iot/agenthub-go/pkg/keystore"
	"github.com/agenthub-iot/agenthub-go/pkg/payment"
)

var (
	ErrMalformedPayment = errors.New("verifier: malformed payment header")
	ErrResourceMismatch = errors.New("verifier: payment is for a different resource")
	ErrBadSignature     = errors.New("verifier: bad payment signature")
	ErrSignerMismatch   = errors.New("verifier: signature does not match claimed signer")
	ErrStale            = errors.New("verifier: payment too old")
	ErrFromFuture       = errors.New("verifier: payment timestamp in the future")
	ErrReplay           = errors.New("verifier: payment already used")
	ErrNotAllowed       = errors.New("verifier: payer not allowed")
)

const (
	DefaultMaxAge          = 5 * time.Minute
	DefaultMaxSkew         = 30 * time.Second
	DefaultReplayCacheSize = 4096
)

// AllowFunc decides whether a payer with a valid signature may use the
// resource, e.g. by checking on-chain registration.
type AllowFunc func(ctx context.Context, payer common.Address, h *payment.Header) error

// Verified is a payment that passed every check.
type Verified struct {
	Header   *payment.Header
	Payer    common.Address
	IssuedAt time.Time
}

// PaymentVerifier checks X-PAYMENT headers on the resource server side.
type PaymentVerifier struct {
	maxAge  time.Duration
	maxSkew time.Duration
	now     func() time.Time
	allow   AllowFunc
	seen    *lru.Cache
	logger  *slog.Logger
}

// PaymentOption configures a PaymentVerifier.
type PaymentOption func(*paymentConfig)

type paymentConfig struct {
	maxAge    time.Duration
	maxSkew   time.Duration
	now       func() time.Time
	allow     AllowFunc
	cacheSize int
	logger    *slog.Logger
}

// WithMaxAge sets how old a payment timestamp may be.
func WithMaxAge(d time.Duration) PaymentOption {
	return func(c *paymentConfig) { c.maxAge = d }
}

// WithMaxSkew sets how far a payment timestamp may lie in the future.
func WithMaxSkew(d time.Duration) PaymentOption {
	return func(c *paymentConfig) { c.maxSkew = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) PaymentOption {
	return func(c *paymentConfig) { c.now = now }
}

// WithAllowFunc installs an extra admission check run after the signature
// and freshness checks.
func WithAllowFunc(fn AllowFunc) PaymentOption {
	return func(c *paymentConfig) { c.allow = fn }
}

// WithReplayCacheSize bounds how many recent payments are remembered.
// Payments older than the max age are rejected as stale anyway, so the
// cache only needs to cover one window of traffic.
func WithReplayCacheSize(n int) PaymentOption {
	return func(c *paymentConfig) { c.cacheSize = n }
}

// WithLogger sets the logger for rejected payments.
func WithLogger(l *slog.Logger) PaymentOption {
	return func(c *paymentConfig) { c.logger = l }
}

// NewPaymentVerifier creates a PaymentVerifier.
func NewPaymentVerifier(opts ...PaymentOption) (*PaymentVerifier, error) {
	cfg := paymentConfig{
		maxAge:    DefaultMaxAge,
		maxSkew:   DefaultMaxSkew,
		now:       time.Now,
		cacheSize: DefaultReplayCacheSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxAge <= 0 {
		return nil, fmt.Errorf("max age must be positive")
	}
	if cfg.now == nil {
		return nil, fmt.Errorf("clock cannot be nil")
	}
	seen, err := lru.New(cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("replay cache: %w", err)
	}
	return &PaymentVerifier{
		maxAge:  cfg.maxAge,
		maxSkew: cfg.maxSkew,
		now:     cfg.now,
		allow:   cfg.allow,
		seen:    seen,
		logger:  cfg.logger,
	}, nil
}

// Verify checks a header value for resourceURL. An empty resourceURL skips
// the resource binding check. A payment is accepted at most once.
func (v *PaymentVerifier) Verify(ctx context.Context, header, resourceURL string) (*Verified, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	h, err := payment.ParseHeader(header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayment, err)
	}
	if resourceURL != "" && h.ResourceURL != resourceURL {
		return nil, fmt.Errorf("%w: signed for %s", ErrResourceMismatch, h.ResourceURL)
	}

	raw, err := hexutil.Decode(h.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	sig, err := keystore.SignatureFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !sig.IsLowS() {
		return nil, fmt.Errorf("%w: high s", ErrBadSignature)
	}

	digest := payment.Digest(h.Message())
	payer, err := keystore.RecoverAddress(digest, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if payer != common.HexToAddress(h.Signer) {
		return nil, ErrSignerMismatch
	}

	now := v.now()
	issued := time.UnixMilli(int64(h.Timestamp))
	if now.Sub(issued) > v.maxAge {
		return nil, ErrStale
	}
	if issued.Sub(now) > v.maxSkew {
		return nil, ErrFromFuture
	}

	if v.allow != nil {
		if err := v.allow(ctx, payer, h); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotAllowed, err)
		}
	}

	if seen, _ := v.seen.ContainsOrAdd(digest, struct{}{}); seen {
		v.logger.Warn("payment replay rejected", "payer", payer.Hex(), "resource", h.ResourceURL)
		return nil, ErrReplay
	}

	v.logger.Debug("payment verified",
		"payer", payer.Hex(),
		"amount", h.Amount,
		"token", h.Token,
		"tier", h.Tier)

	return &Verified{Header: h, Payer: payer, IssuedAt: issued}, nil
}
