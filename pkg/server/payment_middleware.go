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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/agenthub-iot/agenthub-go/pkg/payment"
	"github.com/agenthub-iot/agenthub-go/pkg/units"
	"github.com/agenthub-iot/agenthub-go/pkg/verifier"
)

const (
	HeaderAcceptPayment = "X-Accept-Payment"
	HeaderPaymentAmount = "X-Payment-Amount"
	HeaderPaymentChain  = "X-Payment-Chain"
	HeaderPaymentTier   = "X-Payment-Tier"
)

// TokenDecimals is used to compare decimal amounts of the priced token.
const TokenDecimals = 6

// ErrUnderpaid is returned when the signed amount is below the price or
// names another token or tier.
var ErrUnderpaid = errors.New("server: payment does not cover price")

// Price is what a protected resource costs.
type Price struct {
	Amount string
	Token  string
	Tier   payment.Tier
}

// PriceForTier returns the built-in price of a tier in payment.DefaultToken.
func PriceForTier(t payment.Tier) (Price, error) {
	amount, err := payment.AmountForTier(t)
	if err != nil {
		return Price{}, err
	}
	return Price{Amount: amount, Token: payment.DefaultToken, Tier: t}, nil
}

// PaymentMiddleware answers 402 until the request carries a valid X-PAYMENT
// header that covers the price.
type PaymentMiddleware struct {
	verifier    *verifier.PaymentVerifier
	price       Price
	minimum     *big.Int
	chainID     uint64
	resourceURL func(*http.Request) string
	logger      *slog.Logger
}

// PaymentOption configures a PaymentMiddleware.
type PaymentOption func(*PaymentMiddleware)

// WithResourceURL overrides how the signed resource URL is derived from a
// request, e.g. behind a proxy that rewrites the host.
func WithResourceURL(fn func(*http.Request) string) PaymentOption {
	return func(m *PaymentMiddleware) { m.resourceURL = fn }
}

// WithChainID rejects payments whose header names another chain.
func WithChainID(chainID uint64) PaymentOption {
	return func(m *PaymentMiddleware) { m.chainID = chainID }
}

// WithPaymentLogger sets the middleware logger.
func WithPaymentLogger(l *slog.Logger) PaymentOption {
	return func(m *PaymentMiddleware) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewPaymentMiddleware creates the middleware for one price.
func NewPaymentMiddleware(pv *verifier.PaymentVerifier, price Price, opts ...PaymentOption) (*PaymentMiddleware, error) {
	if pv == nil {
		return nil, fmt.Errorf("verifier cannot be nil")
	}
	minimum, err := units.ParseUnits(price.Amount, TokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("invalid price: %w", err)
	}
	if price.Token == "" || price.Tier == "" {
		return nil, fmt.Errorf("price needs a token and tier")
	}
	m := &PaymentMiddleware{
		verifier:    pv,
		price:       price,
		minimum:     minimum,
		resourceURL: requestURL,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Wrap protects next.
func (m *PaymentMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(payment.HeaderName)
		if header == "" {
			m.challenge(w, "payment required")
			return
		}

		v, err := m.verifier.Verify(r.Context(), header, m.resourceURL(r))
		if err == nil {
			err = m.covers(v.Header)
		}
		if err != nil {
			m.logger.Info("payment rejected", "path", r.URL.Path, "error", err)
			m.challenge(w, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), paymentKey, v)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *PaymentMiddleware) covers(h *payment.Header) error {
	if h.Token != m.price.Token {
		return fmt.Errorf("%w: token %s, want %s", ErrUnderpaid, h.Token, m.price.Token)
	}
	if h.Tier != string(m.price.Tier) {
		return fmt.Errorf("%w: tier %s, want %s", ErrUnderpaid, h.Tier, m.price.Tier)
	}
	paid, err := units.ParseUnits(h.Amount, TokenDecimals)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnderpaid, err)
	}
	if paid.Cmp(m.minimum) < 0 {
		return fmt.Errorf("%w: amount %s, want %s", ErrUnderpaid, h.Amount, m.price.Amount)
	}
	return nil
}

type challengeBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Amount  string `json:"amount"`
	Token   string `json:"token"`
	Tier    string `json:"tier"`
	ChainID uint64 `json:"chainId,omitempty"`
}

func (m *PaymentMiddleware) challenge(w http.ResponseWriter, msg string) {
	w.Header().Set(HeaderAcceptPayment, m.price.Token)
	w.Header().Set(HeaderPaymentAmount, m.price.Amount)
	w.Header().Set(HeaderPaymentTier, string(m.price.Tier))
	if m.chainID != 0 {
		w.Header().Set(HeaderPaymentChain, strconv.FormatUint(m.chainID, 10))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(challengeBody{
		Error:   "payment_required",
		Message: msg,
		Amount:  m.price.Amount,
		Token:   m.price.Token,
		Tier:    string(m.price.Tier),
		ChainID: m.chainID,
	})
}

// GetPaymentFromContext returns the verified payment of a request that
// passed PaymentMiddleware.
func GetPaymentFromContext(ctx context.Context) (*verifier.Verified, bool) {
	v, ok := ctx.Value(paymentKey).(*verifier.Verified)
	return v, ok
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}
