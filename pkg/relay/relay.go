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

package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sage-x-project/sage/pkg/agent/crypto"
	"github.com/sage-x-project/sage/pkg/agent/did"
	"golang.org/x/time/rate"

	"github.com/agenthub-iot/agenthub-go/pkg/payment"
	"github.com/agenthub-iot/agenthub-go/pkg/signer"
)

const (
	HeaderAgentID   = "X-Agent-ID"
	HeaderRequestID = "X-Request-ID"

	// Headers of a 402 challenge.
	HeaderAcceptPayment = "X-Accept-Payment"
	HeaderPaymentAmount = "X-Payment-Amount"
	HeaderPaymentChain  = "X-Payment-Chain"
	HeaderPaymentTier   = "X-Payment-Tier"
)

const maxResponseBytes = 4 << 20

// StatusError is returned for non-2xx responses. Body is the raw response
// body; the relay does not interpret it.
type StatusError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), string(e.Body))
}

// PaymentRequired reports whether the server answered 402.
func (e *StatusError) PaymentRequired() bool {
	return e.StatusCode == http.StatusPaymentRequired
}

// Relay is the agent's HTTP client. Every request carries a request ID and,
// when a key pair is configured, an RFC9421 DID signature.
type Relay struct {
	agentDID   did.AgentDID
	keyPair    crypto.KeyPair
	signer     signer.RequestSigner
	httpClient *http.Client
	limiter    *rate.Limiter
	agentID    string
	userAgent  string
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient sets the HTTP client. The default has a 30 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Relay) {
		if hc != nil {
			r.httpClient = hc
		}
	}
}

// WithRateLimit caps outgoing requests to limit per second with burst.
// Requests wait for a token or for their context to end.
func WithRateLimit(limit float64, burst int) Option {
	return func(r *Relay) {
		if limit > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(limit), max(burst, 1))
		}
	}
}

// WithAgentID sets the X-Agent-ID value sent with sensor data.
func WithAgentID(id string) Option {
	return func(r *Relay) { r.agentID = id }
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(r *Relay) { r.userAgent = ua }
}

// WithClock sets the clock used when consuming payment authorizations.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the relay logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a relay that signs as agentDID. keyPair may be nil, in which
// case requests are sent unsigned.
func New(agentDID did.AgentDID, keyPair crypto.KeyPair, opts ...Option) *Relay {
	r := &Relay{
		agentDID:   agentDID,
		keyPair:    keyPair,
		signer:     signer.NewHTTPSigner(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 0),
		userAgent:  "agenthub-go",
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AgentDID returns the DID used as keyid.
func (r *Relay) AgentDID() did.AgentDID {
	return r.agentDID
}

// Do waits for the rate limiter, signs req and sends it. Components are the
// signature components; nil means signer.DefaultComponents.
func (r *Relay) Do(ctx context.Context, req *http.Request, components ...string) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.send(ctx, req, components)
}

func (r *Relay) send(ctx context.Context, req *http.Request, components []string) (*http.Response, error) {
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	if r.keyPair != nil && r.agentDID != "" {
		opts := &signer.SigningOptions{Components: components}
		if err := r.signer.SignRequestWithOptions(ctx, req, r.agentDID, r.keyPair, opts); err != nil {
			return nil, fmt.Errorf("failed to sign request: %w", err)
		}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	return resp, nil
}

// Pay consumes auth and posts body to url with the X-PAYMENT header. An
// empty body is sent as {}. The response body is returned for 2xx; any
// other status is a *StatusError.
func (r *Relay) Pay(ctx context.Context, url string, auth *payment.Authorization, body []byte) ([]byte, error) {
	if auth == nil {
		return nil, fmt.Errorf("authorization cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	value, err := auth.Consume(r.now())
	if err != nil {
		return nil, err
	}

	if len(body) == 0 {
		body = []byte("{}")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(payment.HeaderName, value)
	if auth.AgentID() != "" {
		req.Header.Set(HeaderAgentID, auth.AgentID())
	}

	r.logger.Info("sending paid request",
		"url", url,
		"amount", auth.Amount(),
		"token", auth.Token(),
		"tier", auth.Tier())

	return r.roundTrip(ctx, req, nil)
}

// SendSensorData posts a JSON reading to endpoint. The request carries
// X-Agent-ID and a DID signature covering the body digest.
func (r *Relay) SendSensorData(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("sensor data cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signer.HeaderContentDigest, signer.ContentDigest(body))
	if r.agentID != "" {
		req.Header.Set(HeaderAgentID, r.agentID)
	}

	return r.roundTrip(ctx, req, []string{"@method", "@target-uri", "content-digest"})
}

func (r *Relay) roundTrip(ctx context.Context, req *http.Request, components []string) ([]byte, error) {
	resp, err := r.send(ctx, req, components)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	r.logger.Debug("relay response",
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"request_id", req.Header.Get(HeaderRequestID))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}
	}
	return respBody, nil
}
