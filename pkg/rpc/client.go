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

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// ErrMalformedResponse is returned when a response is not a JSON-RPC 2.0
// object carrying either a result or an error.
var ErrMalformedResponse = errors.New("rpc: malformed response")

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// RPCError is a JSON-RPC 2.0 error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// StatusError is returned for non-200 HTTP responses. The body is kept
// verbatim and not interpreted.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), string(e.Body))
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// Client is a JSON-RPC 2.0 client for an Ethereum-compatible node.
// It is safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
	headers    http.Header
	logger     *slog.Logger
	nextID     atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. The default has a 30 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithHeader adds a header to every request, e.g. an API key.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Add(key, value) }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the node at url.
func NewClient(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("rpc url cannot be empty")
	}
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    make(http.Header),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the node endpoint.
func (c *Client) URL() string {
	return c.url
}

// Call invokes method with positional params and returns the raw result.
// A JSON null result is returned as the literal "null".
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	id := c.nextID.Add(1)

	body, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON-RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: HTTP request failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response body: %w", method, err)
	}

	c.logger.Debug("rpc call",
		"method", method,
		"id", id,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}

	return decodeResponse(method, id, respBody)
}

// decodeResponse requires an object with a top-level "result" or "error"
// member. Nested or differently named results are rejected.
func decodeResponse(method string, id uint64, body []byte) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, method, err)
	}

	if rawID, ok := fields["id"]; ok {
		var got uint64
		if err := json.Unmarshal(rawID, &got); err != nil || got != id {
			return nil, fmt.Errorf("%w: %s: id %s does not match request %d", ErrMalformedResponse, method, rawID, id)
		}
	}

	if rawErr, ok := fields["error"]; ok && string(rawErr) != "null" {
		var rpcErr RPCError
		if err := json.Unmarshal(rawErr, &rpcErr); err != nil {
			return nil, fmt.Errorf("%w: %s: error object: %v", ErrMalformedResponse, method, err)
		}
		return nil, &rpcErr
	}

	result, ok := fields["result"]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no result", ErrMalformedResponse, method)
	}
	return result, nil
}
