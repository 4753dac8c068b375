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

package signer

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrMalformedSignature is returned when Signature or Signature-Input cannot
// be parsed.
var ErrMalformedSignature = errors.New("signer: malformed signature header")

// SignatureInput is the parsed form of a Signature-Input member.
type SignatureInput struct {
	Label      string
	Components []string
	Created    int64
	Expires    int64
	Nonce      string
	KeyID      string
	Alg        string

	// Params is the raw inner list with parameters, exactly as it appears in
	// the header and in the "@signature-params" line of the base.
	Params string
}

// BuildSignatureBase returns the bytes that are signed for req. params is the
// serialized inner list from Signature-Input and becomes the final
// "@signature-params" line.
func BuildSignatureBase(req *http.Request, components []string, params string) (string, error) {
	lines := make([]string, 0, len(components)+1)

	for _, component := range components {
		var value string

		switch component {
		case "@method":
			value = req.Method
		case "@target-uri":
			value = targetURI(req)
		case "@authority":
			value = req.Host
			if value == "" && req.URL != nil {
				value = req.URL.Host
			}
		case "@path":
			value = req.URL.EscapedPath()
		default:
			if strings.HasPrefix(component, "@") {
				return "", fmt.Errorf("unsupported derived component %s", component)
			}
			values := req.Header.Values(component)
			if len(values) == 0 {
				return "", fmt.Errorf("covered header %s is missing", component)
			}
			value = strings.Join(values, ", ")
		}

		lines = append(lines, fmt.Sprintf(`"%s": %s`, strings.ToLower(component), value))
	}
	lines = append(lines, fmt.Sprintf(`"@signature-params": %s`, params))

	return strings.Join(lines, "\n"), nil
}

func targetURI(req *http.Request) string {
	if req.URL != nil && req.URL.IsAbs() {
		return req.URL.String()
	}
	// Server side: rebuild the absolute form from Host.
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + req.Host + req.URL.RequestURI()
}

// buildParams serializes the inner list with parameters.
func buildParams(components []string, keyID, alg string, created, expires int64, nonce string) string {
	quoted := make([]string, len(components))
	for i, c := range components {
		quoted[i] = strconv.Quote(strings.ToLower(c))
	}

	params := []string{"(" + strings.Join(quoted, " ") + ")"}
	if created > 0 {
		params = append(params, fmt.Sprintf("created=%d", created))
	}
	if expires > 0 {
		params = append(params, fmt.Sprintf("expires=%d", expires))
	}
	if nonce != "" {
		params = append(params, fmt.Sprintf(`nonce="%s"`, nonce))
	}
	params = append(params, fmt.Sprintf(`keyid="%s"`, keyID))
	if alg != "" {
		params = append(params, fmt.Sprintf(`alg="%s"`, alg))
	}
	return strings.Join(params, ";")
}

// ParseSignatureInput parses a Signature-Input value produced by this package.
func ParseSignatureInput(value string) (*SignatureInput, error) {
	label, params, ok := strings.Cut(strings.TrimSpace(value), "=")
	if !ok || label == "" {
		return nil, fmt.Errorf("%w: missing label", ErrMalformedSignature)
	}
	if !strings.HasPrefix(params, "(") {
		return nil, fmt.Errorf("%w: missing component list", ErrMalformedSignature)
	}
	end := strings.Index(params, ")")
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated component list", ErrMalformedSignature)
	}

	in := &SignatureInput{Label: label, Params: params}
	for _, c := range strings.Fields(params[1:end]) {
		name, err := strconv.Unquote(c)
		if err != nil {
			return nil, fmt.Errorf("%w: component %s", ErrMalformedSignature, c)
		}
		in.Components = append(in.Components, name)
	}

	for _, p := range strings.Split(params[end+1:], ";") {
		if p == "" {
			continue
		}
		key, val, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("%w: parameter %q", ErrMalformedSignature, p)
		}
		var err error
		switch key {
		case "created":
			in.Created, err = strconv.ParseInt(val, 10, 64)
		case "expires":
			in.Expires, err = strconv.ParseInt(val, 10, 64)
		case "nonce":
			in.Nonce, err = strconv.Unquote(val)
		case "keyid":
			in.KeyID, err = strconv.Unquote(val)
		case "alg":
			in.Alg, err = strconv.Unquote(val)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s: %v", ErrMalformedSignature, key, err)
		}
	}

	if in.KeyID == "" {
		return nil, fmt.Errorf("%w: keyid not found", ErrMalformedSignature)
	}
	return in, nil
}

// ParseSignature decodes a Signature header value of the form label=:b64:.
func ParseSignature(value, label string) ([]byte, error) {
	prefix := label + "=:"
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, prefix) || !strings.HasSuffix(value, ":") || len(value) <= len(prefix)+1 {
		return nil, fmt.Errorf("%w: expected %s=:<base64>:", ErrMalformedSignature, label)
	}
	sig, err := base64.StdEncoding.DecodeString(value[len(prefix) : len(value)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return sig, nil
}

func buildSignatureHeader(signature []byte) string {
	return fmt.Sprintf("%s=:%s:", Label, base64.StdEncoding.EncodeToString(signature))
}

// ContentDigest returns the Content-Digest value for body (sha-256).
func ContentDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return "sha-256=:" + base64.StdEncoding.EncodeToString(sum[:]) + ":"
}
