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

// Package payment builds signed x402-style payment authorizations.
//
// An Authorization moves through Idle, Composing, Signed and then Consumed or
// Expired. The signed bytes are the canonical v1 message
//
//	x402-v1|<url>|<amount>|<token>|<tier>|<issuedAtMillis>
//
// hashed with the EIP-191 personal_sign prefix, so any Ethereum tool can
// recover the paying agent's address from the header alone.
//
// Example:
//
//	ks, _ := keystore.FromHex(os.Getenv("AGENTHUB_PRIVATE_KEY"))
//	authz := payment.NewAuthorizer(payment.WithAgentID("sensor-42"))
//	auth, err := authz.Authorize("https://api.example.com/x", "0.01", "USDC", "basic", ks)
//	if err != nil {
//		return err
//	}
//	value, err := auth.Consume(time.Now())
//	req.Header.Set(payment.HeaderName, value)
package payment
