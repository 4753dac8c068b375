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

// Package server provides HTTP middleware for services that agents call.
//
// # Paid Resources
//
// PaymentMiddleware answers 402 Payment Required until a request carries an
// X-PAYMENT header that verifies and covers the price. The challenge lists
// the price in headers so a device can build the matching authorization:
//
//	X-Accept-Payment: USDC
//	X-Payment-Amount: 0.15
//	X-Payment-Tier:   premium
//	X-Payment-Chain:  43113
//
// Example:
//
//	pv, _ := verifier.NewPaymentVerifier()
//	price, _ := server.PriceForTier(payment.TierPremium)
//	paid, _ := server.NewPaymentMiddleware(pv, price, server.WithChainID(43113))
//	http.Handle("/weather", paid.Wrap(weatherHandler))
//
// Handlers read the verified payment with GetPaymentFromContext.
//
// # Signed Requests
//
// DIDAuthMiddleware verifies RFC9421 signatures and stores the caller's DID
// in the request context:
//
//	auth := server.NewDIDAuthMiddleware()
//	http.Handle("/api/sensors", auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	    agentDID, _ := server.GetAgentDIDFromContext(r.Context())
//	    fmt.Fprintf(w, "reading from %s", agentDID)
//	})))
//
// Use SetOptional(true) to let unsigned requests through and SetErrorHandler
// to change the 401 response.
package server
