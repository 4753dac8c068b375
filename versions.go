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

// Package agenthub holds version constants for agenthub-go.
package agenthub

const (
	// Version is the current version of agenthub-go
	Version = "0.3.0"

	// PaymentMessageVersion is the canonical x402 message version signed by devices
	PaymentMessageVersion = 1

	// A2AProtocolVersion is the A2A Protocol version of the agent cards this library emits
	// See: https://github.com/a2aproject/A2A
	A2AProtocolVersion = "0.4.0"

	// SAGEVersion is the SAGE core version whose DID and key types are used
	SAGEVersion = "1.3.1"
)
