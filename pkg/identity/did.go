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

package identity

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sage-x-project/sage/pkg/agent/did"
)

// DIDPrefix is the method prefix for agent DIDs.
const DIDPrefix = "did:sage:"

// DID returns the agent DID for an address on a chain, e.g.
// did:sage:avalanche:0x970e8128ab834e8eac17ab8e3812f010678cf791.
func DID(chain string, addr common.Address) did.AgentDID {
	return did.AgentDID(DIDPrefix + strings.ToLower(chain) + ":" + strings.ToLower(addr.Hex()))
}

// AddressFromDID extracts the address and chain from an agent DID.
func AddressFromDID(agentDID did.AgentDID) (string, common.Address, error) {
	s := string(agentDID)
	if !strings.HasPrefix(s, DIDPrefix) {
		return "", common.Address{}, fmt.Errorf("not a sage DID: %q", s)
	}
	parts := strings.Split(strings.TrimPrefix(s, DIDPrefix), ":")
	if len(parts) != 2 || parts[0] == "" {
		return "", common.Address{}, fmt.Errorf("malformed DID: %q", s)
	}
	if !common.IsHexAddress(parts[1]) {
		return "", common.Address{}, fmt.Errorf("DID does not carry an address: %q", s)
	}
	return parts[0], common.HexToAddress(parts[1]), nil
}
