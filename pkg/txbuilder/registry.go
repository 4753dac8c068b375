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

package txbuilder

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Registry method names.
const (
	MethodRegisterAgent         = "registerAgent"
	MethodRegisterAgentWithPoAI = "registerAgentWithPoAI"
	MethodAddStake              = "addStake"
	MethodIsAgentRegistered     = "isAgentRegistered"
	MethodMinStake              = "minStake"
	MethodTotalAgents           = "totalAgents"
)

// RegistryABIJSON is the subset of the AgentRegistry contract ABI used by
// devices. Deployments with a different ABI pass their own via WithABI.
const RegistryABIJSON = `[
  {"type":"function","name":"registerAgent","stateMutability":"payable",
   "inputs":[{"name":"_agentId","type":"bytes32"},{"name":"_metadataIPFS","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"registerAgentWithPoAI","stateMutability":"payable",
   "inputs":[{"name":"_agentId","type":"bytes32"},{"name":"_metadataIPFS","type":"string"},{"name":"_kitePoAIHash","type":"bytes32"}],
   "outputs":[]},
  {"type":"function","name":"addStake","stateMutability":"payable",
   "inputs":[{"name":"_agentId","type":"bytes32"}],
   "outputs":[]},
  {"type":"function","name":"isAgentRegistered","stateMutability":"view",
   "inputs":[{"name":"_agentId","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"minStake","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalAgents","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]}
]`

// Registry wraps the parsed registry ABI.
type Registry struct {
	abi abi.ABI
}

// ParseRegistry parses an ABI JSON document. It must define registerAgent.
func ParseRegistry(abiJSON string) (*Registry, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: parse registry ABI: %v", ErrEncoding, err)
	}
	if _, ok := parsed.Methods[MethodRegisterAgent]; !ok {
		return nil, fmt.Errorf("%w: registry ABI has no %s method", ErrEncoding, MethodRegisterAgent)
	}
	return &Registry{abi: parsed}, nil
}

// Selector returns the 4-byte function selector of a method.
func (r *Registry) Selector(method string) ([]byte, error) {
	m, ok := r.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: unknown method %s", ErrEncoding, method)
	}
	return append([]byte(nil), m.ID...), nil
}

// Pack encodes selector and arguments for a method call.
func (r *Registry) Pack(method string, args ...any) ([]byte, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: pack %s: %v", ErrEncoding, method, err)
	}
	return data, nil
}

// PackRegister encodes registerAgent, or registerAgentWithPoAI when poai is set.
func (r *Registry) PackRegister(id common.Hash, metadataURI string, poai *common.Hash) ([]byte, error) {
	if poai != nil {
		return r.Pack(MethodRegisterAgentWithPoAI, [32]byte(id), metadataURI, [32]byte(*poai))
	}
	return r.Pack(MethodRegisterAgent, [32]byte(id), metadataURI)
}

// PackIsRegistered encodes isAgentRegistered(id) for eth_call.
func (r *Registry) PackIsRegistered(id common.Hash) ([]byte, error) {
	return r.Pack(MethodIsAgentRegistered, [32]byte(id))
}

// PackMinStake encodes minStake() for eth_call.
func (r *Registry) PackMinStake() ([]byte, error) {
	return r.Pack(MethodMinStake)
}

// UnpackBool decodes a single bool return value.
func (r *Registry) UnpackBool(method string, data []byte) (bool, error) {
	out, err := r.abi.Unpack(method, data)
	if err != nil {
		return false, fmt.Errorf("%w: unpack %s: %v", ErrEncoding, method, err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("%w: %s returned %d values", ErrEncoding, method, len(out))
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s did not return bool", ErrEncoding, method)
	}
	return v, nil
}

// UnpackUint decodes a single uint256 return value.
func (r *Registry) UnpackUint(method string, data []byte) (*big.Int, error) {
	out, err := r.abi.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", ErrEncoding, method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", ErrEncoding, method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s did not return uint256", ErrEncoding, method)
	}
	return v, nil
}
