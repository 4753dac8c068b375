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
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CallMsg is the transaction object of eth_call and eth_estimateGas.
type CallMsg struct {
	From  *common.Address `json:"from,omitempty"`
	To    common.Address  `json:"to"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
}

// ChainID returns eth_chainId.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var v hexutil.Uint64
	if err := c.callInto(ctx, &v, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(v), nil
}

// PendingNonce returns the account nonce including pending transactions.
func (c *Client) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	var v hexutil.Uint64
	if err := c.callInto(ctx, &v, "eth_getTransactionCount", addr, "pending"); err != nil {
		return 0, err
	}
	return uint64(v), nil
}

// GasPrice returns eth_gasPrice in wei.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var v hexutil.Big
	if err := c.callInto(ctx, &v, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return (*big.Int)(&v), nil
}

// MaxPriorityFee returns eth_maxPriorityFeePerGas in wei.
func (c *Client) MaxPriorityFee(ctx context.Context) (*big.Int, error) {
	var v hexutil.Big
	if err := c.callInto(ctx, &v, "eth_maxPriorityFeePerGas"); err != nil {
		return nil, err
	}
	return (*big.Int)(&v), nil
}

// EstimateGas returns eth_estimateGas for msg.
func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	var v hexutil.Uint64
	if err := c.callInto(ctx, &v, "eth_estimateGas", msg); err != nil {
		return 0, err
	}
	return uint64(v), nil
}

// SendRawTransaction submits a signed transaction and returns the hash the
// node reports.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var h common.Hash
	if err := c.callInto(ctx, &h, "eth_sendRawTransaction", hexutil.Bytes(raw)); err != nil {
		return common.Hash{}, err
	}
	return h, nil
}

// CallContract executes a read-only call against the latest block.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out hexutil.Bytes
	if err := c.callInto(ctx, &out, "eth_call", CallMsg{To: to, Data: data}, "latest"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) callInto(ctx context.Context, dst any, method string, params ...any) error {
	result, err := c.Call(ctx, method, params...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result, dst); err != nil {
		return fmt.Errorf("%w: %s: result %s: %v", ErrMalformedResponse, method, truncate(result), err)
	}
	return nil
}

func truncate(b []byte) string {
	const n = 64
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
