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
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/agenthub-iot/agenthub-go/pkg/keystore"
	"github.com/agenthub-iot/agenthub-go/pkg/units"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru"
)

var (
	// ErrEncoding is returned when a field cannot be encoded: numeric
	// overflow, missing required fields or ABI packing failure.
	ErrEncoding = errors.New("txbuilder: encoding error")

	// ErrNonceReused is returned when a second transaction is signed for the
	// same sender, chain and nonce without WithResign.
	ErrNonceReused = errors.New("txbuilder: nonce already signed")
)

// DefaultGuardSize bounds the number of (sender, chain, nonce) triples
// remembered by the reuse guard.
const DefaultGuardSize = 256

// Signer signs 32-byte digests. *keystore.KeyStore implements it.
type Signer interface {
	Sign(digest [32]byte) (keystore.Signature, error)
	Address() (common.Address, error)
}

// GasParams selects the fee model. Set GasPrice for a legacy (EIP-155)
// transaction, or GasFeeCap and GasTipCap for an EIP-1559 transaction.
type GasParams struct {
	GasLimit  uint64
	GasPrice  *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// RegistrationRequest carries everything needed to build a registration call.
// The nonce comes from the caller, fetched from the chain just before.
type RegistrationRequest struct {
	Identity    common.Hash
	MetadataURI string
	Stake       *big.Int
	Registry    common.Address
	Nonce       uint64
	ChainID     uint64
	Gas         GasParams

	// PoAIHash selects registerAgentWithPoAI when set.
	PoAIHash *common.Hash
}

// Builder assembles and signs registry transactions.
type Builder struct {
	registry *Registry
	guard    *lru.Cache
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*builderConfig)

type builderConfig struct {
	abiJSON   string
	guardSize int
	logger    *slog.Logger
}

// WithABI overrides the registry ABI.
func WithABI(abiJSON string) Option {
	return func(c *builderConfig) { c.abiJSON = abiJSON }
}

// WithGuardSize sets the nonce reuse guard capacity.
func WithGuardSize(n int) Option {
	return func(c *builderConfig) { c.guardSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *builderConfig) { c.logger = l }
}

// NewBuilder creates a Builder for the default registry ABI.
func NewBuilder(opts ...Option) (*Builder, error) {
	cfg := builderConfig{
		abiJSON:   RegistryABIJSON,
		guardSize: DefaultGuardSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	registry, err := ParseRegistry(cfg.abiJSON)
	if err != nil {
		return nil, err
	}
	guard, err := lru.New(cfg.guardSize)
	if err != nil {
		return nil, fmt.Errorf("nonce guard: %w", err)
	}

	return &Builder{
		registry: registry,
		guard:    guard,
		logger:   cfg.logger,
	}, nil
}

// Registry returns the ABI helper, for eth_call encoding.
func (b *Builder) Registry() *Registry {
	return b.registry
}

// Build encodes a registration call. The stake travels as the transaction
// value.
func (b *Builder) Build(req RegistrationRequest) (*UnsignedTransaction, error) {
	if req.Identity == (common.Hash{}) {
		return nil, fmt.Errorf("%w: identity hash is zero", ErrEncoding)
	}
	if req.MetadataURI == "" {
		return nil, fmt.Errorf("%w: metadata reference is empty", ErrEncoding)
	}

	data, err := b.registry.PackRegister(req.Identity, req.MetadataURI, req.PoAIHash)
	if err != nil {
		return nil, err
	}
	return b.BuildCall(req.Registry, req.Stake, data, req.Nonce, req.ChainID, req.Gas)
}

// BuildAddStake encodes addStake(identity) with stake attached.
func (b *Builder) BuildAddStake(id common.Hash, stake *big.Int, registry common.Address, nonce, chainID uint64, gas GasParams) (*UnsignedTransaction, error) {
	if stake == nil || stake.Sign() == 0 {
		return nil, fmt.Errorf("%w: stake must be positive", ErrEncoding)
	}
	data, err := b.registry.Pack(MethodAddStake, [32]byte(id))
	if err != nil {
		return nil, err
	}
	return b.BuildCall(registry, stake, data, nonce, chainID, gas)
}

// BuildCall builds a contract call transaction from already encoded data.
func (b *Builder) BuildCall(to common.Address, value *big.Int, data []byte, nonce, chainID uint64, gas GasParams) (*UnsignedTransaction, error) {
	if to == (common.Address{}) {
		return nil, fmt.Errorf("%w: contract address is zero", ErrEncoding)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: call data has no selector", ErrEncoding)
	}
	if chainID == 0 {
		return nil, fmt.Errorf("%w: chain id is zero", ErrEncoding)
	}
	if gas.GasLimit == 0 {
		return nil, fmt.Errorf("%w: gas limit is zero", ErrEncoding)
	}
	if value == nil {
		value = new(big.Int)
	}
	if err := checkWidth("value", value); err != nil {
		return nil, err
	}

	var inner types.TxData
	switch {
	case gas.GasFeeCap != nil:
		tip := gas.GasTipCap
		if tip == nil {
			tip = new(big.Int)
		}
		if err := checkWidth("gas fee cap", gas.GasFeeCap); err != nil {
			return nil, err
		}
		if err := checkWidth("gas tip cap", tip); err != nil {
			return nil, err
		}
		if gas.GasFeeCap.Cmp(tip) < 0 {
			return nil, fmt.Errorf("%w: tip cap %s above fee cap %s", ErrEncoding, tip, gas.GasFeeCap)
		}
		inner = &types.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(chainID),
			Nonce:     nonce,
			GasTipCap: new(big.Int).Set(tip),
			GasFeeCap: new(big.Int).Set(gas.GasFeeCap),
			Gas:       gas.GasLimit,
			To:        &to,
			Value:     new(big.Int).Set(value),
			Data:      append([]byte(nil), data...),
		}
	case gas.GasPrice != nil:
		if err := checkWidth("gas price", gas.GasPrice); err != nil {
			return nil, err
		}
		inner = &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: new(big.Int).Set(gas.GasPrice),
			Gas:      gas.GasLimit,
			To:       &to,
			Value:    new(big.Int).Set(value),
			Data:     append([]byte(nil), data...),
		}
	default:
		return nil, fmt.Errorf("%w: no gas price or fee cap", ErrEncoding)
	}

	return newUnsigned(inner, chainID), nil
}

// SignOption configures Sign.
type SignOption func(*signConfig)

type signConfig struct {
	resign bool
}

// WithResign allows signing a transaction for a nonce that was already
// signed, e.g. to replace a stuck transaction with a higher fee.
func WithResign() SignOption {
	return func(c *signConfig) { c.resign = true }
}

// Sign signs the pre-sign hash and returns the serialized transaction.
// The recovered sender must equal the signer's address.
func (b *Builder) Sign(unsigned *UnsignedTransaction, signer Signer, opts ...SignOption) (*SignedTransaction, error) {
	if unsigned == nil {
		return nil, fmt.Errorf("%w: nil transaction", ErrEncoding)
	}
	var cfg signConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	from, err := signer.Address()
	if err != nil {
		return nil, err
	}
	key := guardKey(from, unsigned.chainID, unsigned.Nonce())
	if !cfg.resign {
		// reserve the nonce atomically; released again if signing fails
		if found, _ := b.guard.ContainsOrAdd(key, common.Hash{}); found {
			return nil, fmt.Errorf("%w: %s", ErrNonceReused, key)
		}
	}
	signed := false
	defer func() {
		if !signed && !cfg.resign {
			b.guard.Remove(key)
		}
	}()

	digest := unsigned.PreSignHash()
	sig, err := signer.Sign(digest)
	if err != nil {
		b.logger.Error("transaction signing failed", "from", from, "nonce", unsigned.Nonce(), "error", err)
		return nil, err
	}

	tx, err := unsigned.tx.WithSignature(unsigned.signer, sig.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: embed signature: %v", ErrEncoding, err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: serialize: %v", ErrEncoding, err)
	}
	sender, err := types.Sender(unsigned.signer, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: recover sender: %v", keystore.ErrSigningFailure, err)
	}
	if sender != from {
		b.logger.Error("transaction sender mismatch", "from", from, "recovered", sender, "nonce", unsigned.Nonce())
		return nil, fmt.Errorf("%w: recovered %s, expected %s", keystore.ErrSigningFailure, sender, from)
	}

	b.guard.Add(key, tx.Hash())
	signed = true
	b.logger.Debug("transaction signed",
		"hash", tx.Hash(),
		"from", from,
		"nonce", unsigned.Nonce(),
		"chain_id", unsigned.chainID,
	)

	return &SignedTransaction{
		unsigned: unsigned,
		tx:       tx,
		sig:      sig,
		sender:   sender,
		raw:      raw,
	}, nil
}

// Release forgets a signed nonce so it can be signed again, e.g. after
// the transaction was rejected by the node and never entered the pool.
func (b *Builder) Release(from common.Address, chainID, nonce uint64) {
	b.guard.Remove(guardKey(from, chainID, nonce))
}

func guardKey(from common.Address, chainID, nonce uint64) string {
	return fmt.Sprintf("%s/%d/%d", from.Hex(), chainID, nonce)
}

func checkWidth(field string, v *big.Int) error {
	if err := units.CheckUint256(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEncoding, field, err)
	}
	return nil
}
