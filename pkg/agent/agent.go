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

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sage-x-project/sage/pkg/agent/did"

	"github.com/agenthub-iot/agenthub-go/pkg/config"
	"github.com/agenthub-iot/agenthub-go/pkg/identity"
	"github.com/agenthub-iot/agenthub-go/pkg/keystore"
	"github.com/agenthub-iot/agenthub-go/pkg/payment"
	"github.com/agenthub-iot/agenthub-go/pkg/relay"
	"github.com/agenthub-iot/agenthub-go/pkg/rpc"
	"github.com/agenthub-iot/agenthub-go/pkg/txbuilder"
	"github.com/agenthub-iot/agenthub-go/pkg/units"
	"github.com/agenthub-iot/agenthub-go/pkg/version"
)

var (
	// ErrChainMismatch is returned when the gateway reports a chain other
	// than the configured one.
	ErrChainMismatch = errors.New("agent: chain id mismatch")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("agent: closed")
)

// KeyID is the fragment of the DID key used for request signing.
const KeyID = "key-1"

// Agent owns the key, identity and collaborators of one device.
//
// Build, sign and compose steps run under a single mutex. Register holds it
// from the nonce fetch until the transaction is submitted so concurrent
// registrations never share a nonce.
type Agent struct {
	mu sync.Mutex

	cfg        *config.Config
	keys       *keystore.KeyStore
	identity   identity.AgentIdentity
	address    common.Address
	did        did.AgentDID
	builder    *txbuilder.Builder
	authorizer *payment.Authorizer
	gateway    *rpc.Client
	relay      *relay.Relay
	now        func() time.Time
	logger     *slog.Logger
	closed     bool
}

// Option configures an Agent.
type Option func(*options)

type options struct {
	keys       *keystore.KeyStore
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

// WithKeyStore supplies the key instead of reading it from the environment
// or the configured key file.
func WithKeyStore(ks *keystore.KeyStore) Option {
	return func(o *options) { o.keys = ks }
}

// WithHTTPClient sets the HTTP client used for both the gateway and the relay.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithClock overrides time.Now for payment timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger shared by the agent components.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New validates cfg and assembles an Agent.
func New(cfg *config.Config, opts ...Option) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	keys := o.keys
	if keys == nil {
		secret, err := cfg.PrivateKey()
		if err != nil {
			return nil, err
		}
		keys, err = keystore.FromHex(secret)
		if err != nil {
			return nil, err
		}
	}
	addr, err := keys.Address()
	if err != nil {
		return nil, err
	}

	hasher, err := identity.HasherByName(cfg.Agent.HashFunction)
	if err != nil {
		return nil, err
	}
	id, err := identity.NewAgentIdentity(cfg.Agent.Name, identity.WithHasher(hasher))
	if err != nil {
		return nil, err
	}
	if !identity.RegistryCompatible(hasher) {
		o.logger.Warn("identity hash is not recomputable by the registry", "hash_function", hasher.Name())
	}
	agentDID := identity.DID(cfg.Network.Name, addr)

	builder, err := txbuilder.NewBuilder(txbuilder.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	rpcOpts := []rpc.Option{
		rpc.WithLogger(o.logger),
		rpc.WithHeader("User-Agent", version.UserAgent()),
	}
	relayOpts := []relay.Option{
		relay.WithAgentID(cfg.Agent.Name),
		relay.WithUserAgent(version.UserAgent()),
		relay.WithRateLimit(cfg.Relay.RateLimit, cfg.Relay.Burst),
		relay.WithClock(o.now),
		relay.WithLogger(o.logger),
	}
	hc := o.httpClient
	if hc == nil && cfg.Relay.Timeout > 0 {
		hc = &http.Client{Timeout: cfg.Relay.Timeout}
	}
	if hc != nil {
		rpcOpts = append(rpcOpts, rpc.WithHTTPClient(hc))
		relayOpts = append(relayOpts, relay.WithHTTPClient(hc))
	}
	gateway, err := rpc.NewClient(cfg.Network.RPCURL, rpcOpts...)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		cfg:      cfg,
		keys:     keys,
		identity: id,
		address:  addr,
		did:      agentDID,
		builder:  builder,
		authorizer: payment.NewAuthorizer(
			payment.WithClock(o.now),
			payment.WithMaxAge(cfg.Payment.MaxAge),
			payment.WithAgentID(cfg.Agent.Name),
			payment.WithLogger(o.logger),
		),
		gateway: gateway,
		relay:   relay.New(agentDID, keys.KeyPair(string(agentDID)+"#"+KeyID), relayOpts...),
		now:     o.now,
		logger:  o.logger,
	}

	a.logger.Info("agent ready",
		"name", id.Name(),
		"identity", id.Hash().Hex(),
		"address", addr.Hex(),
		"did", string(agentDID))

	return a, nil
}

// Identity returns the agent identity.
func (a *Agent) Identity() identity.AgentIdentity { return a.identity }

// Address returns the signing address.
func (a *Agent) Address() common.Address { return a.address }

// DID returns the agent DID.
func (a *Agent) DID() did.AgentDID { return a.did }

// Gateway returns the JSON-RPC client.
func (a *Agent) Gateway() *rpc.Client { return a.gateway }

// Close destroys the key. Subsequent signing operations fail.
func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.keys.Destroy()
	return nil
}

// Register submits a registration transaction with stake (decimal ether)
// and returns its hash.
func (a *Agent) Register(ctx context.Context, metadataURI, stake string) (common.Hash, error) {
	value, err := units.ParseEther(stake)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid stake: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return common.Hash{}, ErrClosed
	}

	chainID, nonce, gas, err := a.txContext(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	unsigned, err := a.builder.Build(txbuilder.RegistrationRequest{
		Identity:    a.identity.Hash(),
		MetadataURI: metadataURI,
		Stake:       value,
		Registry:    a.cfg.RegistryAddress(),
		Nonce:       nonce,
		ChainID:     chainID,
		Gas:         gas,
	})
	if err != nil {
		return common.Hash{}, err
	}
	return a.submit(ctx, unsigned)
}

// AddStake submits addStake for the agent identity.
func (a *Agent) AddStake(ctx context.Context, stake string) (common.Hash, error) {
	value, err := units.ParseEther(stake)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid stake: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return common.Hash{}, ErrClosed
	}

	chainID, nonce, gas, err := a.txContext(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	unsigned, err := a.builder.BuildAddStake(a.identity.Hash(), value, a.cfg.RegistryAddress(), nonce, chainID, gas)
	if err != nil {
		return common.Hash{}, err
	}
	return a.submit(ctx, unsigned)
}

// txContext fetches chain id, pending nonce and fees from the gateway.
func (a *Agent) txContext(ctx context.Context) (uint64, uint64, txbuilder.GasParams, error) {
	var gas txbuilder.GasParams

	chainID, err := a.gateway.ChainID(ctx)
	if err != nil {
		return 0, 0, gas, fmt.Errorf("failed to get chain id: %w", err)
	}
	if want := a.cfg.Network.ChainID; want != 0 && want != chainID {
		return 0, 0, gas, fmt.Errorf("%w: gateway reports %d, configured %d", ErrChainMismatch, chainID, want)
	}

	nonce, err := a.gateway.PendingNonce(ctx, a.address)
	if err != nil {
		return 0, 0, gas, fmt.Errorf("failed to get nonce: %w", err)
	}

	price, err := a.gateway.GasPrice(ctx)
	if err != nil {
		return 0, 0, gas, fmt.Errorf("failed to get gas price: %w", err)
	}
	gas.GasLimit = a.cfg.Network.GasLimit

	if a.cfg.Network.TxType == config.TxTypeDynamic {
		tip, err := a.gateway.MaxPriorityFee(ctx)
		if err != nil {
			return 0, 0, gas, fmt.Errorf("failed to get priority fee: %w", err)
		}
		// fee cap = 2 * gas price + tip
		gas.GasTipCap = tip
		gas.GasFeeCap = new(big.Int).Add(new(big.Int).Lsh(price, 1), tip)
	} else {
		gas.GasPrice = price
	}

	return chainID, nonce, gas, nil
}

func (a *Agent) submit(ctx context.Context, unsigned *txbuilder.UnsignedTransaction) (common.Hash, error) {
	signed, err := a.builder.Sign(unsigned, a.keys)
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := a.gateway.SendRawTransaction(ctx, signed.Raw())
	if err != nil {
		// the node did not take the nonce, so a later call may sign it again
		a.builder.Release(signed.Sender(), unsigned.ChainID(), unsigned.Nonce())
		return common.Hash{}, fmt.Errorf("failed to submit transaction: %w", err)
	}
	if hash != signed.Hash() {
		a.logger.Warn("gateway returned unexpected transaction hash",
			"local", signed.Hash().Hex(),
			"remote", hash.Hex())
	}

	a.logger.Info("transaction submitted",
		"hash", hash.Hex(),
		"nonce", unsigned.Nonce(),
		"chain_id", unsigned.ChainID())
	return hash, nil
}

// IsRegistered asks the registry whether the agent identity is registered.
func (a *Agent) IsRegistered(ctx context.Context) (bool, error) {
	data, err := a.builder.Registry().PackIsRegistered(a.identity.Hash())
	if err != nil {
		return false, err
	}
	out, err := a.gateway.CallContract(ctx, a.cfg.RegistryAddress(), data)
	if err != nil {
		return false, fmt.Errorf("failed to query registry: %w", err)
	}
	return a.builder.Registry().UnpackBool(txbuilder.MethodIsAgentRegistered, out)
}

// MinStake returns the registry's minimum stake in wei.
func (a *Agent) MinStake(ctx context.Context) (*big.Int, error) {
	data, err := a.builder.Registry().PackMinStake()
	if err != nil {
		return nil, err
	}
	out, err := a.gateway.CallContract(ctx, a.cfg.RegistryAddress(), data)
	if err != nil {
		return nil, fmt.Errorf("failed to query registry: %w", err)
	}
	return a.builder.Registry().UnpackUint(txbuilder.MethodMinStake, out)
}
