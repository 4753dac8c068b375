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

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/agenthub-iot/agenthub-go/pkg/identity"
	"github.com/agenthub-iot/agenthub-go/pkg/payment"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AGENTHUB_"

// EnvPrivateKey holds the hex private key. Keys are never read from YAML.
const EnvPrivateKey = EnvPrefix + "PRIVATE_KEY"

// Known networks.
const (
	NetworkFuji    = "fuji"
	NetworkMainnet = "mainnet"
)

// Transaction types.
const (
	TxTypeLegacy  = "legacy"
	TxTypeDynamic = "dynamic"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ErrNoPrivateKey is returned by PrivateKey when neither the environment
// nor a key file provides one.
var ErrNoPrivateKey = errors.New("config: no private key configured")

// Config is the device configuration.
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Network NetworkConfig `yaml:"network"`
	Payment PaymentConfig `yaml:"payment"`
	Relay   RelayConfig   `yaml:"relay"`
	Log     LogConfig     `yaml:"log"`
}

// AgentConfig identifies the device.
type AgentConfig struct {
	Name         string `yaml:"name"`
	HashFunction string `yaml:"hash_function"`
	// KeyFile points at a file holding the hex private key.
	KeyFile     string `yaml:"key_file"`
	MetadataURI string `yaml:"metadata_uri"`
	Stake       string `yaml:"stake"`
}

// NetworkConfig selects the chain and registry contract.
type NetworkConfig struct {
	Name     string `yaml:"name"`
	RPCURL   string `yaml:"rpc_url"`
	ChainID  uint64 `yaml:"chain_id"`
	Registry string `yaml:"registry"`
	GasLimit uint64 `yaml:"gas_limit"`
	TxType   string `yaml:"tx_type"`
}

// PaymentConfig holds x402 settings.
type PaymentConfig struct {
	APIURL string        `yaml:"api_url"`
	Token  string        `yaml:"token"`
	Tier   string        `yaml:"tier"`
	MaxAge time.Duration `yaml:"max_age"`
}

// RelayConfig holds sensor relay settings.
type RelayConfig struct {
	SensorsURL string        `yaml:"sensors_url"`
	AlertsURL  string        `yaml:"alerts_url"`
	RateLimit  float64       `yaml:"rate_limit"`
	Burst      int           `yaml:"burst"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type networkPreset struct {
	rpcURL   string
	chainID  uint64
	registry string
}

var presets = map[string]networkPreset{
	NetworkFuji: {
		rpcURL:   "https://api.avax-test.network/ext/bc/C/rpc",
		chainID:  43113,
		registry: "0x6750Ed798186b4B5a7441D0f46Dd36F372441306",
	},
	NetworkMainnet: {
		rpcURL:  "https://api.avax.network/ext/bc/C/rpc",
		chainID: 43114,
	},
}

// Default returns the Fuji testnet configuration.
func Default() *Config {
	cfg := defaults()
	cfg.applyPreset()
	return cfg
}

// defaults leaves the network endpoints empty for applyPreset to fill once
// the network name is known.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			HashFunction: identity.HashKeccak256,
			Stake:        "0.01",
		},
		Network: NetworkConfig{
			Name:     NetworkFuji,
			GasLimit: 300000,
			TxType:   TxTypeLegacy,
		},
		Payment: PaymentConfig{
			Token:  payment.DefaultToken,
			Tier:   string(payment.TierBasic),
			MaxAge: payment.DefaultMaxAge,
		},
		Relay: RelayConfig{
			Burst:   1,
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatText,
		},
	}
}

// Load reads path over the defaults, fills network presets and applies
// AGENTHUB_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyPreset()

	return cfg, nil
}

// applyPreset fills empty network fields from the named network.
func (c *Config) applyPreset() {
	p, ok := presets[strings.ToLower(c.Network.Name)]
	if !ok {
		return
	}
	if c.Network.RPCURL == "" {
		c.Network.RPCURL = p.rpcURL
	}
	if c.Network.ChainID == 0 {
		c.Network.ChainID = p.chainID
	}
	if c.Network.Registry == "" {
		c.Network.Registry = p.registry
	}
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(EnvPrefix + "AGENT_NAME"); val != "" {
		cfg.Agent.Name = val
	}
	if val := os.Getenv(EnvPrefix + "HASH_FUNCTION"); val != "" {
		cfg.Agent.HashFunction = val
	}
	if val := os.Getenv(EnvPrefix + "KEY_FILE"); val != "" {
		cfg.Agent.KeyFile = val
	}
	if val := os.Getenv(EnvPrefix + "METADATA_URI"); val != "" {
		cfg.Agent.MetadataURI = val
	}
	if val := os.Getenv(EnvPrefix + "STAKE"); val != "" {
		cfg.Agent.Stake = val
	}

	if val := os.Getenv(EnvPrefix + "NETWORK"); val != "" {
		cfg.Network.Name = val
	}
	if val := os.Getenv(EnvPrefix + "RPC_URL"); val != "" {
		cfg.Network.RPCURL = val
	}
	if val := os.Getenv(EnvPrefix + "CHAIN_ID"); val != "" {
		if id, err := strconv.ParseUint(val, 10, 64); err == nil {
			cfg.Network.ChainID = id
		}
	}
	if val := os.Getenv(EnvPrefix + "REGISTRY"); val != "" {
		cfg.Network.Registry = val
	}
	if val := os.Getenv(EnvPrefix + "GAS_LIMIT"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			cfg.Network.GasLimit = n
		}
	}
	if val := os.Getenv(EnvPrefix + "TX_TYPE"); val != "" {
		cfg.Network.TxType = val
	}

	if val := os.Getenv(EnvPrefix + "X402_API_URL"); val != "" {
		cfg.Payment.APIURL = val
	}
	if val := os.Getenv(EnvPrefix + "PAYMENT_TOKEN"); val != "" {
		cfg.Payment.Token = val
	}
	if val := os.Getenv(EnvPrefix + "PAYMENT_TIER"); val != "" {
		cfg.Payment.Tier = val
	}
	if val := os.Getenv(EnvPrefix + "PAYMENT_MAX_AGE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Payment.MaxAge = d
		}
	}

	if val := os.Getenv(EnvPrefix + "SENSORS_URL"); val != "" {
		cfg.Relay.SensorsURL = val
	}
	if val := os.Getenv(EnvPrefix + "ALERTS_URL"); val != "" {
		cfg.Relay.AlertsURL = val
	}
	if val := os.Getenv(EnvPrefix + "RATE_LIMIT"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Relay.RateLimit = f
		}
	}
	if val := os.Getenv(EnvPrefix + "RATE_BURST"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Relay.Burst = n
		}
	}

	if val := os.Getenv(EnvPrefix + "LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv(EnvPrefix + "LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
}

// Validate checks the configuration for values the agent cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if _, err := identity.HasherByName(c.Agent.HashFunction); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("network.rpc_url", c.Network.RPCURL, true); err != nil {
		errs = append(errs, err)
	}
	if c.Network.ChainID == 0 {
		errs = append(errs, errors.New("network.chain_id is required"))
	}
	if !common.IsHexAddress(c.Network.Registry) {
		errs = append(errs, fmt.Errorf("network.registry %q is not an address", c.Network.Registry))
	} else if common.HexToAddress(c.Network.Registry) == (common.Address{}) {
		errs = append(errs, errors.New("network.registry is the zero address"))
	}
	if c.Network.GasLimit == 0 {
		errs = append(errs, errors.New("network.gas_limit must be positive"))
	}
	switch c.Network.TxType {
	case TxTypeLegacy, TxTypeDynamic:
	default:
		errs = append(errs, fmt.Errorf("network.tx_type %q is not %s or %s", c.Network.TxType, TxTypeLegacy, TxTypeDynamic))
	}

	if err := checkURL("payment.api_url", c.Payment.APIURL, false); err != nil {
		errs = append(errs, err)
	}
	if _, err := payment.AmountForTier(payment.Tier(c.Payment.Tier)); err != nil {
		errs = append(errs, fmt.Errorf("payment.tier: %w", err))
	}
	if c.Payment.Token == "" {
		errs = append(errs, errors.New("payment.token is required"))
	}
	if c.Payment.MaxAge < 0 {
		errs = append(errs, errors.New("payment.max_age must not be negative"))
	}

	if err := checkURL("relay.sensors_url", c.Relay.SensorsURL, false); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("relay.alerts_url", c.Relay.AlertsURL, false); err != nil {
		errs = append(errs, err)
	}
	if c.Relay.RateLimit < 0 || c.Relay.Burst < 0 {
		errs = append(errs, errors.New("relay.rate_limit and relay.burst must not be negative"))
	}

	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not %s or %s", c.Log.Format, LogFormatText, LogFormatJSON))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// RegistryAddress returns the parsed registry address.
func (c *Config) RegistryAddress() common.Address {
	return common.HexToAddress(c.Network.Registry)
}

// PrivateKey returns the hex private key from AGENTHUB_PRIVATE_KEY or,
// failing that, from the configured key file.
func (c *Config) PrivateKey() (string, error) {
	if val := os.Getenv(EnvPrivateKey); val != "" {
		return strings.TrimSpace(val), nil
	}
	if c.Agent.KeyFile == "" {
		return "", ErrNoPrivateKey
	}
	data, err := os.ReadFile(c.Agent.KeyFile)
	if err != nil {
		return "", fmt.Errorf("failed to read key file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func checkURL(field, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q is not an http(s) URL", field, raw)
	}
	return nil
}
