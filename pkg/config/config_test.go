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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, NetworkFuji, cfg.Network.Name)
	assert.Equal(t, "https://api.avax-test.network/ext/bc/C/rpc", cfg.Network.RPCURL)
	assert.Equal(t, uint64(43113), cfg.Network.ChainID)
	assert.Equal(t, "0x6750Ed798186b4B5a7441D0f46Dd36F372441306", cfg.Network.Registry)
	assert.Equal(t, TxTypeLegacy, cfg.Network.TxType)
	assert.Equal(t, "USDC", cfg.Payment.Token)
	assert.Equal(t, "basic", cfg.Payment.Tier)
	assert.Equal(t, 5*time.Minute, cfg.Payment.MaxAge)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "agenthub.yaml", `
agent:
  name: sensor-42
network:
  name: mainnet
  registry: "0x1111111111111111111111111111111111111111"
  tx_type: dynamic
payment:
  api_url: https://pay.example.com/x402
  tier: premium
  max_age: 90s
relay:
  sensors_url: https://hub.example.com/sensors
  rate_limit: 2.5
  burst: 3
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sensor-42", cfg.Agent.Name)
	assert.Equal(t, "https://api.avax.network/ext/bc/C/rpc", cfg.Network.RPCURL)
	assert.Equal(t, uint64(43114), cfg.Network.ChainID)
	assert.Equal(t, "dynamic", cfg.Network.TxType)
	assert.Equal(t, uint64(300000), cfg.Network.GasLimit, "unset fields keep defaults")
	assert.Equal(t, 90*time.Second, cfg.Payment.MaxAge)
	assert.Equal(t, 2.5, cfg.Relay.RateLimit)
	assert.Equal(t, 3, cfg.Relay.Burst)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "agenthub.yaml", "agent:\n  name: from-yaml\n")

	t.Setenv("AGENTHUB_AGENT_NAME", "from-env")
	t.Setenv("AGENTHUB_RPC_URL", "http://127.0.0.1:8545")
	t.Setenv("AGENTHUB_CHAIN_ID", "1337")
	t.Setenv("AGENTHUB_GAS_LIMIT", "not-a-number")
	t.Setenv("AGENTHUB_PAYMENT_MAX_AGE", "1m")
	t.Setenv("AGENTHUB_RATE_BURST", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Agent.Name)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.Network.RPCURL)
	assert.Equal(t, uint64(1337), cfg.Network.ChainID)
	assert.Equal(t, uint64(300000), cfg.Network.GasLimit, "unparsable overrides are ignored")
	assert.Equal(t, time.Minute, cfg.Payment.MaxAge)
	assert.Equal(t, 4, cfg.Relay.Burst)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read configuration file")

	path := writeFile(t, "bad.yaml", "network: [unclosed")
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse configuration file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"custom network without rpc", func(c *Config) { c.Network.Name = "local"; c.Network.RPCURL = "" }, "network.rpc_url is required"},
		{"bad rpc url", func(c *Config) { c.Network.RPCURL = "ftp://node" }, "not an http(s) URL"},
		{"zero chain", func(c *Config) { c.Network.ChainID = 0 }, "network.chain_id"},
		{"bad registry", func(c *Config) { c.Network.Registry = "0x1234" }, "not an address"},
		{"zero registry", func(c *Config) { c.Network.Registry = "0x0000000000000000000000000000000000000000" }, "zero address"},
		{"zero gas", func(c *Config) { c.Network.GasLimit = 0 }, "gas_limit"},
		{"bad tx type", func(c *Config) { c.Network.TxType = "blob" }, "tx_type"},
		{"bad hash", func(c *Config) { c.Agent.HashFunction = "md5" }, "unknown identity hash"},
		{"bad tier", func(c *Config) { c.Payment.Tier = "gold" }, "payment.tier"},
		{"empty token", func(c *Config) { c.Payment.Token = "" }, "payment.token"},
		{"bad api url", func(c *Config) { c.Payment.APIURL = "pay.example.com" }, "payment.api_url"},
		{"negative rate", func(c *Config) { c.Relay.RateLimit = -1 }, "relay.rate_limit"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestPrivateKey(t *testing.T) {
	const secret = "0x0101010101010101010101010101010101010101010101010101010101010101"

	t.Run("missing", func(t *testing.T) {
		t.Setenv(EnvPrivateKey, "")
		_, err := Default().PrivateKey()
		assert.ErrorIs(t, err, ErrNoPrivateKey)
	})

	t.Run("from env", func(t *testing.T) {
		t.Setenv(EnvPrivateKey, "  "+secret+"\n")
		key, err := Default().PrivateKey()
		require.NoError(t, err)
		assert.Equal(t, secret, key)
	})

	t.Run("from file", func(t *testing.T) {
		t.Setenv(EnvPrivateKey, "")
		cfg := Default()
		cfg.Agent.KeyFile = writeFile(t, "device.key", secret+"\n")
		key, err := cfg.PrivateKey()
		require.NoError(t, err)
		assert.Equal(t, secret, key)
	})

	t.Run("yaml cannot carry a key", func(t *testing.T) {
		t.Setenv(EnvPrivateKey, "")
		path := writeFile(t, "agenthub.yaml", "agent:\n  private_key: "+secret+"\n")
		cfg, err := Load(path)
		require.NoError(t, err)
		_, err = cfg.PrivateKey()
		assert.ErrorIs(t, err, ErrNoPrivateKey)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: LogFormatJSON}.NewLogger(&buf)

	logger.Info("dropped")
	logger.Warn("kept", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"msg":"kept"`)
}
