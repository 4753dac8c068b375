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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/agenthub-iot/agenthub-go/pkg/config"
	"github.com/agenthub-iot/agenthub-go/pkg/identity"
	"github.com/agenthub-iot/agenthub-go/pkg/payment"
	"github.com/agenthub-iot/agenthub-go/pkg/rpc"
	"github.com/agenthub-iot/agenthub-go/pkg/server"
	"github.com/agenthub-iot/agenthub-go/pkg/txbuilder"
	"github.com/agenthub-iot/agenthub-go/pkg/verifier"
)

// This example runs the hub side of the device protocol: a paid /analyze
// endpoint that only serves agents registered on-chain, and a /sensors
// endpoint that accepts DID-signed readings.
func main() {
	addr := flag.String("addr", ":8402", "listen address")
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	gateway, err := rpc.NewClient(cfg.Network.RPCURL, rpc.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create gateway", "error", err)
		os.Exit(1)
	}
	registry, err := txbuilder.ParseRegistry(txbuilder.RegistryABIJSON)
	if err != nil {
		logger.Error("failed to parse registry ABI", "error", err)
		os.Exit(1)
	}

	// Step 1: payments are only accepted from registered agents
	registered := func(ctx context.Context, payer common.Address, h *payment.Header) error {
		if h.AgentID == "" {
			return errors.New("payment carries no agent id")
		}
		data, err := registry.PackIsRegistered(identity.Derive(h.AgentID))
		if err != nil {
			return err
		}
		out, err := gateway.CallContract(ctx, cfg.RegistryAddress(), data)
		if err != nil {
			return err
		}
		ok, err := registry.UnpackBool(txbuilder.MethodIsAgentRegistered, out)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("agent is not registered")
		}
		return nil
	}

	pv, err := verifier.NewPaymentVerifier(
		verifier.WithAllowFunc(registered),
		verifier.WithMaxAge(cfg.Payment.MaxAge),
		verifier.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create payment verifier", "error", err)
		os.Exit(1)
	}

	// Step 2: price the resource
	price, err := server.PriceForTier(payment.Tier(cfg.Payment.Tier))
	if err != nil {
		logger.Error("invalid tier", "error", err)
		os.Exit(1)
	}
	paid, err := server.NewPaymentMiddleware(pv, price,
		server.WithChainID(cfg.Network.ChainID),
		server.WithPaymentLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create payment middleware", "error", err)
		os.Exit(1)
	}

	// Step 3: sensor readings must be signed over their body digest
	didAuth := server.NewDIDAuthMiddleware(
		verifier.WithRequiredComponents("@method", "@target-uri", "content-digest"),
		verifier.WithDIDLogger(logger),
	)

	mux := http.NewServeMux()
	mux.Handle("/analyze", paid.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, _ := server.GetPaymentFromContext(r.Context())
		logger.Info("paid request served", "payer", v.Payer.Hex(), "amount", v.Header.Amount, "agent", v.Header.AgentID)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"payer":  v.Payer.Hex(),
			"paidAt": v.IssuedAt.UTC().Format(time.RFC3339),
		})
	})))
	mux.Handle("/sensors", didAuth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agentDID, _ := server.GetAgentDIDFromContext(r.Context())
		var reading map[string]any
		if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
			http.Error(w, "invalid reading", http.StatusBadRequest)
			return
		}
		logger.Info("sensor reading", "did", string(agentDID), "agent", r.Header.Get("X-Agent-ID"), "fields", len(reading))
		w.WriteHeader(http.StatusAccepted)
	})))

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Info("hub listening", "addr", *addr, "price", price.Amount, "token", price.Token, "tier", string(price.Tier))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
