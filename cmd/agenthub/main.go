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

// Command agenthub is the device-side CLI: it shows the agent identity,
// registers it on-chain, signs x402 payments and relays sensor readings.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/urfave/cli.v1"

	"github.com/agenthub-iot/agenthub-go/pkg/agent"
	"github.com/agenthub-iot/agenthub-go/pkg/config"
	"github.com/agenthub-iot/agenthub-go/pkg/payment"
	"github.com/agenthub-iot/agenthub-go/pkg/version"
)

var (
	configFlag = cli.StringFlag{
		Name:   "config",
		Usage:  "YAML configuration file",
		EnvVar: config.EnvPrefix + "CONFIG",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "Override log.level (debug, info, warn, error)",
	}
	jsonFlag = cli.BoolFlag{
		Name:  "json",
		Usage: "Print JSON",
	}

	identityCommand = cli.Command{
		Name:   "identity",
		Usage:  "Show the agent name, identity hash, address and DID",
		Flags:  []cli.Flag{jsonFlag},
		Action: showIdentity,
	}
	registerCommand = cli.Command{
		Name:  "register",
		Usage: "Register the agent identity with the on-chain registry",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "metadata", Usage: "Metadata URI (defaults to agent.metadata_uri)"},
			cli.StringFlag{Name: "stake", Usage: "Stake in ether (defaults to agent.stake)"},
			cli.BoolFlag{Name: "force", Usage: "Submit even if already registered"},
		},
		Action: register,
	}
	metadataCommand = cli.Command{
		Name:  "metadata",
		Usage: "Print the signed metadata document for the registration URI",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "endpoint", Usage: "Agent endpoint (defaults to relay.sensors_url)"},
			cli.StringFlag{Name: "description", Usage: "Free-form description"},
			cli.StringFlag{Name: "sensor-type", Usage: "Sensor type, e.g. temperature"},
			cli.StringSliceFlag{Name: "capability", Usage: "Capability (repeatable)"},
			cli.BoolFlag{Name: "a2a", Usage: "Print an A2A agent card instead"},
		},
		Action: printMetadata,
	}
	payCommand = cli.Command{
		Name:      "pay",
		Usage:     "Send an x402 paid request",
		ArgsUsage: "[url]",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "amount", Usage: "Decimal amount (defaults to the tier price)"},
			cli.StringFlag{Name: "token", Usage: "Settlement token (defaults to payment.token)"},
			cli.StringFlag{Name: "tier", Usage: "Pricing tier (defaults to payment.tier)"},
			cli.StringFlag{Name: "data", Usage: "JSON body, or - to read stdin"},
		},
		Action: pay,
	}
	sensorCommand = cli.Command{
		Name:      "sensor",
		Usage:     "Relay a sensor reading",
		ArgsUsage: "[endpoint]",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "data", Usage: "JSON reading, or - to read stdin"},
			cli.BoolFlag{Name: "alert", Usage: "Send to relay.alerts_url"},
		},
		Action: sendSensor,
	}
	versionCommand = cli.Command{
		Name:   "version",
		Usage:  "Print version information",
		Action: printVersion,
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "agenthub"
	app.Usage = "AgentHub device agent"
	app.Version = version.Get().Version
	app.Flags = []cli.Flag{configFlag, logLevelFlag}
	app.Commands = []cli.Command{
		identityCommand,
		registerCommand,
		metadataCommand,
		payCommand,
		sensorCommand,
		versionCommand,
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the logger on stderr.
func setup(ctx *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(ctx.GlobalString(configFlag.Name))
	if err != nil {
		return nil, nil, err
	}
	if lvl := ctx.GlobalString(logLevelFlag.Name); lvl != "" {
		cfg.Log.Level = lvl
	}
	logger := cfg.Log.NewLogger(errWriter(ctx))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newAgent(ctx *cli.Context) (*agent.Agent, *config.Config, error) {
	cfg, logger, err := setup(ctx)
	if err != nil {
		return nil, nil, err
	}
	a, err := agent.New(cfg, agent.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func showIdentity(ctx *cli.Context) error {
	a, _, err := newAgent(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id := a.Identity()
	out := map[string]string{
		"name":         id.Name(),
		"identityHash": id.Hash().Hex(),
		"hashFunction": id.HasherName(),
		"address":      a.Address().Hex(),
		"did":          string(a.DID()),
	}
	if ctx.Bool(jsonFlag.Name) {
		return writeJSON(ctx, out)
	}
	w := ctx.App.Writer
	fmt.Fprintf(w, "Name:          %s\n", out["name"])
	fmt.Fprintf(w, "Identity hash: %s (%s)\n", out["identityHash"], out["hashFunction"])
	fmt.Fprintf(w, "Address:       %s\n", out["address"])
	fmt.Fprintf(w, "DID:           %s\n", out["did"])
	return nil
}

func register(ctx *cli.Context) error {
	a, cfg, err := newAgent(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	uri := firstNonEmpty(ctx.String("metadata"), cfg.Agent.MetadataURI)
	if uri == "" {
		return fmt.Errorf("metadata URI is required (--metadata or agent.metadata_uri)")
	}
	stake := firstNonEmpty(ctx.String("stake"), cfg.Agent.Stake)

	c, cancel := signalContext()
	defer cancel()

	if !ctx.Bool("force") {
		registered, err := a.IsRegistered(c)
		if err != nil {
			return err
		}
		if registered {
			fmt.Fprintf(ctx.App.Writer, "%s is already registered\n", a.Identity().Name())
			return nil
		}
	}

	hash, err := a.Register(c, uri, stake)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, hash.Hex())
	return nil
}

func printMetadata(ctx *cli.Context) error {
	a, cfg, err := newAgent(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	endpoint := firstNonEmpty(ctx.String("endpoint"), cfg.Relay.SensorsURL)
	signed, err := a.Metadata(context.Background(), endpoint,
		ctx.String("description"), ctx.String("sensor-type"), ctx.StringSlice("capability")...)
	if err != nil {
		return err
	}
	if ctx.Bool("a2a") {
		return writeJSON(ctx, signed.Document.ToA2ACard())
	}
	return writeJSON(ctx, signed)
}

func pay(ctx *cli.Context) error {
	a, cfg, err := newAgent(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	url := firstNonEmpty(ctx.Args().First(), cfg.Payment.APIURL)
	if url == "" {
		return fmt.Errorf("url is required (argument or payment.api_url)")
	}
	body, err := readData(ctx)
	if err != nil {
		return err
	}

	var opts []agent.PayOption
	if token := ctx.String("token"); token != "" {
		opts = append(opts, agent.WithToken(token))
	}
	if tier := ctx.String("tier"); tier != "" {
		opts = append(opts, agent.WithTier(payment.Tier(tier)))
	}

	c, cancel := signalContext()
	defer cancel()

	resp, err := a.X402Request(c, url, ctx.String("amount"), body, opts...)
	if err != nil {
		return err
	}
	_, err = ctx.App.Writer.Write(append(resp, '\n'))
	return err
}

func sendSensor(ctx *cli.Context) error {
	a, _, err := newAgent(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	body, err := readData(ctx)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("--data is required")
	}
	if !json.Valid(body) {
		return fmt.Errorf("--data is not valid JSON")
	}

	c, cancel := signalContext()
	defer cancel()

	var resp []byte
	if ctx.Bool("alert") {
		resp, err = a.SendAlert(c, body)
	} else {
		resp, err = a.SendSensorData(c, ctx.Args().First(), body)
	}
	if err != nil {
		return err
	}
	if len(resp) > 0 {
		_, err = ctx.App.Writer.Write(append(resp, '\n'))
	}
	return err
}

func printVersion(ctx *cli.Context) error {
	return writeJSON(ctx, version.Get())
}

func readData(ctx *cli.Context) ([]byte, error) {
	data := ctx.String("data")
	if data != "-" {
		return []byte(data), nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return []byte(strings.TrimSpace(string(b))), nil
}

func writeJSON(ctx *cli.Context, v any) error {
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errWriter(ctx *cli.Context) io.Writer {
	if ctx.App.ErrWriter != nil {
		return ctx.App.ErrWriter
	}
	return os.Stderr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
