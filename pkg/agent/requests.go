package agent

import (
	"context"
	"fmt"

	"github.com/agenthub-iot/agenthub-go/pkg/metadata"
	"github.com/agenthub-iot/agenthub-go/pkg/payment"
)

// PayOption adjusts a single X402Request.
type PayOption func(*payOptions)

type payOptions struct {
	token string
	tier  payment.Tier
}

// WithToken overrides the configured settlement token.
func WithToken(token string) PayOption {
	return func(o *payOptions) { o.token = token }
}

// WithTier overrides the configured tier.
func WithTier(tier payment.Tier) PayOption {
	return func(o *payOptions) { o.tier = tier }
}

// X402Request authorizes amount for url and posts body with the payment
// header. An empty amount uses the price of the tier.
func (a *Agent) X402Request(ctx context.Context, url, amount string, body []byte, opts ...PayOption) ([]byte, error) {
	o := payOptions{
		token: a.cfg.Payment.Token,
		tier:  payment.Tier(a.cfg.Payment.Tier),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if amount == "" {
		var err error
		if amount, err = payment.AmountForTier(o.tier); err != nil {
			return nil, err
		}
	}

	auth, err := a.authorize(url, amount, o.token, string(o.tier))
	if err != nil {
		return nil, err
	}
	return a.relay.Pay(ctx, url, auth, body)
}

// Pay sends an x402 request to the configured payment API.
func (a *Agent) Pay(ctx context.Context, body []byte, opts ...PayOption) ([]byte, error) {
	if a.cfg.Payment.APIURL == "" {
		return nil, fmt.Errorf("payment.api_url is not configured")
	}
	return a.X402Request(ctx, a.cfg.Payment.APIURL, "", body, opts...)
}

func (a *Agent) authorize(url, amount, token, tier string) (*payment.Authorization, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	return a.authorizer.Authorize(url, amount, token, tier, a.keys)
}

// SendSensorData posts a reading. An empty endpoint uses the configured
// sensors URL.
func (a *Agent) SendSensorData(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	if endpoint == "" {
		endpoint = a.cfg.Relay.SensorsURL
	}
	if endpoint == "" {
		return nil, fmt.Errorf("relay.sensors_url is not configured")
	}
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	return a.relay.SendSensorData(ctx, endpoint, body)
}

// SendAlert posts an alert to the configured alerts URL.
func (a *Agent) SendAlert(ctx context.Context, body []byte) ([]byte, error) {
	if a.cfg.Relay.AlertsURL == "" {
		return nil, fmt.Errorf("relay.alerts_url is not configured")
	}
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	return a.relay.SendSensorData(ctx, a.cfg.Relay.AlertsURL, body)
}

// Metadata builds and signs the agent's metadata document, the content a
// registration's metadata URI should point at.
func (a *Agent) Metadata(ctx context.Context, endpoint, description, sensorType string, capabilities ...string) (*metadata.SignedDocument, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}

	pub, err := a.keys.PublicKey()
	if err != nil {
		return nil, err
	}
	keyID := string(a.did) + "#" + KeyID
	doc := metadata.NewBuilder(a.did, a.identity.Name(), endpoint).
		WithDescription(description).
		WithIdentity(a.identity).
		WithChainID(a.cfg.Network.ChainID).
		WithSensorType(sensorType).
		WithCapabilities(capabilities...).
		WithSecp256k1Key(keyID, pub).
		WithCreatedAt(a.now()).
		Build()

	return metadata.Sign(ctx, doc, a.keys.KeyPair(keyID))
}

func (a *Agent) checkOpen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	return nil
}
