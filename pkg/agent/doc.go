// Package agent ties key, identity, transaction building, payment
// authorization and transport together for one device.
//
//	cfg, _ := config.Load("agenthub.yaml")
//	a, err := agent.New(cfg)
//	if err != nil {
//		return err
//	}
//	defer a.Close()
//
//	txHash, err := a.Register(ctx, "ipfs://Qm...", "0.01")
//	resp, err := a.X402Request(ctx, "https://api.example.com/analyze", "", body)
package agent
