// Package metadata builds and signs the agent metadata document.
//
// The registry stores only a URI for each agent. The document at that URI
// describes the agent (name, endpoint, capabilities, sensor type, identity
// hash) and is signed by the agent's key so anyone can check that the
// document and the on-chain registration belong to the same device:
//
//	doc := metadata.NewBuilder(agentDID, "sensor-42", "https://hub.example.com/agents/sensor-42").
//	    WithIdentity(id).
//	    WithChainID(43113).
//	    WithSensorType("temperature").
//	    WithCapabilities("sensor-data", "x402-payments").
//	    Build()
//
//	signed, err := metadata.Sign(ctx, doc, ks.KeyPair("device"))
//	err = metadata.Verify(ctx, signed)
//
// The signature is a compact JWS whose payload is the RFC 8785 canonical
// JSON of the document. Verification recovers the signer from the ES256K
// signature and compares it with the address in the document's DID.
//
// ToA2ACard exposes the same document as an A2A agent card.
package metadata
