// Package txbuilder builds and signs AgentRegistry transactions.
//
// # Building
//
// A registration is a call to registerAgent(bytes32 agentId, string
// metadataIPFS) with the stake attached as value:
//
//	b, _ := txbuilder.NewBuilder()
//	unsigned, err := b.Build(txbuilder.RegistrationRequest{
//	    Identity:    id.Hash(),
//	    MetadataURI: "ipfs://bafy...",
//	    Stake:       stakeWei,
//	    Registry:    registry,
//	    Nonce:       nonce,   // from eth_getTransactionCount
//	    ChainID:     43113,
//	    Gas:         txbuilder.GasParams{GasLimit: 200000, GasPrice: gasPrice},
//	})
//
// Any field that does not fit its declared width, or a missing registry
// address, metadata reference or fee field, fails with ErrEncoding. The
// builder never produces placeholder call data.
//
// # Signing
//
//	signed, err := b.Sign(unsigned, ks)
//	gateway.SendRawTransaction(ctx, signed.Raw())
//
// Sign hashes the RLP signing payload (EIP-155 or EIP-1559), signs it with the
// keystore, embeds v, r, s and re-serializes. The sender recovered from the
// serialized transaction is checked against the signer's address.
//
// The builder remembers which (sender, chain, nonce) triples it has signed and
// refuses to sign another transaction for the same triple unless WithResign is
// passed. It does not track or suggest nonces.
package txbuilder
