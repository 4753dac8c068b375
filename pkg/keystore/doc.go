// Package keystore holds an agent's secp256k1 signing key and signs digests
// with it without ever handing the raw key to callers.
//
// # Initialization
//
//	ks := keystore.New()
//	if err := ks.Initialize(os.Getenv("AGENTHUB_PRIVATE_KEY")); err != nil {
//	    // errors.Is(err, keystore.ErrInvalidKey)
//	}
//	defer ks.Destroy()
//
// The secret is 32 bytes, hex encoded, with or without a 0x prefix. Zero and
// values at or above the curve order are rejected.
//
// # Signing
//
// Sign takes a 32-byte digest and returns a recoverable signature. Nonces are
// derived per RFC6979 so the same key and digest always give the same
// signature, and S is always in canonical low form.
//
//	sig, err := ks.Sign(digest)
//	raw := sig.Bytes()          // R||S||V, V in {0,1}
//	eth := sig.EthereumBytes()  // R||S||V, V in {27,28}
//
// # Key hygiene
//
// The private scalar stays inside the store. String, GoString and LogValue
// print only the address. Destroy zeroizes the scalar.
//
// KeyPair exposes the store through the sage crypto.KeyPair interface for
// HTTP request signing; its PrivateKey method returns nil.
package keystore
