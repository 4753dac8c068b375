// Package signer signs outgoing HTTP requests with an agent's DID.
//
// Requests are signed with RFC9421 HTTP Message Signatures. The agent DID is
// the keyid parameter, so a receiver can map the signature back to an
// on-chain identity without any other header.
//
// # Signing HTTP Requests
//
//	s := signer.NewHTTPSigner()
//	req, _ := http.NewRequest("POST", "https://hub.example.com/sensors", body)
//
//	err := s.SignRequest(ctx, req, agentDID, ks.KeyPair("device"))
//
// This adds Signature and Signature-Input headers:
//
//	Signature-Input: sig1=("@method" "@target-uri");created=1700000000;keyid="did:sage:43113:0x..";alg="ES256K"
//	Signature: sig1=:<base64>:
//
// # Covering the Body
//
// Set Content-Digest and list it as a component:
//
//	req.Header.Set(signer.HeaderContentDigest, signer.ContentDigest(body))
//	err := s.SignRequestWithOptions(ctx, req, agentDID, kp, &signer.SigningOptions{
//	    Components: []string{"@method", "@target-uri", "content-digest"},
//	})
//
// # Signature Base
//
// The signed bytes are one line per covered component followed by the
// "@signature-params" line, which repeats the Signature-Input member. The
// verifier package rebuilds them with BuildSignatureBase.
//
// # Algorithms
//
//   - ES256K: secp256k1. The signature is 65 bytes R||S||V over
//     keccak256(base), so the signer address is recoverable.
//   - EdDSA: Ed25519, when the key pair reports that type.
package signer
