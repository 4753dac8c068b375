// Package identity derives the on-chain identity of an agent.
//
// The identity hash is keccak256 over the UTF-8 bytes of the agent name, the
// same value Solidity computes for keccak256(bytes(name)) and ethers for
// id(name). The registry contract recomputes it, so any other hash silently
// breaks registration lookups.
//
//	id, err := identity.NewAgentIdentity("sensor-42")
//	fmt.Println(id.Hash()) // bytes32 argument for registerAgent
//
// Other strategies (SHA3256, SHA256) exist only to reproduce hashes from older
// SDKs and firmware; RegistryCompatible reports which is safe to register.
//
// DID and AddressFromDID map addresses to did:sage DIDs used as keyid in
// signed HTTP requests.
package identity
