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

package metadata

import (
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sage-x-project/sage/pkg/agent/did"

	"github.com/agenthub-iot/agenthub-go/pkg/identity"
)

// Version is the document format version.
const Version = "1.0"

// Document is the agent metadata a registration's metadata URI points at.
type Document struct {
	// DID is the did:sage identifier of the agent's signing address.
	DID string `json:"did"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Endpoint is where the agent (or its hub) accepts requests.
	Endpoint string `json:"endpoint"`

	// IdentityHash is the 0x-prefixed on-chain identity hash of Name.
	IdentityHash string `json:"identityHash,omitempty"`
	HashFunction string `json:"hashFunction,omitempty"`

	ChainID    uint64 `json:"chainId,omitempty"`
	SensorType string `json:"sensorType,omitempty"`

	Capabilities []string        `json:"capabilities,omitempty"`
	PublicKeys   []PublicKeyInfo `json:"publicKeys,omitempty"`

	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
	Version   string `json:"version,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PublicKeyInfo represents a public key in the document
type PublicKeyInfo struct {
	ID string `json:"id"`

	// Type is the verification method type,
	// e.g. "EcdsaSecp256k1VerificationKey2019".
	Type string `json:"type"`

	// KeyData is the 0x-prefixed uncompressed public key.
	KeyData string `json:"keyData"`

	Purpose []string `json:"purpose,omitempty"`
}

// Builder helps construct documents with a fluent API
type Builder struct {
	doc *Document
}

// NewBuilder starts a document for agentDID.
func NewBuilder(agentDID did.AgentDID, name, endpoint string) *Builder {
	return &Builder{
		doc: &Document{
			DID:       string(agentDID),
			Name:      name,
			Endpoint:  endpoint,
			CreatedAt: time.Now().Unix(),
			Version:   Version,
		},
	}
}

// WithDescription sets the human readable description.
func (b *Builder) WithDescription(description string) *Builder {
	b.doc.Description = description
	return b
}

// WithCapabilities appends capabilities.
func (b *Builder) WithCapabilities(capabilities ...string) *Builder {
	b.doc.Capabilities = append(b.doc.Capabilities, capabilities...)
	return b
}

// WithIdentity records the identity hash and the function that produced it.
func (b *Builder) WithIdentity(id identity.AgentIdentity) *Builder {
	b.doc.IdentityHash = id.Hash().Hex()
	b.doc.HashFunction = id.HasherName()
	return b
}

// WithChainID sets the chain the agent is registered on.
func (b *Builder) WithChainID(chainID uint64) *Builder {
	b.doc.ChainID = chainID
	return b
}

// WithSensorType sets the sensor kind, e.g. "temperature".
func (b *Builder) WithSensorType(sensorType string) *Builder {
	b.doc.SensorType = sensorType
	return b
}

// WithSecp256k1Key adds the 64-byte X||Y public key as an authentication key.
func (b *Builder) WithSecp256k1Key(id string, pub [64]byte) *Builder {
	b.doc.PublicKeys = append(b.doc.PublicKeys, PublicKeyInfo{
		ID:      id,
		Type:    "EcdsaSecp256k1VerificationKey2019",
		KeyData: "0x04" + common.Bytes2Hex(pub[:]),
		Purpose: []string{"authentication", "assertionMethod"},
	})
	return b
}

// WithCreatedAt overrides the creation time.
func (b *Builder) WithCreatedAt(t time.Time) *Builder {
	b.doc.CreatedAt = t.Unix()
	return b
}

// WithExpiresAt sets when the document stops being valid.
func (b *Builder) WithExpiresAt(t time.Time) *Builder {
	b.doc.ExpiresAt = t.Unix()
	return b
}

// WithMetadata sets a free-form metadata entry.
func (b *Builder) WithMetadata(key string, value interface{}) *Builder {
	if b.doc.Metadata == nil {
		b.doc.Metadata = make(map[string]interface{})
	}
	b.doc.Metadata[key] = value
	return b
}

// Build returns the document.
func (b *Builder) Build() *Document {
	return b.doc
}

// IsExpired reports whether the document expired before now.
func (d *Document) IsExpired(now time.Time) bool {
	return d.ExpiresAt != 0 && now.Unix() > d.ExpiresAt
}

// HasCapability reports whether capability is listed.
func (d *Document) HasCapability(capability string) bool {
	return slices.Contains(d.Capabilities, capability)
}

// Validate performs basic validation on the document.
func (d *Document) Validate() error {
	if d.DID == "" {
		return ErrInvalidDocument{"DID is required"}
	}
	if _, _, err := identity.AddressFromDID(did.AgentDID(d.DID)); err != nil {
		return ErrInvalidDocument{err.Error()}
	}
	if d.Name == "" {
		return ErrInvalidDocument{"name is required"}
	}
	if d.Endpoint == "" {
		return ErrInvalidDocument{"endpoint is required"}
	}
	if d.CreatedAt == 0 {
		return ErrInvalidDocument{"createdAt is required"}
	}
	if d.ExpiresAt != 0 && d.ExpiresAt <= d.CreatedAt {
		return ErrInvalidDocument{"expiresAt must be after createdAt"}
	}
	return nil
}

// ErrInvalidDocument is returned when a document is invalid
type ErrInvalidDocument struct {
	Message string
}

func (e ErrInvalidDocument) Error() string {
	return "invalid agent metadata: " + e.Message
}
