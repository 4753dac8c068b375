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

package txbuilder

import (
	"math/big"

	"github.com/agenthub-iot/agenthub-go/pkg/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// UnsignedTransaction is a fully encoded transaction waiting for a signature.
type UnsignedTransaction struct {
	tx      *types.Transaction
	chainID uint64
	signer  types.Signer
}

func newUnsigned(inner types.TxData, chainID uint64) *UnsignedTransaction {
	id := new(big.Int).SetUint64(chainID)
	return &UnsignedTransaction{
		tx:      types.NewTx(inner),
		chainID: chainID,
		signer:  types.LatestSignerForChainID(id),
	}
}

// Nonce returns the sender account nonce.
func (u *UnsignedTransaction) Nonce() uint64 { return u.tx.Nonce() }

// To returns the recipient, the registry contract for registrations.
func (u *UnsignedTransaction) To() common.Address { return *u.tx.To() }

// Value returns the attached native coin amount in wei.
func (u *UnsignedTransaction) Value() *big.Int { return u.tx.Value() }

// Data returns the ABI-encoded call data.
func (u *UnsignedTransaction) Data() []byte { return u.tx.Data() }

// ChainID returns the EIP-155 chain ID the transaction is bound to.
func (u *UnsignedTransaction) ChainID() uint64 { return u.chainID }

// GasLimit returns the gas limit.
func (u *UnsignedTransaction) GasLimit() uint64 { return u.tx.Gas() }

// GasPrice returns the legacy gas price, or the fee cap for dynamic fee
// transactions.
func (u *UnsignedTransaction) GasPrice() *big.Int { return u.tx.GasPrice() }

// Type returns the EIP-2718 transaction type.
func (u *UnsignedTransaction) Type() uint8 { return u.tx.Type() }

// PreSignHash returns the digest the sender signs: keccak256 of the RLP
// signing payload (EIP-155 for legacy, EIP-1559 envelope for dynamic fee).
func (u *UnsignedTransaction) PreSignHash() common.Hash {
	return u.signer.Hash(u.tx)
}

// SignedTransaction is an immutable, broadcast-ready transaction.
type SignedTransaction struct {
	unsigned *UnsignedTransaction
	tx       *types.Transaction
	sig      keystore.Signature
	sender   common.Address
	raw      []byte
}

// Unsigned returns the transaction that was signed.
func (s *SignedTransaction) Unsigned() *UnsignedTransaction { return s.unsigned }

// Raw returns the canonical serialized form, ready for eth_sendRawTransaction.
func (s *SignedTransaction) Raw() []byte {
	return append([]byte(nil), s.raw...)
}

// RawHex returns Raw as 0x-prefixed hex.
func (s *SignedTransaction) RawHex() string { return hexutil.Encode(s.raw) }

// Hash returns the transaction hash.
func (s *SignedTransaction) Hash() common.Hash { return s.tx.Hash() }

// Signature returns the recoverable signature over PreSignHash.
func (s *SignedTransaction) Signature() keystore.Signature { return s.sig }

// SignatureValues returns the v, r, s values as embedded in the encoding.
func (s *SignedTransaction) SignatureValues() (v, r, sv *big.Int) {
	return s.tx.RawSignatureValues()
}

// Sender returns the address recovered from the signed encoding.
func (s *SignedTransaction) Sender() common.Address { return s.sender }

// Verify checks the signature against PreSignHash and a public key.
func (s *SignedTransaction) Verify(pub [64]byte) bool {
	return keystore.VerifySignature(pub, s.unsigned.PreSignHash(), s.sig)
}

// Decode parses a serialized signed transaction and recovers its sender.
func Decode(raw []byte) (*types.Transaction, common.Address, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, common.Address{}, err
	}
	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, common.Address{}, err
	}
	return tx, sender, nil
}
