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

package keystore

import (
	"encoding/hex"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: Sign(d) == Sign(d) and the signature recovers the store's address.
func TestSignDeterminismProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("signing is deterministic and recoverable", prop.ForAll(
		func(secret []byte, digest []byte) bool {
			ks := New()
			if err := ks.Initialize(hex.EncodeToString(secret)); err != nil {
				return true // zero or out-of-range scalar
			}
			var d [32]byte
			copy(d[:], digest)

			a, err1 := ks.Sign(d)
			b, err2 := ks.Sign(d)
			if err1 != nil || err2 != nil {
				return false
			}
			if a != b || !a.IsLowS() {
				return false
			}
			addr, err := RecoverAddress(d, a)
			if err != nil {
				return false
			}
			want, _ := ks.Address()
			return addr == want
		},
		gen.SliceOfN(32, gen.UInt8()),
		gen.SliceOfN(32, gen.UInt8()),
	))

	properties.TestingRun(t)
}
