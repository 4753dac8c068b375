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

// Package units converts human decimal amounts ("0.01", "1.5") to integer
// base units without going through floating point.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// EtherDecimals is the number of decimals of the native coin on EVM chains.
const EtherDecimals = 18

var (
	// ErrInvalidDecimal is returned for strings that are not plain
	// non-negative decimals.
	ErrInvalidDecimal = errors.New("units: invalid decimal amount")

	// ErrTooPrecise is returned when the amount has more fraction digits than
	// the unit supports.
	ErrTooPrecise = errors.New("units: too many fraction digits")

	// ErrOverflow is returned when the value does not fit in 256 bits.
	ErrOverflow = errors.New("units: value exceeds 256 bits")
)

// IsDecimal reports whether s is a plain non-negative decimal: digits,
// optionally followed by a dot and more digits. No sign, exponent or spaces.
func IsDecimal(s string) bool {
	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if intPart == "" || !allDigits(intPart) {
		return false
	}
	if hasDot && (fracPart == "" || !allDigits(fracPart)) {
		return false
	}
	return true
}

// ParseUnits converts a decimal string to base units with the given number
// of decimals, e.g. ParseUnits("0.01", 6) == 10000.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > 77 {
		return nil, fmt.Errorf("units: unsupported decimals %d", decimals)
	}
	if !IsDecimal(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	fracPart = strings.TrimRight(fracPart, "0")
	if len(fracPart) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d", ErrTooPrecise, s, decimals)
	}

	digits := intPart + fracPart + strings.Repeat("0", decimals-len(fracPart))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecimal, s)
	}
	if err := CheckUint256(v); err != nil {
		return nil, err
	}
	return v, nil
}

// ParseEther converts an amount of native coin to wei.
func ParseEther(s string) (*big.Int, error) {
	return ParseUnits(s, EtherDecimals)
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	s := v.String()
	if decimals <= 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart, fracPart := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// CheckUint256 returns ErrOverflow when v is negative or wider than 256 bits.
func CheckUint256(v *big.Int) error {
	if v == nil {
		return nil
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: negative value", ErrOverflow)
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return ErrOverflow
	}
	return nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
