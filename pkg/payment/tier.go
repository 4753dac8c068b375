package payment

import (
	"fmt"
	"sort"
)

// Tier names a pricing level of a paid resource.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// DefaultToken is the settlement token for the built-in tiers.
const DefaultToken = "USDC"

var tierAmounts = map[Tier]string{
	TierBasic:   "0.01",
	TierPremium: "0.15",
}

// AmountForTier returns the decimal USDC price of a built-in tier.
func AmountForTier(t Tier) (string, error) {
	amount, ok := tierAmounts[t]
	if !ok {
		return "", fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, t)
	}
	return amount, nil
}

// Tiers lists the built-in tier names in sorted order.
func Tiers() []Tier {
	out := make([]Tier, 0, len(tierAmounts))
	for t := range tierAmounts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
