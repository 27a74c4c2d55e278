// Package pricing derives each record's reference-currency cost from a gas
// price hint, the configured cost unit and a live price quote. All arithmetic
// is integer fixed-point so the result is bit-for-bit reproducible.
package pricing

import (
	"math/big"
	"time"

	dErrors "bestiary/pkg/domain-errors"
)

// maxCostBits bounds the final cost; anything wider than a 256-bit word is an
// arithmetic overflow, never a silent wraparound.
const maxCostBits = 256

// Quote is a point-in-time price observation from the oracle, scaled by the
// pair's fixed-point factor.
type Quote struct {
	Price      *big.Int
	Scale      *big.Int
	Timestamp  time.Time
	Confidence uint64
}

// Estimate computes cost = gasPriceHint * costUnit * quote.Price / quote.Scale.
// big.Int keeps intermediate products exact; the post-division width check is
// what enforces the overflow contract.
func Estimate(gasPriceHint, costUnit uint64, quote Quote) (*big.Int, error) {
	if quote.Price == nil || quote.Scale == nil || quote.Scale.Sign() <= 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "quote missing price or scale")
	}
	if quote.Price.Sign() < 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "negative price quote")
	}
	cost := new(big.Int).SetUint64(gasPriceHint)
	cost.Mul(cost, new(big.Int).SetUint64(costUnit))
	cost.Mul(cost, quote.Price)
	cost.Quo(cost, quote.Scale)
	if cost.BitLen() > maxCostBits {
		return nil, dErrors.New(dErrors.CodeArithmeticOverflow, "derived cost exceeds 256 bits")
	}
	return cost, nil
}
