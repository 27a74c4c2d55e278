// Package rarity classifies percentile ranks into creature tiers.
package rarity

import (
	"fmt"

	dErrors "bestiary/pkg/domain-errors"
)

// Tier is a rarity class, ordered rarest first. The tier count is fixed;
// threshold tables are validated against it at configuration time.
type Tier uint8

const (
	TierMythic Tier = iota
	TierLegendary
	TierRare
	TierCommon

	TierCount = 4
)

func (t Tier) String() string {
	switch t {
	case TierMythic:
		return "mythic"
	case TierLegendary:
		return "legendary"
	case TierRare:
		return "rare"
	case TierCommon:
		return "common"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Classify maps a percentile in [0,100] to the first tier whose cumulative
// threshold boundary reaches it. Thresholds are ordered rarest first and must
// sum to exactly 100; exact boundary values land on the rarer (lower) tier.
//
// Thresholds are validated when settings are stored, so a bad table here is a
// logic error, not a caller error.
func Classify(percentile uint64, thresholds []uint32) (Tier, error) {
	if len(thresholds) != TierCount {
		return 0, dErrors.New(dErrors.CodeInternal, "threshold table has wrong tier count")
	}
	if percentile > 100 {
		return 0, dErrors.New(dErrors.CodeInternal, "percentile out of range")
	}
	var cumulative uint64
	for i, t := range thresholds {
		cumulative += uint64(t)
		if cumulative >= percentile {
			return Tier(i), nil
		}
	}
	// Unreachable when thresholds sum to 100.
	return 0, dErrors.New(dErrors.CodeInternal, "threshold table does not sum to 100")
}

// Percentile computes the integer percentile rank within a cohort.
func Percentile(cohortRank, cohortSize uint64) uint64 {
	if cohortSize == 0 {
		return 0
	}
	return cohortRank * 100 / cohortSize
}

// ValidateThresholds checks a candidate threshold table: fixed tier count and
// an exact sum of 100.
func ValidateThresholds(thresholds []uint32) error {
	if len(thresholds) != TierCount {
		return dErrors.New(dErrors.CodeInvalidThresholdCount,
			fmt.Sprintf("expected %d rarity thresholds, got %d", TierCount, len(thresholds)))
	}
	var sum uint64
	for _, t := range thresholds {
		sum += uint64(t)
	}
	if sum != 100 {
		return dErrors.New(dErrors.CodeInvalidThresholdSum,
			fmt.Sprintf("rarity thresholds must sum to 100, got %d", sum))
	}
	return nil
}
