package models

import (
	"github.com/ethereum/go-ethereum/common"

	"bestiary/internal/rarity"
	dErrors "bestiary/pkg/domain-errors"
)

// Settings is the singleton issuance configuration. ExpirationWindow,
// TotalCapacity and RarityThresholds may only change while the system is
// still configuring; CostUnit and Signer are owner-mutable in any phase.
type Settings struct {
	// ExpirationWindow is the number of height units after randomness
	// resolves during which minting stays open.
	ExpirationWindow uint64 `json:"expiration_window"`
	// TotalCapacity caps how many records can ever be minted.
	TotalCapacity uint64 `json:"total_capacity"`
	// RarityThresholds are percentile cut points, rarest tier first,
	// summing to exactly 100.
	RarityThresholds []uint32 `json:"rarity_thresholds"`
	// Renderer is the external renderer reference; must be set and ready
	// before issuance can start.
	Renderer common.Address `json:"renderer"`
	// CostUnit is the estimated resource cost used to derive each
	// record's cost at mint time.
	CostUnit uint64 `json:"cost_unit"`
	// Signer is the identity whose signature authorizes mint claims.
	Signer common.Address `json:"signer"`
}

// ValidateBatch checks the configuring-phase triple replaced by SetSettings.
// Any expiration window is legal, including zero.
func ValidateBatch(totalCapacity uint64, thresholds []uint32) error {
	if totalCapacity == 0 {
		return dErrors.New(dErrors.CodeInvalidCapacity, "total capacity must be greater than zero")
	}
	return rarity.ValidateThresholds(thresholds)
}
