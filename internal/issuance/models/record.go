package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bestiary/internal/rarity"
)

// Record is the permanent unit of issuance: one creature per cohort rank.
//
// Invariants:
//   - ID equals the cohort rank claimed for it; it is never auto-assigned
//   - CreatedAt is the existence sentinel: zero means "not minted yet"
//   - Once CreatedAt is non-zero every field is immutable
type Record struct {
	ID        uint64         `json:"id"`
	Label     string         `json:"label"`
	Owner     common.Address `json:"owner"`
	CreatedAt time.Time      `json:"created_at"`
	Cost      *big.Int       `json:"cost"`
	Tier      rarity.Tier    `json:"tier"`

	// Externally asserted ranking facts, stored verbatim from the claim.
	GlobalRank uint64 `json:"global_rank"`
	CohortRank uint64 `json:"cohort_rank"`
	CohortSize uint64 `json:"cohort_size"`
	Position   uint64 `json:"position"`
	Score      uint64 `json:"score"`
}

// Exists reports whether the record has actually been minted. Stores may
// return zero-valued records for unknown IDs; the sentinel disambiguates.
func (r Record) Exists() bool {
	return !r.CreatedAt.IsZero()
}
