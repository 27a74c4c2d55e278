package models

import (
	"github.com/ethereum/go-ethereum/common"

	dErrors "bestiary/pkg/domain-errors"
)

// Claim is a signed assertion of ranking facts submitted to mint one record.
// The signature covers every field except itself; the cohort rank doubles as
// the record identifier.
type Claim struct {
	Owner      common.Address `json:"owner"`
	Label      string         `json:"label"`
	GlobalRank uint64         `json:"global_rank"`
	CohortID   uint64         `json:"cohort_id"`
	CohortSize uint64         `json:"cohort_size"`
	CohortRank uint64         `json:"cohort_rank"`
	Position   uint64         `json:"position"`
	Score      uint64         `json:"score"`
	Signature  []byte         `json:"signature"`
}

// CheckFacts validates the asserted ranking facts against the issuance
// context. Signature verification and duplicate detection happen later; this
// is the cheap, pure first gate.
func (c Claim) CheckFacts(cohortID, totalCapacity uint64) error {
	if c.CohortID != cohortID {
		return dErrors.New(dErrors.CodeGroupMismatch, "claim cohort does not match this issuance")
	}
	if c.CohortSize == 0 || c.CohortSize > totalCapacity {
		return dErrors.New(dErrors.CodeInvalidGroupSize, "cohort size must be in 1..total capacity")
	}
	if c.CohortRank == 0 || c.CohortRank > c.CohortSize {
		return dErrors.New(dErrors.CodeInvalidGroupRank, "cohort rank must be in 1..cohort size")
	}
	return nil
}
